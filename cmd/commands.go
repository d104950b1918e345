package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/thiagokokada/ccview-go/internal/ccpath"
	"github.com/thiagokokada/ccview-go/internal/configspec"
	"github.com/thiagokokada/ccview-go/internal/history"
	"github.com/thiagokokada/ccview-go/internal/view"
	"github.com/thiagokokada/ccview-go/internal/watch"
)

func newFlagSet(name string) *flag.FlagSet {
	return flag.NewFlagSet("ccview "+name, flag.ContinueOnError)
}

func absolute(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	return filepath.ToSlash(abs), nil
}

func runCurrent(ctx context.Context, e *env, args []string) (err error) {
	fs := newFlagSet("current")
	isDir := fs.Bool("dir", false, "treat the paths as directories")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("current: at least one path required")
	}
	s, err := openSession(e, ctx)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, s.Close()) }()
	return printCurrent(ctx, e.stdout, s.conn, fs.Args(), !*isDir)
}

func printCurrent(ctx context.Context, out io.Writer, conn *view.Connection, paths []string, isFile bool) error {
	for _, p := range paths {
		full, err := absolute(p)
		if err != nil {
			return err
		}
		v, err := conn.CurrentVersion(ctx, full, isFile)
		if err != nil {
			return err
		}
		version := "-"
		if v != nil {
			version = v.WholeName()
		}
		fmt.Fprintf(out, "%s\t%s\n", full, version)
	}
	return nil
}

func runInside(ctx context.Context, e *env, args []string) (err error) {
	fs := newFlagSet("inside")
	isDir := fs.Bool("dir", false, "treat the paths as directories")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errors.New("inside: at least one extended path required")
	}
	s, err := openSession(e, ctx)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, s.Close()) }()

	for _, arg := range fs.Args() {
		i := strings.LastIndex(arg, ccpath.VersionSeparator)
		if i < 0 {
			return fmt.Errorf("inside: %q has no version", arg)
		}
		object, err := absolute(arg[:i])
		if err != nil {
			return err
		}
		inside, err := s.conn.VersionIsInsideView(ctx, object, arg[i+len(ccpath.VersionSeparator):], !*isDir)
		if err != nil {
			return err
		}
		answer := "no"
		if inside {
			answer = "yes"
		}
		fmt.Fprintf(e.stdout, "%s\t%s\n", arg, answer)
	}
	return nil
}

func runBranches(ctx context.Context, e *env, args []string) (err error) {
	if len(args) > 0 {
		return fmt.Errorf("branches: unexpected arguments %q", args)
	}
	s, err := openSession(e, ctx)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, s.Close()) }()
	for _, b := range s.conn.Branches() {
		fmt.Fprintln(e.stdout, b)
	}
	return nil
}

func runRevision(ctx context.Context, e *env, args []string) (err error) {
	fs := newFlagSet("revision")
	past := fs.Int("past", 0, "minutes before the last change to scan for later event ids")
	if err := fs.Parse(args); err != nil {
		return err
	}
	s, err := openSession(e, ctx)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, s.Close()) }()
	rev, err := s.conn.CurrentRevision(ctx, *past)
	if err != nil {
		return err
	}
	fmt.Fprintln(e.stdout, rev)
	return nil
}

func runChanges(ctx context.Context, e *env, args []string) (err error) {
	fs := newFlagSet("changes")
	fromFlag := fs.String("from", "", "start revision (default FIRST)")
	toFlag := fs.String("to", "", "end revision (default the last change)")
	past := fs.Int("past", 0, "minutes scanned when computing the last change")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	from := history.First()
	if *fromFlag != "" {
		if from, err = history.ParseRevision(*fromFlag); err != nil {
			return fmt.Errorf("changes: -from: %w", err)
		}
	}

	s, err := openSession(e, ctx)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, s.Close()) }()

	var to history.Revision
	if *toFlag != "" {
		if to, err = history.ParseRevision(*toFlag); err != nil {
			return fmt.Errorf("changes: -to: %w", err)
		}
	} else if to, err = s.conn.CurrentRevision(ctx, *past); err != nil {
		return err
	}
	if to.BeforeOrEquals(from) && !to.Equal(from) {
		return fmt.Errorf("changes: -to %s is before -from %s", to, from)
	}

	mods, err := s.conn.CollectChanges(ctx, from, to)
	if err != nil {
		return err
	}
	if *asJSON {
		enc := json.NewEncoder(e.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(mods)
	}
	for _, m := range mods {
		fmt.Fprintf(e.stdout, "%s %s %s", m.Date.Format(time.DateTime), m.Version, m.User)
		if m.Activity != "" {
			fmt.Fprintf(e.stdout, " [%s]", m.Activity)
		}
		fmt.Fprintln(e.stdout)
		for _, line := range strings.Split(m.Comment, "\n") {
			if line != "" {
				fmt.Fprintf(e.stdout, "    %s\n", line)
			}
		}
		for _, ch := range m.Changes {
			fmt.Fprintf(e.stdout, "  %-17s %s", ch.Type, ch.RelativePath)
			if ch.Before != "" || ch.After != "" {
				fmt.Fprintf(e.stdout, " (%s -> %s)", orDash(ch.Before), orDash(ch.After))
			}
			fmt.Fprintln(e.stdout)
		}
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func runCheckSpec(_ context.Context, e *env, args []string) error {
	file := e.cfg.ConfigSpecFile
	switch len(args) {
	case 0:
	case 1:
		file = args[0]
	default:
		return fmt.Errorf("check-spec: unexpected arguments %q", args[1:])
	}
	if file == "" {
		return errors.New("check-spec: config spec file required")
	}
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()
	spec, err := configspec.Parse(e.cfg.ViewPath, f)
	if err != nil {
		return fmt.Errorf("%s: %w", file, err)
	}
	printSpec(e.stdout, spec)
	return nil
}

func printSpec(out io.Writer, spec *configspec.Spec) {
	for _, l := range spec.LoadRules() {
		fmt.Fprintf(out, "load %s\n", l.RelativePath)
	}
	for _, r := range spec.Rules() {
		fmt.Fprintln(out, r)
	}
	if branches := spec.Branches(); len(branches) > 0 {
		fmt.Fprintf(out, "# branches: %s\n", strings.Join(branches, ", "))
	}
	if spec.HasLabelBasedSelector() {
		fmt.Fprintln(out, "# label based selectors: change detection may be incomplete")
	}
}

func runWatch(ctx context.Context, e *env, args []string) (err error) {
	fs := newFlagSet("watch")
	metricsAddr := fs.String("metrics-addr", "", "serve Prometheus metrics on this address")
	isDir := fs.Bool("dir", false, "treat the paths as directories")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if e.cfg.ConfigSpecFile == "" {
		return errors.New("watch: config spec file required")
	}

	s, err := openSession(e, ctx)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, s.Close()) }()
	if err := printCurrent(ctx, e.stdout, s.conn, fs.Args(), !*isDir); err != nil {
		return err
	}
	s.release()

	root := s.path.Root()
	dynamic := s.conn.Spec().ViewIsDynamic()
	w, err := watch.New(watch.Config{
		File:     e.cfg.ConfigSpecFile,
		ViewRoot: root,
		Delay:    e.cfg.DebounceDelay,
		OnChange: func(u watch.Update) {
			release, err := e.sessions.Acquire(ctx, root)
			if err != nil {
				slog.Error("acquire view", slog.Any("error", err))
				return
			}
			defer release()
			if _, err := s.cache.SyncSpec(root, u.Text); err != nil {
				slog.Error("sync cached config spec", slog.Any("error", err))
			}
			fmt.Fprint(e.stdout, u.Diff)
			u.Spec.SetViewIsDynamic(dynamic)
			conn := view.New(s.backend, s.path, u.Spec, e.viewOptions())
			if err := printCurrent(ctx, e.stdout, conn, fs.Args(), !*isDir); err != nil {
				slog.Error("evaluate paths", slog.Any("error", err))
			}
		},
	})
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Close()

	if *metricsAddr != "" {
		srv := &http.Server{Addr: *metricsAddr, Handler: e.metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server", slog.Any("error", err))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown", slog.Any("error", err))
			}
		}()
		slog.Info("serving metrics", slog.String("addr", *metricsAddr))
	}

	slog.Info("watching config spec", slog.String("file", e.cfg.ConfigSpecFile))
	<-ctx.Done()
	return nil
}
