// Package cmd implements the ccview command line.
package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/thiagokokada/ccview-go/internal/buildinfo"
	"github.com/thiagokokada/ccview-go/internal/ccase"
	"github.com/thiagokokada/ccview-go/internal/config"
	"github.com/thiagokokada/ccview-go/internal/metrics"
	"github.com/thiagokokada/ccview-go/internal/view"
)

// openBackend is replaced in tests.
var openBackend = ccase.Open

type command struct {
	usage string
	help  string
	run   func(ctx context.Context, e *env, args []string) error
	// offline commands never talk to ClearCase.
	offline bool
}

var commands = map[string]command{
	"current":    {usage: "current [-dir] <path>...", help: "print the version the view selects", run: runCurrent},
	"inside":     {usage: "inside [-dir] <path@@/branch/N>...", help: "tell whether a version is visible in the view", run: runInside},
	"branches":   {usage: "branches", help: "print the branches history is read from", run: runBranches},
	"revision":   {usage: "revision [-past minutes]", help: "print the revision of the last change", run: runRevision},
	"changes":    {usage: "changes [-from rev] [-to rev] [-past minutes] [-json]", help: "list the modifications between two revisions", run: runChanges},
	"watch":      {usage: "watch [-metrics-addr addr] [path]...", help: "follow the config spec file and re-evaluate paths on change", run: runWatch},
	"check-spec": {usage: "check-spec [file]", help: "parse a config spec and print its rules", run: runCheckSpec, offline: true},
}

func Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return run(ctx, os.Args[1:], os.Stdout, os.Stderr)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("ccview", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { usage(fs) }
	configFile := fs.String("config", "", "config file (default: ccview/config.yaml in the user config directory)")
	viewPath := fs.String("view", "", "ClearCase view root")
	relative := fs.String("relative", "", "path below the view root to work on")
	specFile := fs.String("spec", "", "config spec file for check-spec and watch")
	cleartool := fs.String("cleartool", "", "cleartool executable")
	cacheDir := fs.String("cache-dir", "", "persist directory listings in this directory")
	verbose := fs.Bool("verbose", false, "enable verbose logging")
	showVersion := fs.Bool("version", false, "print version information and exit")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if *showVersion {
		fmt.Fprintln(stdout, buildinfo.Read())
		return nil
	}
	rest := fs.Args()
	if len(rest) == 0 {
		fs.Usage()
		return errors.New("missing command")
	}
	cmd, ok := commands[rest[0]]
	if !ok {
		fs.Usage()
		return fmt.Errorf("unknown command %q", rest[0])
	}

	level := new(slog.LevelVar)
	slog.SetDefault(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))

	cfg, err := loadConfig(*configFile)
	if err != nil {
		return err
	}
	overrides := map[*string]string{
		&cfg.ViewPath:       *viewPath,
		&cfg.RelativePath:   *relative,
		&cfg.ConfigSpecFile: *specFile,
		&cfg.Cleartool:      *cleartool,
	}
	for field, value := range overrides {
		if value != "" {
			*field = value
		}
	}
	if *cacheDir != "" {
		cfg.CacheDir = *cacheDir
		cfg.CacheInMemory = false
	}
	if !cmd.offline {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
	}
	lvl, err := cfg.Level()
	if err != nil {
		return err
	}
	level.Set(lvl)
	if *verbose {
		level.Set(slog.LevelDebug)
	}
	slog.Debug("configuration loaded", slog.String("view", cfg.ViewPath), slog.String("relative", cfg.RelativePath))

	e := &env{
		cfg:      cfg,
		stdout:   stdout,
		metrics:  metrics.New(),
		sessions: view.NewSessionRegistry(),
	}
	return cmd.run(ctx, e, rest[1:])
}

func loadConfig(path string) (config.Config, error) {
	if path != "" {
		return config.Load(path, true)
	}
	path, err := config.DefaultFile()
	if err != nil {
		slog.Debug("no default config file", slog.Any("error", err))
		return config.Load("", false)
	}
	return config.Load(path, false)
}

func usage(fs *flag.FlagSet) {
	out := fs.Output()
	fmt.Fprintf(out, "Usage: %s [flags] <command> [args]\n\nCommands:\n", fs.Name())
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %-58s %s\n", commands[name].usage, commands[name].help)
	}
	fmt.Fprintf(out, "\nFlags:\n")
	fs.PrintDefaults()
}
