// Package watch reloads a config spec file when it changes on disk.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/thiagokokada/ccview-go/internal/configspec"
	"github.com/thiagokokada/ccview-go/internal/debounce"
)

const DefaultDelay = 300 * time.Millisecond

// Update describes a reloaded config spec that differs from the previous
// one.
type Update struct {
	Spec *configspec.Spec
	Text string
	// Diff is a unified diff from the previous text.
	Diff string
}

type Config struct {
	File     string
	ViewRoot string
	// Delay coalesces bursts of file events. Zero means DefaultDelay.
	Delay    time.Duration
	OnChange func(Update)
}

// SpecWatcher follows one config spec file. Whitespace or comment edits
// that leave the rules untouched are not reported.
type SpecWatcher struct {
	file     string
	viewRoot string
	delay    time.Duration
	onChange func(Update)

	mu       sync.Mutex
	text     string
	spec     *configspec.Spec
	watcher  *fsnotify.Watcher
	debounce *debounce.Debouncer
	done     chan struct{}
}

// New reads and parses the file once. Call Start to follow it.
func New(cfg Config) (*SpecWatcher, error) {
	if cfg.File == "" {
		return nil, errors.New("config spec file required")
	}
	file, err := filepath.Abs(cfg.File)
	if err != nil {
		return nil, err
	}
	w := &SpecWatcher{
		file:     file,
		viewRoot: cfg.ViewRoot,
		delay:    cfg.Delay,
		onChange: cfg.OnChange,
	}
	if w.delay <= 0 {
		w.delay = DefaultDelay
	}
	if w.onChange == nil {
		w.onChange = func(Update) {}
	}
	text, spec, err := w.read()
	if err != nil {
		return nil, err
	}
	w.text, w.spec = text, spec
	return w, nil
}

func (w *SpecWatcher) Spec() *configspec.Spec {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.spec
}

func (w *SpecWatcher) Text() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.text
}

func (w *SpecWatcher) read() (string, *configspec.Spec, error) {
	data, err := os.ReadFile(w.file)
	if err != nil {
		return "", nil, fmt.Errorf("read config spec: %w", err)
	}
	text := string(data)
	spec, err := configspec.ParseString(w.viewRoot, text)
	if err != nil {
		return "", nil, err
	}
	return text, spec, nil
}

// Start watches the directory of the file, so editors that replace the
// file on save are followed too. Watching stops when ctx is done or Close
// is called.
func (w *SpecWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.watcher != nil {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("fsnotify: %w", err)
	}
	dir := filepath.Dir(w.file)
	slog.Debug("adding path to FS watcher", slog.String("path", dir))
	if err := watcher.Add(dir); err != nil {
		err := errors.Join(err, watcher.Close())
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	debounce.Ensure(&w.debounce, w.delay, func() {
		if _, _, err := w.Reload(); err != nil {
			slog.Error("config spec reload", slog.Any("error", err))
		}
	})
	w.watcher = watcher
	w.done = make(chan struct{})
	go w.loop(ctx, watcher, w.done)
	return nil
}

func (w *SpecWatcher) loop(ctx context.Context, watcher *fsnotify.Watcher, done chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			if err := w.Close(); err != nil {
				slog.Error("watcher close", slog.Any("error", err))
			}
			return
		case <-done:
			return
		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
				continue
			}
			slog.Debug("fsnotify event", slog.String("op", ev.Op.String()), slog.String("path", ev.Name))
			w.schedule()
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			slog.Error("fsnotify error", slog.Any("error", err))
		}
	}
}

func (w *SpecWatcher) relevant(ev fsnotify.Event) bool {
	if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return false
	}
	return filepath.Clean(ev.Name) == w.file
}

func (w *SpecWatcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounce != nil {
		w.debounce.Trigger()
	}
}

// Reload rereads the file now. changed reports whether the rules differ
// from the previous ones; OnChange has then been called with u. A file
// that fails to parse leaves the previous spec in place.
func (w *SpecWatcher) Reload() (u Update, changed bool, err error) {
	text, spec, err := w.read()
	if err != nil {
		return Update{}, false, err
	}

	w.mu.Lock()
	previousText, previous := w.text, w.spec
	w.text, w.spec = text, spec
	w.mu.Unlock()

	if previous.Equal(spec) {
		slog.Debug("config spec unchanged", slog.String("file", w.file))
		return Update{}, false, nil
	}
	diff, err := Diff(previousText, text, w.file)
	if err != nil {
		return Update{}, false, err
	}
	u = Update{Spec: spec, Text: text, Diff: diff}
	slog.Info("config spec changed", slog.String("file", w.file))
	w.onChange(u)
	return u, true, nil
}

// Close stops watching. It is safe to call more than once.
func (w *SpecWatcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounce != nil {
		w.debounce.Stop()
		w.debounce = nil
	}
	if w.watcher == nil {
		return nil
	}
	close(w.done)
	err := w.watcher.Close()
	w.watcher = nil
	return err
}

// Diff is a unified diff between two config spec texts.
func Diff(before, after, name string) (string, error) {
	return difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(before),
		B:        difflib.SplitLines(after),
		FromFile: name + " (previous)",
		ToFile:   name,
		Context:  2,
	})
}
