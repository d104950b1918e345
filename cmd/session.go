package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/thiagokokada/ccview-go/internal/cache"
	"github.com/thiagokokada/ccview-go/internal/ccase"
	"github.com/thiagokokada/ccview-go/internal/config"
	"github.com/thiagokokada/ccview-go/internal/history"
	"github.com/thiagokokada/ccview-go/internal/metrics"
	"github.com/thiagokokada/ccview-go/internal/view"
)

const cacheGCInterval = 10 * time.Minute

type env struct {
	cfg      config.Config
	stdout   io.Writer
	metrics  *metrics.Recorder
	sessions *view.SessionRegistry
}

func (e *env) viewOptions() view.Options {
	return view.Options{
		TreatMainAsVersion: e.cfg.TreatMainAsVersionIdentifier,
		Branches:           e.cfg.Branches,
		HistoryOptions:     e.cfg.HistoryOptionSets(),
		MaxVersionToIgnore: history.IgnoreRules(e.cfg.IgnoredVersionRules),
		Metrics:            e.metrics,
	}
}

// listingStore is the part of the listing cache a session keeps using
// after it is opened.
type listingStore interface {
	SyncSpec(viewRoot, text string) (bool, error)
	Close() error
}

// openSession is replaced in tests.
var openSession = (*env).open

// session is an open view: the backend with its listing cache and a
// connection holding the view lease.
type session struct {
	backend ccase.Backend
	cache   listingStore
	path    view.Path
	conn    *view.Connection
	release func()
}

func (e *env) open(ctx context.Context) (*session, error) {
	b, err := openBackend(ctx, e.cfg.ViewPath, ccase.Options{
		Executable:             e.cfg.Cleartool,
		SkipVersionCheck:       e.cfg.SkipVersionCheck,
		KeepHistoryObjectNames: e.cfg.DisableHistoryTransformation,
	})
	if err != nil {
		return nil, err
	}
	p, err := view.NewPath(b.ViewPath(), e.cfg.RelativePath)
	if err != nil {
		return nil, err
	}
	lc, err := cache.Open(cache.Config{
		Dir:        e.cfg.CacheDir,
		InMemory:   e.cfg.CacheInMemory,
		GCInterval: cacheGCInterval,
		Logger:     slog.Default(),
	})
	if err != nil {
		return nil, err
	}
	lc.SetObserver(e.metrics)
	s := &session{backend: cache.WrapBackend(b, lc), cache: lc, path: p}

	release, err := e.sessions.Acquire(ctx, p.Root())
	if err != nil {
		return nil, errors.Join(err, lc.Close())
	}
	s.release = release

	conn, err := view.Open(ctx, s.backend, p, e.viewOptions())
	if err != nil {
		return nil, errors.Join(err, s.Close())
	}
	if _, err := lc.SyncSpec(p.Root(), conn.SpecText()); err != nil {
		return nil, errors.Join(fmt.Errorf("sync cached config spec: %w", err), s.Close())
	}
	s.conn = conn
	return s, nil
}

func (s *session) Close() error {
	if s.release != nil {
		s.release()
	}
	return s.cache.Close()
}
