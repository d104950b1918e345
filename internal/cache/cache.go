// Package cache keeps directory listings of immutable directory versions in
// a badger store so that repeated change collections do not list them again.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"golang.org/x/sync/singleflight"

	"github.com/thiagokokada/ccview-go/internal/history"
)

const (
	childrenPrefix = "children/"
	specPrefix     = "spec/"
)

type Config struct {
	// Dir holds the store. Ignored when InMemory is set.
	Dir      string
	InMemory bool
	// GCInterval runs value log GC periodically on persistent stores. Zero
	// disables it.
	GCInterval time.Duration
	Logger     *slog.Logger
}

// Observer is told about every lookup.
type Observer interface {
	CacheLookup(hit bool)
}

// ListingCache maps "dir@@/branch/N" keys to directory listings.
type ListingCache struct {
	db       *badger.DB
	group    singleflight.Group
	observer Observer
	gc       *gcRunner
}

// Open opens or creates the store described by cfg.
func Open(cfg Config) (*ListingCache, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Dir == "" {
			return nil, errors.New("cache directory is required for a persistent cache")
		}
		if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
			return nil, fmt.Errorf("create cache directory %s: %w", cfg.Dir, err)
		}
		opts = badger.DefaultOptions(cfg.Dir)
	}
	opts = opts.WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(&badgerLogger{logger: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open cache: %w", err)
	}
	c := &ListingCache{db: db}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		c.gc = startGC(db, cfg.GCInterval, cfg.Logger)
	}
	return c, nil
}

// SetObserver installs o. It must be called before the cache is shared.
func (c *ListingCache) SetObserver(o Observer) {
	c.observer = o
}

func (c *ListingCache) Close() error {
	if c.gc != nil {
		c.gc.stop()
	}
	return c.db.Close()
}

// Cacheable reports whether key names a fixed directory version. Listings
// of version-less paths change with the view and are never stored.
func Cacheable(key string) bool {
	return strings.Contains(key, "@@")
}

// Children returns the listing stored under key, calling fetch on a miss.
// Concurrent misses for the same key share one fetch.
func (c *ListingCache) Children(ctx context.Context, key string, fetch func(context.Context) ([]history.Child, error)) ([]history.Child, error) {
	if !Cacheable(key) {
		return fetch(ctx)
	}
	children, ok, err := c.load(key)
	if err != nil {
		return nil, err
	}
	c.observe(ok)
	if ok {
		return children, nil
	}

	v, err, shared := c.group.Do(key, func() (any, error) {
		children, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		if err := c.store(key, children); err != nil {
			return nil, err
		}
		return children, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		slog.Debug("shared directory listing fetch", slog.String("key", key))
	}
	return v.([]history.Child), nil
}

func (c *ListingCache) observe(hit bool) {
	if c.observer != nil {
		c.observer.CacheLookup(hit)
	}
}

func (c *ListingCache) load(key string) ([]history.Child, bool, error) {
	var children []history.Child
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(childrenPrefix + key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &children)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read cached listing %s: %w", key, err)
	}
	return children, true, nil
}

func (c *ListingCache) store(key string, children []history.Child) error {
	data, err := json.Marshal(children)
	if err != nil {
		return fmt.Errorf("encode listing %s: %w", key, err)
	}
	err = c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(childrenPrefix+key), data)
	})
	if err != nil {
		return fmt.Errorf("store listing %s: %w", key, err)
	}
	return nil
}

// Clear drops every stored listing and saved config spec.
func (c *ListingCache) Clear() error {
	if err := c.db.DropAll(); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	return nil
}

// ClearView drops the listings stored below viewRoot. Saved config specs
// and the listings of other views are kept.
func (c *ListingCache) ClearView(viewRoot string) error {
	prefix := childrenPrefix + strings.TrimSuffix(viewRoot, "/") + "/"
	if err := c.db.DropPrefix([]byte(prefix)); err != nil {
		return fmt.Errorf("clear cache of %s: %w", viewRoot, err)
	}
	return nil
}

// SavedSpec returns the config spec text saved for viewPath.
func (c *ListingCache) SavedSpec(viewPath string) (string, bool, error) {
	var text string
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(specPrefix + viewPath))
		if err != nil {
			return err
		}
		val, err := item.ValueCopy(nil)
		text = string(val)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read saved config spec: %w", err)
	}
	return text, true, nil
}

func (c *ListingCache) SaveSpec(viewPath, text string) error {
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(specPrefix+viewPath), []byte(text))
	})
	if err != nil {
		return fmt.Errorf("save config spec: %w", err)
	}
	return nil
}

type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug(strings.TrimSpace(fmt.Sprintf(format, args...)))
}

type gcRunner struct {
	stopCh chan struct{}
	doneCh chan struct{}
}

func startGC(db *badger.DB, interval time.Duration, logger *slog.Logger) *gcRunner {
	r := &gcRunner{stopCh: make(chan struct{}), doneCh: make(chan struct{})}
	go func() {
		defer close(r.doneCh)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-r.stopCh:
				return
			case <-ticker.C:
				err := db.RunValueLogGC(0.5)
				if err != nil && !errors.Is(err, badger.ErrNoRewrite) && logger != nil {
					logger.Warn("cache value log GC failed", slog.Any("error", err))
				}
			}
		}
	}()
	return r
}

func (r *gcRunner) stop() {
	close(r.stopCh)
	<-r.doneCh
}
