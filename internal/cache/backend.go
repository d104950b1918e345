package cache

import (
	"context"

	"github.com/thiagokokada/ccview-go/internal/ccase"
	"github.com/thiagokokada/ccview-go/internal/history"
)

type cachedBackend struct {
	ccase.Backend
	cache *ListingCache
}

// WrapBackend serves ListChildren of versioned directories from c.
func WrapBackend(b ccase.Backend, c *ListingCache) ccase.Backend {
	if c == nil {
		return b
	}
	return &cachedBackend{Backend: b, cache: c}
}

func (b *cachedBackend) ListChildren(ctx context.Context, dirPathWithVersion string) ([]history.Child, error) {
	return b.cache.Children(ctx, dirPathWithVersion, func(ctx context.Context) ([]history.Child, error) {
		return b.Backend.ListChildren(ctx, dirPathWithVersion)
	})
}
