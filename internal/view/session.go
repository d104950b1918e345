package view

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/thiagokokada/ccview-go/internal/ccpath"
)

// SessionRegistry serializes work on the same view. Work on different views
// proceeds in parallel.
type SessionRegistry struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{slots: make(map[string]chan struct{})}
}

// Acquire blocks until no other session holds viewPath or ctx is done. The
// returned release func is safe to call more than once.
func (r *SessionRegistry) Acquire(ctx context.Context, viewPath string) (release func(), err error) {
	key, err := ccpath.NormalizeRequired(viewPath)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	slot := r.slot(key)
	lease := uuid.NewString()

	select {
	case slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	slog.Debug("view session acquired", slog.String("view", key), slog.String("lease", lease))

	var once sync.Once
	return func() {
		once.Do(func() {
			<-slot
			slog.Debug("view session released", slog.String("view", key), slog.String("lease", lease))
		})
	}, nil
}

func (r *SessionRegistry) slot(key string) chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.slots[key]
	if !ok {
		s = make(chan struct{}, 1)
		r.slots[key] = s
	}
	return s
}
