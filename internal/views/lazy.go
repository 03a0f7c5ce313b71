package views

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// LoadFunc produces a view. It runs at most once at a time per Lazy.
type LoadFunc func(ctx context.Context) (View, error)

// Lazy is a view whose load step runs on first use. Concurrent first uses
// share one load. A successful load is kept for the life of the process; a
// failed one is retried by the next caller.
type Lazy struct {
	name  string
	load  LoadFunc
	group singleflight.Group
	loads atomic.Int64

	mu   sync.RWMutex
	view View
}

// NewLazy returns a deferred view.
func NewLazy(name string, load LoadFunc) *Lazy {
	return &Lazy{name: name, load: load}
}

// Loaded reports whether the load step has completed successfully.
func (l *Lazy) Loaded() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.view != nil
}

// Loads returns how many times the load step has run.
func (l *Lazy) Loads() int64 {
	return l.loads.Load()
}

// Get returns the loaded view, running the load step if needed. The caller
// stops waiting when ctx is done; the shared load keeps running for the
// other waiters.
func (l *Lazy) Get(ctx context.Context) (View, error) {
	l.mu.RLock()
	v := l.view
	l.mu.RUnlock()
	if v != nil {
		return v, nil
	}

	ch := l.group.DoChan(l.name, func() (any, error) {
		l.mu.RLock()
		v := l.view
		l.mu.RUnlock()
		if v != nil {
			return v, nil
		}

		l.loads.Add(1)
		v, err := l.load(context.WithoutCancel(ctx))
		if err != nil {
			return nil, fmt.Errorf("load view %s: %w", l.name, err)
		}
		if v == nil {
			return nil, fmt.Errorf("load view %s: loader returned no view", l.name)
		}

		l.mu.Lock()
		l.view = v
		l.mu.Unlock()
		return v, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(View), nil
	case <-ctx.Done():
		return nil, fmt.Errorf("load view %s: %w", l.name, ctx.Err())
	}
}

// Render loads the view if needed and renders it.
func (l *Lazy) Render(ctx context.Context, w io.Writer, data Data) error {
	v, err := l.Get(ctx)
	if err != nil {
		return err
	}
	return v.Render(ctx, w, data)
}
