package service

import (
	"context"
	"sync"
)

// Lazy builds a value on first use and keeps it. A failed build is not
// cached, so the next Get tries again.
type Lazy[T any] struct {
	mu    sync.Mutex
	build func(ctx context.Context) (T, error)
	value T
	ok    bool
}

func NewLazy[T any](build func(ctx context.Context) (T, error)) *Lazy[T] {
	return &Lazy[T]{build: build}
}

func (l *Lazy[T]) Get(ctx context.Context) (T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ok {
		return l.value, nil
	}
	v, err := l.build(ctx)
	if err != nil {
		var zero T
		return zero, err
	}
	l.value, l.ok = v, true
	return v, nil
}

// Loaded reports whether a value has been built
func (l *Lazy[T]) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ok
}

// Peek returns the value without building it
func (l *Lazy[T]) Peek() (T, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value, l.ok
}
