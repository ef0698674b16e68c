// Package bridge turns callback-style store primitives into blocking calls.
package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// TimeoutError is returned when a callback did not fire within the timeout
type TimeoutError struct {
	Op      string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: no result after %s", e.Op, e.Timeout)
}

type result[T any] struct {
	value T
	err   error
}

// Await runs start and blocks until the completion it was handed fires, ctx
// is done or timeout elapses. A zero timeout waits for as long as ctx allows.
//
// complete may be called from any goroutine. Only the first call counts; any
// later call, or a call after Await gave up, is dropped without blocking.
func Await[T any](ctx context.Context, op string, timeout time.Duration, start func(complete func(T, error))) (T, error) {
	var zero T
	ch := make(chan result[T], 1)
	var once sync.Once
	complete := func(v T, err error) {
		once.Do(func() { ch <- result[T]{value: v, err: err} })
	}

	start(complete)

	var timeoutCh <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timeoutCh = timer.C
	}

	select {
	case r := <-ch:
		return r.value, r.err
	case <-ctx.Done():
		return zero, ctx.Err()
	case <-timeoutCh:
		return zero, &TimeoutError{Op: op, Timeout: timeout}
	}
}
