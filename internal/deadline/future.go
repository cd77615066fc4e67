// Package deadline races asynchronous computations against a deadline without
// cancelling them. A computation that misses its deadline keeps running; its
// eventual value stays reachable through the Future handle.
package deadline

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// now is overridden in tests to provide deterministic timings.
var now = time.Now

// PanicError wraps a panic recovered from a computation started with Go.
type PanicError struct {
	Value any
}

func (e PanicError) Error() string {
	return fmt.Sprintf("deadline: panic in computation: %v", e.Value)
}

// Future is a handle to a computation that resolves exactly once. Reading a
// resolved Future returns the cached result; the computation is never re-run.
type Future[T any] struct {
	done chan struct{}

	mu         sync.Mutex
	value      T
	err        error
	resolvedAt time.Time
	callbacks  []func(T, error)
}

// Go starts fn on its own goroutine and returns its handle.
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) *Future[T] {
	f := newFuture[T]()
	go func() {
		var (
			v   T
			err error
		)
		defer func() {
			if r := recover(); r != nil {
				err = PanicError{Value: r}
			}
			f.resolve(v, err)
		}()
		v, err = fn(ctx)
	}()
	return f
}

// Resolved returns a Future that is already complete with v.
func Resolved[T any](v T) *Future[T] {
	f := newFuture[T]()
	f.resolve(v, nil)
	return f
}

func newFuture[T any]() *Future[T] {
	return &Future[T]{done: make(chan struct{})}
}

func (f *Future[T]) resolve(v T, err error) {
	f.mu.Lock()
	f.value = v
	f.err = err
	f.resolvedAt = now()
	callbacks := f.callbacks
	f.callbacks = nil
	close(f.done)
	f.mu.Unlock()

	for _, cb := range callbacks {
		cb(v, err)
	}
}

// Done is closed once the computation has resolved.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Peek returns the result without blocking. ok is false while the
// computation is still running.
func (f *Future[T]) Peek() (v T, err error, ok bool) {
	select {
	case <-f.done:
	default:
		return v, nil, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.value, f.err, true
}

// Await blocks until the computation resolves or ctx is done. Abandoning the
// wait does not affect the computation.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		v, err, _ := f.Peek()
		return v, err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// OnComplete registers fn to run once the computation resolves. If it has
// already resolved, fn runs immediately on the caller's goroutine; otherwise
// it runs on the computation's goroutine.
func (f *Future[T]) OnComplete(fn func(T, error)) {
	f.mu.Lock()
	select {
	case <-f.done:
		v, err := f.value, f.err
		f.mu.Unlock()
		fn(v, err)
		return
	default:
	}
	f.callbacks = append(f.callbacks, fn)
	f.mu.Unlock()
}

func (f *Future[T]) resolvedBefore(deadline time.Time) bool {
	select {
	case <-f.done:
	default:
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resolvedAt.Before(deadline)
}

// Map returns a Future that resolves with fn applied to f's value once f
// resolves. Errors pass through unchanged and fn is not called for them.
func Map[T, U any](f *Future[T], fn func(T) U) *Future[U] {
	out := newFuture[U]()
	f.OnComplete(func(v T, err error) {
		var u U
		if err == nil {
			u = fn(v)
		}
		out.resolve(u, err)
	})
	return out
}
