package deadline

import (
	"context"
	"time"
)

// Outcome is the result of a race: either the computation resolved strictly
// before the deadline, or the wait was abandoned and Pending holds the
// still-running computation.
type Outcome[T any] struct {
	resolved bool
	value    T
	err      error
	pending  *Future[T]
}

// Resolved reports whether the computation won the race.
func (o Outcome[T]) Resolved() bool {
	return o.resolved
}

// TimedOut reports whether the deadline won the race.
func (o Outcome[T]) TimedOut() bool {
	return !o.resolved
}

// Value returns the computation's result. It is the zero value when the race
// timed out.
func (o Outcome[T]) Value() (T, error) {
	return o.value, o.err
}

// Pending returns the handle to the timed-out computation, or nil when the
// race resolved. Dropping it leaves the computation running with its result
// unobservable.
func (o Outcome[T]) Pending() *Future[T] {
	return o.pending
}

// Race waits up to d for f. A non-positive d only accepts a Future that has
// already resolved.
func Race[T any](ctx context.Context, f *Future[T], d time.Duration) Outcome[T] {
	return RaceUntil(ctx, f, now().Add(d))
}

// RaceUntil waits for f until the deadline instant. Several races may share
// one deadline; each is independent. The computation is never cancelled. If
// ctx ends first the race is reported as timed out.
func RaceUntil[T any](ctx context.Context, f *Future[T], deadline time.Time) Outcome[T] {
	if f.resolvedBefore(deadline) {
		return resolvedOutcome(f)
	}

	wait := deadline.Sub(now())
	if wait <= 0 {
		return Outcome[T]{pending: f}
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-f.Done():
		if f.resolvedBefore(deadline) {
			return resolvedOutcome(f)
		}
		return Outcome[T]{pending: f}
	case <-timer.C:
		return Outcome[T]{pending: f}
	case <-ctx.Done():
		return Outcome[T]{pending: f}
	}
}

func resolvedOutcome[T any](f *Future[T]) Outcome[T] {
	v, err, _ := f.Peek()
	return Outcome[T]{resolved: true, value: v, err: err}
}
