// Package future provides a single-assignment result handle for asynchronous
// operations.
package future

import (
	"context"
	"sync"
	"time"
)

// Future is the read side of a single-assignment value. It can be read any
// number of times once resolved.
type Future[T any] struct {
	done chan struct{}

	mu  sync.Mutex
	set bool
	val T
	err error
}

// Promise is the write side of a Future. Only the first Set takes effect.
type Promise[T any] struct {
	f *Future[T]
}

// NewPromise returns a promise and its unresolved future.
func NewPromise[T any]() *Promise[T] {
	return &Promise[T]{f: &Future[T]{done: make(chan struct{})}}
}

// Resolved returns a future that is already resolved with v and err.
func Resolved[T any](v T, err error) *Future[T] {
	p := NewPromise[T]()
	p.Set(v, err)
	return p.f
}

// Future returns the read side of p.
func (p *Promise[T]) Future() *Future[T] { return p.f }

// Set resolves the future. It returns false, leaving the stored result
// untouched, when the future was already resolved.
func (p *Promise[T]) Set(v T, err error) bool {
	f := p.f
	f.mu.Lock()
	if f.set {
		f.mu.Unlock()
		return false
	}
	f.set = true
	f.val, f.err = v, err
	f.mu.Unlock()
	close(f.done)
	return true
}

// SetValue resolves the future with v.
func (p *Promise[T]) SetValue(v T) bool { return p.Set(v, nil) }

// SetError resolves the future with err and the zero value.
func (p *Promise[T]) SetError(err error) bool {
	var zero T
	return p.Set(zero, err)
}

// Done returns a channel that is closed once the future is resolved.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Ready reports whether the future is resolved, without blocking.
func (f *Future[T]) Ready() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the future is resolved.
func (f *Future[T]) Wait() { <-f.done }

// WaitFor blocks for at most d and reports whether the future is resolved.
func (f *Future[T]) WaitFor(d time.Duration) bool {
	if f.Ready() {
		return true
	}
	if d <= 0 {
		return false
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-f.done:
		return true
	case <-t.C:
		return false
	}
}

// Get blocks until the future is resolved or ctx ends. In the latter case it
// returns ctx.Err() and the result stays available for later reads.
func (f *Future[T]) Get(ctx context.Context) (T, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	select {
	case <-f.done:
	case <-ctx.Done():
		// Prefer a result that raced with cancellation.
		if !f.Ready() {
			var zero T
			return zero, ctx.Err()
		}
	}
	v, err, _ := f.Result()
	return v, err
}

// Result returns the resolved value and error, and false if the future is not
// resolved yet.
func (f *Future[T]) Result() (T, error, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.set {
		var zero T
		return zero, nil, false
	}
	return f.val, f.err, true
}
