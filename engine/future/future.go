// Package future provides a minimal typed future/promise pair and structured joins
// used to run dependency resolution concurrently.
package future

import (
	"context"
	"sync"
)

// Future is the read side of an asynchronous result. It completes exactly once.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Promise is the write side of a Future.
type Promise[T any] struct {
	f    *Future[T]
	once sync.Once
}

// NewPromise creates an unresolved promise.
//
// Returns:
//   - *Promise[T]: the promise; its Future completes on Resolve or Reject
func NewPromise[T any]() *Promise[T] {
	return &Promise[T]{f: &Future[T]{done: make(chan struct{})}}
}

// Future returns the future completed by this promise.
func (p *Promise[T]) Future() *Future[T] {
	return p.f
}

// Resolve completes the future with v. Later calls to Resolve or Reject are ignored.
func (p *Promise[T]) Resolve(v T) {
	p.complete(v, nil)
}

// Reject completes the future with err. Later calls to Resolve or Reject are ignored.
func (p *Promise[T]) Reject(err error) {
	var zero T
	p.complete(zero, err)
}

func (p *Promise[T]) complete(v T, err error) {
	p.once.Do(func() {
		p.f.value = v
		p.f.err = err
		close(p.f.done)
	})
}

// Go runs fn on a new goroutine and returns a future of its result.
//
// Parameters:
//   - fn: the function to run
//
// Returns:
//   - *Future[T]: completes with fn's return values
func Go[T any](fn func() (T, error)) *Future[T] {
	p := NewPromise[T]()
	go func() {
		v, err := fn()
		if err != nil {
			p.Reject(err)
			return
		}
		p.Resolve(v)
	}()
	return p.f
}

// Resolved returns an already completed future holding v.
func Resolved[T any](v T) *Future[T] {
	p := NewPromise[T]()
	p.Resolve(v)
	return p.f
}

// Rejected returns an already failed future holding err.
func Rejected[T any](err error) *Future[T] {
	p := NewPromise[T]()
	p.Reject(err)
	return p.f
}

// Done returns a channel closed when the future completes.
func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the future completes or ctx is done.
//
// Parameters:
//   - ctx: bounds the wait; the underlying work is not cancelled
//
// Returns:
//   - T: the resolved value
//   - error: the rejection error or ctx.Err()
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Then chains fn onto f. A rejection of f skips fn and propagates the error.
//
// Parameters:
//   - ctx: bounds the wait on f
//   - f: the source future
//   - fn: the continuation
//
// Returns:
//   - *Future[U]: completes with fn's result
func Then[T, U any](ctx context.Context, f *Future[T], fn func(T) (U, error)) *Future[U] {
	return Go(func() (U, error) {
		v, err := f.Await(ctx)
		if err != nil {
			var zero U
			return zero, err
		}
		return fn(v)
	})
}

// Settled waits for f and reports its outcome without failing, like a catch handler.
func Settled[T any](ctx context.Context, f *Future[T]) *Future[T] {
	return Go(func() (T, error) {
		v, err := f.Await(ctx)
		if err != nil && ctx.Err() == nil {
			var zero T
			return zero, nil
		}
		return v, err
	})
}

type outcome struct {
	index int
	err   error
}

// WaitAll joins futures, preserving input order in the result.
// The first failure is returned as soon as it is observed without waiting for the rest.
//
// Parameters:
//   - ctx: bounds the wait
//   - futures: the futures to join
//
// Returns:
//   - []T: the resolved values in input order
//   - error: the first observed failure
func WaitAll[T any](ctx context.Context, futures ...*Future[T]) ([]T, error) {
	results := make([]T, len(futures))
	if len(futures) == 0 {
		return results, nil
	}

	ch := make(chan outcome, len(futures))
	for i, f := range futures {
		go func() {
			select {
			case <-f.done:
				if f.err == nil {
					results[i] = f.value
				}
				ch <- outcome{index: i, err: f.err}
			case <-ctx.Done():
				ch <- outcome{index: i, err: ctx.Err()}
			}
		}()
	}

	for range futures {
		select {
		case o := <-ch:
			if o.err != nil {
				return nil, o.err
			}
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return results, nil
}

// All adapts a list of typed futures to a single future of their joined values.
func All[T any](ctx context.Context, futures ...*Future[T]) *Future[[]T] {
	return Go(func() ([]T, error) {
		return WaitAll(ctx, futures...)
	})
}
