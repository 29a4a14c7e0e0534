// Package workerpool offloads CPU-bound work (PDF parsing, sentiment
// scoring) to a bounded set of goroutines. Callers block until their task
// finishes or their context ends.
package workerpool

import (
	"context"
	"fmt"
	"runtime"

	apperrors "agency-assistant/internal/common/errors"

	"golang.org/x/sync/semaphore"
)

type Pool struct {
	sem  *semaphore.Weighted
	size int
}

// New returns a pool running at most size tasks at once. A size below one
// uses GOMAXPROCS.
func New(size int) *Pool {
	if size < 1 {
		size = runtime.GOMAXPROCS(0)
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), size: size}
}

func (p *Pool) Size() int { return p.size }

type result[T any] struct {
	value T
	err   error
}

// Submit runs fn on the pool and waits for it. When ctx ends first the
// caller returns immediately with a cancelled or timeout error; fn keeps
// its slot until it returns and its result is discarded.
func Submit[T any](ctx context.Context, p *Pool, op string, fn func() (T, error)) (T, error) {
	var zero T
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return zero, contextError(ctx, op)
	}

	done := make(chan result[T], 1)
	go func() {
		defer p.sem.Release(1)
		defer func() {
			if r := recover(); r != nil {
				done <- result[T]{err: apperrors.NewInternalError(fmt.Errorf("%s panicked: %v", op, r))}
			}
		}()
		v, err := fn()
		done <- result[T]{value: v, err: err}
	}()

	select {
	case r := <-done:
		return r.value, r.err
	case <-ctx.Done():
		return zero, contextError(ctx, op)
	}
}

// Map runs fn over every input on the pool and returns results in input
// order. The first error cancels the remaining tasks.
func Map[In, Out any](ctx context.Context, p *Pool, op string, in []In, fn func(In) (Out, error)) ([]Out, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	out := make([]Out, len(in))
	errs := make(chan error, len(in))
	for i := range in {
		go func(i int) {
			v, err := Submit(ctx, p, op, func() (Out, error) { return fn(in[i]) })
			if err == nil {
				out[i] = v
			}
			errs <- err
		}(i)
	}

	var first error
	for range in {
		if err := <-errs; err != nil && first == nil {
			first = err
			cancel()
		}
	}
	if first != nil {
		return nil, first
	}
	return out, nil
}

func contextError(ctx context.Context, op string) error {
	if ctx.Err() == context.DeadlineExceeded {
		return apperrors.NewTimeoutError(op, ctx.Err())
	}
	return apperrors.NewCancelledError(op)
}
