package retry

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Future is the pending outcome of a call started with Go.
type Future[R any] struct {
	done  chan struct{}
	value R
	err   error
}

func newFuture[R any]() *Future[R] {
	return &Future[R]{done: make(chan struct{})}
}

func (f *Future[R]) resolve(value R, err error) {
	f.value = value
	f.err = err
	close(f.done)
}

// Done is closed once the call has finished.
func (f *Future[R]) Done() <-chan struct{} {
	return f.done
}

// Await blocks until the call finishes or ctx is done. Giving up on the
// wait does not stop the call; cancel the context passed to Go for that.
func (f *Future[R]) Await(ctx context.Context) (R, error) {
	select {
	case <-f.done:
		return f.value, f.err
	case <-ctx.Done():
		var zero R
		return zero, ctx.Err()
	}
}

// Resolved returns a Future that has already finished with value and err.
func Resolved[R any](value R, err error) *Future[R] {
	f := newFuture[R]()
	f.resolve(value, err)
	return f
}

// Then derives a Future by applying fn to the value of f once it succeeds.
// An error from f is passed through unchanged.
func Then[R, T any](f *Future[R], fn func(R) (T, error)) *Future[T] {
	out := newFuture[T]()
	go func() {
		<-f.done
		if f.err != nil {
			var zero T
			out.resolve(zero, f.err)
			return
		}
		out.resolve(fn(f.value))
	}()
	return out
}

// Gather waits for every future and returns their values in order.
// A failed future does not stop the others; once all have finished, the
// first error observed is returned.
func Gather[R any](ctx context.Context, futures []*Future[R]) ([]R, error) {
	values := make([]R, len(futures))
	var g errgroup.Group
	for i, f := range futures {
		i, f := i, f
		g.Go(func() error {
			v, err := f.Await(ctx)
			if err != nil {
				return err
			}
			values[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return values, nil
}
