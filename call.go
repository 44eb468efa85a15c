package caslist

import (
	"context"
	"sync"
)

// Call is the completion handle of one triggered operation.
// It is resolved exactly once; every waiter observes the same result.
type Call[T any] struct {
	done chan struct{}
	once sync.Once
	val  T
	err  error
}

func newCall[T any]() *Call[T] {
	return &Call[T]{done: make(chan struct{})}
}

// Resolved returns a handle that is already complete.
func Resolved[T any](v T, err error) *Call[T] {
	c := newCall[T]()
	c.resolve(v, err)
	return c
}

// Done is closed once the result is available.
func (c *Call[T]) Done() <-chan struct{} { return c.done }

// Wait blocks until the call completes or ctx is done.
// A ctx error does not affect the call itself.
func (c *Call[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-c.done:
		return c.val, c.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Peek returns the result without blocking; ok is false while in flight.
func (c *Call[T]) Peek() (v T, ok bool, err error) {
	select {
	case <-c.done:
		return c.val, true, c.err
	default:
		var zero T
		return zero, false, nil
	}
}

func (c *Call[T]) resolve(v T, err error) {
	c.once.Do(func() {
		c.val = v
		c.err = err
		close(c.done)
	})
}

// Go runs fn on a new goroutine and returns its completion handle.
func Go[T any](fn func() (T, error)) *Call[T] {
	c := newCall[T]()
	go func() {
		v, err := fn()
		c.resolve(v, err)
	}()
	return c
}
