package store

import "context"

// Pending is the result of an operation started with one of the Async
// methods. Dropping a Pending is fine; the operation still completes.
type Pending[T any] struct {
	done   chan struct{}
	val    T
	err    error
	issued bool
}

// start runs fn on its own goroutine
func start[T any](fn func() (T, error)) *Pending[T] {
	p := &Pending[T]{done: make(chan struct{}), issued: true}
	go func() {
		defer close(p.done)
		p.val, p.err = fn()
	}()
	return p
}

// failed returns an already completed Pending that never reached the connection
func failed[T any](err error) *Pending[T] {
	p := &Pending[T]{done: make(chan struct{}), err: err}
	close(p.done)
	return p
}

// Done is closed once the operation has completed
func (p *Pending[T]) Done() <-chan struct{} {
	return p.done
}

// Issued reports whether the operation was handed to the connection. It is
// false only when the operation failed before that, e.g. on a serialize error.
func (p *Pending[T]) Issued() bool {
	return p.issued
}

// Wait blocks until the operation completes or ctx is done. Cancelling ctx
// stops the wait, not the operation.
func (p *Pending[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		return p.val, p.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
