package resource

import (
	"context"
	"sync"
)

// Deferred is the pending outcome of an action call. It settles exactly once,
// after the call's final record has been dispatched.
type Deferred struct {
	done   chan struct{}
	once   sync.Once
	result *Result
	err    error
}

func newDeferred() *Deferred {
	return &Deferred{done: make(chan struct{})}
}

func (d *Deferred) settle(result *Result, err error) {
	d.once.Do(func() {
		d.result = result
		d.err = err
		close(d.done)
	})
}

// Done is closed once the call has settled.
func (d *Deferred) Done() <-chan struct{} {
	return d.done
}

// Wait blocks until the call settles or ctx is done. A ctx error leaves the
// call running; its records are still dispatched.
func (d *Deferred) Wait(ctx context.Context) (*Result, error) {
	select {
	case <-d.done:
		return d.result, d.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Await blocks until the call settles.
func (d *Deferred) Await() (*Result, error) {
	<-d.done
	return d.result, d.err
}
