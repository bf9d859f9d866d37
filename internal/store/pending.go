package store

import (
	"context"
	"sync"
)

// Pending reports the outcome of the persistence write queued by a store
// mutation. The in-memory change has already happened when a Pending is
// returned; callers that do not care about durability may drop it.
type Pending struct {
	done chan struct{}
	once sync.Once
	err  error
}

func newPending() *Pending {
	return &Pending{done: make(chan struct{})}
}

func resolvedPending(err error) *Pending {
	p := newPending()
	p.resolve(err)
	return p
}

func (p *Pending) resolve(err error) {
	p.once.Do(func() {
		p.err = err
		close(p.done)
	})
}

// Done is closed once the write has been applied or has failed
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Err returns the write error after Done is closed, and nil before
func (p *Pending) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Wait blocks until the write finishes or ctx is done
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
