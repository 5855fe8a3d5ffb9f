package livetree

import "context"

// Ack is the acknowledgement of a mutation. It resolves once the change
// has been applied locally and a persistence attempt has finished; it
// says nothing about other instances having received it.
type Ack struct {
	done chan struct{}
	key  string
	err  error
}

func newAck(key string) *Ack {
	return &Ack{done: make(chan struct{}), key: key}
}

func resolvedAck(key string, err error) *Ack {
	a := newAck(key)
	a.resolve(err)
	return a
}

func (a *Ack) resolve(err error) {
	a.err = err
	close(a.done)
}

// Done is closed when the acknowledgement resolves.
func (a *Ack) Done() <-chan struct{} {
	return a.done
}

// Err returns the failure, if any, once Done is closed, and nil before.
func (a *Ack) Err() error {
	select {
	case <-a.done:
		return a.err
	default:
		return nil
	}
}

// Wait blocks until the acknowledgement resolves or ctx ends.
func (a *Ack) Wait(ctx context.Context) error {
	select {
	case <-a.done:
		return a.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Key is the entry ID assigned by Push, or "" for other operations.
// It is valid even when the acknowledgement failed.
func (a *Ack) Key() string {
	return a.key
}
