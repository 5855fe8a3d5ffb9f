package livetree

import (
	"context"
	"fmt"
	"sync"
)

// OnDisconnect queues writes to perform when the Store goes away. With
// no server watching the connection, "goes away" means a graceful
// Close: the writes never happen if the process dies first.
type OnDisconnect struct {
	store *Store
	ref   Ref

	mu  sync.Mutex
	ops []func(context.Context) *Ack
}

// OnDisconnect returns the disconnect handle for ref. Each call returns
// a new handle; Cancel only clears the operations queued on its own
// handle.
func (s *Store) OnDisconnect(ref Ref) *OnDisconnect {
	return &OnDisconnect{store: s, ref: ref}
}

// Set queues writing v at the ref.
func (d *OnDisconnect) Set(v Value) *Ack {
	return d.queue(v, func(ctx context.Context) *Ack {
		return d.store.Set(ctx, d.ref, v)
	})
}

// Update queues merging partial into the mapping at the ref.
func (d *OnDisconnect) Update(partial Node) *Ack {
	return d.queue(partial, func(ctx context.Context) *Ack {
		return d.store.Update(ctx, d.ref, partial)
	})
}

// Remove queues deleting the value at the ref.
func (d *OnDisconnect) Remove() *Ack {
	return d.queue(nil, func(ctx context.Context) *Ack {
		return d.store.Remove(ctx, d.ref)
	})
}

// Cancel drops every operation queued on this handle.
func (d *OnDisconnect) Cancel() *Ack {
	d.mu.Lock()
	d.ops = nil
	d.mu.Unlock()
	return resolvedAck("", nil)
}

// queue registers op, which writes arg. The returned Ack resolves once
// op is registered, not when it runs.
func (d *OnDisconnect) queue(arg Value, op func(context.Context) *Ack) *Ack {
	if err := Validate(arg); err != nil {
		return resolvedAck("", err)
	}
	s := d.store
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return resolvedAck("", ErrClosed)
	}
	d.mu.Lock()
	if len(d.ops) == 0 {
		s.disconnects = append(s.disconnects, d)
	}
	d.ops = append(d.ops, op)
	d.mu.Unlock()
	s.mu.Unlock()
	return resolvedAck("", nil)
}

func (d *OnDisconnect) run(ctx context.Context) error {
	d.mu.Lock()
	ops := d.ops
	d.ops = nil
	d.mu.Unlock()
	for _, op := range ops {
		if err := op(ctx).Wait(ctx); err != nil {
			return fmt.Errorf("on disconnect %s: %w", d.ref, err)
		}
	}
	return nil
}
