package livetree

import (
	"context"
	"sync"
)

// Bus is an in-process Transport hub: every member receives what the
// others publish, the way browser tabs share a broadcast channel. Each
// member gets messages in publish order on its own goroutine.
type Bus struct {
	mu      sync.Mutex
	members map[*busMember]struct{}
	pending sync.WaitGroup
}

// NewBus returns an empty Bus.
func NewBus() *Bus {
	return &Bus{members: map[*busMember]struct{}{}}
}

// Join adds a member to the bus and returns its Transport.
func (b *Bus) Join() Transport {
	m := &busMember{bus: b, handlers: map[uint64]func([]byte){}}
	m.cond = sync.NewCond(&m.mu)
	b.mu.Lock()
	b.members[m] = struct{}{}
	b.mu.Unlock()
	go m.run()
	return m
}

// Settle waits until every published message has been handled,
// including messages published by handlers.
func (b *Bus) Settle() {
	b.pending.Wait()
}

type busMember struct {
	bus *Bus

	mu       sync.Mutex
	cond     *sync.Cond
	queue    [][]byte
	handlers map[uint64]func([]byte)
	nextID   uint64
	closed   bool
}

func (m *busMember) Publish(ctx context.Context, msg []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.bus.mu.Lock()
	defer m.bus.mu.Unlock()
	if _, ok := m.bus.members[m]; !ok {
		return ErrClosed
	}
	for other := range m.bus.members {
		if other != m {
			other.enqueue(msg)
		}
	}
	return nil
}

func (m *busMember) enqueue(msg []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	m.bus.pending.Add(1)
	m.queue = append(m.queue, append([]byte(nil), msg...))
	m.cond.Signal()
}

func (m *busMember) Subscribe(f func([]byte)) func() {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.handlers[id] = f
	m.mu.Unlock()
	return func() {
		m.mu.Lock()
		delete(m.handlers, id)
		m.mu.Unlock()
	}
}

func (m *busMember) Close() error {
	m.bus.mu.Lock()
	delete(m.bus.members, m)
	m.bus.mu.Unlock()

	m.mu.Lock()
	m.closed = true
	m.cond.Signal()
	m.mu.Unlock()
	return nil
}

func (m *busMember) run() {
	for {
		m.mu.Lock()
		for len(m.queue) == 0 && !m.closed {
			m.cond.Wait()
		}
		if len(m.queue) == 0 {
			m.mu.Unlock()
			return
		}
		msg := m.queue[0]
		m.queue = m.queue[1:]
		handlers := make([]func([]byte), 0, len(m.handlers))
		for _, f := range m.handlers {
			handlers = append(handlers, f)
		}
		m.mu.Unlock()

		for _, f := range handlers {
			f(msg)
		}
		m.bus.pending.Done()
	}
}
