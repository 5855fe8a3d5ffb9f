package livetree

import (
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/exp/maps"
)

type subscription struct {
	id     uint64
	path   Path
	f      Listener
	active atomic.Bool

	mu      sync.Mutex
	pending []Value
	running bool
}

func (sub *subscription) enqueue(v Value) {
	sub.mu.Lock()
	sub.pending = append(sub.pending, v)
	sub.mu.Unlock()
}

// registry maps paths to their subscriptions. It has no lock of its
// own; the Store guards it with the same lock as the tree.
type registry struct {
	nextID uint64
	byPath map[string]map[uint64]*subscription
}

func newRegistry() *registry {
	return &registry{byPath: map[string]map[uint64]*subscription{}}
}

func (r *registry) add(p Path, f Listener) *subscription {
	r.nextID++
	sub := &subscription{id: r.nextID, path: p, f: f}
	sub.active.Store(true)
	key := p.String()
	subs, ok := r.byPath[key]
	if !ok {
		subs = map[uint64]*subscription{}
		r.byPath[key] = subs
	}
	subs[sub.id] = sub
	return sub
}

// remove deregisters sub. Removing twice is a no-op.
func (r *registry) remove(sub *subscription) bool {
	key := sub.path.String()
	subs, ok := r.byPath[key]
	if !ok {
		return false
	}
	if _, ok := subs[sub.id]; !ok {
		return false
	}
	delete(subs, sub.id)
	if len(subs) == 0 {
		delete(r.byPath, key)
	}
	return true
}

// listeners returns the subscriptions on exactly p, oldest first.
func (r *registry) listeners(p Path) []*subscription {
	subs := r.byPath[p.String()]
	out := maps.Values(subs)
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// paths returns every path with at least one subscription, sorted.
func (r *registry) paths() []Path {
	keys := maps.Keys(r.byPath)
	sort.Strings(keys)
	out := make([]Path, len(keys))
	for i, key := range keys {
		out[i] = ParsePath(key)
	}
	return out
}

func (r *registry) notify(p Path, v Value, b *batch) {
	for _, sub := range r.listeners(p) {
		b.add(sub, v)
	}
}

// batch is the set of subscriptions one operation notified, in the
// order it notified them. Values are queued on each subscription while
// the Store lock is held, so every subscription sees mutation order.
type batch struct {
	subs []*subscription
	seen map[uint64]bool
}

func (b *batch) add(sub *subscription, v Value) {
	sub.enqueue(v)
	if b.seen == nil {
		b.seen = map[uint64]bool{}
	}
	if !b.seen[sub.id] {
		b.seen[sub.id] = true
		b.subs = append(b.subs, sub)
	}
}

// dispatcher runs listeners on the goroutine that changed the store.
// A listener is never called concurrently with itself: if it is already
// running, on another goroutine or further up this one's stack, its new
// values are delivered by that call once the listener returns.
type dispatcher struct {
	onDeliver func()
}

func (d *dispatcher) deliver(b *batch) {
	for _, sub := range b.subs {
		sub.mu.Lock()
		if sub.running {
			sub.mu.Unlock()
			continue
		}
		sub.running = true
		sub.mu.Unlock()
		d.run(sub)
	}
}

// run delivers sub's pending values. The caller must have set
// sub.running.
func (d *dispatcher) run(sub *subscription) {
	finished := false
	defer func() {
		if !finished {
			// the listener panicked
			sub.mu.Lock()
			sub.running = false
			sub.mu.Unlock()
		}
	}()
	for {
		sub.mu.Lock()
		if len(sub.pending) == 0 || !sub.active.Load() {
			sub.pending = nil
			sub.running = false
			sub.mu.Unlock()
			finished = true
			return
		}
		v := sub.pending[0]
		sub.pending[0] = nil
		sub.pending = sub.pending[1:]
		sub.mu.Unlock()

		if d.onDeliver != nil {
			d.onDeliver()
		}
		sub.f(v)
	}
}
