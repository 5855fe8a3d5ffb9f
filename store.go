package livetree

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/golang/glog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Store is a Database kept in memory, persisted as one snapshot record,
// and replicated to other instances through an optional Transport.
//
// All mutations, and all changes to subscriptions, are serialized by one
// lock. Listeners run without any lock held and may call back into the
// Store.
type Store struct {
	mu          sync.RWMutex
	root        Node
	seq         uint64
	registry    *registry
	disconnects []*OnDisconnect
	closing     bool
	closed      bool

	dispatch dispatcher

	// persistMu orders snapshot writes; taken before mu.
	persistMu       sync.Mutex
	persistedSeq    uint64
	persistedDigest string
	seen            SeenCache

	persist           Persist
	key               string
	codec             Codec
	transport         Transport
	unsubscribe       func()
	origin            string
	notifyChangedOnly bool
	metrics           *metrics
	tracer            trace.Tracer
}

var _ Database = (*Store)(nil)

// Open creates a Store holding the last snapshot persisted under
// config.Key, or an empty tree if there is none. A record that cannot
// be decoded is logged and replaced on the next write. A nil config
// gives an in-memory, single-instance Store.
func Open(ctx context.Context, config *Config) (*Store, error) {
	if config == nil {
		config = &Config{}
	}
	s := &Store{
		registry:          newRegistry(),
		persist:           config.Persist,
		key:               config.Key,
		codec:             config.Codec,
		transport:         config.Transport,
		origin:            NewEntryID(),
		notifyChangedOnly: config.NotifyChangedOnly,
		metrics:           newMetrics(config.Registerer, config.MetricsNamespace),
		tracer:            otel.Tracer("github.com/jrhy/livetree"),
	}
	if s.persist == nil {
		s.persist = NewInMemoryStore()
	}
	if s.key == "" {
		s.key = DefaultKey
	}
	if s.codec == nil {
		s.codec = JSONCodec
	}
	s.seen = config.SeenCache
	if s.seen == nil {
		size := config.SeenMessages
		if size <= 0 {
			size = DefaultSeenMessages
		}
		s.seen = NewSeenCache(size)
	}
	s.dispatch.onDeliver = s.metrics.notifications.Inc

	root, digest, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	s.root = root
	s.persistedDigest = digest
	if s.transport != nil {
		s.unsubscribe = s.transport.Subscribe(s.receive)
	}
	glog.V(1).Infof("livetree: opened %s as %s (%d top-level keys)", s.key, s.origin, len(root))
	return s, nil
}

func (s *Store) load(ctx context.Context) (Node, string, error) {
	b, err := s.persist.Load(ctx, s.key)
	if errors.Is(err, ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
		return Node{}, "", nil
	}
	if err != nil {
		return nil, "", &PersistenceError{Op: "load", Key: s.key, Err: err}
	}
	v, err := s.codec.Unmarshal(b)
	if err == nil {
		err = Validate(v)
	}
	if err != nil {
		glog.Warningf("livetree: ignoring unreadable snapshot %s: %v", s.key, err)
		return Node{}, "", nil
	}
	node, ok := v.(Node)
	if !ok && !IsNull(v) {
		glog.Warningf("livetree: ignoring snapshot %s holding a %s", s.key, kindOf(v))
		return Node{}, "", nil
	}
	if node == nil {
		node = Node{}
	}
	return node, Digest(b), nil
}

// Ref returns a handle on path.
func (s *Store) Ref(path string) Ref {
	return NewRef(path)
}

// Get returns the current value at ref, or Null if there is none.
func (s *Store) Get(ref Ref) Value {
	s.mu.RLock()
	root := s.root
	s.mu.RUnlock()
	return Read(root, ref.path)
}

// Subscribe calls f with the current value at ref, and again after every
// change to it, until cancel is called. cancel may be called more than
// once, and from inside f; once it returns, f is not called again.
func (s *Store) Subscribe(ref Ref, f Listener) (cancel func()) {
	s.mu.Lock()
	sub := s.registry.add(ref.path, f)
	// claimed before other writers can see it, so the current value is
	// delivered here, ahead of any change queued meanwhile
	sub.mu.Lock()
	sub.running = true
	sub.pending = append(sub.pending, Read(s.root, ref.path))
	sub.mu.Unlock()
	s.mu.Unlock()
	s.metrics.subscriptions.Inc()
	s.dispatch.run(sub)

	var once sync.Once
	return func() {
		once.Do(func() {
			sub.active.Store(false)
			s.mu.Lock()
			s.registry.remove(sub)
			s.mu.Unlock()
			s.metrics.subscriptions.Dec()
		})
	}
}

// Set replaces the value at ref with v.
func (s *Store) Set(ctx context.Context, ref Ref, v Value) *Ack {
	return s.mutate(ctx, "set", ref, "", v, func(root Node) Value {
		return Write(root, ref.path, v)
	})
}

// Update replaces the keys of the mapping at ref that appear in
// partial, keeping the others.
func (s *Store) Update(ctx context.Context, ref Ref, partial Node) *Ack {
	return s.mutate(ctx, "update", ref, "", partial, func(root Node) Value {
		return Merge(root, ref.path, partial)
	})
}

// Push adds v to the mapping at ref under a new entry ID, returned by
// the Ack's Key.
func (s *Store) Push(ctx context.Context, ref Ref, v Value) *Ack {
	id := NewEntryID()
	return s.mutate(ctx, "push", ref, id, v, func(root Node) Value {
		return Append(root, ref.path, v, id)
	})
}

// Remove deletes the value at ref.
func (s *Store) Remove(ctx context.Context, ref Ref) *Ack {
	return s.mutate(ctx, "remove", ref, "", nil, func(root Node) Value {
		return Delete(root, ref.path)
	})
}

// mutate validates arg, applies f to the tree, persists and publishes
// the result, and notifies subscribers. An invalid arg leaves the tree
// untouched.
func (s *Store) mutate(ctx context.Context, op string, ref Ref, key string, arg Value, f func(Node) Value) *Ack {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "livetree."+op, trace.WithAttributes(
		attribute.String("livetree.path", ref.path.String()),
	))
	defer span.End()

	notified := &batch{}
	err := Validate(arg)
	if err == nil {
		notified, err = s.apply(ref.path, f)
	}
	if err == nil {
		err = s.flush(ctx)
	}
	s.dispatch.deliver(notified)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		glog.V(2).Infof("livetree: %s %s: %v", op, ref, err)
	}
	s.metrics.observeOp(op, start, err)
	return resolvedAck(key, err)
}

// apply swaps in the root computed by f and queues notifications for
// the affected subscriptions.
func (s *Store) apply(p Path, f func(Node) Value) (*batch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return &batch{}, ErrClosed
	}
	v := f(s.root)
	next, ok := v.(Node)
	if !ok && !IsNull(v) {
		return &batch{}, ErrInvalidRoot
	}
	if next == nil {
		next = Node{}
	}
	old := s.root
	s.root = next
	s.seq++
	return s.notifyAffected(p, old, next), nil
}

// notifyAffected queues the value of every subscription at p or above
// it, and of those below p whose value changed.
func (s *Store) notifyAffected(p Path, old, next Node) *batch {
	b := &batch{}
	for _, sp := range s.registry.paths() {
		switch {
		case p.HasPrefix(sp):
			s.registry.notify(sp, Read(next, sp), b)
		case sp.HasPrefix(p):
			after := Read(next, sp)
			if !Equal(Read(old, sp), after) {
				s.registry.notify(sp, after, b)
			}
		}
	}
	return b
}

// Close runs the operations registered with OnDisconnect, then stops
// replicating. Mutations after Close fail with ErrClosed. Only a
// graceful Close runs the disconnect operations; a process that dies
// without calling it leaves them undone.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		return nil
	}
	s.closing = true
	disconnects := s.disconnects
	s.disconnects = nil
	s.mu.Unlock()

	var errs []error
	for _, d := range disconnects {
		if err := d.run(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	if s.transport != nil {
		if err := s.transport.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close transport: %w", err))
		}
	}
	glog.V(1).Infof("livetree: closed %s", s.origin)
	return errors.Join(errs...)
}
