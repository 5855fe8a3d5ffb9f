package livetree

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/golang/glog"
)

const messageTypeUpdate = "update"

// message is what instances exchange over a Transport. Only "update"
// messages are understood; others are ignored so newer peers can add
// types.
type message struct {
	Type   string          `json:"type"`
	Store  json.RawMessage `json:"store,omitempty"`
	Origin string          `json:"origin,omitempty"`
	ID     string          `json:"id,omitempty"`
}

// flush persists the current tree and publishes it, unless a snapshot
// at least as new has already been persisted. Flushing the latest tree
// rather than the one a particular mutation produced keeps the medium
// from ever going back to an older version when mutations race.
func (s *Store) flush(ctx context.Context) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.RLock()
	root, seq := s.root, s.seq
	s.mu.RUnlock()
	if seq <= s.persistedSeq {
		return nil
	}

	snapshot, err := s.codec.Marshal(root)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	digest := Digest(snapshot)
	if digest == s.persistedDigest {
		s.persistedSeq = seq
		s.metrics.persistSkipped.Inc()
		return nil
	}
	if err := s.persist.Store(ctx, s.key, snapshot); err != nil {
		return &PersistenceError{Op: "store", Key: s.key, Err: err}
	}
	s.persistedSeq, s.persistedDigest = seq, digest
	s.publish(ctx, root, snapshot)
	return nil
}

func (s *Store) publish(ctx context.Context, root Node, snapshot []byte) {
	if s.transport == nil {
		return
	}
	tree := snapshot
	if _, isJSON := s.codec.(jsonCodec); !isJSON {
		var err error
		tree, err = JSONCodec.Marshal(root)
		if err != nil {
			glog.Warningf("livetree: encode %s for publish: %v", s.key, err)
			return
		}
	}
	msg, err := json.Marshal(message{
		Type:   messageTypeUpdate,
		Store:  tree,
		Origin: s.origin,
		ID:     NewEntryID(),
	})
	if err != nil {
		glog.Warningf("livetree: encode message: %v", err)
		return
	}
	if err := s.transport.Publish(ctx, msg); err != nil {
		s.metrics.publishErrors.Inc()
		glog.Warningf("livetree: publish %s: %v", s.key, err)
		return
	}
	glog.V(2).Infof("livetree: published %s (%d bytes)", s.key, len(msg))
}

// receive adopts a snapshot published by another instance, replacing
// the local tree, then re-evaluates subscriptions.
func (s *Store) receive(b []byte) {
	var msg message
	if err := json.Unmarshal(b, &msg); err != nil {
		s.drop("malformed", err)
		return
	}
	if msg.Type != messageTypeUpdate {
		s.drop("ignored", fmt.Errorf("type %q", msg.Type))
		return
	}
	if msg.Origin != "" && msg.Origin == s.origin {
		s.drop("echo", nil)
		return
	}
	if len(msg.Store) == 0 {
		s.drop("malformed", fmt.Errorf("no store"))
		return
	}
	v, err := JSONCodec.Unmarshal(msg.Store)
	if err != nil {
		s.drop("malformed", err)
		return
	}
	tree, ok := v.(Node)
	if !ok && !IsNull(v) {
		s.drop("malformed", fmt.Errorf("store is a %s", kindOf(v)))
		return
	}
	if tree == nil {
		tree = Node{}
	}

	s.persistMu.Lock()
	if msg.ID != "" {
		if s.seen.Contains(msg.ID) {
			s.persistMu.Unlock()
			s.drop("duplicate", nil)
			return
		}
		s.seen.Add(msg.ID, nil)
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.persistMu.Unlock()
		return
	}
	old := s.root
	s.root = tree
	s.seq++
	// the sender persisted this tree; its digest under our codec is unknown
	s.persistedSeq = s.seq
	s.persistedDigest = ""
	notified := s.notifyReplicated(old, tree)
	s.mu.Unlock()
	s.persistMu.Unlock()

	s.metrics.received.WithLabelValues("applied").Inc()
	glog.V(2).Infof("livetree: applied snapshot %s from %s", msg.ID, msg.Origin)
	s.dispatch.deliver(notified)
}

func (s *Store) drop(result string, err error) {
	s.metrics.received.WithLabelValues(result).Inc()
	if err != nil {
		glog.V(2).Infof("livetree: dropped %s message: %v", result, err)
	}
}

// notifyReplicated queues notifications after the whole tree was
// replaced. By default every subscription is re-evaluated; with
// NotifyChangedOnly, only those whose value differs.
func (s *Store) notifyReplicated(old, next Node) *batch {
	b := &batch{}
	paths := s.registry.paths()
	if !s.notifyChangedOnly {
		for _, p := range paths {
			s.registry.notify(p, Read(next, p), b)
		}
		return b
	}
	var changed []Path
	_ = Diff(old, next, func(p Path, _, _ Value) (bool, error) {
		changed = append(changed, p)
		return true, nil
	})
	for _, sp := range paths {
		for _, c := range changed {
			if c.HasPrefix(sp) {
				s.registry.notify(sp, Read(next, sp), b)
				break
			}
			if sp.HasPrefix(c) {
				after := Read(next, sp)
				if !Equal(Read(old, sp), after) {
					s.registry.notify(sp, after, b)
				}
				break
			}
		}
	}
	return b
}
