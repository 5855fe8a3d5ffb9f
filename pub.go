package livetree

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// DefaultKey is the record name snapshots are persisted under.
const DefaultKey = "live-support-db"

// DefaultSeenMessages is how many received message IDs a Store remembers
// in order to drop duplicates.
const DefaultSeenMessages = 1024

// Persist is the interface for loading and storing serialized snapshots.
// Store overwrites any previous record with the same name.
type Persist interface {
	// Store makes the given bytes accessible by the given name.
	Store(context.Context, string, []byte) error
	// Load retrieves the bytes last stored under the given name. A
	// missing record is reported with an error matching ErrNotFound or
	// fs.ErrNotExist.
	Load(context.Context, string) ([]byte, error)
}

// Transport carries messages between the instances sharing a channel.
// Publishing is best-effort and need not deliver to the publisher.
type Transport interface {
	// Publish sends msg to every other instance on the channel.
	Publish(ctx context.Context, msg []byte) error
	// Subscribe calls f for each message received from another instance,
	// one message at a time, until the returned cancel is called.
	Subscribe(f func(msg []byte)) (cancel func())
	// Close leaves the channel.
	Close() error
}

// Listener receives the value at a subscribed path.
type Listener func(Value)

// Database is the operation set applications build on. Store implements
// it without any server; a networked backend can implement it too,
// without changes to callers.
type Database interface {
	Ref(path string) Ref
	Get(ref Ref) Value
	Subscribe(ref Ref, f Listener) (cancel func())
	Set(ctx context.Context, ref Ref, v Value) *Ack
	Update(ctx context.Context, ref Ref, partial Node) *Ack
	Push(ctx context.Context, ref Ref, v Value) *Ack
	Remove(ctx context.Context, ref Ref) *Ack
	OnDisconnect(ref Ref) *OnDisconnect
	Close(ctx context.Context) error
}

// Config controls how a Store persists and replicates its tree.
type Config struct {
	// Persist holds the durable snapshot. Defaults to NewInMemoryStore().
	Persist Persist

	// Key is the name of the snapshot record in Persist. Defaults to
	// DefaultKey.
	Key string

	// Codec serializes persisted snapshots. Defaults to JSONCodec.
	// Replication messages are always JSON.
	Codec Codec

	// Transport replicates snapshots to other instances. Nil means
	// this is the only instance: writes are persisted but not sent.
	Transport Transport

	// NotifyChangedOnly makes a received snapshot notify only
	// subscriptions whose value changed, instead of all of them.
	NotifyChangedOnly bool

	// SeenMessages bounds the cache of received message IDs used to drop
	// duplicate deliveries. 0 means DefaultSeenMessages.
	SeenMessages int

	// SeenCache, if set, replaces the default ARC cache of SeenMessages
	// IDs. It must not be shared with another Store.
	SeenCache SeenCache

	// Registerer registers the Store's prometheus collectors. Nil leaves
	// them unregistered.
	Registerer prometheus.Registerer

	// MetricsNamespace prefixes metric names. Defaults to "livetree".
	MetricsNamespace string
}
