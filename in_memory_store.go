package livetree

import (
	"context"
	"fmt"
	"sync"
)

// memoryPersist keeps one snapshot per key. Values are copied on the way
// in and out so callers can reuse their buffers.
type memoryPersist struct {
	mu        sync.RWMutex
	snapshots map[string][]byte
}

// NewInMemoryStore provides a Persist that keeps snapshots in a map,
// usually for testing or for a store that needs no durability.
func NewInMemoryStore() Persist {
	return &memoryPersist{snapshots: make(map[string][]byte)}
}

func (m *memoryPersist) Store(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	snapshot := make([]byte, len(value))
	copy(snapshot, value)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[key] = snapshot
	return nil
}

func (m *memoryPersist) Load(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	snapshot, ok := m.snapshots[key]
	if !ok {
		return nil, fmt.Errorf("memory snapshot %q: %w", key, ErrNotFound)
	}
	return append([]byte(nil), snapshot...), nil
}
