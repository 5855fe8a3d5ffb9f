package livetree

import lru "github.com/hashicorp/golang-lru"

// SeenCache remembers the IDs of replication messages already applied,
// so that a message delivered twice is applied once. Each Store needs
// its own.
type SeenCache interface {
	// Add records a message ID.
	Add(key, value interface{})
	// Contains reports whether the message ID was recorded.
	Contains(key interface{}) bool
}

// NewSeenCache creates a new ARC-based cache holding the given number of
// message IDs.
func NewSeenCache(size int) SeenCache {
	cache, err := lru.NewARC(size)
	if err != nil {
		panic(err)
	}
	return cache
}
