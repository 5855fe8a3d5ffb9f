package livetree

import (
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewEntryID returns an identifier for a pushed child. IDs are ULIDs:
// a millisecond timestamp followed by random bits that increase
// monotonically within the same millisecond, so IDs from one process
// never collide and sort in creation order. IDs from different
// processes are only unique with high probability.
func NewEntryID() string {
	return ulid.Make().String()
}

// EntryTime returns the creation time encoded in an entry ID.
func EntryTime(id string) (time.Time, error) {
	parsed, err := ulid.ParseStrict(id)
	if err != nil {
		return time.Time{}, fmt.Errorf("entry id %q: %w", id, err)
	}
	return ulid.Time(parsed.Time()), nil
}
