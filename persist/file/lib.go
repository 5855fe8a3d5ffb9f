package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// Persist implements the livetree.Persist interface for storing and
// loading snapshots as files.
type Persist struct {
	basepath string
}

// Load loads the bytes persisted in the named file. A missing file is
// reported with an error matching fs.ErrNotExist.
func (p Persist) Load(ctx context.Context, name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(p.basepath, name))
}

// Store replaces the named file with the given bytes. The new contents
// are written to a temporary file and renamed into place, so a reader
// sees either the old snapshot or the new one, never a torn write.
func (p Persist) Store(ctx context.Context, name string, bytes []byte) error {
	if err := os.MkdirAll(p.basepath, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(p.basepath, name+".tmp*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)
	if _, err := tmp.Write(bytes); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, filepath.Join(p.basepath, name))
}

// NewPersistForPath returns a Persist that loads and stores snapshots as
// files in the directory at the given path, creating it on first store.
//
//      p := NewPersistForPath("/var/lib/livetree")
//      b, err := p.Load(ctx, "live-support-db")
func NewPersistForPath(path string) Persist {
	return Persist{path}
}
