package persistence

import (
	"context"
	"errors"
	"os"
	"path/filepath"
)

// ErrNoSnapshot is returned by Load when no document has been saved yet.
var ErrNoSnapshot = errors.New("no snapshot")

// SnapshotBackend persists the ticket store's whole document. Every Save
// rewrites the full document; Load returns the last fully-written one.
type SnapshotBackend interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

// FileBackend stores the document as a single JSON file, written via a
// temp-file rename so readers never observe a partial write.
type FileBackend struct {
	path string
}

// NewFileBackend creates a backend rooted at the given file path.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Load reads the current document.
func (b *FileBackend) Load(ctx context.Context) ([]byte, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoSnapshot
		}
		return nil, err
	}
	return data, nil
}

// Save atomically replaces the document.
func (b *FileBackend) Save(ctx context.Context, data []byte) error {
	dir := filepath.Dir(b.path)
	tmp, err := os.CreateTemp(dir, ".snapshot-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, b.path)
}
