package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// fileBackend keeps the dataset in one JSON file. Writes go to a temp file
// in the same directory and are renamed over the original, so readers see
// either the old or the new dataset.
type fileBackend struct {
	mu   sync.Mutex
	path string
}

// NewFileStore opens (or lazily creates) a file-backed archive at path.
func NewFileStore(path string, opts ...Option) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("archive path is required")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("%w: create archive directory %s: %w", ErrPersistence, dir, err)
	}
	return newStore(&fileBackend{path: path}, opts...), nil
}

func (b *fileBackend) name() string { return "file" }

func (b *fileBackend) read(_ context.Context) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.readLocked()
}

func (b *fileBackend) readLocked() ([]byte, error) {
	data, err := os.ReadFile(b.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	return data, err
}

func (b *fileBackend) update(_ context.Context, fn func([]byte) ([]byte, error)) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	current, err := b.readLocked()
	if err != nil {
		return fmt.Errorf("read %s: %w", b.path, err)
	}
	next, err := fn(current)
	if err != nil {
		return err
	}
	if next == nil {
		return nil
	}
	return b.writeLocked(next)
}

func (b *fileBackend) writeLocked(data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(b.path), filepath.Base(b.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, b.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func (b *fileBackend) close() error { return nil }
