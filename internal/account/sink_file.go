package account

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// FileSink stores the snapshot as a single file, replaced atomically.
type FileSink struct {
	path string

	mu   sync.Mutex
	last [sha256.Size]byte // hash of the bytes this sink last wrote
}

// NewFileSink creates the parent directory if needed.
func NewFileSink(path string) (*FileSink, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return nil, fmt.Errorf("account: mkdir %s: %w", filepath.Dir(path), err)
	}
	return &FileSink{path: path}, nil
}

// Path returns the snapshot file path.
func (f *FileSink) Path() string { return f.path }

func (f *FileSink) Load(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("account: read %s: %w", f.path, err)
	}
	return data, nil
}

func (f *FileSink) Save(_ context.Context, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".accounts-*.tmp")
	if err != nil {
		return fmt.Errorf("account: create temp: %w", err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("account: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("account: close temp: %w", err)
	}

	// The hash and the rename change together, so the file on disk and
	// last always name the same write.
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("account: rename snapshot: %w", err)
	}
	f.last = sha256.Sum256(data)
	return nil
}

// WroteLast reports whether data is exactly what this sink last wrote.
func (f *FileSink) WroteLast(data []byte) bool {
	sum := sha256.Sum256(data)
	f.mu.Lock()
	defer f.mu.Unlock()
	return sum == f.last
}

func (f *FileSink) Close() error { return nil }
