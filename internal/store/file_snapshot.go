package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/google/renameio"
)

// FileSnapshotStore keeps the snapshot in a single file, replaced by
// write-to-temp, fsync and rename.
type FileSnapshotStore struct {
	path string
}

var _ SnapshotStore = (*FileSnapshotStore)(nil)

// NewFileSnapshotStore returns a store writing to path. The parent
// directory is created on first Save.
func NewFileSnapshotStore(path string) *FileSnapshotStore {
	return &FileSnapshotStore{path: path}
}

// Load reads and decodes the snapshot file.
func (f *FileSnapshotStore) Load(ctx context.Context) (*State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", f.path, err)
	}
	return DecodeState(data)
}

// Save encodes s and atomically replaces the snapshot file.
func (f *FileSnapshotStore) Save(ctx context.Context, s *State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := EncodeState(s)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	if err := renameio.WriteFile(f.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot %s: %w", f.path, err)
	}
	return nil
}

// Location returns the snapshot file path.
func (f *FileSnapshotStore) Location() string { return f.path }

// Close is a no-op; the file is only open during Load and Save.
func (f *FileSnapshotStore) Close() error { return nil }
