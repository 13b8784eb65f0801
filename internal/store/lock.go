package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	docerrors "github.com/Aman-CERP/docdex/internal/errors"
)

// DirLock is a cross-process lock on a data directory. It serializes
// snapshot writers between a serving daemon and one-shot CLI runs.
type DirLock struct {
	path  string
	flock *flock.Flock
}

// NewDirLock returns the lock for dataDir. The lock file is created on
// first acquisition.
func NewDirLock(dataDir string) *DirLock {
	path := filepath.Join(dataDir, "index.lock")
	return &DirLock{path: path, flock: flock.New(path)}
}

// Lock blocks until the lock is held or ctx is done.
func (l *DirLock) Lock(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}
	ok, err := l.flock.TryLockContext(ctx, 50*time.Millisecond)
	if err != nil {
		return docerrors.New(docerrors.ErrCodeIndexLocked, "index is locked by another process", err).
			WithDetail("lock", l.path)
	}
	if !ok {
		return docerrors.New(docerrors.ErrCodeIndexLocked, "index is locked by another process", nil).
			WithDetail("lock", l.path)
	}
	return nil
}

// TryLock acquires the lock without blocking.
func (l *DirLock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create lock directory: %w", err)
	}
	return l.flock.TryLock()
}

// Unlock releases the lock. Safe to call when not held.
func (l *DirLock) Unlock() error {
	if !l.flock.Locked() {
		return nil
	}
	return l.flock.Unlock()
}

// Path returns the lock file path.
func (l *DirLock) Path() string { return l.path }
