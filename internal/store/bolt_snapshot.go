package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	docerrors "github.com/Aman-CERP/docdex/internal/errors"
)

var (
	boltBucket = []byte("snapshot")
	boltKey    = []byte("state")
)

// BoltSnapshotStore keeps the snapshot under one key of a bbolt
// database. The database is opened per operation so the exclusive file
// lock bbolt takes is only held while loading or saving.
type BoltSnapshotStore struct {
	path    string
	timeout time.Duration
}

var _ SnapshotStore = (*BoltSnapshotStore)(nil)

// NewBoltSnapshotStore returns a store backed by the bbolt file at path.
func NewBoltSnapshotStore(path string) *BoltSnapshotStore {
	return &BoltSnapshotStore{path: path, timeout: 5 * time.Second}
}

func (b *BoltSnapshotStore) open(readOnly bool) (*bbolt.DB, error) {
	if err := os.MkdirAll(filepath.Dir(b.path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", b.path, err)
	}
	db, err := bbolt.Open(b.path, 0o600, &bbolt.Options{Timeout: b.timeout, ReadOnly: readOnly})
	if err == nil {
		return db, nil
	}
	if !isBoltCorruption(err) {
		return nil, fmt.Errorf("failed to open %s: %w", b.path, err)
	}
	if readOnly {
		return nil, docerrors.CorruptIndexError("snapshot database is corrupt", err)
	}

	// A writer replaces a damaged file rather than failing every save.
	slog.Warn("snapshot_db_corrupt", slog.String("path", b.path), slog.String("error", err.Error()))
	if rmErr := os.Remove(b.path); rmErr != nil {
		return nil, fmt.Errorf("snapshot database %s corrupt and cannot be removed: %w", b.path, rmErr)
	}
	db, err = bbolt.Open(b.path, 0o600, &bbolt.Options{Timeout: b.timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", b.path, err)
	}
	return db, nil
}

func isBoltCorruption(err error) bool {
	return errors.Is(err, bbolt.ErrInvalid) ||
		errors.Is(err, bbolt.ErrVersionMismatch) ||
		errors.Is(err, bbolt.ErrChecksum)
}

// Load reads the snapshot key.
func (b *BoltSnapshotStore) Load(ctx context.Context) (*State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := os.Stat(b.path); os.IsNotExist(err) {
		return nil, ErrNoSnapshot
	}

	db, err := b.open(true)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var data []byte
	err = db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(boltBucket)
		if bucket == nil {
			return nil
		}
		if v := bucket.Get(boltKey); v != nil {
			// v is only valid inside the transaction
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	if data == nil {
		return nil, ErrNoSnapshot
	}
	return DecodeState(data)
}

// Save replaces the snapshot key in one update transaction.
func (b *BoltSnapshotStore) Save(ctx context.Context, s *State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := EncodeState(s)
	if err != nil {
		return err
	}

	db, err := b.open(false)
	if err != nil {
		return err
	}
	defer db.Close()

	return db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(boltBucket)
		if err != nil {
			return err
		}
		return bucket.Put(boltKey, data)
	})
}

// Location returns the bbolt file path.
func (b *BoltSnapshotStore) Location() string { return b.path }

// Close is a no-op; the database is only open during Load and Save.
func (b *BoltSnapshotStore) Close() error { return nil }
