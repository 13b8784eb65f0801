package store

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Backend names a SnapshotStore implementation.
type Backend string

const (
	// BackendFile writes one zstd-compressed file with rename-based
	// replacement (default).
	BackendFile Backend = "file"

	// BackendSQLite keeps the snapshot in a WAL-mode SQLite database.
	BackendSQLite Backend = "sqlite"

	// BackendBolt keeps the snapshot in a bbolt database.
	BackendBolt Backend = "bolt"
)

// snapshotBaseName is the snapshot file name inside the data dir,
// without the backend-specific extension.
const snapshotBaseName = "index"

// SnapshotPath returns where backend keeps its snapshot under dataDir.
func SnapshotPath(dataDir string, backend Backend) string {
	base := filepath.Join(dataDir, snapshotBaseName)
	switch backend {
	case BackendSQLite:
		return base + ".db"
	case BackendBolt:
		return base + ".bolt"
	default:
		return base + ".snap"
	}
}

// OpenSnapshotStore opens the backend named by backend inside dataDir.
//
// backend options:
//   - "file" (default): index.snap, write-temp-then-rename
//   - "sqlite": index.db, single-row table in WAL mode
//   - "bolt": index.bolt, one key in one bucket
func OpenSnapshotStore(dataDir, backend string) (SnapshotStore, error) {
	b := Backend(strings.ToLower(backend))
	switch b {
	case BackendFile, "":
		return NewFileSnapshotStore(SnapshotPath(dataDir, BackendFile)), nil
	case BackendSQLite:
		return NewSQLiteSnapshotStore(SnapshotPath(dataDir, BackendSQLite))
	case BackendBolt:
		return NewBoltSnapshotStore(SnapshotPath(dataDir, BackendBolt)), nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s (valid options: file, sqlite, bolt)", backend)
	}
}

// DetectBackend reports which backend has a snapshot in dataDir, or ""
// when none does.
func DetectBackend(dataDir string) Backend {
	for _, b := range []Backend{BackendFile, BackendSQLite, BackendBolt} {
		if fileExists(SnapshotPath(dataDir, b)) {
			return b
		}
	}
	return ""
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
