// Package daemon serves one docdex index over a Unix socket so that CLI
// searches reuse the warm in-memory index instead of loading the
// snapshot on every invocation.
package daemon

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// SocketName and PIDName are the file names used inside the data dir.
	SocketName = "docdex.sock"
	PIDName    = "docdex.pid"

	defaultTimeout = 30 * time.Second

	// maxSocketPath keeps socket paths under the sun_path limit (104 bytes
	// on darwin, 108 on linux).
	maxSocketPath = 100
)

// Config holds configuration for the daemon service.
type Config struct {
	// SocketPath is the Unix domain socket path for IPC.
	SocketPath string

	// PIDPath is the file path for storing the daemon's process ID.
	PIDPath string

	// Timeout is the maximum duration for client-daemon communication.
	// Default: 30s
	Timeout time.Duration

	// ShutdownGracePeriod is the time to wait for in-flight requests on
	// shutdown. Default: 10s
	ShutdownGracePeriod time.Duration
}

// DefaultConfig returns the daemon configuration for an index whose data
// directory is dataDir.
func DefaultConfig(dataDir string) Config {
	return Config{
		SocketPath:          SocketPath(dataDir),
		PIDPath:             filepath.Join(dataDir, PIDName),
		Timeout:             defaultTimeout,
		ShutdownGracePeriod: 10 * time.Second,
	}
}

// SocketPath returns the socket for dataDir. Deep data directories get a
// stable hashed name in the temp dir instead.
func SocketPath(dataDir string) string {
	path := filepath.Join(dataDir, SocketName)
	if len(path) <= maxSocketPath {
		return path
	}
	sum := sha256.Sum256([]byte(dataDir))
	return filepath.Join(os.TempDir(), "docdex-"+hex.EncodeToString(sum[:6])+".sock")
}

// Validate checks that the configuration is valid.
func (c Config) Validate() error {
	if c.SocketPath == "" {
		return fmt.Errorf("socket path cannot be empty")
	}
	if c.PIDPath == "" {
		return fmt.Errorf("PID path cannot be empty")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.ShutdownGracePeriod <= 0 {
		return fmt.Errorf("shutdown grace period must be positive")
	}
	return nil
}

// EnsureDir creates the directories for the socket and PID files.
func (c Config) EnsureDir() error {
	socketDir := filepath.Dir(c.SocketPath)
	if err := os.MkdirAll(socketDir, 0o755); err != nil {
		return fmt.Errorf("failed to create socket directory: %w", err)
	}

	pidDir := filepath.Dir(c.PIDPath)
	if pidDir != socketDir {
		if err := os.MkdirAll(pidDir, 0o755); err != nil {
			return fmt.Errorf("failed to create PID directory: %w", err)
		}
	}

	return nil
}
