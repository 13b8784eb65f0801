package watcher

import (
	"path/filepath"
	"strings"
	"time"
)

// Operation represents a file system operation type.
type Operation int

const (
	// OpCreate indicates a new file or directory was created.
	OpCreate Operation = iota
	// OpModify indicates an existing file was modified.
	OpModify
	// OpDelete indicates a file or directory was deleted.
	OpDelete
	// OpRename indicates a file or directory was moved away from Path.
	// The new name, if it is under the root, arrives as its own OpCreate.
	OpRename
)

// String returns a human-readable representation of the operation.
func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "CREATE"
	case OpModify:
		return "MODIFY"
	case OpDelete:
		return "DELETE"
	case OpRename:
		return "RENAME"
	default:
		return "UNKNOWN"
	}
}

// FileEvent represents a file system event.
type FileEvent struct {
	// Path is the absolute path of the file or directory.
	Path string

	// Operation is the type of file system operation.
	Operation Operation

	// IsDir is true when Path was a directory at the time of the event.
	// Always false for paths that no longer exist.
	IsDir bool

	// Timestamp is when the event was detected.
	Timestamp time.Time
}

// Filter decides which paths are worth reporting. Both methods receive
// absolute paths and judge only the final path element.
type Filter interface {
	// IgnoreDir reports whether the directory, and everything below it,
	// is excluded.
	IgnoreDir(path string) bool
	// IgnoreFile reports whether the file is excluded.
	IgnoreFile(path string) bool
}

// Options configures the watcher behavior.
type Options struct {
	// DebounceWindow is the time to wait before emitting coalesced events.
	// Default: 200ms
	DebounceWindow time.Duration

	// PollInterval is the interval for polling mode (fallback).
	// Default: 5s
	PollInterval time.Duration

	// EventBufferSize is the number of batches buffered for the consumer.
	// Default: 1000
	EventBufferSize int

	// Filter drops excluded paths. Nil reports everything.
	Filter Filter

	// ForcePolling skips fsnotify.
	ForcePolling bool
}

// DefaultOptions returns the default watcher options.
func DefaultOptions() Options {
	return Options{
		DebounceWindow:  200 * time.Millisecond,
		PollInterval:    5 * time.Second,
		EventBufferSize: 1000,
	}
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.DebounceWindow == 0 {
		o.DebounceWindow = defaults.DebounceWindow
	}
	if o.PollInterval == 0 {
		o.PollInterval = defaults.PollInterval
	}
	if o.EventBufferSize == 0 {
		o.EventBufferSize = defaults.EventBufferSize
	}
	return o
}

// ignored applies f to path, which lies under root. Every directory
// between root and path is checked first. A path that no longer exists
// is only dropped when it would be ignored both as a file and as a
// directory, so deleting a directory of documents is never lost.
func ignored(f Filter, root, path string, isDir, exists bool) bool {
	if path == root {
		return true
	}
	if f == nil {
		return false
	}

	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return true
	}
	parts := strings.Split(rel, string(filepath.Separator))
	dir := root
	for _, p := range parts[:len(parts)-1] {
		dir = filepath.Join(dir, p)
		if f.IgnoreDir(dir) {
			return true
		}
	}

	switch {
	case !exists:
		return f.IgnoreDir(path) && f.IgnoreFile(path)
	case isDir:
		return f.IgnoreDir(path)
	default:
		return f.IgnoreFile(path)
	}
}
