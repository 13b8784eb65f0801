package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// PollingWatcher detects changes by walking the tree every interval and
// comparing size and modification time. Used when fsnotify is unavailable.
type PollingWatcher struct {
	interval time.Duration
	filter   Filter

	mu       sync.Mutex
	state    map[string]fileStat
	events   chan FileEvent
	errors   chan error
	stopCh   chan struct{}
	stopped  bool
	rootPath string
}

type fileStat struct {
	modTime time.Time
	size    int64
	isDir   bool
}

// NewPollingWatcher creates a polling watcher. filter may be nil.
func NewPollingWatcher(interval time.Duration, filter Filter) *PollingWatcher {
	return &PollingWatcher{
		interval: interval,
		filter:   filter,
		state:    make(map[string]fileStat),
		events:   make(chan FileEvent, 100),
		errors:   make(chan error, 10),
		stopCh:   make(chan struct{}),
	}
}

// Start records a baseline and then polls until ctx is done or Stop is
// called.
func (p *PollingWatcher) Start(ctx context.Context, path string) error {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve absolute path: %w", err)
	}

	p.mu.Lock()
	p.rootPath = absPath
	p.state = p.walk()
	p.mu.Unlock()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = p.Stop()
			return ctx.Err()
		case <-p.stopCh:
			return nil
		case <-ticker.C:
			p.poll()
		}
	}
}

// walk snapshots every non-ignored entry under the root. Caller holds mu.
func (p *PollingWatcher) walk() map[string]fileStat {
	current := make(map[string]fileStat)
	var unreadable []string
	_ = filepath.WalkDir(p.rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			slog.Debug("poll_walk_error", slog.String("path", path), slog.String("error", err.Error()))
			if d != nil && d.IsDir() && path != p.rootPath {
				unreadable = append(unreadable, path+string(filepath.Separator))
			}
			return nil
		}
		if path == p.rootPath {
			return nil
		}
		if d.IsDir() && p.filter != nil && p.filter.IgnoreDir(path) {
			return filepath.SkipDir
		}
		if !d.IsDir() && ignored(p.filter, p.rootPath, path, false, true) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		current[path] = fileStat{modTime: info.ModTime(), size: info.Size(), isDir: d.IsDir()}
		return nil
	})

	// Entries below a directory that could not be listed keep their last
	// known state so they are not reported as deleted.
	for path, st := range p.state {
		for _, dir := range unreadable {
			if strings.HasPrefix(path, dir) {
				current[path] = st
				break
			}
		}
	}
	return current
}

// poll diffs the tree against the previous walk and emits events.
func (p *PollingWatcher) poll() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return
	}

	now := time.Now()
	current := p.walk()

	for path, st := range current {
		prev, existed := p.state[path]
		switch {
		case !existed:
			p.emit(FileEvent{Path: path, Operation: OpCreate, IsDir: st.isDir, Timestamp: now})
		case !st.isDir && (prev.modTime != st.modTime || prev.size != st.size):
			p.emit(FileEvent{Path: path, Operation: OpModify, Timestamp: now})
		}
	}
	for path := range p.state {
		if _, ok := current[path]; !ok {
			p.emit(FileEvent{Path: path, Operation: OpDelete, Timestamp: now})
		}
	}

	p.state = current
}

// emit sends without blocking. Caller holds mu.
func (p *PollingWatcher) emit(event FileEvent) {
	select {
	case p.events <- event:
	default:
		slog.Warn("poll_buffer_full",
			slog.String("path", event.Path),
			slog.String("op", event.Operation.String()))
	}
}

// Stop stops polling and closes the channels.
func (p *PollingWatcher) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return nil
	}
	p.stopped = true
	close(p.stopCh)
	close(p.events)
	close(p.errors)
	return nil
}

// Events returns the channel of file events.
func (p *PollingWatcher) Events() <-chan FileEvent {
	return p.events
}

// Errors returns the channel of errors.
func (p *PollingWatcher) Errors() <-chan error {
	return p.errors
}
