// Package index keeps the in-memory index in step with the files under a
// root directory.
//
// The Indexer owns the live store.State. Every writer (watcher batches,
// full scans, direct IndexPath/RemovePath calls) is serialized by one
// mutex. Incremental updates mutate the live state in place under the
// read/write lock after all file I/O is done; full scans build a clone
// off to the side and publish it with a single pointer swap, so queries
// never observe a half-applied scan.
package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/docdex/internal/config"
	docerrors "github.com/Aman-CERP/docdex/internal/errors"
	"github.com/Aman-CERP/docdex/internal/metrics"
	"github.com/Aman-CERP/docdex/internal/store"
	"github.com/Aman-CERP/docdex/internal/tokenize"
	"github.com/Aman-CERP/docdex/internal/watcher"
)

const (
	// scanChunkSize is how many files are read concurrently before their
	// results are applied in walk order.
	scanChunkSize = 64

	persistTimeout = 30 * time.Second
)

// Outcome is what happened to one path.
type Outcome int

const (
	OutcomeSkipped Outcome = iota
	OutcomeAdded
	OutcomeUpdated
	OutcomeUnchanged
	OutcomeRemoved
)

// String returns the metric label for the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeAdded:
		return "added"
	case OutcomeUpdated:
		return "updated"
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeRemoved:
		return "removed"
	default:
		return "skipped"
	}
}

func (o Outcome) mutates() bool {
	return o == OutcomeAdded || o == OutcomeUpdated || o == OutcomeRemoved
}

// ScanStats summarizes one full scan.
type ScanStats struct {
	Walked    int           `json:"walked"`
	Added     int           `json:"added"`
	Updated   int           `json:"updated"`
	Unchanged int           `json:"unchanged"`
	Removed   int           `json:"removed"`
	Skipped   int           `json:"skipped"`
	Documents int           `json:"documents"`
	Duration  time.Duration `json:"duration"`
}

// Changed reports whether the scan mutated the index.
func (s ScanStats) Changed() bool {
	return s.Added+s.Updated+s.Removed > 0
}

func (s *ScanStats) count(o Outcome) {
	switch o {
	case OutcomeAdded:
		s.Added++
	case OutcomeUpdated:
		s.Updated++
	case OutcomeUnchanged:
		s.Unchanged++
	case OutcomeRemoved:
		s.Removed++
	default:
		s.Skipped++
	}
}

// Options configures an Indexer.
type Options struct {
	// Root is the directory being indexed. Required.
	Root string

	// Eligibility selects indexable files. Defaults to the built-in
	// configuration.
	Eligibility *Eligibility

	// Snapshots persists the index. Nil keeps the index in memory only.
	Snapshots store.SnapshotStore

	// Lock serializes snapshot writes across processes. Optional.
	Lock *store.DirLock

	Metrics *metrics.Metrics
	Logger  *slog.Logger

	// ReadWorkers bounds concurrent file reads during a scan.
	// Defaults to GOMAXPROCS.
	ReadWorkers int
}

// Indexer reconciles files on disk with the in-memory index.
type Indexer struct {
	root      string
	elig      *Eligibility
	snapshots store.SnapshotStore
	lock      *store.DirLock
	metrics   *metrics.Metrics
	logger    *slog.Logger
	workers   int

	// writeMu serializes every mutation and every snapshot write.
	writeMu sync.Mutex
	// saved is true once the snapshot reflects some published state.
	saved bool

	// mu guards state. Readers hold it for a whole query.
	mu    sync.RWMutex
	state *store.State

	generation atomic.Uint64
}

// New creates an Indexer with an empty state. Call Load to restore the
// last snapshot.
func New(opts Options) (*Indexer, error) {
	if opts.Root == "" {
		return nil, docerrors.New(docerrors.ErrCodeInvalidPath, "index root is required", nil)
	}
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, docerrors.New(docerrors.ErrCodeInvalidPath, "cannot resolve index root", err).
			WithDetail("root", opts.Root)
	}

	if opts.Eligibility == nil {
		opts.Eligibility = NewEligibility(config.NewConfig().Paths)
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ReadWorkers <= 0 {
		opts.ReadWorkers = runtime.GOMAXPROCS(0)
	}

	return &Indexer{
		root:      filepath.Clean(root),
		elig:      opts.Eligibility,
		snapshots: opts.Snapshots,
		lock:      opts.Lock,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		workers:   opts.ReadWorkers,
		state:     store.NewState(),
	}, nil
}

// Root returns the absolute directory being indexed.
func (i *Indexer) Root() string { return i.root }

// Eligibility returns the predicate used for scans and events.
func (i *Indexer) Eligibility() *Eligibility { return i.elig }

// Generation changes every time the published state changes.
func (i *Indexer) Generation() uint64 { return i.generation.Load() }

// View runs fn with a consistent read view of the state. fn must not
// retain or mutate st.
func (i *Indexer) View(fn func(st *store.State)) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	fn(i.state)
}

// Count returns the number of indexed documents.
func (i *Indexer) Count() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.state.Docs.Len()
}

// Verify checks the live state against every index invariant.
func (i *Indexer) Verify() error {
	var err error
	i.View(func(st *store.State) { err = st.CheckConsistency() })
	return err
}

// Load restores the last snapshot. A missing, corrupt or unreadable
// snapshot leaves the index empty and returns false; the caller is
// expected to rebuild with Scan.
func (i *Indexer) Load(ctx context.Context) (bool, error) {
	if i.snapshots == nil {
		return false, nil
	}

	i.writeMu.Lock()
	defer i.writeMu.Unlock()

	st, err := i.snapshots.Load(ctx)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNoSnapshot):
		i.metrics.SnapshotOp("load", "missing")
		return false, nil
	case ctx.Err() != nil:
		return false, ctx.Err()
	case docerrors.HasCode(err, docerrors.ErrCodeCorruptIndex):
		i.metrics.SnapshotOp("load", "corrupt")
		i.logger.Warn("snapshot_corrupt",
			append([]any{slog.String("location", i.snapshots.Location())}, docerrors.LogAttrs(err)...)...)
		return false, nil
	default:
		i.metrics.SnapshotOp("load", "error")
		i.logger.Warn("snapshot_load_failed",
			slog.String("location", i.snapshots.Location()),
			slog.String("error", err.Error()))
		return false, nil
	}

	i.metrics.SnapshotOp("load", "ok")
	i.publish(st)
	i.saved = true
	i.logger.Info("snapshot_loaded",
		slog.String("location", i.snapshots.Location()),
		slog.Int("documents", st.Docs.Len()),
		slog.Int("terms", st.Index.Len()))
	return true, nil
}

// publish swaps in st. Caller holds writeMu.
func (i *Indexer) publish(st *store.State) {
	i.mu.Lock()
	i.state = st
	i.generation.Add(1)
	i.mu.Unlock()
	i.metrics.SetCorpus(st.Docs.Len(), st.Index.Len())
}

// IndexPath indexes one file. Relative paths are resolved against the
// root. An ineligible or oversized file that was indexed before is
// removed. Unreadable files leave the state untouched and return a
// retryable error.
func (i *Indexer) IndexPath(ctx context.Context, path string) (Outcome, error) {
	abs, err := i.resolve(path)
	if err != nil {
		return OutcomeSkipped, err
	}

	i.writeMu.Lock()
	defer i.writeMu.Unlock()

	outcome, skipErr := i.indexLocked(abs)
	if outcome.mutates() {
		if err := i.persist(ctx); err != nil {
			return outcome, err
		}
	}
	return outcome, skipErr
}

// RemovePath drops path from the index. When path is a directory every
// document beneath it is dropped. Returns the number of documents removed.
func (i *Indexer) RemovePath(ctx context.Context, path string) (int, error) {
	abs, err := i.resolve(path)
	if err != nil {
		return 0, err
	}

	i.writeMu.Lock()
	defer i.writeMu.Unlock()

	n := i.removeLocked(abs)
	if n == 0 {
		return 0, nil
	}
	return n, i.persist(ctx)
}

// HandleEvents applies a debounced watcher batch and persists once.
// Per-file failures are logged and skipped; only a persistence failure is
// returned.
func (i *Indexer) HandleEvents(ctx context.Context, events []watcher.FileEvent) error {
	i.writeMu.Lock()
	defer i.writeMu.Unlock()

	changed := false
	for _, ev := range events {
		if ctx.Err() != nil {
			break
		}
		abs, err := i.resolve(ev.Path)
		if err != nil {
			i.logger.Debug("event_outside_root", slog.String("path", ev.Path))
			continue
		}

		switch ev.Operation {
		case watcher.OpCreate, watcher.OpModify:
			if ev.IsDir {
				if ev.Operation == watcher.OpCreate && i.indexTreeLocked(ctx, abs) {
					changed = true
				}
				continue
			}
			outcome, err := i.indexLocked(abs)
			if err != nil {
				i.logger.Debug("event_skipped",
					append([]any{slog.String("path", abs), slog.String("operation", ev.Operation.String())},
						docerrors.LogAttrs(err)...)...)
			}
			changed = changed || outcome.mutates()
		case watcher.OpDelete, watcher.OpRename:
			if i.removeLocked(abs) > 0 {
				changed = true
			}
		}
	}

	if !changed {
		return nil
	}
	return i.persist(ctx)
}

// indexTreeLocked indexes every eligible file under dir. Used when a
// directory appears with content already inside it.
func (i *Indexer) indexTreeLocked(ctx context.Context, dir string) bool {
	if i.elig.excludedAncestor(i.root, filepath.Join(dir, "x")) {
		return false
	}
	changed := false
	err := i.elig.Walk(ctx, dir, func(path string) error {
		outcome, _ := i.indexLocked(path)
		changed = changed || outcome.mutates()
		return nil
	})
	if err != nil && ctx.Err() == nil {
		i.logger.Warn("walk_failed", slog.String("path", dir), slog.String("error", err.Error()))
	}
	return changed
}

// indexLocked reads path and applies it to the live state. Caller holds
// writeMu; the state lock is taken only after I/O.
func (i *Indexer) indexLocked(abs string) (Outcome, error) {
	r := i.readFile(abs, i.liveHash)

	i.mu.Lock()
	outcome := i.apply(i.state, r)
	if outcome.mutates() {
		i.generation.Add(1)
	}
	docs, terms := i.state.Docs.Len(), i.state.Index.Len()
	i.mu.Unlock()

	if outcome.mutates() {
		i.metrics.SetCorpus(docs, terms)
	}
	return outcome, r.err
}

func (i *Indexer) removeLocked(abs string) int {
	i.mu.Lock()
	n := removeTree(i.state, abs)
	if n > 0 {
		i.generation.Add(1)
	}
	docs, terms := i.state.Docs.Len(), i.state.Index.Len()
	i.mu.Unlock()

	for range n {
		i.metrics.FileIndexed(OutcomeRemoved.String())
	}
	if n > 0 {
		i.metrics.SetCorpus(docs, terms)
		i.logger.Debug("path_removed", slog.String("path", abs), slog.Int("documents", n))
	}
	return n
}

// removeTree removes abs, or every document under it when abs is not
// itself a document.
func removeTree(st *store.State, abs string) int {
	if st.Remove(abs) {
		return 1
	}
	prefix := abs + string(filepath.Separator)
	n := 0
	for _, p := range st.Paths() {
		if strings.HasPrefix(p, prefix) && st.Remove(p) {
			n++
		}
	}
	return n
}

func (i *Indexer) liveHash(path string) (string, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.state.Hash(path)
}

// resolve makes path absolute and checks it lies under the root.
func (i *Indexer) resolve(path string) (string, error) {
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(i.root, abs)
	}
	abs = filepath.Clean(abs)

	rel, err := filepath.Rel(i.root, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", docerrors.New(docerrors.ErrCodeInvalidPath, "path is outside the index root", err).
			WithDetail("path", path).
			WithDetail("root", i.root)
	}
	return abs, nil
}

// fileResult is the outcome of reading one file, computed without any
// index lock held.
type fileResult struct {
	path      string
	reason    string
	err       error
	cancelled bool

	hash      string
	unchanged bool
	lossy     bool
	title     string
	content   string
	counts    tokenize.Counts
	length    int
}

// readFile stats, reads, hashes and tokenizes path. previous returns the
// hash currently recorded for a path; an equal hash stops before decoding.
func (i *Indexer) readFile(path string, previous func(string) (string, bool)) fileResult {
	r := fileResult{path: path}

	info, err := os.Lstat(path)
	if err != nil {
		r.reason = ReasonUnreadable
		r.err = docerrors.FileError(path, err)
		return r
	}
	if reason := i.elig.SkipReason(i.root, path, info); reason != "" {
		r.reason = reason
		if reason == ReasonTooLarge {
			r.err = docerrors.New(docerrors.ErrCodeFileTooLarge,
				fmt.Sprintf("%s is %d bytes, limit is %d", path, info.Size(), i.elig.MaxFileSize()), nil).
				WithDetail("path", path)
		} else {
			r.err = docerrors.New(docerrors.ErrCodeFileIneligible,
				fmt.Sprintf("%s is not indexed (%s)", path, reason), nil).
				WithDetail("path", path).
				WithDetail("reason", reason)
		}
		return r
	}

	data, err := os.ReadFile(path)
	if err != nil {
		r.reason = ReasonUnreadable
		r.err = docerrors.FileError(path, err)
		return r
	}

	sum := sha256.Sum256(data)
	r.hash = hex.EncodeToString(sum[:])
	if old, ok := previous(path); ok && old == r.hash {
		r.unchanged = true
		return r
	}

	r.content = string(data)
	if !utf8.Valid(data) {
		r.content = strings.ToValidUTF8(r.content, string(utf8.RuneError))
		r.lossy = true
	}
	r.title = filepath.Base(path)
	r.counts, r.length = tokenize.CountTerms(r.title, r.content)
	return r
}

// apply performs the state transition for r on st. Caller holds whatever
// lock protects st.
func (i *Indexer) apply(st *store.State, r fileResult) Outcome {
	switch {
	case r.reason == ReasonUnreadable:
		i.metrics.FileSkipped(r.reason)
		i.logger.Warn("file_unreadable",
			append([]any{slog.String("path", r.path)}, docerrors.LogAttrs(r.err)...)...)
		return OutcomeSkipped
	case r.reason != "":
		i.metrics.FileSkipped(r.reason)
		if st.Remove(r.path) {
			i.metrics.FileIndexed(OutcomeRemoved.String())
			i.logger.Info("file_no_longer_eligible",
				slog.String("path", r.path),
				slog.String("reason", r.reason))
			return OutcomeRemoved
		}
		return OutcomeSkipped
	case r.unchanged:
		i.metrics.FileIndexed(OutcomeUnchanged.String())
		return OutcomeUnchanged
	}

	if r.lossy {
		i.metrics.LossyDecode()
		i.logger.Debug("lossy_decode", slog.String("path", r.path))
	}
	outcome := OutcomeUpdated
	if _, created := st.Apply(r.path, r.title, r.content, r.hash, r.counts, r.length); created {
		outcome = OutcomeAdded
	}
	i.metrics.FileIndexed(outcome.String())
	return outcome
}

// Scan walks the root and reconciles the whole index with it. Files are
// read concurrently and applied in walk order to a clone of the state,
// which is published in one swap. Indexed paths no longer found on disk
// are removed. Cancelling ctx stops between files: what was applied so
// far is published and persisted, removals are skipped, and ctx.Err() is
// returned.
func (i *Indexer) Scan(ctx context.Context) (ScanStats, error) {
	started := time.Now()

	i.writeMu.Lock()
	defer i.writeMu.Unlock()

	i.mu.RLock()
	next := i.state.Clone()
	i.mu.RUnlock()

	var paths, unreadable []string
	err := i.elig.WalkReporting(ctx, i.root, func(path string) error {
		paths = append(paths, path)
		return nil
	}, func(path string, err error) {
		unreadable = append(unreadable, path)
		i.logger.Warn("dir_unreadable",
			slog.String("path", path),
			slog.String("error", err.Error()))
	})
	if err != nil && ctx.Err() == nil {
		return ScanStats{}, docerrors.New(docerrors.ErrCodeIndexFailed, "failed to walk index root", err).
			WithDetail("root", i.root)
	}

	var stats ScanStats
	seen := make(map[string]struct{}, len(paths))
	interrupted := ctx.Err() != nil

	for start := 0; start < len(paths) && !interrupted; start += scanChunkSize {
		chunk := paths[start:min(start+scanChunkSize, len(paths))]
		results := make([]fileResult, len(chunk))

		var g errgroup.Group
		g.SetLimit(i.workers)
		for n, path := range chunk {
			g.Go(func() error {
				if ctx.Err() != nil {
					results[n] = fileResult{path: path, cancelled: true}
					return nil
				}
				results[n] = i.readFile(path, next.Hash)
				return nil
			})
		}
		_ = g.Wait()

		for _, r := range results {
			if r.cancelled {
				interrupted = true
				break
			}
			stats.Walked++
			if r.reason == "" || r.reason == ReasonUnreadable {
				seen[r.path] = struct{}{}
			}
			stats.count(i.apply(next, r))
		}
	}

	if !interrupted {
		for _, path := range next.Paths() {
			if _, ok := seen[path]; ok {
				continue
			}
			if under(path, unreadable) {
				// Contents unknown this pass; kept until the next scan can read them.
				stats.Skipped++
				i.metrics.FileSkipped(ReasonUnreadable)
				continue
			}
			if next.Remove(path) {
				stats.Removed++
				i.metrics.FileIndexed(OutcomeRemoved.String())
			}
		}
	}

	if stats.Changed() {
		i.publish(next)
	}
	stats.Documents = next.Docs.Len()
	stats.Duration = time.Since(started)
	i.metrics.ScanObserved(stats.Duration)

	i.logger.Info("scan_complete",
		slog.String("root", i.root),
		slog.Int("walked", stats.Walked),
		slog.Int("added", stats.Added),
		slog.Int("updated", stats.Updated),
		slog.Int("unchanged", stats.Unchanged),
		slog.Int("removed", stats.Removed),
		slog.Int("skipped", stats.Skipped),
		slog.Int("documents", stats.Documents),
		slog.Bool("interrupted", interrupted),
		slog.Duration("duration", stats.Duration))

	var persistErr error
	if stats.Changed() || !i.saved {
		persistErr = i.persist(ctx)
	}
	if interrupted {
		return stats, ctx.Err()
	}
	return stats, persistErr
}

// under reports whether path is one of dirs or lies below one of them.
func under(path string, dirs []string) bool {
	for _, dir := range dirs {
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// Persist writes the current state to the snapshot store.
func (i *Indexer) Persist(ctx context.Context) error {
	i.writeMu.Lock()
	defer i.writeMu.Unlock()
	return i.persist(ctx)
}

// persist saves the live state. Caller holds writeMu, so the state cannot
// change underneath the encoder. An already cancelled ctx is replaced by
// a bounded detached one: a scan interrupted by shutdown still saves what
// it published.
func (i *Indexer) persist(ctx context.Context) error {
	if i.snapshots == nil {
		return nil
	}

	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
		defer cancel()
	}

	if i.lock != nil {
		if err := i.lock.Lock(ctx); err != nil {
			i.metrics.SnapshotOp("save", "locked")
			i.logger.Warn("snapshot_locked", docerrors.LogAttrs(err)...)
			return err
		}
		defer func() {
			if err := i.lock.Unlock(); err != nil {
				i.logger.Warn("unlock_failed", slog.String("error", err.Error()))
			}
		}()
	}

	if err := i.snapshots.Save(ctx, i.state); err != nil {
		i.metrics.SnapshotOp("save", "error")
		code := docerrors.ErrCodeSnapshotWrite
		if errors.Is(err, syscall.ENOSPC) {
			code = docerrors.ErrCodeDiskFull
		}
		werr := docerrors.New(code, "failed to persist index", err).
			WithDetail("location", i.snapshots.Location())
		i.logger.Error("snapshot_save_failed", docerrors.LogAttrs(werr)...)
		return werr
	}

	i.metrics.SnapshotOp("save", "ok")
	i.saved = true
	return nil
}
