// Package docdex is the embeddable entry point to a local document index.
//
// A Service indexes every eligible text file under a root directory,
// keeps the index current while watching, and answers BM25 queries with
// highlighted snippets:
//
//	svc, err := docdex.Open(ctx, docdex.Options{Root: "~/notes"})
//	if err != nil {
//	    return err
//	}
//	defer svc.Close()
//
//	hits, err := svc.Search(ctx, "release checklist", 10)
//
// Open restores the last snapshot from the data directory and reconciles
// it with disk, or rebuilds from disk when none is usable. Watch blocks and applies file changes
// until its context is cancelled.
package docdex

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"os"
	"sync/atomic"

	"github.com/Aman-CERP/docdex/internal/config"
	docerrors "github.com/Aman-CERP/docdex/internal/errors"
	"github.com/Aman-CERP/docdex/internal/index"
	"github.com/Aman-CERP/docdex/internal/metrics"
	"github.com/Aman-CERP/docdex/internal/search"
	"github.com/Aman-CERP/docdex/internal/store"
	"github.com/Aman-CERP/docdex/internal/watcher"
	"github.com/Aman-CERP/docdex/pkg/version"
)

// ErrAlreadyWatching is returned by Watch when another Watch call is
// active on the same Service.
var ErrAlreadyWatching = errors.New("already watching")

// Hit is one search result.
type Hit struct {
	Title   string  `json:"title"`
	Path    string  `json:"path"`
	Score   float64 `json:"score"`
	Snippet string  `json:"snippet"`
}

// Status describes the index.
type Status struct {
	Root       string `json:"root"`
	DataDir    string `json:"data_dir,omitempty"`
	Backend    string `json:"backend,omitempty"`
	Snapshot   string `json:"snapshot,omitempty"`
	Documents  int    `json:"documents"`
	Terms      int    `json:"terms"`
	Generation uint64 `json:"generation"`
	Watching   bool   `json:"watching"`
	Version    string `json:"version"`
}

// Options configures Open.
type Options struct {
	// Root is the directory to index. Required.
	Root string

	// Config overrides the layered configuration loaded from Root.
	Config *config.Config

	// InMemory disables snapshot persistence.
	InMemory bool

	// SkipRebuild serves the snapshot as saved: no scan reconciles it with
	// Root, and the index stays empty when no snapshot can be loaded.
	SkipRebuild bool

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Service is a document index over one root directory. It is safe for
// concurrent use.
type Service struct {
	cfg       *config.Config
	dataDir   string
	backend   string
	snapshots store.SnapshotStore
	indexer   *index.Indexer
	engine    *search.Engine
	metrics   *metrics.Metrics
	logger    *slog.Logger
	watching  atomic.Bool
}

// Open builds the service for opts.Root, restoring its snapshot and
// catching up with changes made on disk since it was saved.
func Open(ctx context.Context, opts Options) (*Service, error) {
	if opts.Root == "" {
		return nil, docerrors.New(docerrors.ErrCodeInvalidPath, "root directory is required", nil)
	}
	info, err := os.Stat(opts.Root)
	if err != nil {
		return nil, docerrors.FileError(opts.Root, err)
	}
	if !info.IsDir() {
		return nil, docerrors.New(docerrors.ErrCodeInvalidPath, "root is not a directory", nil).
			WithDetail("root", opts.Root)
	}

	cfg := opts.Config
	if cfg == nil {
		cfg, err = config.Load(opts.Root)
		if err != nil {
			return nil, err
		}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		cfg:     cfg,
		metrics: opts.Metrics,
		logger:  logger,
	}

	idxOpts := index.Options{
		Root:        opts.Root,
		Eligibility: index.NewEligibility(cfg.Paths),
		Metrics:     opts.Metrics,
		Logger:      logger,
	}
	if !opts.InMemory {
		s.dataDir = cfg.ResolveDataDir(opts.Root)
		s.backend = cfg.Storage.Backend
		s.snapshots, err = store.OpenSnapshotStore(s.dataDir, s.backend)
		if err != nil {
			return nil, docerrors.ConfigError("cannot open snapshot store", err).
				WithDetail("backend", s.backend)
		}
		idxOpts.Snapshots = s.snapshots
		idxOpts.Lock = store.NewDirLock(s.dataDir)
	}

	s.indexer, err = index.New(idxOpts)
	if err != nil {
		_ = s.closeSnapshots()
		return nil, err
	}
	s.engine, err = search.NewEngine(s.indexer, search.ConfigFrom(cfg.Search),
		search.WithMetrics(opts.Metrics),
		search.WithLogger(logger))
	if err != nil {
		_ = s.closeSnapshots()
		return nil, err
	}

	loaded, err := s.indexer.Load(ctx)
	if err != nil {
		_ = s.closeSnapshots()
		return nil, err
	}
	// A loaded snapshot may predate edits made while nothing was running.
	// Unchanged files are recognised by hash and cost one read each.
	if !opts.SkipRebuild {
		logger.Debug("startup_scan", slog.String("root", opts.Root), slog.Bool("snapshot_loaded", loaded))
		if _, err := s.Reindex(ctx); err != nil {
			if ctx.Err() != nil || docerrors.HasCode(err, docerrors.ErrCodeIndexFailed) {
				_ = s.closeSnapshots()
				return nil, err
			}
			// The index is live; only the snapshot write failed.
			logger.Warn("initial_snapshot_failed", docerrors.LogAttrs(err)...)
		}
	}
	return s, nil
}

// Search returns up to limit hits for query, best first. A limit <= 0
// uses the configured default. Scores are rounded to two decimals.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]Hit, error) {
	results, err := s.engine.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	hits := make([]Hit, len(results))
	for n, r := range results {
		hits[n] = Hit{
			Title:   r.Title,
			Path:    r.Path,
			Score:   math.Round(r.Score*100) / 100,
			Snippet: r.Snippet,
		}
	}
	return hits, nil
}

// Reindex rescans the root and returns the resulting document count.
// A persistence failure is returned alongside the count of the live,
// already updated index.
func (s *Service) Reindex(ctx context.Context) (int, error) {
	stats, err := s.indexer.Scan(ctx)
	if err != nil {
		return s.indexer.Count(), err
	}
	return stats.Documents, nil
}

// Status reports the size and location of the index.
func (s *Service) Status() Status {
	st := Status{
		Root:       s.indexer.Root(),
		DataDir:    s.dataDir,
		Backend:    s.backend,
		Generation: s.indexer.Generation(),
		Watching:   s.watching.Load(),
		Version:    version.Short(),
	}
	if s.snapshots != nil {
		st.Snapshot = s.snapshots.Location()
	}
	s.indexer.View(func(state *store.State) {
		st.Documents = state.Docs.Len()
		st.Terms = state.Index.Len()
	})
	return st
}

// Verify checks the index invariants.
func (s *Service) Verify() error {
	return s.indexer.Verify()
}

// Watch applies file changes under the root until ctx is cancelled.
// It blocks and returns nil on cancellation.
func (s *Service) Watch(ctx context.Context) error {
	if !s.watching.CompareAndSwap(false, true) {
		return ErrAlreadyWatching
	}
	defer s.watching.Store(false)

	w, err := watcher.NewHybridWatcher(watcher.Options{
		DebounceWindow: s.cfg.DebounceDuration(),
		PollInterval:   s.cfg.PollDuration(),
		Filter:         s.indexer.Eligibility(),
	})
	if err != nil {
		return docerrors.InternalError("cannot start file watcher", err)
	}
	defer func() {
		_ = w.Stop()
		if dropped := w.DroppedBatches(); dropped > 0 {
			s.logger.Warn("watch_stopped", slog.Uint64("dropped_batches", dropped))
		}
	}()

	started := make(chan error, 1)
	go func() { started <- w.Start(ctx, s.indexer.Root()) }()

	s.logger.Info("watch_started",
		slog.String("root", s.indexer.Root()),
		slog.String("watcher", w.WatcherType()))

	events, watchErrs := w.Events(), w.Errors()
	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-started:
			if err != nil && ctx.Err() == nil {
				return docerrors.InternalError("file watcher stopped", err)
			}
			return nil
		case batch, ok := <-events:
			if !ok {
				return nil
			}
			if err := s.indexer.HandleEvents(ctx, batch); err != nil {
				s.logger.Warn("watch_batch_failed", docerrors.LogAttrs(err)...)
			}
		case err, ok := <-watchErrs:
			if !ok {
				watchErrs = nil
				continue
			}
			s.logger.Warn("watcher_error", slog.String("error", err.Error()))
		}
	}
}

// Indexer exposes the underlying indexer for adapters that need
// per-path operations.
func (s *Service) Indexer() *index.Indexer { return s.indexer }

// Metrics returns the collectors the service records into, or nil.
func (s *Service) Metrics() *metrics.Metrics { return s.metrics }

// Config returns the effective configuration.
func (s *Service) Config() *config.Config { return s.cfg }

// Close releases the snapshot store. Every mutation has already been
// persisted by the time it returned.
func (s *Service) Close() error {
	return s.closeSnapshots()
}

func (s *Service) closeSnapshots() error {
	if s.snapshots == nil {
		return nil
	}
	return s.snapshots.Close()
}
