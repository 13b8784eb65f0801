package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	docerrors "github.com/Aman-CERP/docdex/internal/errors"
	"github.com/Aman-CERP/docdex/pkg/docdex"
)

// ErrAlreadyRunning is returned by Start when another live daemon owns the
// socket.
var ErrAlreadyRunning = errors.New("daemon already running")

// Backend is the index a daemon serves. *docdex.Service implements it.
type Backend interface {
	Search(ctx context.Context, query string, limit int) ([]docdex.Hit, error)
	Reindex(ctx context.Context) (int, error)
	Status() docdex.Status
}

// Daemon owns the PID file and socket server for one index.
type Daemon struct {
	cfg     Config
	backend Backend
	server  *Server
	pidFile *PIDFile
	logger  *slog.Logger
}

// Option configures a Daemon.
type Option func(*Daemon)

// WithLogger sets the daemon's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Daemon) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDaemon creates a daemon serving backend.
func NewDaemon(cfg Config, backend Backend, opts ...Option) (*Daemon, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if backend == nil {
		return nil, fmt.Errorf("invalid config: backend is required")
	}

	d := &Daemon{
		cfg:     cfg,
		backend: backend,
		pidFile: NewPIDFile(cfg.PIDPath),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}

	server, err := NewServer(cfg.SocketPath, d.logger)
	if err != nil {
		return nil, err
	}
	server.SetHandler(d)
	server.SetShutdownGracePeriod(cfg.ShutdownGracePeriod)
	d.server = server
	return d, nil
}

// Start writes the PID file and serves requests until ctx is cancelled.
// It returns ctx.Err() after a clean shutdown.
func (d *Daemon) Start(ctx context.Context) error {
	if err := d.cfg.EnsureDir(); err != nil {
		return err
	}

	if d.pidFile.IsRunning() {
		pid, _ := d.pidFile.Read()
		if pid != os.Getpid() && NewClient(d.cfg).IsRunning() {
			return fmt.Errorf("%w (pid %d)", ErrAlreadyRunning, pid)
		}
	}
	// Anything left at this point belongs to a dead process.
	if err := d.pidFile.Remove(); err != nil {
		return err
	}
	if err := d.pidFile.Write(); err != nil {
		return err
	}
	defer func() {
		if err := d.pidFile.Remove(); err != nil {
			d.logger.Warn("pid_file_remove_failed", slog.String("error", err.Error()))
		}
	}()

	status := d.backend.Status()
	d.logger.Info("daemon_started",
		slog.Int("pid", os.Getpid()),
		slog.String("root", status.Root),
		slog.Int("documents", status.Documents))

	err := d.server.ListenAndServe(ctx)

	d.logger.Info("daemon_stopped", slog.Int("pid", os.Getpid()))
	return err
}

// HandleSearch implements RequestHandler.
func (d *Daemon) HandleSearch(ctx context.Context, params SearchParams) ([]SearchResult, error) {
	hits, err := d.backend.Search(ctx, params.Query, params.Limit)
	if err != nil {
		d.logger.Warn("daemon_search_failed", docerrors.LogAttrs(err)...)
		return nil, err
	}

	results := make([]SearchResult, len(hits))
	for n, h := range hits {
		results[n] = SearchResult{
			Title:   h.Title,
			Path:    h.Path,
			Score:   h.Score,
			Snippet: h.Snippet,
		}
	}
	return results, nil
}

// HandleReindex implements RequestHandler.
func (d *Daemon) HandleReindex(ctx context.Context) (ReindexResult, error) {
	count, err := d.backend.Reindex(ctx)
	if err != nil {
		d.logger.Warn("daemon_reindex_failed", docerrors.LogAttrs(err)...)
		return ReindexResult{}, err
	}
	return ReindexResult{Status: "success", Count: count}, nil
}

// GetStatus implements RequestHandler. Process fields are filled in by
// the server.
func (d *Daemon) GetStatus() StatusResult {
	st := d.backend.Status()
	return StatusResult{
		Root:       st.Root,
		DataDir:    st.DataDir,
		Backend:    st.Backend,
		Snapshot:   st.Snapshot,
		Documents:  st.Documents,
		Terms:      st.Terms,
		Generation: st.Generation,
		Watching:   st.Watching,
		Version:    st.Version,
	}
}
