package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Aman-CERP/docdex/internal/config"
	"github.com/Aman-CERP/docdex/internal/daemon"
	"github.com/Aman-CERP/docdex/internal/httpapi"
	"github.com/Aman-CERP/docdex/internal/metrics"
	"github.com/Aman-CERP/docdex/internal/output"
	"github.com/Aman-CERP/docdex/pkg/docdex"
)

type serveOptions struct {
	httpAddr string
	noWatch  bool
	inMemory bool
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Keep the index current and answer queries",
		Long: `Load or build the index, then serve it until interrupted:

  - file changes under the root are applied as they happen
  - 'docdex search', 'status' and 'index' in other terminals talk to
    this process over a unix socket in the data directory
  - with --http (or server.http_addr) a JSON API, a search page and
    Prometheus metrics are served as well`,
		Example: `  docdex serve
  docdex serve --root ~/notes --http 127.0.0.1:8090
  docdex serve --no-watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			root, err := resolveRoot(nil)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cmd, root, opts)
		},
	}

	cmd.Flags().StringVar(&opts.httpAddr, "http", "", "Serve the HTTP API on this address (overrides server.http_addr)")
	cmd.Flags().BoolVar(&opts.noWatch, "no-watch", false, "Do not watch for file changes")
	cmd.Flags().BoolVar(&opts.inMemory, "memory", false, "Keep the index in memory only, without snapshots")

	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, root string, opts serveOptions) error {
	cfg, err := config.Load(root)
	if err != nil {
		return err
	}
	if opts.httpAddr != "" {
		cfg.Server.HTTPAddr = opts.httpAddr
	}
	logger := slog.Default()

	dcfg := daemon.DefaultConfig(cfg.ResolveDataDir(root))
	if daemon.NewClient(dcfg).IsRunning() {
		return fmt.Errorf("%w for %s", daemon.ErrAlreadyRunning, root)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	svc, err := docdex.Open(ctx, docdex.Options{
		Root:     root,
		Config:   cfg,
		InMemory: opts.inMemory,
		Logger:   logger,
		Metrics:  m,
	})
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	d, err := daemon.NewDaemon(dcfg, svc, daemon.WithLogger(logger))
	if err != nil {
		return err
	}

	out := output.NewWithColor(cmd.OutOrStdout(), useColor(cmd))
	st := svc.Status()
	out.Successf("Serving %d documents from %s", st.Documents, root)
	out.KeyValue("Socket", dcfg.SocketPath)
	if cfg.Server.HTTPAddr != "" {
		out.KeyValue("HTTP", "http://"+cfg.Server.HTTPAddr)
	}
	if !opts.noWatch {
		out.KeyValue("Watching", root)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := d.Start(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	if !opts.noWatch {
		g.Go(func() error { return svc.Watch(gctx) })
	}
	if addr := cfg.Server.HTTPAddr; addr != "" {
		api := httpapi.New(svc, httpapi.WithMetrics(m), httpapi.WithLogger(logger))
		g.Go(func() error { return api.ListenAndServe(gctx, addr) })
	}

	err = g.Wait()
	out.Status("", "Stopped.")
	return err
}
