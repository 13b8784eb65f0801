package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docdex/internal/config"
	"github.com/Aman-CERP/docdex/internal/daemon"
	docerrors "github.com/Aman-CERP/docdex/internal/errors"
	"github.com/Aman-CERP/docdex/internal/ui"
	"github.com/Aman-CERP/docdex/pkg/docdex"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit  int
	format string // "text", "json"
	local  bool   // bypass the daemon
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed documents",
		Long: `Search the indexed documents with BM25 ranking.

Words in the query are matched against document titles and contents;
a title match weighs more than one in the body. Results show the best
matching window of each document with the query terms highlighted.

The running daemon answers when there is one. Otherwise the saved
index is loaded, or built when missing.`,
		Example: `  docdex search "release checklist"
  docdex search kubernetes --limit 5
  docdex search 東京 --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolveRoot(nil)
			if err != nil {
				return err
			}
			return runSearch(cmd.Context(), cmd, root, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default: search.max_results)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")
	cmd.Flags().BoolVar(&opts.local, "local", false, "Force local search (bypass daemon)")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, root, query string, opts searchOptions) error {
	if opts.format != "text" && opts.format != "json" {
		return docerrors.ValidationError(fmt.Sprintf("invalid format %q", opts.format), nil).
			WithSuggestion("use --format text or --format json")
	}
	if opts.limit < 0 || opts.limit > daemon.MaxLimit {
		return docerrors.New(docerrors.ErrCodeInvalidQuery, fmt.Sprintf("invalid limit %d", opts.limit), nil).
			WithSuggestion(fmt.Sprintf("pick a limit between 0 and %d", daemon.MaxLimit))
	}

	cfg, err := config.Load(root)
	if err != nil {
		return err
	}

	slog.Info("search_started", slog.String("query", query), slog.Int("limit", opts.limit))
	hits, mode, err := searchHits(ctx, root, cfg, query, opts)
	if err != nil {
		return err
	}
	slog.Info("search_complete", slog.String("mode", mode), slog.Int("results", len(hits)))

	renderer := ui.NewResultsRenderer(cmd.OutOrStdout(), !useColor(cmd))
	if opts.format == "json" {
		return renderer.RenderJSON(hits)
	}
	return renderer.Render(query, hits)
}

// searchHits asks the daemon first and falls back to the saved index.
func searchHits(ctx context.Context, root string, cfg *config.Config, query string, opts searchOptions) ([]docdex.Hit, string, error) {
	if !opts.local {
		results, err := daemonClient(cfg, root).Search(ctx, daemon.SearchParams{Query: query, Limit: opts.limit})
		switch {
		case err == nil:
			return hitsFromDaemon(results), "daemon", nil
		case errors.Is(err, daemon.ErrNotRunning):
		default:
			slog.Warn("daemon_search_failed", slog.String("error", err.Error()))
		}
	}

	svc, err := docdex.Open(ctx, docdex.Options{Root: root, Config: cfg, Logger: slog.Default()})
	if err != nil {
		return nil, "local", err
	}
	defer func() { _ = svc.Close() }()

	hits, err := svc.Search(ctx, query, opts.limit)
	return hits, "local", err
}

func hitsFromDaemon(results []daemon.SearchResult) []docdex.Hit {
	hits := make([]docdex.Hit, len(results))
	for n, r := range results {
		hits[n] = docdex.Hit{Title: r.Title, Path: r.Path, Score: r.Score, Snippet: r.Snippet}
	}
	return hits
}
