package cmd

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docdex/internal/config"
	"github.com/Aman-CERP/docdex/internal/index"
	"github.com/Aman-CERP/docdex/internal/output"
)

type indexOptions struct {
	jsonOutput bool
	local      bool
}

func newIndexCmd() *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index [path]",
		Short: "Scan a directory and update its index",
		Long: `Scan every eligible file under path (default: the project root) and
bring the saved index up to date. Unchanged files are skipped by content
hash; files that disappeared are removed.

When a daemon is serving the directory the scan runs inside it, so the
live index and the snapshot stay in step.`,
		Example: `  docdex index
  docdex index ~/notes
  docdex index --json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := resolveRoot(args)
			if err != nil {
				return err
			}
			return runIndex(cmd.Context(), cmd, root, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Output scan statistics as JSON")
	cmd.Flags().BoolVar(&opts.local, "local", false, "Scan in this process even if a daemon is running")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, root string, opts indexOptions) error {
	cfg, err := config.Load(root)
	if err != nil {
		return err
	}
	out := output.NewWithColor(cmd.OutOrStdout(), useColor(cmd))

	if client := daemonClient(cfg, root); !opts.local && client.IsRunning() {
		slog.Info("index_using_daemon", slog.String("root", root))
		res, err := client.Reindex(ctx)
		if err != nil {
			return err
		}
		if opts.jsonOutput {
			return writeJSON(cmd, index.ScanStats{Documents: res.Count})
		}
		out.Successf("Indexed %d documents (daemon)", res.Count)
		return nil
	}

	svc, err := openLocal(ctx, root, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	stats, err := svc.Indexer().Scan(ctx)
	if err != nil {
		return err
	}

	if opts.jsonOutput {
		return writeJSON(cmd, stats)
	}
	out.Successf("Indexed %d documents in %s", stats.Documents, stats.Duration.Round(time.Millisecond))
	out.KeyValue("Root", root)
	out.KeyValue("Added", stats.Added)
	out.KeyValue("Updated", stats.Updated)
	out.KeyValue("Unchanged", stats.Unchanged)
	out.KeyValue("Removed", stats.Removed)
	if stats.Skipped > 0 {
		out.Warningf("%d files skipped, run with --debug for reasons", stats.Skipped)
	}
	return nil
}

func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
