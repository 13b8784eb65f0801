package cmd

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docdex/internal/config"
	"github.com/Aman-CERP/docdex/internal/daemon"
	"github.com/Aman-CERP/docdex/internal/ui"
	"github.com/Aman-CERP/docdex/pkg/docdex"
)

func newStatusCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index status",
		Long: `Show the document and term counts of the index, where its snapshot
lives and whether a daemon is serving it.

The daemon's live index is reported when one is running; otherwise the
saved snapshot is read without scanning.`,
		Example: `  docdex status
  docdex status --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			root, err := resolveRoot(nil)
			if err != nil {
				return err
			}
			return runStatus(cmd.Context(), cmd, root, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runStatus(ctx context.Context, cmd *cobra.Command, root string, jsonOutput bool) error {
	cfg, err := config.Load(root)
	if err != nil {
		return err
	}

	info, err := collectStatus(ctx, root, cfg)
	if err != nil {
		return err
	}

	renderer := ui.NewStatusRenderer(cmd.OutOrStdout(), !useColor(cmd))
	if jsonOutput {
		return renderer.RenderJSON(info)
	}
	return renderer.Render(info)
}

func collectStatus(ctx context.Context, root string, cfg *config.Config) (ui.StatusInfo, error) {
	var info ui.StatusInfo

	if st, err := daemonClient(cfg, root).Status(ctx); err == nil {
		info.Status = statusFromDaemon(st)
		info.DaemonPID = st.PID
		info.DaemonUptime = st.Uptime
	} else {
		svc, err := openLocal(ctx, root, cfg)
		if err != nil {
			return info, err
		}
		info.Status = svc.Status()
		_ = svc.Close()
	}

	if info.Snapshot != "" {
		if fi, err := os.Stat(info.Snapshot); err == nil && !fi.IsDir() {
			info.SnapshotSize = fi.Size()
			info.SnapshotSaved = fi.ModTime()
		}
	}
	return info, nil
}

func statusFromDaemon(st *daemon.StatusResult) docdex.Status {
	return docdex.Status{
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
