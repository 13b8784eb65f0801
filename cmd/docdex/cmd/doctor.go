package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docdex/internal/config"
	"github.com/Aman-CERP/docdex/internal/preflight"
)

// errDoctorFailed is returned when a required check fails, so the exit
// status reflects the diagnosis.
var errDoctorFailed = errors.New("doctor found critical failures")

type doctorReport struct {
	Root   string                  `json:"root"`
	Status string                  `json:"status"`
	Checks []preflight.CheckResult `json:"checks"`
}

func newDoctorCmd() *cobra.Command {
	var (
		verbose    bool
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the environment and the index for problems",
		Long: `Run diagnostics for the project root:

  - the root directory exists and can be listed
  - the data directory is writable and has free space
  - the file descriptor limit suits the file watcher
  - the configuration is valid
  - the saved index is internally consistent: every posting refers to a
    live document and the corpus statistics match the documents

The consistency check is skipped while a daemon is serving the index.`,
		Example: `  docdex doctor
  docdex doctor --verbose
  docdex doctor --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			root, err := resolveRoot(nil)
			if err != nil {
				return err
			}
			return runDoctor(cmd.Context(), cmd, root, verbose, jsonOutput)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed diagnostic info")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func runDoctor(ctx context.Context, cmd *cobra.Command, root string, verbose, jsonOutput bool) error {
	checker := preflight.New(
		preflight.WithOutput(cmd.OutOrStdout()),
		preflight.WithVerbose(verbose),
		preflight.WithNoColor(!useColor(cmd)),
	)

	cfg, cfgErr := config.Load(root)
	if cfgErr != nil {
		cfg = config.NewConfig()
	}
	results := checker.RunAll(ctx, preflight.Target{
		Root:    root,
		DataDir: cfg.ResolveDataDir(root),
		Config:  cfg,
	})
	if cfgErr != nil {
		results = append(results, checker.Run("config_load", true, func() error { return cfgErr }))
	}
	results = append(results, checkIndex(ctx, checker, root, cfg))

	if jsonOutput {
		if err := writeJSON(cmd, doctorReport{
			Root:   root,
			Status: checker.SummaryStatus(results),
			Checks: results,
		}); err != nil {
			return err
		}
	} else {
		checker.PrintResults(results)
	}

	if checker.HasCriticalFailures(results) {
		return errDoctorFailed
	}
	return nil
}

// checkIndex verifies the saved index, or reports the daemon serving it.
func checkIndex(ctx context.Context, checker *preflight.Checker, root string, cfg *config.Config) preflight.CheckResult {
	if st, err := daemonClient(cfg, root).Status(ctx); err == nil {
		return preflight.CheckResult{
			Name:    "index_consistency",
			Status:  preflight.StatusPass,
			Message: fmt.Sprintf("skipped, served by daemon (pid %d)", st.PID),
		}
	}

	return checker.Run("index_consistency", true, func() error {
		svc, err := openLocal(ctx, root, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = svc.Close() }()
		return svc.Verify()
	})
}
