// Package cmd provides the CLI commands for docdex.
package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/docdex/internal/config"
	"github.com/Aman-CERP/docdex/internal/daemon"
	docerrors "github.com/Aman-CERP/docdex/internal/errors"
	"github.com/Aman-CERP/docdex/internal/logging"
	"github.com/Aman-CERP/docdex/internal/ui"
	"github.com/Aman-CERP/docdex/pkg/docdex"
	"github.com/Aman-CERP/docdex/pkg/version"
)

// Global flags
var (
	debugMode      bool
	noColor        bool
	rootDir        string
	loggingCleanup func()
)

// NewRootCmd creates the root command for the docdex CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "docdex",
		Short: "Local full-text search over a directory of documents",
		Long: `docdex indexes the text files under a directory and answers
ranked keyword queries with highlighted snippets.

Run 'docdex serve' to keep the index current as files change and to
answer searches from other terminals, or 'docdex search' for a one-off
query against the saved index.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("docdex version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.docdex/logs/")
	cmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	cmd.PersistentFlags().StringVarP(&rootDir, "root", "r", "", "Directory to index (default: nearest project root)")

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newDoctorCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startLogging routes slog to the rotating log file.
func startLogging(_ *cobra.Command, _ []string) error {
	cfg := logging.DefaultConfig()
	if debugMode {
		cfg = logging.DebugConfig()
	}
	logger, cleanup, err := logging.Setup(cfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	if debugMode {
		slog.Debug("debug_logging_enabled",
			slog.String("log_file", cfg.FilePath),
			slog.String("version", version.Short()))
	}
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	c, err := NewRootCmd().ExecuteC()
	if err != nil {
		printError(os.Stderr, c, err)
	}
	return err
}

// printError writes err for the user, as a JSON object when the failing
// command was asked for JSON output.
func printError(w io.Writer, c *cobra.Command, err error) {
	if wantsJSON(c) {
		if data, jsonErr := docerrors.FormatJSON(err); jsonErr == nil {
			_, _ = fmt.Fprintln(w, string(data))
			return
		}
	}
	_, _ = fmt.Fprint(w, docerrors.FormatForCLI(err))
}

func wantsJSON(c *cobra.Command) bool {
	if c == nil {
		return false
	}
	if f := c.Flags().Lookup("json"); f != nil && f.Value.String() == "true" {
		return true
	}
	if f := c.Flags().Lookup("format"); f != nil && f.Value.String() == "json" {
		return true
	}
	return false
}

// resolveRoot returns the absolute directory a command operates on: the
// positional path when given, then --root, then the nearest project root
// above the working directory.
func resolveRoot(args []string) (string, error) {
	dir := rootDir
	if len(args) > 0 {
		dir = args[0]
	}
	if dir != "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return "", fmt.Errorf("failed to resolve %s: %w", dir, err)
		}
		return abs, nil
	}
	return config.FindProjectRoot(".")
}

// daemonClient returns a client for the daemon serving root.
func daemonClient(cfg *config.Config, root string) *daemon.Client {
	return daemon.NewClient(daemon.DefaultConfig(cfg.ResolveDataDir(root)))
}

// openLocal opens the saved index for root without scanning it.
func openLocal(ctx context.Context, root string, cfg *config.Config) (*docdex.Service, error) {
	return docdex.Open(ctx, docdex.Options{
		Root:        root,
		Config:      cfg,
		SkipRebuild: true,
		Logger:      slog.Default(),
	})
}

// useColor reports whether styled output should be written to cmd's
// stdout.
func useColor(cmd *cobra.Command) bool {
	return !noColor && ui.UseColor(cmd.OutOrStdout())
}
