package preflight

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Aman-CERP/docdex/internal/config"
	"github.com/Aman-CERP/docdex/internal/ui"
)

// CheckStatus represents the result of a preflight check.
type CheckStatus int

const (
	// StatusPass indicates the check passed successfully.
	StatusPass CheckStatus = iota
	// StatusWarn indicates a non-critical warning.
	StatusWarn
	// StatusFail indicates the check failed.
	StatusFail
)

// String returns the string representation of a CheckStatus.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the status by name in JSON output.
func (s CheckStatus) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(s.String())), nil
}

// CheckResult holds the result of a single preflight check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical returns true if this is a required check that failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Target is what RunAll inspects.
type Target struct {
	Root    string
	DataDir string
	Config  *config.Config
}

// Checker performs preflight validation checks.
type Checker struct {
	verbose bool
	noColor bool
	output  io.Writer
}

// Option configures a Checker.
type Option func(*Checker)

// WithVerbose enables verbose output.
func WithVerbose(verbose bool) Option {
	return func(c *Checker) {
		c.verbose = verbose
	}
}

// WithOutput sets the output writer.
func WithOutput(w io.Writer) Option {
	return func(c *Checker) {
		c.output = w
	}
}

// WithNoColor disables styled output.
func WithNoColor(noColor bool) Option {
	return func(c *Checker) {
		c.noColor = noColor
	}
}

// New creates a new Checker with the given options.
func New(opts ...Option) *Checker {
	c := &Checker{
		output: os.Stdout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RunAll runs the environment checks for t. The data directory is
// created when missing, unless the root itself is unusable.
func (c *Checker) RunAll(_ context.Context, t Target) []CheckResult {
	root := c.CheckRoot(t.Root)
	results := []CheckResult{root}
	if root.Status == StatusPass {
		results = append(results,
			c.CheckWritePermissions(t.DataDir),
			c.CheckDiskSpace(t.DataDir))
	}
	results = append(results, c.CheckFileDescriptors())
	if t.Config != nil {
		results = append(results, c.Run("config", true, t.Config.Validate))
	}
	return results
}

// Run wraps fn as a named check: a nil error passes, any other fails.
func (c *Checker) Run(name string, required bool, fn func() error) CheckResult {
	result := CheckResult{Name: name, Required: required}
	if err := fn(); err != nil {
		result.Status = StatusFail
		if !required {
			result.Status = StatusWarn
		}
		result.Message = err.Error()
		return result
	}
	result.Status = StatusPass
	result.Message = "OK"
	return result
}

// HasCriticalFailures returns true if any required check failed.
func (c *Checker) HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// SummaryStatus returns a summary status string for the results.
func (c *Checker) SummaryStatus(results []CheckResult) string {
	hasWarnings := false
	hasCriticalFailure := false

	for _, r := range results {
		if r.IsCritical() {
			hasCriticalFailure = true
		}
		if r.Status == StatusWarn || (r.Status == StatusFail && !r.Required) {
			hasWarnings = true
		}
	}

	if hasCriticalFailure {
		return "failed"
	}
	if hasWarnings {
		return "ready_with_warnings"
	}
	return "ready"
}

// PrintResults prints check results to the configured output.
func (c *Checker) PrintResults(results []CheckResult) {
	styles := ui.GetStyles(c.noColor)

	_, _ = fmt.Fprintln(c.output, styles.Header.Render("docdex doctor"))
	_, _ = fmt.Fprintln(c.output)

	for _, r := range results {
		_, _ = fmt.Fprintf(c.output, "[%s] %s: %s\n", c.statusIcon(styles, r.Status), r.Name, r.Message)
		if c.verbose && r.Details != "" {
			_, _ = fmt.Fprintf(c.output, "      %s\n", styles.Dim.Render(r.Details))
		}
	}

	_, _ = fmt.Fprintln(c.output)
	status := c.SummaryStatus(results)
	_, _ = fmt.Fprintf(c.output, "Status: %s\n", strings.ToUpper(status))

	var warnings, errors []string
	for _, r := range results {
		if r.IsCritical() {
			errors = append(errors, r.Name+": "+r.Message)
		} else if r.Status != StatusPass {
			warnings = append(warnings, r.Name+": "+r.Message)
		}
	}

	if len(errors) > 0 {
		_, _ = fmt.Fprintln(c.output)
		_, _ = fmt.Fprintf(c.output, "%d error(s):\n", len(errors))
		for _, e := range errors {
			_, _ = fmt.Fprintf(c.output, "  - %s\n", e)
		}
	}

	if len(warnings) > 0 {
		_, _ = fmt.Fprintln(c.output)
		_, _ = fmt.Fprintf(c.output, "%d warning(s):\n", len(warnings))
		for _, w := range warnings {
			_, _ = fmt.Fprintf(c.output, "  - %s\n", w)
		}
	}
}

func (c *Checker) statusIcon(styles ui.Styles, status CheckStatus) string {
	switch status {
	case StatusPass:
		return styles.Success.Render("PASS")
	case StatusWarn:
		return styles.Warning.Render("WARN")
	case StatusFail:
		return styles.Error.Render("FAIL")
	default:
		return "????"
	}
}

// CheckRoot checks that the indexed root is a directory that can be
// listed.
func (c *Checker) CheckRoot(root string) CheckResult {
	result := CheckResult{
		Name:     "root_directory",
		Required: true,
	}

	info, err := os.Stat(root)
	switch {
	case err != nil:
		result.Status = StatusFail
		result.Message = err.Error()
		return result
	case !info.IsDir():
		result.Status = StatusFail
		result.Message = root + " is not a directory"
		return result
	}
	if _, err := os.ReadDir(root); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot list: %v", err)
		return result
	}

	result.Status = StatusPass
	result.Message = root
	return result
}

// CheckWritePermissions checks that snapshots can be written to dataDir,
// creating it when missing.
func (c *Checker) CheckWritePermissions(dataDir string) CheckResult {
	result := CheckResult{
		Name:     "write_permissions",
		Required: true,
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("permission denied: %v", err)
		return result
	}
	f, err := os.CreateTemp(dataDir, ".docdex-preflight-*")
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("permission denied: %v", err)
		return result
	}
	_ = f.Close()
	_ = os.Remove(f.Name())

	result.Status = StatusPass
	result.Message = "OK"
	result.Details = dataDir
	return result
}
