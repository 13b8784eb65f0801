package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/Aman-CERP/docdex/pkg/docdex"
)

// StatusInfo contains index health information.
type StatusInfo struct {
	docdex.Status

	// Snapshot file details, zero when the index is in memory only.
	SnapshotSize  int64     `json:"snapshot_size,omitempty"`
	SnapshotSaved time.Time `json:"snapshot_saved,omitzero"`

	// Daemon details, zero when no daemon answered.
	DaemonPID    int    `json:"daemon_pid,omitempty"`
	DaemonUptime string `json:"daemon_uptime,omitempty"`
}

// StatusRenderer displays index status.
type StatusRenderer struct {
	out    io.Writer
	styles Styles
}

// NewStatusRenderer creates a status renderer.
func NewStatusRenderer(out io.Writer, noColor bool) *StatusRenderer {
	return &StatusRenderer{
		out:    out,
		styles: GetStyles(noColor),
	}
}

// Render displays status info to terminal.
func (r *StatusRenderer) Render(info StatusInfo) error {
	_, _ = fmt.Fprintf(r.out, "%s\n\n", r.styles.Header.Render("Index Status: "+info.Root))

	_, _ = fmt.Fprintf(r.out, "  Documents:  %d\n", info.Documents)
	_, _ = fmt.Fprintf(r.out, "  Terms:      %d\n", info.Terms)
	_, _ = fmt.Fprintf(r.out, "  Generation: %d\n", info.Generation)
	_, _ = fmt.Fprintln(r.out)

	_, _ = fmt.Fprintln(r.out, "  Storage:")
	if info.Snapshot == "" {
		_, _ = fmt.Fprintf(r.out, "    Backend:  %s\n", r.styles.Warning.Render("memory only"))
	} else {
		_, _ = fmt.Fprintf(r.out, "    Backend:  %s\n", info.Backend)
		_, _ = fmt.Fprintf(r.out, "    Snapshot: %s\n", info.Snapshot)
		if info.SnapshotSize > 0 {
			_, _ = fmt.Fprintf(r.out, "    Size:     %s\n", FormatBytes(info.SnapshotSize))
		}
		if !info.SnapshotSaved.IsZero() {
			_, _ = fmt.Fprintf(r.out, "    Saved:    %s\n", formatTime(info.SnapshotSaved))
		}
	}
	_, _ = fmt.Fprintln(r.out)

	if info.DaemonPID > 0 {
		_, _ = fmt.Fprintf(r.out, "  Daemon:  %s (pid %d, up %s)\n",
			r.renderState("running"), info.DaemonPID, info.DaemonUptime)
	} else {
		_, _ = fmt.Fprintf(r.out, "  Daemon:  %s\n", r.renderState("stopped"))
	}
	if info.Watching {
		_, _ = fmt.Fprintf(r.out, "  Watcher: %s\n", r.renderState("running"))
	}
	_, _ = fmt.Fprintf(r.out, "  Version: %s\n", r.styles.Label.Render(info.Version))

	return nil
}

// RenderJSON outputs status as JSON.
func (r *StatusRenderer) RenderJSON(info StatusInfo) error {
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

func (r *StatusRenderer) renderState(state string) string {
	switch state {
	case "running":
		return r.styles.Success.Render(state)
	case "stopped":
		return r.styles.Warning.Render(state)
	default:
		return state
	}
}

// formatTime formats a time relative to now.
func formatTime(t time.Time) string {
	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	default:
		return t.Format("2006-01-02 15:04")
	}
}

// FormatBytes formats bytes to human-readable format.
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
