package logging

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// LogEntry is one parsed JSON log line.
type LogEntry struct {
	Time  time.Time
	Level string
	Msg   string
	Attrs map[string]any
	Raw   string
	// Valid is false when the line was not a JSON record.
	Valid bool
}

// ParseEntry parses a line written by the JSON handler. Lines that are
// not JSON come back with Valid unset and only Raw filled in.
func ParseEntry(line string) LogEntry {
	entry := LogEntry{Raw: line}

	var fields map[string]any
	if err := json.Unmarshal([]byte(line), &fields); err != nil {
		return entry
	}
	entry.Valid = true

	if s, ok := fields[slogTime].(string); ok {
		entry.Time, _ = time.Parse(time.RFC3339Nano, s)
	}
	entry.Level, _ = fields[slogLevel].(string)
	entry.Msg, _ = fields[slogMsg].(string)
	delete(fields, slogTime)
	delete(fields, slogLevel)
	delete(fields, slogMsg)
	entry.Attrs = fields
	return entry
}

const (
	slogTime  = "time"
	slogLevel = "level"
	slogMsg   = "msg"
)

// ViewerConfig configures the log viewer.
type ViewerConfig struct {
	// Level is the minimum level shown; empty shows everything.
	Level   string
	Pattern *regexp.Regexp
	NoColor bool
}

// Viewer filters and formats log files for `docdex logs`.
type Viewer struct {
	cfg      ViewerConfig
	out      io.Writer
	minLevel int
	levels   map[string]lipgloss.Style
	dim      lipgloss.Style
}

// NewViewer creates a viewer writing to out.
func NewViewer(cfg ViewerConfig, out io.Writer) *Viewer {
	v := &Viewer{
		cfg:    cfg,
		out:    out,
		dim:    lipgloss.NewStyle(),
		levels: map[string]lipgloss.Style{},
	}
	if cfg.Level != "" {
		v.minLevel = int(ParseLevel(cfg.Level))
	} else {
		v.minLevel = int(ParseLevel("debug"))
	}
	if !cfg.NoColor {
		v.dim = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
		v.levels = map[string]lipgloss.Style{
			"DEBUG": lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
			"INFO":  lipgloss.NewStyle().Foreground(lipgloss.Color("154")),
			"WARN":  lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
			"ERROR": lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		}
	}
	return v
}

// Matches reports whether entry passes the level and pattern filters.
// Lines that are not JSON records are filtered by pattern only.
func (v *Viewer) Matches(entry LogEntry) bool {
	if entry.Valid && int(ParseLevel(entry.Level)) < v.minLevel {
		return false
	}
	if v.cfg.Pattern != nil && !v.cfg.Pattern.MatchString(entry.Raw) {
		return false
	}
	return true
}

// Tail returns the last n matching entries of the file at path.
func (v *Viewer) Tail(path string, n int) ([]LogEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	if n <= 0 {
		return nil, nil
	}
	ring := make([]LogEntry, 0, n)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		entry := ParseEntry(line)
		if !v.Matches(entry) {
			continue
		}
		if len(ring) == n {
			ring = append(ring[:0], ring[1:]...)
		}
		ring = append(ring, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}
	return ring, nil
}

// Follow calls fn for every matching entry appended to path after the
// call, until ctx is cancelled. A truncated or rotated file is reopened
// from the start.
func (v *Viewer) Follow(ctx context.Context, path string, fn func(LogEntry)) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = file.Close() }()

	offset, err := file.Seek(0, io.SeekEnd)
	if err != nil {
		return fmt.Errorf("failed to seek to end: %w", err)
	}
	reader := bufio.NewReader(file)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	var partial string
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		if info, err := os.Stat(path); err == nil && info.Size() < offset {
			_ = file.Close()
			if file, err = os.Open(path); err != nil {
				return fmt.Errorf("failed to reopen log file: %w", err)
			}
			reader.Reset(file)
			offset, partial = 0, ""
		}

		for {
			chunk, err := reader.ReadString('\n')
			offset += int64(len(chunk))
			if err != nil {
				partial += chunk
				break
			}
			line := strings.TrimSuffix(partial+chunk, "\n")
			partial = ""
			if line == "" {
				continue
			}
			if entry := ParseEntry(line); v.Matches(entry) {
				fn(entry)
			}
		}
	}
}

// FormatEntry renders entry as one line: time, level, message, then
// attributes sorted by key.
func (v *Viewer) FormatEntry(entry LogEntry) string {
	if !entry.Valid {
		return entry.Raw
	}

	level := fmt.Sprintf("%-5s", entry.Level)
	if style, ok := v.levels[entry.Level]; ok {
		level = style.Render(level)
	}

	var b strings.Builder
	b.WriteString(v.dim.Render(entry.Time.Format("15:04:05.000")))
	b.WriteByte(' ')
	b.WriteString(level)
	b.WriteByte(' ')
	b.WriteString(entry.Msg)

	keys := make([]string, 0, len(entry.Attrs))
	for k := range entry.Attrs {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		b.WriteByte(' ')
		b.WriteString(v.dim.Render(k + "="))
		fmt.Fprintf(&b, "%v", entry.Attrs[k])
	}
	return b.String()
}

// Print writes every entry on its own line.
func (v *Viewer) Print(entries []LogEntry) {
	for _, e := range entries {
		_, _ = fmt.Fprintln(v.out, v.FormatEntry(e))
	}
}
