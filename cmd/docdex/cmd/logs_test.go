package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeLog(t *testing.T) string {
	t.Helper()
	lines := []string{
		`{"time":"2026-01-02T03:04:05.006Z","level":"INFO","msg":"scan_complete","added":2}`,
		`{"time":"2026-01-02T03:04:06.000Z","level":"WARN","msg":"file_skipped","path":"/notes/big.md"}`,
		`{"time":"2026-01-02T03:04:07.000Z","level":"ERROR","msg":"snapshot_failed"}`,
	}
	path := filepath.Join(t.TempDir(), "docdex.log")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func TestLogsCmd(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    []string
		notWant []string
	}{
		{
			name: "all entries",
			want: []string{"scan_complete added=2", "file_skipped path=/notes/big.md", "snapshot_failed"},
		},
		{
			name:    "last entry",
			args:    []string{"-n", "1"},
			want:    []string{"snapshot_failed"},
			notWant: []string{"scan_complete", "file_skipped"},
		},
		{
			name:    "level filter",
			args:    []string{"--level", "warn"},
			want:    []string{"file_skipped", "snapshot_failed"},
			notWant: []string{"scan_complete"},
		},
		{
			name:    "pattern filter",
			args:    []string{"--filter", "skip+ed"},
			want:    []string{"file_skipped"},
			notWant: []string{"scan_complete", "snapshot_failed"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)
			path := writeLog(t)

			out, err := execute(t, append([]string{"logs", "--file", path}, tt.args...)...)

			require.NoError(t, err)
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
			for _, w := range tt.notWant {
				assert.NotContains(t, out, w)
			}
		})
	}
}

func TestLogsCmd_Errors(t *testing.T) {
	isolate(t)

	_, err := execute(t, "logs", "--file", filepath.Join(t.TempDir(), "missing.log"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log file not found")

	_, err = execute(t, "logs", "--file", writeLog(t), "--filter", "(")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid filter pattern")
}
