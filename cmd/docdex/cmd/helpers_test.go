package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// isolate points HOME and the user config at a temp dir so commands never
// read or write the real user's files.
func isolate(t *testing.T) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("NO_COLOR", "1")
	for _, v := range []string{"DOCDEX_STORAGE_BACKEND", "DOCDEX_DATA_DIR", "DOCDEX_HTTP_ADDR", "DOCDEX_LOG_LEVEL", "DOCDEX_MAX_RESULTS", "DOCDEX_EXTENSIONS"} {
		t.Setenv(v, "")
	}
}

// newCorpus creates a root with two documents about dogs and cats.
func newCorpus(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "cats.md"), []byte("cat cat dog"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "dogs.md"), []byte("dog"), 0o644))
	return root
}

// execute runs the root command with args and returns everything it
// printed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeContext(context.Background(), t, args...)
}

func executeContext(ctx context.Context, t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	return buf.String(), err
}
