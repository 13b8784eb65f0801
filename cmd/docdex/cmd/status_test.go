package cmd

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCmd_AfterIndex(t *testing.T) {
	// Given: an indexed corpus
	isolate(t)
	root := newCorpus(t)
	_, err := execute(t, "index", root)
	require.NoError(t, err)

	// When: asking for status
	out, err := execute(t, "status", "--root", root)

	// Then: counts and the snapshot are shown, no daemon
	require.NoError(t, err)
	assert.Contains(t, out, "Index Status: "+root)
	assert.Contains(t, out, "Documents:  2")
	assert.Contains(t, out, "Backend:  file")
	assert.Contains(t, out, "Daemon:  stopped")
}

func TestStatusCmd_JSON(t *testing.T) {
	isolate(t)
	root := newCorpus(t)
	_, err := execute(t, "index", root)
	require.NoError(t, err)

	out, err := execute(t, "status", "--root", root, "--json")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, root, got["root"])
	assert.Equal(t, float64(2), got["documents"])
	assert.Greater(t, got["snapshot_size"], float64(0))
	assert.NotContains(t, got, "daemon_pid")
}

func TestStatusCmd_DoesNotScan(t *testing.T) {
	// Given: a corpus that was never indexed
	isolate(t)
	root := newCorpus(t)

	// When: asking for status
	out, err := execute(t, "status", "--root", root, "--json")
	require.NoError(t, err)

	// Then: the empty saved state is reported as is
	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, float64(0), got["documents"])
}
