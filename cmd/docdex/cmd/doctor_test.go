package cmd

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoctorCmd_HealthyIndex(t *testing.T) {
	// Given: an indexed corpus
	isolate(t)
	root := newCorpus(t)
	_, err := execute(t, "index", root)
	require.NoError(t, err)

	// When: running doctor
	out, err := execute(t, "doctor", "--root", root)

	// Then: every required check passes
	require.NoError(t, err)
	assert.Contains(t, out, "[PASS] root_directory")
	assert.Contains(t, out, "[PASS] config")
	assert.Contains(t, out, "[PASS] index_consistency: OK")
	assert.NotContains(t, out, "FAILED")
}

func TestDoctorCmd_JSON(t *testing.T) {
	isolate(t)
	root := newCorpus(t)

	out, err := execute(t, "doctor", "--root", root, "--json")
	require.NoError(t, err)

	var report struct {
		Root   string `json:"root"`
		Status string `json:"status"`
		Checks []struct {
			Name   string `json:"name"`
			Status string `json:"status"`
		} `json:"checks"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, root, report.Root)
	assert.NotEqual(t, "failed", report.Status)

	names := map[string]string{}
	for _, c := range report.Checks {
		names[c.Name] = c.Status
	}
	assert.Equal(t, "pass", names["write_permissions"])
	assert.Equal(t, "pass", names["index_consistency"])
}

func TestDoctorCmd_InvalidConfigFails(t *testing.T) {
	// Given: a project file naming an unknown backend
	isolate(t)
	root := newCorpus(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, ".docdex.yaml"), []byte("storage:\n  backend: tape\n"), 0o644))

	// When: running doctor
	out, err := execute(t, "doctor", "--root", root)

	// Then: the load failure is reported and the command fails
	require.ErrorIs(t, err, errDoctorFailed)
	assert.Contains(t, out, "[FAIL] config_load")
	assert.Contains(t, out, "Status: FAILED")
}

func TestDoctorCmd_MissingRoot(t *testing.T) {
	isolate(t)
	root := filepath.Join(t.TempDir(), "gone")

	out, err := execute(t, "doctor", "--root", root)

	require.ErrorIs(t, err, errDoctorFailed)
	assert.Contains(t, out, "[FAIL] root_directory")
}

