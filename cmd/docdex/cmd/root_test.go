package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	docerrors "github.com/Aman-CERP/docdex/internal/errors"
)

func commandWithFlags(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	c := &cobra.Command{Use: "docdex"}
	c.Flags().Bool("json", false, "")
	c.Flags().String("format", "text", "")
	require.NoError(t, c.Flags().Parse(args))
	return c
}

func TestPrintError(t *testing.T) {
	err := docerrors.New(docerrors.ErrCodeConfigInvalid, "bad config", nil).
		WithSuggestion("fix it")

	tests := []struct {
		name     string
		args     []string
		wantJSON bool
	}{
		{name: "text by default", wantJSON: false},
		{name: "json flag", args: []string{"--json"}, wantJSON: true},
		{name: "json format", args: []string{"--format", "json"}, wantJSON: true},
		{name: "text format", args: []string{"--format", "text"}, wantJSON: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printError(&buf, commandWithFlags(t, tt.args...), err)

			if !tt.wantJSON {
				assert.Equal(t, "Error: bad config\n  Hint: fix it\n  Code: ERR_102_CONFIG_INVALID\n", buf.String())
				return
			}
			var got map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
			assert.Equal(t, "ERR_102_CONFIG_INVALID", got["code"])
			assert.Equal(t, "CONFIG", got["category"])
			assert.Equal(t, "fix it", got["suggestion"])
		})
	}
}

func TestPrintError_PlainErrorAsJSON(t *testing.T) {
	var buf bytes.Buffer
	printError(&buf, commandWithFlags(t, "--json"), errors.New("boom"))

	var got map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "ERR_501_INTERNAL", got["code"])
	assert.Equal(t, "boom", got["message"])
}

func TestPrintError_NilCommand(t *testing.T) {
	var buf bytes.Buffer
	printError(&buf, nil, errors.New("boom"))

	assert.Contains(t, buf.String(), "Error: boom")
}
