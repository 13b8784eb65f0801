package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriter_Status_PrintsIconAndMessage(t *testing.T) {
	// Given: a writer with a buffer
	buf := &bytes.Buffer{}
	w := New(buf)

	// When: printing a status message
	w.Status("»", "Scanning /notes")

	// Then: output contains icon and message
	assert.Equal(t, "» Scanning /notes\n", buf.String())
}

func TestWriter_Status_NoIconIndents(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf).Status("", "detail")

	assert.Equal(t, "   detail\n", buf.String())
}

func TestWriter_Levels(t *testing.T) {
	tests := []struct {
		name  string
		write func(w *Writer)
		want  string
	}{
		{"success", func(w *Writer) { w.Success("Indexed 3 documents") }, "✓ Indexed 3 documents\n"},
		{"successf", func(w *Writer) { w.Successf("Indexed %d documents", 4) }, "✓ Indexed 4 documents\n"},
		{"warning", func(w *Writer) { w.Warning("2 files skipped") }, "! 2 files skipped\n"},
		{"warningf", func(w *Writer) { w.Warningf("%d files skipped", 5) }, "! 5 files skipped\n"},
		{"error", func(w *Writer) { w.Error("snapshot failed") }, "✗ snapshot failed\n"},
		{"errorf", func(w *Writer) { w.Errorf("%s failed", "scan") }, "✗ scan failed\n"},
		{"statusf", func(w *Writer) { w.Statusf("»", "Found %d files in %s", 42, "/notes") }, "» Found 42 files in /notes\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Given: a writer without color
			buf := &bytes.Buffer{}
			w := NewWithColor(buf, false)

			// When: writing at the level
			tt.write(w)

			// Then: the plain line is printed
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestWriter_KeyValue(t *testing.T) {
	buf := &bytes.Buffer{}
	NewWithColor(buf, false).KeyValue("Added", 3)

	assert.Equal(t, "   Added:     3\n", buf.String())
}

func TestWriter_Code_PrintsCodeBlock(t *testing.T) {
	// Given: a writer with a buffer
	buf := &bytes.Buffer{}
	w := New(buf)

	// When: printing a multi-line block
	w.Code("version: 1\npaths:\n")

	// Then: every line is indented and framed by blank lines
	assert.Equal(t, "\n  version: 1\n  paths:\n\n", buf.String())
}

func TestWriter_Newline_PrintsEmptyLine(t *testing.T) {
	// Given: a writer with a buffer
	buf := &bytes.Buffer{}
	w := New(buf)

	// When: printing a newline
	w.Newline()

	// Then: output is just a newline
	assert.Equal(t, "\n", buf.String())
}

func TestNew_BufferIsNotColored(t *testing.T) {
	buf := &bytes.Buffer{}
	New(buf).Success("done")

	assert.NotContains(t, buf.String(), "\x1b[")
}
