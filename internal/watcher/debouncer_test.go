package watcher

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receiveBatch(t *testing.T, d *Debouncer) []FileEvent {
	t.Helper()
	select {
	case batch := <-d.Output():
		return batch
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for debounced batch")
		return nil
	}
}

func TestDebouncer_Coalescing(t *testing.T) {
	tests := []struct {
		name   string
		ops    []Operation
		want   Operation
		cancel bool
	}{
		{name: "create then modify stays create", ops: []Operation{OpCreate, OpModify}, want: OpCreate},
		{name: "create then delete cancels", ops: []Operation{OpCreate, OpDelete}, cancel: true},
		{name: "create then rename cancels", ops: []Operation{OpCreate, OpRename}, cancel: true},
		{name: "modify then delete is delete", ops: []Operation{OpModify, OpDelete}, want: OpDelete},
		{name: "delete then create is modify", ops: []Operation{OpDelete, OpCreate}, want: OpModify},
		{name: "rename then create is modify", ops: []Operation{OpRename, OpCreate}, want: OpModify},
		{name: "modify then modify is modify", ops: []Operation{OpModify, OpModify}, want: OpModify},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDebouncer(20 * time.Millisecond)
			defer d.Stop()

			for _, op := range tt.ops {
				d.Add(FileEvent{Path: "/r/a.md", Operation: op})
			}
			// a second path guarantees a batch is emitted even when a.md cancels out
			d.Add(FileEvent{Path: "/r/z.md", Operation: OpModify})

			batch := receiveBatch(t, d)
			if tt.cancel {
				require.Len(t, batch, 1)
				assert.Equal(t, "/r/z.md", batch[0].Path)
				return
			}
			require.Len(t, batch, 2)
			assert.Equal(t, "/r/a.md", batch[0].Path)
			assert.Equal(t, tt.want, batch[0].Operation)
		})
	}
}

func TestDebouncer_BatchSortedByPath(t *testing.T) {
	d := NewDebouncer(10 * time.Millisecond)
	defer d.Stop()

	for _, p := range []string{"/r/c", "/r/a", "/r/b"} {
		d.Add(FileEvent{Path: p, Operation: OpModify})
	}

	batch := receiveBatch(t, d)
	require.Len(t, batch, 3)
	assert.Equal(t, []string{"/r/a", "/r/b", "/r/c"}, []string{batch[0].Path, batch[1].Path, batch[2].Path})
}

func TestDebouncer_StopClosesOutputAndIgnoresAdds(t *testing.T) {
	d := NewDebouncer(10 * time.Millisecond)
	d.Stop()
	d.Stop()

	d.Add(FileEvent{Path: "/r/a", Operation: OpCreate})
	_, ok := <-d.Output()
	assert.False(t, ok)
}

func TestOperation_String(t *testing.T) {
	assert.Equal(t, "CREATE", OpCreate.String())
	assert.Equal(t, "MODIFY", OpModify.String())
	assert.Equal(t, "DELETE", OpDelete.String())
	assert.Equal(t, "RENAME", OpRename.String())
	assert.Equal(t, "UNKNOWN", Operation(42).String())
}
