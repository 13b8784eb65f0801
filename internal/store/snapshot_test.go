package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	docerrors "github.com/Aman-CERP/docdex/internal/errors"
)

func sampleState() *State {
	s := NewState()
	s.Apply("/r/a.md", "a.md", "cat cat dog", "ha", map[string]int{"a": 5, "md": 5, "cat": 2, "dog": 1}, 13)
	s.Apply("/r/b.md", "b.md", "dog", "hb", map[string]int{"b": 5, "md": 5, "dog": 1}, 11)
	s.Apply("/r/c.md", "c.md", "中文", "hc", map[string]int{"中": 1, "文": 1, "中文": 1}, 3)
	s.Remove("/r/b.md")
	return s
}

func assertSameState(t *testing.T, want, got *State) {
	t.Helper()
	assert.Equal(t, want.Docs.All(), got.Docs.All())
	assert.Equal(t, want.Docs.NextID(), got.Docs.NextID())
	assert.Equal(t, want.Docs.TotalLength(), got.Docs.TotalLength())
	assert.Equal(t, want.Index.Terms(), got.Index.Terms())
	for _, term := range want.Index.Terms() {
		assert.Equal(t, want.Index.Lookup(term), got.Index.Lookup(term), term)
	}
	assert.Equal(t, want.hashes, got.hashes)
}

func TestEncodeDecode_RoundTrip(t *testing.T) {
	want := sampleState()

	data, err := EncodeState(want)
	require.NoError(t, err)
	got, err := DecodeState(data)
	require.NoError(t, err)

	assertSameState(t, want, got)
	// removed id 1 must stay retired after a reload
	assert.Equal(t, 3, got.Docs.NextID())
}

func TestEncodeState_Deterministic(t *testing.T) {
	a, err := EncodeState(sampleState())
	require.NoError(t, err)
	b, err := EncodeState(sampleState())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDecodeState_CorruptInputs(t *testing.T) {
	valid, err := EncodeState(sampleState())
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"garbage", []byte("definitely not zstd")},
		{"truncated", valid[:len(valid)/2]},
		{"wrong format", mustCompress(t, `{"format":"other/9","next_id":0}`)},
		{"not json", mustCompress(t, `{{{`)},
		{"dangling posting", mustCompress(t, `{"format":"docdex/1","next_id":1,"documents":[],"postings":{"cat":{"0":1}},"hashes":{}}`)},
		{"hash without document", mustCompress(t, `{"format":"docdex/1","next_id":0,"documents":[],"postings":{},"hashes":{"/x":"h"}}`)},
		{"next id too small", mustCompress(t, `{"format":"docdex/1","next_id":0,"documents":[{"id":4,"title":"a","path":"/a","content":"","length":0}],"postings":{},"hashes":{"/a":"h"}}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeState(tt.data)
			require.Error(t, err)
			assert.True(t, docerrors.HasCode(err, docerrors.ErrCodeCorruptIndex), err.Error())
		})
	}
}

func mustCompress(t *testing.T, s string) []byte {
	t.Helper()
	return zstdEncoder.EncodeAll([]byte(s), nil)
}

func TestSnapshotStores_RoundTrip(t *testing.T) {
	for _, backend := range []string{"file", "sqlite", "bolt"} {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			dir := t.TempDir()

			st, err := OpenSnapshotStore(dir, backend)
			require.NoError(t, err)
			defer func() { _ = st.Close() }()

			// Given: nothing saved yet
			_, err = st.Load(ctx)
			assert.ErrorIs(t, err, ErrNoSnapshot)

			// When: saving twice and loading
			require.NoError(t, st.Save(ctx, NewState()))
			want := sampleState()
			require.NoError(t, st.Save(ctx, want))
			got, err := st.Load(ctx)

			// Then: the latest state comes back intact
			require.NoError(t, err)
			assertSameState(t, want, got)
			assert.Equal(t, Backend(backend), DetectBackend(dir))
			assert.Equal(t, SnapshotPath(dir, Backend(backend)), st.Location())
		})
	}
}

func TestFileSnapshotStore_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := SnapshotPath(dir, BackendFile)
	require.NoError(t, os.WriteFile(path, []byte("junk"), 0o644))

	_, err := NewFileSnapshotStore(path).Load(context.Background())
	assert.True(t, docerrors.HasCode(err, docerrors.ErrCodeCorruptIndex))
}

func TestBoltSnapshotStore_CorruptFileIsReplacedOnSave(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := SnapshotPath(dir, BackendBolt)
	junk := make([]byte, 16*1024)
	for i := range junk {
		junk[i] = 0xAB
	}
	require.NoError(t, os.WriteFile(path, junk, 0o600))

	st := NewBoltSnapshotStore(path)
	_, err := st.Load(ctx)
	assert.True(t, docerrors.HasCode(err, docerrors.ErrCodeCorruptIndex), err)

	require.NoError(t, st.Save(ctx, sampleState()))
	got, err := st.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Docs.Len())
}

func TestSQLiteSnapshotStore_InMemory(t *testing.T) {
	st, err := NewSQLiteSnapshotStore("")
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	require.NoError(t, st.Save(context.Background(), sampleState()))
	got, err := st.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, got.Docs.Len())
	assert.Equal(t, ":memory:", st.Location())

	require.NoError(t, st.Close())
	assert.Error(t, st.Save(context.Background(), NewState()))
}

func TestOpenSnapshotStore_UnknownBackend(t *testing.T) {
	_, err := OpenSnapshotStore(t.TempDir(), "redis")
	assert.ErrorContains(t, err, "unknown storage backend")
}

func TestDetectBackend_None(t *testing.T) {
	assert.Equal(t, Backend(""), DetectBackend(filepath.Join(t.TempDir(), "missing")))
}

func TestDirLock_ExcludesSecondHolder(t *testing.T) {
	dir := t.TempDir()
	first := NewDirLock(dir)
	second := NewDirLock(dir)

	require.NoError(t, first.Lock(context.Background()))
	ok, err := second.TryLock()
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, first.Unlock())
	ok, err = second.TryLock()
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, second.Unlock())
	require.NoError(t, second.Unlock())
}

func TestDirLock_ContextCancelled(t *testing.T) {
	dir := t.TempDir()
	holder := NewDirLock(dir)
	require.NoError(t, holder.Lock(context.Background()))
	defer func() { _ = holder.Unlock() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewDirLock(dir).Lock(ctx)
	assert.True(t, docerrors.HasCode(err, docerrors.ErrCodeIndexLocked))
}
