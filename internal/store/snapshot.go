package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"

	docerrors "github.com/Aman-CERP/docdex/internal/errors"
)

// snapshotFormat tags every encoded snapshot. A blob carrying any other
// tag is treated as corrupt and the index is rebuilt from disk.
const snapshotFormat = "docdex/1"

// ErrNoSnapshot is returned by Load when nothing has been saved yet.
var ErrNoSnapshot = errors.New("no snapshot")

// SnapshotStore persists a State as one opaque blob. Save replaces the
// previous snapshot atomically: a reader sees either the old blob or
// the new one, never a mix.
type SnapshotStore interface {
	// Load returns ErrNoSnapshot when nothing was saved, or an error
	// carrying ErrCodeCorruptIndex when the blob cannot be decoded.
	Load(ctx context.Context) (*State, error)
	Save(ctx context.Context, s *State) error
	// Location is the file or database the snapshot lives in.
	Location() string
	Close() error
}

type snapshot struct {
	Format    string                 `json:"format"`
	NextID    int                    `json:"next_id"`
	Documents []*Document            `json:"documents"`
	Postings  map[string]map[int]int `json:"postings"`
	Hashes    map[string]string      `json:"hashes"`
}

var (
	zstdEncoder, _ = zstd.NewWriter(nil)
	zstdDecoder, _ = zstd.NewReader(nil)
)

// EncodeState serializes s as zstd-compressed JSON. Output is
// deterministic for equal states.
func EncodeState(s *State) ([]byte, error) {
	snap := snapshot{
		Format:    snapshotFormat,
		NextID:    s.Docs.NextID(),
		Documents: s.Docs.All(),
		Postings:  make(map[string]map[int]int, s.Index.Len()),
		Hashes:    s.hashes,
	}
	s.Index.Range(func(term string, p Postings) bool {
		snap.Postings[term] = p
		return true
	})

	raw, err := json.Marshal(&snap)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return zstdEncoder.EncodeAll(raw, make([]byte, 0, len(raw)/4)), nil
}

// DecodeState parses a blob written by EncodeState. Any decoding failure
// or invariant violation is reported as a corrupt index.
func DecodeState(data []byte) (*State, error) {
	raw, err := zstdDecoder.DecodeAll(data, nil)
	if err != nil {
		return nil, docerrors.CorruptIndexError("snapshot is not a valid zstd stream", err)
	}

	var snap snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, docerrors.CorruptIndexError("snapshot payload is not valid JSON", err)
	}
	if snap.Format != snapshotFormat {
		return nil, docerrors.CorruptIndexError(fmt.Sprintf("unsupported snapshot format %q", snap.Format), nil)
	}

	s := NewState()
	for _, doc := range snap.Documents {
		if doc == nil {
			return nil, docerrors.CorruptIndexError("snapshot holds a null document", nil)
		}
		if _, dup := s.Docs.FindIDByPath(doc.Path); dup {
			return nil, docerrors.CorruptIndexError(fmt.Sprintf("duplicate path %q in snapshot", doc.Path), nil)
		}
		if _, dup := s.Docs.Get(doc.ID); dup {
			return nil, docerrors.CorruptIndexError(fmt.Sprintf("duplicate id %d in snapshot", doc.ID), nil)
		}
		s.Docs.restore(doc)
	}
	if snap.NextID < s.Docs.nextID {
		return nil, docerrors.CorruptIndexError(fmt.Sprintf("next id %d below highest stored id", snap.NextID), nil)
	}
	s.Docs.nextID = snap.NextID

	for term, p := range snap.Postings {
		s.Index.terms[term] = Postings(p)
	}
	for path, h := range snap.Hashes {
		s.hashes[path] = h
	}

	if err := s.CheckConsistency(); err != nil {
		return nil, docerrors.CorruptIndexError("snapshot is inconsistent: "+err.Error(), err)
	}
	return s, nil
}
