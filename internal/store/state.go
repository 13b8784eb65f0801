// Package store holds the in-memory index state and its persistence.
//
// State aggregates the DocumentStore, the InvertedIndex and the content
// hash table. It is not safe for concurrent use: the indexer serializes
// writers and hands readers a consistent view. Snapshots of a State are
// saved through a SnapshotStore backend (file, sqlite or bolt).
package store

import (
	"fmt"
	"maps"
	"slices"
)

// State is the complete index: documents, postings and content hashes.
//
// Invariants maintained by Apply and Remove:
//   - every (term, id) posting refers to a stored document
//   - a path maps to at most one id
//   - Hashes[path] exists iff path is indexed
type State struct {
	Docs   *DocumentStore
	Index  *InvertedIndex
	hashes map[string]string
}

// NewState returns an empty state.
func NewState() *State {
	return &State{
		Docs:   NewDocumentStore(),
		Index:  NewInvertedIndex(),
		hashes: make(map[string]string),
	}
}

// Apply indexes content for path. A known path keeps its id: its old
// postings are removed before the new counts are added. Returns the id
// and whether the path was new.
func (s *State) Apply(path, title, content, hash string, counts map[string]int, length int) (int, bool) {
	old, known := s.Docs.FindIDByPath(path)
	if known {
		s.Index.RemoveDoc(old)
	}

	id := s.Docs.Upsert(title, path, content, length)
	s.Index.AddPostings(id, counts)
	s.hashes[path] = hash
	return id, !known
}

// Remove drops path from postings, hashes and records, in that order.
// Returns false when path was not indexed.
func (s *State) Remove(path string) bool {
	id, ok := s.Docs.FindIDByPath(path)
	if !ok {
		delete(s.hashes, path)
		return false
	}
	s.Index.RemoveDoc(id)
	delete(s.hashes, path)
	s.Docs.Remove(id)
	return true
}

// Hash returns the content hash recorded for path.
func (s *State) Hash(path string) (string, bool) {
	h, ok := s.hashes[path]
	return h, ok
}

// Paths returns every indexed path in sorted order.
func (s *State) Paths() []string {
	return slices.Sorted(maps.Keys(s.hashes))
}

// Clone returns a deep copy that shares nothing with s.
func (s *State) Clone() *State {
	return &State{
		Docs:   s.Docs.clone(),
		Index:  s.Index.clone(),
		hashes: maps.Clone(s.hashes),
	}
}

// CheckConsistency verifies every invariant and returns the first
// violation found.
func (s *State) CheckConsistency() error {
	for _, doc := range s.Docs.All() {
		if id, ok := s.Docs.FindIDByPath(doc.Path); !ok || id != doc.ID {
			return fmt.Errorf("document %d: path %q not mapped back to it", doc.ID, doc.Path)
		}
		if _, ok := s.hashes[doc.Path]; !ok {
			return fmt.Errorf("document %d: no content hash for %q", doc.ID, doc.Path)
		}
		if doc.ID >= s.Docs.NextID() {
			return fmt.Errorf("document %d: id not below next id %d", doc.ID, s.Docs.NextID())
		}
	}

	if len(s.hashes) != s.Docs.Len() {
		return fmt.Errorf("%d content hashes for %d documents", len(s.hashes), s.Docs.Len())
	}
	if len(s.Docs.byPath) != s.Docs.Len() {
		return fmt.Errorf("%d paths for %d documents", len(s.Docs.byPath), s.Docs.Len())
	}

	var total int64
	for _, doc := range s.Docs.docs {
		total += int64(doc.Length)
	}
	if total != s.Docs.TotalLength() {
		return fmt.Errorf("total length %d, records sum to %d", s.Docs.TotalLength(), total)
	}

	var err error
	s.Index.Range(func(term string, p Postings) bool {
		if len(p) == 0 {
			err = fmt.Errorf("term %q has an empty posting list", term)
			return false
		}
		for id, tf := range p {
			if _, ok := s.Docs.Get(id); !ok {
				err = fmt.Errorf("term %q: posting for missing document %d", term, id)
				return false
			}
			if tf <= 0 {
				err = fmt.Errorf("term %q: non-positive frequency %d for document %d", term, tf, id)
				return false
			}
		}
		return true
	})
	return err
}
