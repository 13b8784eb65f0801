package store

import (
	"slices"
)

// Document is one indexed file.
type Document struct {
	ID      int    `json:"id"`
	Title   string `json:"title"`
	Path    string `json:"path"`
	Content string `json:"content"`
	// Length is the weighted term count: title terms times the title
	// weight plus body terms.
	Length int `json:"length"`
}

// DocumentStore owns document records keyed by id and by path.
//
// IDs are assigned from a monotonic counter and never reused, even after
// the record is removed. Updating a known path keeps its id.
// DocumentStore is not safe for concurrent use; State's owner serializes
// access.
type DocumentStore struct {
	docs        map[int]*Document
	byPath      map[string]int
	nextID      int
	totalLength int64
}

// NewDocumentStore returns an empty store whose first id is 0.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		docs:   make(map[int]*Document),
		byPath: make(map[string]int),
	}
}

// Upsert inserts a record for path or overwrites the existing one and
// returns its id.
func (s *DocumentStore) Upsert(title, path, content string, length int) int {
	if id, ok := s.byPath[path]; ok {
		doc := s.docs[id]
		s.totalLength += int64(length - doc.Length)
		doc.Title = title
		doc.Content = content
		doc.Length = length
		return id
	}

	id := s.nextID
	s.nextID++
	s.docs[id] = &Document{ID: id, Title: title, Path: path, Content: content, Length: length}
	s.byPath[path] = id
	s.totalLength += int64(length)
	return id
}

// Get returns the record for id.
func (s *DocumentStore) Get(id int) (*Document, bool) {
	doc, ok := s.docs[id]
	return doc, ok
}

// FindIDByPath returns the id indexed under path.
func (s *DocumentStore) FindIDByPath(path string) (int, bool) {
	id, ok := s.byPath[path]
	return id, ok
}

// Remove hard-deletes the record. Postings must be cleaned first.
func (s *DocumentStore) Remove(id int) bool {
	doc, ok := s.docs[id]
	if !ok {
		return false
	}
	delete(s.docs, id)
	delete(s.byPath, doc.Path)
	s.totalLength -= int64(doc.Length)
	return true
}

// All returns every record ordered by id.
func (s *DocumentStore) All() []*Document {
	out := make([]*Document, 0, len(s.docs))
	for _, d := range s.docs {
		out = append(out, d)
	}
	slices.SortFunc(out, func(a, b *Document) int { return a.ID - b.ID })
	return out
}

// Len returns the number of records.
func (s *DocumentStore) Len() int { return len(s.docs) }

// NextID returns the id the next new path will receive.
func (s *DocumentStore) NextID() int { return s.nextID }

// TotalLength returns the sum of Length over all records.
func (s *DocumentStore) TotalLength() int64 { return s.totalLength }

// restore inserts a decoded record verbatim.
func (s *DocumentStore) restore(doc *Document) {
	s.docs[doc.ID] = doc
	s.byPath[doc.Path] = doc.ID
	s.totalLength += int64(doc.Length)
	if doc.ID >= s.nextID {
		s.nextID = doc.ID + 1
	}
}

func (s *DocumentStore) clone() *DocumentStore {
	c := &DocumentStore{
		docs:        make(map[int]*Document, len(s.docs)),
		byPath:      make(map[string]int, len(s.byPath)),
		nextID:      s.nextID,
		totalLength: s.totalLength,
	}
	for id, d := range s.docs {
		cp := *d
		c.docs[id] = &cp
	}
	for p, id := range s.byPath {
		c.byPath[p] = id
	}
	return c
}
