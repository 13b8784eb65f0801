package store

import (
	"maps"
	"slices"
)

// Postings maps a document id to the weighted frequency of one term in
// that document. Frequencies are always positive.
type Postings map[int]int

// InvertedIndex maps each term to its postings. A term with no postings
// is never present.
type InvertedIndex struct {
	terms map[string]Postings
}

// NewInvertedIndex returns an empty index.
func NewInvertedIndex() *InvertedIndex {
	return &InvertedIndex{terms: make(map[string]Postings)}
}

// AddPostings merges counts for doc id into the index.
func (ix *InvertedIndex) AddPostings(id int, counts map[string]int) {
	for term, tf := range counts {
		if tf <= 0 {
			continue
		}
		p, ok := ix.terms[term]
		if !ok {
			p = make(Postings)
			ix.terms[term] = p
		}
		p[id] += tf
	}
}

// RemoveDoc deletes id from every posting list and drops lists that
// become empty.
//
// The index keeps no forward map from document to terms, so this visits
// every term: O(terms × average postings per term). Full-tree rebuilds
// avoid it by starting from an empty clone.
func (ix *InvertedIndex) RemoveDoc(id int) {
	for term, p := range ix.terms {
		if _, ok := p[id]; !ok {
			continue
		}
		delete(p, id)
		if len(p) == 0 {
			delete(ix.terms, term)
		}
	}
}

// Lookup returns a copy of the postings for term, or nil.
func (ix *InvertedIndex) Lookup(term string) Postings {
	p, ok := ix.terms[term]
	if !ok {
		return nil
	}
	return maps.Clone(p)
}

// Range calls fn for each term until fn returns false. fn must not
// modify postings.
func (ix *InvertedIndex) Range(fn func(term string, postings Postings) bool) {
	for term, p := range ix.terms {
		if !fn(term, p) {
			return
		}
	}
}

// Terms returns every term in sorted order.
func (ix *InvertedIndex) Terms() []string {
	return slices.Sorted(maps.Keys(ix.terms))
}

// Len returns the number of distinct terms.
func (ix *InvertedIndex) Len() int { return len(ix.terms) }

func (ix *InvertedIndex) clone() *InvertedIndex {
	c := &InvertedIndex{terms: make(map[string]Postings, len(ix.terms))}
	for term, p := range ix.terms {
		c.terms[term] = maps.Clone(p)
	}
	return c
}
