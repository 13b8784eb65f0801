// Package tokenize turns text into the case-folded terms shared by the
// indexer and the query engine.
//
// The chain is built from bleve analysis components: UAX#29 word
// segmentation, lower-casing, and the CJK bigram filter with unigram
// output. Latin and numeric tokens are then split into maximal runs of
// letters and digits, so "foo_bar-2.0" yields foo, bar, 2, 0. Runs of
// CJK ideographs yield every single character (fine terms) and every
// adjacent pair (coarse terms), which keeps recall high for languages
// without whitespace word boundaries.
package tokenize

import (
	"unicode"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/lang/cjk"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	bleveunicode "github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
)

// TitleWeight is how many times each title term counts toward a
// document's term frequencies and length.
const TitleWeight = 5

var analyzer = &analysis.DefaultAnalyzer{
	Tokenizer: bleveunicode.NewUnicodeTokenizer(),
	TokenFilters: []analysis.TokenFilter{
		lowercase.NewLowerCaseFilter(),
		cjk.NewCJKBigramFilter(true),
		runSplitFilter{},
	},
}

// Tokenize returns the ordered terms of text. It never returns nil.
// Empty, whitespace-only and punctuation-only input yield no terms.
func Tokenize(text string) []string {
	if text == "" {
		return []string{}
	}

	stream := analyzer.Analyze([]byte(text))
	terms := make([]string, 0, len(stream))
	for _, tok := range stream {
		if len(tok.Term) > 0 {
			terms = append(terms, string(tok.Term))
		}
	}
	return terms
}

// Counts is the weighted term frequency of one document.
type Counts map[string]int

// CountTerms tokenizes a document's title and body and returns the
// weighted term counts together with the weighted document length.
// Every title term counts TitleWeight times.
func CountTerms(title, body string) (Counts, int) {
	titleTerms := Tokenize(title)
	bodyTerms := Tokenize(body)

	counts := make(Counts, len(titleTerms)+len(bodyTerms))
	for _, t := range titleTerms {
		counts[t] += TitleWeight
	}
	for _, t := range bodyTerms {
		counts[t]++
	}

	return counts, TitleWeight*len(titleTerms) + len(bodyTerms)
}

// runSplitFilter splits each token on every rune that is neither a
// letter nor a digit. UAX#29 keeps "3.14", "can't" and "snake_case"
// together; the index wants their alphanumeric runs.
type runSplitFilter struct{}

// Filter implements analysis.TokenFilter.
func (runSplitFilter) Filter(input analysis.TokenStream) analysis.TokenStream {
	out := make(analysis.TokenStream, 0, len(input))
	for _, tok := range input {
		if isRun(tok.Term) {
			out = append(out, tok)
			continue
		}

		start := -1
		for i, r := range string(tok.Term) {
			if isTermRune(r) {
				if start < 0 {
					start = i
				}
				continue
			}
			if start >= 0 {
				out = append(out, subToken(tok, start, i))
				start = -1
			}
		}
		if start >= 0 {
			out = append(out, subToken(tok, start, len(tok.Term)))
		}
	}
	return out
}

func subToken(tok *analysis.Token, from, to int) *analysis.Token {
	term := make([]byte, to-from)
	copy(term, tok.Term[from:to])
	return &analysis.Token{
		Term:     term,
		Start:    tok.Start + from,
		End:      tok.Start + to,
		Position: tok.Position,
		Type:     tok.Type,
	}
}

func isRun(term []byte) bool {
	for len(term) > 0 {
		r, size := utf8.DecodeRune(term)
		if !isTermRune(r) {
			return false
		}
		term = term[size:]
	}
	return true
}

func isTermRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
