package ui

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/charmbracelet/lipgloss"

	"github.com/Aman-CERP/docdex/internal/tokenize"
	"github.com/Aman-CERP/docdex/pkg/docdex"
)

// ResultsRenderer prints search hits.
type ResultsRenderer struct {
	out     io.Writer
	styles  Styles
	noColor bool
}

// NewResultsRenderer creates a results renderer.
func NewResultsRenderer(out io.Writer, noColor bool) *ResultsRenderer {
	return &ResultsRenderer{
		out:     out,
		styles:  GetStyles(noColor),
		noColor: noColor,
	}
}

// Render prints hits as a numbered list, highlighting the query's terms
// in titles and snippets.
func (r *ResultsRenderer) Render(query string, hits []docdex.Hit) error {
	if len(hits) == 0 {
		_, err := fmt.Fprintf(r.out, "No matching documents for %q\n", query)
		return err
	}

	terms := tokenize.Tokenize(query)
	for n, h := range hits {
		title := r.highlight(h.Title, terms, r.styles.Title)
		score := r.styles.Score.Render(fmt.Sprintf("%.2f", h.Score))
		if _, err := fmt.Fprintf(r.out, "%2d. %s  %s\n", n+1, title, score); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(r.out, "    %s\n", r.styles.Path.Render(h.Path))
		if snippet := flatten(h.Snippet); snippet != "" {
			_, _ = fmt.Fprintf(r.out, "    %s\n", r.highlight(snippet, terms, lipgloss.NewStyle()))
		}
		if n < len(hits)-1 {
			_, _ = fmt.Fprintln(r.out)
		}
	}
	return nil
}

// RenderJSON prints hits as an indented JSON array.
func (r *ResultsRenderer) RenderJSON(hits []docdex.Hit) error {
	if hits == nil {
		hits = []docdex.Hit{}
	}
	encoder := json.NewEncoder(r.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(hits)
}

func (r *ResultsRenderer) highlight(text string, terms []string, base lipgloss.Style) string {
	if r.noColor {
		return text
	}
	return Highlight(text, terms, r.styles.Match, base)
}

// Highlight renders every case-insensitive occurrence of terms in text
// with match and the rest with base. Overlapping occurrences merge.
func Highlight(text string, terms []string, match, base lipgloss.Style) string {
	runes := []rune(text)
	lower := []rune(strings.Map(unicode.ToLower, text))

	marked := make([]bool, len(runes))
	for _, term := range terms {
		needle := []rune(strings.Map(unicode.ToLower, term))
		if len(needle) == 0 {
			continue
		}
		for i := 0; i+len(needle) <= len(lower); i++ {
			if runesEqual(lower[i:i+len(needle)], needle) {
				for j := i; j < i+len(needle); j++ {
					marked[j] = true
				}
			}
		}
	}

	var b strings.Builder
	for start := 0; start < len(runes); {
		end := start
		for end < len(runes) && marked[end] == marked[start] {
			end++
		}
		span := string(runes[start:end])
		if marked[start] {
			b.WriteString(match.Render(span))
		} else {
			b.WriteString(base.Render(span))
		}
		start = end
	}
	return b.String()
}

func runesEqual(a, b []rune) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// flatten collapses runs of whitespace, including newlines, so a snippet
// prints on one line.
func flatten(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
