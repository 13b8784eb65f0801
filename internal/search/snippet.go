package search

import (
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	// snippetLeadSingle is how many runes of context precede a lone match.
	snippetLeadSingle = 30
	// snippetLeadDense is how many runes precede the densest window.
	snippetLeadDense = 20

	truncationMarker = "..."
)

// Snippet returns a window-rune excerpt of content around the query terms.
//
// With no match the excerpt is the start of content. With one match it
// starts 30 runes before it. Otherwise it starts 20 runes before the
// match that begins the window holding the most matches. Matching is
// case-insensitive and positions are counted in runes, so the excerpt
// never splits a character. "..." is appended when content continues past
// the excerpt.
func Snippet(content string, terms []string, window int) string {
	if window <= 0 {
		window = DefaultSnippetWindow
	}
	runes := []rune(content)
	positions := matchPositions(content, terms)

	start := 0
	switch len(positions) {
	case 0:
	case 1:
		start = positions[0] - snippetLeadSingle
	default:
		start = densestStart(positions, window) - snippetLeadDense
	}
	start = max(0, min(start, len(runes)))
	end := min(start+window, len(runes))

	excerpt := string(runes[start:end])
	if end < len(runes) {
		excerpt += truncationMarker
	}
	return excerpt
}

// matchPositions returns the sorted rune offsets of every occurrence of
// every distinct non-empty term in content, case-insensitively.
// Occurrences may overlap.
func matchPositions(content string, terms []string) []int {
	// Rune-wise lowering keeps rune offsets aligned with content.
	lower := strings.Map(unicode.ToLower, content)

	seen := make(map[string]struct{}, len(terms))
	var positions []int
	for _, term := range terms {
		term = strings.Map(unicode.ToLower, term)
		if term == "" {
			continue
		}
		if _, dup := seen[term]; dup {
			continue
		}
		seen[term] = struct{}{}

		byteOff, runeOff := 0, 0
		for {
			idx := strings.Index(lower[byteOff:], term)
			if idx < 0 {
				break
			}
			runeOff += utf8.RuneCountInString(lower[byteOff : byteOff+idx])
			positions = append(positions, runeOff)

			_, size := utf8.DecodeRuneInString(lower[byteOff+idx:])
			byteOff += idx + size
			runeOff++
		}
	}
	slices.Sort(positions)
	return positions
}

// densestStart returns the match position starting the window that holds
// the most subsequent matches. Earlier positions win ties.
func densestStart(positions []int, window int) int {
	best, bestCount := positions[0], 0
	j := 0
	for i, p := range positions {
		j = max(j, i)
		for j < len(positions) && positions[j] < p+window {
			j++
		}
		if count := j - i; count > bestCount {
			best, bestCount = p, count
		}
	}
	return best
}
