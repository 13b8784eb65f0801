package search

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSnippet_NoMatchReturnsPrefix(t *testing.T) {
	content := strings.Repeat("a", 200)

	got := Snippet(content, []string{"zzz"}, 150)

	assert.Equal(t, strings.Repeat("a", 150)+"...", got)
}

func TestSnippet_ShortContentHasNoMarker(t *testing.T) {
	assert.Equal(t, "hello world", Snippet("hello world", []string{"world"}, 150))
	assert.Equal(t, "", Snippet("", []string{"x"}, 150))
}

func TestSnippet_SingleMatchStartsThirtyBefore(t *testing.T) {
	content := strings.Repeat("x", 100) + "needle" + strings.Repeat("y", 200)

	got := Snippet(content, []string{"needle"}, 150)

	want := string([]rune(content)[70:220]) + "..."
	assert.Equal(t, want, got)
	assert.Contains(t, got, "needle")
}

func TestSnippet_SingleMatchNearStartIsClamped(t *testing.T) {
	content := "needle " + strings.Repeat("y", 300)

	got := Snippet(content, []string{"needle"}, 150)

	assert.True(t, strings.HasPrefix(got, "needle"))
}

func TestSnippet_DensestWindowWins(t *testing.T) {
	// Given one isolated match and a later cluster of three
	var b strings.Builder
	b.WriteString(strings.Repeat(".", 10))
	b.WriteString("key")
	b.WriteString(strings.Repeat(".", 287)) // next match at 300
	for range 3 {
		b.WriteString("key")
		b.WriteString(strings.Repeat(".", 7))
	}
	b.WriteString(strings.Repeat(".", 300))
	content := b.String()

	// When extracting a snippet
	got := Snippet(content, []string{"key"}, 150)

	// Then it starts 20 runes before the cluster
	want := content[280:430] + "..."
	assert.Equal(t, want, got)
	assert.Equal(t, 3, strings.Count(got, "key"))
}

func TestSnippet_CaseInsensitive(t *testing.T) {
	content := strings.Repeat("-", 100) + "Needle" + strings.Repeat("-", 100)

	got := Snippet(content, []string{"needle"}, 50)

	assert.Contains(t, got, "Needle")
}

func TestSnippet_RuneSafe(t *testing.T) {
	content := strings.Repeat("中文", 100) + "搜索" + strings.Repeat("文本", 100)

	got := Snippet(content, []string{"搜索"}, 40)

	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, 40, utf8.RuneCountInString(strings.TrimSuffix(got, "...")))
	assert.Contains(t, got, "搜索")
}

func TestSnippet_DefaultWindow(t *testing.T) {
	content := strings.Repeat("a", 400)

	got := Snippet(content, nil, 0)

	assert.Equal(t, DefaultSnippetWindow, utf8.RuneCountInString(strings.TrimSuffix(got, "...")))
}

func TestMatchPositions_SortedAndOverlapping(t *testing.T) {
	got := matchPositions("aaa bab", []string{"aa", "b", "aa", ""})

	assert.Equal(t, []int{0, 1, 4, 6}, got)
}

func TestDensestStart_EarliestTieWins(t *testing.T) {
	assert.Equal(t, 0, densestStart([]int{0, 10, 500, 510}, 150))
	assert.Equal(t, 500, densestStart([]int{0, 500, 510, 520}, 150))
}
