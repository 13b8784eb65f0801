package search

import (
	"context"
	"math"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/docdex/internal/logging"
	"github.com/Aman-CERP/docdex/internal/metrics"
	"github.com/Aman-CERP/docdex/internal/store"
	"github.com/Aman-CERP/docdex/internal/tokenize"
)

// stateSource serves a fixed State.
type stateSource struct {
	mu  sync.RWMutex
	st  *store.State
	gen uint64
}

func (s *stateSource) View(fn func(st *store.State)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(s.st)
}

func (s *stateSource) Generation() uint64 {
	return s.gen
}

// add indexes body under path with an empty title, so lengths and
// frequencies come from the body alone.
func add(st *store.State, path, body string) int {
	counts, length := tokenize.CountTerms("", body)
	id, _ := st.Apply(path, path, body, "h-"+path, counts, length)
	return id
}

func newTestEngine(t *testing.T, st *store.State) (*Engine, *stateSource) {
	t.Helper()
	src := &stateSource{st: st}
	e, err := NewEngine(src, DefaultConfig(), WithLogger(logging.Discard()), WithMetrics(metrics.New()))
	require.NoError(t, err)
	return e, src
}

func bm25(idf, f, dl, avgdl float64) float64 {
	return idf * (f * (DefaultK1 + 1)) / (f + DefaultK1*(1-DefaultB+DefaultB*(dl/avgdl)))
}

func TestNewEngine_RequiresSource(t *testing.T) {
	_, err := NewEngine(nil, DefaultConfig())
	assert.Error(t, err)
}

func TestSearch_BM25Sanity(t *testing.T) {
	// Given A = "cat cat dog" and B = "dog"
	st := store.NewState()
	a := add(st, "/r/a", "cat cat dog")
	b := add(st, "/r/b", "dog")
	e, _ := newTestEngine(t, st)
	ctx := context.Background()

	// When searching for "cat", only A matches
	results, err := e.Search(ctx, "cat", 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, a, results[0].DocID)
	assert.InDelta(t, bm25(math.Log(2), 2, 3, 2), results[0].Score, 1e-12)

	// When searching for "dog", the shorter document ranks first
	results, err = e.Search(ctx, "dog", 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, b, results[0].DocID)
	assert.Equal(t, a, results[1].DocID)
	idf := math.Log(0.5/2.5 + 1)
	assert.InDelta(t, bm25(idf, 1, 1, 2), results[0].Score, 1e-12)
	assert.InDelta(t, bm25(idf, 1, 3, 2), results[1].Score, 1e-12)

	// When searching for both, A ranks first
	results, err = e.Search(ctx, "cat dog", 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, a, results[0].DocID)
}

func TestSearch_ContainmentMatching(t *testing.T) {
	st := store.NewState()
	id := add(st, "/r/a", "foobar")
	add(st, "/r/b", "unrelated")
	e, _ := newTestEngine(t, st)

	tests := []struct {
		name  string
		query string
	}{
		{"query inside index term", "foo"},
		{"index term inside query", "foobarbaz"},
		{"exact", "foobar"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := e.Search(context.Background(), tt.query, 0)
			require.NoError(t, err)
			require.Len(t, results, 1)
			assert.Equal(t, id, results[0].DocID)
		})
	}
}

func TestSearch_ZeroTermQuery(t *testing.T) {
	st := store.NewState()
	add(st, "/r/a", "alpha")
	e, _ := newTestEngine(t, st)

	for _, q := range []string{"", "   ", "!!! ... ???"} {
		results, err := e.Search(context.Background(), q, 0)
		require.NoError(t, err)
		assert.NotNil(t, results)
		assert.Empty(t, results)
	}
}

func TestSearch_EmptyCorpus(t *testing.T) {
	e, _ := newTestEngine(t, store.NewState())

	results, err := e.Search(context.Background(), "anything", 0)

	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearch_TiesBrokenByDocID(t *testing.T) {
	st := store.NewState()
	ids := []int{
		add(st, "/r/c", "same words here"),
		add(st, "/r/a", "same words here"),
		add(st, "/r/b", "same words here"),
	}
	e, _ := newTestEngine(t, st)

	results, err := e.Search(context.Background(), "words", 0)

	require.NoError(t, err)
	require.Len(t, results, 3)
	for n, r := range results {
		assert.Equal(t, ids[n], r.DocID)
	}
}

func TestSearch_LimitTruncates(t *testing.T) {
	st := store.NewState()
	for _, p := range []string{"/r/1", "/r/2", "/r/3", "/r/4"} {
		add(st, p, "term")
	}
	e, _ := newTestEngine(t, st)

	results, err := e.Search(context.Background(), "term", 2)

	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSearch_ResultCarriesDocumentFields(t *testing.T) {
	st := store.NewState()
	add(st, "/r/notes.md", "the quick brown fox")
	e, _ := newTestEngine(t, st)

	results, err := e.Search(context.Background(), "fox", 0)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "/r/notes.md", results[0].Path)
	assert.Equal(t, "/r/notes.md", results[0].Title)
	assert.Equal(t, "the quick brown fox", results[0].Snippet)
}

func TestSearch_CJK(t *testing.T) {
	st := store.NewState()
	id := add(st, "/r/zh", "我的知识库里有很多笔记")
	add(st, "/r/en", "english only")
	e, _ := newTestEngine(t, st)

	results, err := e.Search(context.Background(), "知识", 0)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, id, results[0].DocID)
	assert.Contains(t, results[0].Snippet, "知识")
}

func TestSearch_CacheKeyedByGeneration(t *testing.T) {
	// Given an engine with a warm cache entry
	st := store.NewState()
	add(st, "/r/a", "alpha")
	e, src := newTestEngine(t, st)
	ctx := context.Background()

	first, err := e.Search(ctx, "alpha", 0)
	require.NoError(t, err)
	second, err := e.Search(ctx, "alpha", 0)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, float64(1), testutil.ToFloat64(e.metrics.CacheLookupsTotal.WithLabelValues("hit")))

	// When the index changes
	src.mu.Lock()
	add(st, "/r/b", "alpha alpha")
	src.gen++
	src.mu.Unlock()

	// Then the stale entry is not served
	third, err := e.Search(ctx, "alpha", 0)
	require.NoError(t, err)
	assert.Len(t, third, 2)
	assert.Equal(t, float64(2), testutil.ToFloat64(e.metrics.CacheLookupsTotal.WithLabelValues("miss")))
}

func TestSearch_CachedResultsAreCopies(t *testing.T) {
	st := store.NewState()
	add(st, "/r/a", "alpha")
	e, _ := newTestEngine(t, st)

	first, err := e.Search(context.Background(), "alpha", 0)
	require.NoError(t, err)
	first[0].Title = "mutated"

	second, err := e.Search(context.Background(), "alpha", 0)
	require.NoError(t, err)
	assert.Equal(t, "/r/a", second[0].Title)
}

func TestSearch_CancelledContext(t *testing.T) {
	e, _ := newTestEngine(t, store.NewState())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Search(ctx, "alpha", 0)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestSearch_PersistenceRoundTripIsBitIdentical(t *testing.T) {
	// Given a populated state and its decoded snapshot
	st := store.NewState()
	add(st, "/r/a", "the cat sat on the mat")
	add(st, "/r/b", "a dog and a cat")
	add(st, "/r/c", "知识库 and notes about cats")
	removed := add(st, "/r/d", "temporary cat")
	require.True(t, st.Remove("/r/d"))

	data, err := store.EncodeState(st)
	require.NoError(t, err)
	restored, err := store.DecodeState(data)
	require.NoError(t, err)

	before, _ := newTestEngine(t, st)
	after, _ := newTestEngine(t, restored)

	// When running the same queries on both
	for _, q := range []string{"cat", "the mat", "知识", "notes dog"} {
		want, err := before.Search(context.Background(), q, 0)
		require.NoError(t, err)
		got, err := after.Search(context.Background(), q, 0)
		require.NoError(t, err)

		// Then scores and order match exactly
		assert.Equal(t, want, got, q)
		for _, r := range got {
			assert.NotEqual(t, removed, r.DocID)
		}
	}
}

func TestSearch_ConcurrentIdenticalQueries(t *testing.T) {
	st := store.NewState()
	add(st, "/r/a", "alpha beta")
	add(st, "/r/b", "beta gamma")
	e, _ := newTestEngine(t, st)

	var wg sync.WaitGroup
	results := make([][]Result, 16)
	for n := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := e.Search(context.Background(), "beta", 0)
			assert.NoError(t, err)
			results[n] = r
		}()
	}
	wg.Wait()

	for _, r := range results[1:] {
		assert.Equal(t, results[0], r)
	}
}

func TestConfigFrom(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 1.5, cfg.K1)
	assert.Equal(t, 0.75, cfg.B)
	assert.Equal(t, 20, cfg.DefaultLimit)
	assert.Equal(t, 150, cfg.SnippetWindow)
}
