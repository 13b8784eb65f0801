// Package search ranks indexed documents against a free-text query with
// BM25 and extracts a snippet for each hit.
//
// Query terms are matched against index terms by containment in either
// direction, which recovers compound words that the tokenizer split into
// finer pieces. Results are cached per index generation, so a cache entry
// can never outlive the state it was computed from.
package search

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/Aman-CERP/docdex/internal/config"
	docerrors "github.com/Aman-CERP/docdex/internal/errors"
	"github.com/Aman-CERP/docdex/internal/metrics"
	"github.com/Aman-CERP/docdex/internal/store"
	"github.com/Aman-CERP/docdex/internal/tokenize"
)

// Defaults for ranking and presentation.
const (
	DefaultK1            = 1.5
	DefaultB             = 0.75
	DefaultLimit         = 20
	DefaultSnippetWindow = 150
	DefaultCacheSize     = 256
)

// Config tunes the engine.
type Config struct {
	K1            float64
	B             float64
	DefaultLimit  int
	SnippetWindow int
	// CacheSize is the number of cached result lists. Zero disables the
	// cache.
	CacheSize int
}

// DefaultConfig returns the standard BM25 parameters.
func DefaultConfig() Config {
	return Config{
		K1:            DefaultK1,
		B:             DefaultB,
		DefaultLimit:  DefaultLimit,
		SnippetWindow: DefaultSnippetWindow,
		CacheSize:     DefaultCacheSize,
	}
}

// ConfigFrom maps the search section of the configuration file.
func ConfigFrom(cfg config.SearchConfig) Config {
	c := DefaultConfig()
	if cfg.K1 > 0 {
		c.K1 = cfg.K1
	}
	if cfg.B >= 0 && cfg.B <= 1 {
		c.B = cfg.B
	}
	if cfg.MaxResults > 0 {
		c.DefaultLimit = cfg.MaxResults
	}
	if cfg.SnippetWindow > 0 {
		c.SnippetWindow = cfg.SnippetWindow
	}
	if cfg.CacheSize >= 0 {
		c.CacheSize = cfg.CacheSize
	}
	return c
}

// Result is one ranked document.
type Result struct {
	DocID   int     `json:"doc_id"`
	Title   string  `json:"title"`
	Path    string  `json:"path"`
	Score   float64 `json:"score"`
	Snippet string  `json:"snippet"`
}

// Source gives the engine a consistent view of the index. View must hold
// off writers for the duration of fn, and Generation must change whenever
// the state seen by View changes.
type Source interface {
	View(fn func(st *store.State))
	Generation() uint64
}

type cacheKey struct {
	generation uint64
	limit      int
	query      string
}

// Engine answers queries against a Source.
type Engine struct {
	src     Source
	cfg     Config
	cache   *lru.Cache[cacheKey, []Result]
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// EngineOption configures the engine.
type EngineOption func(*Engine)

// WithMetrics records query counts, latency and cache lookups.
func WithMetrics(m *metrics.Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithLogger sets the engine's logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// NewEngine creates an engine reading from src.
func NewEngine(src Source, cfg Config, opts ...EngineOption) (*Engine, error) {
	if src == nil {
		return nil, docerrors.InternalError("search engine requires an index source", nil)
	}
	if cfg.K1 <= 0 {
		cfg.K1 = DefaultK1
	}
	if cfg.B < 0 || cfg.B > 1 {
		cfg.B = DefaultB
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = DefaultLimit
	}
	if cfg.SnippetWindow <= 0 {
		cfg.SnippetWindow = DefaultSnippetWindow
	}

	e := &Engine{src: src, cfg: cfg, logger: slog.Default()}
	if cfg.CacheSize > 0 {
		cache, err := lru.New[cacheKey, []Result](cfg.CacheSize)
		if err != nil {
			return nil, docerrors.InternalError("failed to create result cache", err)
		}
		e.cache = cache
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Search returns up to limit documents ranked by BM25 score, highest
// first, ties broken by ascending document id. A limit <= 0 uses the
// configured default. A query with no terms yields an empty result.
func (e *Engine) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	if limit <= 0 {
		limit = e.cfg.DefaultLimit
	}

	key := cacheKey{generation: e.src.Generation(), limit: limit, query: query}
	if e.cache != nil {
		if cached, ok := e.cache.Get(key); ok {
			e.metrics.CacheLookup(true)
			e.metrics.SearchObserved("cached", time.Since(start))
			return slices.Clone(cached), nil
		}
		e.metrics.CacheLookup(false)
	}

	v, _, shared := e.group.Do(fmt.Sprintf("%d\x00%d\x00%s", key.generation, limit, query), func() (any, error) {
		results, gen := e.rank(query, limit)
		if e.cache != nil {
			e.cache.Add(cacheKey{generation: gen, limit: limit, query: query}, results)
		}
		return results, nil
	})
	results := slices.Clone(v.([]Result))

	resultType := "hits"
	if len(results) == 0 {
		resultType = "empty"
	}
	e.metrics.SearchObserved(resultType, time.Since(start))
	e.logger.Debug("search_complete",
		slog.String("query", query),
		slog.Int("results", len(results)),
		slog.Bool("shared", shared),
		slog.Duration("duration", time.Since(start)))
	return results, nil
}

// rank scores the query under one read view and returns the results with
// the generation they were computed at.
func (e *Engine) rank(query string, limit int) ([]Result, uint64) {
	terms := tokenize.Tokenize(query)
	results := []Result{}
	var gen uint64

	e.src.View(func(st *store.State) {
		gen = e.src.Generation()
		if len(terms) == 0 {
			return
		}
		scores := Score(st, terms, e.cfg.K1, e.cfg.B)
		if len(scores) == 0 {
			return
		}

		for id, score := range scores {
			if score <= 0 {
				continue
			}
			results = append(results, Result{DocID: id, Score: score})
		}
		slices.SortFunc(results, func(a, b Result) int {
			if c := cmp.Compare(b.Score, a.Score); c != 0 {
				return c
			}
			return cmp.Compare(a.DocID, b.DocID)
		})
		if len(results) > limit {
			results = results[:limit]
		}

		for n := range results {
			doc, ok := st.Docs.Get(results[n].DocID)
			if !ok {
				continue
			}
			results[n].Title = doc.Title
			results[n].Path = doc.Path
			results[n].Snippet = Snippet(doc.Content, terms, e.cfg.SnippetWindow)
		}
	})
	return results, gen
}

// Score computes the BM25 score of every document matching at least one
// of terms. Each query term aggregates the frequencies of all index terms
// it contains or is contained by; repeated query terms contribute again.
func Score(st *store.State, terms []string, k1, b float64) map[int]float64 {
	n := st.Docs.Len()
	if n == 0 {
		return nil
	}
	avgdl := float64(st.Docs.TotalLength()) / float64(n)
	if avgdl <= 0 {
		avgdl = 1
	}

	scores := make(map[int]float64)
	for _, q := range terms {
		if q == "" {
			continue
		}
		freqs := matchFrequencies(st.Index, q)
		nq := len(freqs)
		if nq == 0 {
			continue
		}
		idf := math.Log((float64(n)-float64(nq)+0.5)/(float64(nq)+0.5) + 1)

		for id, tf := range freqs {
			doc, ok := st.Docs.Get(id)
			if !ok {
				continue
			}
			f := float64(tf)
			dl := float64(doc.Length)
			scores[id] += idf * (f * (k1 + 1)) / (f + k1*(1-b+b*(dl/avgdl)))
		}
	}
	return scores
}

// matchFrequencies sums, per document, the frequencies of every index term
// that contains q or is contained in it.
func matchFrequencies(ix *store.InvertedIndex, q string) map[int]int {
	freqs := make(map[int]int)
	ix.Range(func(term string, postings store.Postings) bool {
		if strings.Contains(term, q) || strings.Contains(q, term) {
			for id, tf := range postings {
				freqs[id] += tf
			}
		}
		return true
	})
	return freqs
}
