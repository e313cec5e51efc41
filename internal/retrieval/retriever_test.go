package retrieval

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Z-SIS/sis-ai-helper-sub000/internal/domain"
	"github.com/Z-SIS/sis-ai-helper-sub000/internal/knowledge"
	"github.com/Z-SIS/sis-ai-helper-sub000/internal/websearch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSearcher struct {
	results []websearch.Result
	err     error
	calls   int
}

func (f *fakeSearcher) Search(ctx context.Context, query string, maxResults int) ([]websearch.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func newTestStore(t *testing.T, entries []domain.KnowledgeEntry) *knowledge.Store {
	t.Helper()
	store, err := knowledge.NewStore(entries)
	require.NoError(t, err)
	return store
}

func acmeEntries() []domain.KnowledgeEntry {
	return []domain.KnowledgeEntry{
		{
			Topic:        "Acme revenue",
			Content:      "Acme Corp reported $10M revenue in fiscal 2025. Revenue grew 12% year over year.",
			Reliability:  0.9,
			SourceType:   domain.SourceTypePrimary,
			LastVerified: time.Now().AddDate(0, 0, -5),
			Tags:         []string{"finance"},
		},
		{
			Topic:        "Acme revenue",
			Content:      "A blog estimated Acme revenue around $10M.",
			Reliability:  0.5,
			SourceType:   domain.SourceTypeSecondary,
			LastVerified: time.Now().AddDate(0, 0, -5),
			Tags:         []string{"finance"},
		},
	}
}

func TestRetrievePrimaryRanksFirst(t *testing.T) {
	// Scenario A: equal term overlap, primary 0.9 vs secondary 0.5.
	store := newTestStore(t, acmeEntries())
	cfg := DefaultConfig()
	cfg.MinSourceReliability = 0.4
	retriever := NewRetriever(store, nil, cfg)

	result, err := retriever.Retrieve(context.Background(), "Acme revenue", "", Options{})
	require.NoError(t, err)

	require.NotEmpty(t, result.Sources)
	assert.Equal(t, domain.SourceTypePrimary, result.Sources[0].SourceType)
	assert.Equal(t, 0.9, result.Sources[0].Reliability)
	assert.Equal(t, domain.RetrievalKnowledgeBase, result.RetrievalMethod)
	assert.True(t, result.HasHighQualitySources)
}

func TestRetrieveEmptyEverywhere(t *testing.T) {
	// Scenario D: no matches in either source path.
	store := newTestStore(t, nil)
	searcher := &fakeSearcher{results: []websearch.Result{}}
	retriever := NewRetriever(store, searcher, DefaultConfig())

	result, err := retriever.Retrieve(context.Background(), "quantum flux capacitors", "", Options{})
	require.NoError(t, err)

	assert.Empty(t, result.Sources)
	assert.False(t, result.HasHighQualitySources)
	assert.Zero(t, result.TotalRelevanceScore)
}

type fakeEmbedder struct{}

func (fakeEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

type fakeSemanticSearcher struct {
	chunks []domain.GroundingSource
}

func (f *fakeSemanticSearcher) SearchChunks(ctx context.Context, embedding []float32, limit int) ([]domain.GroundingSource, error) {
	return f.chunks, nil
}

func TestRetrieveSemanticHitCountsAsKnowledgeBase(t *testing.T) {
	// Chunk IDs come from the repository without the in-memory id prefix;
	// attribution must still credit the knowledge-base path.
	store := newTestStore(t, nil)
	semantic := &fakeSemanticSearcher{chunks: []domain.GroundingSource{
		{
			ID:             "3f7c2e90-1b44-4b6a-9a57-0d2f5a6c8e11",
			Title:          "Acme revenue chunk",
			Content:        "Acme Corp reported $10M revenue in fiscal 2025.",
			RelevanceScore: 0.8,
			Reliability:    0.9,
			SourceType:     domain.SourceTypePrimary,
		},
	}}
	cfg := DefaultConfig()
	cfg.MinSourceReliability = 0.4
	retriever := NewRetriever(store, nil, cfg).WithSemantic(fakeEmbedder{}, semantic)

	result, err := retriever.Retrieve(context.Background(), "Acme revenue", "", Options{})
	require.NoError(t, err)

	require.NotEmpty(t, result.Sources)
	assert.Equal(t, domain.RetrievalKnowledgeBase, result.RetrievalMethod)
}

func TestRetrieveHybridMethod(t *testing.T) {
	store := newTestStore(t, acmeEntries())
	searcher := &fakeSearcher{results: []websearch.Result{
		{Title: "Acme revenue report", URL: "https://example.com/r", Content: "Acme revenue hit $10M.", Score: 0.8},
	}}
	cfg := DefaultConfig()
	cfg.MinSourceReliability = 0.4
	retriever := NewRetriever(store, searcher, cfg)

	result, err := retriever.Retrieve(context.Background(), "Acme revenue", "", Options{MaxSources: 10})
	require.NoError(t, err)

	assert.Equal(t, domain.RetrievalHybrid, result.RetrievalMethod)
	var foundWeb bool
	for _, s := range result.Sources {
		if s.URL != "" {
			foundWeb = true
			assert.Equal(t, 0.7, s.Reliability)
			assert.Equal(t, domain.SourceTypeSecondary, s.SourceType)
		}
	}
	assert.True(t, foundWeb)
}

func TestRetrieveWebSearchFailureIsBestEffort(t *testing.T) {
	store := newTestStore(t, acmeEntries())
	searcher := &fakeSearcher{err: errors.New("search down")}
	cfg := DefaultConfig()
	cfg.MinSourceReliability = 0.4
	retriever := NewRetriever(store, searcher, cfg)

	result, err := retriever.Retrieve(context.Background(), "Acme revenue", "", Options{})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Sources)
}

func TestRetrieveRespectsMaxSources(t *testing.T) {
	entries := acmeEntries()
	entries = append(entries, domain.KnowledgeEntry{
		Topic:        "Acme revenue history",
		Content:      "Acme revenue was $8M in 2024.",
		Reliability:  0.85,
		SourceType:   domain.SourceTypePrimary,
		LastVerified: time.Now(),
	})
	store := newTestStore(t, entries)
	cfg := DefaultConfig()
	cfg.MinSourceReliability = 0.4
	retriever := NewRetriever(store, nil, cfg)

	result, err := retriever.Retrieve(context.Background(), "Acme revenue", "", Options{MaxSources: 1})
	require.NoError(t, err)
	assert.Len(t, result.Sources, 1)
}

func TestRetrieveFiltersLowReliability(t *testing.T) {
	store := newTestStore(t, acmeEntries())
	cfg := DefaultConfig()
	cfg.MinSourceReliability = 0.8
	retriever := NewRetriever(store, nil, cfg)

	result, err := retriever.Retrieve(context.Background(), "Acme revenue", "", Options{})
	require.NoError(t, err)

	for _, s := range result.Sources {
		assert.GreaterOrEqual(t, s.Reliability, 0.8)
	}
}

func TestRetrieveTemporalFiltering(t *testing.T) {
	entries := []domain.KnowledgeEntry{
		{
			Topic:        "Acme revenue",
			Content:      "Ancient Acme revenue data.",
			Reliability:  0.9,
			SourceType:   domain.SourceTypePrimary,
			LastVerified: time.Now().AddDate(-5, 0, 0),
		},
	}
	store := newTestStore(t, entries)
	cfg := DefaultConfig()
	cfg.MaxSourceAgeDays = 365
	retriever := NewRetriever(store, nil, cfg)

	result, err := retriever.Retrieve(context.Background(), "Acme revenue", "", Options{})
	require.NoError(t, err)
	assert.Empty(t, result.Sources)
}

func TestRetrieveSnippetsContainQueryTerms(t *testing.T) {
	store := newTestStore(t, acmeEntries())
	cfg := DefaultConfig()
	cfg.MinSourceReliability = 0.4
	retriever := NewRetriever(store, nil, cfg)

	result, err := retriever.Retrieve(context.Background(), "Acme revenue", "", Options{})
	require.NoError(t, err)

	require.NotEmpty(t, result.Snippets)
	assert.LessOrEqual(t, len(result.Snippets), 10)
	for _, snippet := range result.Snippets {
		hasTerm := containsTerm(snippet.Text, "acme") || containsTerm(snippet.Text, "revenue")
		assert.True(t, hasTerm, "snippet %q contains no query term", snippet.Text)
		assert.Greater(t, snippet.Score, 0.0)
	}
}

func TestRetrieveCaches(t *testing.T) {
	store := newTestStore(t, acmeEntries())
	searcher := &fakeSearcher{results: []websearch.Result{}}
	cfg := DefaultConfig()
	cfg.MinSourceReliability = 0.4
	retriever := NewRetriever(store, searcher, cfg)

	_, err := retriever.Retrieve(context.Background(), "Acme revenue", "", Options{})
	require.NoError(t, err)
	callsAfterFirst := searcher.calls

	_, err = retriever.Retrieve(context.Background(), "Acme revenue", "", Options{})
	require.NoError(t, err)
	assert.Equal(t, callsAfterFirst, searcher.calls, "second retrieve should hit the cache")
}

func TestQueryExpansion(t *testing.T) {
	store := newTestStore(t, nil)
	expansion := expandQuery("company revenue", store, 10)

	require.NotEmpty(t, expansion.Expanded)
	assert.Equal(t, "company revenue", expansion.Expanded[0], "original query must come first")
	assert.Contains(t, expansion.Expanded, "corporation revenue")
	assert.Contains(t, expansion.Expanded, "company revenue information")
	assert.Contains(t, expansion.Synonyms, "corporation")
}

func TestQueryExpansionEmptyQuery(t *testing.T) {
	expansion := expandQuery("   ", nil, 10)
	assert.Empty(t, expansion.Expanded)
}

func TestQueryExpansionCapped(t *testing.T) {
	store := newTestStore(t, nil)
	expansion := expandQuery("company revenue profit customer product", store, 3)
	assert.Len(t, expansion.Expanded, 3)
	assert.Equal(t, "company revenue profit customer product", expansion.Expanded[0])
}

func TestEntryRelevanceMonotonicInReliability(t *testing.T) {
	now := time.Now()
	terms := tokenize("acme revenue")
	base := domain.KnowledgeEntry{
		Topic:        "Acme revenue",
		Content:      "Acme revenue data.",
		SourceType:   domain.SourceTypePrimary,
		LastVerified: now,
	}

	var prev float64
	for _, reliability := range []float64{0.2, 0.5, 0.8, 1.0} {
		entry := base
		entry.Reliability = reliability
		score := entryRelevance(entry, terms, "", now)
		assert.GreaterOrEqual(t, score, prev, "relevance must not decrease with reliability")
		prev = score
	}
}

func TestCompositeScoreMonotonic(t *testing.T) {
	base := domain.GroundingSource{
		RelevanceScore: 0.5,
		Reliability:    0.5,
		SourceType:     domain.SourceTypeSecondary,
	}

	// Monotonic in relevance.
	var prev float64
	for _, rel := range []float64{0.1, 0.4, 0.7, 1.0} {
		s := base
		s.RelevanceScore = rel
		score := compositeScore(s, -1, nil)
		assert.GreaterOrEqual(t, score, prev)
		prev = score
	}

	// Monotonic in reliability.
	prev = 0
	for _, rel := range []float64{0.1, 0.4, 0.7, 1.0} {
		s := base
		s.Reliability = rel
		score := compositeScore(s, -1, nil)
		assert.GreaterOrEqual(t, score, prev)
		prev = score
	}
}

func TestCompositeScoreBoosts(t *testing.T) {
	base := domain.GroundingSource{
		RelevanceScore: 0.5,
		Reliability:    0.5,
		SourceType:     domain.SourceTypeSecondary,
		Category:       "finance",
	}
	plain := compositeScore(base, -1, nil)

	primary := base
	primary.SourceType = domain.SourceTypePrimary
	assert.InDelta(t, plain*1.2, compositeScore(primary, -1, nil), 1e-9)

	assert.InDelta(t, plain*1.1, compositeScore(base, 10, nil), 1e-9)
	assert.InDelta(t, plain*1.1, compositeScore(base, -1, []string{"finance"}), 1e-9)
	assert.InDelta(t, plain, compositeScore(base, 400, nil), 1e-9)
}

func TestRecencyMultiplier(t *testing.T) {
	now := time.Now()
	assert.Equal(t, 1.1, recencyMultiplier(now.AddDate(0, 0, -10), now))
	assert.Equal(t, 1.0, recencyMultiplier(now.AddDate(0, 0, -100), now))
	assert.Equal(t, 0.9, recencyMultiplier(now.AddDate(-2, 0, 0), now))
	assert.Equal(t, 1.0, recencyMultiplier(time.Time{}, now))
}

func TestExtractContextWindow(t *testing.T) {
	content := "Before text sits here. Acme revenue was strong. After text follows."
	window := extractContextWindow(content, "acme revenue")
	assert.Contains(t, window.Before, "Before text")
	assert.Contains(t, window.After, "was strong")

	empty := extractContextWindow(content, "not present")
	assert.Empty(t, empty.Before)
	assert.Empty(t, empty.After)
}

func TestExtractSnippetsCap(t *testing.T) {
	var sources []domain.GroundingSource
	content := ""
	for i := 0; i < 30; i++ {
		content += "Acme revenue keeps growing. "
	}
	sources = append(sources, domain.GroundingSource{ID: "kb-1", Content: content})

	snippets := extractSnippets(sources, []string{"acme", "revenue"})
	assert.Len(t, snippets, 10)
}

func TestResultCacheTTL(t *testing.T) {
	cache := newResultCache(4, 50*time.Millisecond)
	current := time.Now()
	cache.now = func() time.Time { return current }

	cache.put("k", domain.GroundingResult{Query: "q"})
	_, ok := cache.get("k")
	assert.True(t, ok)

	current = current.Add(100 * time.Millisecond)
	_, ok = cache.get("k")
	assert.False(t, ok)
}

func TestResultCacheCapacity(t *testing.T) {
	cache := newResultCache(2, time.Minute)
	cache.put("a", domain.GroundingResult{})
	cache.put("b", domain.GroundingResult{})
	cache.put("c", domain.GroundingResult{})

	assert.LessOrEqual(t, cache.len(), 2)
	_, ok := cache.get("c")
	assert.True(t, ok, "newest entry must survive eviction")
}

func TestEvictExpired(t *testing.T) {
	cache := newResultCache(8, 10*time.Millisecond)
	current := time.Now()
	cache.now = func() time.Time { return current }

	cache.put("a", domain.GroundingResult{})
	cache.put("b", domain.GroundingResult{})
	current = current.Add(time.Second)

	removed := cache.EvictExpired()
	assert.Equal(t, 2, removed)
	assert.Zero(t, cache.len())
}
