// Package retrieval implements the grounding retriever: query expansion,
// dual-source search over the knowledge store and the web search
// collaborator, relevance scoring, composite ranking, and snippet
// extraction.
package retrieval

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/Z-SIS/sis-ai-helper-sub000/internal/domain"
	"github.com/Z-SIS/sis-ai-helper-sub000/internal/websearch"
)

const (
	defaultMaxSources    = 5
	defaultMaxVariants   = 8
	webSearchReliability = 0.7
)

// KnowledgeStore is the read-only store the retriever scans.
type KnowledgeStore interface {
	All() []domain.KnowledgeEntry
	Synonyms(term string) []string
}

// Embedder generates query embeddings for the optional semantic path.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// SemanticSearcher finds grounding chunks by embedding similarity.
type SemanticSearcher interface {
	SearchChunks(ctx context.Context, embedding []float32, limit int) ([]domain.GroundingSource, error)
}

// Options are the per-request retrieval knobs.
type Options struct {
	MaxSources          int
	MinRelevance        float64
	PreferredCategories []string
}

// Config controls retriever-wide behavior.
type Config struct {
	MaxSources           int
	MinRelevance         float64
	MinSourceReliability float64
	MaxSourceAgeDays     int
	TemporalFiltering    bool
	MaxVariants          int
	CacheCapacity        int
	CacheTTL             time.Duration
}

// DefaultConfig returns the default retriever configuration.
func DefaultConfig() Config {
	return Config{
		MaxSources:           defaultMaxSources,
		MinRelevance:         0.3,
		MinSourceReliability: 0.6,
		MaxSourceAgeDays:     730,
		TemporalFiltering:    true,
		MaxVariants:          defaultMaxVariants,
		CacheCapacity:        256,
		CacheTTL:             5 * time.Minute,
	}
}

// Retriever expands queries, searches both source paths, and ranks the
// merged candidates into a GroundingResult.
type Retriever struct {
	store    KnowledgeStore
	searcher websearch.Searcher
	embedder Embedder
	semantic SemanticSearcher
	cfg      Config
	cache    *resultCache
	now      func() time.Time
}

// NewRetriever creates a Retriever. searcher may be nil when no web search
// collaborator is configured; embedder and semantic are optional and enable
// the embedding-based knowledge path when both are present.
func NewRetriever(store KnowledgeStore, searcher websearch.Searcher, cfg Config) *Retriever {
	if cfg.MaxSources <= 0 {
		cfg.MaxSources = defaultMaxSources
	}
	if cfg.MaxVariants <= 0 {
		cfg.MaxVariants = defaultMaxVariants
	}
	return &Retriever{
		store:    store,
		searcher: searcher,
		cfg:      cfg,
		cache:    newResultCache(cfg.CacheCapacity, cfg.CacheTTL),
		now:      time.Now,
	}
}

// WithSemantic attaches the optional embedding-based knowledge path.
func (r *Retriever) WithSemantic(embedder Embedder, semantic SemanticSearcher) *Retriever {
	r.embedder = embedder
	r.semantic = semantic
	return r
}

// candidate pairs a source with its knowledge-store age, used by the
// composite ranking freshness boost. ageDays is -1 for web results.
// fromWeb marks web-search hits; semantic chunks count as knowledge-base
// contributions.
type candidate struct {
	source  domain.GroundingSource
	ageDays float64
	fromWeb bool
}

// Retrieve runs the full grounding pipeline for one query.
func (r *Retriever) Retrieve(ctx context.Context, query, contextText string, opts Options) (domain.GroundingResult, error) {
	query = strings.TrimSpace(query)
	result := domain.GroundingResult{Query: query}
	if query == "" {
		return result, nil
	}

	key := cacheKey(query, contextText, opts)
	if cached, ok := r.cache.get(key); ok {
		return cached, nil
	}

	maxSources := opts.MaxSources
	if maxSources <= 0 {
		maxSources = r.cfg.MaxSources
	}
	minRelevance := opts.MinRelevance
	if minRelevance <= 0 {
		minRelevance = r.cfg.MinRelevance
	}

	expansion := expandQuery(query, r.store, r.cfg.MaxVariants)
	result.QueryExpansion = expansion

	now := r.now()
	merged := make(map[string]candidate)
	var kbContributed, webContributed bool

	for _, expanded := range expansion.Expanded {
		terms := tokenize(expanded)
		if len(terms) == 0 {
			continue
		}

		for _, entry := range r.store.All() {
			relevance := entryRelevance(entry, terms, contextText, now)
			if relevance <= 0 {
				continue
			}
			src := knowledgeSource(entry, relevance)
			age := -1.0
			if !entry.LastVerified.IsZero() {
				age = now.Sub(entry.LastVerified).Hours() / 24
			}
			mergeCandidate(merged, candidate{source: src, ageDays: age})
		}

		if r.searcher != nil {
			hits, err := r.searcher.Search(ctx, expanded, maxSources)
			if err != nil {
				if ctx.Err() != nil {
					return result, domain.NewDomainErrorWithCause(domain.ErrCodeExternalService, "search cancelled", ctx.Err())
				}
				// Web search is best-effort: the knowledge store path
				// still serves the request.
				log.Printf("websearch failed for %q: %v", expanded, err)
				continue
			}
			for _, hit := range hits {
				mergeCandidate(merged, candidate{source: webSource(hit), ageDays: -1, fromWeb: true})
			}
		}
	}

	if r.embedder != nil && r.semantic != nil {
		if chunks, err := r.semanticSearch(ctx, query, maxSources); err != nil {
			log.Printf("semantic grounding failed for %q: %v", query, err)
		} else {
			for _, chunk := range chunks {
				mergeCandidate(merged, candidate{source: chunk, ageDays: -1})
			}
		}
	}

	survivors := r.filter(merged, minRelevance, now)
	ranked := rank(survivors, opts.PreferredCategories)

	if len(ranked) > maxSources {
		ranked = ranked[:maxSources]
	}

	terms := tokenize(query)
	for i := range ranked {
		ranked[i].source.ContextWindow = extractContextWindow(ranked[i].source.Content, query)
		result.Sources = append(result.Sources, ranked[i].source)
		if ranked[i].fromWeb {
			webContributed = true
		} else {
			kbContributed = true
		}
	}

	result.Snippets = extractSnippets(result.Sources, terms)
	result.TotalRelevanceScore = meanRelevance(result.Sources)
	result.HasHighQualitySources = r.hasHighQuality(result.Sources, minRelevance)
	result.RetrievalMethod = retrievalMethod(kbContributed, webContributed)

	r.cache.put(key, result)
	return result, nil
}

// EvictExpiredCache drops expired cache entries; used by the maintenance
// worker.
func (r *Retriever) EvictExpiredCache() int {
	return r.cache.EvictExpired()
}

func (r *Retriever) semanticSearch(ctx context.Context, query string, limit int) ([]domain.GroundingSource, error) {
	embedding, err := r.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, err
	}
	return r.semantic.SearchChunks(ctx, embedding, limit)
}

func (r *Retriever) filter(merged map[string]candidate, minRelevance float64, now time.Time) []candidate {
	out := make([]candidate, 0, len(merged))
	for _, cand := range merged {
		if cand.source.Reliability < r.cfg.MinSourceReliability {
			continue
		}
		if r.cfg.TemporalFiltering && cand.ageDays >= 0 && cand.ageDays > float64(r.cfg.MaxSourceAgeDays) {
			continue
		}
		if cand.source.RelevanceScore < minRelevance {
			continue
		}
		out = append(out, cand)
	}
	return out
}

func (r *Retriever) hasHighQuality(sources []domain.GroundingSource, minRelevance float64) bool {
	for _, s := range sources {
		if s.Reliability >= r.cfg.MinSourceReliability && s.RelevanceScore >= minRelevance {
			return true
		}
	}
	return false
}

// rank sorts candidates by composite score descending, breaking ties by
// reliability then ID for determinism.
func rank(candidates []candidate, preferred []string) []candidate {
	type scored struct {
		candidate
		composite float64
	}
	scoredList := make([]scored, 0, len(candidates))
	for _, cand := range candidates {
		scoredList = append(scoredList, scored{
			candidate: cand,
			composite: compositeScore(cand.source, cand.ageDays, preferred),
		})
	}

	sort.SliceStable(scoredList, func(i, j int) bool {
		if scoredList[i].composite != scoredList[j].composite {
			return scoredList[i].composite > scoredList[j].composite
		}
		if scoredList[i].source.Reliability != scoredList[j].source.Reliability {
			return scoredList[i].source.Reliability > scoredList[j].source.Reliability
		}
		return scoredList[i].source.ID < scoredList[j].source.ID
	})

	out := make([]candidate, len(scoredList))
	for i, s := range scoredList {
		out[i] = s.candidate
	}
	return out
}

func mergeCandidate(dst map[string]candidate, cand candidate) {
	existing, ok := dst[cand.source.ID]
	if !ok || cand.source.RelevanceScore > existing.source.RelevanceScore {
		dst[cand.source.ID] = cand
	}
}

func knowledgeSource(entry domain.KnowledgeEntry, relevance float64) domain.GroundingSource {
	category := "knowledge_base"
	if len(entry.Tags) > 0 {
		category = entry.Tags[0]
	}
	return domain.GroundingSource{
		ID:             "kb-" + domain.ContentHash(entry.Topic + "|" + entry.Content)[:12],
		Title:          entry.Topic,
		Content:        entry.Content,
		RelevanceScore: relevance,
		Reliability:    entry.Reliability,
		SourceType:     entry.SourceType,
		Category:       category,
		Tags:           entry.Tags,
	}
}

func webSource(hit websearch.Result) domain.GroundingSource {
	return domain.GroundingSource{
		ID:             "web-" + domain.ContentHash(hit.URL + "|" + hit.Title)[:12],
		Title:          hit.Title,
		Content:        hit.Content,
		URL:            hit.URL,
		RelevanceScore: clip01(hit.Score),
		Reliability:    webSearchReliability,
		SourceType:     domain.SourceTypeSecondary,
		Category:       "web_search",
	}
}

func meanRelevance(sources []domain.GroundingSource) float64 {
	if len(sources) == 0 {
		return 0
	}
	var sum float64
	for _, s := range sources {
		sum += s.RelevanceScore
	}
	return sum / float64(len(sources))
}

func retrievalMethod(kb, web bool) domain.RetrievalMethod {
	switch {
	case kb && web:
		return domain.RetrievalHybrid
	case web:
		return domain.RetrievalWebSearch
	default:
		return domain.RetrievalKnowledgeBase
	}
}

func cacheKey(query, contextText string, opts Options) string {
	return fmt.Sprintf("%s|%s|%d|%.3f|%s",
		strings.ToLower(query),
		domain.ContentHash(contextText),
		opts.MaxSources,
		opts.MinRelevance,
		strings.Join(opts.PreferredCategories, ","),
	)
}
