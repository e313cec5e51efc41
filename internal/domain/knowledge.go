package domain

import (
	"fmt"
	"time"
)

// SourceType classifies the provenance of a knowledge entry or grounding source
type SourceType string

const (
	SourceTypePrimary   SourceType = "primary"
	SourceTypeSecondary SourceType = "secondary"
	SourceTypeTertiary  SourceType = "tertiary"
)

// ValidateSourceType checks if a SourceType is valid
func ValidateSourceType(s SourceType) error {
	switch s {
	case SourceTypePrimary, SourceTypeSecondary, SourceTypeTertiary:
		return nil
	}
	return ErrInvalidSourceType
}

// Summaries holds the three summary lengths kept for every knowledge entry
type Summaries struct {
	Short  string `json:"short"`
	Medium string `json:"medium"`
	Long   string `json:"long"`
}

// KnowledgeEntry is one versioned entry in the knowledge store.
// Entries are immutable after load.
type KnowledgeEntry struct {
	Topic         string     `json:"topic"`
	Content       string     `json:"content"`
	Summaries     Summaries  `json:"summaries"`
	Reliability   float64    `json:"reliability"`
	SourceType    SourceType `json:"source_type"`
	LastVerified  time.Time  `json:"last_verified"`
	Tags          []string   `json:"tags,omitempty"`
	RelatedTopics []string   `json:"related_topics,omitempty"`
}

// ValidateKnowledgeEntry validates a KnowledgeEntry instance
func ValidateKnowledgeEntry(e *KnowledgeEntry) error {
	if e == nil {
		return fmt.Errorf("knowledge entry cannot be nil")
	}
	if e.Topic == "" {
		return fmt.Errorf("knowledge entry Topic is required")
	}
	if e.Content == "" {
		return fmt.Errorf("knowledge entry Content is required")
	}
	if e.Reliability < 0 || e.Reliability > 1 {
		return fmt.Errorf("knowledge entry Reliability must be in [0,1], got %f", e.Reliability)
	}
	if err := ValidateSourceType(e.SourceType); err != nil {
		return fmt.Errorf("knowledge entry SourceType is invalid: %s", e.SourceType)
	}
	return nil
}

// ContextWindow captures the text surrounding a query match inside a source
type ContextWindow struct {
	Before string `json:"before"`
	After  string `json:"after"`
}

// GroundingSource is one candidate evidence source produced for a query.
// Sources live for the duration of a single request.
type GroundingSource struct {
	ID             string        `json:"id"`
	Title          string        `json:"title"`
	Content        string        `json:"content"`
	URL            string        `json:"url,omitempty"`
	RelevanceScore float64       `json:"relevance_score"`
	Reliability    float64       `json:"reliability"`
	SourceType     SourceType    `json:"source_type"`
	Category       string        `json:"category,omitempty"`
	Tags           []string      `json:"tags,omitempty"`
	ContextWindow  ContextWindow `json:"context_window"`
}

// RetrievalMethod identifies which source paths contributed grounding results
type RetrievalMethod string

const (
	RetrievalKnowledgeBase RetrievalMethod = "knowledge_base"
	RetrievalWebSearch     RetrievalMethod = "web_search"
	RetrievalHybrid        RetrievalMethod = "hybrid"
)

// QueryExpansion records how a query was expanded before searching
type QueryExpansion struct {
	Original string   `json:"original"`
	Expanded []string `json:"expanded"`
	Synonyms []string `json:"synonyms,omitempty"`
}

// Snippet is one extracted sentence relevant to the query
type Snippet struct {
	SourceID string  `json:"source_id"`
	Text     string  `json:"text"`
	Score    float64 `json:"score"`
}

// GroundingResult is the retriever's output for one request
type GroundingResult struct {
	Query                 string            `json:"query"`
	Sources               []GroundingSource `json:"sources"`
	TotalRelevanceScore   float64           `json:"total_relevance_score"`
	HasHighQualitySources bool              `json:"has_high_quality_sources"`
	QueryExpansion        QueryExpansion    `json:"query_expansion"`
	RetrievalMethod       RetrievalMethod   `json:"retrieval_method"`
	Snippets              []Snippet         `json:"snippets,omitempty"`
}
