// Package knowledge provides the read-only knowledge store the grounding
// retriever searches at request time. Entries are loaded once at process
// start and never mutated afterwards, so reads need no locking.
package knowledge

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/Z-SIS/sis-ai-helper-sub000/internal/domain"
)

// Store maps topics to their versioned knowledge entries.
type Store struct {
	entries  map[string][]domain.KnowledgeEntry
	ordered  []domain.KnowledgeEntry
	synonyms map[string][]string
}

// defaultSynonyms is the configured term expansion dictionary. Keys and
// values are lowercase.
var defaultSynonyms = map[string][]string{
	"company":  {"corporation", "business", "enterprise"},
	"revenue":  {"income", "earnings", "turnover"},
	"profit":   {"margin", "net income", "surplus"},
	"employee": {"staff", "personnel", "headcount"},
	"customer": {"client", "account", "buyer"},
	"product":  {"offering", "solution", "service"},
	"contract": {"agreement", "deal", "engagement"},
	"address":  {"location", "headquarters", "office"},
}

// NewStore creates a Store from pre-loaded entries using the default
// synonym dictionary. Invalid entries are rejected.
func NewStore(entries []domain.KnowledgeEntry) (*Store, error) {
	return NewStoreWithSynonyms(entries, defaultSynonyms)
}

// NewStoreWithSynonyms creates a Store with an explicit synonym dictionary.
func NewStoreWithSynonyms(entries []domain.KnowledgeEntry, synonyms map[string][]string) (*Store, error) {
	byTopic := make(map[string][]domain.KnowledgeEntry, len(entries))
	ordered := make([]domain.KnowledgeEntry, 0, len(entries))
	for i := range entries {
		e := entries[i]
		if err := domain.ValidateKnowledgeEntry(&e); err != nil {
			return nil, fmt.Errorf("invalid knowledge entry %d: %w", i, err)
		}
		key := normalizeTopic(e.Topic)
		byTopic[key] = append(byTopic[key], e)
		ordered = append(ordered, e)
	}

	syn := make(map[string][]string, len(synonyms))
	for term, alts := range synonyms {
		syn[strings.ToLower(term)] = alts
	}

	return &Store{
		entries:  byTopic,
		ordered:  ordered,
		synonyms: syn,
	}, nil
}

// LoadFile loads a Store from a JSON file containing an array of entries.
func LoadFile(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read knowledge file: %w", err)
	}

	var entries []domain.KnowledgeEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse knowledge file: %w", err)
	}

	return NewStore(entries)
}

// EntriesByTopic returns all entries stored under the given topic.
func (s *Store) EntriesByTopic(topic string) []domain.KnowledgeEntry {
	return s.entries[normalizeTopic(topic)]
}

// All returns every entry in load order.
func (s *Store) All() []domain.KnowledgeEntry {
	return s.ordered
}

// Len returns the number of entries in the store.
func (s *Store) Len() int {
	return len(s.ordered)
}

// Synonyms returns the configured synonym set for a term, or nil.
func (s *Store) Synonyms(term string) []string {
	return s.synonyms[strings.ToLower(strings.TrimSpace(term))]
}

func normalizeTopic(topic string) string {
	return strings.ToLower(strings.TrimSpace(topic))
}
