package retrieval

import (
	"sort"
	"strings"

	"github.com/Z-SIS/sis-ai-helper-sub000/internal/domain"
)

const (
	maxSnippets       = 10
	contextWindowSize = 150
)

// extractSnippets splits each source's content into sentences, keeps those
// containing at least one query term, scores them by matched-term fraction,
// and returns the best maxSnippets across all sources.
func extractSnippets(sources []domain.GroundingSource, terms []string) []domain.Snippet {
	if len(terms) == 0 {
		return nil
	}

	var snippets []domain.Snippet
	for _, source := range sources {
		for _, sentence := range splitSentences(source.Content) {
			matched := 0
			for _, term := range terms {
				if containsTerm(sentence, term) {
					matched++
				}
			}
			if matched == 0 {
				continue
			}
			snippets = append(snippets, domain.Snippet{
				SourceID: source.ID,
				Text:     sentence,
				Score:    float64(matched) / float64(len(terms)),
			})
		}
	}

	sort.SliceStable(snippets, func(i, j int) bool {
		return snippets[i].Score > snippets[j].Score
	})

	if len(snippets) > maxSnippets {
		snippets = snippets[:maxSnippets]
	}
	return snippets
}

// splitSentences is a lightweight sentence splitter on terminal punctuation.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder
	for _, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			sentence := strings.TrimSpace(current.String())
			if sentence != "" {
				sentences = append(sentences, sentence)
			}
			current.Reset()
		}
	}
	if tail := strings.TrimSpace(current.String()); tail != "" {
		sentences = append(sentences, tail)
	}
	return sentences
}

// extractContextWindow captures a fixed-size window around the first
// case-insensitive occurrence of the query inside the source text.
func extractContextWindow(content, query string) domain.ContextWindow {
	if content == "" || query == "" {
		return domain.ContextWindow{}
	}

	idx := strings.Index(strings.ToLower(content), strings.ToLower(query))
	if idx < 0 {
		return domain.ContextWindow{}
	}

	start := idx - contextWindowSize
	if start < 0 {
		start = 0
	}
	end := idx + len(query) + contextWindowSize
	if end > len(content) {
		end = len(content)
	}

	return domain.ContextWindow{
		Before: strings.TrimSpace(content[start:idx]),
		After:  strings.TrimSpace(content[idx+len(query) : end]),
	}
}
