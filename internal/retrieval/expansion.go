package retrieval

import (
	"strings"
	"unicode"

	"github.com/Z-SIS/sis-ai-helper-sub000/internal/domain"
)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "and": {}, "or": {}, "of": {}, "to": {}, "for": {}, "with": {}, "by": {},
	"in": {}, "on": {}, "at": {}, "from": {}, "as": {}, "is": {}, "are": {}, "was": {}, "were": {}, "be": {},
	"been": {}, "it": {}, "this": {}, "that": {}, "these": {}, "those": {}, "we": {}, "our": {}, "you": {},
	"your": {}, "i": {}, "me": {}, "my": {}, "us": {}, "them": {}, "they": {}, "their": {}, "do": {},
	"does": {}, "did": {}, "what": {}, "how": {}, "why": {}, "when": {}, "where": {}, "which": {}, "can": {},
	"could": {}, "should": {}, "would": {}, "may": {}, "might": {}, "will": {}, "shall": {},
}

// contextualSuffixes are appended to domain nouns to widen recall.
var contextualSuffixes = []string{"information", "details"}

// SynonymProvider supplies the configured term expansion dictionary.
type SynonymProvider interface {
	Synonyms(term string) []string
}

// expandQuery produces the ordered list of expanded queries. The original
// query is always first; synonym substitutions and contextual suffixes
// follow, deduplicated case-insensitively and capped at maxVariants.
func expandQuery(query string, provider SynonymProvider, maxVariants int) domain.QueryExpansion {
	original := strings.TrimSpace(query)
	expansion := domain.QueryExpansion{Original: original}
	if original == "" {
		return expansion
	}

	seen := map[string]struct{}{}
	add := func(candidate string) {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			return
		}
		key := strings.ToLower(candidate)
		if _, ok := seen[key]; ok {
			return
		}
		if maxVariants > 0 && len(expansion.Expanded) >= maxVariants {
			return
		}
		seen[key] = struct{}{}
		expansion.Expanded = append(expansion.Expanded, candidate)
	}

	add(original)

	terms := tokenize(original)
	for _, term := range terms {
		if provider == nil {
			break
		}
		for _, synonym := range provider.Synonyms(term) {
			add(replaceTerm(original, term, synonym))
			expansion.Synonyms = append(expansion.Synonyms, synonym)
		}
	}

	for _, suffix := range contextualSuffixes {
		add(original + " " + suffix)
	}

	return expansion
}

// replaceTerm swaps one whole-word occurrence of term with replacement,
// case-insensitively.
func replaceTerm(query, term, replacement string) string {
	words := strings.Fields(query)
	for i, w := range words {
		if strings.EqualFold(strings.Trim(w, ".,!?;:"), term) {
			words[i] = replacement
			break
		}
	}
	return strings.Join(words, " ")
}

// tokenize lowercases, strips punctuation, and drops stopwords.
func tokenize(text string) []string {
	var tokens []string
	for _, token := range strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '$' && r != '%'
	}) {
		clean := strings.ToLower(strings.TrimSpace(token))
		if clean == "" {
			continue
		}
		if _, ok := stopwords[clean]; ok {
			continue
		}
		tokens = append(tokens, clean)
	}
	return tokens
}

// containsTerm reports whether text contains the term case-insensitively.
func containsTerm(text, term string) bool {
	return strings.Contains(strings.ToLower(text), strings.ToLower(term))
}
