// Package verifier cross-checks validated output fields against grounding
// evidence and enforces the critical-field review gate.
package verifier

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Z-SIS/sis-ai-helper-sub000/internal/domain"
)

const (
	// DefaultCriticalConfidenceThreshold is the support confidence a
	// critical field must reach to avoid human review.
	DefaultCriticalConfidenceThreshold = 0.8

	strongMatchStrength = 0.85
	weakMatchStrength   = 0.4

	unknownMarker = "UNKNOWN"
)

// Verifier checks output fields against grounding sources.
type Verifier struct {
	criticalThreshold float64
}

// New creates a Verifier with the given critical confidence threshold.
func New(criticalThreshold float64) *Verifier {
	if criticalThreshold <= 0 {
		criticalThreshold = DefaultCriticalConfidenceThreshold
	}
	return &Verifier{criticalThreshold: criticalThreshold}
}

// fieldMatch is the best evidence found for one field across all sources.
type fieldMatch struct {
	strength    float64
	quote       string
	sourceID    string
	reliability float64
	supporting  int
	conflicts   []string
}

// Verify cross-checks every leaf field of data against the grounding
// sources. criticalFields names the task type's critical-field list;
// validatorConfidence below 0 means no validator confidence is available.
func (v *Verifier) Verify(data map[string]any, sources []domain.GroundingSource, criticalFields []string, validatorConfidence float64) domain.VerificationResult {
	result := domain.VerificationResult{}
	critical := make(map[string]bool, len(criticalFields))
	for _, name := range criticalFields {
		critical[name] = true
	}

	fields := leafFields(data)
	var confidenceSum float64

	for _, field := range fields {
		match := bestMatch(field, sources)
		confidence := match.strength * match.reliability
		supported := match.strength >= weakMatchStrength

		fieldResult := domain.FieldVerificationResult{
			FieldName:  field.path,
			Supported:  supported,
			Confidence: confidence,
			IsCritical: critical[field.path] || critical[rootName(field.path)],
		}
		if match.quote != "" {
			fieldResult.EvidenceQuotes = []string{match.quote}
			fieldResult.SourceReferences = []string{match.sourceID}
		}
		fieldResult.Discrepancies = match.conflicts

		result.Fields = append(result.Fields, fieldResult)
		result.Justifications = append(result.Justifications, justification(field, match, confidence))
		confidenceSum += confidence

		if fieldResult.IsCritical && (!supported || confidence < v.criticalThreshold) {
			issue := fmt.Sprintf("critical field %q is not sufficiently supported (confidence %.2f)", field.path, confidence)
			result.CriticalIssues = append(result.CriticalIssues, issue)
			result.RequiresHumanReview = true
		}
	}

	// A critical field the output omits entirely still gates on review;
	// omission must not be cheaper than a failed verification.
	seen := make(map[string]bool, len(fields))
	for _, field := range fields {
		seen[rootName(field.path)] = true
		seen[field.path] = true
	}
	for _, name := range criticalFields {
		if seen[name] {
			continue
		}
		issue := fmt.Sprintf("critical field %q is absent from the output", name)
		result.CriticalIssues = append(result.CriticalIssues, issue)
		result.RequiresHumanReview = true
	}

	if len(fields) > 0 {
		result.Confidence = confidenceSum / float64(len(fields))
	}
	if validatorConfidence >= 0 {
		result.Confidence = (result.Confidence + validatorConfidence) / 2
	}

	return result
}

// justification derives the four-way verification status for one field.
func justification(field leafField, match fieldMatch, confidence float64) domain.EvidenceJustification {
	status := domain.StatusUnverified
	switch {
	case len(match.conflicts) > 0:
		status = domain.StatusConflictingData
	case match.strength >= strongMatchStrength && match.supporting == 1:
		status = domain.StatusVerified
	case match.strength >= weakMatchStrength:
		status = domain.StatusPartiallyVerified
	}

	return domain.EvidenceJustification{
		FieldName: field.path,
		Value:     field.value,
		Evidence: domain.Evidence{
			DirectQuote:      match.quote,
			SourceID:         match.sourceID,
			ReliabilityScore: match.reliability,
		},
		Confidence:         confidence,
		VerificationStatus: status,
	}
}

// bestMatch finds the strongest supporting sentence for a field value
// across all sources, and records contradictions: sources that discuss the
// field's context but carry a different numeric figure.
func bestMatch(field leafField, sources []domain.GroundingSource) fieldMatch {
	text := valueText(field.value)
	if text == "" || strings.EqualFold(text, unknownMarker) {
		return fieldMatch{}
	}

	terms := tokenize(text)
	numbers := numericTokens(terms)
	contextTerms := append(nonNumericTokens(terms), fieldNameTokens(field.path)...)

	var best fieldMatch
	for _, source := range sources {
		strength, quote := matchInSource(text, terms, source.Content)
		if strength >= weakMatchStrength {
			best.supporting++
		}
		if strength > best.strength {
			best.strength = strength
			best.quote = quote
			best.sourceID = source.ID
			best.reliability = source.Reliability
		}

		if conflict := findNumericConflict(contextTerms, numbers, source); conflict != "" {
			best.conflicts = append(best.conflicts, conflict)
		}
	}
	return best
}

// fieldNameTokens splits a dotted field path into lowercase words used as
// conflict-detection context.
func fieldNameTokens(path string) []string {
	return tokenize(strings.Map(func(r rune) rune {
		switch r {
		case '.', '_', '-', '[', ']':
			return ' '
		}
		return r
	}, path))
}

// matchInSource returns the best sentence-level match strength for the
// value inside one source's content.
func matchInSource(text string, terms []string, content string) (float64, string) {
	if content == "" || len(terms) == 0 {
		return 0, ""
	}

	// A full verbatim occurrence is the strongest possible support.
	if strings.Contains(strings.ToLower(content), strings.ToLower(text)) {
		for _, sentence := range splitSentences(content) {
			if strings.Contains(strings.ToLower(sentence), strings.ToLower(text)) {
				return 1.0, sentence
			}
		}
		return 1.0, firstSentence(content)
	}

	var bestStrength float64
	var bestSentence string
	for _, sentence := range splitSentences(content) {
		matched := 0
		for _, term := range terms {
			if strings.Contains(strings.ToLower(sentence), term) {
				matched++
			}
		}
		strength := float64(matched) / float64(len(terms))
		if strength > bestStrength {
			bestStrength = strength
			bestSentence = sentence
		}
	}
	return bestStrength, bestSentence
}

// findNumericConflict reports a contradiction when a source sentence shares
// the field's context but none of its figures matches the output value.
func findNumericConflict(contextTerms []string, numbers []string, source domain.GroundingSource) string {
	if len(numbers) == 0 || len(contextTerms) == 0 {
		return ""
	}

	for _, sentence := range splitSentences(source.Content) {
		lower := strings.ToLower(sentence)

		contextMatched := 0
		for _, term := range contextTerms {
			if strings.Contains(lower, term) {
				contextMatched++
			}
		}
		if float64(contextMatched)/float64(len(contextTerms)) < 0.5 {
			continue
		}

		sentenceNumbers := numericTokens(tokenize(sentence))
		if len(sentenceNumbers) == 0 {
			continue
		}

		for _, have := range numbers {
			if containsToken(sentenceNumbers, have) {
				return ""
			}
		}
		return fmt.Sprintf("source %s states %q where output has %q", source.ID, sentenceNumbers[0], numbers[0])
	}
	return ""
}

func containsToken(tokens []string, want string) bool {
	for _, token := range tokens {
		if token == want {
			return true
		}
	}
	return false
}

// leafField is one scalar output field with its dotted path.
type leafField struct {
	path  string
	value any
}

// controlFields carry validator metadata, not task output.
var controlFields = map[string]struct{}{
	"confidence":        {},
	"needs_review":      {},
	"unverified_fields": {},
	"sources":           {},
}

// leafFields walks the data map depth-first, flattening nested objects into
// dotted paths and arrays into indexed paths, in sorted key order.
func leafFields(data map[string]any) []leafField {
	var fields []leafField
	keys := make([]string, 0, len(data))
	for key := range data {
		if _, ok := controlFields[key]; ok {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		fields = append(fields, walkValue(key, data[key])...)
	}
	return fields
}

func walkValue(path string, value any) []leafField {
	switch typed := value.(type) {
	case map[string]any:
		var fields []leafField
		keys := make([]string, 0, len(typed))
		for key := range typed {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fields = append(fields, walkValue(path+"."+key, typed[key])...)
		}
		return fields
	case []any:
		var fields []leafField
		for i, item := range typed {
			fields = append(fields, walkValue(fmt.Sprintf("%s[%d]", path, i), item)...)
		}
		return fields
	default:
		return []leafField{{path: path, value: value}}
	}
}

func rootName(path string) string {
	if idx := strings.IndexAny(path, ".["); idx >= 0 {
		return path[:idx]
	}
	return path
}

func valueText(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(typed)
	case float64:
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.4f", typed), "0"), ".")
	default:
		return fmt.Sprintf("%v", typed)
	}
}

func tokenize(text string) []string {
	var tokens []string
	for _, token := range strings.Fields(strings.ToLower(text)) {
		clean := strings.Trim(token, ".,!?;:()\"'")
		if clean != "" {
			tokens = append(tokens, clean)
		}
	}
	return tokens
}

func numericTokens(tokens []string) []string {
	var numbers []string
	for _, token := range tokens {
		if strings.ContainsAny(token, "0123456789") {
			numbers = append(numbers, token)
		}
	}
	return numbers
}

func nonNumericTokens(tokens []string) []string {
	var out []string
	for _, token := range tokens {
		if !strings.ContainsAny(token, "0123456789") {
			out = append(out, token)
		}
	}
	return out
}

func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder
	for _, r := range text {
		current.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			if sentence := strings.TrimSpace(current.String()); sentence != "" {
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

func firstSentence(text string) string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return ""
	}
	return sentences[0]
}
