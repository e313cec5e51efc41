package consensus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Z-SIS/sis-ai-helper-sub000/internal/domain"
)

// CandidateFunc produces one independently generated, validated, and verified
// candidate. The engine assigns CandidateID and ConsistencyScore itself.
type CandidateFunc func(ctx context.Context, candidateID int) (domain.ConsensusCandidate, error)

// Engine runs generation N times against the same prompt and selects the
// candidate that best agrees with its peers.
type Engine struct {
	candidates int
}

func NewEngine(candidates int) *Engine {
	if candidates < 1 {
		candidates = 1
	}
	return &Engine{candidates: candidates}
}

func (e *Engine) CandidateCount() int {
	return e.candidates
}

// Run generates the configured number of candidates sequentially and scores
// each one's consistency: the fraction of its fields whose serialized value
// matches the same field in every previously generated candidate (1.0 for
// the first). The selected candidate maximizes confidence×consistency, ties
// going to the earliest generation. Final confidence is the consistency-
// weighted average of candidate confidences.
func (e *Engine) Run(ctx context.Context, generate CandidateFunc) (*domain.ConsensusResult, error) {
	result := &domain.ConsensusResult{}
	var priors []map[string]string

	for i := 0; i < e.candidates; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		candidate, err := generate(ctx, i)
		if err != nil {
			return nil, fmt.Errorf("consensus candidate %d: %w", i, err)
		}
		candidate.CandidateID = i

		fields := flattenData(candidate.Data)
		candidate.ConsistencyScore = consistency(fields, priors)
		priors = append(priors, fields)

		result.Candidates = append(result.Candidates, candidate)
	}

	var weightedSum, consistencySum, bestScore float64
	selected := 0
	for i, candidate := range result.Candidates {
		score := candidate.Confidence * candidate.ConsistencyScore
		weightedSum += score
		consistencySum += candidate.ConsistencyScore
		if score > bestScore {
			bestScore = score
			selected = i
		}
	}

	result.SelectedCandidateID = result.Candidates[selected].CandidateID
	if consistencySum > 0 {
		result.Confidence = weightedSum / consistencySum
	}
	return result, nil
}

// consistency is the fraction of fields that hold the same serialized value
// in every prior candidate. The first candidate has nothing to disagree with.
func consistency(fields map[string]string, priors []map[string]string) float64 {
	if len(priors) == 0 {
		return 1.0
	}
	if len(fields) == 0 {
		return 0
	}

	matched := 0
	for path, value := range fields {
		agrees := true
		for _, prior := range priors {
			if prior[path] != value {
				agrees = false
				break
			}
		}
		if agrees {
			matched++
		}
	}
	return float64(matched) / float64(len(fields))
}

// consistencyControlFields are validator metadata, excluded from agreement
// scoring because they legitimately vary between candidates.
var consistencyControlFields = map[string]struct{}{
	"confidence":        {},
	"needs_review":      {},
	"unverified_fields": {},
	"sources":           {},
}

// flattenData maps every leaf of the candidate output to its dotted path
// with a canonical JSON serialization of the value.
func flattenData(data map[string]any) map[string]string {
	fields := make(map[string]string)
	for key, value := range data {
		if _, ok := consistencyControlFields[key]; ok {
			continue
		}
		flattenValue(key, value, fields)
	}
	return fields
}

func flattenValue(path string, value any, out map[string]string) {
	switch typed := value.(type) {
	case map[string]any:
		for key, item := range typed {
			flattenValue(path+"."+key, item, out)
		}
	case []any:
		for i, item := range typed {
			flattenValue(fmt.Sprintf("%s[%d]", path, i), item, out)
		}
	default:
		serialized, err := json.Marshal(value)
		if err != nil {
			serialized = []byte(fmt.Sprintf("%v", value))
		}
		out[path] = string(serialized)
	}
}
