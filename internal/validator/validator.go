// Package validator parses raw model output into structured data, checks it
// against the task type's schema, scores confidence, and drives the bounded
// retry loop.
package validator

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Z-SIS/sis-ai-helper-sub000/internal/domain"
)

const (
	// unknownMarker is the value the prompt rules require for fields the
	// model cannot ground.
	unknownMarker = "UNKNOWN"

	defaultBaseConfidence = 0.5

	unverifiedPenalty  = 0.3
	baseWeight         = 0.7
	completenessWeight = 0.3
)

// GenerateFunc produces one raw model output attempt.
type GenerateFunc func(ctx context.Context) (string, error)

// Validator validates model output for a task type.
type Validator struct {
	confidenceThreshold float64
	sleep               func(ctx context.Context, d time.Duration) error
}

// New creates a Validator with the given confidence threshold.
func New(confidenceThreshold float64) *Validator {
	return &Validator{
		confidenceThreshold: confidenceThreshold,
		sleep:               sleepCtx,
	}
}

// Attempt is the outcome of one generation+validation attempt, including
// the raw output kept for the audit trail.
type Attempt struct {
	Result    domain.ValidationResult
	RawOutput string
}

// Run executes the bounded retry loop: generate, parse, schema-check, and
// score, retrying with exponential backoff while confidence stays below the
// threshold or the output cannot be parsed. The returned attempt is the
// first satisfying one, or the last attempt once retries are exhausted.
func (v *Validator) Run(ctx context.Context, taskType domain.TaskType, generate GenerateFunc, maxRetries int) (Attempt, error) {
	if maxRetries < 0 {
		maxRetries = 0
	}

	var last Attempt
	var genErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt)) * time.Second
			if err := v.sleep(ctx, backoff); err != nil {
				last.Result.RetryCount = attempt
				return last, domain.NewDomainErrorWithCause(domain.ErrCodeExternalService, "retry cancelled", err)
			}
		}

		raw, err := generate(ctx)
		if err != nil {
			genErr = err
			last = Attempt{
				Result: domain.ValidationResult{
					Errors:      []string{err.Error()},
					NeedsReview: true,
					RetryCount:  attempt,
				},
				RawOutput: raw,
			}
			if ctx.Err() != nil {
				return last, domain.NewDomainErrorWithCause(domain.ErrCodeExternalService, "generation cancelled", ctx.Err())
			}
			continue
		}

		genErr = nil
		result := v.ValidateOnce(taskType, raw)
		result.RetryCount = attempt
		last = Attempt{Result: result, RawOutput: raw}

		// A confident parse ends the loop even when the output flags
		// itself for review; retries are for parse failures and low
		// confidence only.
		if result.Success && result.Confidence >= v.confidenceThreshold {
			return last, nil
		}
	}

	last.Result.RetryCount = maxRetries
	if genErr != nil {
		// The model never produced output to validate; the request is a
		// gateway failure, not a validation verdict.
		return last, domain.NewDomainErrorWithCause(domain.ErrCodeExternalService, "model gateway failed after retries", genErr)
	}
	return last, nil
}

// ValidateOnce parses and scores a single raw output without retrying.
func (v *Validator) ValidateOnce(taskType domain.TaskType, raw string) domain.ValidationResult {
	data, err := parseJSON(raw)
	if err != nil {
		return domain.ValidationResult{
			Success:     false,
			Errors:      []string{err.Error()},
			Confidence:  0,
			NeedsReview: true,
		}
	}

	schema := SchemaFor(taskType)
	if errs := checkSchema(schema, data); len(errs) > 0 {
		return domain.ValidationResult{
			Success:     false,
			Errors:      errs,
			Confidence:  0,
			NeedsReview: true,
		}
	}

	confidence, warnings := v.scoreConfidence(schema, data)
	unverified := unverifiedFields(data)

	needsReview := confidence < v.confidenceThreshold ||
		explicitNeedsReview(data) ||
		len(unverified) > 0

	return domain.ValidationResult{
		Success:     true,
		Data:        data,
		Warnings:    warnings,
		Confidence:  confidence,
		NeedsReview: needsReview,
	}
}

// scoreConfidence blends the model's self-reported confidence, discounted
// by the unverified-field ratio, with a structural completeness ratio.
func (v *Validator) scoreConfidence(schema Schema, data map[string]any) (float64, []string) {
	var warnings []string

	base := defaultBaseConfidence
	if raw, ok := data["confidence"]; ok {
		if value, ok := raw.(float64); ok && value >= 0 && value <= 1 {
			base = value
		} else {
			warnings = append(warnings, "confidence field is not a number in [0,1]")
		}
	} else {
		warnings = append(warnings, "model reported no confidence")
	}

	total := len(schema.Fields)
	if total == 0 {
		return clip01(base), warnings
	}

	nonEmpty := 0
	unknown := 0
	for _, field := range schema.Fields {
		value, present := data[field.Name]
		if !present || value == nil {
			continue
		}
		if s, ok := value.(string); ok {
			if strings.EqualFold(strings.TrimSpace(s), unknownMarker) {
				unknown++
				continue
			}
			if strings.TrimSpace(s) == "" {
				continue
			}
		}
		nonEmpty++
	}

	unverifiedRatio := float64(unknown+len(unverifiedFields(data))) / float64(total)
	if unverifiedRatio > 1 {
		unverifiedRatio = 1
	}

	completeness := float64(nonEmpty) / float64(total)
	confidence := base*(1-unverifiedPenalty*unverifiedRatio)*baseWeight + completeness*completenessWeight

	return clip01(confidence), warnings
}

// unverifiedFields returns the field names the model explicitly flagged as
// unverified.
func unverifiedFields(data map[string]any) []string {
	raw, ok := data["unverified_fields"].([]any)
	if !ok {
		return nil
	}
	var fields []string
	for _, item := range raw {
		if name, ok := item.(string); ok && name != "" {
			fields = append(fields, name)
		}
	}
	sort.Strings(fields)
	return fields
}

func explicitNeedsReview(data map[string]any) bool {
	flag, ok := data["needs_review"].(bool)
	return ok && flag
}

// parseJSON extracts the first JSON object from raw model text, tolerating
// markdown code fences and prose around the object.
func parseJSON(raw string) (map[string]any, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("empty model output")
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object found in model output")
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), &data); err != nil {
		return nil, fmt.Errorf("malformed JSON in model output: %w", err)
	}
	return data, nil
}

// sleepCtx waits for d without blocking other requests, honoring ctx
// cancellation.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
