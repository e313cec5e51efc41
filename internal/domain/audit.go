package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// StageTiming records the wall-clock duration of one pipeline stage
type StageTiming struct {
	Stage      RequestState `json:"stage"`
	DurationMS int64        `json:"duration_ms"`
}

// Compliance is the audit entry's compliance block
type Compliance struct {
	RequiresHumanReview        bool     `json:"requires_human_review"`
	AntiHallucinationCompliant bool     `json:"anti_hallucination_compliant"`
	CriticalIssues             []string `json:"critical_issues,omitempty"`
}

// AuditLogEntry is the immutable record of one pipeline execution.
// Entries are created once per request attempt and never mutated.
type AuditLogEntry struct {
	ID              string          `json:"id"`
	RequestID       string          `json:"request_id"`
	UserID          string          `json:"user_id,omitempty"`
	TaskType        TaskType        `json:"task_type"`
	State           RequestState    `json:"state"`
	CreatedAt       time.Time       `json:"created_at"`
	InputHash       string          `json:"input_hash"`
	OutputHash      string          `json:"output_hash,omitempty"`
	Prompt          string          `json:"prompt,omitempty"`
	RawOutput       string          `json:"raw_output,omitempty"`
	StageTimings    []StageTiming   `json:"stage_timings,omitempty"`
	SourcesUsed     []string        `json:"sources_used,omitempty"`
	SourceCount     int             `json:"source_count"`
	RetrievalMethod RetrievalMethod `json:"retrieval_method,omitempty"`
	RetryCount      int             `json:"retry_count"`
	VerifiedFields  int             `json:"verified_fields"`
	TotalFields     int             `json:"total_fields"`
	Confidence      float64         `json:"confidence"`
	DurationMS      int64           `json:"duration_ms"`
	Compliance      Compliance      `json:"compliance"`
	Error           string          `json:"error,omitempty"`
}

// ContentHash returns the hex sha256 of the given content, used for
// audit integrity and dedup checks.
func ContentHash(content string) string {
	if content == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Succeeded reports whether the entry records a completed request.
func (e *AuditLogEntry) Succeeded() bool {
	return e.State == StateCompleted
}
