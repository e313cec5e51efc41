package domain

// ValidationResult is the validator's verdict on one generation attempt.
// Data is nil whenever Success is false.
type ValidationResult struct {
	Success     bool           `json:"success"`
	Data        map[string]any `json:"data,omitempty"`
	Errors      []string       `json:"errors,omitempty"`
	Warnings    []string       `json:"warnings,omitempty"`
	Confidence  float64        `json:"confidence"`
	NeedsReview bool           `json:"needs_review"`
	RetryCount  int            `json:"retry_count"`
}

// FieldVerificationResult records evidence support for one output field
type FieldVerificationResult struct {
	FieldName        string   `json:"field_name"`
	Supported        bool     `json:"supported"`
	Confidence       float64  `json:"confidence"`
	EvidenceQuotes   []string `json:"evidence_quotes,omitempty"`
	SourceReferences []string `json:"source_references,omitempty"`
	Discrepancies    []string `json:"discrepancies,omitempty"`
	IsCritical       bool     `json:"is_critical"`
}

// VerificationStatus classifies how well a field value is grounded
type VerificationStatus string

const (
	StatusVerified          VerificationStatus = "verified"
	StatusUnverified        VerificationStatus = "unverified"
	StatusPartiallyVerified VerificationStatus = "partially_verified"
	StatusConflictingData   VerificationStatus = "conflicting_data"
)

// Evidence is one supporting quote tied to a grounding source
type Evidence struct {
	DirectQuote      string  `json:"direct_quote"`
	SourceID         string  `json:"source_id"`
	ReliabilityScore float64 `json:"reliability_score"`
}

// EvidenceJustification ties one output field to its best evidence
type EvidenceJustification struct {
	FieldName          string             `json:"field_name"`
	Value              any                `json:"value"`
	Evidence           Evidence           `json:"evidence"`
	Confidence         float64            `json:"confidence"`
	VerificationStatus VerificationStatus `json:"verification_status"`
}

// VerificationResult aggregates per-field verification for one request
type VerificationResult struct {
	Fields              []FieldVerificationResult `json:"fields"`
	Justifications      []EvidenceJustification   `json:"justifications"`
	CriticalIssues      []string                  `json:"critical_issues,omitempty"`
	RequiresHumanReview bool                      `json:"requires_human_review"`
	Confidence          float64                   `json:"confidence"`
}

// ConsensusCandidate is one independently generated output under consensus mode.
// CandidateID is the zero-based generation ordinal.
type ConsensusCandidate struct {
	CandidateID      int            `json:"candidate_id"`
	Data             map[string]any `json:"data,omitempty"`
	Confidence       float64        `json:"confidence"`
	ValidationErrors []string       `json:"validation_errors,omitempty"`
	ConsistencyScore float64        `json:"consistency_score"`
}

// ConsensusResult is the consensus engine's selection across candidates
type ConsensusResult struct {
	Candidates          []ConsensusCandidate `json:"candidates"`
	SelectedCandidateID int                  `json:"selected_candidate_id"`
	Confidence          float64              `json:"confidence"`
}
