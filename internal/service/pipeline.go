package service

import (
	"context"
	"time"

	"github.com/Z-SIS/sis-ai-helper-sub000/internal/config"
	"github.com/Z-SIS/sis-ai-helper-sub000/internal/consensus"
	"github.com/Z-SIS/sis-ai-helper-sub000/internal/domain"
	"github.com/Z-SIS/sis-ai-helper-sub000/internal/openai"
	"github.com/Z-SIS/sis-ai-helper-sub000/internal/retrieval"
	"github.com/Z-SIS/sis-ai-helper-sub000/internal/telemetry"
	"github.com/Z-SIS/sis-ai-helper-sub000/internal/validator"
	"github.com/google/uuid"
)

// TaskRequest is one generation request entering the pipeline.
type TaskRequest struct {
	TaskType            domain.TaskType `json:"task_type"`
	Input               string          `json:"input"`
	Query               string          `json:"query,omitempty"`
	Context             string          `json:"context,omitempty"`
	UserID              string          `json:"user_id,omitempty"`
	PreferredCategories []string        `json:"preferred_categories,omitempty"`
}

// TaskResponse is the pipeline's final answer for one request.
type TaskResponse struct {
	RequestID    string                    `json:"request_id"`
	State        domain.RequestState       `json:"state"`
	Data         map[string]any            `json:"data,omitempty"`
	Confidence   float64                   `json:"confidence"`
	NeedsReview  bool                      `json:"needs_review"`
	Validation   domain.ValidationResult   `json:"validation"`
	Verification domain.VerificationResult `json:"verification"`
	Consensus    *domain.ConsensusResult   `json:"consensus,omitempty"`
	Grounding    domain.GroundingResult    `json:"grounding"`
	AuditEntryID string                    `json:"audit_entry_id,omitempty"`
}

// RetrieverInterface is the grounding stage dependency.
type RetrieverInterface interface {
	Retrieve(ctx context.Context, query, contextText string, opts retrieval.Options) (domain.GroundingResult, error)
}

// AssemblerInterface merges grounding with the task template.
type AssemblerInterface interface {
	Assemble(taskType domain.TaskType, taskInput string, grounding *domain.GroundingResult) string
}

// GatewayInterface is the model gateway contract.
type GatewayInterface interface {
	Generate(ctx context.Context, prompt string, cfg openai.GenerationConfig) (string, error)
}

// ValidatorInterface runs the bounded generate-validate retry loop.
type ValidatorInterface interface {
	Run(ctx context.Context, taskType domain.TaskType, generate validator.GenerateFunc, maxRetries int) (validator.Attempt, error)
}

// VerifierInterface cross-checks output fields against grounding evidence.
type VerifierInterface interface {
	Verify(data map[string]any, sources []domain.GroundingSource, criticalFields []string, validatorConfidence float64) domain.VerificationResult
}

// AuditInterface records one immutable entry per request.
type AuditInterface interface {
	Record(ctx context.Context, entry domain.AuditLogEntry, input, output string) domain.AuditLogEntry
}

// PipelineConfig carries the request-independent pipeline settings.
type PipelineConfig struct {
	MaxSources          int
	MinRelevance        float64
	ConsensusCandidates int
}

// PipelineService drives a request through grounding, generation,
// validation, verification, optional consensus, and audit logging.
type PipelineService struct {
	retriever RetrieverInterface
	assembler AssemblerInterface
	gateway   GatewayInterface
	verifier  VerifierInterface
	audit     AuditInterface
	cfg       PipelineConfig

	newValidator func(threshold float64) ValidatorInterface
	now          func() time.Time
}

func NewPipelineService(
	retriever RetrieverInterface,
	assembler AssemblerInterface,
	gateway GatewayInterface,
	verifier VerifierInterface,
	audit AuditInterface,
	cfg PipelineConfig,
) *PipelineService {
	return &PipelineService{
		retriever: retriever,
		assembler: assembler,
		gateway:   gateway,
		verifier:  verifier,
		audit:     audit,
		cfg:       cfg,
		newValidator: func(threshold float64) ValidatorInterface {
			return validator.New(threshold)
		},
		now: time.Now,
	}
}

// execution tracks one request's state and timings across stages.
type execution struct {
	requestID string
	state     domain.RequestState
	timings   []domain.StageTiming
	now       func() time.Time
}

func (e *execution) advance(next domain.RequestState) {
	if domain.CanTransition(e.state, next) {
		e.state = next
	}
}

func (e *execution) timed(stage domain.RequestState, fn func() error) error {
	e.advance(stage)
	start := e.now()
	err := fn()
	e.timings = append(e.timings, domain.StageTiming{
		Stage:      stage,
		DurationMS: e.now().Sub(start).Milliseconds(),
	})
	return err
}

// Execute runs the full pipeline for one request. The returned response is
// non-nil whenever the pipeline produced a result, including results that
// failed validation or need human review; the error is non-nil only when
// no usable result exists.
func (s *PipelineService) Execute(ctx context.Context, req TaskRequest) (*TaskResponse, error) {
	taskType := domain.NormalizeTaskType(req.TaskType)
	taskCfg := config.TaskConfigFor(taskType)

	exec := &execution{
		requestID: uuid.New().String(),
		state:     domain.StatePending,
		now:       s.now,
	}
	started := s.now()

	ctx, span := telemetry.StartSpan(ctx, "pipeline.execute", telemetry.SpanAttributes{
		RequestID: exec.requestID,
		TaskType:  string(taskType),
		Operation: "execute",
	})
	defer span.End()

	query := req.Query
	if query == "" {
		query = req.Input
	}

	// Grounding
	var grounding domain.GroundingResult
	err := exec.timed(domain.StateGrounding, func() error {
		var retrieveErr error
		grounding, retrieveErr = s.retriever.Retrieve(ctx, query, req.Context, retrieval.Options{
			MaxSources:          s.cfg.MaxSources,
			MinRelevance:        s.cfg.MinRelevance,
			PreferredCategories: req.PreferredCategories,
		})
		return retrieveErr
	})
	if err != nil {
		span.SetError(err)
		s.recordFailure(ctx, exec, req, taskType, grounding, validator.Attempt{}, started, err)
		return nil, err
	}

	prompt := s.assembler.Assemble(taskType, req.Input, &grounding)
	genCfg := openai.GenerationConfig{
		Temperature:     taskCfg.Temperature,
		TopP:            taskCfg.TopP,
		MaxOutputTokens: taskCfg.MaxOutputTokens,
		CandidateCount:  1,
	}
	generate := func(genCtx context.Context) (string, error) {
		return s.gateway.Generate(genCtx, prompt, genCfg)
	}

	if s.cfg.ConsensusCandidates > 1 {
		return s.executeConsensus(ctx, exec, req, taskType, taskCfg, grounding, prompt, generate, started, span)
	}

	// Generation + validation retry loop
	exec.advance(domain.StateGenerating)
	var attempt validator.Attempt
	err = exec.timed(domain.StateValidating, func() error {
		var runErr error
		attempt, runErr = s.newValidator(taskCfg.ConfidenceThreshold).Run(ctx, taskType, generate, taskCfg.MaxRetries)
		return runErr
	})
	if err != nil {
		span.SetError(err)
		s.recordFailure(ctx, exec, req, taskType, grounding, attempt, started, err)
		return nil, err
	}

	if !attempt.Result.Success {
		// Retries exhausted on output the validator could not repair.
		entry := s.recordFailure(ctx, exec, req, taskType, grounding, attempt, started,
			domain.NewDomainError(domain.ErrCodeParse, "output failed validation after retries"))
		return &TaskResponse{
			RequestID:    exec.requestID,
			State:        domain.StateFailed,
			Confidence:   0,
			NeedsReview:  true,
			Validation:   attempt.Result,
			Grounding:    grounding,
			AuditEntryID: entry.ID,
		}, nil
	}

	// Verification
	var verification domain.VerificationResult
	_ = exec.timed(domain.StateVerifying, func() error {
		verification = s.verifier.Verify(attempt.Result.Data, grounding.Sources, taskCfg.CriticalFields, attempt.Result.Confidence)
		return nil
	})

	return s.finish(ctx, exec, req, taskType, grounding, attempt, verification, nil, started, prompt)
}

// executeConsensus generates N independent candidates, each through its own
// validation and verification pass, and selects by mutual agreement.
func (s *PipelineService) executeConsensus(
	ctx context.Context,
	exec *execution,
	req TaskRequest,
	taskType domain.TaskType,
	taskCfg config.TaskConfig,
	grounding domain.GroundingResult,
	prompt string,
	generate validator.GenerateFunc,
	started time.Time,
	span *telemetry.Span,
) (*TaskResponse, error) {
	exec.advance(domain.StateGenerating)
	exec.advance(domain.StateValidating)
	exec.advance(domain.StateVerifying)

	attempts := make(map[int]validator.Attempt)
	verifications := make(map[int]domain.VerificationResult)

	engine := consensus.NewEngine(s.cfg.ConsensusCandidates)
	var result *domain.ConsensusResult
	err := exec.timed(domain.StateConsensus, func() error {
		var runErr error
		result, runErr = engine.Run(ctx, func(candCtx context.Context, candidateID int) (domain.ConsensusCandidate, error) {
			attempt, err := s.newValidator(taskCfg.ConfidenceThreshold).Run(candCtx, taskType, generate, taskCfg.MaxRetries)
			if err != nil {
				return domain.ConsensusCandidate{}, err
			}
			attempts[candidateID] = attempt
			if !attempt.Result.Success {
				return domain.ConsensusCandidate{
					ValidationErrors: attempt.Result.Errors,
				}, nil
			}
			verification := s.verifier.Verify(attempt.Result.Data, grounding.Sources, taskCfg.CriticalFields, attempt.Result.Confidence)
			verifications[candidateID] = verification
			return domain.ConsensusCandidate{
				Data:             attempt.Result.Data,
				Confidence:       verification.Confidence,
				ValidationErrors: attempt.Result.Errors,
			}, nil
		})
		return runErr
	})
	if err != nil {
		span.SetError(err)
		s.recordFailure(ctx, exec, req, taskType, grounding, validator.Attempt{}, started, err)
		return nil, err
	}

	selected := result.SelectedCandidateID
	attempt, ok := attempts[selected]
	if !ok || !attempt.Result.Success {
		entry := s.recordFailure(ctx, exec, req, taskType, grounding, attempt, started,
			domain.NewDomainError(domain.ErrCodeParse, "no consensus candidate passed validation"))
		return &TaskResponse{
			RequestID:    exec.requestID,
			State:        domain.StateFailed,
			NeedsReview:  true,
			Validation:   attempt.Result,
			Consensus:    result,
			Grounding:    grounding,
			AuditEntryID: entry.ID,
		}, nil
	}

	verification := verifications[selected]
	response, respErr := s.finish(ctx, exec, req, taskType, grounding, attempt, verification, result, started, prompt)
	if response != nil {
		// Consensus agreement overrides the single-candidate blend.
		response.Confidence = result.Confidence
		response.Consensus = result
	}
	return response, respErr
}

// finish decides the terminal state, records the audit entry, and builds
// the response.
func (s *PipelineService) finish(
	ctx context.Context,
	exec *execution,
	req TaskRequest,
	taskType domain.TaskType,
	grounding domain.GroundingResult,
	attempt validator.Attempt,
	verification domain.VerificationResult,
	consensusResult *domain.ConsensusResult,
	started time.Time,
	prompt string,
) (*TaskResponse, error) {
	needsReview := attempt.Result.NeedsReview || verification.RequiresHumanReview

	final := domain.StateCompleted
	if needsReview {
		final = domain.StateNeedsReview
	}
	exec.advance(final)

	confidence := verification.Confidence

	entry := domain.AuditLogEntry{
		RequestID:       exec.requestID,
		UserID:          req.UserID,
		TaskType:        taskType,
		State:           final,
		Prompt:          prompt,
		RawOutput:       attempt.RawOutput,
		StageTimings:    exec.timings,
		SourcesUsed:     sourceIDs(grounding.Sources),
		SourceCount:     len(grounding.Sources),
		RetrievalMethod: grounding.RetrievalMethod,
		RetryCount:      attempt.Result.RetryCount,
		VerifiedFields:  supportedFieldCount(verification),
		TotalFields:     len(verification.Fields),
		Confidence:      confidence,
		DurationMS:      s.now().Sub(started).Milliseconds(),
		Compliance: domain.Compliance{
			RequiresHumanReview:        needsReview,
			AntiHallucinationCompliant: len(verification.CriticalIssues) == 0 && attempt.Result.Success,
			CriticalIssues:             verification.CriticalIssues,
		},
	}
	stored := s.audit.Record(ctx, entry, req.Input, attempt.RawOutput)

	return &TaskResponse{
		RequestID:    exec.requestID,
		State:        final,
		Data:         attempt.Result.Data,
		Confidence:   confidence,
		NeedsReview:  needsReview,
		Validation:   attempt.Result,
		Verification: verification,
		Consensus:    consensusResult,
		Grounding:    grounding,
		AuditEntryID: stored.ID,
	}, nil
}

// recordFailure writes the audit entry for a request that terminated
// without a usable result. Cancelled requests are logged as failed, never
// as completed.
func (s *PipelineService) recordFailure(
	ctx context.Context,
	exec *execution,
	req TaskRequest,
	taskType domain.TaskType,
	grounding domain.GroundingResult,
	attempt validator.Attempt,
	started time.Time,
	cause error,
) domain.AuditLogEntry {
	exec.advance(domain.StateFailed)

	entry := domain.AuditLogEntry{
		RequestID:       exec.requestID,
		UserID:          req.UserID,
		TaskType:        taskType,
		State:           domain.StateFailed,
		RawOutput:       attempt.RawOutput,
		StageTimings:    exec.timings,
		SourcesUsed:     sourceIDs(grounding.Sources),
		SourceCount:     len(grounding.Sources),
		RetrievalMethod: grounding.RetrievalMethod,
		RetryCount:      attempt.Result.RetryCount,
		DurationMS:      s.now().Sub(started).Milliseconds(),
		Compliance: domain.Compliance{
			RequiresHumanReview: true,
		},
		Error: cause.Error(),
	}
	return s.audit.Record(ctx, entry, req.Input, attempt.RawOutput)
}

func sourceIDs(sources []domain.GroundingSource) []string {
	ids := make([]string, 0, len(sources))
	for _, source := range sources {
		ids = append(ids, source.ID)
	}
	return ids
}

func supportedFieldCount(verification domain.VerificationResult) int {
	count := 0
	for _, field := range verification.Fields {
		if field.Supported {
			count++
		}
	}
	return count
}
