package domain

// TaskType represents the category of a generation task
type TaskType string

const (
	TaskTypeExtraction  TaskType = "extraction"
	TaskTypeAnalysis    TaskType = "analysis"
	TaskTypeComposition TaskType = "composition"
	TaskTypeDefault     TaskType = "default"
)

// AllTaskTypes lists every task type in declaration order.
func AllTaskTypes() []TaskType {
	return []TaskType{TaskTypeExtraction, TaskTypeAnalysis, TaskTypeComposition, TaskTypeDefault}
}

// ValidateTaskType checks if a TaskType is valid
func ValidateTaskType(t TaskType) error {
	switch t {
	case TaskTypeExtraction, TaskTypeAnalysis, TaskTypeComposition, TaskTypeDefault:
		return nil
	}
	return ErrInvalidTaskType
}

// NormalizeTaskType maps an unknown or empty task type to TaskTypeDefault
func NormalizeTaskType(t TaskType) TaskType {
	if ValidateTaskType(t) != nil {
		return TaskTypeDefault
	}
	return t
}

// RequestState represents the position of a request in the pipeline
type RequestState string

const (
	StatePending     RequestState = "pending"
	StateGrounding   RequestState = "grounding"
	StateGenerating  RequestState = "generating"
	StateValidating  RequestState = "validating"
	StateRetrying    RequestState = "retrying"
	StateVerifying   RequestState = "verifying"
	StateConsensus   RequestState = "consensus"
	StateCompleted   RequestState = "completed"
	StateFailed      RequestState = "failed"
	StateNeedsReview RequestState = "needs_review"
)

// stateTransitions is the legal transition table for the request state machine.
// Failed is reachable from every non-terminal state (external errors,
// cancellation); NeedsReview only after validation or verification has run.
var stateTransitions = map[RequestState][]RequestState{
	StatePending:    {StateGrounding, StateFailed},
	StateGrounding:  {StateGenerating, StateFailed},
	StateGenerating: {StateValidating, StateFailed},
	StateValidating: {StateRetrying, StateVerifying, StateNeedsReview, StateFailed},
	StateRetrying:   {StateValidating, StateGenerating, StateFailed},
	StateVerifying:  {StateConsensus, StateCompleted, StateNeedsReview, StateFailed},
	StateConsensus:  {StateCompleted, StateNeedsReview, StateFailed},
}

// CanTransition reports whether moving from one request state to another is legal.
func CanTransition(from, to RequestState) bool {
	for _, next := range stateTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a request state is terminal.
func (s RequestState) IsTerminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateNeedsReview:
		return true
	}
	return false
}
