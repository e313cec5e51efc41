package domain

import "fmt"

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeInternalError   = "INTERNAL_ERROR"
	ErrCodeParse           = "PARSE_ERROR"
	ErrCodeSchemaViolation = "SCHEMA_VIOLATION"
	ErrCodeLowConfidence   = "LOW_CONFIDENCE"
	ErrCodeExternalService = "EXTERNAL_SERVICE_ERROR"
	ErrCodeVerification    = "VERIFICATION_FAILURE"
	ErrCodeAuditWrite      = "AUDIT_WRITE_FAILURE"
)

// Pipeline errors
var (
	ErrMalformedOutput     = NewDomainError(ErrCodeParse, "model output is not valid structured data")
	ErrSchemaViolation     = NewDomainError(ErrCodeSchemaViolation, "model output does not conform to task schema")
	ErrLowConfidence       = NewDomainError(ErrCodeLowConfidence, "output confidence below configured threshold")
	ErrModelUnavailable    = NewDomainError(ErrCodeExternalService, "model gateway unavailable")
	ErrSearchUnavailable   = NewDomainError(ErrCodeExternalService, "search collaborator unavailable")
	ErrCriticalUnsupported = NewDomainError(ErrCodeVerification, "critical field lacks supporting evidence")
)

// Validation errors
var (
	ErrInvalidTaskType      = NewDomainError(ErrCodeValidation, "invalid task type")
	ErrInvalidSourceType    = NewDomainError(ErrCodeValidation, "invalid source type")
	ErrInvalidStateChange   = NewDomainError(ErrCodeValidation, "invalid request state transition")
	ErrEmptyTaskInput       = NewDomainError(ErrCodeValidation, "task input cannot be empty")
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
)

// Not found errors
var (
	ErrAuditEntryNotFound = NewDomainError(ErrCodeNotFound, "audit log entry not found")
	ErrTopicNotFound      = NewDomainError(ErrCodeNotFound, "knowledge topic not found")
)

// IsRetryable reports whether the error is worth retrying within a request.
// Verification and audit failures are terminal for their stage.
func IsRetryable(err error) bool {
	domainErr, ok := err.(*DomainError)
	if !ok {
		return false
	}
	switch domainErr.Code {
	case ErrCodeParse, ErrCodeSchemaViolation, ErrCodeLowConfidence, ErrCodeExternalService:
		return true
	default:
		return false
	}
}
