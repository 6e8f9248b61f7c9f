package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// Error codes
// ==========================

type ErrorCode string

const (
	// ValidationError: malformed input, rejected without mutating state.
	ErrCodeValidationFailed     ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidAnswer        ErrorCode = "INVALID_ANSWER"
	ErrCodeKnowledgeBaseInvalid ErrorCode = "KNOWLEDGE_BASE_INVALID"

	// ProcessingError: a component failed mid-turn.
	ErrCodeProcessingFailed  ErrorCode = "PROCESSING_FAILED"
	ErrCodeExtractionFailed  ErrorCode = "EXTRACTION_FAILED"
	ErrCodeReasoningFailed   ErrorCode = "REASONING_FAILED"
	ErrCodeFlowDecisionError ErrorCode = "FLOW_DECISION_FAILED"

	// ServiceUnavailable: a dependency could not be reached.
	ErrCodeServiceUnavailable       ErrorCode = "SERVICE_UNAVAILABLE"
	ErrCodeCacheUnavailable         ErrorCode = "CACHE_UNAVAILABLE"
	ErrCodeKnowledgeBaseUnavailable ErrorCode = "KNOWLEDGE_BASE_UNAVAILABLE"
	ErrCodeArchiveUnavailable       ErrorCode = "ARCHIVE_UNAVAILABLE"

	// ResourceNotFound.
	ErrCodeSessionNotFound  ErrorCode = "SESSION_NOT_FOUND"
	ErrCodeQuestionNotFound ErrorCode = "QUESTION_NOT_FOUND"
	ErrCodeEntityNotFound   ErrorCode = "ENTITY_NOT_FOUND"

	// Conflicts on the per-session single writer.
	ErrCodeSessionBusy   ErrorCode = "SESSION_BUSY"
	ErrCodeSessionClosed ErrorCode = "SESSION_CLOSED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

const (
	CategoryValidation  = "VALIDATION"
	CategoryProcessing  = "PROCESSING"
	CategoryUnavailable = "UNAVAILABLE"
	CategoryNotFound    = "NOT_FOUND"
	CategoryConflict    = "CONFLICT"
	CategoryOther       = "OTHER"
)

type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata attaches a key to the error and returns it for chaining.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

func errDetails(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// ==========================
// Validation
// ==========================

func NewValidationError(details string) *StandardError {
	return newError(ErrCodeValidationFailed, "Input validation failed", details, false, nil)
}

func NewInvalidAnswerError(questionID, details string) *StandardError {
	return newError(ErrCodeInvalidAnswer, "Answer rejected", fmt.Sprintf("questionId: %s, %s", questionID, details), false, nil)
}

func NewKnowledgeBaseInvalidError(details string) *StandardError {
	return newError(ErrCodeKnowledgeBaseInvalid, "Knowledge base document is invalid", details, false, nil)
}

// ==========================
// Processing
// ==========================

func NewProcessingError(component string, err error) *StandardError {
	return newError(ErrCodeProcessingFailed, fmt.Sprintf("Component '%s' failed", component), errDetails(err), false, err)
}

func NewExtractionFailedError(analyzer string, err error) *StandardError {
	return newError(ErrCodeExtractionFailed, fmt.Sprintf("Extractor '%s' failed", analyzer), errDetails(err), true, err)
}

func NewReasoningFailedError(candidate string, err error) *StandardError {
	return newError(ErrCodeReasoningFailed, "Diagnostic reasoning failed", fmt.Sprintf("candidate: %s, error: %s", candidate, errDetails(err)), false, err)
}

func NewFlowDecisionError(stage string, err error) *StandardError {
	return newError(ErrCodeFlowDecisionError, "Flow decision failed", fmt.Sprintf("stage: %s, error: %s", stage, errDetails(err)), false, err)
}

// ==========================
// Unavailable dependencies
// ==========================

func NewServiceUnavailableError(service string, err error) *StandardError {
	return newError(ErrCodeServiceUnavailable, fmt.Sprintf("Service '%s' unavailable", service), errDetails(err), true, err)
}

func NewCacheUnavailableError(err error) *StandardError {
	return newError(ErrCodeCacheUnavailable, "Cache unavailable", errDetails(err), true, err)
}

func NewKnowledgeBaseUnavailableError(err error) *StandardError {
	return newError(ErrCodeKnowledgeBaseUnavailable, "Knowledge base unavailable", errDetails(err), true, err)
}

func NewArchiveUnavailableError(err error) *StandardError {
	return newError(ErrCodeArchiveUnavailable, "Session archive unavailable", errDetails(err), true, err)
}

// ==========================
// Not found
// ==========================

func NewResourceNotFoundError(resource, details string) *StandardError {
	code := ErrCodeEntityNotFound
	switch resource {
	case "session":
		code = ErrCodeSessionNotFound
	case "question":
		code = ErrCodeQuestionNotFound
	}
	return newError(code, fmt.Sprintf("Resource '%s' not found", resource), details, false, nil)
}

func NewSessionNotFoundError(sessionID string) *StandardError {
	return NewResourceNotFoundError("session", fmt.Sprintf("sessionId: %s", sessionID))
}

func NewQuestionNotFoundError(questionID string) *StandardError {
	return NewResourceNotFoundError("question", fmt.Sprintf("questionId: %s", questionID))
}

func NewEntityNotFoundError(entityID string) *StandardError {
	return NewResourceNotFoundError("entity", fmt.Sprintf("entityId: %s", entityID))
}

// ==========================
// Conflicts
// ==========================

func NewSessionBusyError(sessionID string) *StandardError {
	return newError(ErrCodeSessionBusy, "Another turn is in flight for this session", fmt.Sprintf("sessionId: %s", sessionID), true, nil)
}

func NewSessionClosedError(sessionID string) *StandardError {
	return newError(ErrCodeSessionClosed, "Session has already concluded", fmt.Sprintf("sessionId: %s", sessionID), false, nil)
}

// ==========================
// Helpers
// ==========================

// As extracts the first StandardError in err's chain.
func As(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

func HasCode(err error, code ErrorCode) bool {
	stdErr, ok := As(err)
	return ok && stdErr.Code == code
}

func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeCacheUnavailable,
		ErrCodeKnowledgeBaseUnavailable,
		ErrCodeArchiveUnavailable,
		ErrCodeServiceUnavailable:
		return 3
	case ErrCodeExtractionFailed, ErrCodeSessionBusy:
		return 1
	default:
		return 0
	}
}

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "INVALID"):
		return CategoryValidation
	case strings.Contains(codeStr, "NOT_FOUND"):
		return CategoryNotFound
	case strings.Contains(codeStr, "UNAVAILABLE"):
		return CategoryUnavailable
	case strings.Contains(codeStr, "BUSY") || strings.Contains(codeStr, "CLOSED"):
		return CategoryConflict
	case strings.Contains(codeStr, "FAILED"):
		return CategoryProcessing
	default:
		return CategoryOther
	}
}
