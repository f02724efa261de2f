package domain

import "errors"

// Common domain errors
var (
	// Registry errors
	ErrToolNotFound  = errors.New("tool not found")
	ErrDuplicateTool = errors.New("tool already registered")
	ErrInvalidSchema = errors.New("invalid tool argument schema")

	// Planning errors
	ErrPlanningFailure = errors.New("planning failed")
	ErrUnknownTool     = errors.New("planned tool is not registered")
	ErrGrammarViolated = errors.New("planner output violates grammar")

	// Wall errors
	ErrSchemaViolation = errors.New("arguments violate tool schema")
	ErrPolicyViolation = errors.New("policy violation")
	ErrLintViolation   = errors.New("static analysis violation")
	ErrRateLimited     = errors.New("rate limit exceeded")
	ErrAuditFailure    = errors.New("audit log write failed")

	// Execution errors
	ErrCapabilityDenied   = errors.New("capability not granted")
	ErrExecutionTimeout   = errors.New("tool execution timed out")
	ErrToolInternal       = errors.New("tool internal error")
	ErrOutputTooLarge     = errors.New("tool output exceeds cap")
	ErrScratchUnavailable = errors.New("scratch directory unavailable")

	// Verification errors
	ErrPostConditionFailed = errors.New("post-condition failed")
	ErrCoverageBelowBlock  = errors.New("claim coverage below block threshold")
	ErrVerifierUnavailable = errors.New("verifier unavailable")
	ErrCitationNotFound    = errors.New("citation not found")
	ErrCitationCorrupt     = errors.New("citation content hash mismatch")

	// Memory errors
	ErrMemoryNotFound     = errors.New("memory record not found")
	ErrEmbeddingsFailed   = errors.New("failed to generate embeddings")
	ErrMemorySearchFailed = errors.New("memory search failed")

	// Infrastructure errors
	ErrBackendUnavailable = errors.New("memory backend unavailable")
	ErrLLMUnavailable     = errors.New("LLM service unavailable")
	ErrLLMRequestFailed   = errors.New("LLM request failed")

	// Validation errors
	ErrInvalidID    = errors.New("invalid ID format")
	ErrEmptyContent = errors.New("content cannot be empty")
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("resource not found")
)

// DomainError wraps a domain error with additional context
type DomainError struct {
	Err     error
	Message string
	Code    string
}

func (e *DomainError) Error() string {
	if e.Message != "" {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Err.Error()
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func NewDomainError(err error, message string) *DomainError {
	return &DomainError{
		Err:     err,
		Message: message,
	}
}

func NewDomainErrorWithCode(err error, message, code string) *DomainError {
	return &DomainError{
		Err:     err,
		Message: message,
		Code:    code,
	}
}
