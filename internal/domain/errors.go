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
	return &DomainError{Code: code, Message: message}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{Code: code, Message: message, Err: err}
}

// Common domain error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeAlreadyExists    = "ALREADY_EXISTS"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
	ErrCodeUnavailable      = "UNAVAILABLE"
)

// Validation errors: raised immediately and synchronously, never retried.
var (
	ErrInvalidKnowledgeType = NewDomainError(ErrCodeValidation, "invalid knowledge type")
	ErrDimensionMismatch    = NewDomainError(ErrCodeValidation, "embedding dimension mismatch")
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
	ErrMalformedID          = NewDomainError(ErrCodeValidation, "malformed identifier")
	ErrChildOfChild         = NewDomainError(ErrCodeValidation, "a child entry cannot have children")
)

// Not found errors
var (
	ErrEntryNotFound = NewDomainError(ErrCodeNotFound, "knowledge entry not found")
	ErrJobNotFound   = NewDomainError(ErrCodeNotFound, "embedding job not found")
)

// Degraded-capability errors: always absorbed by callers; the system
// continues in reduced-fidelity mode.
var (
	ErrEmbeddingUnavailable = NewDomainError(ErrCodeUnavailable, "no embedding tier available")
	ErrScorerUnavailable    = NewDomainError(ErrCodeUnavailable, "relevance scorer unavailable")
	ErrExtractorUnavailable = NewDomainError(ErrCodeUnavailable, "no extractor could read the document")
)

// Operation errors
var (
	ErrUnsupportedFormat = NewDomainError(ErrCodeInvalidOperation, "unsupported document format")
)
