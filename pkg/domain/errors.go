package domain

import (
	"errors"
	"fmt"
)

// Common domain errors
var (
	ErrInvalidTag          = errors.New("invalid neurorights tag")
	ErrUnknownDecision     = errors.New("unknown decision")
	ErrDuplicateVote       = errors.New("duplicate vote")
	ErrInvalidRole         = errors.New("invalid stakeholder role")
	ErrUnknownAxis         = errors.New("unknown safety axis")
	ErrInvalidThreshold    = errors.New("invalid consensus threshold")
	ErrInvalidBounds       = errors.New("invalid bounds")
	ErrDecisionNotApproved = errors.New("decision not approved")
	ErrMalformedRecord     = errors.New("malformed telemetry record")
	ErrSourceUnavailable   = errors.New("telemetry source unavailable")
	ErrConfigInvalid       = errors.New("invalid configuration")
)

// Machine-readable codes carried by DomainError.
const (
	CodeInvalidTag          = "INVALID_TAG"
	CodeUnknownDecision     = "UNKNOWN_DECISION"
	CodeDuplicateVote       = "DUPLICATE_VOTE"
	CodeInvalidRole         = "INVALID_ROLE"
	CodeUnknownAxis         = "UNKNOWN_AXIS"
	CodeInvalidThreshold    = "INVALID_THRESHOLD"
	CodeInvalidBounds       = "INVALID_BOUNDS"
	CodeDecisionNotApproved = "DECISION_NOT_APPROVED"
	CodeMalformedRecord     = "MALFORMED_RECORD"
	CodeSourceUnavailable   = "SOURCE_UNAVAILABLE"
)

// DomainError wraps errors with additional context.
//
//nolint:revive // Name is intentionally verbose to distinguish domain-layer errors
type DomainError struct {
	Err     error
	Code    string
	Message string
	Details map[string]any
}

func (e *DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewError builds a DomainError around a sentinel. The message is prefixed
// with the sentinel text so plain logging stays readable.
func NewError(sentinel error, code string, details map[string]any, format string, args ...any) *DomainError {
	msg := sentinel.Error()
	if format != "" {
		msg = fmt.Sprintf("%s: %s", msg, fmt.Sprintf(format, args...))
	}
	return &DomainError{
		Err:     sentinel,
		Code:    code,
		Message: msg,
		Details: details,
	}
}

// ErrorCode extracts the machine-readable code from err, or "" when err is
// not a DomainError.
func ErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ErrorResponse defines the standard JSON error model returned by the admin API.
// TraceID should carry the current OpenTelemetry trace identifier when available to aid diagnostics.
type ErrorResponse struct {
	Code    string `json:"code"`               // Machine-readable error code (e.g., UNKNOWN_DECISION)
	Message string `json:"message"`            // Human-readable message (safe for logs)
	TraceID string `json:"trace_id,omitempty"` // Optional trace/correlation ID
}
