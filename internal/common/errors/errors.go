// Package errors provides the structured error type shared by every
// pipeline stage and the mapping from error kinds to caller-visible codes.
package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Kind is the stable, caller-visible classification of a failure.
type Kind string

const (
	KindNotFound             Kind = "not_found"
	KindInvalidFormat        Kind = "invalid_format"
	KindEmptyDocument        Kind = "empty_document"
	KindValidation           Kind = "validation"
	KindRequiredSourceFailed Kind = "required_source_failed"
	KindTimeout              Kind = "timeout"
	KindCancelled            Kind = "cancelled"
	KindRateLimited          Kind = "rate_limited"
	KindNetwork              Kind = "network"
	KindUpstream             Kind = "upstream"
	KindInternal             Kind = "internal"
)

// ErrorCode is a finer-grained internal code used in logs.
type ErrorCode string

const (
	ErrCodeFileNotFound          ErrorCode = "FILE_NOT_FOUND"
	ErrCodeReferenceNotFound     ErrorCode = "REFERENCE_NOT_FOUND"
	ErrCodeSchemaNotFound        ErrorCode = "SCHEMA_NOT_FOUND"
	ErrCodeInvalidPDF            ErrorCode = "INVALID_PDF"
	ErrCodeInvalidFormat         ErrorCode = "INVALID_FORMAT"
	ErrCodeEmptyDocument         ErrorCode = "EMPTY_DOCUMENT"
	ErrCodeExtractionFailed      ErrorCode = "EXTRACTION_FAILED"
	ErrCodeIncompleteBrief       ErrorCode = "INCOMPLETE_BRIEF"
	ErrCodeSchemaValidation      ErrorCode = "SCHEMA_VALIDATION_FAILED"
	ErrCodeInvalidRequest        ErrorCode = "INVALID_REQUEST"
	ErrCodeRequiredSourceFailed  ErrorCode = "REQUIRED_SOURCE_FAILED"
	ErrCodeTimeout               ErrorCode = "TIMEOUT"
	ErrCodeCancelled             ErrorCode = "CANCELLED"
	ErrCodeRateLimited           ErrorCode = "RATE_LIMITED"
	ErrCodeNetwork               ErrorCode = "NETWORK_ERROR"
	ErrCodeUpstream              ErrorCode = "UPSTREAM_ERROR"
	ErrCodeCircuitOpen           ErrorCode = "CIRCUIT_OPEN"
	ErrCodeLLMResponseInvalid    ErrorCode = "LLM_RESPONSE_INVALID"
	ErrCodeInternal              ErrorCode = "INTERNAL_ERROR"
	ErrCodeStorageFailed         ErrorCode = "STORAGE_FAILED"
	ErrCodeNotificationSendError ErrorCode = "NOTIFICATION_SEND_FAILED"
)

// FieldError identifies one schema violation by dotted path.
type FieldError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// StandardError represents a structured application error.
type StandardError struct {
	Kind      Kind                   `json:"kind"`
	Code      ErrorCode              `json:"code,omitempty"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Fields    []FieldError           `json:"errors,omitempty"`
	TraceID   string                 `json:"trace_id,omitempty"`
	Retryable bool                   `json:"-"`
	Metadata  map[string]interface{} `json:"-"`
	Timestamp time.Time              `json:"-"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Kind, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// Paths returns the dotted paths of the attached field errors.
func (e *StandardError) Paths() []string {
	out := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		out = append(out, f.Path)
	}
	return out
}

func newError(kind Kind, code ErrorCode, message, details string, cause error) *StandardError {
	return &StandardError{
		Kind:      kind,
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: IsRetryable(kind),
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

func causeText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// NewNotFoundError reports a missing input path.
func NewNotFoundError(path string) *StandardError {
	return newError(KindNotFound, ErrCodeFileNotFound, "input not found", fmt.Sprintf("path: %s", path), nil)
}

// NewReferenceNotFoundError reports a missing stored artifact.
func NewReferenceNotFoundError(kind, ref string) *StandardError {
	return newError(KindNotFound, ErrCodeReferenceNotFound, fmt.Sprintf("%s reference not found", kind), fmt.Sprintf("ref: %s", ref), nil)
}

// NewSchemaNotFoundError reports an unknown schema name.
func NewSchemaNotFoundError(name string) *StandardError {
	return newError(KindNotFound, ErrCodeSchemaNotFound, "schema not found in registry", fmt.Sprintf("schema: %s", name), nil)
}

// NewInvalidFormatError reports bytes that do not match the expected format.
func NewInvalidFormatError(format string, err error) *StandardError {
	return newError(KindInvalidFormat, ErrCodeInvalidFormat, fmt.Sprintf("input is not a valid %s", format), causeText(err), err)
}

// NewInvalidPDFError reports bytes that do not parse as PDF.
func NewInvalidPDFError(err error) *StandardError {
	e := NewInvalidFormatError("PDF", err)
	e.Code = ErrCodeInvalidPDF
	return e
}

// NewEmptyDocumentError reports a document without printable characters.
func NewEmptyDocumentError(details string) *StandardError {
	return newError(KindEmptyDocument, ErrCodeEmptyDocument, "document yielded no text", details, nil)
}

// NewExtractionFailedError wraps an empty-document failure raised while processing a brief.
func NewExtractionFailedError(err error) *StandardError {
	return newError(KindEmptyDocument, ErrCodeExtractionFailed, "brief extraction failed", causeText(err), err)
}

// NewIncompleteBriefError reports required sections missing with auto-default disabled.
func NewIncompleteBriefError(sections []string) *StandardError {
	e := newError(KindValidation, ErrCodeIncompleteBrief, "brief is missing required sections", strings.Join(sections, ", "), nil)
	for _, s := range sections {
		e.Fields = append(e.Fields, FieldError{Path: s, Message: "section not found in document"})
	}
	return e
}

// NewValidationError carries the complete list of schema violations.
func NewValidationError(schema string, fields []FieldError) *StandardError {
	e := newError(KindValidation, ErrCodeSchemaValidation, "schema validation failed", fmt.Sprintf("schema: %s", schema), nil)
	e.Fields = fields
	return e
}

// NewInvalidRequestError reports a malformed request from a front-end.
func NewInvalidRequestError(details string) *StandardError {
	return newError(KindValidation, ErrCodeInvalidRequest, "invalid request", details, nil)
}

// NewRequiredSourceFailedError aborts a collection because a required source failed.
func NewRequiredSourceFailedError(source string, err error) *StandardError {
	e := newError(KindRequiredSourceFailed, ErrCodeRequiredSourceFailed, fmt.Sprintf("required source %q failed", source), causeText(err), err)
	e.Metadata = map[string]interface{}{"source": source, "reason": string(KindOf(err))}
	return e
}

// NewTimeoutError reports an exceeded deadline.
func NewTimeoutError(operation string, err error) *StandardError {
	return newError(KindTimeout, ErrCodeTimeout, fmt.Sprintf("%s timed out", operation), causeText(err), err)
}

// NewCancelledError reports caller cancellation.
func NewCancelledError(operation string) *StandardError {
	return newError(KindCancelled, ErrCodeCancelled, fmt.Sprintf("%s cancelled", operation), "", context.Canceled)
}

// NewRateLimitedError reports an exhausted external quota.
func NewRateLimitedError(endpoint string, details string) *StandardError {
	return newError(KindRateLimited, ErrCodeRateLimited, fmt.Sprintf("endpoint %s rate limited", endpoint), details, nil)
}

// NewNetworkError reports a transport-level failure.
func NewNetworkError(endpoint string, err error) *StandardError {
	return newError(KindNetwork, ErrCodeNetwork, fmt.Sprintf("network failure calling %s", endpoint), causeText(err), err)
}

// NewUpstreamError reports an error payload returned by an external dependency.
func NewUpstreamError(endpoint string, status int, details string) *StandardError {
	e := newError(KindUpstream, ErrCodeUpstream, fmt.Sprintf("%s returned an error", endpoint), details, nil)
	if status > 0 {
		e.Metadata = map[string]interface{}{"status": status}
	}
	return e
}

// NewCircuitOpenError reports a call short-circuited by an open breaker.
func NewCircuitOpenError(endpoint string) *StandardError {
	return newError(KindUpstream, ErrCodeCircuitOpen, fmt.Sprintf("circuit open for %s", endpoint), "", nil)
}

// NewLLMResponseError reports an unusable text-generation answer.
func NewLLMResponseError(details string) *StandardError {
	return newError(KindUpstream, ErrCodeLLMResponseInvalid, "llm response invalid", details, nil)
}

// NewStorageError reports a failed artifact or cache write.
func NewStorageError(operation string, err error) *StandardError {
	return newError(KindInternal, ErrCodeStorageFailed, fmt.Sprintf("storage %s failed", operation), causeText(err), err)
}

// NewNotificationError reports a failed completion notification.
func NewNotificationError(channel string, err error) *StandardError {
	return newError(KindUpstream, ErrCodeNotificationSendError, fmt.Sprintf("%s notification failed", channel), causeText(err), err)
}

// NewInternalError wraps an unclassified failure with a stable trace id.
func NewInternalError(err error) *StandardError {
	e := newError(KindInternal, ErrCodeInternal, "internal error", causeText(err), err)
	e.TraceID = uuid.NewString()
	return e
}

// KindOf classifies any error.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var se *StandardError
	if stderrors.As(err, &se) {
		return se.Kind
	}
	if stderrors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if stderrors.Is(err, context.Canceled) {
		return KindCancelled
	}
	var ne net.Error
	if stderrors.As(err, &ne) {
		if ne.Timeout() {
			return KindTimeout
		}
		return KindNetwork
	}
	return KindInternal
}

// Normalize always returns a *StandardError.
func Normalize(err error) *StandardError {
	if err == nil {
		return nil
	}
	var se *StandardError
	if stderrors.As(err, &se) {
		return se
	}
	switch KindOf(err) {
	case KindTimeout:
		return NewTimeoutError("operation", err)
	case KindCancelled:
		e := NewCancelledError("operation")
		e.Details = err.Error()
		return e
	case KindNetwork:
		return NewNetworkError("remote endpoint", err)
	default:
		return NewInternalError(err)
	}
}

// IsRetryable reports whether failures of this kind may be retried.
func IsRetryable(kind Kind) bool {
	switch kind {
	case KindNetwork, KindTimeout, KindRateLimited:
		return true
	default:
		return false
	}
}

// IsRetryableError applies IsRetryable to any error.
func IsRetryableError(err error) bool {
	return IsRetryable(KindOf(err))
}

// HTTPStatus maps a kind to the HTTP status code returned to callers.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindNotFound:
		return 404
	case KindValidation, KindInvalidFormat:
		return 400
	case KindTimeout:
		return 504
	case KindRateLimited:
		return 429
	default:
		return 500
	}
}

// ExitCode maps a kind to the CLI exit status.
func ExitCode(kind Kind) int {
	switch kind {
	case "":
		return 0
	case KindValidation, KindInvalidFormat, KindNotFound, KindEmptyDocument:
		return 1
	case KindTimeout:
		return 3
	default:
		return 2
	}
}

// GetErrorCategory groups codes for log enrichment.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "PDF") || strings.Contains(codeStr, "DOCUMENT") || strings.Contains(codeStr, "EXTRACTION") || strings.Contains(codeStr, "BRIEF"):
		return "BRIEF"
	case strings.Contains(codeStr, "SCHEMA") || strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	case strings.Contains(codeStr, "SOURCE"):
		return "VEILLE"
	case strings.Contains(codeStr, "NETWORK") || strings.Contains(codeStr, "UPSTREAM") || strings.Contains(codeStr, "CIRCUIT") || strings.Contains(codeStr, "RATE"):
		return "EXTERNAL"
	case strings.Contains(codeStr, "LLM"):
		return "AI"
	case strings.Contains(codeStr, "STORAGE") || strings.Contains(codeStr, "NOT_FOUND"):
		return "STORAGE"
	default:
		return "OTHER"
	}
}
