package errors

import (
	"fmt"
)

// Logger is the subset of logger.Logger the handler needs.
type Logger interface {
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
}

// ErrorHandler converts component failures into StandardErrors at the
// orchestrator boundary and logs them once.
type ErrorHandler struct {
	logger Logger
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Handle normalizes err and logs it under the given operation name.
func (h *ErrorHandler) Handle(operation string, err error) *StandardError {
	if err == nil {
		return nil
	}
	stdErr := Normalize(err)
	h.log(operation, stdErr)
	return stdErr
}

// Recover converts a recovered panic value into an internal error.
func (h *ErrorHandler) Recover(operation string, r interface{}) *StandardError {
	var err error
	switch v := r.(type) {
	case error:
		err = v
	default:
		err = fmt.Errorf("panic: %v", v)
	}
	stdErr := NewInternalError(err)
	h.log(operation, stdErr)
	return stdErr
}

func (h *ErrorHandler) log(operation string, stdErr *StandardError) {
	if h.logger == nil {
		return
	}
	fields := map[string]interface{}{
		"operation":     operation,
		"kind":          string(stdErr.Kind),
		"errorCode":     string(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
		"errorCategory": GetErrorCategory(stdErr.Code),
	}
	if stdErr.TraceID != "" {
		fields["traceId"] = stdErr.TraceID
	}
	if len(stdErr.Fields) > 0 {
		fields["paths"] = stdErr.Paths()
	}
	// Cancellation is caller-driven, not a fault.
	if stdErr.Kind == KindCancelled {
		h.logger.Warn("Operation cancelled", fields)
		return
	}
	h.logger.Error("Operation failed", fields)
}
