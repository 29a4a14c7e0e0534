package models

import (
	"time"

	apperrors "agency-assistant/internal/common/errors"
)

// Envelope wraps the result of every orchestrator operation.
type Envelope[T any] struct {
	Success          bool                     `json:"success"`
	Value            *T                       `json:"value,omitempty"`
	Ref              string                   `json:"ref,omitempty"`
	Error            *apperrors.StandardError `json:"error,omitempty"`
	ProcessingTimeMS int64                    `json:"processing_time_ms"`
	Timestamp        time.Time                `json:"timestamp"`
}

// Kind returns the error kind, or "" on success.
func (e *Envelope[T]) Kind() apperrors.Kind {
	if e.Error == nil {
		return ""
	}
	return e.Error.Kind
}
