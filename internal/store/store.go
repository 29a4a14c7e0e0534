// Package store keeps the artifacts produced by the orchestrator so front
// ends can refer to them by reference.
package store

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	apperrors "agency-assistant/internal/common/errors"
)

type Kind string

const (
	KindBrief    Kind = "brief"
	KindReport   Kind = "report"
	KindAnalysis Kind = "analysis"
	KindDeck     Kind = "deck"
)

// Store persists JSON artifacts. Values are copied on Put and Get.
type Store interface {
	Put(ctx context.Context, kind Kind, value interface{}) (string, error)
	// Get decodes the artifact behind ref into dst. A missing ref, or one of
	// another kind, is a not_found error.
	Get(ctx context.Context, kind Kind, ref string, dst interface{}) error
}

// NewRef returns a reference of the form "<kind>_<uuid>".
func NewRef(kind Kind) string {
	return string(kind) + "_" + uuid.NewString()
}

// KindOfRef returns the kind prefix of ref.
func KindOfRef(ref string) Kind {
	if i := strings.IndexByte(ref, '_'); i > 0 {
		return Kind(ref[:i])
	}
	return ""
}

func encode(value interface{}) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, apperrors.NewStorageError("encode", err)
	}
	return data, nil
}

func decode(data []byte, dst interface{}) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return apperrors.NewStorageError("decode", err)
	}
	return nil
}
