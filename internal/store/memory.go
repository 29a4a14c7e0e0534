package store

import (
	"context"
	"sync"

	apperrors "agency-assistant/internal/common/errors"
)

type record struct {
	kind    Kind
	payload []byte
}

type Memory struct {
	mu      sync.RWMutex
	records map[string]record
}

func NewMemory() *Memory {
	return &Memory{records: make(map[string]record)}
}

func (m *Memory) Put(ctx context.Context, kind Kind, value interface{}) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := encode(value)
	if err != nil {
		return "", err
	}
	ref := NewRef(kind)
	m.mu.Lock()
	m.records[ref] = record{kind: kind, payload: data}
	m.mu.Unlock()
	return ref, nil
}

func (m *Memory) Get(ctx context.Context, kind Kind, ref string, dst interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.RLock()
	rec, ok := m.records[ref]
	m.mu.RUnlock()
	if !ok || rec.kind != kind {
		return apperrors.NewReferenceNotFoundError(string(kind), ref)
	}
	return decode(rec.payload, dst)
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}
