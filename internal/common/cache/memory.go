package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

type memoryEntry struct {
	data    []byte
	expires time.Time
}

// Memory is an in-process cache. Values are stored JSON-encoded so callers
// never share mutable state with the cache.
type Memory struct {
	entries sync.Map
	locks   *KeyedMutex
	now     func() time.Time
}

func NewMemory() *Memory {
	return &Memory{locks: NewKeyedMutex(), now: time.Now}
}

func (m *Memory) Get(_ context.Context, key string, dst interface{}) (bool, error) {
	v, ok := m.entries.Load(key)
	if !ok {
		return false, nil
	}
	e := v.(*memoryEntry)
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		return false, nil
	}
	if err := json.Unmarshal(e.data, dst); err != nil {
		return false, fmt.Errorf("cache decode %s: %w", key, err)
	}
	return true, nil
}

func (m *Memory) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode %s: %w", key, err)
	}
	e := &memoryEntry{data: data}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.entries.Store(key, e)
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.entries.Delete(key)
	return nil
}

func (m *Memory) LockKey(key string) func() {
	return m.locks.Lock(key)
}

// Purge drops expired entries.
func (m *Memory) Purge() {
	now := m.now()
	m.entries.Range(func(k, v interface{}) bool {
		e := v.(*memoryEntry)
		if !e.expires.IsZero() && !now.Before(e.expires) {
			m.entries.Delete(k)
		}
		return true
	})
}
