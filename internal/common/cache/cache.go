// Package cache stores derived results by key with a TTL. Reads are
// lock-free; writes to the same key are serialized.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

type Cache interface {
	// Get decodes the value stored under key into dst and reports a hit.
	Get(ctx context.Context, key string, dst interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// LockKey serializes writers of key until the returned func is called.
	LockKey(key string) func()
}

// WriteError reports a computed value that could not be stored. dst holds
// the value when GetOrCompute returns it.
type WriteError struct {
	Key string
	Err error
}

func (e *WriteError) Error() string { return fmt.Sprintf("cache write %s: %v", e.Key, e.Err) }

func (e *WriteError) Unwrap() error { return e.Err }

// GetOrCompute returns the cached value for key or computes, stores and
// returns it. Concurrent callers for the same key compute once. A failed
// store still fills dst and is reported as a *WriteError.
func GetOrCompute(ctx context.Context, c Cache, key string, ttl time.Duration, dst interface{}, compute func(ctx context.Context) (interface{}, error)) (hit bool, err error) {
	if ok, err := c.Get(ctx, key, dst); err == nil && ok {
		return true, nil
	}

	unlock := c.LockKey(key)
	defer unlock()

	if ok, err := c.Get(ctx, key, dst); err == nil && ok {
		return true, nil
	}

	value, err := compute(ctx)
	if err != nil {
		return false, err
	}
	if err := assign(value, dst); err != nil {
		return false, err
	}
	if err := c.Set(ctx, key, value, ttl); err != nil {
		return false, &WriteError{Key: key, Err: err}
	}
	return false, nil
}

func assign(value, dst interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache encode: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("cache decode: %w", err)
	}
	return nil
}

// KeyedMutex hands out one mutex per key and frees it when unused.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyLock)}
}

func (k *KeyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
