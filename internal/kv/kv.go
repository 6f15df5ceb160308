// Package kv implements the persistent blob storage contract used by the
// face store: get(key), set(key, bytes), commit(). Writes made with Set are
// only durable after Commit returns nil.
package kv

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrNotFound is returned by Get when the key has never been committed.
var ErrNotFound = errors.New("key not found")

// Store is a namespaced blob store.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Commit(ctx context.Context) error
	Close() error
}

// Memory is an in-process Store. Useful for tests and the memory backend.
type Memory struct {
	mu        sync.Mutex
	committed map[string][]byte
	staged    map[string][]byte

	// FailSet and FailCommit inject persistence failures.
	FailSet    error
	FailCommit error
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{committed: map[string][]byte{}, staged: map[string][]byte{}}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.committed[key]
	if !ok {
		return nil, fmt.Errorf("%s: %w", key, ErrNotFound)
	}
	return append([]byte(nil), v...), nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSet != nil {
		return m.FailSet
	}
	m.staged[key] = append([]byte(nil), value...)
	return nil
}

func (m *Memory) Commit(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailCommit != nil {
		return m.FailCommit
	}
	for k, v := range m.staged {
		m.committed[k] = v
	}
	clear(m.staged)
	return nil
}

func (m *Memory) Close() error { return nil }
