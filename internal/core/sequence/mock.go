package sequence

import (
	"context"
	"sync"
)

// Mock is a test implementation of Allocator.
// Use in unit tests to script outcomes without a database.
type Mock struct {
	ReserveFunc func(ctx context.Context, key Key) (ReserveOutcome, error)
	ConfirmFunc func(ctx context.Context, key Key, value uint64) (bool, error)
}

// Reserve implements Allocator.
func (m *Mock) Reserve(ctx context.Context, key Key) (ReserveOutcome, error) {
	if m.ReserveFunc != nil {
		return m.ReserveFunc(ctx, key)
	}
	return ReserveOutcome{Value: 1}, nil
}

// Confirm implements Allocator.
func (m *Mock) Confirm(ctx context.Context, key Key, value uint64) (bool, error) {
	if m.ConfirmFunc != nil {
		return m.ConfirmFunc(ctx, key, value)
	}
	return true, nil
}

// Memory is an in-process Allocator holding counters in a map. It runs
// the same reserve/confirm state machine as the persistent
// implementation and is safe for concurrent use. Intended for tests.
type Memory struct {
	mu       sync.Mutex
	counters map[Key]*Counter
}

// NewMemory creates an empty in-memory allocator.
func NewMemory() *Memory {
	return &Memory{counters: make(map[Key]*Counter)}
}

// Reserve implements Allocator.
func (m *Memory) Reserve(_ context.Context, key Key) (ReserveOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctr, ok := m.counters[key]
	if !ok {
		ctr = &Counter{DateKey: key.DateKey, Type: key.Type, Location: key.Location}
		m.counters[key] = ctr
	}

	candidate := ctr.Next()
	ctr.Pending = &candidate
	return ReserveOutcome{Value: candidate}, nil
}

// Confirm implements Allocator.
func (m *Memory) Confirm(_ context.Context, key Key, value uint64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctr, ok := m.counters[key]
	if !ok || ctr.Pending == nil || *ctr.Pending != value {
		return false, nil
	}

	ctr.Confirmed = value
	ctr.Pending = nil
	return true, nil
}

// Confirmed returns the confirmed value for key, for assertions.
func (m *Memory) Confirmed(key Key) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ctr, ok := m.counters[key]; ok {
		return ctr.Confirmed
	}
	return 0
}

// HasCounter reports whether a counter row was ever created for key.
func (m *Memory) HasCounter(key Key) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.counters[key]
	return ok
}

// Ensure compile-time interface compliance.
var (
	_ Allocator = (*Mock)(nil)
	_ Allocator = (*Memory)(nil)
)
