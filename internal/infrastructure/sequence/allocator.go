// Package sequence provides the PostgreSQL implementation of sequence
// allocation. This is the infrastructure layer - it implements
// core/sequence.Allocator over the counter repository.
package sequence

import (
	"context"
	"fmt"

	coresequence "codemint/internal/core/sequence"
	"codemint/internal/infrastructure/storage/postgres/counter_repo"
)

// CounterStore is the persistence surface the allocator needs.
// Implemented by counter_repo.CounterRepo.
type CounterStore interface {
	GetOrCreateForUpdate(ctx context.Context, key coresequence.Key) (coresequence.Counter, error)
	SetPending(ctx context.Context, snapshot coresequence.Counter, candidate uint64) (bool, error)
	ConfirmPending(ctx context.Context, key coresequence.Key, value uint64) (bool, error)
}

// Allocator reserves and confirms sequence values against the shared
// counters table. Reserve expects to run inside the caller's
// transaction; the row lock taken by the repository serializes
// concurrent reservers on the same key, and the snapshot-guarded write
// catches anything the lock did not.
type Allocator struct {
	counters CounterStore
}

// Ensure compile-time interface compliance.
var (
	_ coresequence.Allocator = (*Allocator)(nil)
	_ CounterStore           = (*counter_repo.CounterRepo)(nil)
)

// NewAllocator creates a new PostgreSQL-backed allocator.
func NewAllocator(counters CounterStore) *Allocator {
	return &Allocator{counters: counters}
}

// Reserve implements core/sequence.Allocator.
//
// The candidate is max(confirmed, pending)+1 so an in-flight
// reservation that was never confirmed is skipped, never reissued.
func (a *Allocator) Reserve(ctx context.Context, key coresequence.Key) (coresequence.ReserveOutcome, error) {
	ctr, err := a.counters.GetOrCreateForUpdate(ctx, key)
	if err != nil {
		return coresequence.ReserveOutcome{}, fmt.Errorf("load counter: %w", err)
	}

	candidate := ctr.Next()
	ok, err := a.counters.SetPending(ctx, ctr, candidate)
	if err != nil {
		return coresequence.ReserveOutcome{}, fmt.Errorf("write reservation: %w", err)
	}
	if !ok {
		// The row changed between read and write. All-or-nothing: no
		// partial mutation happened, the caller retries.
		return coresequence.ReserveOutcome{Conflict: true}, nil
	}

	return coresequence.ReserveOutcome{Value: candidate}, nil
}

// Confirm implements core/sequence.Allocator.
func (a *Allocator) Confirm(ctx context.Context, key coresequence.Key, value uint64) (bool, error) {
	ok, err := a.counters.ConfirmPending(ctx, key, value)
	if err != nil {
		return false, fmt.Errorf("confirm reservation: %w", err)
	}
	return ok, nil
}
