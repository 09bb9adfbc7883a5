// Package sequence provides domain contracts for gap-tolerant sequence
// allocation. Implementations live in infrastructure layer.
//
// A counter key identifies one shared monotonic counter. Reserve hands
// out the next candidate value under an optimistic-update discipline;
// Confirm later commits it as actually used. A reservation that is never
// confirmed leaves a gap, never a duplicate.
package sequence

import (
	"context"
	"time"
)

// Key addresses one counter row: codes of the same type and location
// sharing the same date key draw from the same counter.
type Key struct {
	DateKey  string
	Type     string
	Location string
}

// Counter is the persisted state of one keyed counter.
type Counter struct {
	DateKey   string    `db:"date_key"`
	Type      string    `db:"code_type"`
	Location  string    `db:"location"`
	Confirmed uint64    `db:"confirmed"`
	Pending   *uint64   `db:"pending"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

// Next returns the candidate for the next reservation:
// max(confirmed, pending) + 1.
func (c Counter) Next() uint64 {
	next := c.Confirmed
	if c.Pending != nil && *c.Pending > next {
		next = *c.Pending
	}
	return next + 1
}

// ReserveOutcome is the result of one reservation attempt. Conflict is
// an expected, retryable outcome, so it is a value rather than an error.
type ReserveOutcome struct {
	// Value is the reserved sequence value, valid when Conflict is false.
	Value uint64

	// Conflict reports that a concurrent reserver changed the counter
	// between read and write; the caller must retry the whole attempt.
	Conflict bool
}

// Allocator reserves and confirms sequence values for counter keys.
//
// Reserve must run inside the caller's transaction so the reservation
// commits together with whatever the caller does with the value.
// Confirm runs in its own transaction.
type Allocator interface {
	// Reserve claims the next value for key. The counter row is created
	// lazily on first use. A Conflict outcome performs no mutation.
	Reserve(ctx context.Context, key Key) (ReserveOutcome, error)

	// Confirm commits value as used, but only while it is still the
	// currently pending reservation for key. Returns false when the
	// confirmation is late, repeated, or was never reserved.
	Confirm(ctx context.Context, key Key, value uint64) (bool, error)
}
