// Package clock provides the time source contract for code generation.
// Generation and confirmation must agree on "now" when deriving counter
// keys, so the clock is injected rather than read ad-hoc.
package clock

import "time"

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// System reads the wall clock.
type System struct{}

// Now implements Clock.
func (System) Now() time.Time { return time.Now() }

// Fixed is a Clock pinned to a single instant. Use in tests.
type Fixed struct {
	T time.Time
}

// Now implements Clock.
func (f Fixed) Now() time.Time { return f.T }

// Ensure compile-time interface compliance.
var (
	_ Clock = System{}
	_ Clock = Fixed{}
)
