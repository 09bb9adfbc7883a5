package codegen

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codemint/internal/core/apperror"
	"codemint/internal/core/clock"
	"codemint/internal/core/sequence"
)

// passthroughTx runs the function without a real transaction. The
// in-memory allocator is atomic per call, which is all these tests need.
type passthroughTx struct{}

func (passthroughTx) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// countingEntropy yields unique values per call so non-sequential codes
// can be asserted distinct.
type countingEntropy struct {
	mu sync.Mutex
	n  int
}

func (c *countingEntropy) RandomString(length int) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	s := fmt.Sprintf("%0*d", length, c.n)
	return s[len(s)-length:], nil
}

func (c *countingEntropy) UUID() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.n++
	return fmt.Sprintf("%08d-0000-4000-8000-000000000000", c.n), nil
}

var serviceNow = time.Date(2025, 6, 9, 10, 0, 0, 0, time.UTC)

func newTestService(alloc sequence.Allocator) *Service {
	return NewService(
		testStore(),
		alloc,
		passthroughTx{},
		clock.Fixed{T: serviceNow},
		&countingEntropy{},
	)
}

func TestGenerateFor_WorkedExample(t *testing.T) {
	mem := sequence.NewMemory()
	svc := newTestService(mem)
	ctx := context.Background()

	ov, err := OverridesFromMap(map[string]any{"type": "ORD", "location": "HQ"})
	require.NoError(t, err)

	code, err := svc.GenerateFor(ctx, "{TYPE}-{DATE:ymd}-{LOCATION}-{SEQUENCE:4}", ov)
	require.NoError(t, err)
	assert.Equal(t, "ORD-250609-HQ-0001", code)

	code, err = svc.GenerateFor(ctx, "{TYPE}-{DATE:ymd}-{LOCATION}-{SEQUENCE:4}", ov)
	require.NoError(t, err)
	assert.Equal(t, "ORD-250609-HQ-0002", code)
}

func TestGenerateFor_ConcurrentValuesDistinct(t *testing.T) {
	mem := sequence.NewMemory()
	svc := newTestService(mem)

	const n = 32
	codes := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			code, err := svc.GenerateFor(context.Background(), "invoice", Overrides{})
			require.NoError(t, err)
			codes <- code
		}()
	}
	wg.Wait()
	close(codes)

	seen := make(map[string]bool)
	for code := range codes {
		assert.False(t, seen[code], "duplicate code %s", code)
		seen[code] = true
	}
	assert.Len(t, seen, n)
}

func TestGenerateFor_NonSequentialSkipsCounter(t *testing.T) {
	mem := sequence.NewMemory()
	svc := newTestService(mem)
	ctx := context.Background()

	first, err := svc.GenerateFor(ctx, "tracking", Overrides{})
	require.NoError(t, err)
	second, err := svc.GenerateFor(ctx, "tracking", Overrides{})
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	// The daily counter key would exist if the short-circuit were broken.
	key := sequence.Key{DateKey: "2025-06-09", Type: "DOC", Location: "MAIN"}
	assert.False(t, mem.HasCounter(key), "non-sequential generation must never touch the counter table")

	ok, err := svc.ConfirmUsageFor(ctx, "tracking", first)
	require.NoError(t, err)
	assert.True(t, ok, "non-sequential confirmation succeeds trivially")
	assert.False(t, mem.HasCounter(key))
}

func TestGenerateFor_RetriesOnConflictThenSucceeds(t *testing.T) {
	attempts := 0
	mock := &sequence.Mock{
		ReserveFunc: func(ctx context.Context, key sequence.Key) (sequence.ReserveOutcome, error) {
			attempts++
			if attempts < 3 {
				return sequence.ReserveOutcome{Conflict: true}, nil
			}
			return sequence.ReserveOutcome{Value: 7}, nil
		},
	}
	svc := newTestService(mock)

	ov, _ := OverridesFromMap(map[string]any{"retry_delay": "1ms"})
	code, err := svc.GenerateFor(context.Background(), "invoice", ov)
	require.NoError(t, err)
	assert.Equal(t, "INV-2025-000007", code)
	assert.Equal(t, 3, attempts)
}

func TestGenerateFor_ExhaustsAttempts(t *testing.T) {
	mock := &sequence.Mock{
		ReserveFunc: func(ctx context.Context, key sequence.Key) (sequence.ReserveOutcome, error) {
			return sequence.ReserveOutcome{Conflict: true}, nil
		},
	}
	svc := newTestService(mock)

	ov, _ := OverridesFromMap(map[string]any{"max_attempts": float64(3), "retry_delay": "1ms"})
	_, err := svc.GenerateFor(context.Background(), "invoice", ov)
	require.Error(t, err)

	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeAllocationExhausted, appErr.Code)
	assert.Equal(t, 3, appErr.Details["attempts"])
}

func TestConfirmUsage_NotIdempotent(t *testing.T) {
	mem := sequence.NewMemory()
	svc := newTestService(mem)
	ctx := context.Background()

	code, err := svc.GenerateFor(ctx, "invoice", Overrides{})
	require.NoError(t, err)

	ok, err := svc.ConfirmUsageFor(ctx, "invoice", code)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.ConfirmUsageFor(ctx, "invoice", code)
	require.NoError(t, err)
	assert.False(t, ok, "second confirmation of the same value must miss")
}

func TestConfirmUsage_SupersededReservationMisses(t *testing.T) {
	mem := sequence.NewMemory()
	svc := newTestService(mem)
	ctx := context.Background()

	first, err := svc.GenerateFor(ctx, "invoice", Overrides{})
	require.NoError(t, err)
	_, err = svc.GenerateFor(ctx, "invoice", Overrides{})
	require.NoError(t, err)

	ok, err := svc.ConfirmUsageFor(ctx, "invoice", first)
	require.NoError(t, err)
	assert.False(t, ok, "a newer reservation supersedes the first")
}

func TestConfirmUsage_Mismatch(t *testing.T) {
	svc := newTestService(sequence.NewMemory())

	_, err := svc.ConfirmUsageFor(context.Background(), "invoice", "not-an-invoice-code")
	require.Error(t, err)
	assert.True(t, apperror.IsPatternMismatch(err))
}

func TestConfirmUsage_BackfillsTypeAndLocation(t *testing.T) {
	mem := sequence.NewMemory()
	svc := newTestService(mem)
	ctx := context.Background()

	// Pattern carries no TYPE or LOCATION; the counter key must come
	// from the effective config.
	selector := "N{SEQUENCE:4}"
	code, err := svc.GenerateFor(ctx, selector, Overrides{})
	require.NoError(t, err)
	assert.Equal(t, "N0001", code)

	ok, err := svc.ConfirmUsageFor(ctx, selector, code)
	require.NoError(t, err)
	assert.True(t, ok)

	key := sequence.Key{DateKey: "2025-06-09", Type: "DOC", Location: "MAIN"}
	assert.Equal(t, uint64(1), mem.Confirmed(key))
}

func TestCounterKey_DateCadenceFollowsPattern(t *testing.T) {
	svc := newTestService(sequence.NewMemory())

	cfg, err := resolveConfig(testStore(), "invoice", Overrides{})
	require.NoError(t, err)
	key := svc.counterKey(cfg, serviceNow)
	assert.Equal(t, "2025", key.DateKey, "year-only DATE placeholder resets the counter yearly")

	cfg, err = resolveConfig(testStore(), "N{SEQUENCE}", Overrides{})
	require.NoError(t, err)
	key = svc.counterKey(cfg, serviceNow)
	assert.Equal(t, "2025-06-09", key.DateKey, "no DATE placeholder falls back to daily granularity")

	cfg, err = resolveConfig(testStore(), "{DATE:??}-{SEQUENCE}", Overrides{})
	require.NoError(t, err)
	key = svc.counterKey(cfg, serviceNow)
	assert.Equal(t, "250609", key.DateKey, "un-parseable DATE format falls back to the default date format")
}

func TestFinalizeCode(t *testing.T) {
	assert.Equal(t, "ABC", finalizeCode("ABC", 0), "zero target disables normalization")
	assert.Equal(t, "ABC00", finalizeCode("ABC", 5))
	assert.Equal(t, "AB", finalizeCode("ABCDE", 2))
	assert.Equal(t, "ABC", finalizeCode("ABC", 3), "already at target length is returned unchanged")
	assert.Equal(t, finalizeCode("ABC00", 5), finalizeCode(finalizeCode("ABC", 5), 5), "idempotent at target length")
}

func TestGenerateFor_TotalLengthApplied(t *testing.T) {
	svc := newTestService(sequence.NewMemory())

	ov, err := OverridesFromMap(map[string]any{"total_length": float64(12)})
	require.NoError(t, err)

	code, err := svc.GenerateFor(context.Background(), "N{SEQUENCE:4}", ov)
	require.NoError(t, err)
	assert.Len(t, code, 12)
	assert.Equal(t, "N00010000000", code)
}
