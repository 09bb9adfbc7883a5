package codegen

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"codemint/internal/core/apperror"
	"codemint/internal/core/clock"
	"codemint/internal/core/entropy"
	"codemint/internal/core/pattern"
	"codemint/internal/core/sequence"
	"codemint/internal/core/tx"
	"codemint/pkg/logger"
)

// fillChar pads codes up to the configured total length.
const fillChar = "0"

// dailyDateKeyLayout partitions counters for patterns without a DATE
// placeholder.
const dailyDateKeyLayout = "2006-01-02"

// errConflict aborts the reservation transaction on a lost
// conditional update. It never leaves this package: the retry loop
// turns it back into a plain branch.
var errConflict = errors.New("sequence reservation conflict")

// Service orchestrates code generation and confirmation. Stateless
// beyond its collaborators; any number of instances can share one store.
type Service struct {
	store   ConfigStore
	alloc   sequence.Allocator
	txm     tx.Manager
	clock   clock.Clock
	entropy entropy.Source
}

// NewService creates a new code generation service.
func NewService(
	store ConfigStore,
	alloc sequence.Allocator,
	txm tx.Manager,
	clk clock.Clock,
	src entropy.Source,
) *Service {
	return &Service{
		store:   store,
		alloc:   alloc,
		txm:     txm,
		clock:   clk,
		entropy: src,
	}
}

// Generate produces a code from the default pattern with optional
// per-call overrides. See GenerateFor.
func (s *Service) Generate(ctx context.Context, ov Overrides) (string, error) {
	return s.GenerateFor(ctx, "", ov)
}

// GenerateFor produces a code for a named pattern key, a raw template
// (recognized by a '{' character), or the default pattern when selector
// is empty. Overrides apply on top of the resolved configuration.
//
// Sequential patterns reserve the next counter value inside a
// transaction; on reservation conflict the whole attempt is retried
// with exponential backoff up to the configured attempt budget.
func (s *Service) GenerateFor(ctx context.Context, selector string, ov Overrides) (string, error) {
	cfg, err := resolveConfig(s.store, selector, ov)
	if err != nil {
		return "", err
	}

	if !cfg.Sequential {
		// No counter involved, nothing can conflict.
		code, err := cfg.Pattern.Format(s.formatValues(cfg, s.clock.Now(), 0))
		if err != nil {
			return "", fmt.Errorf("format code: %w", err)
		}
		return finalizeCode(code, cfg.TotalLength), nil
	}

	var lastConflict error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		now := s.clock.Now()
		key := s.counterKey(cfg, now)

		code, conflict, err := s.reserveAndFormat(ctx, cfg, key, now)
		if err != nil {
			return "", err
		}
		if !conflict {
			return finalizeCode(code, cfg.TotalLength), nil
		}

		lastConflict = fmt.Errorf("%w: key=%s/%s/%s attempt=%d",
			errConflict, key.DateKey, key.Type, key.Location, attempt)
		logger.Debug(ctx, "sequence reservation conflict",
			"date_key", key.DateKey,
			"type", key.Type,
			"location", key.Location,
			"attempt", attempt,
		)

		if attempt < cfg.MaxAttempts {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoffDelay(cfg.RetryDelay, attempt)):
			}
		}
	}

	return "", apperror.NewAllocationExhausted(cfg.MaxAttempts, lastConflict)
}

// ConfirmUsage confirms a code generated from the default pattern as
// actually used. See ConfirmUsageFor.
func (s *Service) ConfirmUsage(ctx context.Context, code string) (bool, error) {
	return s.ConfirmUsageFor(ctx, "", code)
}

// ConfirmUsageFor parses code against the selected pattern, recovers
// type, location and sequence, and commits the matching reservation.
// Non-sequential patterns confirm trivially. A late or repeated
// confirmation returns false without error.
func (s *Service) ConfirmUsageFor(ctx context.Context, selector string, code string) (bool, error) {
	cfg, err := resolveConfig(s.store, selector, Overrides{})
	if err != nil {
		return false, err
	}

	components, err := cfg.Pattern.Parse(code)
	if err != nil {
		if errors.Is(err, pattern.ErrMismatch) {
			return false, apperror.NewPatternMismatch(code).WithCause(err)
		}
		return false, fmt.Errorf("parse code: %w", err)
	}

	if !cfg.Sequential {
		// Non-sequential codes need no bookkeeping.
		return true, nil
	}

	raw, ok := components[pattern.KindSequence]
	if !ok {
		// Sequential config but the pattern renders no sequence; there
		// is no value to confirm.
		return false, nil
	}
	value, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return false, fmt.Errorf("parse sequence component %q: %w", raw, err)
	}

	// TYPE and LOCATION are back-filled from the effective config when
	// the pattern does not carry them, so the counter key is always
	// complete.
	key := s.counterKey(cfg, s.clock.Now())
	if v, ok := components[pattern.KindType]; ok {
		key.Type = strings.ToUpper(v)
	}
	if v, ok := components[pattern.KindLocation]; ok {
		key.Location = strings.ToUpper(v)
	}

	var confirmed bool
	err = s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		var cerr error
		confirmed, cerr = s.alloc.Confirm(ctx, key, value)
		return cerr
	})
	if err != nil {
		return false, fmt.Errorf("confirm sequence %d: %w", value, err)
	}

	if confirmed {
		logger.Info(ctx, "code usage confirmed",
			"code", code,
			"sequence", value,
			"date_key", key.DateKey,
		)
	}
	return confirmed, nil
}

// reserveAndFormat runs one allocation attempt. Reservation and
// formatting share a transaction so the reserved value commits together
// with the generated code. A conflict rolls the transaction back and is
// reported as a value.
func (s *Service) reserveAndFormat(ctx context.Context, cfg GenerationConfig, key sequence.Key, now time.Time) (string, bool, error) {
	var code string

	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		outcome, err := s.alloc.Reserve(ctx, key)
		if err != nil {
			return fmt.Errorf("reserve sequence: %w", err)
		}
		if outcome.Conflict {
			return errConflict
		}

		code, err = cfg.Pattern.Format(s.formatValues(cfg, now, outcome.Value))
		if err != nil {
			return fmt.Errorf("format code: %w", err)
		}
		return nil
	})

	if errors.Is(err, errConflict) {
		return "", true, nil
	}
	if err != nil {
		return "", false, err
	}
	return code, false, nil
}

func (s *Service) formatValues(cfg GenerationConfig, now time.Time, seq uint64) pattern.FormatValues {
	return pattern.FormatValues{
		Type:          cfg.Type,
		Location:      cfg.Location,
		Now:           now,
		Sequence:      seq,
		Sequential:    cfg.Sequential,
		SequenceWidth: cfg.SequenceWidth,
		DateFormat:    cfg.DateFormat,
		TimeFormat:    cfg.TimeFormat,
		Entropy:       s.entropy,
	}
}

// counterKey derives the counter partition for cfg at the given time.
// A DATE placeholder ties the counter's reset cadence to the same
// granularity the pattern exposes; otherwise counters reset daily.
func (s *Service) counterKey(cfg GenerationConfig, now time.Time) sequence.Key {
	layout := dailyDateKeyLayout
	if param, ok := cfg.Pattern.DateParam(); ok {
		format := param
		if format == "" {
			format = cfg.DateFormat
		}
		l, valid := pattern.DateLayout(format)
		if !valid {
			// Un-parseable placeholder format: fall back to the
			// configured default rather than failing.
			l, _ = pattern.DateLayout(cfg.DateFormat)
		}
		layout = l
	}

	return sequence.Key{
		DateKey:  now.Format(layout),
		Type:     cfg.Type,
		Location: cfg.Location,
	}
}

// backoffDelay computes base * 2^(attempt-1) plus jitter in [0, base/2).
func backoffDelay(base time.Duration, attempt int) time.Duration {
	delay := base << (attempt - 1)
	if base >= 2 {
		delay += time.Duration(rand.Int63n(int64(base / 2)))
	}
	return delay
}

// finalizeCode normalizes a formatted code to the target length: pads
// on the right with the fill character or truncates. Zero target leaves
// the code untouched; a code already at the target length is returned
// unchanged.
func finalizeCode(code string, totalLength int) string {
	if totalLength <= 0 || len(code) == totalLength {
		return code
	}
	if len(code) > totalLength {
		return code[:totalLength]
	}
	return code + strings.Repeat(fillChar, totalLength-len(code))
}
