// Package counter_repo provides the PostgreSQL repository for sequence
// counters. Reads take a row lock; writes are additionally guarded by a
// value-snapshot condition so a stale writer fails instead of silently
// overwriting a newer reservation.
package counter_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"codemint/internal/core/sequence"
	"codemint/internal/infrastructure/storage/postgres"
)

const countersTable = "code_counters"

// Schema is the DDL for the counters table. One row per distinct
// (date_key, code_type, location); pending is the reserved-but-not-yet-
// confirmed value.
const Schema = `
CREATE TABLE IF NOT EXISTS code_counters (
    date_key   VARCHAR(32)  NOT NULL,
    code_type  VARCHAR(32)  NOT NULL,
    location   VARCHAR(32)  NOT NULL,
    confirmed  BIGINT       NOT NULL DEFAULT 0,
    pending    BIGINT,
    created_at TIMESTAMPTZ  NOT NULL DEFAULT now(),
    updated_at TIMESTAMPTZ  NOT NULL DEFAULT now(),
    PRIMARY KEY (date_key, code_type, location)
)`

// CounterRepo persists sequence counters.
type CounterRepo struct {
	txm *postgres.TxManager
}

// NewCounterRepo creates a new counter repository.
func NewCounterRepo(txm *postgres.TxManager) *CounterRepo {
	return &CounterRepo{txm: txm}
}

// Builder returns a new squirrel builder with PostgreSQL placeholder format.
func (r *CounterRepo) Builder() squirrel.StatementBuilderType {
	return squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
}

// EnsureSchema creates the counters table if it does not exist.
func (r *CounterRepo) EnsureSchema(ctx context.Context) error {
	querier := r.txm.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure %s schema: %w", countersTable, err)
	}
	return nil
}

// GetOrCreateForUpdate returns the counter row for key under a row
// lock, creating it lazily (confirmed=0, pending=NULL) on first use.
// Must run inside a transaction; concurrent readers of the same key
// serialize here.
func (r *CounterRepo) GetOrCreateForUpdate(ctx context.Context, key sequence.Key) (sequence.Counter, error) {
	ctr, found, err := r.getForUpdate(ctx, key)
	if err != nil {
		return ctr, err
	}
	if found {
		return ctr, nil
	}

	if err := r.create(ctx, key); err != nil {
		return ctr, err
	}

	// Re-read under the lock; a concurrent creator may have won the
	// insert, which ON CONFLICT DO NOTHING tolerates.
	ctr, found, err = r.getForUpdate(ctx, key)
	if err != nil {
		return ctr, err
	}
	if !found {
		return ctr, fmt.Errorf("counter %s/%s/%s vanished after insert", key.DateKey, key.Type, key.Location)
	}
	return ctr, nil
}

func (r *CounterRepo) getForUpdate(ctx context.Context, key sequence.Key) (sequence.Counter, bool, error) {
	var ctr sequence.Counter

	sql := `
		SELECT date_key, code_type, location, confirmed, pending, created_at, updated_at
		FROM code_counters
		WHERE date_key = $1 AND code_type = $2 AND location = $3
		FOR UPDATE
	`

	querier := r.txm.GetQuerier(ctx)
	err := pgxscan.Get(ctx, querier, &ctr, sql, key.DateKey, key.Type, key.Location)
	if err != nil {
		if pgxscan.NotFound(err) {
			return ctr, false, nil
		}
		return ctr, false, fmt.Errorf("get counter for update: %w", err)
	}
	return ctr, true, nil
}

func (r *CounterRepo) create(ctx context.Context, key sequence.Key) error {
	q := r.Builder().
		Insert(countersTable).
		Columns("date_key", "code_type", "location", "confirmed").
		Values(key.DateKey, key.Type, key.Location, 0).
		Suffix("ON CONFLICT (date_key, code_type, location) DO NOTHING")

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert counter: %w", err)
	}
	return nil
}

// SetPending writes candidate as the pending reservation, but only
// while the row still matches the snapshot read at lock time. Returns
// false when a concurrent reserver got there first; the caller must
// retry the whole attempt.
func (r *CounterRepo) SetPending(ctx context.Context, snapshot sequence.Counter, candidate uint64) (bool, error) {
	q := r.Builder().
		Update(countersTable).
		Set("pending", candidate).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{
			"date_key":  snapshot.DateKey,
			"code_type": snapshot.Type,
			"location":  snapshot.Location,
			"confirmed": snapshot.Confirmed,
		}).
		Where(squirrel.Expr("pending IS NOT DISTINCT FROM ?", snapshot.Pending))

	sql, args, err := q.ToSql()
	if err != nil {
		return false, fmt.Errorf("build update: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("set pending: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ConfirmPending collapses the pending value into confirmed, but only
// while value is still the currently pending reservation. Returns false
// on a late, repeated, or never-reserved confirmation.
func (r *CounterRepo) ConfirmPending(ctx context.Context, key sequence.Key, value uint64) (bool, error) {
	q := r.Builder().
		Update(countersTable).
		Set("confirmed", value).
		Set("pending", nil).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{
			"date_key":  key.DateKey,
			"code_type": key.Type,
			"location":  key.Location,
			"pending":   value,
		})

	sql, args, err := q.ToSql()
	if err != nil {
		return false, fmt.Errorf("build update: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return false, fmt.Errorf("confirm pending: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}
