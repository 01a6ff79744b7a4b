package usage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// Repository persists per-account feature counters. All writes are
// single-statement upserts so concurrent increments never lose updates.
type Repository interface {
	// Increment bumps the counter by one and returns the new value.
	Increment(ctx context.Context, accountID uuid.UUID, f Feature, period string) (int64, error)
	// Decrement lowers the counter by one, clamping at zero.
	Decrement(ctx context.Context, accountID uuid.UUID, f Feature) (int64, error)
	Get(ctx context.Context, accountID uuid.UUID, f Feature) (int64, error)
	GetAll(ctx context.Context, accountID uuid.UUID) (map[Feature]int64, error)
	SetValue(ctx context.Context, accountID uuid.UUID, f Feature, value int64, period string) error
	// ResetMonthly zeroes the given features for every account that has
	// not yet been reset for the period. Re-running with the same period
	// touches nothing.
	ResetMonthly(ctx context.Context, period string, features []Feature) (int64, error)
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) Increment(ctx context.Context, accountID uuid.UUID, f Feature, period string) (int64, error) {
	var value int64
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO usage_counters (account_id, feature, value, reset_period, updated_at)
		 VALUES ($1, $2, 1, $3, NOW())
		 ON CONFLICT (account_id, feature)
		 DO UPDATE SET value = usage_counters.value + 1, updated_at = NOW()
		 RETURNING value`,
		accountID, f, period).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("increment %s: %w", f, err)
	}
	return value, nil
}

func (r *postgresRepository) Decrement(ctx context.Context, accountID uuid.UUID, f Feature) (int64, error) {
	var value int64
	err := r.db.QueryRowxContext(ctx,
		`UPDATE usage_counters
		 SET value = GREATEST(value - 1, 0), updated_at = NOW()
		 WHERE account_id = $1 AND feature = $2
		 RETURNING value`,
		accountID, f).Scan(&value)
	// No row yet means the counter is already at its floor.
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("decrement %s: %w", f, err)
	}
	return value, nil
}

func (r *postgresRepository) Get(ctx context.Context, accountID uuid.UUID, f Feature) (int64, error) {
	var value int64
	err := r.db.GetContext(ctx, &value,
		`SELECT COALESCE(
			(SELECT value FROM usage_counters WHERE account_id = $1 AND feature = $2), 0)`,
		accountID, f)
	if err != nil {
		return 0, fmt.Errorf("get counter %s: %w", f, err)
	}
	return value, nil
}

func (r *postgresRepository) GetAll(ctx context.Context, accountID uuid.UUID) (map[Feature]int64, error) {
	rows := []Counter{}
	err := r.db.SelectContext(ctx, &rows,
		`SELECT account_id, feature, value, reset_period, updated_at
		 FROM usage_counters WHERE account_id = $1`,
		accountID)
	if err != nil {
		return nil, fmt.Errorf("get counters: %w", err)
	}
	out := make(map[Feature]int64, len(rows))
	for _, c := range rows {
		out[c.Feature] = c.Value
	}
	return out, nil
}

func (r *postgresRepository) SetValue(ctx context.Context, accountID uuid.UUID, f Feature, value int64, period string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO usage_counters (account_id, feature, value, reset_period, updated_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (account_id, feature)
		 DO UPDATE SET value = $3, updated_at = NOW()`,
		accountID, f, value, period)
	if err != nil {
		return fmt.Errorf("set counter %s: %w", f, err)
	}
	return nil
}

func (r *postgresRepository) ResetMonthly(ctx context.Context, period string, features []Feature) (int64, error) {
	names := make([]string, len(features))
	for i, f := range features {
		names[i] = string(f)
	}
	res, err := r.db.ExecContext(ctx,
		`UPDATE usage_counters
		 SET value = 0, reset_period = $1, updated_at = NOW()
		 WHERE feature = ANY($2) AND reset_period <> $1`,
		period, pq.Array(names))
	if err != nil {
		return 0, fmt.Errorf("reset monthly counters: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset monthly counters: %w", err)
	}
	return rows, nil
}
