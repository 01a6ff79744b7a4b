package account

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Repository defines read-only account lookups
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Account, error)
	GetTier(ctx context.Context, id uuid.UUID) (Tier, error)
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates account repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Account, error) {
	query := `
		SELECT id, email, display_name, kind, tier, payout_token, created_at, updated_at
		FROM accounts
		WHERE id = $1
	`
	var acc Account
	err := r.db.GetContext(ctx, &acc, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func (r *repository) GetTier(ctx context.Context, id uuid.UUID) (Tier, error) {
	var tier Tier
	err := r.db.GetContext(ctx, &tier, `SELECT tier FROM accounts WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return tier, nil
}
