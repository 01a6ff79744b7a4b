package hold

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Repository defines hold data access
type Repository interface {
	Create(ctx context.Context, h *Hold) error
	GetByID(ctx context.Context, id uuid.UUID) (*Hold, error)

	// TransitionReleased moves a hold from `from` to released and records
	// the rail transfer. Returns ErrInvalidState if the hold is no longer
	// in `from` (a concurrent dispute filing or double release).
	TransitionReleased(ctx context.Context, id uuid.UUID, from Status, transferID string) error

	// ListEligible returns held holds whose release window has lapsed.
	ListEligible(ctx context.Context, now time.Time, limit int) ([]Hold, error)
}

type repository struct {
	db *sqlx.DB
}

// NewRepository creates hold repository
func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, h *Hold) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO holds (id, payee_id, payer_id, amount, source_id, status, release_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, h.ID, h.PayeeID, h.PayerID, h.Amount, h.SourceID, string(h.Status), h.ReleaseAt)
	return err
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Hold, error) {
	var h Hold
	err := r.db.GetContext(ctx, &h, `
		SELECT id, payee_id, payer_id, amount, source_id, status, release_at, transfer_id, created_at, updated_at
		FROM holds
		WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (r *repository) TransitionReleased(ctx context.Context, id uuid.UUID, from Status, transferID string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE holds
		SET status = 'released', transfer_id = $1, updated_at = now()
		WHERE id = $2 AND status = $3
	`, transferID, id, string(from))
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		var exists bool
		if checkErr := r.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM holds WHERE id = $1)`, id); checkErr != nil {
			return checkErr
		}
		if !exists {
			return ErrNotFound
		}
		return ErrInvalidState
	}
	return nil
}

func (r *repository) ListEligible(ctx context.Context, now time.Time, limit int) ([]Hold, error) {
	var holds []Hold
	err := r.db.SelectContext(ctx, &holds, `
		SELECT id, payee_id, payer_id, amount, source_id, status, release_at, transfer_id, created_at, updated_at
		FROM holds
		WHERE status = 'held' AND release_at <= $1
		ORDER BY release_at ASC
		LIMIT $2
	`, now, limit)
	return holds, err
}
