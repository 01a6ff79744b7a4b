package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Repository is the notification audit log.
type Repository interface {
	Create(ctx context.Context, r *Record) error
	ListByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]Record, error)
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) Create(ctx context.Context, rec *Record) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notifications (id, account_id, kind, dedup_key, sent_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		rec.ID, rec.AccountID, rec.Kind, rec.DedupKey, rec.SentAt)
	if err != nil {
		return fmt.Errorf("insert notification record: %w", err)
	}
	return nil
}

func (r *postgresRepository) ListByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]Record, error) {
	records := []Record{}
	err := r.db.SelectContext(ctx, &records,
		`SELECT id, account_id, kind, dedup_key, sent_at
		 FROM notifications
		 WHERE account_id = $1
		 ORDER BY sent_at DESC
		 LIMIT $2`,
		accountID, limit)
	if err != nil {
		return nil, fmt.Errorf("list notification records: %w", err)
	}
	return records, nil
}
