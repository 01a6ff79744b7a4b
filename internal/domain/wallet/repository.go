package wallet

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type Repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) *Repository {
	return &Repository{db: db}
}

// EnsureWallet lazily creates the wallet row on first touch.
func (r *Repository) EnsureWallet(ctx context.Context, accountID uuid.UUID) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO wallets (account_id, available_balance, pending_balance)
		VALUES ($1, 0, 0)
		ON CONFLICT (account_id) DO NOTHING
	`, accountID)
	return err
}

func (r *Repository) GetBalance(ctx context.Context, accountID uuid.UUID) (*Balance, error) {
	if err := r.EnsureWallet(ctx, accountID); err != nil {
		return nil, err
	}

	var w Wallet
	err := r.db.GetContext(ctx, &w, `
		SELECT account_id, available_balance, pending_balance, updated_at
		FROM wallets WHERE account_id = $1
	`, accountID)
	if err != nil {
		return nil, err
	}
	return &Balance{
		Available: w.AvailableBalance,
		Pending:   w.PendingBalance,
		Total:     w.AvailableBalance + w.PendingBalance,
	}, nil
}

func (r *Repository) beginTx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
}

func (r *Repository) lockWallet(ctx context.Context, tx *sqlx.Tx, accountID uuid.UUID) (*Wallet, error) {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO wallets (account_id, available_balance, pending_balance)
		VALUES ($1, 0, 0)
		ON CONFLICT (account_id) DO NOTHING
	`, accountID); err != nil {
		return nil, err
	}

	var w Wallet
	err := tx.GetContext(ctx, &w, `
		SELECT account_id, available_balance, pending_balance, updated_at
		FROM wallets WHERE account_id = $1 FOR UPDATE
	`, accountID)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *Repository) getByReference(ctx context.Context, q sqlx.QueryerContext, referenceID string) (*Transaction, bool, error) {
	var txn Transaction
	err := sqlx.GetContext(ctx, q, &txn, `
		SELECT id, account_id, amount, type, status, reference_id, available_at, metadata, completed_at, created_at
		FROM wallet_transactions
		WHERE reference_id = $1
		LIMIT 1
	`, referenceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &txn, true, nil
}

// Credit records a pending credit and bumps pendingBalance in one
// transaction. reference_id carries a unique constraint: a retried webhook
// with the same reference and amount returns the original row instead of
// double-crediting; a different amount under the same reference is a
// conflict.
func (r *Repository) Credit(ctx context.Context, accountID uuid.UUID, amount int64, availableAt time.Time, referenceID string, metadata json.RawMessage) (*Transaction, error) {
	tx, err := r.beginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := r.lockWallet(ctx, tx, accountID); err != nil {
		return nil, err
	}

	existing, exists, err := r.getByReference(ctx, tx, referenceID)
	if err != nil {
		return nil, err
	}
	if exists {
		if existing.Amount != amount || existing.AccountID != accountID {
			return nil, ErrReferenceConflict
		}
		return existing, nil
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE wallets
		SET pending_balance = pending_balance + $1, updated_at = now()
		WHERE account_id = $2
	`, amount, accountID); err != nil {
		return nil, err
	}

	txn := &Transaction{
		ID:          uuid.New(),
		AccountID:   accountID,
		Amount:      amount,
		Type:        TransactionTypeCredit,
		Status:      TransactionStatusPending,
		ReferenceID: referenceID,
		AvailableAt: sql.NullTime{Time: availableAt, Valid: true},
		Metadata:    metadata,
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO wallet_transactions (id, account_id, amount, type, status, reference_id, available_at, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, txn.ID, txn.AccountID, txn.Amount, string(txn.Type), string(txn.Status), txn.ReferenceID, txn.AvailableAt, nullableJSON(metadata))
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			// Lost a race with a concurrent credit for the same reference.
			existing, exists, checkErr := r.getByReference(ctx, r.db, referenceID)
			if checkErr != nil {
				return nil, checkErr
			}
			if !exists || existing.Amount != amount || existing.AccountID != accountID {
				return nil, ErrReferenceConflict
			}
			return existing, nil
		}
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return txn, nil
}

// ReleasePending flips a pending credit to completed and moves its amount
// from pendingBalance to availableBalance atomically. The status flip is a
// conditional update, so two concurrent releases cannot both succeed.
func (r *Repository) ReleasePending(ctx context.Context, transactionID uuid.UUID) (*Transaction, error) {
	tx, err := r.beginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var txn Transaction
	err = tx.GetContext(ctx, &txn, `
		UPDATE wallet_transactions
		SET status = 'completed', completed_at = now()
		WHERE id = $1 AND status = 'pending'
		RETURNING id, account_id, amount, type, status, reference_id, available_at, metadata, completed_at, created_at
	`, transactionID)
	if errors.Is(err, sql.ErrNoRows) {
		// Distinguish "doesn't exist" from "exists but not pending".
		var exists bool
		if checkErr := r.db.GetContext(ctx, &exists, `
			SELECT EXISTS (SELECT 1 FROM wallet_transactions WHERE id = $1)
		`, transactionID); checkErr != nil {
			return nil, checkErr
		}
		if !exists {
			return nil, ErrNotFound
		}
		return nil, ErrNotPending
	}
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE wallets
		SET pending_balance = pending_balance - $1,
		    available_balance = available_balance + $1,
		    updated_at = now()
		WHERE account_id = $2
	`, txn.Amount, txn.AccountID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &txn, nil
}

// GetTransaction fetches one ledger entry.
func (r *Repository) GetTransaction(ctx context.Context, id uuid.UUID) (*Transaction, error) {
	var txn Transaction
	err := r.db.GetContext(ctx, &txn, `
		SELECT id, account_id, amount, type, status, reference_id, available_at, metadata, completed_at, created_at
		FROM wallet_transactions
		WHERE id = $1
	`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// ListPending returns an account's pending credits, oldest first.
func (r *Repository) ListPending(ctx context.Context, accountID uuid.UUID) ([]Transaction, error) {
	var txns []Transaction
	err := r.db.SelectContext(ctx, &txns, `
		SELECT id, account_id, amount, type, status, reference_id, available_at, metadata, completed_at, created_at
		FROM wallet_transactions
		WHERE account_id = $1 AND status = 'pending'
		ORDER BY created_at ASC
	`, accountID)
	return txns, err
}

// ListPendingDue returns pending credits whose hold has lapsed, for the
// settlement worker to release.
func (r *Repository) ListPendingDue(ctx context.Context, now time.Time, limit int) ([]Transaction, error) {
	var txns []Transaction
	err := r.db.SelectContext(ctx, &txns, `
		SELECT id, account_id, amount, type, status, reference_id, available_at, metadata, completed_at, created_at
		FROM wallet_transactions
		WHERE status = 'pending' AND available_at <= $1
		ORDER BY available_at ASC
		LIMIT $2
	`, now, limit)
	return txns, err
}

func nullableJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
