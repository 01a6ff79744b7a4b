package dispute

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Repository persists disputes and their coupled hold transitions.
type Repository interface {
	// FileWithHoldTransition atomically flips the hold from held to
	// disputed, allocates the day's case sequence and inserts the
	// dispute. Returns ErrInvalidState when the hold already left the
	// held state.
	FileWithHoldTransition(ctx context.Context, d *Dispute) error
	GetByID(ctx context.Context, id uuid.UUID) (*Dispute, error)
	GetByCaseNumber(ctx context.Context, caseNumber string) (*Dispute, error)
	// ResolveWithHoldRefund marks an open dispute resolved and moves the
	// hold from disputed to refunded in one transaction.
	ResolveWithHoldRefund(ctx context.Context, disputeID, holdID uuid.UUID, rt ResolutionType, refunded int64, resolvedAt time.Time) error
	// ResolveOnly marks an open dispute resolved without touching the
	// hold (the hold transition happened elsewhere, e.g. a release).
	ResolveOnly(ctx context.Context, disputeID uuid.UUID, rt ResolutionType, resolvedAt time.Time) error
	ListOpen(ctx context.Context, limit int) ([]Dispute, error)
	// CountUpheldAgainst counts resolved disputes since the cutoff where
	// money moved back to the payer, keyed by the hold's payee.
	CountUpheldAgainst(ctx context.Context, payeeID uuid.UUID, since time.Time) (int, error)
}

type postgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

func (r *postgresRepository) FileWithHoldTransition(ctx context.Context, d *Dispute) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE holds SET status = 'disputed', updated_at = NOW() WHERE id = $1 AND status = 'held'`,
		d.HoldID)
	if err != nil {
		return fmt.Errorf("transition hold: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transition hold: %w", err)
	}
	if rows == 0 {
		return ErrInvalidState
	}

	// Per-day sequence backing the DSP-YYYYMMDD-NNNN case number.
	day := d.CreatedAt.UTC().Format("20060102")
	var seq int
	err = tx.QueryRowxContext(ctx,
		`INSERT INTO dispute_case_counters (day, counter) VALUES ($1, 1)
		 ON CONFLICT (day) DO UPDATE SET counter = dispute_case_counters.counter + 1
		 RETURNING counter`,
		day).Scan(&seq)
	if err != nil {
		return fmt.Errorf("allocate case number: %w", err)
	}
	d.CaseNumber = fmt.Sprintf("DSP-%s-%04d", day, seq)

	_, err = tx.ExecContext(ctx,
		`INSERT INTO disputes (
			id, hold_id, case_number, filed_by, reason, evidence, status,
			disputed_amount, escrow_held, refunded_amount,
			response_deadline, resolution_deadline, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		d.ID, d.HoldID, d.CaseNumber, d.FiledBy, d.Reason, nullableJSON(d.Evidence),
		d.Status, d.DisputedAmount, d.EscrowHeld, d.RefundedAmount,
		d.ResponseDeadline, d.ResolutionDeadline, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert dispute: %w", err)
	}

	return tx.Commit()
}

func (r *postgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Dispute, error) {
	var d Dispute
	err := r.db.GetContext(ctx, &d, `SELECT * FROM disputes WHERE id = $1`, id)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get dispute: %w", err)
	}
	return &d, nil
}

func (r *postgresRepository) GetByCaseNumber(ctx context.Context, caseNumber string) (*Dispute, error) {
	var d Dispute
	err := r.db.GetContext(ctx, &d, `SELECT * FROM disputes WHERE case_number = $1`, caseNumber)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get dispute by case number: %w", err)
	}
	return &d, nil
}

func (r *postgresRepository) ResolveWithHoldRefund(ctx context.Context, disputeID, holdID uuid.UUID, rt ResolutionType, refunded int64, resolvedAt time.Time) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := resolveOpen(ctx, tx, disputeID, rt, refunded, resolvedAt); err != nil {
		return err
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE holds SET status = 'refunded', updated_at = NOW() WHERE id = $1 AND status = 'disputed'`,
		holdID)
	if err != nil {
		return fmt.Errorf("refund hold: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("refund hold: %w", err)
	}
	if rows == 0 {
		return ErrInvalidState
	}

	return tx.Commit()
}

func (r *postgresRepository) ResolveOnly(ctx context.Context, disputeID uuid.UUID, rt ResolutionType, resolvedAt time.Time) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := resolveOpen(ctx, tx, disputeID, rt, 0, resolvedAt); err != nil {
		return err
	}
	return tx.Commit()
}

// resolveOpen is the status-guarded write shared by both resolve paths.
// Zero rows means someone else resolved the case first.
func resolveOpen(ctx context.Context, tx *sqlx.Tx, disputeID uuid.UUID, rt ResolutionType, refunded int64, resolvedAt time.Time) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE disputes
		 SET status = 'resolved', resolution_type = $1, refunded_amount = $2,
		     escrow_held = FALSE, resolved_at = $3
		 WHERE id = $4 AND status = 'open'`,
		rt, refunded, resolvedAt, disputeID)
	if err != nil {
		return fmt.Errorf("resolve dispute: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("resolve dispute: %w", err)
	}
	if rows == 0 {
		var exists bool
		if err := tx.GetContext(ctx, &exists,
			`SELECT EXISTS(SELECT 1 FROM disputes WHERE id = $1)`, disputeID); err != nil {
			return fmt.Errorf("check dispute: %w", err)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrAlreadyResolved
	}
	return nil
}

func (r *postgresRepository) ListOpen(ctx context.Context, limit int) ([]Dispute, error) {
	disputes := []Dispute{}
	err := r.db.SelectContext(ctx, &disputes,
		`SELECT * FROM disputes WHERE status = 'open' ORDER BY created_at ASC LIMIT $1`,
		limit)
	if err != nil {
		return nil, fmt.Errorf("list open disputes: %w", err)
	}
	return disputes, nil
}

func (r *postgresRepository) CountUpheldAgainst(ctx context.Context, payeeID uuid.UUID, since time.Time) (int, error) {
	var count int
	err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*)
		 FROM disputes d
		 JOIN holds h ON h.id = d.hold_id
		 WHERE h.payee_id = $1
		   AND d.status = 'resolved'
		   AND d.refunded_amount > 0
		   AND d.resolved_at >= $2`,
		payeeID, since)
	if err != nil {
		return 0, fmt.Errorf("count upheld disputes: %w", err)
	}
	return count, nil
}

func nullableJSON(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
