package hold

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Status is the hold lifecycle state. Transitions are monotonic:
// held -> released | disputed, disputed -> refunded | released.
type Status string

const (
	StatusHeld     Status = "held"
	StatusReleased Status = "released"
	StatusDisputed Status = "disputed"
	StatusRefunded Status = "refunded"
)

// Hold is a job-guarantee reservation against a completed transaction.
// Never deleted; it is a financial audit record.
type Hold struct {
	ID         uuid.UUID      `db:"id" json:"id"`
	PayeeID    uuid.UUID      `db:"payee_id" json:"payee_id"`
	PayerID    uuid.UUID      `db:"payer_id" json:"payer_id"`
	Amount     int64          `db:"amount" json:"amount"`
	SourceID   string         `db:"source_id" json:"source_id"` // originating job/payment
	Status     Status         `db:"status" json:"status"`
	ReleaseAt  time.Time      `db:"release_at" json:"release_at"`
	TransferID sql.NullString `db:"transfer_id" json:"transfer_id,omitempty"` // rail transfer, set on release
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
}

// ReleaseReceipt confirms a completed payout.
type ReleaseReceipt struct {
	HoldID     uuid.UUID `json:"hold_id"`
	TransferID string    `json:"transfer_id"`
	Amount     int64     `json:"amount"`
	ReleasedAt time.Time `json:"released_at"`
}
