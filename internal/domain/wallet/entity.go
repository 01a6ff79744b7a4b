package wallet

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type TransactionType string

const (
	TransactionTypeCredit TransactionType = "credit"
	TransactionTypeDebit  TransactionType = "debit"
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
)

// Wallet is the platform-custodied balance pair for a payee account.
// Both balances are in cents and never go negative.
type Wallet struct {
	AccountID        uuid.UUID `db:"account_id" json:"account_id"`
	AvailableBalance int64     `db:"available_balance" json:"available_balance"`
	PendingBalance   int64     `db:"pending_balance" json:"pending_balance"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// Transaction is an immutable ledger entry. A pending credit always carries
// AvailableAt; the release process flips it to completed exactly once.
type Transaction struct {
	ID          uuid.UUID         `db:"id" json:"id"`
	AccountID   uuid.UUID         `db:"account_id" json:"account_id"`
	Amount      int64             `db:"amount" json:"amount"`
	Type        TransactionType   `db:"type" json:"type"`
	Status      TransactionStatus `db:"status" json:"status"`
	ReferenceID string            `db:"reference_id" json:"reference_id"`
	AvailableAt sql.NullTime      `db:"available_at" json:"available_at,omitempty"`
	Metadata    json.RawMessage   `db:"metadata" json:"metadata,omitempty"`
	CompletedAt sql.NullTime      `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
}

// Balance is the read view returned to callers.
type Balance struct {
	Available int64 `json:"available"`
	Pending   int64 `json:"pending"`
	Total     int64 `json:"total"`
}
