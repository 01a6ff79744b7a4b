package payrail

import (
	"context"
	"errors"
)

// Transfer statuses reported by the rail.
const (
	StatusConfirmed = "confirmed"
	StatusFailed    = "failed"
	StatusPending   = "pending"
)

var (
	// ErrUnconfirmed means the transfer outcome is unknown (timeout, 5xx,
	// connection reset). Callers must NOT commit a released/refunded state
	// on this error; they retry later with the same idempotency key.
	ErrUnconfirmed = errors.New("transfer outcome unconfirmed")

	// ErrTransferFailed means the rail rejected the transfer outright.
	ErrTransferFailed = errors.New("transfer rejected by payment rail")
)

// Provider moves money out of the platform-custodied pool. Every call
// carries an idempotency key so a retry after ErrUnconfirmed cannot
// double-pay.
type Provider interface {
	// Transfer sends amount (in cents) to destination. It must report
	// success or failure unambiguously; anything ambiguous surfaces as
	// ErrUnconfirmed.
	Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error)

	// Name returns the provider identifier.
	Name() string
}

// TransferRequest is a standardized payout/refund instruction.
type TransferRequest struct {
	Destination    string            // rail-specific destination token
	Amount         int64             // cents
	IdempotencyKey string            // hold ID or dispute case number
	Metadata       map[string]string // audit context, passed through
}

// TransferResult is the rail's confirmation record.
type TransferResult struct {
	ID     string // rail-side transfer identifier
	Status string // confirmed | failed | pending
}
