package wallet

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Notifier delivers fire-and-forget payee notifications. Failures are the
// notifier's problem; the ledger mutation never waits on it.
type Notifier interface {
	FundsAvailable(accountID uuid.UUID, amount, available int64)
}

// CreditResult reports a recorded credit and when it matures.
type CreditResult struct {
	Transaction *Transaction `json:"transaction"`
	AvailableAt time.Time    `json:"available_at"`
}

type Service struct {
	repo     *Repository
	notifier Notifier
	now      func() time.Time
}

func NewService(repo *Repository, notifier Notifier) *Service {
	return &Service{repo: repo, notifier: notifier, now: time.Now}
}

// Credit records an incoming payment into pendingBalance. availableAt is
// computed from the per-method business-day schedule. referenceID is the
// idempotency key tied to the originating payment event.
func (s *Service) Credit(ctx context.Context, accountID uuid.UUID, amount int64, method PaymentMethod, referenceID string, metadata json.RawMessage) (*CreditResult, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if referenceID == "" {
		return nil, ErrInvalidAmount
	}

	availableAt, err := AvailableAt(method, s.now())
	if err != nil {
		return nil, err
	}

	txn, err := s.repo.Credit(ctx, accountID, amount, availableAt, referenceID, metadata)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("account_id", accountID.String()).
		Int64("amount", amount).
		Str("method", string(method)).
		Str("reference_id", referenceID).
		Time("available_at", availableAt).
		Msg("wallet credit recorded")

	at := availableAt
	if txn.AvailableAt.Valid {
		at = txn.AvailableAt.Time
	}
	return &CreditResult{Transaction: txn, AvailableAt: at}, nil
}

// ReleasePending matures a pending credit into availableBalance. The caller
// (settlement worker) is responsible for only releasing due transactions.
func (s *Service) ReleasePending(ctx context.Context, transactionID uuid.UUID) error {
	txn, err := s.repo.ReleasePending(ctx, transactionID)
	if err != nil {
		return err
	}

	log.Info().
		Str("transaction_id", txn.ID.String()).
		Str("account_id", txn.AccountID.String()).
		Int64("amount", txn.Amount).
		Msg("pending credit released")

	if s.notifier != nil {
		balance, err := s.repo.GetBalance(ctx, txn.AccountID)
		if err != nil {
			log.Error().Err(err).Str("account_id", txn.AccountID.String()).Msg("balance read for notification failed")
			return nil
		}
		s.notifier.FundsAvailable(txn.AccountID, txn.Amount, balance.Available)
	}
	return nil
}

// GetBalance returns the available/pending/total view for an account.
func (s *Service) GetBalance(ctx context.Context, accountID uuid.UUID) (*Balance, error) {
	return s.repo.GetBalance(ctx, accountID)
}

// ListPending returns an account's unmatured credits.
func (s *Service) ListPending(ctx context.Context, accountID uuid.UUID) ([]Transaction, error) {
	return s.repo.ListPending(ctx, accountID)
}

// ReleaseDue releases every pending credit whose hold has lapsed. Returns
// the number released; individual failures are logged and skipped so one
// bad row cannot stall the batch.
func (s *Service) ReleaseDue(ctx context.Context, limit int) (int, error) {
	due, err := s.repo.ListPendingDue(ctx, s.now(), limit)
	if err != nil {
		return 0, err
	}

	released := 0
	for _, txn := range due {
		if err := s.ReleasePending(ctx, txn.ID); err != nil {
			log.Error().Err(err).Str("transaction_id", txn.ID.String()).Msg("release of due credit failed")
			continue
		}
		released++
	}
	return released, nil
}
