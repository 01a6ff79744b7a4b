package hold

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nestora/nestora-api/internal/pkg/payrail"
)

// PayoutDestinations resolves a payee's rail destination token.
type PayoutDestinations interface {
	PayoutToken(ctx context.Context, payeeID uuid.UUID) (string, error)
}

// Notifier delivers fire-and-forget payee notifications.
type Notifier interface {
	HoldReleased(payeeID uuid.UUID, sourceID string, amount int64)
}

type Service struct {
	repo         Repository
	rail         payrail.Provider
	destinations PayoutDestinations
	notifier     Notifier
	holdWindow   time.Duration
	now          func() time.Time
}

func NewService(repo Repository, rail payrail.Provider, destinations PayoutDestinations, notifier Notifier, holdWindow time.Duration) *Service {
	return &Service{
		repo:         repo,
		rail:         rail,
		destinations: destinations,
		notifier:     notifier,
		holdWindow:   holdWindow,
		now:          time.Now,
	}
}

// Create records a new guarantee hold when a job/payment completes.
func (s *Service) Create(ctx context.Context, payeeID, payerID uuid.UUID, amount int64, sourceID string) (*Hold, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	now := s.now()
	h := &Hold{
		ID:        uuid.New(),
		PayeeID:   payeeID,
		PayerID:   payerID,
		Amount:    amount,
		SourceID:  sourceID,
		Status:    StatusHeld,
		ReleaseAt: now.Add(s.holdWindow),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, h); err != nil {
		return nil, err
	}

	log.Info().
		Str("hold_id", h.ID.String()).
		Str("payee_id", payeeID.String()).
		Int64("amount", amount).
		Time("release_at", h.ReleaseAt).
		Msg("hold created")
	return h, nil
}

// Get returns a hold by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Hold, error) {
	return s.repo.GetByID(ctx, id)
}

// Release pays out a hold whose window has lapsed. Two-phase: the rail
// transfer is attempted first and the hold is only marked released on a
// confirmed transfer. An unconfirmed outcome leaves the hold held; the
// scheduler retries with the same idempotency key (the hold ID), so the
// rail cannot double-pay.
func (s *Service) Release(ctx context.Context, holdID uuid.UUID, destination string) (*ReleaseReceipt, error) {
	h, err := s.repo.GetByID(ctx, holdID)
	if err != nil {
		return nil, err
	}
	if h.Status != StatusHeld {
		return nil, ErrInvalidState
	}
	if s.now().Before(h.ReleaseAt) {
		return nil, ErrNotYetEligible
	}

	return s.payOut(ctx, h, StatusHeld, destination)
}

// ReleaseResolved pays out a disputed hold in the payee's favor. The time
// gate is bypassed; the dispute process has already run its course.
func (s *Service) ReleaseResolved(ctx context.Context, holdID uuid.UUID, destination string) (*ReleaseReceipt, error) {
	h, err := s.repo.GetByID(ctx, holdID)
	if err != nil {
		return nil, err
	}
	if h.Status != StatusDisputed {
		return nil, ErrInvalidState
	}

	return s.payOut(ctx, h, StatusDisputed, destination)
}

func (s *Service) payOut(ctx context.Context, h *Hold, from Status, destination string) (*ReleaseReceipt, error) {
	if destination == "" {
		token, err := s.destinations.PayoutToken(ctx, h.PayeeID)
		if err != nil {
			return nil, err
		}
		if token == "" {
			return nil, ErrNoDestination
		}
		destination = token
	}

	result, err := s.rail.Transfer(ctx, payrail.TransferRequest{
		Destination:    destination,
		Amount:         h.Amount,
		IdempotencyKey: h.ID.String(),
		Metadata: map[string]string{
			"hold_id":   h.ID.String(),
			"source_id": h.SourceID,
			"reason":    "hold_release",
		},
	})
	if err != nil {
		// Unknown or failed outcome: no state change, surfaced for retry.
		log.Warn().Err(err).Str("hold_id", h.ID.String()).Msg("hold payout transfer not confirmed")
		return nil, err
	}

	if err := s.repo.TransitionReleased(ctx, h.ID, from, result.ID); err != nil {
		// The transfer confirmed but the hold moved under us. The rail-side
		// idempotency key prevents double payout on retry; this needs an
		// operator to reconcile.
		log.Error().Err(err).
			Str("hold_id", h.ID.String()).
			Str("transfer_id", result.ID).
			Msg("confirmed transfer but hold transition failed")
		return nil, err
	}

	log.Info().
		Str("hold_id", h.ID.String()).
		Str("transfer_id", result.ID).
		Int64("amount", h.Amount).
		Msg("hold released")

	if s.notifier != nil {
		s.notifier.HoldReleased(h.PayeeID, h.SourceID, h.Amount)
	}

	return &ReleaseReceipt{
		HoldID:     h.ID,
		TransferID: result.ID,
		Amount:     h.Amount,
		ReleasedAt: s.now(),
	}, nil
}

// EligibleForRelease returns held holds past their release window, for the
// settlement worker to poll.
func (s *Service) EligibleForRelease(ctx context.Context, limit int) ([]Hold, error) {
	return s.repo.ListEligible(ctx, s.now(), limit)
}

// ReleaseDue releases every eligible hold to the payee's stored payout
// destination. Individual failures are logged and skipped; unconfirmed
// transfers stay held and are retried on the next pass.
func (s *Service) ReleaseDue(ctx context.Context, limit int) (int, error) {
	eligible, err := s.EligibleForRelease(ctx, limit)
	if err != nil {
		return 0, err
	}

	released := 0
	for _, h := range eligible {
		if _, err := s.Release(ctx, h.ID, ""); err != nil {
			log.Error().Err(err).Str("hold_id", h.ID.String()).Msg("scheduled hold release failed")
			continue
		}
		released++
	}
	return released, nil
}
