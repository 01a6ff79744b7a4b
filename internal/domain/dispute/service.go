package dispute

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nestora/nestora-api/internal/domain/hold"
	"github.com/nestora/nestora-api/internal/pkg/payrail"
)

// Holds is the slice of the hold service a dispute needs: reading the
// underlying hold and paying it out once the case goes the payee's way.
type Holds interface {
	Get(ctx context.Context, id uuid.UUID) (*hold.Hold, error)
	ReleaseResolved(ctx context.Context, holdID uuid.UUID, destination string) (*hold.ReleaseReceipt, error)
}

// RefundDestinations resolves where a payer refund should land.
type RefundDestinations interface {
	RefundToken(ctx context.Context, payerID uuid.UUID) (string, error)
}

type Notifier interface {
	DisputeOpened(payeeID uuid.UUID, caseNumber string, amount int64, respondBy time.Time)
	DisputeResolved(accountID uuid.UUID, caseNumber string, outcome string, refund int64)
}

// Config carries the adjudication knobs.
type Config struct {
	MaxCoveragePerCase int64         // per-case refund ceiling, cents
	ResponseTTL        time.Duration // payee response deadline from filing
	ResolveTTL         time.Duration // target resolution deadline from filing
	ReviewThreshold    int           // upheld cases before an account is flagged
	ReviewWindow       time.Duration // lookback for the threshold
}

type Service struct {
	repo         Repository
	holds        Holds
	rail         payrail.Provider
	destinations RefundDestinations
	notifier     Notifier
	cfg          Config

	now func() time.Time
}

func NewService(repo Repository, holds Holds, rail payrail.Provider, destinations RefundDestinations, notifier Notifier, cfg Config) *Service {
	if cfg.ReviewThreshold <= 0 {
		cfg.ReviewThreshold = 3
	}
	if cfg.ReviewWindow <= 0 {
		cfg.ReviewWindow = 90 * 24 * time.Hour
	}
	return &Service{
		repo:         repo,
		holds:        holds,
		rail:         rail,
		destinations: destinations,
		notifier:     notifier,
		cfg:          cfg,
		now:          time.Now,
	}
}

// File opens a dispute against a hold. Only allowed while the hold is
// still held and its release date has not passed; the hold flips to
// disputed in the same transaction that records the case.
func (s *Service) File(ctx context.Context, holdID, filedBy uuid.UUID, reason string, evidence json.RawMessage) (*Dispute, error) {
	h, err := s.holds.Get(ctx, holdID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if now.After(h.ReleaseAt) {
		return nil, ErrWindowExpired
	}
	if h.Status != hold.StatusHeld {
		return nil, ErrInvalidState
	}

	d := &Dispute{
		ID:                 uuid.New(),
		HoldID:             holdID,
		FiledBy:            filedBy,
		Reason:             reason,
		Evidence:           evidence,
		Status:             StatusOpen,
		DisputedAmount:     h.Amount,
		EscrowHeld:         true,
		ResponseDeadline:   now.Add(s.cfg.ResponseTTL),
		ResolutionDeadline: now.Add(s.cfg.ResolveTTL),
		CreatedAt:          now,
	}

	if err := s.repo.FileWithHoldTransition(ctx, d); err != nil {
		return nil, err
	}

	log.Info().
		Str("case_number", d.CaseNumber).
		Str("hold_id", holdID.String()).
		Int64("amount", d.DisputedAmount).
		Msg("Dispute filed, hold moved to escrow")

	if s.notifier != nil {
		s.notifier.DisputeOpened(h.PayeeID, d.CaseNumber, d.DisputedAmount, d.ResponseDeadline)
	}
	return d, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Dispute, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetByCaseNumber(ctx context.Context, caseNumber string) (*Dispute, error) {
	return s.repo.GetByCaseNumber(ctx, caseNumber)
}

func (s *Service) ListOpen(ctx context.Context, limit int) ([]Dispute, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.ListOpen(ctx, limit)
}

// Resolve closes an open case. refundAmount only applies to payer
// resolutions; nil means the full disputed amount. The refund is capped
// by the disputed amount and the per-case coverage ceiling.
func (s *Service) Resolve(ctx context.Context, disputeID uuid.UUID, resolution Resolution, refundAmount *int64) (*ResolutionReceipt, error) {
	d, err := s.repo.GetByID(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if d.Status != StatusOpen {
		return nil, ErrAlreadyResolved
	}

	h, err := s.holds.Get(ctx, d.HoldID)
	if err != nil {
		return nil, err
	}

	var receipt *ResolutionReceipt
	switch resolution {
	case ResolutionPayer:
		receipt, err = s.resolveForPayer(ctx, d, h, refundAmount)
	case ResolutionPayee:
		receipt, err = s.resolveForPayee(ctx, d, h)
	case ResolutionSplit:
		receipt, err = s.resolveSplit(ctx, d, h)
	default:
		return nil, ErrInvalidResolution
	}
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("case_number", d.CaseNumber).
		Str("resolution", string(resolution)).
		Int64("refund", receipt.RefundAmount).
		Msg("Dispute resolved")

	if s.notifier != nil {
		s.notifier.DisputeResolved(h.PayeeID, d.CaseNumber, string(receipt.Type), receipt.RefundAmount)
		s.notifier.DisputeResolved(h.PayerID, d.CaseNumber, string(receipt.Type), receipt.RefundAmount)
	}
	return receipt, nil
}

// resolveForPayer refunds the payer over the rail, then marks the case
// resolved and the hold refunded atomically. The case number doubles as
// the rail idempotency key so a retried resolution cannot pay twice.
func (s *Service) resolveForPayer(ctx context.Context, d *Dispute, h *hold.Hold, refundAmount *int64) (*ResolutionReceipt, error) {
	requested := d.DisputedAmount
	if refundAmount != nil {
		requested = *refundAmount
	}
	if requested <= 0 || requested > d.DisputedAmount {
		return nil, ErrInvalidRefundAmount
	}
	refund := capRefund(requested, s.cfg.MaxCoveragePerCase)

	rt := ResolutionTypeRefundPartial
	if refund == d.DisputedAmount {
		rt = ResolutionTypeRefundFull
	}

	transferID, err := s.refundPayer(ctx, d, h, refund)
	if err != nil {
		return nil, err
	}

	if err := s.repo.ResolveWithHoldRefund(ctx, d.ID, h.ID, rt, refund, s.now()); err != nil {
		if errors.Is(err, ErrAlreadyResolved) || errors.Is(err, ErrInvalidState) {
			// A concurrent resolution won; the shared idempotency key
			// means our transfer collapsed into theirs.
			return nil, err
		}
		log.Error().Err(err).
			Str("case_number", d.CaseNumber).
			Str("transfer_id", transferID).
			Msg("Refund transfer confirmed but dispute resolution failed, needs reconciliation")
		return nil, err
	}

	return &ResolutionReceipt{
		DisputeID:    d.ID,
		CaseNumber:   d.CaseNumber,
		Resolution:   ResolutionPayer,
		Type:         rt,
		RefundAmount: refund,
		TransferID:   transferID,
	}, nil
}

// resolveForPayee dismisses the case and pays the hold out to the payee
// immediately, bypassing the normal release window. A hold that is
// already released with a recorded transfer means a prior attempt paid
// out but failed to close the case; the retry finishes the close
// against that transfer instead of re-releasing.
func (s *Service) resolveForPayee(ctx context.Context, d *Dispute, h *hold.Hold) (*ResolutionReceipt, error) {
	var transferID string
	if h.Status == hold.StatusReleased && h.TransferID.Valid {
		transferID = h.TransferID.String
	} else {
		rcpt, err := s.holds.ReleaseResolved(ctx, d.HoldID, "")
		if err != nil {
			return nil, err
		}
		transferID = rcpt.TransferID
	}
	if err := s.repo.ResolveOnly(ctx, d.ID, ResolutionTypeDismissed, s.now()); err != nil {
		if errors.Is(err, ErrAlreadyResolved) {
			return nil, err
		}
		log.Error().Err(err).
			Str("case_number", d.CaseNumber).
			Str("transfer_id", transferID).
			Msg("Payout confirmed but dispute resolution failed, needs reconciliation")
		return nil, err
	}
	return &ResolutionReceipt{
		DisputeID:  d.ID,
		CaseNumber: d.CaseNumber,
		Resolution: ResolutionPayee,
		Type:       ResolutionTypeDismissed,
		TransferID: transferID,
	}, nil
}

// resolveSplit refunds half of the disputed amount to the payer (capped
// by coverage) and reports the remainder in the receipt. Paying the
// remainder out is the caller's call, the hold itself ends refunded.
func (s *Service) resolveSplit(ctx context.Context, d *Dispute, h *hold.Hold) (*ResolutionReceipt, error) {
	refund := capRefund(d.DisputedAmount/2, s.cfg.MaxCoveragePerCase)
	if refund <= 0 {
		return nil, ErrInvalidRefundAmount
	}

	transferID, err := s.refundPayer(ctx, d, h, refund)
	if err != nil {
		return nil, err
	}

	if err := s.repo.ResolveWithHoldRefund(ctx, d.ID, h.ID, ResolutionTypeMediatedAgreement, refund, s.now()); err != nil {
		return nil, err
	}

	return &ResolutionReceipt{
		DisputeID:    d.ID,
		CaseNumber:   d.CaseNumber,
		Resolution:   ResolutionSplit,
		Type:         ResolutionTypeMediatedAgreement,
		RefundAmount: refund,
		Remainder:    d.DisputedAmount - refund,
		TransferID:   transferID,
	}, nil
}

func (s *Service) refundPayer(ctx context.Context, d *Dispute, h *hold.Hold, amount int64) (string, error) {
	token, err := s.destinations.RefundToken(ctx, h.PayerID)
	if err != nil {
		return "", err
	}
	result, err := s.rail.Transfer(ctx, payrail.TransferRequest{
		Destination:    token,
		Amount:         amount,
		IdempotencyKey: d.CaseNumber,
		Metadata: map[string]string{
			"kind":        "dispute_refund",
			"case_number": d.CaseNumber,
			"hold_id":     h.ID.String(),
		},
	})
	if err != nil {
		return "", err
	}
	return result.ID, nil
}

// ComplaintStanding reports how many cases were upheld against a payee
// within the review window and whether that crosses the review
// threshold. Advisory only, nothing is blocked here.
func (s *Service) ComplaintStanding(ctx context.Context, payeeID uuid.UUID) (int, bool, error) {
	since := s.now().Add(-s.cfg.ReviewWindow)
	count, err := s.repo.CountUpheldAgainst(ctx, payeeID, since)
	if err != nil {
		return 0, false, err
	}
	return count, count >= s.cfg.ReviewThreshold, nil
}

func capRefund(requested, ceiling int64) int64 {
	if ceiling > 0 && requested > ceiling {
		return ceiling
	}
	return requested
}
