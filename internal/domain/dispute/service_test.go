package dispute

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nestora/nestora-api/internal/domain/hold"
	"github.com/nestora/nestora-api/internal/pkg/payrail"
)

// fixture backs both the dispute repository and the hold service slice
// so state transitions stay coupled the way the real transactions are.
type fixture struct {
	holds            map[uuid.UUID]*hold.Hold
	disputes         map[uuid.UUID]*Dispute
	seq              int
	releasedResolved int
	resolveOnlyErr   error // one-shot injected write failure
}

func newFixture() *fixture {
	return &fixture{
		holds:    make(map[uuid.UUID]*hold.Hold),
		disputes: make(map[uuid.UUID]*Dispute),
	}
}

func (f *fixture) addHold(amount int64, releaseAt time.Time) *hold.Hold {
	h := &hold.Hold{
		ID:        uuid.New(),
		PayeeID:   uuid.New(),
		PayerID:   uuid.New(),
		Amount:    amount,
		SourceID:  "job_1",
		Status:    hold.StatusHeld,
		ReleaseAt: releaseAt,
	}
	f.holds[h.ID] = h
	return h
}

func (f *fixture) FileWithHoldTransition(_ context.Context, d *Dispute) error {
	h, ok := f.holds[d.HoldID]
	if !ok || h.Status != hold.StatusHeld {
		return ErrInvalidState
	}
	h.Status = hold.StatusDisputed
	f.seq++
	d.CaseNumber = "DSP-" + d.CreatedAt.UTC().Format("20060102") + "-" + pad4(f.seq)
	copied := *d
	f.disputes[d.ID] = &copied
	return nil
}

func (f *fixture) GetByID(_ context.Context, id uuid.UUID) (*Dispute, error) {
	d, ok := f.disputes[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *d
	return &copied, nil
}

func (f *fixture) GetByCaseNumber(_ context.Context, caseNumber string) (*Dispute, error) {
	for _, d := range f.disputes {
		if d.CaseNumber == caseNumber {
			copied := *d
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

func (f *fixture) ResolveWithHoldRefund(_ context.Context, disputeID, holdID uuid.UUID, rt ResolutionType, refunded int64, resolvedAt time.Time) error {
	d, ok := f.disputes[disputeID]
	if !ok {
		return ErrNotFound
	}
	if d.Status != StatusOpen {
		return ErrAlreadyResolved
	}
	h, ok := f.holds[holdID]
	if !ok || h.Status != hold.StatusDisputed {
		return ErrInvalidState
	}
	h.Status = hold.StatusRefunded
	d.Status = StatusResolved
	d.ResolutionType.String = string(rt)
	d.ResolutionType.Valid = true
	d.RefundedAmount = refunded
	d.EscrowHeld = false
	d.ResolvedAt.Time = resolvedAt
	d.ResolvedAt.Valid = true
	return nil
}

func (f *fixture) ResolveOnly(_ context.Context, disputeID uuid.UUID, rt ResolutionType, resolvedAt time.Time) error {
	if f.resolveOnlyErr != nil {
		err := f.resolveOnlyErr
		f.resolveOnlyErr = nil
		return err
	}
	d, ok := f.disputes[disputeID]
	if !ok {
		return ErrNotFound
	}
	if d.Status != StatusOpen {
		return ErrAlreadyResolved
	}
	d.Status = StatusResolved
	d.ResolutionType.String = string(rt)
	d.ResolutionType.Valid = true
	d.EscrowHeld = false
	d.ResolvedAt.Time = resolvedAt
	d.ResolvedAt.Valid = true
	return nil
}

func (f *fixture) ListOpen(_ context.Context, _ int) ([]Dispute, error) {
	var open []Dispute
	for _, d := range f.disputes {
		if d.Status == StatusOpen {
			open = append(open, *d)
		}
	}
	return open, nil
}

func (f *fixture) CountUpheldAgainst(_ context.Context, payeeID uuid.UUID, since time.Time) (int, error) {
	count := 0
	for _, d := range f.disputes {
		h, ok := f.holds[d.HoldID]
		if !ok || h.PayeeID != payeeID {
			continue
		}
		if d.Status == StatusResolved && d.RefundedAmount > 0 && !d.ResolvedAt.Time.Before(since) {
			count++
		}
	}
	return count, nil
}

// Holds slice.

func (f *fixture) Get(_ context.Context, id uuid.UUID) (*hold.Hold, error) {
	h, ok := f.holds[id]
	if !ok {
		return nil, hold.ErrNotFound
	}
	copied := *h
	return &copied, nil
}

func (f *fixture) ReleaseResolved(_ context.Context, holdID uuid.UUID, _ string) (*hold.ReleaseReceipt, error) {
	h, ok := f.holds[holdID]
	if !ok {
		return nil, hold.ErrNotFound
	}
	if h.Status != hold.StatusDisputed {
		return nil, hold.ErrInvalidState
	}
	h.Status = hold.StatusReleased
	h.TransferID.String = "tr_release"
	h.TransferID.Valid = true
	f.releasedResolved++
	return &hold.ReleaseReceipt{HoldID: holdID, TransferID: "tr_release", Amount: h.Amount}, nil
}

func pad4(n int) string {
	s := "000" + itoa(n)
	return s[len(s)-4:]
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var b []byte
	for n > 0 {
		b = append([]byte{byte('0' + n%10)}, b...)
		n /= 10
	}
	return string(b)
}

type railStub struct {
	requests []payrail.TransferRequest
	err      error
}

func (r *railStub) Transfer(_ context.Context, req payrail.TransferRequest) (*payrail.TransferResult, error) {
	r.requests = append(r.requests, req)
	if r.err != nil {
		return nil, r.err
	}
	return &payrail.TransferResult{ID: "tr_refund", Status: payrail.StatusConfirmed}, nil
}

func (r *railStub) Name() string { return "stub" }

type destStub struct{}

func (destStub) RefundToken(context.Context, uuid.UUID) (string, error) {
	return "refund_dest", nil
}

func newTestService(f *fixture, rail payrail.Provider) *Service {
	return NewService(f, f, rail, destStub{}, nil, Config{
		MaxCoveragePerCase: 250000,
		ResponseTTL:        48 * time.Hour,
		ResolveTTL:         7 * 24 * time.Hour,
	})
}

func TestFileMovesHoldToEscrow(t *testing.T) {
	f := newFixture()
	svc := newTestService(f, &railStub{})

	start := time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }

	h := f.addHold(50000, start.Add(5*24*time.Hour))

	d, err := svc.File(context.Background(), h.ID, h.PayerID, "work never completed", nil)
	if err != nil {
		t.Fatalf("file failed: %v", err)
	}

	if !strings.HasPrefix(d.CaseNumber, "DSP-20260302-") {
		t.Fatalf("unexpected case number: %s", d.CaseNumber)
	}
	if d.DisputedAmount != 50000 || !d.EscrowHeld {
		t.Fatalf("unexpected dispute: %+v", d)
	}
	if want := start.Add(48 * time.Hour); !d.ResponseDeadline.Equal(want) {
		t.Fatalf("response deadline = %v, want %v", d.ResponseDeadline, want)
	}
	if f.holds[h.ID].Status != hold.StatusDisputed {
		t.Fatalf("hold not escrowed, status %s", f.holds[h.ID].Status)
	}
}

func TestFileAfterWindowExpires(t *testing.T) {
	f := newFixture()
	svc := newTestService(f, &railStub{})

	start := time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC)
	h := f.addHold(50000, start.Add(5*24*time.Hour))

	svc.now = func() time.Time { return start.Add(6 * 24 * time.Hour) }
	if _, err := svc.File(context.Background(), h.ID, h.PayerID, "too late", nil); !errors.Is(err, ErrWindowExpired) {
		t.Fatalf("expected ErrWindowExpired, got %v", err)
	}
	if f.holds[h.ID].Status != hold.StatusHeld {
		t.Fatalf("hold touched by expired filing")
	}
}

func TestFileOnReleasedHold(t *testing.T) {
	f := newFixture()
	svc := newTestService(f, &railStub{})

	start := time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }

	h := f.addHold(50000, start.Add(5*24*time.Hour))
	f.holds[h.ID].Status = hold.StatusReleased

	if _, err := svc.File(context.Background(), h.ID, h.PayerID, "money already gone", nil); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestResolveForPayerFullRefund(t *testing.T) {
	f := newFixture()
	rail := &railStub{}
	svc := newTestService(f, rail)

	start := time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }

	h := f.addHold(50000, start.Add(5*24*time.Hour))
	d, err := svc.File(context.Background(), h.ID, h.PayerID, "defective work", nil)
	if err != nil {
		t.Fatalf("file failed: %v", err)
	}

	receipt, err := svc.Resolve(context.Background(), d.ID, ResolutionPayer, nil)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}

	if receipt.Type != ResolutionTypeRefundFull || receipt.RefundAmount != 50000 {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}
	if len(rail.requests) != 1 {
		t.Fatalf("expected 1 refund transfer, got %d", len(rail.requests))
	}
	if rail.requests[0].Amount != 50000 || rail.requests[0].IdempotencyKey != d.CaseNumber {
		t.Fatalf("unexpected transfer request: %+v", rail.requests[0])
	}
	if f.holds[h.ID].Status != hold.StatusRefunded {
		t.Fatalf("hold not refunded, status %s", f.holds[h.ID].Status)
	}
}

func TestResolveRefundCappedByCoverage(t *testing.T) {
	f := newFixture()
	rail := &railStub{}
	svc := newTestService(f, rail)

	start := time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }

	h := f.addHold(400000, start.Add(5*24*time.Hour))
	d, _ := svc.File(context.Background(), h.ID, h.PayerID, "large claim", nil)

	receipt, err := svc.Resolve(context.Background(), d.ID, ResolutionPayer, nil)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if receipt.RefundAmount != 250000 {
		t.Fatalf("refund not capped at coverage: %d", receipt.RefundAmount)
	}
	if receipt.Type != ResolutionTypeRefundPartial {
		t.Fatalf("capped refund must be partial, got %s", receipt.Type)
	}
}

func TestResolveRejectsOversizedRefund(t *testing.T) {
	f := newFixture()
	svc := newTestService(f, &railStub{})

	start := time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }

	h := f.addHold(50000, start.Add(5*24*time.Hour))
	d, _ := svc.File(context.Background(), h.ID, h.PayerID, "claim", nil)

	tooMuch := int64(60000)
	if _, err := svc.Resolve(context.Background(), d.ID, ResolutionPayer, &tooMuch); !errors.Is(err, ErrInvalidRefundAmount) {
		t.Fatalf("expected ErrInvalidRefundAmount, got %v", err)
	}
}

func TestResolveSplitReportsRemainder(t *testing.T) {
	f := newFixture()
	rail := &railStub{}
	svc := newTestService(f, rail)

	start := time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }

	h := f.addHold(50000, start.Add(5*24*time.Hour))
	d, _ := svc.File(context.Background(), h.ID, h.PayerID, "half the job done", nil)

	receipt, err := svc.Resolve(context.Background(), d.ID, ResolutionSplit, nil)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if receipt.RefundAmount != 25000 || receipt.Remainder != 25000 {
		t.Fatalf("unexpected split: refund %d remainder %d", receipt.RefundAmount, receipt.Remainder)
	}
	if receipt.Type != ResolutionTypeMediatedAgreement {
		t.Fatalf("unexpected type: %s", receipt.Type)
	}
	if f.holds[h.ID].Status != hold.StatusRefunded {
		t.Fatalf("split must end the hold refunded, got %s", f.holds[h.ID].Status)
	}
}

func TestResolveForPayeeReleasesImmediately(t *testing.T) {
	f := newFixture()
	rail := &railStub{}
	svc := newTestService(f, rail)

	start := time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }

	h := f.addHold(50000, start.Add(5*24*time.Hour))
	d, _ := svc.File(context.Background(), h.ID, h.PayerID, "meritless", nil)

	receipt, err := svc.Resolve(context.Background(), d.ID, ResolutionPayee, nil)
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if receipt.Type != ResolutionTypeDismissed || receipt.RefundAmount != 0 {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}
	if f.releasedResolved != 1 {
		t.Fatalf("expected immediate release, got %d calls", f.releasedResolved)
	}
	if len(rail.requests) != 0 {
		t.Fatalf("dismissed case must not refund the payer")
	}
	if f.holds[h.ID].Status != hold.StatusReleased {
		t.Fatalf("hold not released, status %s", f.holds[h.ID].Status)
	}
}

func TestResolveForPayeeRetriesAfterPartialFailure(t *testing.T) {
	f := newFixture()
	rail := &railStub{}
	svc := newTestService(f, rail)

	start := time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }

	h := f.addHold(50000, start.Add(5*24*time.Hour))
	d, _ := svc.File(context.Background(), h.ID, h.PayerID, "meritless", nil)

	f.resolveOnlyErr = errors.New("write timeout")
	if _, err := svc.Resolve(context.Background(), d.ID, ResolutionPayee, nil); err == nil {
		t.Fatal("expected the first resolve to surface the write failure")
	}
	if f.holds[h.ID].Status != hold.StatusReleased {
		t.Fatalf("payout should have committed, hold status %s", f.holds[h.ID].Status)
	}

	receipt, err := svc.Resolve(context.Background(), d.ID, ResolutionPayee, nil)
	if err != nil {
		t.Fatalf("retry after partial failure must converge: %v", err)
	}
	if receipt.Type != ResolutionTypeDismissed || receipt.TransferID != "tr_release" {
		t.Fatalf("unexpected receipt: %+v", receipt)
	}
	if f.releasedResolved != 1 {
		t.Fatalf("retry must not pay out again, got %d releases", f.releasedResolved)
	}
	if f.disputes[d.ID].Status != StatusResolved {
		t.Fatalf("dispute still %s after retry", f.disputes[d.ID].Status)
	}
}

func TestResolveTwiceFails(t *testing.T) {
	f := newFixture()
	svc := newTestService(f, &railStub{})

	start := time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }

	h := f.addHold(50000, start.Add(5*24*time.Hour))
	d, _ := svc.File(context.Background(), h.ID, h.PayerID, "claim", nil)

	if _, err := svc.Resolve(context.Background(), d.ID, ResolutionPayer, nil); err != nil {
		t.Fatalf("first resolve failed: %v", err)
	}
	if _, err := svc.Resolve(context.Background(), d.ID, ResolutionPayee, nil); !errors.Is(err, ErrAlreadyResolved) {
		t.Fatalf("expected ErrAlreadyResolved, got %v", err)
	}
}

func TestResolveUnconfirmedRefundLeavesCaseOpen(t *testing.T) {
	f := newFixture()
	rail := &railStub{err: payrail.ErrUnconfirmed}
	svc := newTestService(f, rail)

	start := time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }

	h := f.addHold(50000, start.Add(5*24*time.Hour))
	d, _ := svc.File(context.Background(), h.ID, h.PayerID, "claim", nil)

	if _, err := svc.Resolve(context.Background(), d.ID, ResolutionPayer, nil); !errors.Is(err, payrail.ErrUnconfirmed) {
		t.Fatalf("expected ErrUnconfirmed, got %v", err)
	}

	got, _ := f.GetByID(context.Background(), d.ID)
	if got.Status != StatusOpen {
		t.Fatalf("case closed without a confirmed refund")
	}
	if f.holds[h.ID].Status != hold.StatusDisputed {
		t.Fatalf("hold left escrow without a confirmed refund")
	}

	// Retry after the rail recovers.
	rail.err = nil
	if _, err := svc.Resolve(context.Background(), d.ID, ResolutionPayer, nil); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
}

func TestComplaintStandingFlagsAtThreshold(t *testing.T) {
	f := newFixture()
	svc := newTestService(f, &railStub{})

	start := time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return start }

	payee := uuid.New()
	for i := 0; i < 3; i++ {
		h := f.addHold(10000, start.Add(5*24*time.Hour))
		h.PayeeID = payee
		d, err := svc.File(context.Background(), h.ID, h.PayerID, "claim", nil)
		if err != nil {
			t.Fatalf("file %d failed: %v", i, err)
		}
		if i < 2 {
			if _, err := svc.Resolve(context.Background(), d.ID, ResolutionPayer, nil); err != nil {
				t.Fatalf("resolve %d failed: %v", i, err)
			}
		} else {
			count, flagged, err := svc.ComplaintStanding(context.Background(), payee)
			if err != nil {
				t.Fatalf("standing failed: %v", err)
			}
			if count != 2 || flagged {
				t.Fatalf("premature flag: count %d flagged %v", count, flagged)
			}
			if _, err := svc.Resolve(context.Background(), d.ID, ResolutionPayer, nil); err != nil {
				t.Fatalf("resolve %d failed: %v", i, err)
			}
		}
	}

	count, flagged, err := svc.ComplaintStanding(context.Background(), payee)
	if err != nil {
		t.Fatalf("standing failed: %v", err)
	}
	if count != 3 || !flagged {
		t.Fatalf("expected flag at 3 upheld cases, got count %d flagged %v", count, flagged)
	}
}
