package usage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nestora/nestora-api/internal/domain/account"
)

type counterKey struct {
	accountID uuid.UUID
	feature   Feature
}

type repoStub struct {
	values  map[counterKey]int64
	periods map[counterKey]string
}

func newRepoStub() *repoStub {
	return &repoStub{
		values:  make(map[counterKey]int64),
		periods: make(map[counterKey]string),
	}
}

func (r *repoStub) set(accountID uuid.UUID, f Feature, v int64) {
	r.values[counterKey{accountID, f}] = v
}

func (r *repoStub) Increment(_ context.Context, accountID uuid.UUID, f Feature, period string) (int64, error) {
	k := counterKey{accountID, f}
	if _, ok := r.periods[k]; !ok {
		r.periods[k] = period
	}
	r.values[k]++
	return r.values[k], nil
}

func (r *repoStub) Decrement(_ context.Context, accountID uuid.UUID, f Feature) (int64, error) {
	k := counterKey{accountID, f}
	if r.values[k] > 0 {
		r.values[k]--
	}
	return r.values[k], nil
}

func (r *repoStub) Get(_ context.Context, accountID uuid.UUID, f Feature) (int64, error) {
	return r.values[counterKey{accountID, f}], nil
}

func (r *repoStub) GetAll(_ context.Context, accountID uuid.UUID) (map[Feature]int64, error) {
	out := make(map[Feature]int64)
	for k, v := range r.values {
		if k.accountID == accountID {
			out[k.feature] = v
		}
	}
	return out, nil
}

func (r *repoStub) SetValue(_ context.Context, accountID uuid.UUID, f Feature, value int64, period string) error {
	k := counterKey{accountID, f}
	r.values[k] = value
	r.periods[k] = period
	return nil
}

func (r *repoStub) ResetMonthly(_ context.Context, period string, features []Feature) (int64, error) {
	monthly := make(map[Feature]bool, len(features))
	for _, f := range features {
		monthly[f] = true
	}
	var reset int64
	for k := range r.values {
		if monthly[k.feature] && r.periods[k] != period {
			r.values[k] = 0
			r.periods[k] = period
			reset++
		}
	}
	return reset, nil
}

type tierStub struct{ tier account.Tier }

func (t *tierStub) GetTier(context.Context, uuid.UUID) (account.Tier, error) {
	return t.tier, nil
}

// gateStub mirrors the SetNX-with-TTL dedup: a key claims its window
// and stays claimed until the window passes.
type gateStub struct {
	claimed map[string]time.Time
	now     func() time.Time
}

func (g *gateStub) ShouldNotify(_ context.Context, key string, ttl time.Duration) bool {
	if until, ok := g.claimed[key]; ok && g.now().Before(until) {
		return false
	}
	g.claimed[key] = g.now().Add(ttl)
	return true
}

type warning struct {
	feature string
	percent int
	value   int64
	limit   int64
}

type notifierStub struct {
	warnings []warning
	limits   []string
}

func (n *notifierStub) UsageWarning(_ uuid.UUID, feature string, percent int, value, limit int64) {
	n.warnings = append(n.warnings, warning{feature, percent, value, limit})
}

func (n *notifierStub) UsageLimitReached(_ uuid.UUID, feature string, _ int64) {
	n.limits = append(n.limits, feature)
}

type fixture struct {
	repo     *repoStub
	notifier *notifierStub
	svc      *Service
	clock    time.Time
}

func newFixture(tier account.Tier) *fixture {
	f := &fixture{
		repo:     newRepoStub(),
		notifier: &notifierStub{},
		clock:    time.Date(2026, time.March, 2, 12, 0, 0, 0, time.UTC),
	}
	now := func() time.Time { return f.clock }
	gate := &gateStub{claimed: make(map[string]time.Time), now: now}
	f.svc = NewService(f.repo, &tierStub{tier: tier}, gate, f.notifier, 24*time.Hour, 7*24*time.Hour)
	f.svc.now = now
	return f
}

func TestIncrementWarnsOnceAtEightyPercent(t *testing.T) {
	f := newFixture(account.TierStarter) // invoices_month limit 50
	accountID := uuid.New()
	f.repo.set(accountID, FeatureInvoicesMonth, 39)

	value, err := f.svc.Increment(context.Background(), accountID, FeatureInvoicesMonth)
	if err != nil {
		t.Fatalf("increment failed: %v", err)
	}
	if value != 40 {
		t.Fatalf("value = %d, want 40", value)
	}
	if len(f.notifier.warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(f.notifier.warnings))
	}
	if w := f.notifier.warnings[0]; w.percent != 80 || w.value != 40 || w.limit != 50 {
		t.Fatalf("unexpected warning: %+v", w)
	}

	// Next increment sits in the same band within the window: silent.
	if _, err := f.svc.Increment(context.Background(), accountID, FeatureInvoicesMonth); err != nil {
		t.Fatalf("increment failed: %v", err)
	}
	if len(f.notifier.warnings) != 1 {
		t.Fatalf("duplicate warning within window, got %d", len(f.notifier.warnings))
	}
}

func TestLimitReachedFiresDistinctNotice(t *testing.T) {
	f := newFixture(account.TierStarter)
	accountID := uuid.New()
	f.repo.set(accountID, FeatureInvoicesMonth, 49)

	if _, err := f.svc.Increment(context.Background(), accountID, FeatureInvoicesMonth); err != nil {
		t.Fatalf("increment failed: %v", err)
	}
	if len(f.notifier.limits) != 1 {
		t.Fatalf("expected 1 limit notice, got %d", len(f.notifier.limits))
	}
	if len(f.notifier.warnings) != 0 {
		t.Fatalf("limit crossing must not also warn, got %d warnings", len(f.notifier.warnings))
	}
}

func TestOnlyHighestBandFires(t *testing.T) {
	f := newFixture(account.TierStarter)
	accountID := uuid.New()
	f.repo.set(accountID, FeatureInvoicesMonth, 47)

	// 48/50 = 96%: lands in the 95 band, skipping 80 and 90.
	if _, err := f.svc.Increment(context.Background(), accountID, FeatureInvoicesMonth); err != nil {
		t.Fatalf("increment failed: %v", err)
	}
	if len(f.notifier.warnings) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(f.notifier.warnings))
	}
	if w := f.notifier.warnings[0]; w.percent != 96 {
		t.Fatalf("unexpected percent: %d", w.percent)
	}
}

func TestWarningRefiresAfterWindow(t *testing.T) {
	f := newFixture(account.TierStarter)
	accountID := uuid.New()
	f.repo.set(accountID, FeatureInvoicesMonth, 39)

	if _, err := f.svc.Increment(context.Background(), accountID, FeatureInvoicesMonth); err != nil {
		t.Fatalf("increment failed: %v", err)
	}

	f.clock = f.clock.Add(25 * time.Hour)
	if _, err := f.svc.Increment(context.Background(), accountID, FeatureInvoicesMonth); err != nil {
		t.Fatalf("increment failed: %v", err)
	}
	if len(f.notifier.warnings) != 2 {
		t.Fatalf("expected refire after window, got %d warnings", len(f.notifier.warnings))
	}
}

func TestUnlimitedTierNeverWarns(t *testing.T) {
	f := newFixture(account.TierPortfolio)
	accountID := uuid.New()
	f.repo.set(accountID, FeatureInvoicesMonth, 100000)

	if _, err := f.svc.Increment(context.Background(), accountID, FeatureInvoicesMonth); err != nil {
		t.Fatalf("increment failed: %v", err)
	}
	if len(f.notifier.warnings) != 0 || len(f.notifier.limits) != 0 {
		t.Fatalf("unlimited plan produced notifications")
	}
}

func TestDecrementClampsAtZero(t *testing.T) {
	f := newFixture(account.TierStarter)
	accountID := uuid.New()

	value, err := f.svc.Decrement(context.Background(), accountID, FeatureActiveJobs)
	if err != nil {
		t.Fatalf("decrement failed: %v", err)
	}
	if value != 0 {
		t.Fatalf("decrement went below zero: %d", value)
	}
}

func TestUnknownFeatureRejected(t *testing.T) {
	f := newFixture(account.TierStarter)

	if _, err := f.svc.Increment(context.Background(), uuid.New(), Feature("widgets")); !errors.Is(err, ErrUnknownFeature) {
		t.Fatalf("expected ErrUnknownFeature, got %v", err)
	}
}

func TestAllowReturnsLimitDetail(t *testing.T) {
	f := newFixture(account.TierFree) // active_jobs limit 3
	accountID := uuid.New()
	f.repo.set(accountID, FeatureActiveJobs, 3)

	err := f.svc.Allow(context.Background(), accountID, FeatureActiveJobs)
	if !errors.Is(err, ErrLimitReached) {
		t.Fatalf("expected ErrLimitReached, got %v", err)
	}

	var limitErr *LimitError
	if !errors.As(err, &limitErr) {
		t.Fatalf("error is not a *LimitError: %T", err)
	}
	if limitErr.Current != 3 || limitErr.Limit != 3 {
		t.Fatalf("unexpected detail: %+v", limitErr)
	}
	if limitErr.UpgradeTo != string(account.TierStarter) {
		t.Fatalf("unexpected upgrade target: %s", limitErr.UpgradeTo)
	}

	// One below the cap is allowed.
	f.repo.set(accountID, FeatureActiveJobs, 2)
	if err := f.svc.Allow(context.Background(), accountID, FeatureActiveJobs); err != nil {
		t.Fatalf("allow below cap failed: %v", err)
	}
}

func TestSetValueBypassesThresholds(t *testing.T) {
	f := newFixture(account.TierStarter)
	accountID := uuid.New()

	if err := f.svc.SetValue(context.Background(), accountID, FeatureInvoicesMonth, 45); err != nil {
		t.Fatalf("set value failed: %v", err)
	}
	if v, _ := f.repo.Get(context.Background(), accountID, FeatureInvoicesMonth); v != 45 {
		t.Fatalf("value = %d, want 45", v)
	}
	if len(f.notifier.warnings) != 0 || len(f.notifier.limits) != 0 {
		t.Fatalf("administrative override fired notifications")
	}

	if err := f.svc.SetValue(context.Background(), accountID, FeatureInvoicesMonth, -1); !errors.Is(err, ErrNegativeValue) {
		t.Fatalf("expected ErrNegativeValue, got %v", err)
	}
}

func TestResetMonthlyIsIdempotent(t *testing.T) {
	f := newFixture(account.TierStarter)
	accountID := uuid.New()

	// Counters from a previous period.
	f.clock = time.Date(2026, time.February, 10, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		if _, err := f.svc.Increment(context.Background(), accountID, FeatureInvoicesMonth); err != nil {
			t.Fatalf("increment failed: %v", err)
		}
	}
	if _, err := f.svc.Increment(context.Background(), accountID, FeatureActiveJobs); err != nil {
		t.Fatalf("increment failed: %v", err)
	}

	f.clock = time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)
	reset, err := f.svc.ResetMonthly(context.Background())
	if err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	if reset != 1 {
		t.Fatalf("expected 1 counter reset, got %d", reset)
	}
	if v, _ := f.repo.Get(context.Background(), accountID, FeatureInvoicesMonth); v != 0 {
		t.Fatalf("monthly counter not zeroed: %d", v)
	}
	if v, _ := f.repo.Get(context.Background(), accountID, FeatureActiveJobs); v != 1 {
		t.Fatalf("live counter touched by monthly reset: %d", v)
	}

	// Second run in the same period is a no-op.
	reset, err = f.svc.ResetMonthly(context.Background())
	if err != nil {
		t.Fatalf("second reset failed: %v", err)
	}
	if reset != 0 {
		t.Fatalf("reset not idempotent, touched %d counters", reset)
	}
}
