package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nestora/nestora-api/internal/domain/account"
)

// warnThresholds are checked highest first so a jump across several
// bands produces one notification, not a cascade.
var warnThresholds = []int{100, 95, 90, 80}

// TierSource resolves which plan governs an account.
type TierSource interface {
	GetTier(ctx context.Context, id uuid.UUID) (account.Tier, error)
}

// Gate decides whether a notification key may fire within its window.
// A false return means an equivalent notification went out recently.
type Gate interface {
	ShouldNotify(ctx context.Context, key string, ttl time.Duration) bool
}

type Notifier interface {
	UsageWarning(accountID uuid.UUID, feature string, percent int, value, limit int64)
	UsageLimitReached(accountID uuid.UUID, feature string, limit int64)
}

type Service struct {
	repo     Repository
	tiers    TierSource
	gate     Gate
	notifier Notifier

	warnWindow time.Duration // dedup window for sub-100% warnings
	lockWindow time.Duration // dedup window for limit-reached notices

	now func() time.Time
}

func NewService(repo Repository, tiers TierSource, gate Gate, notifier Notifier, warnWindow, lockWindow time.Duration) *Service {
	return &Service{
		repo:       repo,
		tiers:      tiers,
		gate:       gate,
		notifier:   notifier,
		warnWindow: warnWindow,
		lockWindow: lockWindow,
		now:        time.Now,
	}
}

// Increment bumps the counter and returns the new value. Threshold
// notifications ride on the result; the counter write itself never
// waits on them and never fails because of them.
func (s *Service) Increment(ctx context.Context, accountID uuid.UUID, f Feature) (int64, error) {
	if !knownFeature(f) {
		return 0, ErrUnknownFeature
	}

	value, err := s.repo.Increment(ctx, accountID, f, s.period())
	if err != nil {
		return 0, err
	}

	tier, err := s.tiers.GetTier(ctx, accountID)
	if err != nil {
		log.Warn().Err(err).Str("account_id", accountID.String()).Msg("Tier lookup failed, skipping threshold check")
		return value, nil
	}
	if limit := LimitFor(tier, f); limit != Unlimited {
		s.checkThresholds(ctx, accountID, f, value, limit)
	}
	return value, nil
}

// Decrement lowers the counter, clamping at zero.
func (s *Service) Decrement(ctx context.Context, accountID uuid.UUID, f Feature) (int64, error) {
	if !knownFeature(f) {
		return 0, ErrUnknownFeature
	}
	return s.repo.Decrement(ctx, accountID, f)
}

// SetValue is the administrative override. It bypasses threshold
// checks on purpose: support corrections should not spam warnings.
func (s *Service) SetValue(ctx context.Context, accountID uuid.UUID, f Feature, value int64) error {
	if !knownFeature(f) {
		return ErrUnknownFeature
	}
	if value < 0 {
		return ErrNegativeValue
	}
	return s.repo.SetValue(ctx, accountID, f, value, s.period())
}

// Allow reports whether the account may consume one more unit of the
// feature. On refusal the error is a *LimitError with upgrade detail.
func (s *Service) Allow(ctx context.Context, accountID uuid.UUID, f Feature) error {
	if !knownFeature(f) {
		return ErrUnknownFeature
	}

	tier, err := s.tiers.GetTier(ctx, accountID)
	if err != nil {
		return err
	}
	limit := LimitFor(tier, f)
	if limit == Unlimited {
		return nil
	}

	value, err := s.repo.Get(ctx, accountID, f)
	if err != nil {
		return err
	}
	if value >= limit {
		return &LimitError{
			Err:       ErrLimitReached,
			Feature:   f,
			Current:   value,
			Limit:     limit,
			PlanName:  PlanFor(tier).Name,
			UpgradeTo: upgradeTarget(tier),
		}
	}
	return nil
}

// Status returns every known feature's value against the account's plan.
func (s *Service) Status(ctx context.Context, accountID uuid.UUID) ([]FeatureStatus, error) {
	tier, err := s.tiers.GetTier(ctx, accountID)
	if err != nil {
		return nil, err
	}
	values, err := s.repo.GetAll(ctx, accountID)
	if err != nil {
		return nil, err
	}

	out := make([]FeatureStatus, 0, len(allFeatures))
	for _, f := range allFeatures {
		st := FeatureStatus{Feature: f, Value: values[f], Limit: LimitFor(tier, f)}
		if st.Limit > 0 {
			st.Percent = int(st.Value * 100 / st.Limit)
		}
		out = append(out, st)
	}
	return out, nil
}

// ResetMonthly zeroes the monthly counters for the current period.
// The reset_period guard in the update makes re-runs no-ops, so the
// worker can fire it every poll without bookkeeping.
func (s *Service) ResetMonthly(ctx context.Context) (int64, error) {
	period := s.period()
	var monthly []Feature
	for _, f := range allFeatures {
		if monthlyFeature(f) {
			monthly = append(monthly, f)
		}
	}

	reset, err := s.repo.ResetMonthly(ctx, period, monthly)
	if err != nil {
		return 0, err
	}
	if reset > 0 {
		log.Info().Str("period", period).Int64("counters", reset).Msg("Monthly usage counters reset")
	}
	return reset, nil
}

// checkThresholds fires at most one notification per increment: the
// highest band the counter sits in, deduplicated per band by the gate.
func (s *Service) checkThresholds(ctx context.Context, accountID uuid.UUID, f Feature, value, limit int64) {
	percent := int(value * 100 / limit)
	for _, t := range warnThresholds {
		if percent < t {
			continue
		}
		if t == 100 {
			key := fmt.Sprintf("usage:limit:%s:%s", accountID, f)
			if s.gate == nil || s.gate.ShouldNotify(ctx, key, s.lockWindow) {
				if s.notifier != nil {
					s.notifier.UsageLimitReached(accountID, string(f), limit)
				}
			}
		} else {
			key := fmt.Sprintf("usage:warn:%s:%s:%d", accountID, f, t)
			if s.gate == nil || s.gate.ShouldNotify(ctx, key, s.warnWindow) {
				if s.notifier != nil {
					s.notifier.UsageWarning(accountID, string(f), percent, value, limit)
				}
			}
		}
		return
	}
}

func (s *Service) period() string {
	return s.now().UTC().Format("2006-01")
}
