package usage

import "github.com/nestora/nestora-api/internal/domain/account"

// Plan describes a tier's feature limits. The catalog is code, not DB:
// it changes with releases, not with operator input.
type Plan struct {
	Tier   account.Tier
	Name   string
	Limits map[Feature]int64
}

var plans = map[account.Tier]Plan{
	account.TierFree: {
		Tier: account.TierFree,
		Name: "Free",
		Limits: map[Feature]int64{
			FeatureActiveJobs:    3,
			FeatureInvoicesMonth: 5,
			FeatureLeadsMonth:    10,
			FeatureCustomers:     25,
		},
	},
	account.TierStarter: {
		Tier: account.TierStarter,
		Name: "Starter",
		Limits: map[Feature]int64{
			FeatureActiveJobs:    15,
			FeatureInvoicesMonth: 50,
			FeatureLeadsMonth:    100,
			FeatureCustomers:     250,
		},
	},
	account.TierPro: {
		Tier: account.TierPro,
		Name: "Pro",
		Limits: map[Feature]int64{
			FeatureActiveJobs:    50,
			FeatureInvoicesMonth: 200,
			FeatureLeadsMonth:    500,
			FeatureCustomers:     1000,
		},
	},
	account.TierPortfolio: {
		Tier: account.TierPortfolio,
		Name: "Portfolio",
		Limits: map[Feature]int64{
			FeatureActiveJobs:    Unlimited,
			FeatureInvoicesMonth: Unlimited,
			FeatureLeadsMonth:    Unlimited,
			FeatureCustomers:     Unlimited,
		},
	},
}

// PlanFor returns the plan for a tier, falling back to Free for
// anything unrecognized.
func PlanFor(tier account.Tier) Plan {
	if p, ok := plans[tier]; ok {
		return p
	}
	return plans[account.TierFree]
}

// LimitFor returns the tier's cap for a feature, Unlimited when uncapped.
func LimitFor(tier account.Tier, f Feature) int64 {
	p := PlanFor(tier)
	if limit, ok := p.Limits[f]; ok {
		return limit
	}
	return Unlimited
}

func upgradeTarget(tier account.Tier) string {
	switch tier {
	case account.TierFree:
		return string(account.TierStarter)
	case account.TierStarter:
		return string(account.TierPro)
	case account.TierPro:
		return string(account.TierPortfolio)
	default:
		return ""
	}
}
