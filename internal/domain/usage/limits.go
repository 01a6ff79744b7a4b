package usage

import (
	"context"

	"github.com/google/uuid"
)

// LimitChecker wraps the service with per-feature convenience checks
// for handlers and middleware.
type LimitChecker struct {
	svc *Service
}

func NewLimitChecker(svc *Service) *LimitChecker {
	return &LimitChecker{svc: svc}
}

// CanStartJob checks the concurrent active-jobs cap.
func (c *LimitChecker) CanStartJob(ctx context.Context, accountID uuid.UUID) error {
	return c.svc.Allow(ctx, accountID, FeatureActiveJobs)
}

// CanCreateInvoice checks this month's invoice quota.
func (c *LimitChecker) CanCreateInvoice(ctx context.Context, accountID uuid.UUID) error {
	return c.svc.Allow(ctx, accountID, FeatureInvoicesMonth)
}

// CanAddLead checks this month's lead quota.
func (c *LimitChecker) CanAddLead(ctx context.Context, accountID uuid.UUID) error {
	return c.svc.Allow(ctx, accountID, FeatureLeadsMonth)
}

// CanAddCustomer checks the customer roster cap.
func (c *LimitChecker) CanAddCustomer(ctx context.Context, accountID uuid.UUID) error {
	return c.svc.Allow(ctx, accountID, FeatureCustomers)
}

// Check is the generic form for callers that carry the feature name.
func (c *LimitChecker) Check(ctx context.Context, accountID uuid.UUID, feature string) error {
	return c.svc.Allow(ctx, accountID, Feature(feature))
}
