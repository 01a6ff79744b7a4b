package usage

import (
	"time"

	"github.com/google/uuid"
)

// Feature is a metered capability. Monthly features reset on the
// billing boundary, live features only move by explicit increments and
// decrements.
type Feature string

const (
	FeatureActiveJobs    Feature = "active_jobs"
	FeatureInvoicesMonth Feature = "invoices_month"
	FeatureLeadsMonth    Feature = "leads_month"
	FeatureCustomers     Feature = "customers"
)

// Unlimited marks a feature with no cap on a plan.
const Unlimited = -1

// Counter is one account's consumption of one feature.
type Counter struct {
	AccountID   uuid.UUID `db:"account_id" json:"account_id"`
	Feature     Feature   `db:"feature" json:"feature"`
	Value       int64     `db:"value" json:"value"`
	ResetPeriod string    `db:"reset_period" json:"reset_period,omitempty"` // YYYY-MM of the last monthly reset
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// FeatureStatus is the per-feature view returned to clients.
type FeatureStatus struct {
	Feature Feature `json:"feature"`
	Value   int64   `json:"value"`
	Limit   int64   `json:"limit"` // -1 = unlimited
	Percent int     `json:"percent,omitempty"`
}

// allFeatures, in reporting order.
var allFeatures = []Feature{FeatureActiveJobs, FeatureInvoicesMonth, FeatureLeadsMonth, FeatureCustomers}

func knownFeature(f Feature) bool {
	switch f {
	case FeatureActiveJobs, FeatureInvoicesMonth, FeatureLeadsMonth, FeatureCustomers:
		return true
	}
	return false
}

func monthlyFeature(f Feature) bool {
	return f == FeatureInvoicesMonth || f == FeatureLeadsMonth
}
