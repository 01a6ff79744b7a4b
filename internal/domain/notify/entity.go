package notify

import (
	"time"

	"github.com/google/uuid"
)

// Kind labels what a notification was about.
type Kind string

const (
	KindFundsAvailable    Kind = "funds_available"
	KindHoldReleased      Kind = "hold_released"
	KindDisputeOpened     Kind = "dispute_opened"
	KindDisputeResolved   Kind = "dispute_resolved"
	KindUsageWarning      Kind = "usage_warning"
	KindUsageLimitReached Kind = "usage_limit_reached"
)

// Record is the audit row written for every notification that cleared
// the dedup gate.
type Record struct {
	ID        uuid.UUID `db:"id" json:"id"`
	AccountID uuid.UUID `db:"account_id" json:"account_id"`
	Kind      Kind      `db:"kind" json:"kind"`
	DedupKey  string    `db:"dedup_key" json:"dedup_key"`
	SentAt    time.Time `db:"sent_at" json:"sent_at"`
}
