package account

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Kind represents the account's role on the platform (matches account_kind enum)
type Kind string

const (
	KindLandlord   Kind = "landlord"
	KindContractor Kind = "contractor"
	KindTenant     Kind = "tenant"
)

// Tier represents the subscription plan governing feature limits
type Tier string

const (
	TierFree      Tier = "free"
	TierStarter   Tier = "starter"
	TierPro       Tier = "pro"
	TierPortfolio Tier = "portfolio"
)

// Account is the read-only profile view the settlement core needs:
// who to notify and which tier governs their limits.
type Account struct {
	ID          uuid.UUID      `db:"id"`
	Email       string         `db:"email"`
	DisplayName string         `db:"display_name"`
	Kind        Kind           `db:"kind"`
	Tier        Tier           `db:"tier"`
	PayoutToken sql.NullString `db:"payout_token"` // rail-specific payout destination
	CreatedAt   time.Time      `db:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at"`
}
