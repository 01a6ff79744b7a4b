package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nestora/nestora-api/internal/domain/account"
	"github.com/nestora/nestora-api/internal/domain/usage"
	"github.com/nestora/nestora-api/internal/pkg/email"
)

// eventWindow guards event notifications against replays: a retried
// release or resolution must not mail the same account twice.
const eventWindow = 24 * time.Hour

const dispatchTimeout = 5 * time.Second

// Dispatcher turns domain events into emails. It satisfies the
// Notifier interfaces of the wallet, hold, dispute and usage services.
// Everything here is best effort: a failed notification is logged,
// never surfaced to the calling operation.
type Dispatcher struct {
	accounts account.Repository
	emails   *email.Service
	gate     *Gate
	audit    Repository
}

func NewDispatcher(accounts account.Repository, emails *email.Service, gate *Gate, audit Repository) *Dispatcher {
	return &Dispatcher{
		accounts: accounts,
		emails:   emails,
		gate:     gate,
		audit:    audit,
	}
}

// FundsAvailable implements the wallet notifier.
func (d *Dispatcher) FundsAvailable(accountID uuid.UUID, amount, available int64) {
	key := fmt.Sprintf("funds:%s:%d:%d", accountID, amount, available)
	d.dispatch(accountID, KindFundsAvailable, key, true, func(acc *account.Account) {
		d.emails.SendFundsAvailable(acc.Email, acc.DisplayName, amount, available)
	})
}

// HoldReleased implements the hold notifier.
func (d *Dispatcher) HoldReleased(payeeID uuid.UUID, sourceID string, amount int64) {
	key := fmt.Sprintf("hold_released:%s", sourceID)
	d.dispatch(payeeID, KindHoldReleased, key, true, func(acc *account.Account) {
		d.emails.SendHoldReleased(acc.Email, acc.DisplayName, sourceID, amount)
	})
}

// DisputeOpened implements the dispute notifier.
func (d *Dispatcher) DisputeOpened(payeeID uuid.UUID, caseNumber string, amount int64, respondBy time.Time) {
	key := fmt.Sprintf("dispute_opened:%s", caseNumber)
	d.dispatch(payeeID, KindDisputeOpened, key, true, func(acc *account.Account) {
		d.emails.SendDisputeOpened(acc.Email, acc.DisplayName, caseNumber, amount,
			respondBy.UTC().Format("Jan 2, 2006 15:04 MST"))
	})
}

// DisputeResolved implements the dispute notifier. Both parties get it,
// so the dedup key carries the recipient.
func (d *Dispatcher) DisputeResolved(accountID uuid.UUID, caseNumber string, outcome string, refund int64) {
	key := fmt.Sprintf("dispute_resolved:%s:%s", caseNumber, accountID)
	d.dispatch(accountID, KindDisputeResolved, key, true, func(acc *account.Account) {
		d.emails.SendDisputeResolved(acc.Email, acc.DisplayName, caseNumber, outcome, refund)
	})
}

// UsageWarning implements the usage notifier. The usage service already
// ran the gate for its own band keys, so only the audit row is added.
func (d *Dispatcher) UsageWarning(accountID uuid.UUID, feature string, percent int, value, limit int64) {
	key := fmt.Sprintf("usage:warn:%s:%s", accountID, feature)
	d.dispatch(accountID, KindUsageWarning, key, false, func(acc *account.Account) {
		d.emails.SendUsageWarning(acc.Email, acc.DisplayName, feature,
			usage.PlanFor(acc.Tier).Name, int(value), int(limit), percent)
	})
}

// UsageLimitReached implements the usage notifier.
func (d *Dispatcher) UsageLimitReached(accountID uuid.UUID, feature string, limit int64) {
	key := fmt.Sprintf("usage:limit:%s:%s", accountID, feature)
	d.dispatch(accountID, KindUsageLimitReached, key, false, func(acc *account.Account) {
		d.emails.SendUsageLimitReached(acc.Email, acc.DisplayName, feature,
			usage.PlanFor(acc.Tier).Name, int(limit))
	})
}

func (d *Dispatcher) dispatch(accountID uuid.UUID, kind Kind, key string, gated bool, send func(acc *account.Account)) {
	ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
	defer cancel()

	acc, err := d.accounts.GetByID(ctx, accountID)
	if err != nil {
		log.Warn().Err(err).
			Str("account_id", accountID.String()).
			Str("kind", string(kind)).
			Msg("Account lookup failed, notification dropped")
		return
	}

	if gated && !d.gate.ShouldNotify(ctx, key, eventWindow) {
		log.Debug().Str("key", key).Msg("Notification suppressed by dedup gate")
		return
	}

	send(acc)

	if d.audit != nil {
		rec := &Record{
			ID:        uuid.New(),
			AccountID: accountID,
			Kind:      kind,
			DedupKey:  key,
			SentAt:    time.Now().UTC(),
		}
		if err := d.audit.Create(ctx, rec); err != nil {
			log.Warn().Err(err).Str("kind", string(kind)).Msg("Failed to record notification")
		}
	}
}
