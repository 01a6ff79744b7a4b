package wallet

import "time"

// PaymentMethod identifies the rail the original payment came in on.
type PaymentMethod string

const (
	MethodCard      PaymentMethod = "card"
	MethodInstant   PaymentMethod = "instant"
	MethodBankDebit PaymentMethod = "bank_debit"
	MethodACH       PaymentMethod = "ach"
)

// holdSchedule maps a payment method to the number of business days before a
// credit becomes spendable. Every method lands in pendingBalance first; the
// platform itself is waiting on rail-level settlement.
var holdSchedule = map[PaymentMethod]int{
	MethodCard:      2,
	MethodInstant:   2,
	MethodBankDebit: 5,
	MethodACH:       5,
}

// AvailableAt walks forward from `from` by the method's business-day count,
// skipping Saturdays and Sundays. Returns ErrUnknownPaymentMethod for
// methods outside the schedule.
func AvailableAt(method PaymentMethod, from time.Time) (time.Time, error) {
	days, ok := holdSchedule[method]
	if !ok {
		return time.Time{}, ErrUnknownPaymentMethod
	}

	t := from
	for remaining := days; remaining > 0; {
		t = t.AddDate(0, 0, 1)
		if wd := t.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		remaining--
	}
	return t, nil
}

// HoldDays returns the business-day hold for a method, for display purposes.
func HoldDays(method PaymentMethod) (int, bool) {
	days, ok := holdSchedule[method]
	return days, ok
}
