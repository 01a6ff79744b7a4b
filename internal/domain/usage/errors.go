package usage

import "errors"

var (
	ErrUnknownFeature = errors.New("unknown usage feature")
	ErrLimitReached   = errors.New("plan limit reached for this feature")
	ErrNegativeValue  = errors.New("counter value cannot be negative")
)

// LimitError carries the detail a client needs to render an upgrade
// prompt alongside the refusal.
type LimitError struct {
	Err       error
	Feature   Feature
	Current   int64
	Limit     int64
	PlanName  string
	UpgradeTo string
}

func (e *LimitError) Error() string { return e.Err.Error() }

func (e *LimitError) Unwrap() error { return e.Err }

func (e *LimitError) CurrentValue() int64    { return e.Current }
func (e *LimitError) LimitValue() int64      { return e.Limit }
func (e *LimitError) PlanNameValue() string  { return e.PlanName }
func (e *LimitError) UpgradeToValue() string { return e.UpgradeTo }
