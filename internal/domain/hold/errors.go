package hold

import "errors"

var (
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrNotFound       = errors.New("hold not found")
	ErrNotYetEligible = errors.New("release date not reached")
	ErrInvalidState   = errors.New("hold is not in the expected state")
	ErrNoDestination  = errors.New("no payout destination for payee")
)
