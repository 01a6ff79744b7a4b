package dispute

import "errors"

var (
	ErrNotFound            = errors.New("dispute not found")
	ErrWindowExpired       = errors.New("dispute window has expired")
	ErrInvalidState        = errors.New("hold is not in a disputable state")
	ErrAlreadyResolved     = errors.New("dispute already resolved")
	ErrInvalidResolution   = errors.New("unknown resolution")
	ErrInvalidRefundAmount = errors.New("invalid refund amount")
)
