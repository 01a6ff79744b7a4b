package wallet

import "errors"

var (
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrUnknownPaymentMethod = errors.New("unknown payment method")
	ErrReferenceConflict    = errors.New("reference conflicts with different amount")
	ErrNotPending           = errors.New("transaction is not pending")
	ErrNotFound             = errors.New("transaction not found")
	ErrWalletNotFound       = errors.New("wallet not found")
)
