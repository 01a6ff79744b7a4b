package hold

// CreateHoldRequest records a guarantee hold for a completed job.
type CreateHoldRequest struct {
	PayeeID  string `json:"payee_id" validate:"required,uuid"`
	PayerID  string `json:"payer_id" validate:"required,uuid"`
	Amount   int64  `json:"amount" validate:"required,gt=0"`
	SourceID string `json:"source_id" validate:"required,min=1,max=128"`
}

// ReleaseHoldRequest triggers a payout for an eligible hold.
type ReleaseHoldRequest struct {
	// Destination overrides the payee's stored payout token. Optional.
	Destination string `json:"destination,omitempty" validate:"max=256"`
}
