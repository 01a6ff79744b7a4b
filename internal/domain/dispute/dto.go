package dispute

import "encoding/json"

// FileDisputeRequest opens a case against a hold.
type FileDisputeRequest struct {
	HoldID   string          `json:"hold_id" validate:"required,uuid"`
	FiledBy  string          `json:"filed_by" validate:"required,uuid"`
	Reason   string          `json:"reason" validate:"required,min=3,max=2000"`
	Evidence json.RawMessage `json:"evidence,omitempty"`
}

// ResolveDisputeRequest records the adjudicator's decision.
type ResolveDisputeRequest struct {
	Resolution string `json:"resolution" validate:"required,resolution"`
	// RefundAmount applies to payer resolutions only; omitted means the
	// full disputed amount.
	RefundAmount *int64 `json:"refund_amount,omitempty" validate:"omitempty,gt=0"`
}
