package wallet

import "encoding/json"

// CreditRequest records an incoming captured payment.
type CreditRequest struct {
	AccountID     string          `json:"account_id" validate:"required,uuid"`
	Amount        int64           `json:"amount" validate:"required,gt=0"`
	PaymentMethod string          `json:"payment_method" validate:"required,payment_method"`
	ReferenceID   string          `json:"reference_id" validate:"required,min=1,max=128"`
	Metadata      json.RawMessage `json:"metadata,omitempty"`
}
