package usage

// CounterRequest targets a single account's feature counter.
type CounterRequest struct {
	AccountID string `json:"account_id" validate:"required,uuid"`
	Feature   string `json:"feature" validate:"required,usage_feature"`
}

// SetValueRequest is the administrative counter override.
type SetValueRequest struct {
	AccountID string `json:"account_id" validate:"required,uuid"`
	Feature   string `json:"feature" validate:"required,usage_feature"`
	Value     int64  `json:"value" validate:"min=0"`
}
