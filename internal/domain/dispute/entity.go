package dispute

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Status represents dispute lifecycle state
type Status string

const (
	StatusOpen     Status = "open"
	StatusResolved Status = "resolved"
)

// Resolution is the adjudicator's decision direction.
type Resolution string

const (
	ResolutionPayer Resolution = "payer"
	ResolutionPayee Resolution = "payee"
	ResolutionSplit Resolution = "split"
)

// ResolutionType records how a resolved case ended (matches resolution_type enum)
type ResolutionType string

const (
	ResolutionTypeRefundFull        ResolutionType = "refund_full"
	ResolutionTypeRefundPartial     ResolutionType = "refund_partial"
	ResolutionTypeDismissed         ResolutionType = "dismissed"
	ResolutionTypeMediatedAgreement ResolutionType = "mediated_agreement"
)

// Dispute diverts a held payment into escrow until adjudication. Once
// resolved it is immutable.
type Dispute struct {
	ID                 uuid.UUID       `db:"id" json:"id"`
	HoldID             uuid.UUID       `db:"hold_id" json:"hold_id"`
	CaseNumber         string          `db:"case_number" json:"case_number"`
	FiledBy            uuid.UUID       `db:"filed_by" json:"filed_by"`
	Reason             string          `db:"reason" json:"reason"`
	Evidence           json.RawMessage `db:"evidence" json:"evidence,omitempty"`
	Status             Status          `db:"status" json:"status"`
	ResolutionType     sql.NullString  `db:"resolution_type" json:"resolution_type,omitempty"`
	DisputedAmount     int64           `db:"disputed_amount" json:"disputed_amount"`
	EscrowHeld         bool            `db:"escrow_held" json:"escrow_held"`
	RefundedAmount     int64           `db:"refunded_amount" json:"refunded_amount"`
	ResponseDeadline   time.Time       `db:"response_deadline" json:"response_deadline"`
	ResolutionDeadline time.Time       `db:"resolution_deadline" json:"resolution_deadline"`
	ResolvedAt         sql.NullTime    `db:"resolved_at" json:"resolved_at,omitempty"`
	CreatedAt          time.Time       `db:"created_at" json:"created_at"`
}

// ResolutionReceipt reports what a resolution actually moved. Remainder is
// the un-refunded portion of a split; its payout policy belongs to the
// caller.
type ResolutionReceipt struct {
	DisputeID    uuid.UUID      `json:"dispute_id"`
	CaseNumber   string         `json:"case_number"`
	Resolution   Resolution     `json:"resolution"`
	Type         ResolutionType `json:"resolution_type"`
	RefundAmount int64          `json:"refund_amount"`
	Remainder    int64          `json:"remainder,omitempty"`
	TransferID   string         `json:"transfer_id,omitempty"`
}
