package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Compliance tracks documents an HEI must supply after a return.
// The latest row for a liquidation is the active one.
type Compliance struct {
	ID                     int64           `json:"id"`
	LiquidationID          string          `json:"liquidation_id"`
	DocumentsRequired      string          `json:"documents_required"`
	ComplianceStatusID     int64           `json:"compliance_status_id"`
	ConcernsEmailedAt      *time.Time      `json:"concerns_emailed_at,omitempty"`
	ComplianceSubmittedAt  *time.Time      `json:"compliance_submitted_at,omitempty"`
	AmountWithCompleteDocs decimal.Decimal `json:"amount_with_complete_docs"`
	CreatedAt              time.Time       `json:"created_at"`
}
