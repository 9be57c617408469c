package entity

import "time"

// ReviewType identifies the workflow step a review row records
type ReviewType string

const (
	ReviewTypeRCReturn              ReviewType = "rc_return"
	ReviewTypeRCEndorsement         ReviewType = "rc_endorsement"
	ReviewTypeHEIResubmission       ReviewType = "hei_resubmission"
	ReviewTypeAccountantReturn      ReviewType = "accountant_return"
	ReviewTypeAccountantEndorsement ReviewType = "accountant_endorsement"
)

// IsValid reports whether the review type is known
func (t ReviewType) IsValid() bool {
	switch t {
	case ReviewTypeRCReturn, ReviewTypeRCEndorsement, ReviewTypeHEIResubmission,
		ReviewTypeAccountantReturn, ReviewTypeAccountantEndorsement:
		return true
	}
	return false
}

// Review is one immutable entry of a liquidation's audit trail.
// PerformedByName is a snapshot taken at write time so later user renames
// do not rewrite history.
type Review struct {
	ID                     int64      `json:"id"`
	LiquidationID          string     `json:"liquidation_id"`
	ReviewType             ReviewType `json:"review_type"`
	PerformedBy            string     `json:"performed_by"`
	PerformedByName        string     `json:"performed_by_name"`
	Remarks                string     `json:"remarks,omitempty"`
	DocumentsForCompliance *string    `json:"documents_for_compliance,omitempty"`
	PerformedAt            time.Time  `json:"performed_at"`
}
