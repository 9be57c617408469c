package entity

import (
	"time"

	"github.com/garyjia/hei-liquidation/internal/domain/workflow"
)

// Liquidation is the aggregate root for one fund-utilization report
type Liquidation struct {
	ID                   string            `json:"id"`
	ControlNo            string            `json:"control_no"`
	HEIID                int64             `json:"hei_id"`
	ProgramID            int64             `json:"program_id"`
	AcademicYearID       int64             `json:"academic_year_id"`
	SemesterID           int64             `json:"semester_id"`
	CreatedBy            string            `json:"created_by"`
	Status               workflow.State    `json:"status"`
	LiquidationStatus    LiquidationStatus `json:"liquidation_status"`
	DocumentStatus       DocumentStatus    `json:"document_status"`
	Remarks              string            `json:"remarks,omitempty"`
	ReviewedBy           *string           `json:"reviewed_by,omitempty"`
	ReviewedAt           *time.Time        `json:"reviewed_at,omitempty"`
	AccountantReviewedBy *string           `json:"accountant_reviewed_by,omitempty"`
	AccountantReviewedAt *time.Time        `json:"accountant_reviewed_at,omitempty"`
	COAEndorsedBy        *string           `json:"coa_endorsed_by,omitempty"`
	COAEndorsedAt        *time.Time        `json:"coa_endorsed_at,omitempty"`
	DateSubmitted        *time.Time        `json:"date_submitted,omitempty"`
	DeletedAt            *time.Time        `json:"deleted_at,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`

	// Financial is loaded alongside the liquidation; exactly one exists per row
	Financial *Financial `json:"financial,omitempty"`
}

// IsDeleted reports whether the liquidation has been soft-deleted
func (l *Liquidation) IsDeleted() bool {
	return l.DeletedAt != nil
}

// IsOwnedBy reports whether the actor created the liquidation or belongs to its HEI
func (l *Liquidation) IsOwnedBy(actor Actor) bool {
	if actor.ID != "" && actor.ID == l.CreatedBy {
		return true
	}
	return actor.HEIID != nil && *actor.HEIID == l.HEIID
}

// Snapshot returns the workflow-relevant fields for before/after activity diffs
func (l *Liquidation) Snapshot() map[string]interface{} {
	return map[string]interface{}{
		"status":                 l.Status.String(),
		"liquidation_status":     string(l.LiquidationStatus),
		"document_status":        string(l.DocumentStatus),
		"remarks":                l.Remarks,
		"reviewed_by":            derefString(l.ReviewedBy),
		"accountant_reviewed_by": derefString(l.AccountantReviewedBy),
		"coa_endorsed_by":        derefString(l.COAEndorsedBy),
		"date_submitted":         formatTime(l.DateSubmitted),
		"deleted_at":             formatTime(l.DeletedAt),
	}
}

// LiquidationFilter narrows list queries
type LiquidationFilter struct {
	Status         workflow.State
	HEIID          int64
	IncludeDeleted bool
	Limit          int
	Offset         int
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
