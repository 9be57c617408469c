package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Beneficiary is a grantee line item attached to a liquidation
type Beneficiary struct {
	ID            int64           `json:"id"`
	LiquidationID string          `json:"liquidation_id"`
	StudentNo     string          `json:"student_no" validate:"required,max=64"`
	LastName      string          `json:"last_name" validate:"required,max=128"`
	FirstName     string          `json:"first_name" validate:"required,max=128"`
	MiddleName    string          `json:"middle_name,omitempty" validate:"max=128"`
	Amount        decimal.Decimal `json:"amount"`
	CreatedAt     time.Time       `json:"created_at"`
}

// Document is metadata for an uploaded file; the blob itself is stored elsewhere
type Document struct {
	ID                    int64     `json:"id"`
	LiquidationID         string    `json:"liquidation_id"`
	DocumentRequirementID *int64    `json:"document_requirement_id,omitempty"`
	FileName              string    `json:"file_name" validate:"required,max=255"`
	ContentType           string    `json:"content_type" validate:"max=128"`
	SizeBytes             int64     `json:"size_bytes" validate:"gte=0"`
	StorageKey            string    `json:"storage_key" validate:"required"`
	UploadedBy            string    `json:"uploaded_by"`
	UploadedAt            time.Time `json:"uploaded_at"`
}
