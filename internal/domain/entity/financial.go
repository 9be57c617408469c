package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Financial holds the amounts tied 1:1 to a liquidation
type Financial struct {
	ID               int64           `json:"id"`
	LiquidationID    string          `json:"liquidation_id"`
	AmountReceived   decimal.Decimal `json:"amount_received"`
	AmountDisbursed  decimal.Decimal `json:"amount_disbursed"`
	AmountLiquidated decimal.Decimal `json:"amount_liquidated"`
	AmountRefunded   decimal.Decimal `json:"amount_refunded"`
	NumberOfGrantees int             `json:"number_of_grantees"`
	DateFundReleased *time.Time      `json:"date_fund_released,omitempty"`
	FundSource       string          `json:"fund_source,omitempty"`
	Purpose          string          `json:"purpose,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// FinancialFields is a partial update; nil fields are left unchanged
type FinancialFields struct {
	AmountReceived   *decimal.Decimal
	AmountDisbursed  *decimal.Decimal
	AmountLiquidated *decimal.Decimal
	AmountRefunded   *decimal.Decimal
	NumberOfGrantees *int
	DateFundReleased *time.Time
	FundSource       *string
	Purpose          *string
}

// Apply merges the fields into f. When only amount_received is supplied,
// amount_disbursed mirrors it.
func (fields FinancialFields) Apply(f *Financial) {
	if fields.AmountReceived != nil {
		f.AmountReceived = *fields.AmountReceived
		if fields.AmountDisbursed == nil {
			f.AmountDisbursed = *fields.AmountReceived
		}
	}
	if fields.AmountDisbursed != nil {
		f.AmountDisbursed = *fields.AmountDisbursed
	}
	if fields.AmountLiquidated != nil {
		f.AmountLiquidated = *fields.AmountLiquidated
	}
	if fields.AmountRefunded != nil {
		f.AmountRefunded = *fields.AmountRefunded
	}
	if fields.NumberOfGrantees != nil {
		f.NumberOfGrantees = *fields.NumberOfGrantees
	}
	if fields.DateFundReleased != nil {
		t := *fields.DateFundReleased
		f.DateFundReleased = &t
	}
	if fields.FundSource != nil {
		f.FundSource = *fields.FundSource
	}
	if fields.Purpose != nil {
		f.Purpose = *fields.Purpose
	}
}

// Overliquidated reports amount_liquidated > amount_received. This is surfaced
// for reporting only and never rejected at write time.
func (f *Financial) Overliquidated() bool {
	return f.AmountLiquidated.GreaterThan(f.AmountReceived)
}

// Unliquidated returns the balance not yet accounted for by liquidation or refund
func (f *Financial) Unliquidated() decimal.Decimal {
	return f.AmountReceived.Sub(f.AmountLiquidated).Sub(f.AmountRefunded)
}

// Snapshot returns the ledger fields for before/after activity diffs
func (f *Financial) Snapshot() map[string]interface{} {
	return map[string]interface{}{
		"amount_received":    f.AmountReceived.String(),
		"amount_disbursed":   f.AmountDisbursed.String(),
		"amount_liquidated":  f.AmountLiquidated.String(),
		"amount_refunded":    f.AmountRefunded.String(),
		"number_of_grantees": f.NumberOfGrantees,
		"date_fund_released": formatTime(f.DateFundReleased),
		"fund_source":        f.FundSource,
		"purpose":            f.Purpose,
	}
}
