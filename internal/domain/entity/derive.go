package entity

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// DocumentStatus is the derived completeness of a liquidation's attachments
type DocumentStatus string

const (
	DocumentStatusNone     DocumentStatus = "None"
	DocumentStatusPartial  DocumentStatus = "Partial"
	DocumentStatusComplete DocumentStatus = "Complete"
)

// LiquidationStatus is the derived financial completion of a liquidation
type LiquidationStatus string

const (
	LiquidationStatusUnliquidated LiquidationStatus = "Unliquidated"
	LiquidationStatusPartial      LiquidationStatus = "Partially Liquidated"
	LiquidationStatusFull         LiquidationStatus = "Fully Liquidated"
)

// ControlNumberDigits is the zero-padded width of the sequence suffix
const ControlNumberDigits = 5

// DeriveDocumentStatus computes the document tri-state from attachment counts
func DeriveDocumentStatus(beneficiaries, documents int) DocumentStatus {
	switch {
	case beneficiaries == 0 && documents == 0:
		return DocumentStatusNone
	case beneficiaries > 0 && documents > 0:
		return DocumentStatusComplete
	default:
		return DocumentStatusPartial
	}
}

// DeriveLiquidationStatus computes the financial tri-state. Refunds count
// towards settling the amount received.
func DeriveLiquidationStatus(f *Financial) LiquidationStatus {
	if f == nil {
		return LiquidationStatusUnliquidated
	}

	settled := f.AmountLiquidated.Add(f.AmountRefunded)
	if !settled.GreaterThan(decimal.Zero) {
		return LiquidationStatusUnliquidated
	}
	if f.AmountReceived.GreaterThan(decimal.Zero) && settled.GreaterThanOrEqual(f.AmountReceived) {
		return LiquidationStatusFull
	}
	return LiquidationStatusPartial
}

// ControlNumberPrefix normalizes a program code into a control number prefix
func ControlNumberPrefix(programCode string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(programCode) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FormatControlNumber renders {PREFIX}-{YYYY}-{NNNNN}
func FormatControlNumber(prefix string, year, seq int) string {
	return fmt.Sprintf("%s-%04d-%0*d", prefix, year, ControlNumberDigits, seq)
}

// ParseControlNumberSequence extracts the year and sequence suffix of a control number
func ParseControlNumberSequence(controlNo string) (year, seq int, err error) {
	parts := strings.Split(controlNo, "-")
	if len(parts) < 3 {
		return 0, 0, fmt.Errorf("malformed control number %q", controlNo)
	}

	year, err = strconv.Atoi(parts[len(parts)-2])
	if err != nil {
		return 0, 0, fmt.Errorf("malformed control number year %q: %w", controlNo, err)
	}

	seq, err = strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return 0, 0, fmt.Errorf("malformed control number sequence %q: %w", controlNo, err)
	}

	return year, seq, nil
}
