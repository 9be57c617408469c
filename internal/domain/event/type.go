package event

// Type identifies the type of domain event
type Type string

const (
	TypeLiquidationCreated     Type = "liquidation.created"
	TypeLiquidationSubmitted   Type = "liquidation.submitted"
	TypeLiquidationResubmitted Type = "liquidation.resubmitted"
	TypeEndorsedToAccounting   Type = "liquidation.endorsed_to_accounting"
	TypeReturnedToHEI          Type = "liquidation.returned_to_hei"
	TypeEndorsedToCOA          Type = "liquidation.endorsed_to_coa"
	TypeReturnedToRC           Type = "liquidation.returned_to_rc"
	TypeTransmittalRelocated   Type = "transmittal.relocated"
)

// ModuleLiquidation is the module name attached to liquidation events
const ModuleLiquidation = "liquidation"

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeLiquidationCreated,
		TypeLiquidationSubmitted,
		TypeLiquidationResubmitted,
		TypeEndorsedToAccounting,
		TypeReturnedToHEI,
		TypeEndorsedToCOA,
		TypeReturnedToRC,
		TypeTransmittalRelocated:
		return true
	default:
		return false
	}
}
