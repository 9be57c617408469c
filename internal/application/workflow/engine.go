package workflow

import (
	"context"

	"github.com/garyjia/hei-liquidation/internal/domain/entity"
	domainwf "github.com/garyjia/hei-liquidation/internal/domain/workflow"
)

// Engine drives liquidations through the review workflow. Every operation
// returns the refreshed aggregate with its Financial loaded, or an *apperr.Error.
type Engine interface {
	// SubmitForReview moves a draft or returned liquidation to RC review
	SubmitForReview(ctx context.Context, liquidationID string, actor entity.Actor, remarks string) (*entity.Liquidation, error)

	// EndorseToAccounting records a transmittal and hands the liquidation to accounting
	EndorseToAccounting(ctx context.Context, liquidationID string, actor entity.Actor, fields entity.TransmittalFields) (*entity.Liquidation, error)

	// ReturnToHEI sends the liquidation back to the HEI. complianceDocs, when
	// non-nil and non-blank, opens a compliance record.
	ReturnToHEI(ctx context.Context, liquidationID string, actor entity.Actor, remarks string, complianceDocs *string) (*entity.Liquidation, error)

	// EndorseToCOA completes the internal workflow
	EndorseToCOA(ctx context.Context, liquidationID string, actor entity.Actor, remarks string) (*entity.Liquidation, error)

	// ReturnToRC sends the liquidation back from accounting to RC review
	ReturnToRC(ctx context.Context, liquidationID string, actor entity.Actor, remarks string) (*entity.Liquidation, error)

	// PermittedOperations lists the triggers the actor may fire from the current status
	PermittedOperations(ctx context.Context, liquidationID string, actor entity.Actor) ([]domainwf.Trigger, error)
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// TriggerCapability maps each trigger to the capability that gates it
func TriggerCapability(trigger domainwf.Trigger) string {
	switch trigger {
	case domainwf.TriggerSubmit, domainwf.TriggerResubmit:
		return entity.CapabilitySubmitLiquidation
	case domainwf.TriggerEndorseToAccounting:
		return entity.CapabilityEndorseToAccounting
	case domainwf.TriggerReturnToHEI:
		return entity.CapabilityReturnApplication
	case domainwf.TriggerEndorseToCOA:
		return entity.CapabilityEndorseToCOA
	case domainwf.TriggerReturnToRC:
		return entity.CapabilityReturnToRC
	default:
		return ""
	}
}
