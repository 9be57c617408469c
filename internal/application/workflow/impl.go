package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/garyjia/hei-liquidation/internal/application/dispatcher"
	"github.com/garyjia/hei-liquidation/internal/application/port"
	"github.com/garyjia/hei-liquidation/internal/domain/apperr"
	"github.com/garyjia/hei-liquidation/internal/domain/entity"
	"github.com/garyjia/hei-liquidation/internal/domain/event"
	domainwf "github.com/garyjia/hei-liquidation/internal/domain/workflow"
	"github.com/garyjia/hei-liquidation/pkg/utils"
)

// Dependencies are the collaborators every transition needs
type Dependencies struct {
	Liquidations  port.LiquidationRepository
	Financials    port.FinancialRepository
	Reviews       port.ReviewRepository
	Transmittals  port.TransmittalRepository
	Compliances   port.ComplianceRepository
	Beneficiaries port.BeneficiaryRepository
	Documents     port.DocumentRepository
	References    port.ReferenceLookup
	Capabilities  port.CapabilityChecker
	TxManager     port.TransactionManager
}

// engineImpl is the concrete implementation of Engine
type engineImpl struct {
	deps       Dependencies
	dispatcher dispatcher.Dispatcher
	activity   port.ActivityLogger
	clock      port.Clock
	logger     Logger
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the event dispatcher for emitting events
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithActivityLogger sets the logger that records before/after diffs
func WithActivityLogger(a port.ActivityLogger) EngineOption {
	return func(e *engineImpl) {
		e.activity = a
	}
}

// WithClock overrides the time source
func WithClock(c port.Clock) EngineOption {
	return func(e *engineImpl) {
		e.clock = c
	}
}

// WithLogger sets the engine logger
func WithLogger(l Logger) EngineOption {
	return func(e *engineImpl) {
		e.logger = l
	}
}

// NewEngine creates a new workflow engine
func NewEngine(deps Dependencies, opts ...EngineOption) Engine {
	e := &engineImpl{
		deps:   deps,
		clock:  systemClock{},
		logger: noopLogger{},
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// step describes one workflow operation. trigger resolves the trigger from
// the current status; owner additionally requires the actor to own the record.
type step struct {
	trigger  func(current domainwf.State) domainwf.Trigger
	owner    bool
	validate func(ctx context.Context, l *entity.Liquidation) error
	apply    func(ctx context.Context, l *entity.Liquidation, trigger domainwf.Trigger, now time.Time) error
}

func fixedTrigger(t domainwf.Trigger) func(domainwf.State) domainwf.Trigger {
	return func(domainwf.State) domainwf.Trigger { return t }
}

// SubmitForReview implements Engine
func (e *engineImpl) SubmitForReview(ctx context.Context, liquidationID string, actor entity.Actor, remarks string) (*entity.Liquidation, error) {
	remarks = cleanRemarks(remarks)
	var beneficiaries int

	return e.transition(ctx, liquidationID, actor, step{
		trigger: domainwf.SubmitTrigger,
		owner:   true,
		validate: func(ctx context.Context, l *entity.Liquidation) error {
			count, err := e.deps.Beneficiaries.CountByLiquidationID(ctx, l.ID)
			if err != nil {
				return fmt.Errorf("failed to count beneficiaries: %w", err)
			}
			if count == 0 {
				return apperr.Validation("beneficiaries", "a liquidation without beneficiaries cannot be submitted")
			}
			beneficiaries = count
			return nil
		},
		apply: func(ctx context.Context, l *entity.Liquidation, trigger domainwf.Trigger, now time.Time) error {
			if trigger == domainwf.TriggerResubmit {
				if err := e.recordReview(ctx, l.ID, entity.ReviewTypeHEIResubmission, actor, remarks, nil, now); err != nil {
					return err
				}
			}

			documents, err := e.deps.Documents.CountByLiquidationID(ctx, l.ID)
			if err != nil {
				return fmt.Errorf("failed to count documents: %w", err)
			}

			if remarks != "" {
				l.Remarks = remarks
			}
			l.DocumentStatus = entity.DeriveDocumentStatus(beneficiaries, documents)
			if trigger == domainwf.TriggerSubmit {
				l.DateSubmitted = &now
			}
			return nil
		},
	})
}

// EndorseToAccounting implements Engine
func (e *engineImpl) EndorseToAccounting(ctx context.Context, liquidationID string, actor entity.Actor, fields entity.TransmittalFields) (*entity.Liquidation, error) {
	fields.TransmittalReferenceNo = strings.TrimSpace(fields.TransmittalReferenceNo)
	fields.ReceiverName = strings.TrimSpace(fields.ReceiverName)
	fields.FolderLocationNumber = strings.TrimSpace(fields.FolderLocationNumber)
	fields.Remarks = cleanRemarks(fields.Remarks)

	return e.transition(ctx, liquidationID, actor, step{
		trigger: fixedTrigger(domainwf.TriggerEndorseToAccounting),
		validate: func(ctx context.Context, l *entity.Liquidation) error {
			return validateStruct(fields)
		},
		apply: func(ctx context.Context, l *entity.Liquidation, trigger domainwf.Trigger, now time.Time) error {
			transmittal := &entity.Transmittal{
				LiquidationID:          l.ID,
				TransmittalReferenceNo: fields.TransmittalReferenceNo,
				ReceiverName:           fields.ReceiverName,
				DocumentLocationID:     fields.DocumentLocationID,
				NumberOfFolders:        fields.NumberOfFolders,
				FolderLocationNumber:   fields.FolderLocationNumber,
				GroupTransmittal:       fields.GroupTransmittal,
				EndorsedBy:             actor.ID,
				EndorsedAt:             now,
			}
			if err := e.deps.Transmittals.Create(ctx, transmittal); err != nil {
				return err
			}

			if err := e.deps.Transmittals.AddLocation(ctx, &entity.TransmittalLocation{
				TransmittalID:      transmittal.ID,
				DocumentLocationID: transmittal.DocumentLocationID,
				MovedBy:            actor.ID,
				MovedAt:            now,
			}); err != nil {
				return err
			}

			if fields.Remarks != "" {
				if err := e.recordReview(ctx, l.ID, entity.ReviewTypeRCEndorsement, actor, fields.Remarks, nil, now); err != nil {
					return err
				}
			}

			l.ReviewedBy = stringRef(actor.ID)
			l.ReviewedAt = &now
			return nil
		},
	})
}

// ReturnToHEI implements Engine
func (e *engineImpl) ReturnToHEI(ctx context.Context, liquidationID string, actor entity.Actor, remarks string, complianceDocs *string) (*entity.Liquidation, error) {
	remarks = cleanRemarks(remarks)
	var docs *string
	if complianceDocs != nil {
		if d := cleanRemarks(*complianceDocs); d != "" {
			docs = &d
		}
	}

	return e.transition(ctx, liquidationID, actor, step{
		trigger:  fixedTrigger(domainwf.TriggerReturnToHEI),
		validate: requireRemarks(remarks),
		apply: func(ctx context.Context, l *entity.Liquidation, trigger domainwf.Trigger, now time.Time) error {
			if err := e.recordReview(ctx, l.ID, entity.ReviewTypeRCReturn, actor, remarks, docs, now); err != nil {
				return err
			}

			if docs != nil {
				status, err := e.deps.References.ComplianceStatusByCode(ctx, entity.ComplianceStatusPending)
				if err != nil {
					return fmt.Errorf("failed to resolve compliance status: %w", err)
				}
				if status == nil {
					return apperr.NotFound("compliance status", entity.ComplianceStatusPending)
				}

				if err := e.deps.Compliances.Create(ctx, &entity.Compliance{
					LiquidationID:          l.ID,
					DocumentsRequired:      *docs,
					ComplianceStatusID:     status.ID,
					AmountWithCompleteDocs: decimal.Zero,
					CreatedAt:              now,
				}); err != nil {
					return err
				}
			}

			l.ReviewedBy = stringRef(actor.ID)
			l.ReviewedAt = &now
			return nil
		},
	})
}

// EndorseToCOA implements Engine
func (e *engineImpl) EndorseToCOA(ctx context.Context, liquidationID string, actor entity.Actor, remarks string) (*entity.Liquidation, error) {
	remarks = cleanRemarks(remarks)

	return e.transition(ctx, liquidationID, actor, step{
		trigger: fixedTrigger(domainwf.TriggerEndorseToCOA),
		apply: func(ctx context.Context, l *entity.Liquidation, trigger domainwf.Trigger, now time.Time) error {
			if remarks != "" {
				if err := e.recordReview(ctx, l.ID, entity.ReviewTypeAccountantEndorsement, actor, remarks, nil, now); err != nil {
					return err
				}
			}

			l.AccountantReviewedBy = stringRef(actor.ID)
			l.AccountantReviewedAt = &now
			l.COAEndorsedBy = stringRef(actor.ID)
			l.COAEndorsedAt = &now
			return nil
		},
	})
}

// ReturnToRC implements Engine
func (e *engineImpl) ReturnToRC(ctx context.Context, liquidationID string, actor entity.Actor, remarks string) (*entity.Liquidation, error) {
	remarks = cleanRemarks(remarks)

	return e.transition(ctx, liquidationID, actor, step{
		trigger:  fixedTrigger(domainwf.TriggerReturnToRC),
		validate: requireRemarks(remarks),
		apply: func(ctx context.Context, l *entity.Liquidation, trigger domainwf.Trigger, now time.Time) error {
			if err := e.recordReview(ctx, l.ID, entity.ReviewTypeAccountantReturn, actor, remarks, nil, now); err != nil {
				return err
			}

			l.AccountantReviewedBy = stringRef(actor.ID)
			l.AccountantReviewedAt = &now
			return nil
		},
	})
}

// PermittedOperations implements Engine
func (e *engineImpl) PermittedOperations(ctx context.Context, liquidationID string, actor entity.Actor) ([]domainwf.Trigger, error) {
	l, err := e.load(ctx, liquidationID)
	if err != nil {
		return nil, err
	}

	machine := domainwf.BuildLiquidationStateMachine(l.Status)
	permitted := make([]domainwf.Trigger, 0, 2)
	for _, trigger := range machine.PermittedTriggers() {
		owner := trigger == domainwf.TriggerSubmit || trigger == domainwf.TriggerResubmit
		if e.authorized(ctx, l, actor, trigger, owner) {
			permitted = append(permitted, trigger)
		}
	}

	return permitted, nil
}

// transition runs the checks and the mutation in one transaction:
// load, capability, edge, validation, then side effects and the status write.
// An unauthorized actor is not told the current status.
// Activity logging and event dispatch happen only after commit.
func (e *engineImpl) transition(ctx context.Context, liquidationID string, actor entity.Actor, s step) (*entity.Liquidation, error) {
	var (
		result   *entity.Liquidation
		before   map[string]interface{}
		previous domainwf.State
		trigger  domainwf.Trigger
	)

	err := e.deps.TxManager.WithTransaction(ctx, func(txCtx context.Context) error {
		l, err := e.load(txCtx, liquidationID)
		if err != nil {
			return err
		}

		previous = l.Status
		trigger = s.trigger(l.Status)

		if !e.authorized(txCtx, l, actor, trigger, s.owner) {
			return apperr.Unauthorized(actor.ID, TriggerCapability(trigger)).
				WithLiquidation(l.ID, trigger.String(), "")
		}

		next, err := domainwf.BuildLiquidationStateMachine(l.Status).Peek(txCtx, trigger)
		if err != nil {
			return apperr.InvalidState(l.ID, trigger.String(), l.Status.String())
		}

		if s.validate != nil {
			if err := s.validate(txCtx, l); err != nil {
				return withLiquidationContext(err, l, trigger)
			}
		}

		before = l.Snapshot()
		now := e.clock.Now().UTC()

		if err := s.apply(txCtx, l, trigger, now); err != nil {
			return withLiquidationContext(err, l, trigger)
		}

		l.Status = next
		l.LiquidationStatus = entity.DeriveLiquidationStatus(l.Financial)
		l.UpdatedAt = now
		if err := e.deps.Liquidations.Update(txCtx, l); err != nil {
			return fmt.Errorf("failed to update liquidation status: %w", err)
		}

		result, err = e.load(txCtx, l.ID)
		return err
	})
	if err != nil {
		e.logger.Error("Workflow transition rejected",
			"liquidation_id", liquidationID,
			"actor_id", actor.ID,
			"trigger", trigger.String(),
			"error", err)
		return nil, err
	}

	e.logger.Info("Workflow transition completed",
		"liquidation_id", result.ID,
		"control_no", result.ControlNo,
		"trigger", trigger.String(),
		"from", previous.String(),
		"to", result.Status.String(),
		"actor_id", actor.ID)

	e.afterCommit(ctx, actor, trigger, previous, before, result)
	return result, nil
}

func (e *engineImpl) afterCommit(ctx context.Context, actor entity.Actor, trigger domainwf.Trigger, previous domainwf.State, before map[string]interface{}, l *entity.Liquidation) {
	if e.activity != nil {
		e.activity.Log(ctx, entity.NewActivityLog(
			entity.ActivityEntityLiquidation, l.ID, trigger.String(), actor.ID, before, l.Snapshot()))
	}

	if e.dispatcher == nil {
		return
	}

	eventType, description := describeTransition(trigger, l.ControlNo)
	evt := event.NewEvent(eventType, l.ID, actor.ID, description, map[string]interface{}{
		"control_no":  l.ControlNo,
		"hei_id":      l.HEIID,
		"created_by":  l.CreatedBy,
		"from_status": previous.String(),
		"to_status":   l.Status.String(),
		"trigger":     trigger.String(),
	})
	e.dispatcher.DispatchAsync(ctx, evt)
}

// load fetches a live liquidation with its Financial
func (e *engineImpl) load(ctx context.Context, liquidationID string) (*entity.Liquidation, error) {
	l, err := e.deps.Liquidations.GetByID(ctx, liquidationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load liquidation: %w", err)
	}
	if l == nil || l.IsDeleted() {
		return nil, apperr.NotFound("liquidation", liquidationID)
	}

	financial, err := e.deps.Financials.GetByLiquidationID(ctx, l.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load financial: %w", err)
	}
	l.Financial = financial

	return l, nil
}

func (e *engineImpl) authorized(ctx context.Context, l *entity.Liquidation, actor entity.Actor, trigger domainwf.Trigger, owner bool) bool {
	if !e.deps.Capabilities.HasCapability(ctx, actor, TriggerCapability(trigger)) {
		return false
	}
	return !owner || l.IsOwnedBy(actor)
}

func (e *engineImpl) recordReview(ctx context.Context, liquidationID string, reviewType entity.ReviewType, actor entity.Actor, remarks string, complianceDocs *string, now time.Time) error {
	_, err := RecordReview(ctx, e.deps.Reviews, liquidationID, reviewType, actor, remarks, complianceDocs, now)
	return err
}

var transitionEvents = map[domainwf.Trigger]struct {
	eventType event.Type
	verb      string
}{
	domainwf.TriggerSubmit:              {event.TypeLiquidationSubmitted, "was submitted for review"},
	domainwf.TriggerResubmit:            {event.TypeLiquidationResubmitted, "was resubmitted for review"},
	domainwf.TriggerEndorseToAccounting: {event.TypeEndorsedToAccounting, "was endorsed to accounting"},
	domainwf.TriggerReturnToHEI:         {event.TypeReturnedToHEI, "was returned to the HEI"},
	domainwf.TriggerEndorseToCOA:        {event.TypeEndorsedToCOA, "was endorsed to COA"},
	domainwf.TriggerReturnToRC:          {event.TypeReturnedToRC, "was returned to the regional coordinator"},
}

func describeTransition(trigger domainwf.Trigger, controlNo string) (event.Type, string) {
	te := transitionEvents[trigger]
	return te.eventType, fmt.Sprintf("Liquidation %s %s", controlNo, te.verb)
}

func requireRemarks(remarks string) func(context.Context, *entity.Liquidation) error {
	return func(context.Context, *entity.Liquidation) error {
		if remarks == "" {
			return apperr.Validation("remarks", "remarks are required")
		}
		return nil
	}
}

func validateStruct(s interface{}) error {
	fields, err := utils.ValidateStruct(s)
	if err != nil {
		return fmt.Errorf("failed to validate input: %w", err)
	}
	if len(fields) > 0 {
		fe := fields[0]
		return apperr.Validation(fe.Field, fmt.Sprintf("failed %q constraint", fe.Tag))
	}
	return nil
}

// withLiquidationContext fills in liquidation context on app errors that lack it
func withLiquidationContext(err error, l *entity.Liquidation, trigger domainwf.Trigger) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) && appErr.LiquidationID == "" {
		appErr.WithLiquidation(l.ID, trigger.String(), l.Status.String())
	}
	return err
}

func cleanRemarks(s string) string {
	return strings.TrimSpace(utils.SanitizeString(s))
}

func stringRef(s string) *string {
	return &s
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type noopLogger struct{}

func (noopLogger) Info(string, ...interface{}) {}
func (noopLogger) Error(string, ...interface{}) {}
