package service

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/garyjia/hei-liquidation/internal/application/dispatcher"
	"github.com/garyjia/hei-liquidation/internal/application/port"
	"github.com/garyjia/hei-liquidation/internal/domain/apperr"
	"github.com/garyjia/hei-liquidation/internal/domain/entity"
	"github.com/garyjia/hei-liquidation/internal/domain/event"
	domainwf "github.com/garyjia/hei-liquidation/internal/domain/workflow"
	"github.com/garyjia/hei-liquidation/pkg/utils"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Page size bounds for ListLiquidations
const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// controlNumberFallbackPrefix is used when a program code has no letters or digits
const controlNumberFallbackPrefix = "LIQ"

// CreateLiquidationInput is what an HEI supplies to open a draft
type CreateLiquidationInput struct {
	HEIExternalID    string           `json:"hei_id" validate:"required,max=64"`
	ProgramID        int64            `json:"program_id" validate:"required,gt=0"`
	AcademicYear     string           `json:"academic_year" validate:"required,max=32"`
	Semester         string           `json:"semester" validate:"max=64"`
	AmountReceived   decimal.Decimal  `json:"amount_received"`
	AmountDisbursed  *decimal.Decimal `json:"amount_disbursed,omitempty"`
	NumberOfGrantees int              `json:"number_of_grantees" validate:"gte=0"`
	DateFundReleased *time.Time       `json:"date_fund_released,omitempty"`
	FundSource       string           `json:"fund_source" validate:"max=255"`
	Purpose          string           `json:"purpose" validate:"max=2000"`
	Remarks          string           `json:"remarks" validate:"max=2000"`
}

// AttachDocumentInput describes one uploaded file. Content is optional; when
// empty only the metadata row is written.
type AttachDocumentInput struct {
	FileName              string `validate:"required,max=255"`
	ContentType           string `validate:"max=128"`
	DocumentRequirementID *int64
	SizeBytes             int64 `validate:"gte=0"`
	Content               []byte
}

// LiquidationService owns the liquidation aggregate outside of workflow transitions
type LiquidationService interface {
	CreateLiquidation(ctx context.Context, actor entity.Actor, input CreateLiquidationInput) (*entity.Liquidation, error)
	GetLiquidation(ctx context.Context, id string) (*entity.Liquidation, error)
	ListLiquidations(ctx context.Context, filter entity.LiquidationFilter) ([]*entity.Liquidation, error)
	SoftDeleteLiquidation(ctx context.Context, id string, actor entity.Actor) error

	UpsertFinancial(ctx context.Context, liquidationID string, actor entity.Actor, fields entity.FinancialFields) (*entity.Financial, error)
	AddBeneficiary(ctx context.Context, liquidationID string, actor entity.Actor, beneficiary entity.Beneficiary) (*entity.Beneficiary, error)
	ListBeneficiaries(ctx context.Context, liquidationID string) ([]*entity.Beneficiary, error)
	AttachDocument(ctx context.Context, liquidationID string, actor entity.Actor, input AttachDocumentInput) (*entity.Document, error)
	ListDocuments(ctx context.Context, liquidationID string) ([]*entity.Document, error)

	History(ctx context.Context, liquidationID string) ([]*entity.Review, error)
	ActiveTransmittal(ctx context.Context, liquidationID string) (*entity.Transmittal, error)
	RelocateTransmittal(ctx context.Context, liquidationID string, actor entity.Actor, locationID int64, remarks string) (*entity.Transmittal, error)
	ActiveCompliance(ctx context.Context, liquidationID string) (*entity.Compliance, error)
}

// LiquidationRepositories groups the stores the service writes through
type LiquidationRepositories struct {
	Liquidations  port.LiquidationRepository
	Financials    port.FinancialRepository
	Reviews       port.ReviewRepository
	Transmittals  port.TransmittalRepository
	Compliances   port.ComplianceRepository
	Beneficiaries port.BeneficiaryRepository
	Documents     port.DocumentRepository
}

type liquidationServiceImpl struct {
	repos        LiquidationRepositories
	references   port.ReferenceLookup
	capabilities port.CapabilityChecker
	txManager    port.TransactionManager
	locker       port.Locker
	storage      port.FileStorage
	dispatcher   dispatcher.Dispatcher
	activity     port.ActivityLogger
	clock        port.Clock
	logger       Logger
}

// LiquidationServiceOption configures optional collaborators
type LiquidationServiceOption func(*liquidationServiceImpl)

// WithFileStorage stores document content alongside metadata
func WithFileStorage(storage port.FileStorage) LiquidationServiceOption {
	return func(s *liquidationServiceImpl) {
		s.storage = storage
	}
}

// WithEventDispatcher emits events after committed mutations
func WithEventDispatcher(d dispatcher.Dispatcher) LiquidationServiceOption {
	return func(s *liquidationServiceImpl) {
		s.dispatcher = d
	}
}

// WithActivity records before/after diffs after committed mutations
func WithActivity(a port.ActivityLogger) LiquidationServiceOption {
	return func(s *liquidationServiceImpl) {
		s.activity = a
	}
}

// NewLiquidationService creates a new LiquidationService
func NewLiquidationService(
	repos LiquidationRepositories,
	references port.ReferenceLookup,
	capabilities port.CapabilityChecker,
	txManager port.TransactionManager,
	locker port.Locker,
	clock port.Clock,
	logger Logger,
	opts ...LiquidationServiceOption,
) LiquidationService {
	s := &liquidationServiceImpl{
		repos:        repos,
		references:   references,
		capabilities: capabilities,
		txManager:    txManager,
		locker:       locker,
		clock:        clock,
		logger:       logger,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// CreateLiquidation opens a draft with its Financial row and a fresh control number
func (s *liquidationServiceImpl) CreateLiquidation(ctx context.Context, actor entity.Actor, input CreateLiquidationInput) (*entity.Liquidation, error) {
	input.HEIExternalID = strings.TrimSpace(input.HEIExternalID)
	input.AcademicYear = strings.TrimSpace(input.AcademicYear)
	input.Remarks = cleanText(input.Remarks)
	input.FundSource = cleanText(input.FundSource)
	input.Purpose = cleanText(input.Purpose)

	if err := validateInput(input); err != nil {
		return nil, err
	}
	if err := nonNegative("AmountReceived", &input.AmountReceived); err != nil {
		return nil, err
	}
	if err := nonNegative("AmountDisbursed", input.AmountDisbursed); err != nil {
		return nil, err
	}

	if !s.capabilities.HasCapability(ctx, actor, entity.CapabilitySubmitLiquidation) {
		return nil, apperr.Unauthorized(actor.ID, entity.CapabilitySubmitLiquidation)
	}

	hei, err := s.references.HEIByExternalID(ctx, input.HEIExternalID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve HEI: %w", err)
	}
	if hei == nil {
		return nil, apperr.NotFound("hei", input.HEIExternalID)
	}
	if actor.HEIID != nil && *actor.HEIID != hei.ID {
		return nil, apperr.Unauthorized(actor.ID, entity.CapabilitySubmitLiquidation)
	}

	program, err := s.references.ProgramByID(ctx, input.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve program: %w", err)
	}
	if program == nil {
		return nil, apperr.NotFound("program", fmt.Sprint(input.ProgramID))
	}

	year, err := s.references.AcademicYearByLabel(ctx, input.AcademicYear)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve academic year: %w", err)
	}
	if year == nil {
		return nil, apperr.NotFound("academic year", input.AcademicYear)
	}

	semester, err := s.references.SemesterByLabel(ctx, input.Semester)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve semester: %w", err)
	}
	if semester == nil {
		return nil, apperr.NotFound("semester", input.Semester)
	}

	now := s.clock.Now().UTC()
	prefix := entity.ControlNumberPrefix(program.Code)
	if prefix == "" {
		prefix = controlNumberFallbackPrefix
	}

	financial := &entity.Financial{}
	entity.FinancialFields{
		AmountReceived:   &input.AmountReceived,
		AmountDisbursed:  input.AmountDisbursed,
		NumberOfGrantees: &input.NumberOfGrantees,
		DateFundReleased: input.DateFundReleased,
		FundSource:       &input.FundSource,
		Purpose:          &input.Purpose,
	}.Apply(financial)

	l := &entity.Liquidation{
		ID:                uuid.NewString(),
		HEIID:             hei.ID,
		ProgramID:         program.ID,
		AcademicYearID:    year.ID,
		SemesterID:        semester.ID,
		CreatedBy:         actor.ID,
		Status:            domainwf.StateDraft,
		LiquidationStatus: entity.DeriveLiquidationStatus(financial),
		DocumentStatus:    entity.DocumentStatusNone,
		Remarks:           input.Remarks,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	// Numbers are per year, so the lock only serializes creators within one year.
	// The unique index on control_no still rejects anything that slips through.
	release, err := s.locker.Obtain(ctx, fmt.Sprintf("control-number:%d", now.Year()))
	if err != nil {
		return nil, fmt.Errorf("failed to obtain control number lock: %w", err)
	}
	defer release()

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		seq, err := s.repos.Liquidations.MaxControlSequence(txCtx, now.Year())
		if err != nil {
			return fmt.Errorf("failed to read control number sequence: %w", err)
		}
		l.ControlNo = entity.FormatControlNumber(prefix, now.Year(), seq+1)

		if err := s.repos.Liquidations.Create(txCtx, l); err != nil {
			return fmt.Errorf("failed to create liquidation: %w", err)
		}

		financial.LiquidationID = l.ID
		financial.CreatedAt = now
		financial.UpdatedAt = now
		if err := s.repos.Financials.Create(txCtx, financial); err != nil {
			return fmt.Errorf("failed to create financial: %w", err)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to create liquidation",
			"hei_id", hei.ID,
			"actor_id", actor.ID,
			"error", err)
		return nil, err
	}
	l.Financial = financial

	s.logger.Info("Liquidation created",
		"liquidation_id", l.ID,
		"control_no", l.ControlNo,
		"hei_id", l.HEIID,
		"actor_id", actor.ID)

	s.logActivity(ctx, entity.ActivityEntityLiquidation, l.ID, "create", actor, nil, l.Snapshot())
	s.emit(ctx, event.TypeLiquidationCreated, l, actor,
		fmt.Sprintf("Liquidation %s was created", l.ControlNo), nil)

	return l, nil
}

// GetLiquidation returns a live liquidation with its Financial
func (s *liquidationServiceImpl) GetLiquidation(ctx context.Context, id string) (*entity.Liquidation, error) {
	return s.load(ctx, id)
}

// ListLiquidations returns a page of liquidations, newest first
func (s *liquidationServiceImpl) ListLiquidations(ctx context.Context, filter entity.LiquidationFilter) ([]*entity.Liquidation, error) {
	if filter.Status != "" {
		if _, err := domainwf.ParseState(filter.Status.String()); err != nil {
			return nil, apperr.Validation("status", err.Error())
		}
	}
	if filter.Limit <= 0 {
		filter.Limit = DefaultPageSize
	}
	if filter.Limit > MaxPageSize {
		filter.Limit = MaxPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	liquidations, err := s.repos.Liquidations.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list liquidations: %w", err)
	}

	for _, l := range liquidations {
		financial, err := s.repos.Financials.GetByLiquidationID(ctx, l.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to load financial: %w", err)
		}
		l.Financial = financial
	}

	return liquidations, nil
}

// SoftDeleteLiquidation hides a draft from every other operation
func (s *liquidationServiceImpl) SoftDeleteLiquidation(ctx context.Context, id string, actor entity.Actor) error {
	var before, after map[string]interface{}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		l, err := s.load(txCtx, id)
		if err != nil {
			return err
		}
		if l.Status != domainwf.StateDraft {
			return apperr.InvalidState(l.ID, "delete", l.Status.String())
		}
		if err := s.requireOwner(txCtx, l, actor); err != nil {
			return err
		}

		before = l.Snapshot()
		now := s.clock.Now().UTC()
		l.DeletedAt = &now
		l.UpdatedAt = now
		if err := s.repos.Liquidations.Update(txCtx, l); err != nil {
			return fmt.Errorf("failed to delete liquidation: %w", err)
		}
		after = l.Snapshot()
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("Liquidation deleted", "liquidation_id", id, "actor_id", actor.ID)
	s.logActivity(ctx, entity.ActivityEntityLiquidation, id, "delete", actor, before, after)
	return nil
}

// UpsertFinancial merges fields into the Financial row and re-derives the
// liquidation status. Overliquidation is accepted and only logged.
func (s *liquidationServiceImpl) UpsertFinancial(ctx context.Context, liquidationID string, actor entity.Actor, fields entity.FinancialFields) (*entity.Financial, error) {
	amounts := []struct {
		field  string
		amount *decimal.Decimal
	}{
		{"AmountReceived", fields.AmountReceived},
		{"AmountDisbursed", fields.AmountDisbursed},
		{"AmountLiquidated", fields.AmountLiquidated},
		{"AmountRefunded", fields.AmountRefunded},
	}
	for _, a := range amounts {
		if err := nonNegative(a.field, a.amount); err != nil {
			return nil, err
		}
	}
	if fields.NumberOfGrantees != nil && *fields.NumberOfGrantees < 0 {
		return nil, apperr.Validation("NumberOfGrantees", "must not be negative")
	}
	if fields.FundSource != nil {
		v := cleanText(*fields.FundSource)
		fields.FundSource = &v
	}
	if fields.Purpose != nil {
		v := cleanText(*fields.Purpose)
		fields.Purpose = &v
	}

	var (
		result *entity.Financial
		before map[string]interface{}
	)

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		l, err := s.load(txCtx, liquidationID)
		if err != nil {
			return err
		}
		if err := s.requireEditor(txCtx, l, actor); err != nil {
			return err
		}

		now := s.clock.Now().UTC()
		financial := l.Financial
		if financial == nil {
			financial = &entity.Financial{LiquidationID: l.ID, CreatedAt: now}
			before = map[string]interface{}{}
		} else {
			before = financial.Snapshot()
		}

		fields.Apply(financial)
		financial.UpdatedAt = now

		if financial.ID == 0 {
			err = s.repos.Financials.Create(txCtx, financial)
		} else {
			err = s.repos.Financials.Update(txCtx, financial)
		}
		if err != nil {
			return fmt.Errorf("failed to save financial: %w", err)
		}

		l.LiquidationStatus = entity.DeriveLiquidationStatus(financial)
		l.UpdatedAt = now
		if err := s.repos.Liquidations.Update(txCtx, l); err != nil {
			return fmt.Errorf("failed to update liquidation status: %w", err)
		}

		result = financial
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Overliquidated() {
		s.logger.Info("Liquidation is overliquidated",
			"liquidation_id", liquidationID,
			"amount_received", result.AmountReceived.String(),
			"amount_liquidated", result.AmountLiquidated.String())
	}

	s.logActivity(ctx, entity.ActivityEntityFinancial, liquidationID, "update", actor, before, result.Snapshot())
	return result, nil
}

// AddBeneficiary attaches a grantee line item while the HEI holds the liquidation
func (s *liquidationServiceImpl) AddBeneficiary(ctx context.Context, liquidationID string, actor entity.Actor, beneficiary entity.Beneficiary) (*entity.Beneficiary, error) {
	beneficiary.StudentNo = strings.TrimSpace(beneficiary.StudentNo)
	beneficiary.LastName = strings.TrimSpace(beneficiary.LastName)
	beneficiary.FirstName = strings.TrimSpace(beneficiary.FirstName)
	beneficiary.MiddleName = strings.TrimSpace(beneficiary.MiddleName)

	if err := validateInput(beneficiary); err != nil {
		return nil, err
	}
	if err := nonNegative("Amount", &beneficiary.Amount); err != nil {
		return nil, err
	}

	err := s.withAttachment(ctx, liquidationID, actor, "add_beneficiary", func(txCtx context.Context, l *entity.Liquidation, now time.Time) error {
		beneficiary.ID = 0
		beneficiary.LiquidationID = l.ID
		beneficiary.CreatedAt = now
		if err := s.repos.Beneficiaries.Create(txCtx, &beneficiary); err != nil {
			return fmt.Errorf("failed to add beneficiary: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &beneficiary, nil
}

// ListBeneficiaries returns a liquidation's beneficiaries
func (s *liquidationServiceImpl) ListBeneficiaries(ctx context.Context, liquidationID string) ([]*entity.Beneficiary, error) {
	if _, err := s.load(ctx, liquidationID); err != nil {
		return nil, err
	}
	return s.repos.Beneficiaries.ListByLiquidationID(ctx, liquidationID)
}

// AttachDocument stores a file's metadata and, when storage is configured,
// its content. A blob written before a failed transaction is removed again.
func (s *liquidationServiceImpl) AttachDocument(ctx context.Context, liquidationID string, actor entity.Actor, input AttachDocumentInput) (*entity.Document, error) {
	input.FileName = strings.TrimSpace(path.Base(strings.ReplaceAll(input.FileName, "\\", "/")))
	if input.FileName == "." || input.FileName == "/" {
		input.FileName = ""
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}

	doc := &entity.Document{
		DocumentRequirementID: input.DocumentRequirementID,
		FileName:              input.FileName,
		ContentType:           input.ContentType,
		SizeBytes:             input.SizeBytes,
		StorageKey:            fmt.Sprintf("liquidations/%s/%s-%s", liquidationID, uuid.NewString(), input.FileName),
		UploadedBy:            actor.ID,
	}
	if len(input.Content) > 0 {
		doc.SizeBytes = int64(len(input.Content))
	}

	stored := false
	err := s.withAttachment(ctx, liquidationID, actor, "attach_document", func(txCtx context.Context, l *entity.Liquidation, now time.Time) error {
		if s.storage != nil && len(input.Content) > 0 {
			if err := s.storage.Save(txCtx, doc.StorageKey, input.Content); err != nil {
				return fmt.Errorf("failed to store document: %w", err)
			}
			stored = true
		}

		doc.LiquidationID = l.ID
		doc.UploadedAt = now
		if err := s.repos.Documents.Create(txCtx, doc); err != nil {
			return fmt.Errorf("failed to attach document: %w", err)
		}
		return nil
	})
	if err != nil {
		if stored {
			if delErr := s.storage.Delete(ctx, doc.StorageKey); delErr != nil {
				s.logger.Error("Failed to remove orphaned document",
					"storage_key", doc.StorageKey,
					"error", delErr)
			}
		}
		return nil, err
	}

	return doc, nil
}

// ListDocuments returns a liquidation's document metadata
func (s *liquidationServiceImpl) ListDocuments(ctx context.Context, liquidationID string) ([]*entity.Document, error) {
	if _, err := s.load(ctx, liquidationID); err != nil {
		return nil, err
	}
	return s.repos.Documents.ListByLiquidationID(ctx, liquidationID)
}

// History returns the review trail ordered by performed_at
func (s *liquidationServiceImpl) History(ctx context.Context, liquidationID string) ([]*entity.Review, error) {
	if _, err := s.load(ctx, liquidationID); err != nil {
		return nil, err
	}

	reviews, err := s.repos.Reviews.ListByLiquidationID(ctx, liquidationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	return reviews, nil
}

// ActiveTransmittal returns the latest transmittal, or NotFound if none exists
func (s *liquidationServiceImpl) ActiveTransmittal(ctx context.Context, liquidationID string) (*entity.Transmittal, error) {
	if _, err := s.load(ctx, liquidationID); err != nil {
		return nil, err
	}

	t, err := s.repos.Transmittals.GetActiveByLiquidationID(ctx, liquidationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load transmittal: %w", err)
	}
	if t == nil {
		return nil, apperr.NotFound("transmittal", liquidationID)
	}
	return t, nil
}

// RelocateTransmittal appends a location to the active transmittal's history
func (s *liquidationServiceImpl) RelocateTransmittal(ctx context.Context, liquidationID string, actor entity.Actor, locationID int64, remarks string) (*entity.Transmittal, error) {
	if locationID <= 0 {
		return nil, apperr.Validation("DocumentLocationID", "a document location is required")
	}
	if !s.capabilities.HasCapability(ctx, actor, entity.CapabilityEndorseToAccounting) &&
		!s.capabilities.HasCapability(ctx, actor, entity.CapabilityEndorseToCOA) {
		return nil, apperr.Unauthorized(actor.ID, entity.CapabilityEndorseToAccounting)
	}
	remarks = cleanText(remarks)

	var (
		l      *entity.Liquidation
		result *entity.Transmittal
	)
	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		var err error
		l, err = s.load(txCtx, liquidationID)
		if err != nil {
			return err
		}

		t, err := s.repos.Transmittals.GetActiveByLiquidationID(txCtx, l.ID)
		if err != nil {
			return fmt.Errorf("failed to load transmittal: %w", err)
		}
		if t == nil {
			return apperr.NotFound("transmittal", l.ID)
		}

		if err := s.repos.Transmittals.AddLocation(txCtx, &entity.TransmittalLocation{
			TransmittalID:      t.ID,
			DocumentLocationID: locationID,
			MovedBy:            actor.ID,
			Remarks:            remarks,
			MovedAt:            s.clock.Now().UTC(),
		}); err != nil {
			return fmt.Errorf("failed to relocate transmittal: %w", err)
		}

		result, err = s.repos.Transmittals.GetActiveByLiquidationID(txCtx, l.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logActivity(ctx, entity.ActivityEntityTransmittal, fmt.Sprint(result.ID), "relocate", actor,
		map[string]interface{}{"document_location_id": previousLocation(result)},
		map[string]interface{}{"document_location_id": locationID})
	s.emit(ctx, event.TypeTransmittalRelocated, l, actor,
		fmt.Sprintf("Documents of liquidation %s were moved", l.ControlNo),
		map[string]interface{}{
			"transmittal_reference_no": result.TransmittalReferenceNo,
			"document_location_id":     locationID,
		})

	return result, nil
}

// ActiveCompliance returns the latest compliance row, or NotFound if none exists
func (s *liquidationServiceImpl) ActiveCompliance(ctx context.Context, liquidationID string) (*entity.Compliance, error) {
	if _, err := s.load(ctx, liquidationID); err != nil {
		return nil, err
	}

	c, err := s.repos.Compliances.GetActiveByLiquidationID(ctx, liquidationID)
	if err != nil {
		return nil, fmt.Errorf("failed to load compliance: %w", err)
	}
	if c == nil {
		return nil, apperr.NotFound("compliance", liquidationID)
	}
	return c, nil
}

// withAttachment runs write inside a transaction for a liquidation the HEI
// currently holds, then persists the re-derived document status
func (s *liquidationServiceImpl) withAttachment(ctx context.Context, liquidationID string, actor entity.Actor, operation string, write func(ctx context.Context, l *entity.Liquidation, now time.Time) error) error {
	return s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		l, err := s.load(txCtx, liquidationID)
		if err != nil {
			return err
		}
		if !heiEditable(l.Status) {
			return apperr.InvalidState(l.ID, operation, l.Status.String())
		}
		if err := s.requireOwner(txCtx, l, actor); err != nil {
			return err
		}

		now := s.clock.Now().UTC()
		if err := write(txCtx, l, now); err != nil {
			return err
		}

		beneficiaries, err := s.repos.Beneficiaries.CountByLiquidationID(txCtx, l.ID)
		if err != nil {
			return fmt.Errorf("failed to count beneficiaries: %w", err)
		}
		documents, err := s.repos.Documents.CountByLiquidationID(txCtx, l.ID)
		if err != nil {
			return fmt.Errorf("failed to count documents: %w", err)
		}

		l.DocumentStatus = entity.DeriveDocumentStatus(beneficiaries, documents)
		l.UpdatedAt = now
		if err := s.repos.Liquidations.Update(txCtx, l); err != nil {
			return fmt.Errorf("failed to update document status: %w", err)
		}
		return nil
	})
}

// load fetches a live liquidation with its Financial
func (s *liquidationServiceImpl) load(ctx context.Context, id string) (*entity.Liquidation, error) {
	l, err := s.repos.Liquidations.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load liquidation: %w", err)
	}
	if l == nil || l.IsDeleted() {
		return nil, apperr.NotFound("liquidation", id)
	}

	financial, err := s.repos.Financials.GetByLiquidationID(ctx, l.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load financial: %w", err)
	}
	l.Financial = financial

	return l, nil
}

// requireOwner admits HEI-side actors that own the liquidation
func (s *liquidationServiceImpl) requireOwner(ctx context.Context, l *entity.Liquidation, actor entity.Actor) error {
	if s.capabilities.HasCapability(ctx, actor, entity.CapabilitySubmitLiquidation) && l.IsOwnedBy(actor) {
		return nil
	}
	return apperr.Unauthorized(actor.ID, entity.CapabilitySubmitLiquidation).
		WithLiquidation(l.ID, "", l.Status.String())
}

// requireEditor admits the owner and accounting staff, who correct amounts during review
func (s *liquidationServiceImpl) requireEditor(ctx context.Context, l *entity.Liquidation, actor entity.Actor) error {
	if s.capabilities.HasCapability(ctx, actor, entity.CapabilityEndorseToCOA) {
		return nil
	}
	return s.requireOwner(ctx, l, actor)
}

func (s *liquidationServiceImpl) logActivity(ctx context.Context, entityType, entityID, action string, actor entity.Actor, before, after map[string]interface{}) {
	if s.activity == nil {
		return
	}
	s.activity.Log(ctx, entity.NewActivityLog(entityType, entityID, action, actor.ID, before, after))
}

func (s *liquidationServiceImpl) emit(ctx context.Context, eventType event.Type, l *entity.Liquidation, actor entity.Actor, description string, extra map[string]interface{}) {
	if s.dispatcher == nil {
		return
	}

	payload := map[string]interface{}{
		"control_no": l.ControlNo,
		"hei_id":     l.HEIID,
		"created_by": l.CreatedBy,
		"status":     l.Status.String(),
	}
	for k, v := range extra {
		payload[k] = v
	}

	s.dispatcher.DispatchAsync(ctx, event.NewEvent(eventType, l.ID, actor.ID, description, payload))
}

// heiEditable reports whether beneficiaries and documents may still change
func heiEditable(state domainwf.State) bool {
	return state == domainwf.StateDraft || state == domainwf.StateReturnedToHEI
}

func previousLocation(t *entity.Transmittal) interface{} {
	if n := len(t.LocationHistory); n >= 2 {
		return t.LocationHistory[n-2].DocumentLocationID
	}
	return t.DocumentLocationID
}

func nonNegative(field string, amount *decimal.Decimal) error {
	if amount != nil && amount.IsNegative() {
		return apperr.Validation(field, "must not be negative")
	}
	return nil
}

func validateInput(s interface{}) error {
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

func cleanText(s string) string {
	return strings.TrimSpace(utils.SanitizeString(s))
}
