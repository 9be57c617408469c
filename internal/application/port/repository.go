package port

import (
	"context"
	"time"

	"github.com/garyjia/hei-liquidation/internal/domain/entity"
)

// Repositories return (nil, nil) when a single row is not found; services
// turn that into an apperr.NotFound.

// LiquidationRepository defines persistence operations for Liquidation
type LiquidationRepository interface {
	Create(ctx context.Context, liquidation *entity.Liquidation) error
	GetByID(ctx context.Context, id string) (*entity.Liquidation, error)
	Update(ctx context.Context, liquidation *entity.Liquidation) error
	List(ctx context.Context, filter entity.LiquidationFilter) ([]*entity.Liquidation, error)

	// MaxControlSequence returns the highest control number suffix issued in the year, 0 if none
	MaxControlSequence(ctx context.Context, year int) (int, error)
}

// FinancialRepository defines persistence operations for the 1:1 Financial row
type FinancialRepository interface {
	Create(ctx context.Context, financial *entity.Financial) error
	GetByLiquidationID(ctx context.Context, liquidationID string) (*entity.Financial, error)
	Update(ctx context.Context, financial *entity.Financial) error
}

// ReviewRepository is append-only; there is deliberately no update or delete
type ReviewRepository interface {
	Create(ctx context.Context, review *entity.Review) error

	// ListByLiquidationID returns reviews ordered by performed_at, then id
	ListByLiquidationID(ctx context.Context, liquidationID string) ([]*entity.Review, error)
	CountByLiquidationID(ctx context.Context, liquidationID string) (int, error)
}

// TransmittalRepository defines persistence operations for Transmittal and its location history
type TransmittalRepository interface {
	Create(ctx context.Context, transmittal *entity.Transmittal) error
	AddLocation(ctx context.Context, location *entity.TransmittalLocation) error

	// GetActiveByLiquidationID returns the latest transmittal with its location history
	GetActiveByLiquidationID(ctx context.Context, liquidationID string) (*entity.Transmittal, error)
	ListByLiquidationID(ctx context.Context, liquidationID string) ([]*entity.Transmittal, error)
}

// ComplianceRepository defines persistence operations for Compliance
type ComplianceRepository interface {
	Create(ctx context.Context, compliance *entity.Compliance) error
	GetActiveByLiquidationID(ctx context.Context, liquidationID string) (*entity.Compliance, error)
	ListByLiquidationID(ctx context.Context, liquidationID string) ([]*entity.Compliance, error)
}

// BeneficiaryRepository defines persistence operations for Beneficiary line items
type BeneficiaryRepository interface {
	Create(ctx context.Context, beneficiary *entity.Beneficiary) error
	ListByLiquidationID(ctx context.Context, liquidationID string) ([]*entity.Beneficiary, error)
	CountByLiquidationID(ctx context.Context, liquidationID string) (int, error)
}

// DocumentRepository defines persistence operations for Document metadata
type DocumentRepository interface {
	Create(ctx context.Context, document *entity.Document) error
	ListByLiquidationID(ctx context.Context, liquidationID string) ([]*entity.Document, error)
	CountByLiquidationID(ctx context.Context, liquidationID string) (int, error)
}

// ReferenceRepository defines persistence operations for lookup tables
type ReferenceRepository interface {
	GetRegionByID(ctx context.Context, id int64) (*entity.Region, error)
	GetHEIByID(ctx context.Context, id int64) (*entity.HEI, error)
	GetHEIByExternalID(ctx context.Context, externalID string) (*entity.HEI, error)
	GetProgramByID(ctx context.Context, id int64) (*entity.Program, error)
	GetAcademicYearByLabel(ctx context.Context, label string) (*entity.AcademicYear, error)
	GetSemesterByCode(ctx context.Context, code string) (*entity.Semester, error)
	GetComplianceStatusByCode(ctx context.Context, code string) (*entity.ComplianceStatus, error)
	ListDocumentRequirements(ctx context.Context, programID *int64) ([]*entity.DocumentRequirement, error)

	// Save* insert when ID is zero and update otherwise
	SaveRegion(ctx context.Context, region *entity.Region) error
	SaveHEI(ctx context.Context, hei *entity.HEI) error
	SaveProgram(ctx context.Context, program *entity.Program) error
	SaveAcademicYear(ctx context.Context, year *entity.AcademicYear) error
	SaveSemester(ctx context.Context, semester *entity.Semester) error
	SaveComplianceStatus(ctx context.Context, status *entity.ComplianceStatus) error
	SaveDocumentRequirement(ctx context.Context, requirement *entity.DocumentRequirement) error

	// Delete removes one row of the given kind, reporting whether it existed
	Delete(ctx context.Context, kind entity.ReferenceKind, id int64) (bool, error)
}

// UserRepository defines lookups used for notification recipient resolution
type UserRepository interface {
	Save(ctx context.Context, user *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	ListByHEI(ctx context.Context, heiID int64) ([]*entity.User, error)

	// ListByRole filters by region when regionID is non-nil
	ListByRole(ctx context.Context, role string, regionID *int64) ([]*entity.User, error)
}

// NotificationRepository defines persistence operations for the notification inbox
type NotificationRepository interface {
	Create(ctx context.Context, notification *entity.Notification) error
	ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*entity.Notification, error)

	// MarkRead reports false when no notification with that id belongs to the user
	MarkRead(ctx context.Context, id int64, userID string, at time.Time) (bool, error)
	MarkPushed(ctx context.Context, id int64, at time.Time) error
	RecordPushFailure(ctx context.Context, id int64) error

	// ListUnpushed returns the oldest undelivered notifications of users with a
	// Lark id that have failed fewer than maxAttempts times
	ListUnpushed(ctx context.Context, maxAttempts, limit int) ([]*entity.Notification, error)
}

// ActivityLogRepository defines persistence operations for ActivityLog
type ActivityLogRepository interface {
	Create(ctx context.Context, entry *entity.ActivityLog) error
	ListByEntity(ctx context.Context, entityType, entityID string) ([]*entity.ActivityLog, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
