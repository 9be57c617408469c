package port

import (
	"context"
	"time"

	"github.com/garyjia/hei-liquidation/internal/domain/entity"
)

// CapabilityChecker answers whether an actor may perform a named operation
type CapabilityChecker interface {
	HasCapability(ctx context.Context, actor entity.Actor, capability string) bool
}

// ReferenceLookup resolves reference data. Lookups return (nil, nil) for unknown keys.
type ReferenceLookup interface {
	HEIByID(ctx context.Context, id int64) (*entity.HEI, error)
	HEIByExternalID(ctx context.Context, externalID string) (*entity.HEI, error)
	ProgramByID(ctx context.Context, id int64) (*entity.Program, error)
	AcademicYearByLabel(ctx context.Context, label string) (*entity.AcademicYear, error)

	// SemesterByLabel accepts free text; unrecognized labels resolve to the first semester
	SemesterByLabel(ctx context.Context, label string) (*entity.Semester, error)
	ComplianceStatusByCode(ctx context.Context, code string) (*entity.ComplianceStatus, error)
}

// CachedReferenceLookup is a ReferenceLookup whose entries can be dropped after writes
type CachedReferenceLookup interface {
	ReferenceLookup
	Invalidate(kind entity.ReferenceKind)
}

// Locker provides mutual exclusion across goroutines or processes
type Locker interface {
	// Obtain blocks until the named lock is held or ctx is done
	Obtain(ctx context.Context, key string) (release func(), err error)
}

// Clock supplies the current time
type Clock interface {
	Now() time.Time
}

// ActivityLogger records entity mutations after commit. Failures are the
// logger's concern and never fail the caller.
type ActivityLogger interface {
	Log(ctx context.Context, entry entity.ActivityLog)
}

// LarkMessageSender defines message sending operations
type LarkMessageSender interface {
	SendMessage(ctx context.Context, openID string, content string) error
	SendCardMessage(ctx context.Context, openID string, cardContent interface{}) error
}
