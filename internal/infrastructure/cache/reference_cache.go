package cache

import (
	"context"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/garyjia/hei-liquidation/internal/application/port"
	"github.com/garyjia/hei-liquidation/internal/domain/entity"
)

// Defaults used when configuration leaves them unset
const (
	DefaultSize = 512
	DefaultTTL  = 10 * time.Minute
)

// ReferenceCache serves reference lookups from per-table expiring LRUs in
// front of the repository. Misses are not cached.
type ReferenceCache struct {
	repo port.ReferenceRepository

	heisByID   *expirable.LRU[int64, entity.HEI]
	heisByExt  *expirable.LRU[string, entity.HEI]
	programs   *expirable.LRU[int64, entity.Program]
	years      *expirable.LRU[string, entity.AcademicYear]
	semesters  *expirable.LRU[string, entity.Semester]
	compliance *expirable.LRU[string, entity.ComplianceStatus]
}

// NewReferenceCache creates a cache holding at most size entries per table
func NewReferenceCache(repo port.ReferenceRepository, size int, ttl time.Duration) *ReferenceCache {
	if size <= 0 {
		size = DefaultSize
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &ReferenceCache{
		repo:       repo,
		heisByID:   expirable.NewLRU[int64, entity.HEI](size, nil, ttl),
		heisByExt:  expirable.NewLRU[string, entity.HEI](size, nil, ttl),
		programs:   expirable.NewLRU[int64, entity.Program](size, nil, ttl),
		years:      expirable.NewLRU[string, entity.AcademicYear](size, nil, ttl),
		semesters:  expirable.NewLRU[string, entity.Semester](size, nil, ttl),
		compliance: expirable.NewLRU[string, entity.ComplianceStatus](size, nil, ttl),
	}
}

// HEIByID implements port.ReferenceLookup
func (c *ReferenceCache) HEIByID(ctx context.Context, id int64) (*entity.HEI, error) {
	return cached(c.heisByID, id, func() (*entity.HEI, error) {
		return c.repo.GetHEIByID(ctx, id)
	})
}

// HEIByExternalID implements port.ReferenceLookup
func (c *ReferenceCache) HEIByExternalID(ctx context.Context, externalID string) (*entity.HEI, error) {
	externalID = strings.TrimSpace(externalID)
	return cached(c.heisByExt, externalID, func() (*entity.HEI, error) {
		return c.repo.GetHEIByExternalID(ctx, externalID)
	})
}

// ProgramByID implements port.ReferenceLookup
func (c *ReferenceCache) ProgramByID(ctx context.Context, id int64) (*entity.Program, error) {
	return cached(c.programs, id, func() (*entity.Program, error) {
		return c.repo.GetProgramByID(ctx, id)
	})
}

// AcademicYearByLabel implements port.ReferenceLookup
func (c *ReferenceCache) AcademicYearByLabel(ctx context.Context, label string) (*entity.AcademicYear, error) {
	label = strings.TrimSpace(label)
	return cached(c.years, label, func() (*entity.AcademicYear, error) {
		return c.repo.GetAcademicYearByLabel(ctx, label)
	})
}

// SemesterByLabel implements port.ReferenceLookup. A code with no row falls
// back to the first semester.
func (c *ReferenceCache) SemesterByLabel(ctx context.Context, label string) (*entity.Semester, error) {
	code := entity.NormalizeSemesterLabel(label)
	semester, err := cached(c.semesters, code, func() (*entity.Semester, error) {
		return c.repo.GetSemesterByCode(ctx, code)
	})
	if err != nil || semester != nil || code == entity.SemesterFirst {
		return semester, err
	}

	return cached(c.semesters, entity.SemesterFirst, func() (*entity.Semester, error) {
		return c.repo.GetSemesterByCode(ctx, entity.SemesterFirst)
	})
}

// ComplianceStatusByCode implements port.ReferenceLookup
func (c *ReferenceCache) ComplianceStatusByCode(ctx context.Context, code string) (*entity.ComplianceStatus, error) {
	return cached(c.compliance, code, func() (*entity.ComplianceStatus, error) {
		return c.repo.GetComplianceStatusByCode(ctx, code)
	})
}

// Invalidate drops every entry derived from the given table
func (c *ReferenceCache) Invalidate(kind entity.ReferenceKind) {
	switch kind {
	case entity.ReferenceRegion, entity.ReferenceHEI:
		c.heisByID.Purge()
		c.heisByExt.Purge()
	case entity.ReferenceProgram:
		c.programs.Purge()
	case entity.ReferenceAcademicYear:
		c.years.Purge()
	case entity.ReferenceSemester:
		c.semesters.Purge()
	case entity.ReferenceComplianceStatus:
		c.compliance.Purge()
	}
}

func cached[K comparable, V any](lru *expirable.LRU[K, V], key K, load func() (*V, error)) (*V, error) {
	if v, ok := lru.Get(key); ok {
		return &v, nil
	}

	v, err := load()
	if err != nil || v == nil {
		return v, err
	}
	lru.Add(key, *v)
	return v, nil
}

var _ port.CachedReferenceLookup = (*ReferenceCache)(nil)
