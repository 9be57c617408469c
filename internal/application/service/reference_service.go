package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/garyjia/hei-liquidation/internal/application/port"
	"github.com/garyjia/hei-liquidation/internal/domain/apperr"
	"github.com/garyjia/hei-liquidation/internal/domain/entity"
)

// ReferenceService maintains lookup tables. Every write drops the matching
// cache entries so workflow reads see it immediately.
type ReferenceService interface {
	SaveRegion(ctx context.Context, actor entity.Actor, region *entity.Region) error
	SaveHEI(ctx context.Context, actor entity.Actor, hei *entity.HEI) error
	SaveProgram(ctx context.Context, actor entity.Actor, program *entity.Program) error
	SaveAcademicYear(ctx context.Context, actor entity.Actor, year *entity.AcademicYear) error
	SaveSemester(ctx context.Context, actor entity.Actor, semester *entity.Semester) error
	SaveComplianceStatus(ctx context.Context, actor entity.Actor, status *entity.ComplianceStatus) error
	SaveDocumentRequirement(ctx context.Context, actor entity.Actor, requirement *entity.DocumentRequirement) error
	Delete(ctx context.Context, actor entity.Actor, kind entity.ReferenceKind, id int64) error
	ListDocumentRequirements(ctx context.Context, programID *int64) ([]*entity.DocumentRequirement, error)
}

type referenceServiceImpl struct {
	repo         port.ReferenceRepository
	cache        port.CachedReferenceLookup
	capabilities port.CapabilityChecker
	activity     port.ActivityLogger
	logger       Logger
}

// NewReferenceService creates a new ReferenceService. activity may be nil.
func NewReferenceService(
	repo port.ReferenceRepository,
	cache port.CachedReferenceLookup,
	capabilities port.CapabilityChecker,
	activity port.ActivityLogger,
	logger Logger,
) ReferenceService {
	return &referenceServiceImpl{
		repo:         repo,
		cache:        cache,
		capabilities: capabilities,
		activity:     activity,
		logger:       logger,
	}
}

// SaveRegion implements ReferenceService
func (s *referenceServiceImpl) SaveRegion(ctx context.Context, actor entity.Actor, region *entity.Region) error {
	region.Code = strings.TrimSpace(region.Code)
	region.Name = strings.TrimSpace(region.Name)
	return s.save(ctx, actor, entity.ReferenceRegion, &region.ID,
		required("Code", region.Code, "Name", region.Name),
		func() error { return s.repo.SaveRegion(ctx, region) })
}

// SaveHEI implements ReferenceService
func (s *referenceServiceImpl) SaveHEI(ctx context.Context, actor entity.Actor, hei *entity.HEI) error {
	hei.ExternalID = strings.TrimSpace(hei.ExternalID)
	hei.Name = strings.TrimSpace(hei.Name)
	return s.save(ctx, actor, entity.ReferenceHEI, &hei.ID,
		func(ctx context.Context) error {
			if err := required("ExternalID", hei.ExternalID, "Name", hei.Name)(ctx); err != nil {
				return err
			}
			region, err := s.repo.GetRegionByID(ctx, hei.RegionID)
			if err != nil {
				return fmt.Errorf("failed to resolve region: %w", err)
			}
			if region == nil {
				return apperr.NotFound("region", fmt.Sprint(hei.RegionID))
			}
			return nil
		},
		func() error { return s.repo.SaveHEI(ctx, hei) })
}

// SaveProgram implements ReferenceService
func (s *referenceServiceImpl) SaveProgram(ctx context.Context, actor entity.Actor, program *entity.Program) error {
	program.Code = strings.TrimSpace(program.Code)
	program.Name = strings.TrimSpace(program.Name)
	return s.save(ctx, actor, entity.ReferenceProgram, &program.ID,
		func(ctx context.Context) error {
			if err := required("Code", program.Code, "Name", program.Name)(ctx); err != nil {
				return err
			}
			if entity.ControlNumberPrefix(program.Code) == "" {
				return apperr.Validation("Code", "must contain a letter or digit")
			}
			return nil
		},
		func() error { return s.repo.SaveProgram(ctx, program) })
}

// SaveAcademicYear implements ReferenceService
func (s *referenceServiceImpl) SaveAcademicYear(ctx context.Context, actor entity.Actor, year *entity.AcademicYear) error {
	year.Label = strings.TrimSpace(year.Label)
	return s.save(ctx, actor, entity.ReferenceAcademicYear, &year.ID,
		func(ctx context.Context) error {
			if err := required("Label", year.Label)(ctx); err != nil {
				return err
			}
			if year.StartDate != nil && year.EndDate != nil && year.EndDate.Before(*year.StartDate) {
				return apperr.Validation("EndDate", "must not be before the start date")
			}
			return nil
		},
		func() error { return s.repo.SaveAcademicYear(ctx, year) })
}

// SaveSemester implements ReferenceService
func (s *referenceServiceImpl) SaveSemester(ctx context.Context, actor entity.Actor, semester *entity.Semester) error {
	semester.Code = strings.ToLower(strings.TrimSpace(semester.Code))
	semester.Name = strings.TrimSpace(semester.Name)
	return s.save(ctx, actor, entity.ReferenceSemester, &semester.ID,
		required("Code", semester.Code, "Name", semester.Name),
		func() error { return s.repo.SaveSemester(ctx, semester) })
}

// SaveComplianceStatus implements ReferenceService
func (s *referenceServiceImpl) SaveComplianceStatus(ctx context.Context, actor entity.Actor, status *entity.ComplianceStatus) error {
	status.Code = strings.ToLower(strings.TrimSpace(status.Code))
	status.Name = strings.TrimSpace(status.Name)
	return s.save(ctx, actor, entity.ReferenceComplianceStatus, &status.ID,
		required("Code", status.Code, "Name", status.Name),
		func() error { return s.repo.SaveComplianceStatus(ctx, status) })
}

// SaveDocumentRequirement implements ReferenceService
func (s *referenceServiceImpl) SaveDocumentRequirement(ctx context.Context, actor entity.Actor, requirement *entity.DocumentRequirement) error {
	requirement.Name = strings.TrimSpace(requirement.Name)
	return s.save(ctx, actor, entity.ReferenceDocumentRequirement, &requirement.ID,
		required("Name", requirement.Name),
		func() error { return s.repo.SaveDocumentRequirement(ctx, requirement) })
}

// Delete implements ReferenceService. Rows still used by a liquidation are kept.
func (s *referenceServiceImpl) Delete(ctx context.Context, actor entity.Actor, kind entity.ReferenceKind, id int64) error {
	if err := s.authorize(ctx, actor); err != nil {
		return err
	}

	existed, err := s.repo.Delete(ctx, kind, id)
	if err != nil {
		s.logger.Error("Failed to delete reference row", "kind", kind, "id", id, "error", err)
		return err
	}
	if !existed {
		return apperr.NotFound(string(kind), fmt.Sprint(id))
	}

	s.cache.Invalidate(kind)
	s.record(ctx, actor, kind, id, "delete")
	return nil
}

// ListDocumentRequirements returns requirements that apply to the program,
// or all of them when programID is nil
func (s *referenceServiceImpl) ListDocumentRequirements(ctx context.Context, programID *int64) ([]*entity.DocumentRequirement, error) {
	return s.repo.ListDocumentRequirements(ctx, programID)
}

func (s *referenceServiceImpl) save(ctx context.Context, actor entity.Actor, kind entity.ReferenceKind, id *int64, validate func(context.Context) error, write func() error) error {
	if err := s.authorize(ctx, actor); err != nil {
		return err
	}
	if err := validate(ctx); err != nil {
		return err
	}

	action := "update"
	if *id == 0 {
		action = "create"
	}

	if err := write(); err != nil {
		s.logger.Error("Failed to save reference row", "kind", kind, "error", err)
		return err
	}

	s.cache.Invalidate(kind)
	s.record(ctx, actor, kind, *id, action)
	s.logger.Info("Reference row saved", "kind", kind, "id", *id, "action", action)
	return nil
}

func (s *referenceServiceImpl) authorize(ctx context.Context, actor entity.Actor) error {
	if !s.capabilities.HasCapability(ctx, actor, entity.CapabilityManageReference) {
		return apperr.Unauthorized(actor.ID, entity.CapabilityManageReference)
	}
	return nil
}

func (s *referenceServiceImpl) record(ctx context.Context, actor entity.Actor, kind entity.ReferenceKind, id int64, action string) {
	if s.activity == nil {
		return
	}
	s.activity.Log(ctx, entity.NewActivityLog(entity.ActivityEntityReference, fmt.Sprintf("%s:%d", kind, id), action, actor.ID,
		map[string]interface{}{}, map[string]interface{}{"kind": string(kind), "action": action}))
}

// required checks field/value pairs for blank values
func required(pairs ...string) func(context.Context) error {
	return func(context.Context) error {
		for i := 0; i+1 < len(pairs); i += 2 {
			if pairs[i+1] == "" {
				return apperr.Validation(pairs[i], "is required")
			}
		}
		return nil
	}
}
