package service

import (
	"context"
	"fmt"

	"github.com/garyjia/hei-liquidation/internal/application/port"
	"github.com/garyjia/hei-liquidation/internal/domain/entity"
)

// ActivityService records and reads the before/after activity log
type ActivityService interface {
	port.ActivityLogger
	ListActivity(ctx context.Context, entityType, entityID string) ([]*entity.ActivityLog, error)
}

type activityServiceImpl struct {
	repo   port.ActivityLogRepository
	clock  port.Clock
	logger Logger
}

// NewActivityService creates a new ActivityService
func NewActivityService(repo port.ActivityLogRepository, clock port.Clock, logger Logger) ActivityService {
	return &activityServiceImpl{
		repo:   repo,
		clock:  clock,
		logger: logger,
	}
}

// Log writes the entry. Entries with no changed fields are skipped and
// write failures are logged, never returned.
func (s *activityServiceImpl) Log(ctx context.Context, entry entity.ActivityLog) {
	if entry.Before == "{}" && entry.After == "{}" {
		return
	}

	entry.CreatedAt = s.clock.Now().UTC()
	if err := s.repo.Create(ctx, &entry); err != nil {
		s.logger.Error("Failed to write activity log",
			"entity_type", entry.EntityType,
			"entity_id", entry.EntityID,
			"action", entry.Action,
			"error", err)
	}
}

// ListActivity returns entries for one entity, oldest first
func (s *activityServiceImpl) ListActivity(ctx context.Context, entityType, entityID string) ([]*entity.ActivityLog, error) {
	entries, err := s.repo.ListByEntity(ctx, entityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	return entries, nil
}
