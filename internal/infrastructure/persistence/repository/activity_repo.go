package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/hei-liquidation/internal/application/port"
	"github.com/garyjia/hei-liquidation/internal/domain/entity"
	"github.com/garyjia/hei-liquidation/internal/infrastructure/persistence/sqlite"
)

// ActivityLogRepository implements port.ActivityLogRepository
type ActivityLogRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewActivityLogRepository creates a new activity log repository
func NewActivityLogRepository(db *sqlite.DB, logger *zap.Logger) port.ActivityLogRepository {
	return &ActivityLogRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends an activity entry
func (r *ActivityLogRepository) Create(ctx context.Context, entry *entity.ActivityLog) error {
	query := `
		INSERT INTO activity_logs (
			entity_type, entity_id, action, actor_id, before_json, after_json, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		entry.EntityType,
		entry.EntityID,
		entry.Action,
		entry.ActorID,
		entry.Before,
		entry.After,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create activity log: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	entry.ID = id
	return nil
}

// ListByEntity returns the entries of one entity oldest first
func (r *ActivityLogRepository) ListByEntity(ctx context.Context, entityType, entityID string) ([]*entity.ActivityLog, error) {
	query := `
		SELECT id, entity_type, entity_id, action, actor_id, before_json, after_json, created_at
		FROM activity_logs
		WHERE entity_type = ? AND entity_id = ?
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, entityType, entityID)
	if err != nil {
		r.logger.Error("Failed to list activity", zap.String("entity_id", entityID), zap.Error(err))
		return nil, fmt.Errorf("failed to list activity logs: %w", err)
	}
	defer rows.Close()

	var entries []*entity.ActivityLog
	for rows.Next() {
		var e entity.ActivityLog
		if err := rows.Scan(
			&e.ID,
			&e.EntityType,
			&e.EntityID,
			&e.Action,
			&e.ActorID,
			&e.Before,
			&e.After,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan activity log: %w", err)
		}
		entries = append(entries, &e)
	}

	return entries, rows.Err()
}

// Verify interface compliance
var _ port.ActivityLogRepository = (*ActivityLogRepository)(nil)
