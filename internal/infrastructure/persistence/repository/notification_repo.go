package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/hei-liquidation/internal/application/port"
	"github.com/garyjia/hei-liquidation/internal/domain/entity"
	"github.com/garyjia/hei-liquidation/internal/infrastructure/persistence/sqlite"
)

// NotificationRepository implements port.NotificationRepository
type NotificationRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewNotificationRepository creates a new notification repository
func NewNotificationRepository(db *sqlite.DB, logger *zap.Logger) port.NotificationRepository {
	return &NotificationRepository{
		db:     db,
		logger: logger,
	}
}

// Create stores one inbox entry
func (r *NotificationRepository) Create(ctx context.Context, n *entity.Notification) error {
	query := `
		INSERT INTO notifications (
			user_id, event_type, description, module, subject_type,
			subject_id, read_at, pushed_at, push_attempts, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		n.UserID,
		n.EventType,
		n.Description,
		n.Module,
		n.SubjectType,
		n.SubjectID,
		nullTime(n.ReadAt),
		nullTime(n.PushedAt),
		n.PushAttempts,
		n.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create notification",
			zap.String("user_id", n.UserID),
			zap.String("event_type", n.EventType),
			zap.Error(err))
		return fmt.Errorf("failed to create notification: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	n.ID = id
	return nil
}

// ListByUser returns the newest notifications of a user first
func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*entity.Notification, error) {
	query := `
		SELECT id, user_id, event_type, description, module, subject_type,
			subject_id, read_at, pushed_at, push_attempts, created_at
		FROM notifications
		WHERE user_id = ?`
	if unreadOnly {
		query += ` AND read_at IS NULL`
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`

	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, userID, limit)
	if err != nil {
		r.logger.Error("Failed to list notifications", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	defer rows.Close()

	return scanNotifications(rows)
}

// MarkRead sets read_at once; re-reading an already read notification still reports true
func (r *NotificationRepository) MarkRead(ctx context.Context, id int64, userID string, at time.Time) (bool, error) {
	result, err := r.db.Executor(ctx).ExecContext(ctx,
		`UPDATE notifications SET read_at = COALESCE(read_at, ?) WHERE id = ? AND user_id = ?`,
		at, id, userID,
	)
	if err != nil {
		r.logger.Error("Failed to mark notification read", zap.Int64("id", id), zap.Error(err))
		return false, fmt.Errorf("failed to mark notification read: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// MarkPushed records that the notification was delivered to the chat channel
func (r *NotificationRepository) MarkPushed(ctx context.Context, id int64, at time.Time) error {
	_, err := r.db.Executor(ctx).ExecContext(ctx,
		`UPDATE notifications SET pushed_at = ? WHERE id = ?`, at, id)
	if err != nil {
		return fmt.Errorf("failed to mark notification pushed: %w", err)
	}
	return nil
}

// RecordPushFailure counts one failed chat delivery
func (r *NotificationRepository) RecordPushFailure(ctx context.Context, id int64) error {
	_, err := r.db.Executor(ctx).ExecContext(ctx,
		`UPDATE notifications SET push_attempts = push_attempts + 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to record push failure: %w", err)
	}
	return nil
}

// ListUnpushed returns notifications still waiting for chat delivery, oldest first.
// Rows that reached maxAttempts are skipped so they cannot starve newer ones.
func (r *NotificationRepository) ListUnpushed(ctx context.Context, maxAttempts, limit int) ([]*entity.Notification, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.Executor(ctx).QueryContext(ctx, `
		SELECT n.id, n.user_id, n.event_type, n.description, n.module, n.subject_type,
			n.subject_id, n.read_at, n.pushed_at, n.push_attempts, n.created_at
		FROM notifications n
		JOIN users u ON u.id = n.user_id
		WHERE n.pushed_at IS NULL AND u.lark_open_id <> '' AND n.push_attempts < ?
		ORDER BY n.created_at, n.id
		LIMIT ?`, maxAttempts, limit)
	if err != nil {
		r.logger.Error("Failed to list unpushed notifications", zap.Error(err))
		return nil, fmt.Errorf("failed to list unpushed notifications: %w", err)
	}
	defer rows.Close()

	return scanNotifications(rows)
}

func scanNotifications(rows *sql.Rows) ([]*entity.Notification, error) {
	var notifications []*entity.Notification
	for rows.Next() {
		var n entity.Notification
		var readAt, pushedAt sql.NullTime
		if err := rows.Scan(
			&n.ID,
			&n.UserID,
			&n.EventType,
			&n.Description,
			&n.Module,
			&n.SubjectType,
			&n.SubjectID,
			&readAt,
			&pushedAt,
			&n.PushAttempts,
			&n.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		n.ReadAt = timePtr(readAt)
		n.PushedAt = timePtr(pushedAt)
		notifications = append(notifications, &n)
	}
	return notifications, rows.Err()
}

// Verify interface compliance
var _ port.NotificationRepository = (*NotificationRepository)(nil)
