package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/hei-liquidation/internal/application/port"
	"github.com/garyjia/hei-liquidation/internal/domain/entity"
	"github.com/garyjia/hei-liquidation/internal/infrastructure/persistence/sqlite"
)

// ReviewRepository implements port.ReviewRepository.
// The table is append-only; triggers reject UPDATE and DELETE.
type ReviewRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewReviewRepository creates a new review repository
func NewReviewRepository(db *sqlite.DB, logger *zap.Logger) port.ReviewRepository {
	return &ReviewRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends a review row
func (r *ReviewRepository) Create(ctx context.Context, review *entity.Review) error {
	query := `
		INSERT INTO reviews (
			liquidation_id, review_type, performed_by, performed_by_name,
			remarks, documents_for_compliance, performed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		review.LiquidationID,
		string(review.ReviewType),
		review.PerformedBy,
		review.PerformedByName,
		review.Remarks,
		nullString(review.DocumentsForCompliance),
		review.PerformedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create review",
			zap.String("liquidation_id", review.LiquidationID),
			zap.String("review_type", string(review.ReviewType)),
			zap.Error(err))
		return fmt.Errorf("failed to create review: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	review.ID = id
	return nil
}

// ListByLiquidationID returns the trail ordered by performed_at, then id
func (r *ReviewRepository) ListByLiquidationID(ctx context.Context, liquidationID string) ([]*entity.Review, error) {
	query := `
		SELECT id, liquidation_id, review_type, performed_by, performed_by_name,
			remarks, documents_for_compliance, performed_at
		FROM reviews
		WHERE liquidation_id = ?
		ORDER BY performed_at ASC, id ASC
	`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, liquidationID)
	if err != nil {
		r.logger.Error("Failed to list reviews", zap.String("liquidation_id", liquidationID), zap.Error(err))
		return nil, fmt.Errorf("failed to list reviews: %w", err)
	}
	defer rows.Close()

	var reviews []*entity.Review
	for rows.Next() {
		var review entity.Review
		var reviewType string
		var docs sql.NullString

		if err := rows.Scan(
			&review.ID,
			&review.LiquidationID,
			&reviewType,
			&review.PerformedBy,
			&review.PerformedByName,
			&review.Remarks,
			&docs,
			&review.PerformedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan review: %w", err)
		}

		review.ReviewType = entity.ReviewType(reviewType)
		review.DocumentsForCompliance = stringPtr(docs)
		reviews = append(reviews, &review)
	}

	return reviews, rows.Err()
}

// CountByLiquidationID counts review rows for a liquidation
func (r *ReviewRepository) CountByLiquidationID(ctx context.Context, liquidationID string) (int, error) {
	var count int
	err := r.db.Executor(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reviews WHERE liquidation_id = ?`, liquidationID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count reviews: %w", err)
	}
	return count, nil
}

// Verify interface compliance
var _ port.ReviewRepository = (*ReviewRepository)(nil)
