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

// DocumentRepository implements port.DocumentRepository
type DocumentRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db *sqlite.DB, logger *zap.Logger) port.DocumentRepository {
	return &DocumentRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts document metadata
func (r *DocumentRepository) Create(ctx context.Context, d *entity.Document) error {
	query := `
		INSERT INTO documents (
			liquidation_id, document_requirement_id, file_name, content_type,
			size_bytes, storage_key, uploaded_by, uploaded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		d.LiquidationID,
		nullInt64(d.DocumentRequirementID),
		d.FileName,
		d.ContentType,
		d.SizeBytes,
		d.StorageKey,
		d.UploadedBy,
		d.UploadedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create document", zap.String("liquidation_id", d.LiquidationID), zap.Error(err))
		return fmt.Errorf("failed to create document: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	d.ID = id
	return nil
}

// ListByLiquidationID returns document metadata in upload order
func (r *DocumentRepository) ListByLiquidationID(ctx context.Context, liquidationID string) ([]*entity.Document, error) {
	query := `
		SELECT id, liquidation_id, document_requirement_id, file_name, content_type,
			size_bytes, storage_key, uploaded_by, uploaded_at
		FROM documents
		WHERE liquidation_id = ?
		ORDER BY uploaded_at ASC, id ASC
	`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, liquidationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var documents []*entity.Document
	for rows.Next() {
		var d entity.Document
		var requirementID sql.NullInt64
		if err := rows.Scan(
			&d.ID,
			&d.LiquidationID,
			&requirementID,
			&d.FileName,
			&d.ContentType,
			&d.SizeBytes,
			&d.StorageKey,
			&d.UploadedBy,
			&d.UploadedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		d.DocumentRequirementID = int64Ptr(requirementID)
		documents = append(documents, &d)
	}

	return documents, rows.Err()
}

// CountByLiquidationID counts documents for a liquidation
func (r *DocumentRepository) CountByLiquidationID(ctx context.Context, liquidationID string) (int, error) {
	var count int
	err := r.db.Executor(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE liquidation_id = ?`, liquidationID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return count, nil
}

// Verify interface compliance
var _ port.DocumentRepository = (*DocumentRepository)(nil)
