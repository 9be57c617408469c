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

const complianceColumns = `
	id, liquidation_id, documents_required, compliance_status_id,
	concerns_emailed_at, compliance_submitted_at, amount_with_complete_docs, created_at`

// ComplianceRepository implements port.ComplianceRepository
type ComplianceRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewComplianceRepository creates a new compliance repository
func NewComplianceRepository(db *sqlite.DB, logger *zap.Logger) port.ComplianceRepository {
	return &ComplianceRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a compliance row
func (r *ComplianceRepository) Create(ctx context.Context, c *entity.Compliance) error {
	query := `
		INSERT INTO compliances (
			liquidation_id, documents_required, compliance_status_id,
			concerns_emailed_at, compliance_submitted_at, amount_with_complete_docs, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		c.LiquidationID,
		c.DocumentsRequired,
		c.ComplianceStatusID,
		nullTime(c.ConcernsEmailedAt),
		nullTime(c.ComplianceSubmittedAt),
		c.AmountWithCompleteDocs.String(),
		c.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create compliance", zap.String("liquidation_id", c.LiquidationID), zap.Error(err))
		return fmt.Errorf("failed to create compliance: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	c.ID = id
	return nil
}

// GetActiveByLiquidationID returns the latest compliance row
func (r *ComplianceRepository) GetActiveByLiquidationID(ctx context.Context, liquidationID string) (*entity.Compliance, error) {
	query := `SELECT ` + complianceColumns + ` FROM compliances
		WHERE liquidation_id = ? ORDER BY id DESC LIMIT 1`

	c, err := scanCompliance(r.db.Executor(ctx).QueryRowContext(ctx, query, liquidationID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get active compliance", zap.String("liquidation_id", liquidationID), zap.Error(err))
		return nil, fmt.Errorf("failed to get compliance: %w", err)
	}

	return c, nil
}

// ListByLiquidationID returns all compliance rows oldest first
func (r *ComplianceRepository) ListByLiquidationID(ctx context.Context, liquidationID string) ([]*entity.Compliance, error) {
	query := `SELECT ` + complianceColumns + ` FROM compliances
		WHERE liquidation_id = ? ORDER BY id ASC`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, liquidationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list compliances: %w", err)
	}
	defer rows.Close()

	var compliances []*entity.Compliance
	for rows.Next() {
		c, err := scanCompliance(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan compliance: %w", err)
		}
		compliances = append(compliances, c)
	}

	return compliances, rows.Err()
}

func scanCompliance(row rowScanner) (*entity.Compliance, error) {
	var c entity.Compliance
	var emailedAt, submittedAt sql.NullTime

	err := row.Scan(
		&c.ID,
		&c.LiquidationID,
		&c.DocumentsRequired,
		&c.ComplianceStatusID,
		&emailedAt,
		&submittedAt,
		&c.AmountWithCompleteDocs,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.ConcernsEmailedAt = timePtr(emailedAt)
	c.ComplianceSubmittedAt = timePtr(submittedAt)
	return &c, nil
}

// Verify interface compliance
var _ port.ComplianceRepository = (*ComplianceRepository)(nil)
