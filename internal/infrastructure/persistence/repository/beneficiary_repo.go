package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/hei-liquidation/internal/application/port"
	"github.com/garyjia/hei-liquidation/internal/domain/entity"
	"github.com/garyjia/hei-liquidation/internal/infrastructure/persistence/sqlite"
)

// BeneficiaryRepository implements port.BeneficiaryRepository
type BeneficiaryRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewBeneficiaryRepository creates a new beneficiary repository
func NewBeneficiaryRepository(db *sqlite.DB, logger *zap.Logger) port.BeneficiaryRepository {
	return &BeneficiaryRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a beneficiary line item
func (r *BeneficiaryRepository) Create(ctx context.Context, b *entity.Beneficiary) error {
	query := `
		INSERT INTO beneficiaries (
			liquidation_id, student_no, last_name, first_name, middle_name, amount, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		b.LiquidationID,
		b.StudentNo,
		b.LastName,
		b.FirstName,
		b.MiddleName,
		b.Amount.String(),
		b.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create beneficiary", zap.String("liquidation_id", b.LiquidationID), zap.Error(err))
		return fmt.Errorf("failed to create beneficiary: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	b.ID = id
	return nil
}

// ListByLiquidationID returns line items in insertion order
func (r *BeneficiaryRepository) ListByLiquidationID(ctx context.Context, liquidationID string) ([]*entity.Beneficiary, error) {
	query := `
		SELECT id, liquidation_id, student_no, last_name, first_name, middle_name, amount, created_at
		FROM beneficiaries
		WHERE liquidation_id = ?
		ORDER BY id ASC
	`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, liquidationID)
	if err != nil {
		return nil, fmt.Errorf("failed to list beneficiaries: %w", err)
	}
	defer rows.Close()

	var beneficiaries []*entity.Beneficiary
	for rows.Next() {
		var b entity.Beneficiary
		if err := rows.Scan(
			&b.ID,
			&b.LiquidationID,
			&b.StudentNo,
			&b.LastName,
			&b.FirstName,
			&b.MiddleName,
			&b.Amount,
			&b.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan beneficiary: %w", err)
		}
		beneficiaries = append(beneficiaries, &b)
	}

	return beneficiaries, rows.Err()
}

// CountByLiquidationID counts line items for a liquidation
func (r *BeneficiaryRepository) CountByLiquidationID(ctx context.Context, liquidationID string) (int, error) {
	var count int
	err := r.db.Executor(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM beneficiaries WHERE liquidation_id = ?`, liquidationID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count beneficiaries: %w", err)
	}
	return count, nil
}

// Verify interface compliance
var _ port.BeneficiaryRepository = (*BeneficiaryRepository)(nil)
