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

// FinancialRepository implements port.FinancialRepository
type FinancialRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewFinancialRepository creates a new financial repository
func NewFinancialRepository(db *sqlite.DB, logger *zap.Logger) port.FinancialRepository {
	return &FinancialRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts the financial row; a second row for the same liquidation is a conflict
func (r *FinancialRepository) Create(ctx context.Context, f *entity.Financial) error {
	query := `
		INSERT INTO financials (
			liquidation_id, amount_received, amount_disbursed, amount_liquidated,
			amount_refunded, number_of_grantees, date_fund_released, fund_source,
			purpose, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		f.LiquidationID,
		f.AmountReceived.String(),
		f.AmountDisbursed.String(),
		f.AmountLiquidated.String(),
		f.AmountRefunded.String(),
		f.NumberOfGrantees,
		nullTime(f.DateFundReleased),
		f.FundSource,
		f.Purpose,
		f.CreatedAt,
		f.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create financial", zap.String("liquidation_id", f.LiquidationID), zap.Error(err))
		return fmt.Errorf("failed to create financial: %w",
			conflictOr(err, "financial record already exists for liquidation "+f.LiquidationID))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	f.ID = id
	return nil
}

// GetByLiquidationID retrieves the financial row of a liquidation
func (r *FinancialRepository) GetByLiquidationID(ctx context.Context, liquidationID string) (*entity.Financial, error) {
	query := `
		SELECT id, liquidation_id, amount_received, amount_disbursed, amount_liquidated,
			amount_refunded, number_of_grantees, date_fund_released, fund_source,
			purpose, created_at, updated_at
		FROM financials
		WHERE liquidation_id = ?
	`

	var f entity.Financial
	var released sql.NullTime

	err := r.db.Executor(ctx).QueryRowContext(ctx, query, liquidationID).Scan(
		&f.ID,
		&f.LiquidationID,
		&f.AmountReceived,
		&f.AmountDisbursed,
		&f.AmountLiquidated,
		&f.AmountRefunded,
		&f.NumberOfGrantees,
		&released,
		&f.FundSource,
		&f.Purpose,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get financial", zap.String("liquidation_id", liquidationID), zap.Error(err))
		return nil, fmt.Errorf("failed to get financial: %w", err)
	}

	f.DateFundReleased = timePtr(released)
	return &f, nil
}

// Update rewrites the amounts in place
func (r *FinancialRepository) Update(ctx context.Context, f *entity.Financial) error {
	query := `
		UPDATE financials SET
			amount_received = ?, amount_disbursed = ?, amount_liquidated = ?,
			amount_refunded = ?, number_of_grantees = ?, date_fund_released = ?,
			fund_source = ?, purpose = ?, updated_at = ?
		WHERE liquidation_id = ?
	`

	_, err := r.db.Executor(ctx).ExecContext(ctx, query,
		f.AmountReceived.String(),
		f.AmountDisbursed.String(),
		f.AmountLiquidated.String(),
		f.AmountRefunded.String(),
		f.NumberOfGrantees,
		nullTime(f.DateFundReleased),
		f.FundSource,
		f.Purpose,
		f.UpdatedAt,
		f.LiquidationID,
	)
	if err != nil {
		r.logger.Error("Failed to update financial", zap.String("liquidation_id", f.LiquidationID), zap.Error(err))
		return fmt.Errorf("failed to update financial: %w", err)
	}

	return nil
}

// Verify interface compliance
var _ port.FinancialRepository = (*FinancialRepository)(nil)
