package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/hei-liquidation/internal/application/port"
	"github.com/garyjia/hei-liquidation/internal/domain/entity"
	"github.com/garyjia/hei-liquidation/internal/infrastructure/persistence/sqlite"
)

const liquidationColumns = `
	id, control_no, hei_id, program_id, academic_year_id, semester_id,
	created_by, status, liquidation_status, document_status, remarks,
	reviewed_by, reviewed_at, accountant_reviewed_by, accountant_reviewed_at,
	coa_endorsed_by, coa_endorsed_at, date_submitted, deleted_at,
	created_at, updated_at`

// LiquidationRepository implements port.LiquidationRepository
type LiquidationRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewLiquidationRepository creates a new liquidation repository
func NewLiquidationRepository(db *sqlite.DB, logger *zap.Logger) port.LiquidationRepository {
	return &LiquidationRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a liquidation. A duplicate control number yields a ConflictError.
func (r *LiquidationRepository) Create(ctx context.Context, l *entity.Liquidation) error {
	year, seq, err := entity.ParseControlNumberSequence(l.ControlNo)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO liquidations (
			id, control_no, control_year, control_seq, hei_id, program_id,
			academic_year_id, semester_id, created_by, status,
			liquidation_status, document_status, remarks, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.Executor(ctx).ExecContext(ctx, query,
		l.ID,
		l.ControlNo,
		year,
		seq,
		l.HEIID,
		l.ProgramID,
		l.AcademicYearID,
		l.SemesterID,
		l.CreatedBy,
		string(l.Status),
		string(l.LiquidationStatus),
		string(l.DocumentStatus),
		l.Remarks,
		l.CreatedAt,
		l.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create liquidation", zap.String("control_no", l.ControlNo), zap.Error(err))
		return fmt.Errorf("failed to create liquidation: %w",
			conflictOr(err, fmt.Sprintf("control number %s already issued", l.ControlNo)))
	}

	return nil
}

// GetByID retrieves a liquidation by ID, including soft-deleted rows
func (r *LiquidationRepository) GetByID(ctx context.Context, id string) (*entity.Liquidation, error) {
	query := `SELECT ` + liquidationColumns + ` FROM liquidations WHERE id = ?`

	l, err := scanLiquidation(r.db.Executor(ctx).QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get liquidation by ID", zap.String("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get liquidation: %w", err)
	}

	return l, nil
}

// Update writes every mutable column. control_no, created_by and created_at never change.
func (r *LiquidationRepository) Update(ctx context.Context, l *entity.Liquidation) error {
	query := `
		UPDATE liquidations SET
			hei_id = ?, program_id = ?, academic_year_id = ?, semester_id = ?,
			status = ?, liquidation_status = ?, document_status = ?, remarks = ?,
			reviewed_by = ?, reviewed_at = ?,
			accountant_reviewed_by = ?, accountant_reviewed_at = ?,
			coa_endorsed_by = ?, coa_endorsed_at = ?,
			date_submitted = ?, deleted_at = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		l.HEIID,
		l.ProgramID,
		l.AcademicYearID,
		l.SemesterID,
		string(l.Status),
		string(l.LiquidationStatus),
		string(l.DocumentStatus),
		l.Remarks,
		nullString(l.ReviewedBy),
		nullTime(l.ReviewedAt),
		nullString(l.AccountantReviewedBy),
		nullTime(l.AccountantReviewedAt),
		nullString(l.COAEndorsedBy),
		nullTime(l.COAEndorsedAt),
		nullTime(l.DateSubmitted),
		nullTime(l.DeletedAt),
		l.UpdatedAt,
		l.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update liquidation", zap.String("id", l.ID), zap.Error(err))
		return fmt.Errorf("failed to update liquidation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("liquidation %s not found for update", l.ID)
	}

	return nil
}

// List returns liquidations matching the filter, newest first
func (r *LiquidationRepository) List(ctx context.Context, filter entity.LiquidationFilter) ([]*entity.Liquidation, error) {
	var (
		where []string
		args  []interface{}
	)

	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.HEIID != 0 {
		where = append(where, "hei_id = ?")
		args = append(args, filter.HEIID)
	}
	if !filter.IncludeDeleted {
		where = append(where, "deleted_at IS NULL")
	}

	query := `SELECT ` + liquidationColumns + ` FROM liquidations`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, control_no DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, filter.Offset)

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list liquidations", zap.Error(err))
		return nil, fmt.Errorf("failed to list liquidations: %w", err)
	}
	defer rows.Close()

	var liquidations []*entity.Liquidation
	for rows.Next() {
		l, err := scanLiquidation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan liquidation: %w", err)
		}
		liquidations = append(liquidations, l)
	}

	return liquidations, rows.Err()
}

// MaxControlSequence returns the highest sequence issued in the year across all programs
func (r *LiquidationRepository) MaxControlSequence(ctx context.Context, year int) (int, error) {
	var seq int
	err := r.db.Executor(ctx).QueryRowContext(ctx,
		`SELECT COALESCE(MAX(control_seq), 0) FROM liquidations WHERE control_year = ?`, year,
	).Scan(&seq)
	if err != nil {
		r.logger.Error("Failed to read control sequence", zap.Int("year", year), zap.Error(err))
		return 0, fmt.Errorf("failed to read control sequence: %w", err)
	}
	return seq, nil
}

func scanLiquidation(row rowScanner) (*entity.Liquidation, error) {
	var (
		l                    entity.Liquidation
		status               string
		liquidationStatus    string
		documentStatus       string
		reviewedBy           sql.NullString
		reviewedAt           sql.NullTime
		accountantReviewedBy sql.NullString
		accountantReviewedAt sql.NullTime
		coaEndorsedBy        sql.NullString
		coaEndorsedAt        sql.NullTime
		dateSubmitted        sql.NullTime
		deletedAt            sql.NullTime
	)

	err := row.Scan(
		&l.ID,
		&l.ControlNo,
		&l.HEIID,
		&l.ProgramID,
		&l.AcademicYearID,
		&l.SemesterID,
		&l.CreatedBy,
		&status,
		&liquidationStatus,
		&documentStatus,
		&l.Remarks,
		&reviewedBy,
		&reviewedAt,
		&accountantReviewedBy,
		&accountantReviewedAt,
		&coaEndorsedBy,
		&coaEndorsedAt,
		&dateSubmitted,
		&deletedAt,
		&l.CreatedAt,
		&l.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	l.Status = workflowState(status)
	l.LiquidationStatus = entity.LiquidationStatus(liquidationStatus)
	l.DocumentStatus = entity.DocumentStatus(documentStatus)
	l.ReviewedBy = stringPtr(reviewedBy)
	l.ReviewedAt = timePtr(reviewedAt)
	l.AccountantReviewedBy = stringPtr(accountantReviewedBy)
	l.AccountantReviewedAt = timePtr(accountantReviewedAt)
	l.COAEndorsedBy = stringPtr(coaEndorsedBy)
	l.COAEndorsedAt = timePtr(coaEndorsedAt)
	l.DateSubmitted = timePtr(dateSubmitted)
	l.DeletedAt = timePtr(deletedAt)

	return &l, nil
}

// Verify interface compliance
var _ port.LiquidationRepository = (*LiquidationRepository)(nil)
