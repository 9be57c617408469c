package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/hei-liquidation/internal/application/port"
	"github.com/garyjia/hei-liquidation/internal/domain/apperr"
	"github.com/garyjia/hei-liquidation/internal/domain/entity"
	"github.com/garyjia/hei-liquidation/internal/infrastructure/persistence/sqlite"
)

var referenceTables = map[entity.ReferenceKind]string{
	entity.ReferenceRegion:              "regions",
	entity.ReferenceHEI:                 "heis",
	entity.ReferenceProgram:             "programs",
	entity.ReferenceAcademicYear:        "academic_years",
	entity.ReferenceSemester:            "semesters",
	entity.ReferenceComplianceStatus:    "compliance_statuses",
	entity.ReferenceDocumentRequirement: "document_requirements",
}

// ReferenceRepository implements port.ReferenceRepository
type ReferenceRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewReferenceRepository creates a new reference data repository
func NewReferenceRepository(db *sqlite.DB, logger *zap.Logger) port.ReferenceRepository {
	return &ReferenceRepository{
		db:     db,
		logger: logger,
	}
}

// GetRegionByID retrieves a region
func (r *ReferenceRepository) GetRegionByID(ctx context.Context, id int64) (*entity.Region, error) {
	var region entity.Region
	err := r.db.Executor(ctx).QueryRowContext(ctx,
		`SELECT id, code, name FROM regions WHERE id = ?`, id,
	).Scan(&region.ID, &region.Code, &region.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get region: %w", err)
	}
	return &region, nil
}

// GetHEIByID retrieves an HEI by its internal ID
func (r *ReferenceRepository) GetHEIByID(ctx context.Context, id int64) (*entity.HEI, error) {
	return r.getHEI(ctx, `SELECT id, external_id, name, region_id FROM heis WHERE id = ?`, id)
}

// GetHEIByExternalID retrieves an HEI by its external identifier
func (r *ReferenceRepository) GetHEIByExternalID(ctx context.Context, externalID string) (*entity.HEI, error) {
	return r.getHEI(ctx, `SELECT id, external_id, name, region_id FROM heis WHERE external_id = ?`, externalID)
}

func (r *ReferenceRepository) getHEI(ctx context.Context, query string, arg interface{}) (*entity.HEI, error) {
	var hei entity.HEI
	err := r.db.Executor(ctx).QueryRowContext(ctx, query, arg).Scan(&hei.ID, &hei.ExternalID, &hei.Name, &hei.RegionID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get HEI", zap.Any("key", arg), zap.Error(err))
		return nil, fmt.Errorf("failed to get hei: %w", err)
	}
	return &hei, nil
}

// GetProgramByID retrieves a program
func (r *ReferenceRepository) GetProgramByID(ctx context.Context, id int64) (*entity.Program, error) {
	var program entity.Program
	err := r.db.Executor(ctx).QueryRowContext(ctx,
		`SELECT id, code, name FROM programs WHERE id = ?`, id,
	).Scan(&program.ID, &program.Code, &program.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get program: %w", err)
	}
	return &program, nil
}

// GetAcademicYearByLabel retrieves an academic year such as "2024-2025"
func (r *ReferenceRepository) GetAcademicYearByLabel(ctx context.Context, label string) (*entity.AcademicYear, error) {
	var year entity.AcademicYear
	var start, end sql.NullTime
	err := r.db.Executor(ctx).QueryRowContext(ctx,
		`SELECT id, label, start_date, end_date FROM academic_years WHERE label = ?`, label,
	).Scan(&year.ID, &year.Label, &start, &end)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get academic year: %w", err)
	}
	year.StartDate = timePtr(start)
	year.EndDate = timePtr(end)
	return &year, nil
}

// GetSemesterByCode retrieves a semester by its normalized code
func (r *ReferenceRepository) GetSemesterByCode(ctx context.Context, code string) (*entity.Semester, error) {
	var semester entity.Semester
	err := r.db.Executor(ctx).QueryRowContext(ctx,
		`SELECT id, code, name FROM semesters WHERE code = ?`, code,
	).Scan(&semester.ID, &semester.Code, &semester.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get semester: %w", err)
	}
	return &semester, nil
}

// GetComplianceStatusByCode retrieves a compliance status lookup
func (r *ReferenceRepository) GetComplianceStatusByCode(ctx context.Context, code string) (*entity.ComplianceStatus, error) {
	var status entity.ComplianceStatus
	err := r.db.Executor(ctx).QueryRowContext(ctx,
		`SELECT id, code, name FROM compliance_statuses WHERE code = ?`, code,
	).Scan(&status.ID, &status.Code, &status.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get compliance status: %w", err)
	}
	return &status, nil
}

// ListDocumentRequirements returns requirements for a program plus the ones
// that apply to every program. A nil programID returns all of them.
func (r *ReferenceRepository) ListDocumentRequirements(ctx context.Context, programID *int64) ([]*entity.DocumentRequirement, error) {
	query := `SELECT id, program_id, name, is_required FROM document_requirements`
	var args []interface{}
	if programID != nil {
		query += ` WHERE program_id IS NULL OR program_id = ?`
		args = append(args, *programID)
	}
	query += ` ORDER BY id ASC`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list document requirements: %w", err)
	}
	defer rows.Close()

	var requirements []*entity.DocumentRequirement
	for rows.Next() {
		var req entity.DocumentRequirement
		var program sql.NullInt64
		if err := rows.Scan(&req.ID, &program, &req.Name, &req.IsRequired); err != nil {
			return nil, fmt.Errorf("failed to scan document requirement: %w", err)
		}
		req.ProgramID = int64Ptr(program)
		requirements = append(requirements, &req)
	}

	return requirements, rows.Err()
}

// SaveRegion inserts or updates a region
func (r *ReferenceRepository) SaveRegion(ctx context.Context, region *entity.Region) error {
	return r.save(ctx, entity.ReferenceRegion, &region.ID,
		`INSERT INTO regions (code, name) VALUES (?, ?)`,
		`UPDATE regions SET code = ?, name = ? WHERE id = ?`,
		region.Code, region.Name)
}

// SaveHEI inserts or updates an HEI
func (r *ReferenceRepository) SaveHEI(ctx context.Context, hei *entity.HEI) error {
	return r.save(ctx, entity.ReferenceHEI, &hei.ID,
		`INSERT INTO heis (external_id, name, region_id) VALUES (?, ?, ?)`,
		`UPDATE heis SET external_id = ?, name = ?, region_id = ? WHERE id = ?`,
		hei.ExternalID, hei.Name, hei.RegionID)
}

// SaveProgram inserts or updates a program
func (r *ReferenceRepository) SaveProgram(ctx context.Context, program *entity.Program) error {
	return r.save(ctx, entity.ReferenceProgram, &program.ID,
		`INSERT INTO programs (code, name) VALUES (?, ?)`,
		`UPDATE programs SET code = ?, name = ? WHERE id = ?`,
		program.Code, program.Name)
}

// SaveAcademicYear inserts or updates an academic year
func (r *ReferenceRepository) SaveAcademicYear(ctx context.Context, year *entity.AcademicYear) error {
	return r.save(ctx, entity.ReferenceAcademicYear, &year.ID,
		`INSERT INTO academic_years (label, start_date, end_date) VALUES (?, ?, ?)`,
		`UPDATE academic_years SET label = ?, start_date = ?, end_date = ? WHERE id = ?`,
		year.Label, nullTime(year.StartDate), nullTime(year.EndDate))
}

// SaveSemester inserts or updates a semester
func (r *ReferenceRepository) SaveSemester(ctx context.Context, semester *entity.Semester) error {
	return r.save(ctx, entity.ReferenceSemester, &semester.ID,
		`INSERT INTO semesters (code, name) VALUES (?, ?)`,
		`UPDATE semesters SET code = ?, name = ? WHERE id = ?`,
		semester.Code, semester.Name)
}

// SaveComplianceStatus inserts or updates a compliance status
func (r *ReferenceRepository) SaveComplianceStatus(ctx context.Context, status *entity.ComplianceStatus) error {
	return r.save(ctx, entity.ReferenceComplianceStatus, &status.ID,
		`INSERT INTO compliance_statuses (code, name) VALUES (?, ?)`,
		`UPDATE compliance_statuses SET code = ?, name = ? WHERE id = ?`,
		status.Code, status.Name)
}

// SaveDocumentRequirement inserts or updates a document requirement
func (r *ReferenceRepository) SaveDocumentRequirement(ctx context.Context, req *entity.DocumentRequirement) error {
	return r.save(ctx, entity.ReferenceDocumentRequirement, &req.ID,
		`INSERT INTO document_requirements (program_id, name, is_required) VALUES (?, ?, ?)`,
		`UPDATE document_requirements SET program_id = ?, name = ?, is_required = ? WHERE id = ?`,
		nullInt64(req.ProgramID), req.Name, req.IsRequired)
}

// save runs insertSQL when *id is zero (and assigns the new id), updateSQL otherwise
func (r *ReferenceRepository) save(ctx context.Context, kind entity.ReferenceKind, id *int64, insertSQL, updateSQL string, args ...interface{}) error {
	exec := r.db.Executor(ctx)

	if *id == 0 {
		result, err := exec.ExecContext(ctx, insertSQL, args...)
		if err != nil {
			r.logger.Error("Failed to insert reference row", zap.String("kind", string(kind)), zap.Error(err))
			return fmt.Errorf("failed to insert %s: %w", kind, conflictOr(err, fmt.Sprintf("%s already exists", kind)))
		}
		newID, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		*id = newID
		return nil
	}

	result, err := exec.ExecContext(ctx, updateSQL, append(args, *id)...)
	if err != nil {
		r.logger.Error("Failed to update reference row", zap.String("kind", string(kind)), zap.Int64("id", *id), zap.Error(err))
		return fmt.Errorf("failed to update %s: %w", kind, conflictOr(err, fmt.Sprintf("%s already exists", kind)))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s %d not found for update", kind, *id)
	}
	return nil
}

// Delete removes one row of the given kind
func (r *ReferenceRepository) Delete(ctx context.Context, kind entity.ReferenceKind, id int64) (bool, error) {
	table, ok := referenceTables[kind]
	if !ok {
		return false, fmt.Errorf("unknown reference kind %q", kind)
	}

	result, err := r.db.Executor(ctx).ExecContext(ctx, `DELETE FROM `+table+` WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to delete reference row", zap.String("kind", string(kind)), zap.Int64("id", id), zap.Error(err))
		if sqlite.IsForeignKeyViolation(err) {
			err = apperr.Conflict(fmt.Sprintf("%s %d is still referenced", kind, id), err)
		}
		return false, fmt.Errorf("failed to delete %s: %w", kind, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows > 0, nil
}

// Verify interface compliance
var _ port.ReferenceRepository = (*ReferenceRepository)(nil)
