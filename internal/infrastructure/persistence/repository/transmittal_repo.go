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

const transmittalColumns = `
	id, liquidation_id, transmittal_reference_no, receiver_name,
	document_location_id, number_of_folders, folder_location_number,
	group_transmittal, endorsed_by, endorsed_at`

// TransmittalRepository implements port.TransmittalRepository
type TransmittalRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewTransmittalRepository creates a new transmittal repository
func NewTransmittalRepository(db *sqlite.DB, logger *zap.Logger) port.TransmittalRepository {
	return &TransmittalRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a transmittal. A reused reference number yields a ConflictError.
func (r *TransmittalRepository) Create(ctx context.Context, t *entity.Transmittal) error {
	query := `
		INSERT INTO transmittals (
			liquidation_id, transmittal_reference_no, receiver_name,
			document_location_id, number_of_folders, folder_location_number,
			group_transmittal, endorsed_by, endorsed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		t.LiquidationID,
		t.TransmittalReferenceNo,
		t.ReceiverName,
		t.DocumentLocationID,
		t.NumberOfFolders,
		t.FolderLocationNumber,
		t.GroupTransmittal,
		t.EndorsedBy,
		t.EndorsedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create transmittal",
			zap.String("liquidation_id", t.LiquidationID),
			zap.String("reference_no", t.TransmittalReferenceNo),
			zap.Error(err))
		return fmt.Errorf("failed to create transmittal: %w",
			conflictOr(err, fmt.Sprintf("transmittal reference %s already used", t.TransmittalReferenceNo)))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	t.ID = id
	return nil
}

// AddLocation appends a location history entry
func (r *TransmittalRepository) AddLocation(ctx context.Context, loc *entity.TransmittalLocation) error {
	query := `
		INSERT INTO transmittal_location_history (
			transmittal_id, document_location_id, moved_by, remarks, moved_at
		) VALUES (?, ?, ?, ?, ?)
	`

	result, err := r.db.Executor(ctx).ExecContext(ctx, query,
		loc.TransmittalID,
		loc.DocumentLocationID,
		loc.MovedBy,
		loc.Remarks,
		loc.MovedAt,
	)
	if err != nil {
		r.logger.Error("Failed to add transmittal location", zap.Int64("transmittal_id", loc.TransmittalID), zap.Error(err))
		return fmt.Errorf("failed to add transmittal location: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	loc.ID = id
	return nil
}

// GetActiveByLiquidationID returns the latest transmittal with its location history
func (r *TransmittalRepository) GetActiveByLiquidationID(ctx context.Context, liquidationID string) (*entity.Transmittal, error) {
	query := `SELECT ` + transmittalColumns + ` FROM transmittals
		WHERE liquidation_id = ? ORDER BY id DESC LIMIT 1`

	t, err := scanTransmittal(r.db.Executor(ctx).QueryRowContext(ctx, query, liquidationID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get active transmittal", zap.String("liquidation_id", liquidationID), zap.Error(err))
		return nil, fmt.Errorf("failed to get transmittal: %w", err)
	}

	if t.LocationHistory, err = r.locations(ctx, t.ID); err != nil {
		return nil, err
	}

	return t, nil
}

// ListByLiquidationID returns all transmittals oldest first, each with its history
func (r *TransmittalRepository) ListByLiquidationID(ctx context.Context, liquidationID string) ([]*entity.Transmittal, error) {
	query := `SELECT ` + transmittalColumns + ` FROM transmittals
		WHERE liquidation_id = ? ORDER BY id ASC`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, liquidationID)
	if err != nil {
		r.logger.Error("Failed to list transmittals", zap.String("liquidation_id", liquidationID), zap.Error(err))
		return nil, fmt.Errorf("failed to list transmittals: %w", err)
	}

	var transmittals []*entity.Transmittal
	for rows.Next() {
		t, err := scanTransmittal(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan transmittal: %w", err)
		}
		transmittals = append(transmittals, t)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	// Release the cursor before issuing history queries on a single-connection tx
	rows.Close()

	for _, t := range transmittals {
		if t.LocationHistory, err = r.locations(ctx, t.ID); err != nil {
			return nil, err
		}
	}

	return transmittals, nil
}

func (r *TransmittalRepository) locations(ctx context.Context, transmittalID int64) ([]entity.TransmittalLocation, error) {
	query := `
		SELECT id, transmittal_id, document_location_id, moved_by, remarks, moved_at
		FROM transmittal_location_history
		WHERE transmittal_id = ?
		ORDER BY moved_at ASC, id ASC
	`

	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, transmittalID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transmittal locations: %w", err)
	}
	defer rows.Close()

	var history []entity.TransmittalLocation
	for rows.Next() {
		var loc entity.TransmittalLocation
		if err := rows.Scan(
			&loc.ID,
			&loc.TransmittalID,
			&loc.DocumentLocationID,
			&loc.MovedBy,
			&loc.Remarks,
			&loc.MovedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transmittal location: %w", err)
		}
		history = append(history, loc)
	}

	return history, rows.Err()
}

func scanTransmittal(row rowScanner) (*entity.Transmittal, error) {
	var t entity.Transmittal
	err := row.Scan(
		&t.ID,
		&t.LiquidationID,
		&t.TransmittalReferenceNo,
		&t.ReceiverName,
		&t.DocumentLocationID,
		&t.NumberOfFolders,
		&t.FolderLocationNumber,
		&t.GroupTransmittal,
		&t.EndorsedBy,
		&t.EndorsedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Verify interface compliance
var _ port.TransmittalRepository = (*TransmittalRepository)(nil)
