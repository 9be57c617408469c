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

const userColumns = `id, name, email, role, hei_id, region_id, lark_open_id`

// UserRepository implements port.UserRepository
type UserRepository struct {
	db     *sqlite.DB
	logger *zap.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sqlite.DB, logger *zap.Logger) port.UserRepository {
	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

// Save upserts a user by ID
func (r *UserRepository) Save(ctx context.Context, u *entity.User) error {
	query := `
		INSERT INTO users (id, name, email, role, hei_id, region_id, lark_open_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			role = excluded.role,
			hei_id = excluded.hei_id,
			region_id = excluded.region_id,
			lark_open_id = excluded.lark_open_id
	`

	_, err := r.db.Executor(ctx).ExecContext(ctx, query,
		u.ID,
		u.Name,
		u.Email,
		u.Role,
		nullInt64(u.HEIID),
		nullInt64(u.RegionID),
		u.LarkOpenID,
	)
	if err != nil {
		r.logger.Error("Failed to save user", zap.String("user_id", u.ID), zap.Error(err))
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// GetByID retrieves a user
func (r *UserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	u, err := scanUser(r.db.Executor(ctx).QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// ListByHEI returns users affiliated with an HEI
func (r *UserRepository) ListByHEI(ctx context.Context, heiID int64) ([]*entity.User, error) {
	return r.list(ctx, `SELECT `+userColumns+` FROM users WHERE hei_id = ? ORDER BY id`, heiID)
}

// ListByRole returns users with a role, narrowed to a region when given
func (r *UserRepository) ListByRole(ctx context.Context, role string, regionID *int64) ([]*entity.User, error) {
	if regionID == nil {
		return r.list(ctx, `SELECT `+userColumns+` FROM users WHERE role = ? ORDER BY id`, role)
	}
	return r.list(ctx, `SELECT `+userColumns+` FROM users WHERE role = ? AND region_id = ? ORDER BY id`, role, *regionID)
}

func (r *UserRepository) list(ctx context.Context, query string, args ...interface{}) ([]*entity.User, error) {
	rows, err := r.db.Executor(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list users", zap.Error(err))
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*entity.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}

	return users, rows.Err()
}

func scanUser(row rowScanner) (*entity.User, error) {
	var u entity.User
	var heiID, regionID sql.NullInt64

	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &heiID, &regionID, &u.LarkOpenID); err != nil {
		return nil, err
	}

	u.HEIID = int64Ptr(heiID)
	u.RegionID = int64Ptr(regionID)
	return &u, nil
}

// Verify interface compliance
var _ port.UserRepository = (*UserRepository)(nil)
