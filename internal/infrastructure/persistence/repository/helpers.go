package repository

import (
	"database/sql"
	"time"

	"github.com/garyjia/hei-liquidation/internal/domain/apperr"
	"github.com/garyjia/hei-liquidation/internal/domain/workflow"
	"github.com/garyjia/hei-liquidation/internal/infrastructure/persistence/sqlite"
)

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func nullInt64(p *int64) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *p, Valid: true}
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

// conflictOr maps unique-constraint failures to a ConflictError and returns
// any other error unchanged
func conflictOr(err error, message string) error {
	if sqlite.IsUniqueViolation(err) {
		return apperr.Conflict(message, err)
	}
	return err
}

// workflowState converts a stored status; the CHECK constraint keeps it in the closed set
func workflowState(s string) workflow.State {
	return workflow.State(s)
}
