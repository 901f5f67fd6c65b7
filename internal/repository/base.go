// Package repository implements the data access layer: confessions and
// comments, the vote ledger, profiles, drafts and operator state.
package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"confessional/internal/models"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// forUpdate is the row lock used by every check-and-mutate transaction.
// SQLite has no row locks and the dialector drops the clause.
var forUpdate = clause.Locking{Strength: "UPDATE"}

// classify maps a raw store error onto the shared taxonomy. AppErrors pass
// through untouched.
func classify(err error, resource string, id interface{}) error {
	if err == nil {
		return nil
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	if isTransient(err) {
		return models.NewTransientStoreError(err)
	}
	return models.NewInternalError(err)
}

func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01", "55P03":
			return true
		}
		return strings.HasPrefix(pgErr.Code, "08")
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "sqlite_busy") ||
		strings.Contains(msg, "database table is locked")
}

// isUniqueConstraintError checks if a DB error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "unique constraint")
}

// utc normalizes timestamps before they are written or compared.
func utc(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func clampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	if limit > max {
		return max
	}
	return limit
}
