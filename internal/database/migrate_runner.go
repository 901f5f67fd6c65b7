package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"confessional/internal/middleware"

	"gorm.io/gorm"
)

// migrationLockKey serializes migrators across replicas on Postgres.
const migrationLockKey int64 = 0x636f6e66 // "conf"

// AppliedMigration is one row of the schema_migrations ledger.
type AppliedMigration struct {
	Version   int       `gorm:"primaryKey;autoIncrement:false"`
	Name      string    `gorm:"size:255;not null"`
	AppliedAt time.Time `gorm:"autoCreateTime"`
}

func (AppliedMigration) TableName() string { return "schema_migrations" }

const createLedgerSQL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version BIGINT PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);`

// Migrator applies a fixed, version-ordered set of migrations.
type Migrator struct {
	db         *gorm.DB
	migrations []Migration
}

// NewMigrator uses the embedded migrations when set is nil.
func NewMigrator(db *gorm.DB, set []Migration) *Migrator {
	if set == nil {
		set = migrations
	}
	return &Migrator{db: db, migrations: set}
}

func (m *Migrator) find(version int) *Migration {
	for i := range m.migrations {
		if m.migrations[i].Version == version {
			return &m.migrations[i]
		}
	}
	return nil
}

// Applied lists recorded versions in ascending order. A missing ledger is empty.
func (m *Migrator) Applied(ctx context.Context) ([]int, error) {
	var versions []int
	err := m.db.WithContext(ctx).Model(&AppliedMigration{}).Order("version ASC").Pluck("version", &versions).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) || isMissingTableError(err) {
			return []int{}, nil
		}
		return nil, fmt.Errorf("read schema_migrations: %w", err)
	}
	return versions, nil
}

func isMissingTableError(err error) bool {
	msg := err.Error()
	return (strings.Contains(msg, "relation") && strings.Contains(msg, "does not exist")) ||
		strings.Contains(msg, "no such table")
}

// Pending returns the registered migrations not yet in the ledger.
func (m *Migrator) Pending(ctx context.Context) ([]Migration, error) {
	applied, err := m.Applied(ctx)
	if err != nil {
		return nil, err
	}
	var pending []Migration
	for _, mig := range m.migrations {
		if !slices.Contains(applied, mig.Version) {
			pending = append(pending, mig)
		}
	}
	return pending, nil
}

// withLock holds a session-level advisory lock on Postgres for the duration
// of fn. Other dialects run fn directly.
func (m *Migrator) withLock(ctx context.Context, fn func(db *gorm.DB) error) error {
	if m.db.Dialector.Name() != "postgres" {
		return fn(m.db.WithContext(ctx))
	}
	return m.db.WithContext(ctx).Connection(func(conn *gorm.DB) error {
		if err := conn.Exec("SELECT pg_advisory_lock(?)", migrationLockKey).Error; err != nil {
			return fmt.Errorf("acquire migration lock: %w", err)
		}
		defer conn.Exec("SELECT pg_advisory_unlock(?)", migrationLockKey)
		return fn(conn)
	})
}

// Up applies every pending migration, each in its own transaction.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	applied := 0
	err := m.withLock(ctx, func(db *gorm.DB) error {
		if err := db.Exec(createLedgerSQL).Error; err != nil {
			return fmt.Errorf("create schema_migrations: %w", err)
		}
		versions, err := m.Applied(ctx)
		if err != nil {
			return err
		}
		if err := validateAppliedVersions(versions, m.migrations); err != nil {
			return err
		}
		for _, mig := range m.migrations {
			if slices.Contains(versions, mig.Version) {
				continue
			}
			middleware.Logger.Info("applying migration", slog.String("migration", mig.String()))
			err := db.Transaction(func(tx *gorm.DB) error {
				if err := tx.Exec(mig.UpScript).Error; err != nil {
					return fmt.Errorf("apply %s: %w", mig.String(), err)
				}
				return tx.Create(&AppliedMigration{Version: mig.Version, Name: mig.Name}).Error
			})
			if err != nil {
				return err
			}
			applied++
		}
		return nil
	})
	return applied, err
}

// Down reverts one applied migration by version.
func (m *Migrator) Down(ctx context.Context, version int) error {
	mig := m.find(version)
	if mig == nil {
		return fmt.Errorf("migration version %d not found", version)
	}
	return m.withLock(ctx, func(db *gorm.DB) error {
		versions, err := m.Applied(ctx)
		if err != nil {
			return err
		}
		if !slices.Contains(versions, version) {
			return fmt.Errorf("migration %d has not been applied", version)
		}
		middleware.Logger.Info("reverting migration", slog.String("migration", mig.String()))
		return db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(mig.DownScript).Error; err != nil {
				return fmt.Errorf("revert %s: %w", mig.String(), err)
			}
			return tx.Where("version = ?", version).Delete(&AppliedMigration{}).Error
		})
	})
}

func validateAppliedVersions(applied []int, registered []Migration) error {
	var unknown []string
	for _, version := range applied {
		if !slices.ContainsFunc(registered, func(m Migration) bool { return m.Version == version }) {
			unknown = append(unknown, fmt.Sprintf("%06d", version))
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	slices.Sort(unknown)
	return fmt.Errorf(
		"schema_migrations contains versions this binary does not know: %s (deploy a newer build or roll back with cmd/migrate down)",
		strings.Join(unknown, ", "),
	)
}

// RunMigrations applies the embedded migrations.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	n, err := NewMigrator(db, nil).Up(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		middleware.Logger.Info("migrations applied", slog.Int("count", n))
	}
	return nil
}

// RollbackMigration reverts one embedded migration.
func RollbackMigration(ctx context.Context, db *gorm.DB, version int) error {
	return NewMigrator(db, nil).Down(ctx, version)
}
