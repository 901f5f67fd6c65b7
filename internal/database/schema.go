package database

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"confessional/internal/config"
	"confessional/internal/middleware"

	"gorm.io/gorm"
)

// DB_SCHEMA_MODE values. hybrid runs the SQL migrations everywhere and adds
// AutoMigrate outside production-like environments.
const (
	SchemaModeHybrid = "hybrid"
	SchemaModeSQL    = "sql"
	SchemaModeAuto   = "auto"
)

// SchemaStatus describes what ApplySchema would do against the current database.
type SchemaStatus struct {
	Mode               string
	Environment        string
	WillRunSQL         bool
	WillRunAutoMigrate bool
	AppliedVersions    []int
	PendingMigrations  []Migration
}

type schemaPlan struct {
	mode    string
	sql     bool
	auto    bool
	unsafe  bool // auto in a production-like env, explicitly allowed
	prodEnv bool
}

func isProdLikeEnv(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod", "staging", "stage":
		return true
	}
	return false
}

func planSchema(cfg *config.Config) (schemaPlan, error) {
	p := schemaPlan{mode: normalizedSchemaMode(cfg), prodEnv: isProdLikeEnv(cfg.Env)}
	switch p.mode {
	case SchemaModeSQL:
		p.sql = true
	case SchemaModeHybrid:
		p.sql, p.auto = true, !p.prodEnv
	case SchemaModeAuto:
		if p.prodEnv && !cfg.DBAutoMigrateAllowDestructive {
			return p, fmt.Errorf("refusing DB_SCHEMA_MODE=auto in %q without DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE=true", cfg.Env)
		}
		p.auto, p.unsafe = true, p.prodEnv
	default:
		return p, fmt.Errorf("unsupported DB_SCHEMA_MODE %q", p.mode)
	}
	return p, nil
}

// normalizedSchemaMode is DB_SCHEMA_MODE with the default applied.
func normalizedSchemaMode(cfg *config.Config) string {
	mode := strings.ToLower(strings.TrimSpace(cfg.DBSchemaMode))
	if mode == "" {
		return SchemaModeHybrid
	}
	return mode
}

// schemaPolicy is planSchema reduced to its two switches.
func schemaPolicy(cfg *config.Config) (runSQL bool, runAuto bool, err error) {
	p, err := planSchema(cfg)
	if err != nil {
		return false, false, err
	}
	return p.sql, p.auto, nil
}

func runAutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(PersistentModels()...)
}

// ApplySchema runs embedded SQL migrations and/or AutoMigrate according to DB_SCHEMA_MODE.
func ApplySchema(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	p, err := planSchema(cfg)
	if err != nil {
		return err
	}
	if p.sql {
		if err := RunMigrations(ctx, db); err != nil {
			return fmt.Errorf("run sql migrations: %w", err)
		}
	}
	if !p.auto {
		return nil
	}
	if p.unsafe {
		middleware.Logger.Warn("AutoMigrate enabled in a production-like environment; review schema diffs first",
			slog.String("env", cfg.Env))
	}
	middleware.Logger.Info("running AutoMigrate", slog.String("mode", p.mode), slog.String("env", cfg.Env))
	if err := runAutoMigrate(db.WithContext(ctx)); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	return nil
}

// GetSchemaStatus reports the schema plan and, when SQL migrations are in
// play, which of them are still pending.
func GetSchemaStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) (*SchemaStatus, error) {
	p, err := planSchema(cfg)
	if err != nil {
		return nil, err
	}
	status := &SchemaStatus{
		Mode:               p.mode,
		Environment:        cfg.Env,
		WillRunSQL:         p.sql,
		WillRunAutoMigrate: p.auto,
	}
	if !p.sql {
		return status, nil
	}

	m := NewMigrator(db, nil)
	if status.AppliedVersions, err = m.Applied(ctx); err != nil {
		return nil, err
	}
	if status.PendingMigrations, err = m.Pending(ctx); err != nil {
		return nil, err
	}
	return status, nil
}
