package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const defaultSlowQuery = 200 * time.Millisecond

// GormLogger sends GORM output to slog. Missing rows are not errors here; the
// repositories turn them into NOT_FOUND.
type GormLogger struct {
	log   *slog.Logger
	level logger.LogLevel
	slow  time.Duration
}

// NewGormLogger logs failed and slow queries only.
func NewGormLogger(l *slog.Logger) *GormLogger {
	if l == nil {
		l = slog.Default()
	}
	return &GormLogger{log: l.With("component", "gorm"), level: logger.Warn, slow: defaultSlowQuery}
}

// LogMode implements logger.Interface.
func (g *GormLogger) LogMode(level logger.LogLevel) logger.Interface {
	clone := *g
	clone.level = level
	return &clone
}

func (g *GormLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	g.printf(ctx, logger.Info, slog.LevelInfo, msg, data)
}

func (g *GormLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	g.printf(ctx, logger.Warn, slog.LevelWarn, msg, data)
}

func (g *GormLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	g.printf(ctx, logger.Error, slog.LevelError, msg, data)
}

func (g *GormLogger) printf(ctx context.Context, min logger.LogLevel, level slog.Level, msg string, data []interface{}) {
	if g.level >= min {
		g.log.Log(ctx, level, fmt.Sprintf(msg, data...))
	}
}

// Trace implements logger.Interface.
func (g *GormLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= logger.Silent {
		return
	}
	elapsed := time.Since(begin)
	failed := err != nil && !errors.Is(err, gorm.ErrRecordNotFound)
	slow := g.slow > 0 && elapsed > g.slow

	var (
		level slog.Level
		msg   string
	)
	switch {
	case failed && g.level >= logger.Error:
		level, msg = slog.LevelError, "query failed"
	case slow && g.level >= logger.Warn:
		level, msg = slog.LevelWarn, "slow query"
	case g.level >= logger.Info:
		level, msg = slog.LevelInfo, "query"
	default:
		return
	}

	sql, rows := fc()
	attrs := []slog.Attr{
		slog.String("sql", sql),
		slog.Int64("rows", rows),
		slog.Duration("elapsed", elapsed),
	}
	if failed {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	g.log.LogAttrs(ctx, level, msg, attrs...)
}
