// Package bootstrap connects the runtime dependencies and wires the service
// graph shared by the server and the operator tools.
package bootstrap

import (
	"context"
	"fmt"

	"confessional/internal/cache"
	"confessional/internal/config"
	"confessional/internal/database"
	"confessional/internal/seed"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	ApplySchema bool
	SeedDemo    bool
	Demo        seed.Options
}

// InitRuntime connects to DB and Redis and optionally applies the schema and
// seeds demo content.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	// Init Redis (may result in nil client if unreachable)
	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	if opts.ApplySchema {
		if err := database.ApplySchema(ctx, db, cfg); err != nil {
			return nil, nil, fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	if opts.SeedDemo {
		if cfg.IsProduction() {
			return nil, nil, fmt.Errorf("refusing to seed demo content in %s", cfg.Env)
		}
		if _, err := seed.Seed(ctx, db, opts.Demo); err != nil {
			return nil, nil, fmt.Errorf("failed to seed demo content: %w", err)
		}
	}

	return db, r, nil
}
