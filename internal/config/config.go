// Package config provides application configuration loading and management.
package config

import (
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/adhocore/gronx"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultJWTSecret     = "your-secret-key-change-in-production"
	defaultPersonaSecret = "persona-secret-change-in-production"
)

// Config holds application configuration values loaded from file or environment variables.
type Config struct {
	Port                          string `mapstructure:"PORT"`
	Env                           string `mapstructure:"APP_ENV"`
	DBHost                        string `mapstructure:"DB_HOST"`
	DBPort                        string `mapstructure:"DB_PORT"`
	DBUser                        string `mapstructure:"DB_USER"`
	DBPassword                    string `mapstructure:"DB_PASSWORD"`
	DBName                        string `mapstructure:"DB_NAME"`
	DBSSLMode                     string `mapstructure:"DB_SSLMODE"`
	DBSchemaMode                  string `mapstructure:"DB_SCHEMA_MODE"`
	// DBAutoMigrateAllowDestructive permits DB_SCHEMA_MODE=auto in production.
	DBAutoMigrateAllowDestructive bool   `mapstructure:"DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE"`
	DBMaxOpenConns                int    `mapstructure:"DB_MAX_OPEN_CONNS"`
	DBMaxIdleConns                int    `mapstructure:"DB_MAX_IDLE_CONNS"`
	DBConnMaxLifetimeMinutes      int    `mapstructure:"DB_CONN_MAX_LIFETIME_MINUTES"`
	RedisURL                      string `mapstructure:"REDIS_URL"`

	JWTSecret   string `mapstructure:"JWT_SECRET"`
	JWTIssuer   string `mapstructure:"JWT_ISSUER"`
	JWTAudience string `mapstructure:"JWT_AUDIENCE"`

	AdminIDs          string `mapstructure:"ADMIN_IDS"`
	PersonaLinkSecret string `mapstructure:"PERSONA_LINK_SECRET"`
	BotUsername       string `mapstructure:"BOT_USERNAME"`

	PublishGatewayURL         string `mapstructure:"PUBLISH_GATEWAY_URL"`
	PublishGatewayToken       string `mapstructure:"PUBLISH_GATEWAY_TOKEN"`
	PublishTimeoutSeconds     int    `mapstructure:"PUBLISH_TIMEOUT_SECONDS"`
	PublishMaxAttempts        int    `mapstructure:"PUBLISH_MAX_ATTEMPTS"`
	PublishBackoffBaseSeconds int    `mapstructure:"PUBLISH_BACKOFF_BASE_SECONDS"`

	SubmissionCooldownSeconds int    `mapstructure:"SUBMISSION_COOLDOWN_SECONDS"`
	NicknameCooldownDays      int    `mapstructure:"NICKNAME_COOLDOWN_DAYS"`
	DraftTTLMinutes           int    `mapstructure:"DRAFT_TTL_MINUTES"`
	JanitorCron               string `mapstructure:"JANITOR_CRON"`
	ThreadMaxTopLevel         int    `mapstructure:"THREAD_MAX_TOP_LEVEL"`
	ThreadMaxReplies          int    `mapstructure:"THREAD_MAX_REPLIES"`

	FeatureFlags   string `mapstructure:"FEATURE_FLAGS"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`

	// GlobalRateLimit is the per-IP request budget per minute.
	GlobalRateLimit int `mapstructure:"GLOBAL_RATE_LIMIT"`

	TracingEnabled      bool    `mapstructure:"TRACING_ENABLED"`
	TracingExporter     string  `mapstructure:"TRACING_EXPORTER"`
	OTLPEndpoint        string  `mapstructure:"OTLP_ENDPOINT"`
	OTLPInsecure        bool    `mapstructure:"OTLP_INSECURE"`
	TracingSamplerRatio float64 `mapstructure:"TRACING_SAMPLER_RATIO"`
}

// LoadConfig loads application configuration from file and environment variables.
func LoadConfig() (*Config, error) {
	// A missing .env is normal outside local development.
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded environment from .env")
	}

	viper.AddConfigPath(".")
	viper.AddConfigPath("..")
	viper.AddConfigPath("../..")
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AutomaticEnv()

	// The base config file is optional.
	_ = viper.ReadInConfig()

	env := viper.GetString("APP_ENV")
	if env == "" {
		env = "development"
	}

	if env != "development" && env != "test" {
		viper.SetConfigName("config." + env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, fmt.Errorf("required profile-specific config 'config.%s.yml' not found: %w", env, err)
		}
		log.Printf("Loaded profile-specific configuration: config.%s.yml", env)
	}

	setDefaults()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("PORT", "8375")
	viper.SetDefault("APP_ENV", "development")
	viper.SetDefault("DB_HOST", "localhost")
	viper.SetDefault("DB_PORT", "5432")
	viper.SetDefault("DB_USER", "user")
	viper.SetDefault("DB_PASSWORD", "password")
	viper.SetDefault("DB_NAME", "confessions")
	viper.SetDefault("DB_SSLMODE", "disable")
	viper.SetDefault("DB_SCHEMA_MODE", "hybrid")
	viper.SetDefault("DB_AUTOMIGRATE_ALLOW_DESTRUCTIVE", false)
	viper.SetDefault("DB_MAX_OPEN_CONNS", 25)
	viper.SetDefault("DB_MAX_IDLE_CONNS", 5)
	viper.SetDefault("DB_CONN_MAX_LIFETIME_MINUTES", 5)
	viper.SetDefault("REDIS_URL", "localhost:6379")
	viper.SetDefault("JWT_SECRET", defaultJWTSecret)
	viper.SetDefault("JWT_ISSUER", "confessional")
	viper.SetDefault("JWT_AUDIENCE", "confessional-gateway")
	viper.SetDefault("ADMIN_IDS", "")
	viper.SetDefault("PERSONA_LINK_SECRET", defaultPersonaSecret)
	viper.SetDefault("BOT_USERNAME", "confessions_bot")
	viper.SetDefault("PUBLISH_GATEWAY_URL", "http://localhost:8380")
	viper.SetDefault("PUBLISH_GATEWAY_TOKEN", "")
	viper.SetDefault("PUBLISH_TIMEOUT_SECONDS", 10)
	viper.SetDefault("PUBLISH_MAX_ATTEMPTS", 3)
	viper.SetDefault("PUBLISH_BACKOFF_BASE_SECONDS", 2)
	viper.SetDefault("SUBMISSION_COOLDOWN_SECONDS", 300)
	viper.SetDefault("NICKNAME_COOLDOWN_DAYS", 30)
	viper.SetDefault("DRAFT_TTL_MINUTES", 30)
	viper.SetDefault("JANITOR_CRON", "*/5 * * * *")
	viper.SetDefault("THREAD_MAX_TOP_LEVEL", 5)
	viper.SetDefault("THREAD_MAX_REPLIES", 3)
	viper.SetDefault("FEATURE_FLAGS", "")
	viper.SetDefault("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:3000")
	viper.SetDefault("GLOBAL_RATE_LIMIT", 100)
	viper.SetDefault("TRACING_ENABLED", false)
	viper.SetDefault("TRACING_EXPORTER", "otlp")
	viper.SetDefault("OTLP_ENDPOINT", "localhost:4318")
	viper.SetDefault("OTLP_INSECURE", true)
	viper.SetDefault("TRACING_SAMPLER_RATIO", 1.0)
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.DBSSLMode = strings.ToLower(strings.TrimSpace(c.DBSSLMode))
	c.DBSchemaMode = strings.ToLower(strings.TrimSpace(c.DBSchemaMode))
	c.BotUsername = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(c.BotUsername), "@"))
	c.JanitorCron = strings.TrimSpace(c.JanitorCron)
}

// IsProduction reports whether strict production checks apply.
func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Validate ensures that required configuration values are present and meet security standards.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("PORT is required")
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.PersonaLinkSecret == "" {
		return errors.New("PERSONA_LINK_SECRET is required")
	}
	if _, err := c.AdminIDList(); err != nil {
		return err
	}
	if c.PublishMaxAttempts < 1 {
		return errors.New("PUBLISH_MAX_ATTEMPTS must be at least 1")
	}
	switch c.DBSchemaMode {
	case "", "hybrid", "sql", "auto":
	default:
		return fmt.Errorf("DB_SCHEMA_MODE %q must be hybrid, sql or auto", c.DBSchemaMode)
	}

	// Strict checks for production
	if c.IsProduction() {
		if c.JWTSecret == defaultJWTSecret {
			return errors.New("JWT_SECRET must be changed from the default value in production")
		}
		if len(c.JWTSecret) < 32 {
			return errors.New("JWT_SECRET must be at least 32 characters in production")
		}
		if c.PersonaLinkSecret == defaultPersonaSecret || len(c.PersonaLinkSecret) < 32 {
			return errors.New("PERSONA_LINK_SECRET must be a non-default secret of at least 32 characters in production")
		}
		if c.DBPassword == "password" || c.DBPassword == "" {
			return errors.New("a strong DB_PASSWORD is required in production")
		}
		if !gronx.IsValid(c.JanitorCron) {
			return fmt.Errorf("JANITOR_CRON %q is not a valid cron expression", c.JanitorCron)
		}
		if c.DBSSLMode == "disable" || c.DBSSLMode == "" {
			log.Println("WARNING: DB_SSLMODE is 'disable' in production. It is highly recommended to use SSL for database connections.")
		}
		if c.AllowedOrigins == "*" {
			log.Println("WARNING: ALLOWED_ORIGINS is set to '*' in production. This is insecure.")
		}
	} else {
		// Development/Test warnings
		if len(c.JWTSecret) < 32 {
			log.Println("WARNING: JWT_SECRET is shorter than 32 characters. Consider using a stronger secret for production.")
		}
	}

	return nil
}

// AdminIDList parses ADMIN_IDS.
func (c *Config) AdminIDList() ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(c.AdminIDs, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("ADMIN_IDS entry %q is not a numeric user id", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// SubmissionCooldown is the window between two submissions of one author.
func (c *Config) SubmissionCooldown() time.Duration {
	return time.Duration(c.SubmissionCooldownSeconds) * time.Second
}

// NicknameCooldown is the window between two nickname changes.
func (c *Config) NicknameCooldown() time.Duration {
	return time.Duration(c.NicknameCooldownDays) * 24 * time.Hour
}

// DraftTTL is how long an untouched draft survives.
func (c *Config) DraftTTL() time.Duration {
	return time.Duration(c.DraftTTLMinutes) * time.Minute
}

// PublishTimeout bounds one publish attempt.
func (c *Config) PublishTimeout() time.Duration {
	return time.Duration(c.PublishTimeoutSeconds) * time.Second
}

// PublishBackoffBase is the first retry delay; later ones double.
func (c *Config) PublishBackoffBase() time.Duration {
	return time.Duration(c.PublishBackoffBaseSeconds) * time.Second
}
