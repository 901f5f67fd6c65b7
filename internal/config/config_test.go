package config

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Env:                "production",
		Port:               "8375",
		JWTSecret:          "secure-secret-at-least-32-chars-long",
		PersonaLinkSecret:  "another-secure-secret-at-least-32-chars",
		DBPassword:         "secure-password",
		DBSSLMode:          "require",
		DBSchemaMode:       "hybrid",
		JanitorCron:        "*/5 * * * *",
		PublishMaxAttempts: 3,
	}
}

func TestConfig_ValidateProduction(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		expectError bool
	}{
		{"valid production config", func(c *Config) {}, false},
		{"default jwt secret", func(c *Config) { c.JWTSecret = defaultJWTSecret }, true},
		{"short jwt secret", func(c *Config) { c.JWTSecret = "short" }, true},
		{"default persona secret", func(c *Config) { c.PersonaLinkSecret = defaultPersonaSecret }, true},
		{"weak db password", func(c *Config) { c.DBPassword = "password" }, true},
		{"invalid janitor cron", func(c *Config) { c.JanitorCron = "every five minutes" }, true},
		{"bad admin ids", func(c *Config) { c.AdminIDs = "12,abc" }, true},
		{"bad schema mode", func(c *Config) { c.DBSchemaMode = "magic" }, true},
		{"zero publish attempts", func(c *Config) { c.PublishMaxAttempts = 0 }, true},
		{"development tolerates defaults", func(c *Config) {
			c.Env = "development"
			c.JWTSecret = defaultJWTSecret
			c.PersonaLinkSecret = defaultPersonaSecret
			c.DBPassword = "password"
		}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)

			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_AdminIDList(t *testing.T) {
	c := &Config{AdminIDs: " 905781541, 7001310702 ,,"}
	ids, err := c.AdminIDList()
	require.NoError(t, err)
	assert.Equal(t, []int64{905781541, 7001310702}, ids)
}

func TestConfig_Durations(t *testing.T) {
	c := &Config{
		SubmissionCooldownSeconds: 300,
		NicknameCooldownDays:      30,
		DraftTTLMinutes:           30,
		PublishBackoffBaseSeconds: 2,
	}
	assert.Equal(t, 5*time.Minute, c.SubmissionCooldown())
	assert.Equal(t, 30*24*time.Hour, c.NicknameCooldown())
	assert.Equal(t, 30*time.Minute, c.DraftTTL())
	assert.Equal(t, 2*time.Second, c.PublishBackoffBase())
}

func TestLoadConfig_Normalization(t *testing.T) {
	defer os.Unsetenv("APP_ENV")
	defer os.Unsetenv("DB_SSLMODE")
	defer os.Unsetenv("BOT_USERNAME")
	defer viper.Reset()

	os.Setenv("APP_ENV", "development")
	os.Setenv("DB_SSLMODE", "  DISABLE  ")
	os.Setenv("BOT_USERNAME", "@UoG_Confessions_Bot")

	c, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "disable", c.DBSSLMode)
	assert.Equal(t, "uog_confessions_bot", c.BotUsername)
	assert.Equal(t, 3, c.PublishMaxAttempts)
	assert.Equal(t, 300, c.SubmissionCooldownSeconds)
	assert.Equal(t, 5, c.ThreadMaxTopLevel)
}
