package database

import (
	"context"
	"strings"
	"testing"

	"confessional/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestConfigurePool(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	cfg := &config.Config{
		DBMaxOpenConns:           10,
		DBMaxIdleConns:           5,
		DBConnMaxLifetimeMinutes: 15,
	}
	require.NoError(t, configurePool(db, cfg))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	assert.Equal(t, 10, sqlDB.Stats().MaxOpenConnections)
}

func TestEmbeddedMigrationsRegistered(t *testing.T) {
	all := GetMigrations()
	require.NotEmpty(t, all)
	assert.Equal(t, 1, all[0].Version)
	assert.Equal(t, "init", all[0].Name)
	assert.Contains(t, all[0].UpScript, "CREATE TABLE IF NOT EXISTS confessions")
	assert.Contains(t, all[0].DownScript, "DROP TABLE IF EXISTS confessions")
	assert.Equal(t, "000001_init", all[0].String())

	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].Version, all[i].Version)
	}
	assert.NotNil(t, GetMigrationByVersion(1))
	assert.Nil(t, GetMigrationByVersion(999999))
}

func TestValidateAppliedVersions(t *testing.T) {
	registered := []Migration{{Version: 1, Name: "init"}, {Version: 2, Name: "indexes"}}

	assert.NoError(t, validateAppliedVersions(nil, registered))
	assert.NoError(t, validateAppliedVersions([]int{1, 2}, registered))

	err := validateAppliedVersions([]int{1, 7, 3}, registered)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "000003, 000007"))
}

func TestSchemaPolicy(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.Config
		wantSQL  bool
		wantAuto bool
		wantErr  bool
	}{
		{"hybrid dev", config.Config{Env: "development", DBSchemaMode: "hybrid"}, true, true, false},
		{"hybrid prod", config.Config{Env: "production", DBSchemaMode: "hybrid"}, true, false, false},
		{"empty defaults to hybrid", config.Config{Env: "test"}, true, true, false},
		{"sql only", config.Config{Env: "development", DBSchemaMode: "sql"}, true, false, false},
		{"auto dev", config.Config{Env: "development", DBSchemaMode: "auto"}, false, true, false},
		{"auto prod refused", config.Config{Env: "production", DBSchemaMode: "auto"}, false, false, true},
		{"auto prod allowed", config.Config{Env: "production", DBSchemaMode: "auto", DBAutoMigrateAllowDestructive: true}, false, true, false},
		{"unknown", config.Config{Env: "development", DBSchemaMode: "yolo"}, false, false, true},
		{"unnormalized sql", config.Config{Env: "development", DBSchemaMode: " SQL "}, true, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runSQL, runAuto, err := schemaPolicy(&tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantSQL, runSQL)
			assert.Equal(t, tt.wantAuto, runAuto)
		})
	}
}

func TestNormalizedSchemaMode(t *testing.T) {
	assert.Equal(t, SchemaModeHybrid, normalizedSchemaMode(&config.Config{}))
	assert.Equal(t, SchemaModeSQL, normalizedSchemaMode(&config.Config{DBSchemaMode: " Sql"}))
	assert.Equal(t, SchemaModeAuto, normalizedSchemaMode(&config.Config{DBSchemaMode: "auto"}))
}

func TestAutoMigrateCreatesLedgerTables(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, runAutoMigrate(db))

	for _, table := range []string{"confessions", "comments", "votes", "counters", "user_profiles", "drafts"} {
		assert.True(t, db.Migrator().HasTable(table), table)
	}
	assert.True(t, db.Migrator().HasIndex("comments", "idx_comments_position"))
	assert.True(t, db.Migrator().HasIndex("votes", "idx_votes_target_voter"))
}

func TestMigratorUpAndDown(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	set := []Migration{
		{Version: 1, Name: "widgets", UpScript: "CREATE TABLE widgets (id INTEGER PRIMARY KEY);", DownScript: "DROP TABLE widgets;"},
		{Version: 2, Name: "gadgets", UpScript: "CREATE TABLE gadgets (id INTEGER PRIMARY KEY);", DownScript: "DROP TABLE gadgets;"},
	}
	m := NewMigrator(db, set)
	ctx := context.Background()

	applied, err := m.Applied(ctx)
	require.NoError(t, err)
	assert.Empty(t, applied)

	n, err := m.Up(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.True(t, db.Migrator().HasTable("gadgets"))

	n, err = m.Up(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, m.Down(ctx, 2))
	assert.False(t, db.Migrator().HasTable("gadgets"))
	pending, err := m.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "000002_gadgets", pending[0].String())

	assert.Error(t, m.Down(ctx, 2))
	assert.Error(t, m.Down(ctx, 42))

	// A ledger row from a newer build blocks Up.
	require.NoError(t, db.Create(&AppliedMigration{Version: 9, Name: "future"}).Error)
	_, err = m.Up(ctx)
	assert.ErrorContains(t, err, "000009")
}
