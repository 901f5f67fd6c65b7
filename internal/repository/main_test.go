package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"confessional/internal/database"
	"confessional/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB returns an isolated in-memory SQLite database with the full schema.
// A single connection makes concurrent transactions queue like row locks would.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))
	return db
}

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	return gormDB, mock
}

var fixedNow = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func seedPending(t *testing.T, repo ConfessionRepository, authorID int64, text string) *models.Confession {
	t.Helper()
	c := &models.Confession{AuthorID: authorID, Text: text, Tags: []string{"Academics"}}
	require.NoError(t, repo.Create(context.Background(), c))
	return c
}

func seedApproved(t *testing.T, repo ConfessionRepository, authorID int64, text string) *models.Confession {
	t.Helper()
	c := seedPending(t, repo, authorID, text)
	approved, err := repo.Approve(context.Background(), c.ID, 1, fixedNow)
	require.NoError(t, err)
	return approved
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, code, models.ErrorCode(err), "unexpected error: %v", err)
}
