package repository

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"testing"

	"confessional/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{"record not found", gorm.ErrRecordNotFound, models.CodeNotFound},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, models.CodeTransientStore},
		{"deadlock", fmt.Errorf("exec: %w", &pgconn.PgError{Code: "40P01"}), models.CodeTransientStore},
		{"lock not available", &pgconn.PgError{Code: "55P03"}, models.CodeTransientStore},
		{"connection exception", &pgconn.PgError{Code: "08006"}, models.CodeTransientStore},
		{"sqlite busy", errors.New("database is locked (SQLITE_BUSY)"), models.CodeTransientStore},
		{"deadline", context.DeadlineExceeded, models.CodeTransientStore},
		{"unique violation", &pgconn.PgError{Code: "23505"}, models.CodeInternal},
		{"app error passes through", models.NewSelfVoteError(), models.CodeSelfVote},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, models.ErrorCode(classify(tt.err, "Confession", 1)))
		})
	}
	assert.NoError(t, classify(nil, "Confession", 1))
}

func TestIsUniqueConstraintError(t *testing.T) {
	assert.True(t, isUniqueConstraintError(&pgconn.PgError{Code: "23505"}))
	assert.True(t, isUniqueConstraintError(errors.New("UNIQUE constraint failed: moderation_records.confession_id")))
	assert.False(t, isUniqueConstraintError(&pgconn.PgError{Code: "40001"}))
	assert.False(t, isUniqueConstraintError(nil))
}

func TestConfessionRepository_ApproveSerializationFailureIsTransient(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewConfessionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "counters"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "counters" SET`)).
		WithArgs(1, models.ConfessionSequence).
		WillReturnError(&pgconn.PgError{Code: "40001", Message: "could not serialize access"})
	mock.ExpectRollback()

	_, err := repo.Approve(context.Background(), uuid.New(), 1, fixedNow)
	assert.Equal(t, models.CodeTransientStore, models.ErrorCode(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestConfessionRepository_AppendCommentLocksConfessionRow(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewConfessionRepository(db)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "confessions" WHERE id = $1 ORDER BY "confessions"."id" LIMIT $2 FOR UPDATE`)).
		WithArgs(id.String(), 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "status", "comment_count"}).AddRow(id.String(), "pending", 0))
	mock.ExpectRollback()

	_, err := repo.AppendComment(context.Background(), id, &models.Comment{AuthorID: 2, Text: "hello", ParentIndex: -1})
	assert.Equal(t, models.CodeNotApproved, models.ErrorCode(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}
