package seed

import (
	"context"
	"testing"

	"confessional/internal/models"
	"confessional/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedCreatesBoard(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	ctx := context.Background()

	summary, err := Seed(ctx, db, Options{Profiles: 5, Confessions: 4, CommentsPerConfession: 3, Pending: 2, RandSeed: 42})
	require.NoError(t, err)
	assert.Equal(t, 5, summary.Profiles)
	assert.Equal(t, 4, summary.Confessions)
	assert.Equal(t, 2, summary.Pending)

	var approved, pending int64
	require.NoError(t, db.Model(&models.Confession{}).Where("status = ?", models.ConfessionStatusApproved).Count(&approved).Error)
	require.NoError(t, db.Model(&models.Confession{}).Where("status = ?", models.ConfessionStatusPending).Count(&pending).Error)
	assert.EqualValues(t, 4, approved)
	assert.EqualValues(t, 2, pending)

	// Approved confessions are numbered 1..n without gaps.
	var numbers []int64
	require.NoError(t, db.Model(&models.Confession{}).Where("number IS NOT NULL").Order("number").Pluck("number", &numbers).Error)
	assert.Equal(t, []int64{1, 2, 3, 4}, numbers)

	var comments int64
	require.NoError(t, db.Model(&models.Comment{}).Count(&comments).Error)
	assert.EqualValues(t, summary.Comments, comments)

	var profiles []models.UserProfile
	require.NoError(t, db.Find(&profiles).Error)
	require.Len(t, profiles, 5)
	for _, p := range profiles {
		assert.Greater(t, p.ID, DemoUserBase)
		assert.NotEqual(t, models.DefaultNickname, p.Nickname)
	}
}

func TestSeedCleanReplacesData(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	ctx := context.Background()

	_, err := Seed(ctx, db, Options{Profiles: 3, Confessions: 2, RandSeed: 1})
	require.NoError(t, err)
	_, err = Seed(ctx, db, Options{Profiles: 3, Confessions: 1, Clean: true, RandSeed: 2})
	require.NoError(t, err)

	var count int64
	require.NoError(t, db.Model(&models.Confession{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestSeedNeedsTwoProfiles(t *testing.T) {
	_, err := Seed(context.Background(), testutil.NewSQLiteDB(t), Options{Profiles: 1})
	require.Error(t, err)
}
