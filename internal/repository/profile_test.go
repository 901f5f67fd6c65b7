package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"confessional/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileRepository_GetOrCreateDefaults(t *testing.T) {
	repo := NewProfileRepository(setupTestDB(t))
	ctx := context.Background()

	p, err := repo.GetOrCreate(ctx, 7001310702)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultNickname, p.Nickname)
	assert.Equal(t, models.DefaultEmoji, p.Emoji)
	assert.Equal(t, models.DefaultBio, p.Bio)
	assert.Equal(t, models.DefaultGender, p.Gender)
	assert.False(t, p.BioVisible)
	assert.Zero(t, p.AuraPoints)

	again, err := repo.GetOrCreate(ctx, 7001310702)
	require.NoError(t, err)
	assert.Equal(t, p.CreatedAt.Unix(), again.CreatedAt.Unix())
}

func TestProfileRepository_NicknameCooldown(t *testing.T) {
	repo := NewProfileRepository(setupTestDB(t))
	ctx := context.Background()
	cooldown := 30 * 24 * time.Hour

	require.NoError(t, repo.UpdateNickname(ctx, 1, "Night Owl", fixedNow, cooldown))

	err := repo.UpdateNickname(ctx, 1, "Early Bird", fixedNow.Add(24*time.Hour), cooldown)
	assertCode(t, err, models.CodeRateLimited)
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 29*24*time.Hour, appErr.RetryAfter)

	// a non-UTC clock reading must compare the same instant
	later := fixedNow.Add(cooldown).In(time.FixedZone("EET", 2*3600))
	require.NoError(t, repo.UpdateNickname(ctx, 1, "Early Bird", later, cooldown))

	p, err := repo.GetOrCreate(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Early Bird", p.Nickname)
	require.NotNil(t, p.LastNicknameChange)
	assert.Equal(t, time.UTC, p.LastNicknameChange.Location())
}

func TestProfileRepository_ReserveSubmission(t *testing.T) {
	repo := NewProfileRepository(setupTestDB(t))
	ctx := context.Background()
	window := 5 * time.Minute

	require.NoError(t, repo.ReserveSubmission(ctx, 9, fixedNow, window))

	err := repo.ReserveSubmission(ctx, 9, fixedNow.Add(60*time.Second), window)
	assertCode(t, err, models.CodeRateLimited)
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, 240*time.Second, appErr.RetryAfter)

	require.NoError(t, repo.ReserveSubmission(ctx, 9, fixedNow.Add(window), window))
}

func TestProfileRepository_ReleaseSubmission(t *testing.T) {
	repo := NewProfileRepository(setupTestDB(t))
	ctx := context.Background()
	window := 5 * time.Minute

	require.NoError(t, repo.ReserveSubmission(ctx, 9, fixedNow, window))
	require.NoError(t, repo.ReleaseSubmission(ctx, 9, fixedNow, nil))
	profile, err := repo.GetOrCreate(ctx, 9)
	require.NoError(t, err)
	assert.Nil(t, profile.LastSubmissionAt)

	// a release for a reservation that was since replaced changes nothing
	require.NoError(t, repo.ReserveSubmission(ctx, 9, fixedNow, window))
	later := fixedNow.Add(window)
	require.NoError(t, repo.ReserveSubmission(ctx, 9, later, window))
	require.NoError(t, repo.ReleaseSubmission(ctx, 9, fixedNow, nil))
	profile, err = repo.GetOrCreate(ctx, 9)
	require.NoError(t, err)
	require.NotNil(t, profile.LastSubmissionAt)
	assert.True(t, later.Equal(*profile.LastSubmissionAt))
}

func TestProfileRepository_ConcurrentReservationsSingleWinner(t *testing.T) {
	repo := NewProfileRepository(setupTestDB(t))
	ctx := context.Background()
	_, err := repo.GetOrCreate(ctx, 9)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([]error, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = repo.ReserveSubmission(ctx, 9, fixedNow, 5*time.Minute)
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range results {
		if err == nil {
			ok++
		} else {
			assert.Equal(t, models.CodeRateLimited, models.ErrorCode(err))
		}
	}
	assert.Equal(t, 1, ok)
}

func TestProfileRepository_PrivacyAndPersona(t *testing.T) {
	repo := NewProfileRepository(setupTestDB(t))
	ctx := context.Background()

	visible, err := repo.TogglePrivacy(ctx, 3, models.PrivacyBio)
	require.NoError(t, err)
	assert.True(t, visible)
	visible, err = repo.TogglePrivacy(ctx, 3, models.PrivacyBio)
	require.NoError(t, err)
	assert.False(t, visible)

	_, err = repo.TogglePrivacy(ctx, 3, models.PrivacyField("age"))
	assertCode(t, err, models.CodeValidation)

	require.NoError(t, repo.UpdatePersona(ctx, 3, "🦊"))
	require.NoError(t, repo.UpdateBio(ctx, 3, "I like quiet libraries"))
	require.NoError(t, repo.UpdateGender(ctx, 3, "Other"))
	require.NoError(t, repo.SetAgreedToRules(ctx, 3))

	require.NoError(t, repo.EnsurePersonaToken(ctx, 3, "persona_abc"))
	require.NoError(t, repo.EnsurePersonaToken(ctx, 3, "persona_other"))

	p, err := repo.GetByPersonaToken(ctx, "persona_abc")
	require.NoError(t, err)
	assert.Equal(t, int64(3), p.ID)
	assert.Equal(t, "🦊", p.Emoji)
	assert.Equal(t, "Other", p.Gender)
	assert.True(t, p.AgreedToRules)

	_, err = repo.GetByPersonaToken(ctx, "persona_other")
	assertCode(t, err, models.CodeNotFound)
}
