package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"confessional/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViewOwnCreatesProfile(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()

	view, err := h.profiles.ViewOwn(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultNickname, view.Profile.Nickname)
	assert.Equal(t, models.DefaultEmoji, view.Profile.Emoji)
	assert.Equal(t, "0", view.Aura)
	assert.Empty(t, view.NicknameCooldown)
	require.NotNil(t, view.Profile.PersonaToken)
	assert.True(t, strings.HasSuffix(view.Link, *view.Profile.PersonaToken))
	assert.Equal(t, h.links.PersonaURL(42), view.Link)
}

func TestEditNicknameCooldown(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()

	require.NoError(t, h.profiles.EditNickname(ctx, 42, "  Moon Child "))
	view, err := h.profiles.ViewOwn(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "Moon Child", view.Profile.Nickname)
	assert.Equal(t, "30 days", view.NicknameCooldown)

	h.clock.Advance(24 * time.Hour)
	err = h.profiles.EditNickname(ctx, 42, "Sun Child")
	assertAppErrorCode(t, err, models.CodeRateLimited)
	assert.Contains(t, err.Error(), "29 days")

	err = h.profiles.EditNickname(ctx, 43, "no!")
	assertAppErrorCode(t, err, models.CodeValidation)

	h.clock.Advance(29 * 24 * time.Hour)
	require.NoError(t, h.profiles.EditNickname(ctx, 42, "Sun Child"))
}

func TestPublicProfileHonorsPrivacy(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()

	require.NoError(t, h.profiles.EditBio(ctx, 42, "I collect old maps"))
	require.NoError(t, h.profiles.SetGender(ctx, 42, "Female"))
	require.NoError(t, h.profiles.SetEmoji(ctx, 42, "👽"))

	err := h.profiles.SetEmoji(ctx, 42, "🍕")
	assertAppErrorCode(t, err, models.CodeValidation)
	err = h.profiles.SetGender(ctx, 42, "Robot")
	assertAppErrorCode(t, err, models.CodeValidation)

	persona, err := h.profiles.Persona(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "👽", persona.Emoji)

	// both fields start private
	public, err := h.profiles.ViewPublic(ctx, persona.Token)
	require.NoError(t, err)
	assert.Empty(t, public.Bio)
	assert.Empty(t, public.Gender)
	assert.Equal(t, "👽", public.Emoji)

	visible, err := h.profiles.TogglePrivacy(ctx, 42, models.PrivacyBio)
	require.NoError(t, err)
	assert.True(t, visible)

	public, err = h.profiles.ViewPublic(ctx, persona.Token)
	require.NoError(t, err)
	assert.Equal(t, "I collect old maps", public.Bio)
	assert.Empty(t, public.Gender)

	visible, err = h.profiles.TogglePrivacy(ctx, 42, models.PrivacyBio)
	require.NoError(t, err)
	assert.False(t, visible)

	_, err = h.profiles.TogglePrivacy(ctx, 42, models.PrivacyField("nickname"))
	assertAppErrorCode(t, err, models.CodeValidation)

	_, err = h.profiles.ViewPublic(ctx, "persona_notarealtoken")
	assertAppErrorCode(t, err, models.CodeNotFound)
}

func TestAgreeToRules(t *testing.T) {
	h := newHarness(t, "")
	ctx := context.Background()

	require.NoError(t, h.profiles.AgreeToRules(ctx, 42))
	profile, err := h.profileRepo.GetOrCreate(ctx, 42)
	require.NoError(t, err)
	assert.True(t, profile.AgreedToRules)
}
