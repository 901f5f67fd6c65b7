package service

import (
	"context"
	"errors"

	"confessional/internal/cache"
	"confessional/internal/catalog"
	"confessional/internal/cooldown"
	"confessional/internal/deeplink"
	"confessional/internal/models"
	"confessional/internal/repository"
	"confessional/internal/validation"

	"github.com/dustin/go-humanize"
)

// OwnProfile is the owner's view, with cooldown state and the share link.
type OwnProfile struct {
	Profile          *models.UserProfile `json:"profile"`
	Link             string              `json:"link"`
	Aura             string              `json:"aura"`
	NicknameCooldown string              `json:"nickname_cooldown,omitempty"`
}

// Persona is the cached display identity of a user.
type Persona struct {
	Nickname string `json:"nickname"`
	Emoji    string `json:"emoji"`
	Token    string `json:"token"`
}

type ProfileService struct {
	profiles repository.ProfileRepository
	guard    *cooldown.Guard
	links    *deeplink.Resolver
	catalog  *catalog.Catalog
}

func NewProfileService(profiles repository.ProfileRepository, guard *cooldown.Guard, links *deeplink.Resolver, cat *catalog.Catalog) *ProfileService {
	return &ProfileService{profiles: profiles, guard: guard, links: links, catalog: cat}
}

// load creates the profile on first contact and persists its persona token.
func (s *ProfileService) load(ctx context.Context, userID int64) (*models.UserProfile, error) {
	profile, err := s.profiles.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	if profile.PersonaToken == nil {
		token := s.links.PersonaToken(userID)
		if err := s.profiles.EnsurePersonaToken(ctx, userID, token); err != nil {
			return nil, err
		}
		profile.PersonaToken = &token
	}
	return profile, nil
}

func (s *ProfileService) ViewOwn(ctx context.Context, userID int64) (*OwnProfile, error) {
	profile, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	view := &OwnProfile{
		Profile: profile,
		Link:    s.links.PersonaURL(userID),
		Aura:    humanize.Comma(int64(profile.AuraPoints)),
	}
	if left := cooldown.Remaining(profile.LastNicknameChange, s.guard.NicknameWindow(), s.guard.Now()); left > 0 {
		view.NicknameCooldown = cooldown.Humanize(left)
	}
	return view, nil
}

// ViewPublic resolves a persona token into the profile others may see.
func (s *ProfileService) ViewPublic(ctx context.Context, token string) (*models.PublicProfile, error) {
	profile, err := s.links.ResolvePersona(ctx, token)
	if err != nil {
		return nil, err
	}
	view := profile.Public(token)
	return &view, nil
}

// Persona is the label source for thread views.
func (s *ProfileService) Persona(ctx context.Context, userID int64) (*Persona, error) {
	var persona Persona
	err := cache.Aside(ctx, cache.ProfileKey(userID), &persona, cache.ProfileTTL, func() error {
		profile, err := s.load(ctx, userID)
		if err != nil {
			return err
		}
		persona = Persona{Nickname: profile.Nickname, Emoji: profile.Emoji, Token: *profile.PersonaToken}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &persona, nil
}

func (s *ProfileService) EditNickname(ctx context.Context, userID int64, nickname string) error {
	nickname, err := validation.Nickname(nickname)
	if err != nil {
		return err
	}
	profile, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	now := s.guard.Now()
	if err := s.guard.CheckNickname(profile, now); err != nil {
		return err
	}
	err = s.profiles.UpdateNickname(ctx, userID, nickname, now, s.guard.NicknameWindow())
	var appErr *models.AppError
	if errors.As(err, &appErr) && appErr.Code == models.CodeRateLimited {
		return cooldown.NicknameError(appErr.RetryAfter)
	}
	if err != nil {
		return err
	}
	cache.InvalidateProfile(ctx, userID)
	cache.BumpPersonaVersion(ctx)
	return nil
}

// CheckNicknameCooldown lets a nickname draft fail before the user types.
func (s *ProfileService) CheckNicknameCooldown(ctx context.Context, userID int64) error {
	profile, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	return s.guard.CheckNickname(profile, s.guard.Now())
}

func (s *ProfileService) EditBio(ctx context.Context, userID int64, bio string) error {
	bio, err := validation.Bio(bio)
	if err != nil {
		return err
	}
	if _, err := s.load(ctx, userID); err != nil {
		return err
	}
	return s.profiles.UpdateBio(ctx, userID, bio)
}

func (s *ProfileService) SetEmoji(ctx context.Context, userID int64, emoji string) error {
	if !s.catalog.IsEmoji(emoji) {
		return models.NewValidationError("Pick one of the listed emoji")
	}
	if _, err := s.load(ctx, userID); err != nil {
		return err
	}
	if err := s.profiles.UpdatePersona(ctx, userID, emoji); err != nil {
		return err
	}
	cache.InvalidateProfile(ctx, userID)
	cache.BumpPersonaVersion(ctx)
	return nil
}

func (s *ProfileService) SetGender(ctx context.Context, userID int64, gender string) error {
	if !s.catalog.IsGender(gender) {
		return models.NewValidationError("Pick one of the listed genders")
	}
	if _, err := s.load(ctx, userID); err != nil {
		return err
	}
	return s.profiles.UpdateGender(ctx, userID, gender)
}

// TogglePrivacy flips bio or gender visibility and returns the new value.
func (s *ProfileService) TogglePrivacy(ctx context.Context, userID int64, field models.PrivacyField) (bool, error) {
	if _, ok := field.Column(); !ok {
		return false, models.NewValidationError("Privacy field must be bio or gender")
	}
	if _, err := s.load(ctx, userID); err != nil {
		return false, err
	}
	return s.profiles.TogglePrivacy(ctx, userID, field)
}

func (s *ProfileService) AgreeToRules(ctx context.Context, userID int64) error {
	if _, err := s.load(ctx, userID); err != nil {
		return err
	}
	return s.profiles.SetAgreedToRules(ctx, userID)
}

// MyKarma returns the aura total and its display form.
func (s *ProfileService) MyKarma(ctx context.Context, userID int64) (int, string, error) {
	aura, err := s.profiles.Aura(ctx, userID)
	if err != nil {
		return 0, "", err
	}
	return aura, humanize.Comma(int64(aura)), nil
}

// ResolveTarget turns a persona token into the target user id.
func (s *ProfileService) ResolveTarget(ctx context.Context, token string) (int64, error) {
	profile, err := s.links.ResolvePersona(ctx, token)
	if err != nil {
		return 0, err
	}
	return profile.ID, nil
}
