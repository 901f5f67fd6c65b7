// Package deeplink encodes and decodes the opaque start tokens embedded in
// published posts: one shape addresses a confession thread, the other a persona.
package deeplink

import (
	"context"
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"confessional/internal/models"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"
)

const (
	threadPrefix  = "comment_"
	personaPrefix = "persona_"
	personaLength = 20
)

var personaEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// PersonaLookup is the reverse lookup owned by the profile store.
type PersonaLookup interface {
	GetByPersonaToken(ctx context.Context, token string) (*models.UserProfile, error)
}

// TargetKind says what a token addresses.
type TargetKind string

const (
	TargetThread  TargetKind = "thread"
	TargetPersona TargetKind = "persona"
)

// Target is a decoded token.
type Target struct {
	Kind         TargetKind
	ConfessionID uuid.UUID
	Profile      *models.UserProfile
}

// Resolver mints and resolves deep links.
type Resolver struct {
	key      [32]byte
	bot      string
	personas PersonaLookup
}

// NewResolver derives the persona hash key from secret.
func NewResolver(secret, botUsername string, personas PersonaLookup) *Resolver {
	return &Resolver{
		key:      blake2b.Sum256([]byte(secret)),
		bot:      strings.TrimPrefix(botUsername, "@"),
		personas: personas,
	}
}

// ThreadToken addresses a confession thread.
func ThreadToken(confessionID uuid.UUID) string {
	return threadPrefix + hex.EncodeToString(confessionID[:])
}

// ParseThread decodes a thread token. Malformed tokens fail NOT_FOUND.
func ParseThread(token string) (uuid.UUID, error) {
	raw, ok := strings.CutPrefix(token, threadPrefix)
	if !ok || len(raw) != 32 {
		return uuid.Nil, models.NewNotFoundError("Thread", token)
	}
	b, err := hex.DecodeString(raw)
	if err != nil {
		return uuid.Nil, models.NewNotFoundError("Thread", token)
	}
	id, err := uuid.FromBytes(b)
	if err != nil {
		return uuid.Nil, models.NewNotFoundError("Thread", token)
	}
	return id, nil
}

// PersonaToken is a keyed hash of the user id. It can only be reversed through
// the profile store, which persists the token next to the profile.
func (r *Resolver) PersonaToken(userID int64) string {
	h, _ := blake2b.New256(r.key[:])
	_, _ = h.Write([]byte(strconv.FormatInt(userID, 10)))
	encoded := strings.ToLower(personaEncoding.EncodeToString(h.Sum(nil)))
	return personaPrefix + encoded[:personaLength]
}

func validPersonaToken(token string) bool {
	raw, ok := strings.CutPrefix(token, personaPrefix)
	if !ok || len(raw) != personaLength {
		return false
	}
	for _, ch := range raw {
		if (ch < 'a' || ch > 'z') && (ch < '2' || ch > '7') {
			return false
		}
	}
	return true
}

// ResolvePersona finds the profile behind a persona token.
func (r *Resolver) ResolvePersona(ctx context.Context, token string) (*models.UserProfile, error) {
	if !validPersonaToken(token) || r.personas == nil {
		return nil, models.NewNotFoundError("Persona", token)
	}
	profile, err := r.personas.GetByPersonaToken(ctx, token)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return nil, models.NewNotFoundError("Persona", token)
		}
		return nil, err
	}
	return profile, nil
}

// Resolve dispatches on the token prefix.
func (r *Resolver) Resolve(ctx context.Context, token string) (Target, error) {
	switch {
	case strings.HasPrefix(token, threadPrefix):
		id, err := ParseThread(token)
		if err != nil {
			return Target{}, err
		}
		return Target{Kind: TargetThread, ConfessionID: id}, nil
	case strings.HasPrefix(token, personaPrefix):
		profile, err := r.ResolvePersona(ctx, token)
		if err != nil {
			return Target{}, err
		}
		return Target{Kind: TargetPersona, Profile: profile}, nil
	default:
		return Target{}, models.NewNotFoundError("Link", token)
	}
}

// ThreadURL is the bot start link for a confession thread.
func (r *Resolver) ThreadURL(confessionID uuid.UUID) string {
	return r.startURL(ThreadToken(confessionID))
}

// PersonaURL is the bot start link for a user's public profile.
func (r *Resolver) PersonaURL(userID int64) string {
	return r.startURL(r.PersonaToken(userID))
}

// PersonaURLForToken links an already minted persona token.
func (r *Resolver) PersonaURLForToken(token string) string {
	return r.startURL(token)
}

func (r *Resolver) startURL(token string) string {
	return fmt.Sprintf("https://t.me/%s?start=%s", url.PathEscape(r.bot), url.QueryEscape(token))
}
