// Package service holds the use cases of the confession service: submission,
// moderation, comments, votes, profiles, drafts, reports and browsing.
package service

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"confessional/internal/models"
	"confessional/internal/observability"
	"confessional/internal/repository"

	"github.com/google/uuid"
)

// Notifier is the best-effort notification boundary. Implementations swallow
// delivery failures.
type Notifier interface {
	Notify(ctx context.Context, userID int64, text, link string)
	Alert(ctx context.Context, adminIDs []int64, text string)
}

// MarkupRefresher mirrors vote and comment counts onto the published copy.
type MarkupRefresher interface {
	RefreshPublishedMarkup(ctx context.Context, confessionID uuid.UUID)
}

// ThreadLinker builds thread deep links.
type ThreadLinker interface {
	ThreadURL(confessionID uuid.UUID) string
}

// Admins is the configured operator id list.
type Admins []int64

func (a Admins) Contains(userID int64) bool {
	for _, id := range a {
		if id == userID {
			return true
		}
	}
	return false
}

func ensureNotBlocked(ctx context.Context, blocks repository.BlockRepository, userID int64) error {
	if blocks == nil {
		return nil
	}
	blocked, err := blocks.IsBlocked(ctx, userID)
	if err != nil {
		return err
	}
	if blocked {
		return models.NewForbiddenError("You are blocked from using this bot")
	}
	return nil
}

// preview shortens text for notifications.
func preview(text string, max int) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= max {
		return text
	}
	runes := []rune(text)
	return string(runes[:max]) + "…"
}

func numberOf(c *models.Confession) int64 {
	if c == nil || c.Number == nil {
		return 0
	}
	return *c.Number
}

func logWarn(ctx context.Context, msg string, err error, attrs ...any) {
	attrs = append(attrs, slog.String("error", err.Error()))
	observability.GlobalLogger.WarnContext(ctx, msg, attrs...)
}

func systemNow() time.Time { return time.Now().UTC() }
