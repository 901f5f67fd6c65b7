// Package validation normalizes and checks user-supplied text before it
// reaches the services.
package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"confessional/internal/models"
)

var nicknameRegex = regexp.MustCompile(`^[a-zA-Z0-9 ]+$`)

func between(field, text string, minLen, maxLen int) error {
	n := utf8.RuneCountInString(text)
	if n < minLen {
		return models.NewValidationError(fmt.Sprintf("%s is too short (minimum %d characters)", field, minLen))
	}
	if n > maxLen {
		return models.NewValidationError(fmt.Sprintf("%s is too long (maximum %d characters)", field, maxLen))
	}
	return nil
}

// ConfessionText trims text and checks its length. A media-only confession
// stores the image placeholder instead.
func ConfessionText(text string, hasMedia bool) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" && hasMedia {
		return models.ImagePlaceholder, nil
	}
	if !hasMedia {
		if err := between("Confession", text, models.MinConfessionLength, models.MaxConfessionLength); err != nil {
			return "", err
		}
		return text, nil
	}
	if err := between("Caption", text, 1, models.MaxConfessionLength); err != nil {
		return "", err
	}
	return text, nil
}

// CommentText is ConfessionText for comments.
func CommentText(text string, hasMedia bool) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" && hasMedia {
		return models.ImagePlaceholder, nil
	}
	minLen := models.MinCommentLength
	if hasMedia {
		minLen = 1
	}
	if err := between("Comment", text, minLen, models.MaxCommentLength); err != nil {
		return "", err
	}
	return text, nil
}

// Tags requires at least one known tag and drops duplicates, keeping order.
func Tags(tags []string, known func(string) bool) ([]string, error) {
	if len(tags) == 0 {
		return nil, models.NewValidationError("Select at least one tag")
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if !known(tag) {
			return nil, models.NewValidationError(fmt.Sprintf("Unknown tag %q", tag))
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out, nil
}

func Nickname(nickname string) (string, error) {
	nickname = strings.TrimSpace(nickname)
	if err := between("Nickname", nickname, models.MinNicknameLength, models.MaxNicknameLength); err != nil {
		return "", err
	}
	if !nicknameRegex.MatchString(nickname) {
		return "", models.NewValidationError("Nickname may only contain letters, numbers and spaces")
	}
	return nickname, nil
}

func Bio(bio string) (string, error) {
	bio = strings.TrimSpace(bio)
	if err := between("Bio", bio, models.MinBioLength, models.MaxBioLength); err != nil {
		return "", err
	}
	return bio, nil
}

func ReportReason(reason string) (string, error) {
	reason = strings.TrimSpace(reason)
	if err := between("Reason", reason, models.MinReportReasonLength, models.MaxReportReasonLength); err != nil {
		return "", err
	}
	return reason, nil
}

func ChatMessage(message string) (string, error) {
	message = strings.TrimSpace(message)
	if err := between("Message", message, 1, models.MaxChatMessageLength); err != nil {
		return "", err
	}
	return message, nil
}
