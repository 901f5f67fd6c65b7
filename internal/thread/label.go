package thread

import "confessional/internal/models"

// AuthorLabel marks comments written by the confession author.
const AuthorLabel = "Author"

// Label is the display name of a comment author. The confession author is
// always "Author"; everyone else shows their durable persona.
func Label(comment models.Comment, confessionAuthorID int64, persona *models.UserProfile) string {
	if comment.AuthorID == confessionAuthorID {
		return AuthorLabel
	}
	emoji, nickname := models.DefaultEmoji, models.DefaultNickname
	if persona != nil {
		if persona.Emoji != "" {
			emoji = persona.Emoji
		}
		if persona.Nickname != "" {
			nickname = persona.Nickname
		}
	}
	return emoji + " " + nickname
}
