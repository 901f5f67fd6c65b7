package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// VoteValue is the tri-state vote a voter holds on a target. An absent row is
// VoteNone.
type VoteValue int8

const (
	VoteNone    VoteValue = 0
	VoteLike    VoteValue = 1
	VoteDislike VoteValue = -1
)

// ParseVoteValue accepts "like" and "dislike".
func ParseVoteValue(s string) (VoteValue, error) {
	switch s {
	case "like":
		return VoteLike, nil
	case "dislike":
		return VoteDislike, nil
	default:
		return VoteNone, NewValidationError(fmt.Sprintf("unknown vote type %q", s))
	}
}

func (v VoteValue) String() string {
	switch v {
	case VoteLike:
		return "like"
	case VoteDislike:
		return "dislike"
	default:
		return "none"
	}
}

// Opposite returns the other non-empty value.
func (v VoteValue) Opposite() VoteValue {
	return -v
}

// VoteOutcome names the policy branch a cast took.
type VoteOutcome string

const (
	VoteOutcomeCast   VoteOutcome = "cast"
	VoteOutcomeRevoke VoteOutcome = "revoke"
	VoteOutcomeSwitch VoteOutcome = "switch"
)

// VoteTransition is the result of applying the vote policy to a prior state.
type VoteTransition struct {
	Outcome       VoteOutcome
	Next          VoteValue
	LikesDelta    int
	DislikesDelta int
	KarmaDelta    int
}

func bucketDelta(v VoteValue, n int) (likes, dislikes int) {
	if v == VoteLike {
		return n, 0
	}
	return 0, n
}

// ApplyVote is the tri-state policy: a new vote casts, repeating it revokes,
// and the opposite vote switches with a double karma swing.
func ApplyVote(prior, requested VoteValue) (VoteTransition, error) {
	if requested != VoteLike && requested != VoteDislike {
		return VoteTransition{}, NewValidationError("vote must be like or dislike")
	}

	switch prior {
	case VoteNone:
		likes, dislikes := bucketDelta(requested, 1)
		return VoteTransition{
			Outcome:       VoteOutcomeCast,
			Next:          requested,
			LikesDelta:    likes,
			DislikesDelta: dislikes,
			KarmaDelta:    int(requested),
		}, nil
	case requested:
		likes, dislikes := bucketDelta(requested, -1)
		return VoteTransition{
			Outcome:       VoteOutcomeRevoke,
			Next:          VoteNone,
			LikesDelta:    likes,
			DislikesDelta: dislikes,
			KarmaDelta:    -int(requested),
		}, nil
	case requested.Opposite():
		oldLikes, oldDislikes := bucketDelta(prior, -1)
		newLikes, newDislikes := bucketDelta(requested, 1)
		return VoteTransition{
			Outcome:       VoteOutcomeSwitch,
			Next:          requested,
			LikesDelta:    oldLikes + newLikes,
			DislikesDelta: oldDislikes + newDislikes,
			KarmaDelta:    2 * int(requested),
		}, nil
	default:
		return VoteTransition{}, NewInternalError(fmt.Errorf("corrupt prior vote value %d", prior))
	}
}

// ConfessionTarget is the CommentIndex addressing the confession itself.
const ConfessionTarget = -1

// VoteTarget addresses a confession (CommentIndex -1) or one of its comments.
type VoteTarget struct {
	ConfessionID uuid.UUID
	CommentIndex int
}

// IsConfession reports whether the target is the confession itself.
func (t VoteTarget) IsConfession() bool {
	return t.CommentIndex == ConfessionTarget
}

// Label is used for metrics and logs.
func (t VoteTarget) Label() string {
	if t.IsConfession() {
		return "confession"
	}
	return "comment"
}

// Vote is one voter's current vote on a target.
type Vote struct {
	ID           uint      `gorm:"primaryKey" json:"-"`
	ConfessionID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_votes_target_voter" json:"confession_id"`
	CommentIndex int       `gorm:"not null;uniqueIndex:idx_votes_target_voter" json:"comment_index"`
	VoterID      int64     `gorm:"not null;uniqueIndex:idx_votes_target_voter" json:"-"`
	Value        VoteValue `gorm:"type:smallint;not null" json:"value"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// VoteResult is what a cast reports back.
type VoteResult struct {
	Likes      int         `json:"likes"`
	Dislikes   int         `json:"dislikes"`
	KarmaDelta int         `json:"karma_delta"`
	Outcome    VoteOutcome `json:"outcome"`
	AuthorID   int64       `json:"-"`
}
