package repository

import (
	"context"
	"errors"

	"confessional/internal/models"
	"confessional/internal/observability"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// VoteRepository is the only writer of vote rows, like/dislike counters and aura.
type VoteRepository interface {
	Cast(ctx context.Context, target models.VoteTarget, voterID int64, requested models.VoteValue) (*models.VoteResult, error)
	Get(ctx context.Context, target models.VoteTarget, voterID int64) (models.VoteValue, error)
}

type voteRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewVoteRepository creates a new VoteRepository
func NewVoteRepository(db *gorm.DB) VoteRepository {
	return &voteRepository{db: db, log: observability.NewRepoLogger("votes")}
}

type counts struct {
	Likes    int
	Dislikes int
}

// Cast applies the tri-state vote policy to one target. The target row stays
// locked for the whole transaction, so concurrent voters on the same target run
// one after another and every delta is computed from the committed prior vote.
func (r *voteRepository) Cast(
	ctx context.Context, target models.VoteTarget, voterID int64, requested models.VoteValue,
) (*models.VoteResult, error) {
	ctx, done := observability.TraceQuery(ctx, "cast", "votes")
	defer done()

	var result models.VoteResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var confession models.Confession
		if err := tx.Clauses(forUpdate).
			Where("id = ? AND status = ?", target.ConfessionID, models.ConfessionStatusApproved).
			First(&confession).Error; err != nil {
			return classify(err, "Confession", target.ConfessionID)
		}

		authorID := confession.AuthorID
		table := "confessions"
		var rowID interface{} = confession.ID
		if !target.IsConfession() {
			var comment models.Comment
			if err := tx.Clauses(forUpdate).
				Where("confession_id = ? AND idx = ?", target.ConfessionID, target.CommentIndex).
				First(&comment).Error; err != nil {
				return classify(err, "Comment", target.CommentIndex)
			}
			authorID = comment.AuthorID
			table = "comments"
			rowID = comment.ID
		}

		if voterID == authorID {
			return models.NewSelfVoteError()
		}

		var prior models.Vote
		if err := tx.Where("confession_id = ? AND comment_index = ? AND voter_id = ?",
			target.ConfessionID, target.CommentIndex, voterID).
			Limit(1).Find(&prior).Error; err != nil {
			return err
		}

		step, err := models.ApplyVote(prior.Value, requested)
		if err != nil {
			return err
		}

		switch {
		case step.Next == models.VoteNone:
			if err := tx.Delete(&models.Vote{}, prior.ID).Error; err != nil {
				return err
			}
		case prior.ID == 0:
			row := models.Vote{
				ConfessionID: target.ConfessionID,
				CommentIndex: target.CommentIndex,
				VoterID:      voterID,
				Value:        step.Next,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		default:
			if err := tx.Model(&models.Vote{}).Where("id = ?", prior.ID).
				Update("value", step.Next).Error; err != nil {
				return err
			}
		}

		if err := tx.Table(table).Where("id = ?", rowID).UpdateColumns(map[string]interface{}{
			"likes":    gorm.Expr("likes + ?", step.LikesDelta),
			"dislikes": gorm.Expr("dislikes + ?", step.DislikesDelta),
		}).Error; err != nil {
			return err
		}

		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(models.NewDefaultProfile(authorID)).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.UserProfile{}).Where("id = ?", authorID).
			UpdateColumn("aura_points", gorm.Expr("aura_points + ?", step.KarmaDelta)).Error; err != nil {
			return err
		}

		var after counts
		if err := tx.Table(table).Select("likes, dislikes").
			Where("id = ?", rowID).
			Take(&after).Error; err != nil {
			return err
		}

		result = models.VoteResult{
			Likes:      after.Likes,
			Dislikes:   after.Dislikes,
			KarmaDelta: step.KarmaDelta,
			Outcome:    step.Outcome,
			AuthorID:   authorID,
		}
		return nil
	})
	if err != nil {
		var appErr *models.AppError
		if !errors.As(err, &appErr) {
			r.log.LogError(ctx, err, "cast")
		}
		return nil, classify(err, "Confession", target.ConfessionID)
	}

	observability.VotesTotal.WithLabelValues(target.Label(), string(result.Outcome)).Inc()
	r.log.LogUpdate(ctx, map[string]interface{}{
		"confession_id": target.ConfessionID,
		"comment_index": target.CommentIndex,
		"outcome":       result.Outcome,
	})
	return &result, nil
}

// Get returns the voter's current vote on target, VoteNone when absent.
func (r *voteRepository) Get(ctx context.Context, target models.VoteTarget, voterID int64) (models.VoteValue, error) {
	var vote models.Vote
	err := r.db.WithContext(ctx).
		Where("confession_id = ? AND comment_index = ? AND voter_id = ?",
			target.ConfessionID, target.CommentIndex, voterID).
		Limit(1).Find(&vote).Error
	if err != nil {
		return models.VoteNone, classify(err, "Vote", target.ConfessionID)
	}
	return vote.Value, nil
}
