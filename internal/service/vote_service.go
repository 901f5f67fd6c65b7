package service

import (
	"context"

	"confessional/internal/cache"
	"confessional/internal/models"
	"confessional/internal/repository"
)

type VoteService struct {
	votes  repository.VoteRepository
	blocks repository.BlockRepository
	markup MarkupRefresher
}

func NewVoteService(votes repository.VoteRepository, blocks repository.BlockRepository, markup MarkupRefresher) *VoteService {
	return &VoteService{votes: votes, blocks: blocks, markup: markup}
}

// Cast applies the tri-state policy for voterID on target.
func (s *VoteService) Cast(ctx context.Context, target models.VoteTarget, voterID int64, value models.VoteValue) (*models.VoteResult, error) {
	if err := ensureNotBlocked(ctx, s.blocks, voterID); err != nil {
		return nil, err
	}
	result, err := s.votes.Cast(ctx, target, voterID, value)
	if err != nil {
		return nil, err
	}
	cache.InvalidateThread(ctx, target.ConfessionID.String())
	cache.InvalidateProfile(ctx, result.AuthorID)
	if target.IsConfession() && s.markup != nil {
		s.markup.RefreshPublishedMarkup(ctx, target.ConfessionID)
	}
	return result, nil
}

// Current returns the voter's vote on target.
func (s *VoteService) Current(ctx context.Context, target models.VoteTarget, voterID int64) (models.VoteValue, error) {
	return s.votes.Get(ctx, target, voterID)
}
