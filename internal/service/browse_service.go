package service

import (
	"context"

	"confessional/internal/cache"
	"confessional/internal/models"
	"confessional/internal/repository"
)

const latestLimit = 5

// BrowseService only ever returns approved confessions.
type BrowseService struct {
	confessions repository.ConfessionRepository
}

func NewBrowseService(confessions repository.ConfessionRepository) *BrowseService {
	return &BrowseService{confessions: confessions}
}

func (s *BrowseService) FindByNumber(ctx context.Context, number int64) (*models.Confession, error) {
	if number < 1 {
		return nil, models.NewValidationError("Confession number must be positive")
	}
	return s.confessions.FindByNumber(ctx, number)
}

func (s *BrowseService) Latest(ctx context.Context) ([]models.Confession, error) {
	var latest []models.Confession
	err := cache.Aside(ctx, cache.LatestKey, &latest, cache.LatestTTL, func() error {
		var err error
		latest, err = s.confessions.Latest(ctx, latestLimit)
		return err
	})
	return latest, err
}

func (s *BrowseService) Random(ctx context.Context) (*models.Confession, error) {
	return s.confessions.Random(ctx)
}
