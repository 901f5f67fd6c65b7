// Package seed fills a development database with demo profiles, approved
// confessions, comments and votes.
package seed

import (
	"context"
	"fmt"
	"log"
	"time"

	"confessional/internal/catalog"
	"confessional/internal/database"
	"confessional/internal/models"
	"confessional/internal/repository"
	"confessional/internal/validation"

	"github.com/brianvoe/gofakeit/v6"
	"gorm.io/gorm"
)

// DemoUserBase offsets demo user ids away from real chat ids.
const DemoUserBase int64 = 9_000_000_000

// Options configuration for the seeder
type Options struct {
	Profiles              int
	Confessions           int
	CommentsPerConfession int
	// Pending confessions are left in the review queue.
	Pending int
	Clean   bool
	// RandSeed makes runs reproducible; 0 picks a random seed.
	RandSeed int64
}

// DefaultOptions is a small board that renders well in the gateway.
func DefaultOptions() Options {
	return Options{Profiles: 12, Confessions: 20, CommentsPerConfession: 4, Pending: 3}
}

// Summary counts what one run created.
type Summary struct {
	Profiles    int
	Confessions int
	Pending     int
	Comments    int
	Votes       int
}

func (s Summary) String() string {
	return fmt.Sprintf("%d profiles, %d approved and %d pending confessions, %d comments, %d votes",
		s.Profiles, s.Confessions, s.Pending, s.Comments, s.Votes)
}

type seeder struct {
	faker       *gofakeit.Faker
	catalog     *catalog.Catalog
	profiles    repository.ProfileRepository
	confessions repository.ConfessionRepository
	votes       repository.VoteRepository
	now         time.Time
}

// Seed writes demo data through the repositories so every invariant the
// services rely on holds for seeded rows too.
func Seed(ctx context.Context, db *gorm.DB, opts Options) (*Summary, error) {
	if opts.Profiles < 2 {
		return nil, fmt.Errorf("seed: at least 2 profiles are required, got %d", opts.Profiles)
	}
	if opts.Clean {
		if err := clearData(db); err != nil {
			return nil, fmt.Errorf("failed to clear data: %w", err)
		}
	}

	s := &seeder{
		faker:       gofakeit.New(opts.RandSeed),
		catalog:     catalog.Default(),
		profiles:    repository.NewProfileRepository(db),
		confessions: repository.NewConfessionRepository(db),
		votes:       repository.NewVoteRepository(db),
		now:         time.Now().UTC(),
	}
	summary := &Summary{}

	users, err := s.createProfiles(ctx, opts.Profiles)
	if err != nil {
		return summary, fmt.Errorf("failed to create profiles: %w", err)
	}
	summary.Profiles = len(users)
	log.Printf("✓ %d profiles created", len(users))

	for i := 0; i < opts.Confessions; i++ {
		confession, err := s.createConfession(ctx, users, true)
		if err != nil {
			return summary, fmt.Errorf("failed to create confession: %w", err)
		}
		summary.Confessions++

		comments, err := s.createComments(ctx, confession, users, opts.CommentsPerConfession)
		if err != nil {
			return summary, fmt.Errorf("failed to create comments: %w", err)
		}
		summary.Comments += comments

		votes, err := s.castVotes(ctx, confession, users, comments)
		if err != nil {
			return summary, fmt.Errorf("failed to cast votes: %w", err)
		}
		summary.Votes += votes
	}
	log.Printf("✓ %d approved confessions created", summary.Confessions)

	for i := 0; i < opts.Pending; i++ {
		if _, err := s.createConfession(ctx, users, false); err != nil {
			return summary, fmt.Errorf("failed to create pending confession: %w", err)
		}
		summary.Pending++
	}

	log.Printf("🎉 Database seeding completed: %s", summary)
	return summary, nil
}

func clearData(db *gorm.DB) error {
	log.Println("🗑️  Clearing existing data...")
	all := database.PersistentModels()
	tx := db.Session(&gorm.Session{AllowGlobalUpdate: true})
	for i := len(all) - 1; i >= 0; i-- {
		if err := tx.Unscoped().Delete(all[i]).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *seeder) createProfiles(ctx context.Context, count int) ([]int64, error) {
	users := make([]int64, 0, count)
	for i := 0; i < count; i++ {
		id := DemoUserBase + int64(i) + 1
		if _, err := s.profiles.GetOrCreate(ctx, id); err != nil {
			return nil, err
		}
		// Backdated so demo users can rename right away.
		if err := s.profiles.UpdateNickname(ctx, id, s.nickname(i), s.now.AddDate(0, 0, -60), 0); err != nil {
			return nil, err
		}
		if err := s.profiles.UpdatePersona(ctx, id, s.faker.RandomString(s.catalog.Emoji)); err != nil {
			return nil, err
		}
		if s.faker.Bool() {
			if bio, err := validation.Bio(s.faker.Sentence(8)); err == nil {
				if err := s.profiles.UpdateBio(ctx, id, bio); err != nil {
					return nil, err
				}
			}
		}
		if err := s.profiles.SetAgreedToRules(ctx, id); err != nil {
			return nil, err
		}
		users = append(users, id)
	}
	return users, nil
}

func (s *seeder) nickname(i int) string {
	if nick, err := validation.Nickname(s.faker.Username()); err == nil {
		return nick
	}
	return fmt.Sprintf("ghost%d", i+1)
}

func (s *seeder) createConfession(ctx context.Context, users []int64, approve bool) (*models.Confession, error) {
	text, err := validation.ConfessionText(s.faker.Paragraph(1, s.faker.IntRange(1, 3), 12, " "), false)
	if err != nil {
		return nil, err
	}
	tags := []string{s.faker.RandomString(s.catalog.Tags)}
	if extra := s.faker.RandomString(s.catalog.Tags); extra != tags[0] && s.faker.Bool() {
		tags = append(tags, extra)
	}

	confession := &models.Confession{
		AuthorID: users[s.faker.IntRange(0, len(users)-1)],
		Text:     text,
		Tags:     tags,
		Status:   models.ConfessionStatusPending,
	}
	if err := s.confessions.Create(ctx, confession); err != nil {
		return nil, err
	}
	if !approve {
		return confession, nil
	}
	return s.confessions.Approve(ctx, confession.ID, models.SystemModeratorID, s.now)
}

// createComments builds a shallow forest: about a third of the comments
// reply to an earlier one.
func (s *seeder) createComments(ctx context.Context, confession *models.Confession, users []int64, count int) (int, error) {
	created := 0
	for i := 0; i < count; i++ {
		parent := models.NoParent
		if created > 0 && s.faker.IntRange(0, 2) == 0 {
			parent = s.faker.IntRange(0, created-1)
		}
		author := users[s.faker.IntRange(0, len(users)-1)]
		if s.faker.IntRange(0, 4) == 0 {
			author = confession.AuthorID
		}
		text, err := validation.CommentText(s.faker.Sentence(s.faker.IntRange(4, 14)), false)
		if err != nil {
			continue
		}
		comment := &models.Comment{
			AuthorID:    author,
			Text:        text,
			ParentIndex: parent,
		}
		if _, err := s.confessions.AppendComment(ctx, confession.ID, comment); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

func (s *seeder) castVotes(ctx context.Context, confession *models.Confession, users []int64, comments int) (int, error) {
	cast := 0
	for _, voter := range users {
		if voter == confession.AuthorID || s.faker.IntRange(0, 2) == 0 {
			continue
		}
		value := models.VoteLike
		if s.faker.IntRange(0, 3) == 0 {
			value = models.VoteDislike
		}
		target := models.VoteTarget{ConfessionID: confession.ID, CommentIndex: models.ConfessionTarget}
		if comments > 0 && s.faker.Bool() {
			target.CommentIndex = s.faker.IntRange(0, comments-1)
		}
		if _, err := s.votes.Cast(ctx, target, voter, value); err != nil {
			if models.ErrorCode(err) == models.CodeSelfVote {
				continue
			}
			return cast, err
		}
		cast++
	}
	return cast, nil
}
