package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"confessional/internal/catalog"
	"confessional/internal/cooldown"
	"confessional/internal/database"
	"confessional/internal/deeplink"
	"confessional/internal/featureflags"
	"confessional/internal/models"
	"confessional/internal/repository"
	"confessional/internal/thread"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(database.PersistentModels()...))
	return db
}

func assertAppErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	require.Equal(t, code, appErr.Code, "unexpected error: %v", err)
}

type sentMessage struct {
	UserID int64
	Text   string
	Link   string
}

// recordingNotifier stores everything it is asked to deliver.
type recordingNotifier struct {
	mu     sync.Mutex
	notes  []sentMessage
	alerts []string
}

func (n *recordingNotifier) Notify(_ context.Context, userID int64, text, link string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, sentMessage{UserID: userID, Text: text, Link: link})
}

func (n *recordingNotifier) Alert(_ context.Context, _ []int64, text string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, text)
}

func (n *recordingNotifier) notesFor(userID int64) []sentMessage {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []sentMessage
	for _, m := range n.notes {
		if m.UserID == userID {
			out = append(out, m)
		}
	}
	return out
}

func (n *recordingNotifier) alertCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.alerts)
}

func (n *recordingNotifier) lastAlert() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.alerts) == 0 {
		return ""
	}
	return n.alerts[len(n.alerts)-1]
}

// fakePublisher fails the first failFirst calls with err.
type fakePublisher struct {
	mu        sync.Mutex
	failFirst int
	err       error
	calls     int
	markups   []string
}

func (p *fakePublisher) Publish(_ context.Context, c *models.Confession) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.calls <= p.failFirst {
		return "", p.err
	}
	return fmt.Sprintf("post-%d", *c.Number), nil
}

func (p *fakePublisher) UpdateMarkup(_ context.Context, ref string, likes, dislikes, comments int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.markups = append(p.markups, fmt.Sprintf("%s:%d/%d/%d", ref, likes, dislikes, comments))
	return nil
}

func (p *fakePublisher) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

const testAdmin int64 = 900

// harness wires every service over one sqlite database.
type harness struct {
	db          *gorm.DB
	clock       *clock
	notifier    *recordingNotifier
	publisher   *fakePublisher
	sleeps      []time.Duration
	links       *deeplink.Resolver
	confessions repository.ConfessionRepository
	profileRepo repository.ProfileRepository
	settings    repository.SettingsRepository

	moderation  *ModerationService
	submissions *SubmissionService
	comments    *CommentService
	votes       *VoteService
	profiles    *ProfileService
	reports     *ReportService
	drafts      *DraftService
	threads     *ThreadService
	browse      *BrowseService
}

func newHarness(t *testing.T, flags string) *harness {
	t.Helper()
	db := setupTestDB(t)
	h := &harness{
		db:        db,
		clock:     &clock{now: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)},
		notifier:  &recordingNotifier{},
		publisher: &fakePublisher{},
	}

	h.confessions = repository.NewConfessionRepository(db)
	h.profileRepo = repository.NewProfileRepository(db)
	h.settings = repository.NewSettingsRepository(db)
	blocks := repository.NewBlockRepository(db)
	cat := catalog.Default()

	personas := h.profileRepo
	h.links = deeplink.NewResolver("test-secret", "confessions_bot", personas)
	guard := cooldown.NewGuard(5*time.Minute, 30*24*time.Hour, h.clock.Now)

	h.moderation = NewModerationService(h.confessions, h.settings, blocks, h.publisher, h.notifier, h.links, ModerationConfig{
		Admins:      Admins{testAdmin},
		MaxAttempts: 3,
		BackoffBase: 2 * time.Second,
	}).WithClock(h.clock.Now).WithSleeper(func(_ context.Context, d time.Duration) error {
		h.sleeps = append(h.sleeps, d)
		return nil
	})
	h.submissions = NewSubmissionService(h.confessions, h.profileRepo, blocks, guard, cat, h.moderation)
	h.comments = NewCommentService(h.confessions, blocks, h.notifier, h.links, h.moderation)
	h.votes = NewVoteService(repository.NewVoteRepository(db), blocks, h.moderation)
	h.profiles = NewProfileService(h.profileRepo, guard, h.links, cat)
	h.reports = NewReportService(repository.NewReportRepository(db), repository.NewChatRequestRepository(db), blocks, h.notifier, featureflags.NewManager(flags), Admins{testAdmin})
	h.reports.now = h.clock.Now
	h.drafts = NewDraftService(DraftDeps{
		Drafts:      repository.NewDraftRepository(db),
		ProfileRepo: h.profileRepo,
		Blocks:      blocks,
		Guard:       guard,
		Catalog:     cat,
		TTL:         30 * time.Minute,
		Submissions: h.submissions,
		Comments:    h.comments,
		Profiles:    h.profiles,
		Reports:     h.reports,
		Moderation:  h.moderation,
	})
	h.threads = NewThreadService(h.confessions, h.profiles, h.links, thread.DefaultBounds)
	h.browse = NewBrowseService(h.confessions)
	return h
}

// submitAndApprove returns an approved, published confession by authorID.
func (h *harness) submitAndApprove(t *testing.T, authorID int64, text string) *models.Confession {
	t.Helper()
	ctx := context.Background()
	submitted, err := h.submissions.Submit(ctx, SubmitInput{AuthorID: authorID, Text: text, Tags: []string{"Campus"}})
	require.NoError(t, err)
	result, err := h.moderation.Approve(ctx, submitted.Confession.ID, testAdmin)
	require.NoError(t, err)
	require.NoError(t, result.PublishErr)
	return result.Confession
}
