package bootstrap

import (
	"context"
	"fmt"
	"time"

	"confessional/internal/action"
	"confessional/internal/catalog"
	"confessional/internal/config"
	"confessional/internal/cooldown"
	"confessional/internal/deeplink"
	"confessional/internal/featureflags"
	"confessional/internal/notifications"
	"confessional/internal/observability"
	"confessional/internal/publish"
	"confessional/internal/repository"
	"confessional/internal/service"
	"confessional/internal/thread"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Deps override the boundaries. Zero values select the production
// implementations derived from the config.
type Deps struct {
	Publisher publish.Publisher
	Notifier  service.Notifier
	Clock     func() time.Time
	Sleeper   service.Sleeper
	Catalog   *catalog.Catalog
}

// App is the wired service graph.
type App struct {
	Config   *config.Config
	DB       *gorm.DB
	Redis    *redis.Client
	Admins   service.Admins
	Flags    *featureflags.Manager
	Links    *deeplink.Resolver
	Notifier service.Notifier
	Services action.Services
	Router   *action.Router
}

// Build wires repositories, boundaries, services and the action router.
func Build(cfg *config.Config, db *gorm.DB, rdb *redis.Client, deps Deps) (*App, error) {
	if cfg == nil || db == nil {
		return nil, fmt.Errorf("bootstrap: config and database are required")
	}
	admins, err := cfg.AdminIDList()
	if err != nil {
		return nil, err
	}
	clock := deps.Clock
	if clock == nil {
		clock = func() time.Time { return time.Now().UTC() }
	}
	cat := deps.Catalog
	if cat == nil {
		cat = catalog.Default()
	}

	observability.SetDBSystem(db.Dialector.Name())

	confessions := repository.NewConfessionRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	settings := repository.NewSettingsRepository(db)
	blocks := repository.NewBlockRepository(db)

	links := deeplink.NewResolver(cfg.PersonaLinkSecret, cfg.BotUsername, profileRepo)

	notifier := deps.Notifier
	if notifier == nil {
		notifier = notifications.NewNotifier(rdb)
	}
	publisher := deps.Publisher
	if publisher == nil {
		gw, err := publish.NewGatewayPublisher(cfg.PublishGatewayURL, cfg.PublishGatewayToken, cfg.PublishTimeout(), links.ThreadURL)
		if err != nil {
			return nil, err
		}
		publisher = gw
	}

	flags := featureflags.NewManager(cfg.FeatureFlags)
	guard := cooldown.NewGuard(cfg.SubmissionCooldown(), cfg.NicknameCooldown(), clock)

	moderation := service.NewModerationService(confessions, settings, blocks, publisher, notifier, links, service.ModerationConfig{
		Admins:      service.Admins(admins),
		MaxAttempts: cfg.PublishMaxAttempts,
		BackoffBase: cfg.PublishBackoffBase(),
	}).WithClock(clock)
	if deps.Sleeper != nil {
		moderation.WithSleeper(deps.Sleeper)
	}

	submissions := service.NewSubmissionService(confessions, profileRepo, blocks, guard, cat, moderation)
	comments := service.NewCommentService(confessions, blocks, notifier, links, moderation)
	votes := service.NewVoteService(repository.NewVoteRepository(db), blocks, moderation)
	profiles := service.NewProfileService(profileRepo, guard, links, cat)
	reports := service.NewReportService(
		repository.NewReportRepository(db),
		repository.NewChatRequestRepository(db),
		blocks, notifier, flags, service.Admins(admins),
	).WithClock(clock)
	drafts := service.NewDraftService(service.DraftDeps{
		Drafts:      repository.NewDraftRepository(db),
		ProfileRepo: profileRepo,
		Blocks:      blocks,
		Guard:       guard,
		Catalog:     cat,
		TTL:         cfg.DraftTTL(),
		Submissions: submissions,
		Comments:    comments,
		Profiles:    profiles,
		Reports:     reports,
		Moderation:  moderation,
	})
	threads := service.NewThreadService(confessions, profiles, links, thread.Bounds{
		MaxTopLevel: cfg.ThreadMaxTopLevel,
		MaxReplies:  cfg.ThreadMaxReplies,
	})

	svc := action.Services{
		Submissions: submissions,
		Moderation:  moderation,
		Drafts:      drafts,
		Comments:    comments,
		Votes:       votes,
		Threads:     threads,
		Profiles:    profiles,
		Reports:     reports,
		Browse:      service.NewBrowseService(confessions),
		Links:       links,
		Catalog:     cat,
	}

	return &App{
		Config:   cfg,
		DB:       db,
		Redis:    rdb,
		Admins:   service.Admins(admins),
		Flags:    flags,
		Links:    links,
		Notifier: notifier,
		Services: svc,
		Router:   action.NewServiceRouter(svc),
	}, nil
}

// Maintenance runs one janitor pass by hand: drafts first, then publishing.
func (a *App) Maintenance(ctx context.Context) (purged int64, republished int, err error) {
	purged, err = a.Services.Drafts.PurgeExpired(ctx)
	if err != nil {
		return 0, 0, err
	}
	republished, err = a.Services.Moderation.RepublishPending(ctx)
	return purged, republished, err
}
