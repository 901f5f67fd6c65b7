// Package server binds the confession actions to HTTP and the notification
// feed to a websocket.
package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	_ "confessional/docs" // swagger docs
	"confessional/internal/action"
	"confessional/internal/bootstrap"
	"confessional/internal/config"
	"confessional/internal/middleware"
	"confessional/internal/models"
	"confessional/internal/notifications"
	"confessional/internal/service"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/swagger"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Server owns the Fiber app and the wired service graph.
type Server struct {
	config         *config.Config
	db             *gorm.DB
	redis          *redis.Client
	app            *fiber.App
	promMiddleware *fiberprometheus.FiberPrometheus
	shutdownCtx    context.Context
	shutdownFn     context.CancelFunc
	graph          *bootstrap.App
	router         *action.Router
	svc            action.Services
	admins         service.Admins
	feedNotifier   *notifications.Notifier
	hub            *notifications.Hub
}

// NewServer connects the runtime and wires the service graph.
func NewServer(cfg *config.Config) (*Server, error) {
	db, rdb, err := bootstrap.InitRuntime(context.Background(), cfg, bootstrap.Options{ApplySchema: true})
	if err != nil {
		return nil, err
	}
	return NewServerWithDeps(cfg, db, rdb, bootstrap.Deps{})
}

// NewServerWithDeps creates a Server using already-initialized dependencies.
// Tests use it with sqlite and recording boundaries.
func NewServerWithDeps(cfg *config.Config, db *gorm.DB, redisClient *redis.Client, deps bootstrap.Deps) (*Server, error) {
	graph, err := bootstrap.Build(cfg, db, redisClient, deps)
	if err != nil {
		return nil, fmt.Errorf("wire services: %w", err)
	}
	middleware.InitMiddleware(cfg)

	server := &Server{
		config:         cfg,
		db:             db,
		redis:          redisClient,
		promMiddleware: middleware.InitMetrics("confessional"),
		graph:          graph,
		router:         graph.Router,
		svc:            graph.Services,
		admins:         graph.Admins,
	}

	// The feed only exists with Redis; without it notifications are dropped.
	if redisClient != nil {
		server.feedNotifier = notifications.NewNotifier(redisClient)
		server.hub = notifications.NewHub()
	}

	return server, nil
}

// Graph exposes the wired services to the command that owns the process.
func (s *Server) Graph() *bootstrap.App {
	return s.graph
}

const defaultGlobalRateLimit = 100

// SetupMiddleware installs the shared chain. CORS sits ahead of the limiter so
// a 429 still carries CORS headers, and the limiter skips preflight.
func (s *Server) SetupMiddleware(app *fiber.App) {
	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(middleware.ContextMiddleware())
	if s.config.TracingEnabled {
		app.Use(middleware.TracingMiddleware())
	}
	if s.promMiddleware != nil {
		app.Use(middleware.MetricsMiddleware(s.promMiddleware))
	}
	app.Use(helmet.New())
	app.Use(middleware.StructuredLogger())

	origins := s.config.AllowedOrigins
	if origins == "" {
		origins = "http://localhost:5173,http://localhost:3000"
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, Upgrade, Connection, Sec-WebSocket-Key, Sec-WebSocket-Version",
		AllowCredentials: true,
		MaxAge:           int((24 * time.Hour).Seconds()),
	}))

	budget := s.config.GlobalRateLimit
	if budget <= 0 {
		budget = defaultGlobalRateLimit
	}
	app.Use(limiter.New(limiter.Config{
		Max:          budget,
		Expiration:   time.Minute,
		Next:         func(c *fiber.Ctx) bool { return c.Method() == fiber.MethodOptions },
		KeyGenerator: func(c *fiber.Ctx) string { return c.IP() },
		LimitReached: func(c *fiber.Ctx) error {
			return models.RespondWithError(c, fiber.StatusTooManyRequests,
				models.NewRateLimitedError("Too many requests, please try again later.", time.Minute))
		},
	}))
}

// SetupRoutes configures all routes for the application
func (s *Server) SetupRoutes(app *fiber.App) {
	api := app.Group("/api")

	app.Get("/health/live", s.LivenessCheck)
	app.Get("/health/ready", s.ReadinessCheck)
	app.Get("/health", s.ReadinessCheck)

	if s.promMiddleware != nil {
		s.promMiddleware.RegisterAt(app, "/metrics")
	}

	api.Get("/swagger/*", swagger.HandlerDefault)

	// Registered before the protected group: the feed also accepts ?token=.
	ws := api.Group("/ws", s.WebSocketAuthRequired())
	ws.Get("/feed", s.FeedHandler())

	protected := api.Group("", s.AuthRequired())

	// Generic action endpoint used by the chat gateway.
	protected.Get("/actions", s.ListActions)
	protected.Post("/actions", middleware.RateLimit(s.redis, 60, time.Minute, "actions"), s.DispatchAction)
	protected.Get("/catalog", s.GetCatalog)
	protected.Get("/rules", s.GetRules)

	// Public browsing
	confessions := protected.Group("/confessions")
	confessions.Get("/latest", s.GetLatest)
	confessions.Get("/random", s.GetRandom)
	confessions.Get("/number/:number", s.GetByNumber)
	confessions.Post("/", middleware.RateLimit(s.redis, 5, time.Minute, "submit"), s.SubmitConfession)
	// Specific /:id/:resource routes before generic ones
	confessions.Get("/:id/thread", s.GetThread)
	confessions.Post("/:id/comments", middleware.RateLimit(s.redis, 10, time.Minute, "comment"), s.AddComment)
	confessions.Post("/:id/vote", s.VoteConfession)
	confessions.Post("/:id/comments/:index/vote", s.VoteComment)

	links := protected.Group("/links")
	links.Get("/:token", s.OpenLink)

	profiles := protected.Group("/profiles")
	profiles.Get("/me", s.GetMyProfile)
	profiles.Get("/me/karma", s.GetMyKarma)
	profiles.Put("/me/nickname", s.UpdateNickname)
	profiles.Put("/me/bio", s.UpdateBio)
	profiles.Put("/me/emoji", s.UpdateEmoji)
	profiles.Put("/me/gender", s.UpdateGender)
	profiles.Post("/me/privacy/:field", s.TogglePrivacy)
	profiles.Post("/me/rules", s.AgreeToRules)
	profiles.Get("/:token", s.GetPublicProfile)

	reports := protected.Group("/reports")
	reports.Post("/", middleware.RateLimit(s.redis, 5, 10*time.Minute, "report"), s.ReportUser)

	chats := protected.Group("/chat-requests")
	chats.Post("/", middleware.RateLimit(s.redis, 5, 10*time.Minute, "chat_request"), s.RequestChat)
	chats.Post("/:id/accept", s.AcceptChat)
	chats.Post("/:id/decline", s.DeclineChat)

	admin := protected.Group("/admin", s.AdminRequired())
	admin.Get("/pending", s.GetPending)
	admin.Get("/pending/:id", s.GetPendingConfession)
	admin.Post("/confessions/:id/approve", s.ApproveConfession)
	admin.Post("/confessions/:id/reject", s.RejectConfession)
	admin.Post("/confessions/:id/reply", s.ReplyToConfessor)
	admin.Post("/auto-approve", s.ToggleAutoApprove)
	admin.Get("/auto-approve", s.GetAutoApprove)
	admin.Post("/users/:userId/block", s.BlockUser)
	admin.Delete("/users/:userId/block", s.UnblockUser)
	admin.Get("/blocked", s.ListBlocked)
	admin.Get("/reports", s.ListReports)
	admin.Get("/feature-flags", s.GetFeatureFlags)
	admin.Post("/maintenance", s.RunMaintenance)
}

// Start builds the Fiber app, starts the feed relay and blocks in Listen.
func (s *Server) Start() error {
	s.shutdownCtx, s.shutdownFn = context.WithCancel(context.Background())

	app := fiber.New(fiber.Config{
		AppName:   "Confessional API",
		BodyLimit: 1 * 1024 * 1024,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			var fe *fiber.Error
			if errors.As(err, &fe) {
				return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
			}
			return respondError(c, err)
		},
	})
	s.app = app
	s.SetupMiddleware(app)
	s.SetupRoutes(app)

	if s.hub != nil {
		go func() {
			if err := s.hub.StartWiring(s.shutdownCtx, s.feedNotifier); err != nil {
				middleware.Logger.Error("feed relay stopped", "hub", s.hub.Name(), "error", err)
			}
		}()
	}

	middleware.Logger.Info("server starting", "port", s.config.Port, "env", s.config.Env)
	return app.Listen(":" + s.config.Port)
}

// Shutdown stops accepting requests, then closes the feed and the stores.
// Close errors are logged; the process is exiting anyway.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.shutdownFn != nil {
		s.shutdownFn()
	}

	if s.app != nil {
		if err := s.app.ShutdownWithContext(ctx); err != nil {
			middleware.Logger.Error("http shutdown", "error", err)
		}
	}
	if s.hub != nil {
		if err := s.hub.Shutdown(ctx); err != nil {
			middleware.Logger.Error("feed shutdown", "hub", s.hub.Name(), "error", err)
		}
	}
	if sqlDB, err := s.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			middleware.Logger.Error("close database", "error", err)
		}
	}
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			middleware.Logger.Error("close redis", "error", err)
		}
	}

	middleware.Logger.Info("server shutdown complete")
	return nil
}
