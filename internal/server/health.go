package server

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
)

const (
	probeHealthy     = "healthy"
	probeUnhealthy   = "unhealthy"
	probeUnavailable = "unavailable"
	probeDegraded    = "degraded"
)

// LivenessCheck answers as long as the process serves requests.
func (s *Server) LivenessCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "up", "time": time.Now().UTC()})
}

// ReadinessCheck pings the database and Redis. Redis backs caching, rate
// limits and the feed, but the board runs without it, so a missing client
// reports degraded rather than failing the probe.
func (s *Server) ReadinessCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	checks := fiber.Map{
		"database": s.probeDatabase(ctx),
		"redis":    s.probeRedis(ctx),
	}

	status, overall := fiber.StatusOK, probeHealthy
	for _, v := range checks {
		switch v {
		case probeUnhealthy:
			status, overall = fiber.StatusServiceUnavailable, probeUnhealthy
		case probeUnavailable:
			if overall == probeHealthy {
				overall = probeDegraded
			}
		}
	}

	return c.Status(status).JSON(fiber.Map{
		"status": overall,
		"checks": checks,
		"time":   time.Now().UTC(),
	})
}

func (s *Server) probeDatabase(ctx context.Context) string {
	if s.db == nil {
		return probeUnhealthy
	}
	sqlDB, err := s.db.DB()
	if err != nil || sqlDB.PingContext(ctx) != nil {
		return probeUnhealthy
	}
	return probeHealthy
}

func (s *Server) probeRedis(ctx context.Context) string {
	if s.redis == nil {
		return probeUnavailable
	}
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return probeUnhealthy
	}
	return probeHealthy
}
