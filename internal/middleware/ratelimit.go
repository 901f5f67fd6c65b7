package middleware

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"confessional/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// FailPolicy decides what happens when the Redis window store errors.
type FailPolicy int

const (
	// FailOpen counts the request in the in-process limiter instead.
	FailOpen FailPolicy = iota
	// FailClosed answers 503.
	FailClosed
)

// windows is the in-process fallback: one token bucket per key, refilled
// evenly across the window.
type windows struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

var fallback = &windows{buckets: make(map[string]*rate.Limiter)}

func (w *windows) allow(key string, limit int, window time.Duration) (bool, time.Duration) {
	w.mu.Lock()
	b, ok := w.buckets[key]
	if !ok {
		b = rate.NewLimiter(rate.Every(window/time.Duration(limit)), limit)
		w.buckets[key] = b
	}
	w.mu.Unlock()

	r := b.Reserve()
	if delay := r.Delay(); delay > 0 {
		r.Cancel()
		return false, delay
	}
	return true, 0
}

// limitsBypassed reports whether APP_ENV turns rate limiting off. An unset
// APP_ENV counts as development.
func limitsBypassed() bool {
	switch os.Getenv("APP_ENV") {
	case "", "test", "development", "stress":
		return true
	}
	return false
}

func windowKey(resource, id string) string {
	return "rl:" + resource + ":" + id
}

// CheckRateLimit counts one hit against resource for id in a fixed window and
// reports whether it is within limit. Without Redis it uses the in-process
// fallback.
func CheckRateLimit(ctx context.Context, rdb *redis.Client, resource, id string, limit int, window time.Duration) (bool, error) {
	allowed, _, err := hit(ctx, rdb, windowKey(resource, id), limit, window)
	return allowed, err
}

// hit also returns how long until the window reopens when the hit is denied.
func hit(ctx context.Context, rdb *redis.Client, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	if limitsBypassed() {
		return true, 0, nil
	}
	if limit <= 0 {
		return false, window, nil
	}
	if rdb == nil {
		allowed, wait := fallback.allow(key, limit, window)
		return allowed, wait, nil
	}

	count, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	if count == 1 {
		if err := rdb.Expire(ctx, key, window).Err(); err != nil {
			return false, 0, err
		}
	}
	if count <= int64(limit) {
		return true, 0, nil
	}

	ttl, err := rdb.TTL(ctx, key).Result()
	if err != nil || ttl <= 0 {
		ttl = window
	}
	return false, ttl, nil
}

// RateLimit allows limit requests per window for each caller. Callers are the
// authenticated user when the auth middleware ran first, otherwise the client
// IP. The first name, if given, replaces the path as the bucket name.
func RateLimit(rdb *redis.Client, limit int, window time.Duration, name ...string) fiber.Handler {
	return RateLimitWithPolicy(rdb, limit, window, FailOpen, name...)
}

// RateLimitWithPolicy is RateLimit with an explicit store failure policy.
// FailClosed also refuses requests when no Redis client is configured.
func RateLimitWithPolicy(rdb *redis.Client, limit int, window time.Duration, policy FailPolicy, name ...string) fiber.Handler {
	unavailable := &models.AppError{Code: models.CodeTransientStore, Message: "Rate limit unavailable"}

	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()

		resource := c.Path()
		if len(name) > 0 {
			resource = name[0]
		}
		caller := "ip:" + c.IP()
		if uid, ok := c.Locals("userID").(int64); ok {
			caller = fmt.Sprintf("user:%d", uid)
		}
		key := windowKey(resource, caller)

		if rdb == nil && policy == FailClosed && !limitsBypassed() {
			Logger.WarnContext(ctx, "rate limit store missing, failing closed", "resource", resource)
			return models.RespondWithError(c, fiber.StatusServiceUnavailable, unavailable)
		}

		allowed, wait, err := hit(ctx, rdb, key, limit, window)
		if err != nil {
			if policy == FailClosed {
				Logger.WarnContext(ctx, "rate limit store error, failing closed", "resource", resource, "error", err)
				return models.RespondWithError(c, fiber.StatusServiceUnavailable, unavailable)
			}
			allowed, wait = fallback.allow(key, limit, window)
		}

		if !allowed {
			return models.RespondWithError(c, fiber.StatusTooManyRequests,
				models.NewRateLimitedError("Rate limit exceeded", wait))
		}
		return c.Next()
	}
}
