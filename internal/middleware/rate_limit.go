package middleware

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/credora/credora-api/internal/apperr"
	"github.com/credora/credora-api/internal/metrics"
)

// RateLimitConfig describes one fixed-window limiter.
type RateLimitConfig struct {
	Name    string
	Max     int
	Window  time.Duration
	Message string
}

// RateLimit counts requests per client IP in a fixed Redis window. Cache
// errors fail open.
func RateLimit(cache *redis.Client, cfg RateLimitConfig, logger *slog.Logger, m *metrics.Metrics) fiber.Handler {
	if cfg.Max <= 0 {
		cfg.Max = 100
	}
	if cfg.Window <= 0 {
		cfg.Window = 15 * time.Minute
	}
	if cfg.Name == "" {
		cfg.Name = "global"
	}
	if cfg.Message == "" {
		cfg.Message = "Too many requests, please try again later"
	}
	prefix := "rl:" + cfg.Name + ":"

	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next()
		}
		key := prefix + c.IP()
		ctx := c.UserContext()
		cnt, err := cache.Incr(ctx, key).Result()
		if err != nil {
			logger.Warn("rate limiter unavailable", slog.String("limiter", cfg.Name), slog.Any("error", err))
			return c.Next()
		}
		if cnt == 1 {
			cache.Expire(ctx, key, cfg.Window)
		}

		remaining := cfg.Max - int(cnt)
		if remaining < 0 {
			remaining = 0
		}
		c.Set("X-RateLimit-Limit", strconv.Itoa(cfg.Max))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if cnt > int64(cfg.Max) {
			if ttl, err := cache.TTL(ctx, key).Result(); err == nil && ttl > 0 {
				c.Set(fiber.HeaderRetryAfter, strconv.Itoa(int(ttl.Round(time.Second)/time.Second)))
			}
			m.RateLimited(cfg.Name)
			return apperr.New(apperr.KindTooManyRequests, cfg.Message)
		}
		return c.Next()
	}
}
