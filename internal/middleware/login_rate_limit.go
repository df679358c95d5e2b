package middleware

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/ledgergate/ledgergate/internal/api"
)

// LoginRateLimit caps token-endpoint attempts per username (falling
// back to client IP) in a fixed one-minute Redis window. Without Redis
// the limiter is a no-op, and it fails open on Redis errors so an
// outage never locks everyone out.
func LoginRateLimit(cache *redis.Client, maxPerMin int) fiber.Handler {
	if maxPerMin <= 0 {
		maxPerMin = 5
	}
	return func(c *fiber.Ctx) error {
		if cache == nil {
			return c.Next()
		}
		who := strings.ToLower(strings.TrimSpace(c.FormValue("username")))
		if who == "" {
			who = c.IP()
		}
		key := "ledgergate:login:" + who

		cnt, err := cache.Incr(c.UserContext(), key).Result()
		if err != nil {
			return c.Next()
		}
		if cnt == 1 {
			cache.Expire(c.UserContext(), key, time.Minute)
		}
		if cnt > int64(maxPerMin) {
			c.Set(fiber.HeaderRetryAfter, "60")
			return &api.Error{
				Status:  fiber.StatusTooManyRequests,
				Message: "too many login attempts, try again later",
			}
		}
		return c.Next()
	}
}
