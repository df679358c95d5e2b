package middleware

import (
	"math"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"

	"github.com/ledgergate/ledgergate/internal/api"
	"github.com/ledgergate/ledgergate/internal/ratelimit"
)

const apiKeyHeader = "X-API-Key"

// RateLimit applies the per-credential token bucket to ledger routes.
// The bucket key is the X-API-Key header when present, otherwise the
// authenticated subject, otherwise the client IP. Header and IP values
// alias fasthttp's reusable request buffers, so they are copied before
// the limiter stores them as bucket keys.
func RateLimit(limiter *ratelimit.Limiter) fiber.Handler {
	return func(c *fiber.Ctx) error {
		key := utils.CopyString(c.Get(apiKeyHeader))
		if key == "" {
			key, _ = c.Locals(api.SubjectKey).(string)
		}
		if key == "" {
			key = utils.CopyString(c.IP())
		}

		ok, retryAfter := limiter.Allow(key)
		if !ok {
			seconds := int(math.Ceil(retryAfter.Seconds()))
			if seconds < 1 {
				seconds = 1
			}
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(seconds))
			return &api.Error{
				Status:  fiber.StatusTooManyRequests,
				Message: "rate limit exceeded, retry in " + (time.Duration(seconds) * time.Second).String(),
			}
		}
		return c.Next()
	}
}
