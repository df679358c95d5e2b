// Package middleware holds the HTTP middleware chain: request
// observation, bearer auth, rate limiting and idempotent replay.
package middleware

import (
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/ledgergate/ledgergate/internal/api"
)

const (
	requestIDHeader    = "X-Request-ID"
	responseTimeHeader = "X-Response-Time"
	engineTimeHeader   = "X-Engine-Time"

	engineTimeKey = "engine_duration"
)

// RecordEngineTime accumulates time spent waiting on the ledger engine
// for the current request. Handlers call it once per engine round trip.
func RecordEngineTime(c *fiber.Ctx, d time.Duration) {
	total, _ := c.Locals(engineTimeKey).(time.Duration)
	c.Locals(engineTimeKey, total+d)
}

// Observe assigns each request a stable id, measures total and
// engine-side latency into response headers, and emits one structured
// completion log. Inbound X-Request-ID values are honored.
func Observe(logger *slog.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		reqID := c.Get(requestIDHeader)
		if reqID == "" {
			reqID = uuid.NewString()
		}
		c.Set(requestIDHeader, reqID)
		c.Locals(api.RequestIDKey, reqID)

		err := c.Next()

		duration := time.Since(start)
		engine, _ := c.Locals(engineTimeKey).(time.Duration)
		c.Set(responseTimeHeader, formatMillis(duration))
		if engine > 0 {
			c.Set(engineTimeHeader, formatMillis(engine))
		}

		// On the error path the handler chain has not rendered the
		// response yet, so the status must come from the error itself.
		status := c.Response().StatusCode()
		if err != nil {
			status = errorStatus(err)
		}
		attrs := []any{
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Int("status", status),
			slog.Duration("duration", duration),
			slog.String("request_id", reqID),
		}
		if engine > 0 {
			attrs = append(attrs, slog.Duration("engine_duration", engine))
		}
		if subject, _ := c.Locals(api.SubjectKey).(string); subject != "" {
			attrs = append(attrs, slog.String("subject", subject))
		}
		if err != nil {
			attrs = append(attrs, slog.Any("error", err))
			logger.Error("request completed", attrs...)
			return err
		}

		logger.Info("request completed", attrs...)
		return nil
	}
}

// errorStatus resolves the status code the error handler will render.
func errorStatus(err error) int {
	var apiErr *api.Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return fiber.StatusInternalServerError
}

func formatMillis(d time.Duration) string {
	ms := float64(d) / float64(time.Millisecond)
	return strconv.FormatFloat(ms, 'f', 2, 64) + "ms"
}
