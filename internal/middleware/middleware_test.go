package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/ledgergate/ledgergate/internal/api"
	"github.com/ledgergate/ledgergate/internal/auth"
	"github.com/ledgergate/ledgergate/internal/logging"
	"github.com/ledgergate/ledgergate/internal/ratelimit"
)

func newApp() *fiber.App {
	return fiber.New(fiber.Config{ErrorHandler: api.ErrorHandler(logging.Discard())})
}

func TestObserveAssignsRequestID(t *testing.T) {
	app := newApp()
	app.Use(Observe(logging.Discard()))
	app.Get("/ping", func(c *fiber.Ctx) error {
		RecordEngineTime(c, 5*time.Millisecond)
		return c.SendString("pong")
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/ping", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.Header.Get(requestIDHeader) == "" {
		t.Fatal("request id header missing")
	}
	if resp.Header.Get(responseTimeHeader) == "" {
		t.Fatal("response time header missing")
	}
	if resp.Header.Get(engineTimeHeader) == "" {
		t.Fatal("engine time header missing")
	}
}

func TestObserveHonorsInboundRequestID(t *testing.T) {
	app := newApp()
	app.Use(Observe(logging.Discard()))
	app.Get("/ping", func(c *fiber.Ctx) error { return c.SendString("pong") })

	req := httptest.NewRequest(fiber.MethodGet, "/ping", nil)
	req.Header.Set(requestIDHeader, "trace-42")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if got := resp.Header.Get(requestIDHeader); got != "trace-42" {
		t.Fatalf("expected trace-42, got %q", got)
	}
}

func TestRequireToken(t *testing.T) {
	svc := auth.NewService(auth.NewMemoryRepository(), time.Hour)
	if err := svc.EnsureAdmin(context.Background(), "admin@example.com", "admin-pass1"); err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	token, err := svc.Issue(context.Background(), "admin@example.com", "admin-pass1")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	app := newApp()
	app.Use(RequireToken(svc))
	app.Get("/who", func(c *fiber.Ctx) error {
		subject, _ := c.Locals(api.SubjectKey).(string)
		return c.SendString(subject)
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/who", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("missing token: expected 401, got %d", resp.StatusCode)
	}

	req := httptest.NewRequest(fiber.MethodGet, "/who", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer bogus-token")
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("bogus token: expected 401, got %d", resp.StatusCode)
	}

	req = httptest.NewRequest(fiber.MethodGet, "/who", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token.Value)
	resp, err = app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("valid token: expected 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if string(body) != token.Subject {
		t.Fatalf("expected subject %s, got %s", token.Subject, body)
	}
}

func TestRateLimitSetsRetryAfter(t *testing.T) {
	limiter := ratelimit.New(2, 1)
	app := newApp()
	app.Use(RateLimit(limiter))
	app.Get("/r", func(c *fiber.Ctx) error { return c.SendString("ok") })

	doReq := func() int {
		req := httptest.NewRequest(fiber.MethodGet, "/r", nil)
		req.Header.Set(apiKeyHeader, "client-1")
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		if resp.StatusCode == fiber.StatusTooManyRequests && resp.Header.Get(fiber.HeaderRetryAfter) == "" {
			t.Fatal("429 without Retry-After")
		}
		return resp.StatusCode
	}

	if doReq() != fiber.StatusOK || doReq() != fiber.StatusOK {
		t.Fatal("burst requests should be admitted")
	}
	if doReq() != fiber.StatusTooManyRequests {
		t.Fatal("third request should be limited")
	}

	// Another key still has its own bucket.
	req := httptest.NewRequest(fiber.MethodGet, "/r", nil)
	req.Header.Set(apiKeyHeader, "client-2")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("other key must not be limited: %d", resp.StatusCode)
	}
}

func TestRateLimitBucketsSurviveRequestReuse(t *testing.T) {
	limiter := ratelimit.New(1, 0.001)
	app := newApp()
	app.Use(RateLimit(limiter))
	app.Get("/r", func(c *fiber.Ctx) error { return c.SendString("ok") })

	doReq := func(key string) int {
		req := httptest.NewRequest(fiber.MethodGet, "/r", nil)
		req.Header.Set(apiKeyHeader, key)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		return resp.StatusCode
	}

	// Drain one credential's bucket, then hammer it with further
	// requests so fasthttp recycles its header buffers. Every fresh
	// credential seen afterwards must still get its own full bucket.
	if doReq("client-0") != fiber.StatusOK {
		t.Fatal("first request should be admitted")
	}
	for i := 0; i < 8; i++ {
		if doReq("client-0") != fiber.StatusTooManyRequests {
			t.Fatal("drained credential should stay limited")
		}
	}
	for i := 1; i <= 4; i++ {
		key := fmt.Sprintf("client-%d", i)
		if got := doReq(key); got != fiber.StatusOK {
			t.Fatalf("credential %s must have its own bucket: %d", key, got)
		}
	}
}

func TestObserveLogsRenderedStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	app := newApp()
	app.Use(Observe(logger))
	app.Get("/denied", func(c *fiber.Ctx) error {
		return api.Unauthorized("token required")
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/denied", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}

	var entry struct {
		Status int `json:"status"`
	}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if entry.Status != fiber.StatusUnauthorized {
		t.Fatalf("logged status must match the rendered response, got %d", entry.Status)
	}
}

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { cache.Close() })
	return cache
}

func TestLoginRateLimit(t *testing.T) {
	cache := setupRedis(t)
	app := newApp()
	app.Use(LoginRateLimit(cache, 3))
	app.Post("/token", func(c *fiber.Ctx) error { return c.SendString("ok") })

	doLogin := func(user string) int {
		form := url.Values{"username": {user}, "password": {"x"}}
		req := httptest.NewRequest(fiber.MethodPost, "/token", strings.NewReader(form.Encode()))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		return resp.StatusCode
	}

	for i := 0; i < 3; i++ {
		if doLogin("ops@example.com") != fiber.StatusOK {
			t.Fatalf("attempt %d should pass", i)
		}
	}
	if doLogin("ops@example.com") != fiber.StatusTooManyRequests {
		t.Fatal("fourth attempt should be limited")
	}
	if doLogin("other@example.com") != fiber.StatusOK {
		t.Fatal("other username must not share the window")
	}
}

func TestIdempotencyReplay(t *testing.T) {
	cache := setupRedis(t)
	app := newApp()
	app.Use(Idempotency(cache, time.Minute, logging.Discard()))
	calls := 0
	app.Post("/create", func(c *fiber.Ctx) error {
		calls++
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"call": calls})
	})

	do := func(key string) (int, map[string]any) {
		req := httptest.NewRequest(fiber.MethodPost, "/create", strings.NewReader("{}"))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		if key != "" {
			req.Header.Set(idempotencyKeyHeader, key)
		}
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		defer resp.Body.Close()
		var decoded map[string]any
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
			t.Fatalf("decode: %v", err)
		}
		return resp.StatusCode, decoded
	}

	status, first := do("key-1")
	if status != fiber.StatusOK {
		t.Fatalf("first request: %d", status)
	}
	status, second := do("key-1")
	if status != fiber.StatusOK {
		t.Fatalf("replayed request: %d", status)
	}
	if first["call"] != second["call"] {
		t.Fatalf("replay must not re-run the handler: %v vs %v", first, second)
	}
	if calls != 1 {
		t.Fatalf("handler ran %d times", calls)
	}

	// No header means no replay.
	do("")
	do("")
	if calls != 3 {
		t.Fatalf("requests without the header must always run, handler ran %d times", calls)
	}
}
