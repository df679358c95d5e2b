// Package routes wires the middleware chain and all endpoints onto the
// Fiber app.
package routes

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/ledgergate/ledgergate/internal/accounts"
	"github.com/ledgergate/ledgergate/internal/auth"
	"github.com/ledgergate/ledgergate/internal/config"
	"github.com/ledgergate/ledgergate/internal/ledger"
	"github.com/ledgergate/ledgergate/internal/middleware"
	"github.com/ledgergate/ledgergate/internal/ratelimit"
	"github.com/ledgergate/ledgergate/internal/transfers"
)

// Deps aggregates the shared dependencies required to wire routes.
// DB and Cache may be nil: users then live in memory and the Redis
// middlewares are skipped.
type Deps struct {
	Cfg     config.Config
	Engine  ledger.Client
	Limiter *ratelimit.Limiter
	DB      *pgxpool.Pool
	Cache   *redis.Client
	Logger  *slog.Logger
}

// Setup configures middleware and all application routes.
func Setup(app *fiber.App, d Deps) error {
	app.Use(recover.New())
	app.Use(middleware.Observe(d.Logger))

	registerHealth(app, d)

	var userRepo auth.Repository
	if d.DB != nil {
		pg := auth.NewPostgresRepository(d.DB)
		if err := pg.EnsureSchema(context.Background()); err != nil {
			return err
		}
		userRepo = pg
	} else {
		userRepo = auth.NewMemoryRepository()
	}
	authSvc := auth.NewService(userRepo, d.Cfg.TokenTTL)
	if err := authSvc.EnsureAdmin(context.Background(), d.Cfg.AdminEmail, d.Cfg.AdminPassword); err != nil {
		return err
	}
	authHandler := auth.NewHandler(authSvc)

	accountSvc := accounts.NewService(d.Engine, d.Cfg.BatchLimit, d.Cfg.QueryLimit, d.Cfg.MaxQueryLimit, d.Cfg.EngineTimeout)
	accountHandler := accounts.NewHandler(accountSvc)
	transferSvc := transfers.NewService(d.Engine, d.Cfg.BatchLimit, d.Cfg.QueryLimit, d.Cfg.MaxQueryLimit, d.Cfg.EngineTimeout)
	transferHandler := transfers.NewHandler(transferSvc)

	v1 := app.Group("/v1")

	// Public.
	v1.Post("/auth/register", authHandler.Register)
	v1.Post("/auth/token", middleware.LoginRateLimit(d.Cache, d.Cfg.LoginPerMinute), authHandler.Token)

	// Everything below requires a bearer token and passes the limiter.
	protected := v1.Group("", middleware.RequireToken(authSvc), middleware.RateLimit(d.Limiter))

	admin := protected.Group("/admin")
	admin.Get("/users", authHandler.ListUsers)
	admin.Post("/users/:id/activate", authHandler.Activate)
	admin.Post("/users/:id/deactivate", authHandler.Deactivate)

	createChain := func(h fiber.Handler) []fiber.Handler {
		if d.Cache == nil {
			return []fiber.Handler{h}
		}
		return []fiber.Handler{middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger), h}
	}

	protected.Post("/accounts", createChain(accountHandler.Create)...)
	protected.Post("/accounts/lookup", accountHandler.Lookup)
	protected.Post("/accounts/balances", accountHandler.Balances)
	protected.Post("/accounts/transfers", accountHandler.Transfers)
	protected.Post("/accounts/query", accountHandler.Query)

	protected.Post("/transfers", createChain(transferHandler.Create)...)
	protected.Post("/transfers/lookup", transferHandler.Lookup)
	protected.Post("/transfers/query", transferHandler.Query)

	return nil
}
