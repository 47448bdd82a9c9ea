package routes

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/encryptcookie"
	"github.com/gofiber/fiber/v2/middleware/helmet"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"github.com/credora/credora-api/internal/auth"
	"github.com/credora/credora-api/internal/config"
	"github.com/credora/credora-api/internal/identity"
	"github.com/credora/credora-api/internal/metrics"
	"github.com/credora/credora-api/internal/middleware"
	"github.com/credora/credora-api/internal/notification"
	"github.com/credora/credora-api/internal/session"
	"github.com/credora/credora-api/internal/validation"
)

const idempotencyTTL = 24 * time.Hour

// Pinger reports the health of a backing store.
type Pinger func(ctx context.Context) error

// Deps aggregates shared dependencies required to wire routes.
type Deps struct {
	Cfg      config.Config
	Cache    *redis.Client
	Users    identity.Repository
	Notifier notification.Notifier
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	Version  string
	// Checks are reported by /health under their map key.
	Checks map[string]Pinger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if d.Cache == nil {
		return fmt.Errorf("redis is required for sessions and challenges")
	}
	if d.Users == nil {
		return fmt.Errorf("a user repository is required")
	}
	if d.Notifier == nil {
		d.Notifier = notification.NewLoggerNotifier(d.Logger)
	}
	cookieKey, err := session.CookieKey(d.Cfg.SessionSecret)
	if err != nil {
		return err
	}

	// Middlewares
	app.Use(recover.New(recover.Config{EnableStackTrace: d.Cfg.IsDevelopment()}))
	app.Use(middleware.RequestID())
	app.Use(helmet.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(d.Cfg.AllowedOrigins(), ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Content-Type, Authorization, Cookie, Idempotency-Key, X-Request-ID",
		AllowCredentials: true,
	}))
	app.Use(encryptcookie.New(encryptcookie.Config{Key: cookieKey}))
	app.Use(middleware.Audit(d.Logger))
	app.Use(d.Metrics.Middleware())
	if d.Cfg.IsDevelopment() {
		// Plain text access log in desired format: [HH:MM:SS] 200 -  145ms METHOD /path
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}

	// Services and handlers
	ids := identity.NewService(d.Users, validation.New())
	sessions := session.NewStore(session.NewRedisStorage(d.Cache, ""), session.Config{
		TTL:    d.Cfg.SessionTTL,
		Secure: d.Cfg.IsProduction(),
	})
	authSvc := auth.NewService(auth.Options{
		Identities:  ids,
		Challenges:  auth.NewChallengeIssuer(auth.NewRedisNonceStore(d.Cache), d.Cfg.ChallengeTTL),
		Tokens:      auth.NewTokens(d.Cfg.JWTSecret, d.Cfg.TokenTTL, d.Cfg.OTPTTL),
		Notifier:    d.Notifier,
		Metrics:     d.Metrics,
		Logger:      d.Logger,
		AppName:     d.Cfg.AppName,
		FrontendURL: d.Cfg.FrontendURL,
		OTPTTL:      d.Cfg.OTPTTL,
	})
	authHandler := auth.NewHandler(authSvc, ids, sessions, d.Logger)
	requireAuth := middleware.RequireAuth(authSvc, sessions)
	optionalAuth := middleware.OptionalAuth(authSvc, sessions)

	// Health and service descriptors
	RegisterHealthRoutes(app, d)
	if d.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(d.Metrics.Handler()))
	}

	// API routes
	api := app.Group("/api", middleware.RateLimit(d.Cache, middleware.RateLimitConfig{
		Name:    "api",
		Max:     d.Cfg.RateLimit.Max,
		Window:  d.Cfg.RateLimit.Window,
		Message: "Too many requests from this IP, please try again later.",
	}, d.Logger, d.Metrics))
	api.Get("", describeAPI(d))

	authLimiter := middleware.RateLimit(d.Cache, middleware.RateLimitConfig{
		Name:    "auth",
		Max:     d.Cfg.RateLimit.AuthMax,
		Window:  d.Cfg.RateLimit.Window,
		Message: "Too many authentication attempts, please try again later.",
	}, d.Logger, d.Metrics)
	RegisterAuthRoutes(api, authHandler, authLimiter, requireAuth)
	RegisterUserRoutes(api, ids, requireAuth, middleware.Idempotency(d.Cache, idempotencyTTL, d.Logger))
	RegisterInstitutionRoutes(api, ids, optionalAuth)
	RegisterAdminRoutes(api, ids, requireAuth)

	app.Use(notFound)
	return nil
}

func describeAPI(d Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"name":        d.Cfg.AppName + " API",
			"version":     d.Version,
			"description": "Wallet-based authentication for verifiable credentials",
			"endpoints": fiber.Map{
				"auth":         "/api/auth",
				"users":        "/api/users",
				"institutions": "/api/institutions",
				"admin":        "/api/admin",
				"health":       "/health",
				"metrics":      "/metrics",
			},
		})
	}
}

func notFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error":  "Route not found",
		"path":   c.Path(),
		"method": c.Method(),
	})
}
