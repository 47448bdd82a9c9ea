package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
)

// RegisterHealthRoutes adds the liveness endpoint and the root banner.
func RegisterHealthRoutes(app *fiber.App, d Deps) {
	app.Get("/health", func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		services := fiber.Map{}
		healthy := true
		if d.Cache != nil {
			services["redis"] = checkService(ctx, func(ctx context.Context) error { return d.Cache.Ping(ctx).Err() }, &healthy)
		}
		for name, check := range d.Checks {
			services[name] = checkService(ctx, check, &healthy)
		}

		status, label := http.StatusOK, "OK"
		if !healthy {
			status, label = http.StatusServiceUnavailable, "DEGRADED"
		}
		return c.Status(status).JSON(fiber.Map{
			"status":      label,
			"timestamp":   time.Now().UTC().Format(time.RFC3339Nano),
			"version":     d.Version,
			"environment": d.Cfg.AppEnv,
			"services":    services,
		})
	})

	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message":   d.Cfg.AppName + " API Server",
			"version":   d.Version,
			"status":    "Running",
			"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
			"api":       "/api",
			"health":    "/health",
		})
	})
}

func checkService(ctx context.Context, check Pinger, healthy *bool) string {
	if err := check(ctx); err != nil {
		*healthy = false
		return err.Error()
	}
	return "ok"
}
