package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/credora/credora-api/internal/auth"
)

// RegisterAuthRoutes wires the wallet sign-in endpoints under /auth.
func RegisterAuthRoutes(r fiber.Router, h *auth.Handler, rateLimiter, requireAuth fiber.Handler) {
	group := r.Group("/auth")
	if rateLimiter != nil {
		group.Use(rateLimiter)
	}

	group.Post("/challenge", h.Challenge)
	group.Post("/login", h.Login)
	group.Get("/verify", h.Verify)
	group.Get("/check-wallet/:walletAddress", h.CheckWallet)
	group.Get("/check-email/:email", h.CheckEmail)

	group.Get("/profile", requireAuth, h.Profile)
	group.Put("/profile", requireAuth, h.UpdateProfile)
	group.Post("/refresh", requireAuth, h.Refresh)
	group.Post("/logout", requireAuth, h.Logout)
	group.Delete("/account", requireAuth, h.DeleteAccount)
}
