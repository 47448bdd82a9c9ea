package routes

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/credora/credora-api/internal/authz"
	"github.com/credora/credora-api/internal/identity"
)

// RegisterAdminRoutes wires administrator-only lookups.
func RegisterAdminRoutes(r fiber.Router, ids *identity.Service, requireAuth fiber.Handler) {
	admin := r.Group("/admin", requireAuth, authz.Guard(authz.RequireAdmin))

	admin.Get("/users/:walletAddress", func(c *fiber.Ctx) error {
		user, err := ids.GetByWallet(c.UserContext(), c.Params("walletAddress"))
		if err != nil {
			return err
		}
		return c.Status(http.StatusOK).JSON(fiber.Map{"success": true, "user": user.Admin()})
	})
}
