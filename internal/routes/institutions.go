package routes

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/credora/credora-api/internal/authz"
	"github.com/credora/credora-api/internal/identity"
)

// RegisterInstitutionRoutes exposes the public directory of verified
// institutions. Authenticated callers also see contact emails.
func RegisterInstitutionRoutes(r fiber.Router, ids *identity.Service, optionalAuth fiber.Handler) {
	r.Get("/institutions/verified", optionalAuth, func(c *fiber.Ctx) error {
		users, err := ids.VerifiedInstitutions(c.UserContext())
		if err != nil {
			return err
		}
		_, authenticated := authz.FromContext(c)
		listings := make([]identity.InstitutionListing, 0, len(users))
		for _, u := range users {
			listings = append(listings, u.Listing(authenticated))
		}
		return c.Status(http.StatusOK).JSON(fiber.Map{"success": true, "institutions": listings})
	})
}
