package routes

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/credora/credora-api/internal/apperr"
	"github.com/credora/credora-api/internal/authz"
	"github.com/credora/credora-api/internal/identity"
)

type credentialsResponse struct {
	Success     bool                           `json:"success"`
	Credentials []identity.CredentialOwnership `json:"credentials"`
}

// RegisterUserRoutes exposes the credential tokens held by a wallet. Holders
// read and prune their own list; verified institutions record new entries.
func RegisterUserRoutes(r fiber.Router, ids *identity.Service, requireAuth, idempotency fiber.Handler) {
	users := r.Group("/users/:walletAddress", requireAuth)

	users.Get("/credentials", authz.RequireOwnership("walletAddress"), func(c *fiber.Ctx) error {
		creds, err := ids.Credentials(c.UserContext(), c.Params("walletAddress"))
		if err != nil {
			return err
		}
		return c.Status(http.StatusOK).JSON(credentialsResponse{Success: true, Credentials: creds})
	})

	issuers := authz.Guard(authz.Any(authz.RequireAdmin, authz.RequireVerifiedInstitution))
	users.Post("/credentials", issuers, idempotency, func(c *fiber.Ctx) error {
		p, err := authz.MustPrincipal(c)
		if err != nil {
			return err
		}
		var req identity.CredentialInput
		if err := c.BodyParser(&req); err != nil {
			return apperr.InvalidInput("Invalid request body")
		}
		user, err := ids.AddCredential(c.UserContext(), c.Params("walletAddress"), p.User.WalletAddress, req)
		if err != nil {
			return err
		}
		return c.Status(http.StatusCreated).JSON(credentialsResponse{Success: true, Credentials: user.CredentialsOwned})
	})

	users.Delete("/credentials/:tokenId", authz.RequireOwnership("walletAddress"), func(c *fiber.Ctx) error {
		user, err := ids.RemoveCredential(c.UserContext(), c.Params("walletAddress"), c.Params("tokenId"))
		if err != nil {
			return err
		}
		creds := user.CredentialsOwned
		if creds == nil {
			creds = []identity.CredentialOwnership{}
		}
		return c.Status(http.StatusOK).JSON(credentialsResponse{Success: true, Credentials: creds})
	})
}
