package authz

import (
	"github.com/gofiber/fiber/v2"

	"github.com/credora/credora-api/internal/apperr"
)

const principalKey = "authz.principal"

// SetPrincipal attaches the authenticated caller to the request.
func SetPrincipal(c *fiber.Ctx, p Principal) {
	c.Locals(principalKey, p)
}

// FromContext returns the authenticated caller, if any.
func FromContext(c *fiber.Ctx) (Principal, bool) {
	p, ok := c.Locals(principalKey).(Principal)
	return p, ok
}

// MustPrincipal returns the caller or an Unauthorized error. Handlers behind
// the auth middleware use it.
func MustPrincipal(c *fiber.Ctx) (Principal, error) {
	p, ok := FromContext(c)
	if !ok {
		return Principal{}, apperr.Unauthorized("Authentication token is required")
	}
	return p, nil
}

// Guard rejects requests whose principal fails rule. It must run after the
// auth middleware.
func Guard(rule Rule) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := MustPrincipal(c)
		if err != nil {
			return err
		}
		if err := rule(p); err != nil {
			return err
		}
		return c.Next()
	}
}

// RequireOwnership guards routes whose param names a wallet address, with an
// admin override.
func RequireOwnership(param string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p, err := MustPrincipal(c)
		if err != nil {
			return err
		}
		if err := Owns(c.Params(param))(p); err != nil {
			return err
		}
		return c.Next()
	}
}
