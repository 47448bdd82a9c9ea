package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/credora/credora-api/internal/apperr"
	"github.com/credora/credora-api/internal/auth"
	"github.com/credora/credora-api/internal/authz"
	"github.com/credora/credora-api/internal/session"
)

// RequireAuth resolves the bearer token held in the caller's session and
// attaches the principal to the request.
func RequireAuth(svc *auth.Service, sessions *session.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sess, err := sessions.Load(c)
		if err != nil {
			return apperr.Internal("failed to load session", err)
		}
		token := sess.Token()
		user, err := svc.Authenticate(c.UserContext(), token)
		if err != nil {
			return err
		}
		authz.SetPrincipal(c, authz.Principal{User: user, Token: token})
		return c.Next()
	}
}

// OptionalAuth attaches a principal when the session or an Authorization
// header carries a valid token. The header is tried when the session token
// is missing or no longer valid. It never rejects the request.
func OptionalAuth(svc *auth.Service, sessions *session.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var candidates []string
		if sess, err := sessions.Load(c); err == nil && sess.Token() != "" {
			candidates = append(candidates, sess.Token())
		}
		if token := bearerToken(c.Get(fiber.HeaderAuthorization)); token != "" {
			candidates = append(candidates, token)
		}
		for _, token := range candidates {
			if user, err := svc.Authenticate(c.UserContext(), token); err == nil {
				authz.SetPrincipal(c, authz.Principal{User: user, Token: token})
				break
			}
		}
		return c.Next()
	}
}

func bearerToken(header string) string {
	if len(header) < len("bearer ") || !strings.EqualFold(header[:len("bearer ")], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[len("bearer "):])
}
