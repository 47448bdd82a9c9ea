package auth

import (
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/credora/credora-api/internal/apperr"
	"github.com/credora/credora-api/internal/authz"
	"github.com/credora/credora-api/internal/identity"
	"github.com/credora/credora-api/internal/session"
)

// Handler exposes the /api/auth endpoints.
type Handler struct {
	svc      *Service
	ids      *identity.Service
	sessions *session.Store
	logger   *slog.Logger
}

func NewHandler(svc *Service, ids *identity.Service, sessions *session.Store, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, ids: ids, sessions: sessions, logger: logger}
}

type challengeRequest struct {
	WalletAddress string `json:"walletAddress"`
}

type userResponse struct {
	Success bool              `json:"success"`
	User    identity.SafeUser `json:"user"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Challenge returns a message for the wallet to sign.
func (h *Handler) Challenge(c *fiber.Ctx) error {
	var req challengeRequest
	if err := c.BodyParser(&req); err != nil {
		return apperr.InvalidInput("Invalid request body")
	}
	ch, err := h.svc.Challenge(c.UserContext(), req.WalletAddress)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(ch)
}

// Login verifies a signed challenge and starts a server-side session.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req LoginInput
	if err := c.BodyParser(&req); err != nil {
		return apperr.InvalidInput("Invalid request body")
	}
	res, err := h.svc.Login(c.UserContext(), req)
	if err != nil {
		return err
	}

	sess, err := h.sessions.Load(c)
	if err != nil {
		return apperr.Internal("failed to load session", err)
	}
	if err := sess.Regenerate(); err != nil {
		return apperr.Internal("failed to regenerate session", err)
	}
	sess.SetToken(res.Token)
	sess.SetTrust(req.Trust)
	if res.OTP != "" {
		sess.BindOTP(res.OTP, res.User.WalletAddress)
	} else {
		sess.ClearOTP()
	}
	if err := sess.Save(); err != nil {
		return apperr.Internal("failed to save session", err)
	}

	h.logger.Info("login succeeded", "user_id", res.User.ID, "wallet", res.User.WalletAddress, "verified", res.User.IsVerified)
	return c.Status(http.StatusOK).JSON(userResponse{Success: true, User: res.User.Summary()})
}

// Verify completes email verification for the session that started login.
// The OTP binding is kept so a repeated click on the same link succeeds
// until the token expires or the session ends.
func (h *Handler) Verify(c *fiber.Ctx) error {
	sess, err := h.sessions.Load(c)
	if err != nil {
		return apperr.Internal("failed to load session", err)
	}
	otp, wallet, _ := sess.OTPBinding()
	user, err := h.svc.Verify(c.UserContext(), c.Query("token"), otp, wallet)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(userResponse{Success: true, User: user.Summary()})
}

// Profile returns the caller's profile.
func (h *Handler) Profile(c *fiber.Ctx) error {
	p, err := authz.MustPrincipal(c)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(userResponse{Success: true, User: p.User.Safe()})
}

// UpdateProfile applies a partial profile update.
func (h *Handler) UpdateProfile(c *fiber.Ctx) error {
	p, err := authz.MustPrincipal(c)
	if err != nil {
		return err
	}
	var req identity.ProfileUpdate
	if err := c.BodyParser(&req); err != nil {
		return apperr.InvalidInput("Invalid request body")
	}
	user, err := h.ids.UpdateProfile(c.UserContext(), p.User.ID, req)
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(userResponse{Success: true, User: user.Safe()})
}

// Refresh issues a new bearer token and stores it in the session.
func (h *Handler) Refresh(c *fiber.Ctx) error {
	p, err := authz.MustPrincipal(c)
	if err != nil {
		return err
	}
	token, err := h.svc.Refresh(p.User)
	if err != nil {
		return err
	}
	sess, err := h.sessions.Load(c)
	if err != nil {
		return apperr.Internal("failed to load session", err)
	}
	sess.SetToken(token)
	if err := sess.Save(); err != nil {
		return apperr.Internal("failed to save session", err)
	}
	return c.Status(http.StatusOK).JSON(fiber.Map{"success": true, "token": token, "user": p.User.Summary()})
}

// Logout destroys the server-side session.
func (h *Handler) Logout(c *fiber.Ctx) error {
	if err := h.destroySession(c); err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(messageResponse{Success: true, Message: "Logged out successfully"})
}

// DeleteAccount hard-deletes the caller and ends the session.
func (h *Handler) DeleteAccount(c *fiber.Ctx) error {
	p, err := authz.MustPrincipal(c)
	if err != nil {
		return err
	}
	if err := h.ids.Delete(c.UserContext(), p.User.ID); err != nil {
		return err
	}
	if err := h.destroySession(c); err != nil {
		return err
	}
	h.logger.Info("account deleted", "user_id", p.User.ID, "wallet", p.User.WalletAddress)
	return c.Status(http.StatusOK).JSON(messageResponse{Success: true, Message: "Account deleted successfully"})
}

// CheckWallet reports whether a wallet address is registered.
func (h *Handler) CheckWallet(c *fiber.Ctx) error {
	res, err := h.ids.WalletAvailability(c.UserContext(), c.Params("walletAddress"))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(res)
}

// CheckEmail reports whether an email address is registered.
func (h *Handler) CheckEmail(c *fiber.Ctx) error {
	res, err := h.ids.EmailAvailability(c.UserContext(), c.Params("email"))
	if err != nil {
		return err
	}
	return c.Status(http.StatusOK).JSON(res)
}

func (h *Handler) destroySession(c *fiber.Ctx) error {
	sess, err := h.sessions.Load(c)
	if err != nil {
		return apperr.Internal("failed to load session", err)
	}
	if err := sess.Destroy(); err != nil {
		return apperr.Internal("failed to destroy session", err)
	}
	return nil
}
