package auth

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/credora/credora-api/internal/apperr"
	"github.com/credora/credora-api/internal/identity"
	"github.com/credora/credora-api/internal/metrics"
	"github.com/credora/credora-api/internal/notification"
)

const mailTimeout = 15 * time.Second

// LoginInput is the body of a wallet login.
type LoginInput struct {
	Email         string `json:"email"`
	WalletAddress string `json:"walletAddress"`
	Signature     string `json:"signature"`
	Message       string `json:"message"`
	Trust         bool   `json:"trust"`
}

// LoginResult carries what the handler must put in the session. OTP is empty
// when the user is already verified.
type LoginResult struct {
	User    identity.User
	Token   string
	OTP     string
	Created bool
}

// Options configures a Service.
type Options struct {
	Identities  *identity.Service
	Challenges  *ChallengeIssuer
	Tokens      *Tokens
	Notifier    notification.Notifier
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
	AppName     string
	FrontendURL string
	OTPTTL      time.Duration
}

// Service implements the wallet sign-in flow.
type Service struct {
	ids         *identity.Service
	challenges  *ChallengeIssuer
	tokens      *Tokens
	notifier    notification.Notifier
	metrics     *metrics.Metrics
	logger      *slog.Logger
	appName     string
	frontendURL string
	otpTTL      time.Duration
}

func NewService(opts Options) *Service {
	return &Service{
		ids:         opts.Identities,
		challenges:  opts.Challenges,
		tokens:      opts.Tokens,
		notifier:    opts.Notifier,
		metrics:     opts.Metrics,
		logger:      opts.Logger,
		appName:     opts.AppName,
		frontendURL: opts.FrontendURL,
		otpTTL:      opts.OTPTTL,
	}
}

// Challenge issues a message for wallet to sign.
func (s *Service) Challenge(ctx context.Context, wallet string) (Challenge, error) {
	if strings.TrimSpace(wallet) == "" {
		return Challenge{}, apperr.MissingFields("Wallet address is required")
	}
	ch, err := s.challenges.Issue(ctx, strings.TrimSpace(wallet))
	s.metrics.AuthEvent("challenge", outcome(err))
	return ch, err
}

// Login verifies the wallet signature, consumes the challenge nonce, finds
// or creates the user and mints a bearer token. Unverified users also get a
// fresh OTP and a verification mail when an address is known.
func (s *Service) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	res, err := s.login(ctx, in)
	s.metrics.AuthEvent("login", outcome(err))
	return res, err
}

func (s *Service) login(ctx context.Context, in LoginInput) (LoginResult, error) {
	in.WalletAddress = strings.TrimSpace(in.WalletAddress)
	if in.WalletAddress == "" || in.Signature == "" || in.Message == "" {
		return LoginResult{}, apperr.MissingFields("Missing required fields: walletAddress, signature, message")
	}
	if err := VerifySignature(in.Message, in.Signature, in.WalletAddress); err != nil {
		return LoginResult{}, err
	}
	if err := s.challenges.Redeem(ctx, in.WalletAddress, in.Message); err != nil {
		return LoginResult{}, err
	}

	user, created, err := s.ids.FindOrCreateByWallet(ctx, in.WalletAddress, in.Email)
	if err != nil {
		return LoginResult{}, err
	}
	if created {
		s.logger.Info("user created", "user_id", user.ID, "wallet", user.WalletAddress)
	}

	token, _, err := s.tokens.IssueSession(user.ID, user.WalletAddress)
	if err != nil {
		return LoginResult{}, apperr.Internal("failed to issue token", err)
	}
	res := LoginResult{User: user, Token: token, Created: created}
	if user.IsVerified {
		return res, nil
	}

	if res.OTP, err = GenerateOTP(); err != nil {
		return LoginResult{}, apperr.Internal("failed to generate otp", err)
	}
	s.sendVerification(ctx, user, res.OTP)
	return res, nil
}

// sendVerification mails the verification link. Failures are logged only so
// that a broken relay never blocks sign-in.
func (s *Service) sendVerification(ctx context.Context, user identity.User, otp string) {
	if user.Email == "" {
		s.logger.Info("verification mail skipped: no email on file", "user_id", user.ID)
		return
	}
	token, _, err := s.tokens.IssueVerification(user.WalletAddress, otp)
	if err != nil {
		s.logger.Error("issue verification token", "user_id", user.ID, "error", err)
		return
	}
	msg, err := notification.VerificationEmail(s.appName, user.Email,
		notification.VerificationLink(s.frontendURL, token), humanDuration(s.otpTTL))
	if err != nil {
		s.logger.Error("render verification mail", "user_id", user.ID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), mailTimeout)
	defer cancel()
	err = s.notifier.Send(ctx, msg)
	s.metrics.MailSent(msg.Kind, err)
	if err != nil {
		s.logger.Error("send verification mail", "user_id", user.ID, "error", err)
	}
}

// Verify completes email verification. The token must be valid and match the
// OTP binding held by the caller's session.
func (s *Service) Verify(ctx context.Context, token, boundOTP, boundWallet string) (identity.User, error) {
	user, err := s.verify(ctx, token, boundOTP, boundWallet)
	s.metrics.AuthEvent("verify", outcome(err))
	return user, err
}

func (s *Service) verify(ctx context.Context, token, boundOTP, boundWallet string) (identity.User, error) {
	if token == "" {
		return identity.User{}, apperr.MissingFields("Verification token is required")
	}
	claims, err := s.tokens.ParseVerification(token)
	if err != nil {
		return identity.User{}, apperr.Wrap(apperr.KindInvalidOrExpiredToken, "Invalid or expired token", err)
	}
	if boundOTP == "" || boundWallet == "" {
		return identity.User{}, apperr.New(apperr.KindSessionMismatch, "Invalid session data")
	}
	if claims.OTP != boundOTP || claims.WalletAddress != boundWallet {
		return identity.User{}, apperr.New(apperr.KindSessionMismatch, "Invalid OTP or wallet address")
	}
	return s.ids.MarkVerified(ctx, claims.WalletAddress)
}

// Authenticate resolves a bearer token to its user.
func (s *Service) Authenticate(ctx context.Context, token string) (identity.User, error) {
	if token == "" {
		return identity.User{}, apperr.Unauthorized("Authentication token is required")
	}
	claims, err := s.tokens.ParseSession(token)
	if err != nil {
		return identity.User{}, apperr.Wrap(apperr.KindInvalidToken, "Invalid token", err)
	}
	user, err := s.ids.Get(ctx, claims.UserID)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			return identity.User{}, apperr.Wrap(apperr.KindInvalidToken, "Invalid token", err)
		}
		return identity.User{}, err
	}
	return user, nil
}

// Refresh mints a new bearer token for an authenticated user.
func (s *Service) Refresh(user identity.User) (string, error) {
	token, _, err := s.tokens.IssueSession(user.ID, user.WalletAddress)
	s.metrics.AuthEvent("refresh", outcome(err))
	if err != nil {
		return "", apperr.Internal("failed to issue token", err)
	}
	return token, nil
}

func outcome(err error) string {
	if err == nil {
		return "success"
	}
	var ae *apperr.Error
	if errors.As(err, &ae) {
		return string(ae.Kind)
	}
	return string(apperr.KindInternal)
}

func humanDuration(d time.Duration) string {
	switch {
	case d == time.Minute:
		return "1 minute"
	case d > 0 && d%time.Minute == 0:
		return strconv.Itoa(int(d/time.Minute)) + " minutes"
	default:
		return d.String()
	}
}
