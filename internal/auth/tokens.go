package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	// PurposeSession marks bearer tokens minted at login or refresh.
	PurposeSession = "session"
	// PurposeEmailVerification marks tokens embedded in verification links.
	PurposeEmailVerification = "email_verification"
)

var (
	// ErrTokenExpired is returned for well-formed tokens past their expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid covers bad signatures, wrong algorithms, malformed
	// tokens and purpose mismatches.
	ErrTokenInvalid = errors.New("invalid token")
)

// Claims is the JWT payload used for both session and verification tokens.
type Claims struct {
	UserID        string `json:"id,omitempty"`
	WalletAddress string `json:"walletAddress"`
	Purpose       string `json:"purpose"`
	OTP           string `json:"otp,omitempty"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies HS256 tokens with a shared secret.
type Tokens struct {
	secret     []byte
	sessionTTL time.Duration
	otpTTL     time.Duration
	now        func() time.Time
}

// NewTokens builds a token issuer. sessionTTL bounds bearer tokens and
// otpTTL bounds verification tokens.
func NewTokens(secret string, sessionTTL, otpTTL time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), sessionTTL: sessionTTL, otpTTL: otpTTL, now: time.Now}
}

// IssueSession mints a bearer token for the user.
func (t *Tokens) IssueSession(userID, wallet string) (string, time.Time, error) {
	return t.sign(Claims{UserID: userID, WalletAddress: wallet, Purpose: PurposeSession}, t.sessionTTL)
}

// IssueVerification mints the short-lived token carried by a verification
// link.
func (t *Tokens) IssueVerification(wallet, otp string) (string, time.Time, error) {
	return t.sign(Claims{WalletAddress: wallet, OTP: otp, Purpose: PurposeEmailVerification}, t.otpTTL)
}

// ParseSession verifies a bearer token.
func (t *Tokens) ParseSession(token string) (Claims, error) {
	claims, err := t.parse(token, PurposeSession)
	if err == nil && claims.UserID == "" {
		return Claims{}, ErrTokenInvalid
	}
	return claims, err
}

// ParseVerification verifies a verification-link token.
func (t *Tokens) ParseVerification(token string) (Claims, error) {
	claims, err := t.parse(token, PurposeEmailVerification)
	if err == nil && (claims.OTP == "" || claims.WalletAddress == "") {
		return Claims{}, ErrTokenInvalid
	}
	return claims, err
}

func (t *Tokens) sign(claims Claims, ttl time.Duration) (string, time.Time, error) {
	now := t.now()
	exp := now.Add(ttl)
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(exp)

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

func (t *Tokens) parse(token, purpose string) (Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	var claims Claims
	_, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}
	if claims.Purpose != purpose {
		return Claims{}, ErrTokenInvalid
	}
	return claims, nil
}
