// Package session wraps Fiber's server-side session store with typed
// accessors for the values the auth flow keeps per browser.
package session

import (
	"time"

	"github.com/gofiber/fiber/v2"
	fsession "github.com/gofiber/fiber/v2/middleware/session"
)

// CookieName is the session cookie sent to browsers.
const CookieName = "credora.sid"

const (
	keyToken         = "token"
	keyTrust         = "trust"
	keyOTP           = "otp"
	keyWalletAddress = "walletAddress"
)

// Config controls cookie attributes and lifetime.
type Config struct {
	TTL    time.Duration
	Secure bool
}

// Store loads and persists sessions.
type Store struct {
	store *fsession.Store
}

// NewStore builds a session store over storage.
func NewStore(storage fiber.Storage, cfg Config) *Store {
	return &Store{store: fsession.New(fsession.Config{
		Storage:        storage,
		Expiration:     cfg.TTL,
		KeyLookup:      "cookie:" + CookieName,
		CookieHTTPOnly: true,
		CookieSecure:   cfg.Secure,
		CookieSameSite: fiber.CookieSameSiteLaxMode,
		CookiePath:     "/",
	})}
}

// Load returns the session bound to the request cookie, or a fresh one.
func (s *Store) Load(c *fiber.Ctx) (*Session, error) {
	sess, err := s.store.Get(c)
	if err != nil {
		return nil, err
	}
	return &Session{sess: sess}, nil
}

// Session is a single browser session. It must not be used after Save.
type Session struct {
	sess *fsession.Session
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.sess.ID() }

// Fresh reports whether the session did not exist in storage.
func (s *Session) Fresh() bool { return s.sess.Fresh() }

// Token returns the bearer token stored at login.
func (s *Session) Token() string {
	v, _ := s.sess.Get(keyToken).(string)
	return v
}

func (s *Session) SetToken(token string) { s.sess.Set(keyToken, token) }

// Trust returns the client's "trust this device" choice.
func (s *Session) Trust() bool {
	v, _ := s.sess.Get(keyTrust).(bool)
	return v
}

func (s *Session) SetTrust(trust bool) { s.sess.Set(keyTrust, trust) }

// BindOTP ties a pending email verification to this session.
func (s *Session) BindOTP(otp, wallet string) {
	s.sess.Set(keyOTP, otp)
	s.sess.Set(keyWalletAddress, wallet)
}

// OTPBinding returns the pending verification. ok is false if either value
// is missing.
func (s *Session) OTPBinding() (otp, wallet string, ok bool) {
	otp, _ = s.sess.Get(keyOTP).(string)
	wallet, _ = s.sess.Get(keyWalletAddress).(string)
	return otp, wallet, otp != "" && wallet != ""
}

// ClearOTP removes the pending verification.
func (s *Session) ClearOTP() {
	s.sess.Delete(keyOTP)
	s.sess.Delete(keyWalletAddress)
}

// Regenerate moves the session to a new id, dropping the old storage entry.
func (s *Session) Regenerate() error { return s.sess.Regenerate() }

// Save persists the session and refreshes the cookie.
func (s *Session) Save() error { return s.sess.Save() }

// Destroy deletes the session from storage and expires the cookie.
func (s *Session) Destroy() error { return s.sess.Destroy() }
