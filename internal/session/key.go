package session

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const cookieKeyInfo = "credora session cookie v1"

// CookieKey derives the base64 AES-256 key expected by Fiber's
// encryptcookie middleware from the session secret.
func CookieKey(secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("session secret is empty")
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(cookieKeyInfo)), key); err != nil {
		return "", fmt.Errorf("derive cookie key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(key), nil
}
