package auth

import (
	"crypto/rand"
	"math/big"
)

const (
	otpAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ1234567890"
	otpLength   = 6
)

// GenerateOTP returns a 6-character uppercase alphanumeric code.
func GenerateOTP() (string, error) {
	max := big.NewInt(int64(len(otpAlphabet)))
	code := make([]byte, otpLength)
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		code[i] = otpAlphabet[n.Int64()]
	}
	return string(code), nil
}
