package auth

import (
	"errors"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/credora/credora-api/internal/apperr"
)

// ErrMalformedSignature is returned when a signature cannot be decoded or
// no public key can be recovered from it.
var ErrMalformedSignature = errors.New("malformed signature")

// RecoverAddress returns the address that produced signature over message
// using the personal-sign scheme ("\x19Ethereum Signed Message:\n" prefix).
// Both 0/1 and 27/28 recovery ids are accepted.
func RecoverAddress(message, signature string) (common.Address, error) {
	sig, err := hexutil.Decode(strings.TrimSpace(signature))
	if err != nil || len(sig) != crypto.SignatureLength {
		return common.Address{}, ErrMalformedSignature
	}
	if sig[crypto.RecoveryIDOffset] >= 27 {
		sig[crypto.RecoveryIDOffset] -= 27
	}
	if sig[crypto.RecoveryIDOffset] > 1 {
		return common.Address{}, ErrMalformedSignature
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), sig)
	if err != nil {
		return common.Address{}, errors.Join(ErrMalformedSignature, err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// VerifySignature checks that wallet signed message. Comparison is
// case-insensitive.
func VerifySignature(message, signature, wallet string) error {
	addr, err := RecoverAddress(message, signature)
	if err != nil {
		return apperr.Wrap(apperr.KindInvalidSignatureFormat, "Invalid signature format", err)
	}
	if !strings.EqualFold(addr.Hex(), strings.TrimSpace(wallet)) {
		return apperr.New(apperr.KindInvalidSignature, "Invalid signature")
	}
	return nil
}
