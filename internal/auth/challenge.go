package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/credora/credora-api/internal/apperr"
	"github.com/credora/credora-api/internal/identity"
	"github.com/credora/credora-api/internal/validation"
)

const (
	nonceKeyPrefix  = "auth:nonce:"
	nonceUpperBound = 1_000_000

	challengeTemplate = "Please sign this message to authenticate with Credential Passport.\n\n" +
		"Wallet: %s\nNonce: %d\nTimestamp: %d\n\n" +
		"This request will not trigger a blockchain transaction or cost any gas fees."
)

var noncePattern = regexp.MustCompile(`(?m)^Nonce: (\d+)$`)

// ErrNonceNotFound is returned when no outstanding nonce exists for a wallet.
var ErrNonceNotFound = errors.New("nonce not found")

// Challenge is the message a wallet must sign to log in.
type Challenge struct {
	Message string `json:"message"`
	Nonce   int64  `json:"nonce"`
}

// NonceStore keeps the latest issued nonce per wallet until it is consumed
// or expires.
type NonceStore interface {
	Put(ctx context.Context, wallet string, nonce int64, ttl time.Duration) error
	// Consume atomically reads and deletes the nonce. It returns
	// ErrNonceNotFound when none is outstanding.
	Consume(ctx context.Context, wallet string) (int64, error)
}

// RedisNonceStore implements NonceStore with SET/GETDEL.
type RedisNonceStore struct {
	client *redis.Client
}

// NewRedisNonceStore builds a Redis-backed nonce store.
func NewRedisNonceStore(client *redis.Client) *RedisNonceStore {
	return &RedisNonceStore{client: client}
}

func (s *RedisNonceStore) Put(ctx context.Context, wallet string, nonce int64, ttl time.Duration) error {
	return s.client.Set(ctx, nonceKeyPrefix+wallet, nonce, ttl).Err()
}

func (s *RedisNonceStore) Consume(ctx context.Context, wallet string) (int64, error) {
	raw, err := s.client.GetDel(ctx, nonceKeyPrefix+wallet).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrNonceNotFound
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(raw, 10, 64)
}

// ChallengeIssuer mints sign-in challenges and remembers their nonces.
type ChallengeIssuer struct {
	nonces NonceStore
	ttl    time.Duration
	now    func() time.Time
}

// NewChallengeIssuer builds an issuer whose nonces live for ttl.
func NewChallengeIssuer(nonces NonceStore, ttl time.Duration) *ChallengeIssuer {
	return &ChallengeIssuer{nonces: nonces, ttl: ttl, now: time.Now}
}

// Issue builds a challenge for wallet. A new challenge replaces any
// outstanding one for the same wallet.
func (i *ChallengeIssuer) Issue(ctx context.Context, wallet string) (Challenge, error) {
	if !validation.IsWalletAddress(wallet) {
		return Challenge{}, apperr.InvalidInput("Invalid wallet address format")
	}
	wallet = identity.NormalizeWallet(wallet)

	n, err := rand.Int(rand.Reader, big.NewInt(nonceUpperBound))
	if err != nil {
		return Challenge{}, apperr.Internal("failed to generate nonce", err)
	}
	nonce := n.Int64()

	if err := i.nonces.Put(ctx, wallet, nonce, i.ttl); err != nil {
		return Challenge{}, apperr.Internal("failed to store nonce", err)
	}
	return Challenge{
		Message: fmt.Sprintf(challengeTemplate, wallet, nonce, i.now().UnixMilli()),
		Nonce:   nonce,
	}, nil
}

// Redeem consumes the outstanding nonce for wallet and checks it matches the
// one embedded in the signed message.
func (i *ChallengeIssuer) Redeem(ctx context.Context, wallet, message string) error {
	wallet = identity.NormalizeWallet(wallet)
	stored, err := i.nonces.Consume(ctx, wallet)
	if errors.Is(err, ErrNonceNotFound) {
		return invalidChallenge()
	}
	if err != nil {
		return apperr.Internal("failed to load nonce", err)
	}
	signed, ok := ParseNonce(message)
	if !ok || signed != stored {
		return invalidChallenge()
	}
	return nil
}

// ParseNonce extracts the nonce line from a challenge message.
func ParseNonce(message string) (int64, bool) {
	m := noncePattern.FindStringSubmatch(message)
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseInt(m[1], 10, 64)
	return n, err == nil
}

func invalidChallenge() error {
	return apperr.New(apperr.KindInvalidChallenge, "Invalid or expired challenge")
}
