package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/credora/credora-api/internal/apperr"
)

func newTestIssuer(t *testing.T) (*ChallengeIssuer, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewChallengeIssuer(NewRedisNonceStore(client), 5*time.Minute), mr
}

func TestIssueChallenge(t *testing.T) {
	issuer, mr := newTestIssuer(t)
	ctx := context.Background()

	ch, err := issuer.Issue(ctx, "0xABCDEF0000000000000000000000000000000001")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if ch.Nonce < 0 || ch.Nonce >= 1_000_000 {
		t.Fatalf("nonce out of range: %d", ch.Nonce)
	}
	if !strings.Contains(ch.Message, "Wallet: 0xabcdef0000000000000000000000000000000001") {
		t.Fatalf("expected lowercase wallet in message: %s", ch.Message)
	}
	if !strings.Contains(ch.Message, "gas fees") {
		t.Fatalf("expected gas disclaimer in message: %s", ch.Message)
	}
	if n, ok := ParseNonce(ch.Message); !ok || n != ch.Nonce {
		t.Fatalf("expected message nonce %d, got %d (%v)", ch.Nonce, n, ok)
	}

	key := "auth:nonce:0xabcdef0000000000000000000000000000000001"
	if !mr.Exists(key) {
		t.Fatalf("expected nonce to be stored")
	}
	if ttl := mr.TTL(key); ttl != 5*time.Minute {
		t.Fatalf("expected 5m ttl, got %s", ttl)
	}
}

func TestIssueChallengeRejectsBadAddress(t *testing.T) {
	issuer, _ := newTestIssuer(t)
	for _, addr := range []string{"", "0x123", "abcdef0000000000000000000000000000000001"} {
		if _, err := issuer.Issue(context.Background(), addr); apperr.KindOf(err) != apperr.KindInvalidInput {
			t.Fatalf("%q: expected invalid input, got %v", addr, err)
		}
	}
}

func TestRedeemConsumesNonceOnce(t *testing.T) {
	issuer, _ := newTestIssuer(t)
	ctx := context.Background()
	wallet := "0xabcdef0000000000000000000000000000000001"

	ch, err := issuer.Issue(ctx, wallet)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := issuer.Redeem(ctx, "0xABCDEF0000000000000000000000000000000001", ch.Message); err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if err := issuer.Redeem(ctx, wallet, ch.Message); apperr.KindOf(err) != apperr.KindInvalidChallenge {
		t.Fatalf("expected replay to fail, got %v", err)
	}
}

func TestRedeemRejectsStaleOrForeignNonce(t *testing.T) {
	issuer, mr := newTestIssuer(t)
	ctx := context.Background()
	wallet := "0xabcdef0000000000000000000000000000000001"

	first, _ := issuer.Issue(ctx, wallet)
	if _, err := issuer.Issue(ctx, wallet); err != nil {
		t.Fatalf("reissue: %v", err)
	}
	// Force the stored nonce to differ from the first message.
	stored, _ := ParseNonce(first.Message)
	_ = mr.Set("auth:nonce:"+wallet, "1000001")
	if stored == 1000001 {
		t.Fatalf("unexpected nonce collision")
	}
	if err := issuer.Redeem(ctx, wallet, first.Message); apperr.KindOf(err) != apperr.KindInvalidChallenge {
		t.Fatalf("expected stale message to fail, got %v", err)
	}

	ch, _ := issuer.Issue(ctx, wallet)
	mr.FastForward(6 * time.Minute)
	if err := issuer.Redeem(ctx, wallet, ch.Message); apperr.KindOf(err) != apperr.KindInvalidChallenge {
		t.Fatalf("expected expired nonce to fail, got %v", err)
	}

	if _, err := issuer.Issue(ctx, wallet); err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := issuer.Redeem(ctx, wallet, "no nonce here"); apperr.KindOf(err) != apperr.KindInvalidChallenge {
		t.Fatalf("expected message without nonce to fail, got %v", err)
	}
}

func TestParseNonce(t *testing.T) {
	if _, ok := ParseNonce("Wallet: 0x1\nTimestamp: 5"); ok {
		t.Fatalf("expected no nonce")
	}
	n, ok := ParseNonce("hello\nNonce: 42\nbye")
	if !ok || n != 42 {
		t.Fatalf("expected 42, got %d %v", n, ok)
	}
}
