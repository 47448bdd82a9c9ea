package routes

import (
	"context"
	"crypto/ecdsa"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"

	"github.com/credora/credora-api/internal/config"
	"github.com/credora/credora-api/internal/identity"
	"github.com/credora/credora-api/internal/logging"
	"github.com/credora/credora-api/internal/metrics"
	"github.com/credora/credora-api/internal/middleware"
	"github.com/credora/credora-api/internal/notification"
	"github.com/credora/credora-api/internal/session"
)

type capturingNotifier struct {
	mu   sync.Mutex
	msgs []notification.Message
}

func (n *capturingNotifier) Send(_ context.Context, m notification.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, m)
	return nil
}

func (n *capturingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.msgs)
}

// lastToken extracts the verification token from the most recent mail.
func (n *capturingNotifier) lastToken(t *testing.T) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.msgs) == 0 {
		t.Fatalf("no mail captured")
	}
	body := n.msgs[len(n.msgs)-1].Body
	link, err := url.Parse(body[strings.LastIndex(body, "http"):])
	if err != nil {
		t.Fatalf("parse link: %v", err)
	}
	return link.Query().Get("token")
}

type testServer struct {
	app  *fiber.App
	repo identity.Repository
	mail *capturingNotifier
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mr := miniredis.RunT(t)
	cache := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = cache.Close() })

	cfg := config.Config{
		AppName:       "Credora",
		AppEnv:        "ci",
		JWTSecret:     "routes-test-secret-0123456789abcdef",
		SessionSecret: "routes-test-session-secret",
		TokenTTL:      time.Hour,
		SessionTTL:    time.Hour,
		ChallengeTTL:  5 * time.Minute,
		OTPTTL:        5 * time.Minute,
		FrontendURL:   "http://localhost:3000",
		RateLimit:     config.RateLimitConfig{Max: 1000, AuthMax: 1000, Window: 15 * time.Minute},
	}
	srv := &testServer{repo: identity.NewMemoryRepository(), mail: &capturingNotifier{}}
	srv.app = fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(logging.Discard(), false),
		UnescapePath: true,
	})
	err := Setup(srv.app, Deps{
		Cfg:      cfg,
		Cache:    cache,
		Users:    srv.repo,
		Notifier: srv.mail,
		Metrics:  metrics.New(),
		Logger:   logging.Discard(),
		Version:  "test",
	})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	return srv
}

// client is a browser with its own cookie jar.
type client struct {
	srv     *testServer
	cookies map[string]string
}

func (s *testServer) client() *client {
	return &client{srv: s, cookies: map[string]string{}}
}

type response struct {
	status int
	body   map[string]any
}

func (r response) errorMessage() string {
	msg, _ := r.body["error"].(string)
	return msg
}

func (r response) user() map[string]any {
	u, _ := r.body["user"].(map[string]any)
	return u
}

func (c *client) do(t *testing.T, method, path string, payload any, headers ...string) response {
	t.Helper()
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		body = strings.NewReader(string(raw))
	}
	req := httptest.NewRequest(method, path, body)
	if payload != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	for name, value := range c.cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}

	resp, err := c.srv.app.Test(req, 5000)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	for _, ck := range resp.Cookies() {
		expired := ck.MaxAge < 0 || (!ck.Expires.IsZero() && ck.Expires.Before(time.Now()))
		if ck.Value == "" || expired {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck.Value
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	out := response{status: resp.StatusCode, body: map[string]any{}}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &out.body)
	}
	return out
}

type wallet struct {
	key     *ecdsa.PrivateKey
	address string
}

func newWallet(t *testing.T) wallet {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}
	return wallet{key: key, address: strings.ToLower(crypto.PubkeyToAddress(key.PublicKey).Hex())}
}

func (w wallet) sign(t *testing.T, message string) string {
	t.Helper()
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), w.key)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return hexutil.Encode(sig)
}

func (c *client) challenge(t *testing.T, w wallet) string {
	t.Helper()
	res := c.do(t, http.MethodPost, "/api/auth/challenge", fiber.Map{"walletAddress": w.address})
	if res.status != http.StatusOK {
		t.Fatalf("challenge: %d %v", res.status, res.body)
	}
	return res.body["message"].(string)
}

func (c *client) login(t *testing.T, w wallet, email string) response {
	t.Helper()
	message := c.challenge(t, w)
	return c.do(t, http.MethodPost, "/api/auth/login", fiber.Map{
		"email":         email,
		"walletAddress": w.address,
		"signature":     w.sign(t, message),
		"message":       message,
		"trust":         true,
	})
}

func (c *client) mustLogin(t *testing.T, w wallet, email string) map[string]any {
	t.Helper()
	res := c.login(t, w, email)
	if res.status != http.StatusOK || res.body["success"] != true {
		t.Fatalf("login: %d %v", res.status, res.body)
	}
	return res.user()
}

func seedUser(t *testing.T, srv *testServer, w wallet, u identity.User) identity.User {
	t.Helper()
	u.WalletAddress = w.address
	if u.Name == "" {
		u.Name = identity.DefaultName(w.address)
	}
	if u.UserType == "" {
		u.UserType = identity.UserTypeUser
	}
	u.Preferences = identity.DefaultPreferences()
	created, err := srv.repo.Create(context.Background(), u)
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return created
}

func TestChallengeEndpoint(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client()

	res := c.do(t, http.MethodPost, "/api/auth/challenge", fiber.Map{"walletAddress": "0xABCDEF0000000000000000000000000000000001"})
	if res.status != http.StatusOK {
		t.Fatalf("expected 200, got %d %v", res.status, res.body)
	}
	msg, _ := res.body["message"].(string)
	if !strings.Contains(msg, "0xabcdef0000000000000000000000000000000001") {
		t.Fatalf("expected normalized wallet in message: %q", msg)
	}
	if _, ok := res.body["nonce"].(float64); !ok {
		t.Fatalf("expected numeric nonce, got %v", res.body["nonce"])
	}

	res = c.do(t, http.MethodPost, "/api/auth/challenge", fiber.Map{"walletAddress": "0x123"})
	if res.status != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad address, got %d", res.status)
	}
}

func TestLoginCreatesUserOnce(t *testing.T) {
	srv := newTestServer(t)
	w := newWallet(t)

	first := srv.client().mustLogin(t, w, "")
	second := srv.client().mustLogin(t, w, "")
	if first["id"] == nil || first["id"] != second["id"] {
		t.Fatalf("expected the same user on both logins: %v vs %v", first["id"], second["id"])
	}
	if first["isVerified"] != false || first["userType"] != "user" {
		t.Fatalf("unexpected new user defaults %v", first)
	}
	if srv.mail.count() != 0 {
		t.Fatalf("no mail expected without an email address")
	}
}

func TestLoginRejectsSignatureOverDifferentMessage(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client()
	w := newWallet(t)

	message := c.challenge(t, w)
	res := c.do(t, http.MethodPost, "/api/auth/login", fiber.Map{
		"walletAddress": w.address,
		"signature":     w.sign(t, "some other message"),
		"message":       message,
	})
	if res.status != http.StatusUnauthorized || res.errorMessage() != "Invalid signature" {
		t.Fatalf("expected 401 Invalid signature, got %d %v", res.status, res.body)
	}
	if _, err := srv.repo.FindByWalletAddress(context.Background(), w.address); err == nil {
		t.Fatalf("no user should be created")
	}

	res = c.do(t, http.MethodPost, "/api/auth/login", fiber.Map{"walletAddress": w.address})
	if res.status != http.StatusBadRequest || res.errorMessage() != "Missing required fields: walletAddress, signature, message" {
		t.Fatalf("expected missing fields, got %d %v", res.status, res.body)
	}

	res = c.do(t, http.MethodPost, "/api/auth/login", fiber.Map{
		"walletAddress": w.address,
		"signature":     "0x1234",
		"message":       message,
	})
	if res.status != http.StatusUnauthorized || res.errorMessage() != "Invalid signature format" {
		t.Fatalf("expected invalid signature format, got %d %v", res.status, res.body)
	}
}

func TestLoginRejectsReplayedChallenge(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client()
	w := newWallet(t)

	message := c.challenge(t, w)
	body := fiber.Map{"walletAddress": w.address, "signature": w.sign(t, message), "message": message}
	if res := c.do(t, http.MethodPost, "/api/auth/login", body); res.status != http.StatusOK {
		t.Fatalf("first login: %d %v", res.status, res.body)
	}
	res := c.do(t, http.MethodPost, "/api/auth/login", body)
	if res.status != http.StatusUnauthorized {
		t.Fatalf("expected replay to be rejected, got %d %v", res.status, res.body)
	}
}

func TestEmailVerificationFlow(t *testing.T) {
	srv := newTestServer(t)
	browser := srv.client()
	w := newWallet(t)

	user := browser.mustLogin(t, w, "Holder@Example.com")
	if user["email"] != "holder@example.com" || user["isVerified"] != false {
		t.Fatalf("unexpected user after login %v", user)
	}
	if srv.mail.count() != 1 {
		t.Fatalf("expected one verification mail, got %d", srv.mail.count())
	}
	token := srv.mail.lastToken(t)

	// Another browser cannot redeem the link.
	other := srv.client()
	res := other.do(t, http.MethodGet, "/api/auth/verify?token="+url.QueryEscape(token), nil)
	if res.status != http.StatusBadRequest || res.errorMessage() != "Invalid session data" {
		t.Fatalf("expected cross-session verify to fail, got %d %v", res.status, res.body)
	}

	res = browser.do(t, http.MethodGet, "/api/auth/verify?token=garbage", nil)
	if res.status != http.StatusBadRequest || res.errorMessage() != "Invalid or expired token" {
		t.Fatalf("expected invalid token, got %d %v", res.status, res.body)
	}

	res = browser.do(t, http.MethodGet, "/api/auth/verify?token="+url.QueryEscape(token), nil)
	if res.status != http.StatusOK || res.user()["isVerified"] != true {
		t.Fatalf("expected verification to succeed, got %d %v", res.status, res.body)
	}

	// A second click in the same session succeeds while the binding lives.
	res = browser.do(t, http.MethodGet, "/api/auth/verify?token="+url.QueryEscape(token), nil)
	if res.status != http.StatusOK || res.user()["isVerified"] != true {
		t.Fatalf("expected repeated verify to succeed, got %d %v", res.status, res.body)
	}

	profile := browser.do(t, http.MethodGet, "/api/auth/profile", nil)
	if profile.status != http.StatusOK || profile.user()["isVerified"] != true {
		t.Fatalf("expected verified profile, got %d %v", profile.status, profile.body)
	}

	// Logging out drops the binding.
	if res = browser.do(t, http.MethodPost, "/api/auth/logout", nil); res.status != http.StatusOK {
		t.Fatalf("logout: %d %v", res.status, res.body)
	}
	res = browser.do(t, http.MethodGet, "/api/auth/verify?token="+url.QueryEscape(token), nil)
	if res.status != http.StatusBadRequest || res.errorMessage() != "Invalid session data" {
		t.Fatalf("expected verify after logout to fail, got %d %v", res.status, res.body)
	}

	// Verified users are not mailed again.
	browser.mustLogin(t, w, "")
	if srv.mail.count() != 1 {
		t.Fatalf("expected no further mail, got %d", srv.mail.count())
	}
}

func TestProfileRequiresSession(t *testing.T) {
	srv := newTestServer(t)
	res := srv.client().do(t, http.MethodGet, "/api/auth/profile", nil)
	if res.status != http.StatusUnauthorized || res.errorMessage() != "Authentication token is required" {
		t.Fatalf("expected 401, got %d %v", res.status, res.body)
	}
}

func TestUpdateProfile(t *testing.T) {
	srv := newTestServer(t)
	other := newWallet(t)
	seedUser(t, srv, other, identity.User{Email: "taken@example.com"})

	c := srv.client()
	c.mustLogin(t, newWallet(t), "")

	res := c.do(t, http.MethodPut, "/api/auth/profile", fiber.Map{
		"name":        "  Ada Lovelace  ",
		"profile":     fiber.Map{"bio": "Engineer", "website": "https://ada.example"},
		"preferences": fiber.Map{"publicProfile": true},
	})
	if res.status != http.StatusOK {
		t.Fatalf("update: %d %v", res.status, res.body)
	}
	u := res.user()
	prefs, _ := u["preferences"].(map[string]any)
	if u["name"] != "Ada Lovelace" || prefs["publicProfile"] != true || prefs["notifications"] != true {
		t.Fatalf("unexpected profile %v", u)
	}

	res = c.do(t, http.MethodPut, "/api/auth/profile", fiber.Map{"email": "Taken@example.com"})
	if res.status != http.StatusBadRequest || res.errorMessage() != "Email already in use" {
		t.Fatalf("expected email conflict, got %d %v", res.status, res.body)
	}
	res = c.do(t, http.MethodPut, "/api/auth/profile", fiber.Map{"name": "A"})
	if res.status != http.StatusBadRequest || res.errorMessage() != "Name must be between 2 and 100 characters" {
		t.Fatalf("expected name validation, got %d %v", res.status, res.body)
	}

	profile := c.do(t, http.MethodGet, "/api/auth/profile", nil)
	if profile.user()["name"] != "Ada Lovelace" || profile.user()["email"] != nil {
		t.Fatalf("failed updates must not change the profile: %v", profile.user())
	}
}

func TestRefreshLogoutAndDelete(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client()
	w := newWallet(t)
	c.mustLogin(t, w, "")

	res := c.do(t, http.MethodPost, "/api/auth/refresh", nil)
	token, _ := res.body["token"].(string)
	if res.status != http.StatusOK || token == "" {
		t.Fatalf("refresh: %d %v", res.status, res.body)
	}
	if res := c.do(t, http.MethodGet, "/api/auth/profile", nil); res.status != http.StatusOK {
		t.Fatalf("session should still authenticate after refresh, got %d", res.status)
	}

	res = c.do(t, http.MethodPost, "/api/auth/logout", nil)
	if res.status != http.StatusOK || res.body["message"] != "Logged out successfully" {
		t.Fatalf("logout: %d %v", res.status, res.body)
	}
	if res := c.do(t, http.MethodGet, "/api/auth/profile", nil); res.status != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", res.status)
	}

	c.mustLogin(t, w, "")
	res = c.do(t, http.MethodDelete, "/api/auth/account", nil)
	if res.status != http.StatusOK || res.body["message"] != "Account deleted successfully" {
		t.Fatalf("delete: %d %v", res.status, res.body)
	}
	if res := c.do(t, http.MethodGet, "/api/auth/profile", nil); res.status != http.StatusUnauthorized {
		t.Fatalf("expected 401 after delete, got %d", res.status)
	}
	check := c.do(t, http.MethodGet, "/api/auth/check-wallet/"+w.address, nil)
	if check.body["available"] != true || check.body["registered"] != false {
		t.Fatalf("expected wallet to be free after delete: %v", check.body)
	}
}

func TestAvailabilityChecks(t *testing.T) {
	srv := newTestServer(t)
	w := newWallet(t)
	seedUser(t, srv, w, identity.User{Email: "someone@example.com"})
	c := srv.client()

	res := c.do(t, http.MethodGet, "/api/auth/check-wallet/"+strings.ToUpper(w.address[2:]), nil)
	if res.status != http.StatusBadRequest {
		t.Fatalf("expected 400 for address without prefix, got %d", res.status)
	}
	res = c.do(t, http.MethodGet, "/api/auth/check-wallet/0x"+strings.ToUpper(w.address[2:]), nil)
	if res.status != http.StatusOK || res.body["registered"] != true {
		t.Fatalf("expected registered wallet, got %d %v", res.status, res.body)
	}
	res = c.do(t, http.MethodGet, "/api/auth/check-email/someone%40example.com", nil)
	if res.status != http.StatusOK || res.body["available"] != false {
		t.Fatalf("expected taken email, got %d %v", res.status, res.body)
	}
	res = c.do(t, http.MethodGet, "/api/auth/check-email/free@example.com", nil)
	if res.body["available"] != true {
		t.Fatalf("expected free email, got %v", res.body)
	}
	res = c.do(t, http.MethodGet, "/api/auth/check-email/not-an-email", nil)
	if res.status != http.StatusBadRequest || res.errorMessage() != "Invalid email format" {
		t.Fatalf("expected invalid email, got %d %v", res.status, res.body)
	}
}

func TestCredentialRoutesEnforceRoles(t *testing.T) {
	srv := newTestServer(t)
	holderWallet, issuerWallet, strangerWallet := newWallet(t), newWallet(t), newWallet(t)
	seedUser(t, srv, issuerWallet, identity.User{UserType: identity.UserTypeInstitution, IsVerified: true, Email: "registrar@uni.example"})

	holder := srv.client()
	holder.mustLogin(t, holderWallet, "")
	issuer := srv.client()
	issuer.mustLogin(t, issuerWallet, "")
	stranger := srv.client()
	stranger.mustLogin(t, strangerWallet, "")

	path := "/api/users/" + holderWallet.address + "/credentials"
	cred := fiber.Map{"tokenId": "42", "credentialType": "degree", "onChain": true}

	res := holder.do(t, http.MethodPost, path, cred)
	if res.status != http.StatusForbidden || res.errorMessage() != "Verified institution access required" {
		t.Fatalf("expected holder to be refused, got %d %v", res.status, res.body)
	}

	res = issuer.do(t, http.MethodPost, path, cred, "Idempotency-Key", "issue-42")
	if res.status != http.StatusCreated {
		t.Fatalf("issue: %d %v", res.status, res.body)
	}
	replay := issuer.do(t, http.MethodPost, path, cred, "Idempotency-Key", "issue-42")
	if replay.status != http.StatusCreated {
		t.Fatalf("expected idempotent replay, got %d %v", replay.status, replay.body)
	}

	res = holder.do(t, http.MethodGet, path, nil)
	creds, _ := res.body["credentials"].([]any)
	if res.status != http.StatusOK || len(creds) != 1 {
		t.Fatalf("expected one credential, got %d %v", res.status, res.body)
	}
	if first, _ := creds[0].(map[string]any); first["issuer"] != issuerWallet.address {
		t.Fatalf("expected issuer to default to the caller, got %v", first["issuer"])
	}

	if res := stranger.do(t, http.MethodGet, path, nil); res.status != http.StatusForbidden || res.errorMessage() != "Access denied" {
		t.Fatalf("expected stranger to be refused, got %d %v", res.status, res.body)
	}
	if res := stranger.do(t, http.MethodDelete, path+"/42", nil); res.status != http.StatusForbidden {
		t.Fatalf("expected stranger delete to be refused, got %d", res.status)
	}

	res = holder.do(t, http.MethodDelete, path+"/42", nil)
	creds, _ = res.body["credentials"].([]any)
	if res.status != http.StatusOK || len(creds) != 0 {
		t.Fatalf("expected credential removed, got %d %v", res.status, res.body)
	}
}

func TestAdminLookup(t *testing.T) {
	srv := newTestServer(t)
	adminWallet, userWallet := newWallet(t), newWallet(t)
	seedUser(t, srv, adminWallet, identity.User{IsAdmin: true, IsVerified: true})
	seedUser(t, srv, userWallet, identity.User{})

	admin := srv.client()
	admin.mustLogin(t, adminWallet, "")
	user := srv.client()
	user.mustLogin(t, userWallet, "")

	path := "/api/admin/users/" + userWallet.address
	if res := user.do(t, http.MethodGet, path, nil); res.status != http.StatusForbidden || res.errorMessage() != "Admin access required" {
		t.Fatalf("expected non-admin to be refused, got %d %v", res.status, res.body)
	}
	res := admin.do(t, http.MethodGet, path, nil)
	if res.status != http.StatusOK || res.user()["isAdmin"] != false || res.user()["credentialsOwned"] == nil {
		t.Fatalf("unexpected admin view %d %v", res.status, res.body)
	}

	// Admins may read any holder's credentials.
	if res := admin.do(t, http.MethodGet, "/api/users/"+userWallet.address+"/credentials", nil); res.status != http.StatusOK {
		t.Fatalf("expected admin override, got %d %v", res.status, res.body)
	}
	if res := admin.do(t, http.MethodGet, "/api/admin/users/0x0000000000000000000000000000000000000009", nil); res.status != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown wallet, got %d", res.status)
	}
}

func TestVerifiedInstitutionsDirectory(t *testing.T) {
	srv := newTestServer(t)
	seedUser(t, srv, newWallet(t), identity.User{Name: "Uni", UserType: identity.UserTypeInstitution, IsVerified: true, Email: "uni@example.com"})
	seedUser(t, srv, newWallet(t), identity.User{Name: "Pending", UserType: identity.UserTypeInstitution, Email: "pending@example.com"})

	listing := func(res response) []any {
		list, _ := res.body["institutions"].([]any)
		return list
	}

	anon := srv.client().do(t, http.MethodGet, "/api/institutions/verified", nil)
	list := listing(anon)
	if anon.status != http.StatusOK || len(list) != 1 {
		t.Fatalf("expected one verified institution, got %d %v", anon.status, anon.body)
	}
	if entry, _ := list[0].(map[string]any); entry["name"] != "Uni" || entry["email"] != nil {
		t.Fatalf("anonymous listing must hide email: %v", entry)
	}

	c := srv.client()
	c.mustLogin(t, newWallet(t), "")
	list = listing(c.do(t, http.MethodGet, "/api/institutions/verified", nil))
	if entry, _ := list[0].(map[string]any); entry["email"] != "uni@example.com" {
		t.Fatalf("authenticated listing should include email: %v", entry)
	}
}

func TestServiceEndpoints(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client()

	health := c.do(t, http.MethodGet, "/health", nil)
	services, _ := health.body["services"].(map[string]any)
	if health.status != http.StatusOK || health.body["status"] != "OK" || services["redis"] != "ok" {
		t.Fatalf("unexpected health %d %v", health.status, health.body)
	}
	if api := c.do(t, http.MethodGet, "/api", nil); api.status != http.StatusOK || api.body["endpoints"] == nil {
		t.Fatalf("unexpected descriptor %d %v", api.status, api.body)
	}
	missing := c.do(t, http.MethodGet, "/api/nope", nil)
	if missing.status != http.StatusNotFound || missing.errorMessage() != "Route not found" {
		t.Fatalf("expected JSON 404, got %d %v", missing.status, missing.body)
	}

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	resp, err := srv.app.Test(req)
	if err != nil {
		t.Fatalf("metrics: %v", err)
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(raw), "credora_http_requests_total") {
		t.Fatalf("expected prometheus exposition, got %d", resp.StatusCode)
	}
}

func TestSessionCookieIsEncrypted(t *testing.T) {
	srv := newTestServer(t)
	c := srv.client()
	c.mustLogin(t, newWallet(t), "")

	value, ok := c.cookies[session.CookieName]
	if !ok {
		t.Fatalf("expected session cookie")
	}
	// Session ids are UUIDs; the encrypted cookie must not expose one.
	if len(value) == 36 && strings.Count(value, "-") == 4 {
		t.Fatalf("session cookie looks unencrypted: %q", value)
	}
}
