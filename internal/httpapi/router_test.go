package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrEthical07/resumeauth"
	"github.com/MrEthical07/resumeauth/directory/memory"
	promexport "github.com/MrEthical07/resumeauth/metrics/export/prometheus"
	"github.com/MrEthical07/resumeauth/middleware"
	"github.com/MrEthical07/resumeauth/provider"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const password = "correct-password-123"

type apiEnv struct {
	engine  *resumeauth.Engine
	gateway *provider.MemoryGateway
	dir     *memory.Directory
	router  http.Handler
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := resumeauth.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.PasswordReset.RedirectURL = "https://app.example.com/reset"

	env := &apiEnv{gateway: provider.NewMemoryGateway(), dir: memory.New()}
	engine, err := resumeauth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithGateway(env.gateway).
		WithDirectory(env.dir).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	env.engine = engine

	metrics, err := promexport.Handler(promexport.NewCollector(engine))
	if err != nil {
		t.Fatalf("metrics handler: %v", err)
	}
	env.router = NewRouter(RouterDeps{
		Service:     engine,
		Metrics:     metrics,
		MetricsPath: "/metrics",
	})
	return env
}

func (env *apiEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "router-test")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
}

func expectCode(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("expected %d, got %d: %s", status, rec.Code, rec.Body.String())
	}
	var body middleware.ErrorBody
	decodeInto(t, rec, &body)
	if body.Code != code {
		t.Fatalf("expected code %s, got %s", code, body.Code)
	}
}

// signIn registers and confirms email, then signs in over HTTP.
func (env *apiEnv) signIn(t *testing.T, email string) resumeauth.AuthResult {
	t.Helper()

	rec := env.do(t, http.MethodPost, "/auth/register", "", resumeauth.CreateAccountInput{Email: email, Password: password})
	if rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	env.gateway.ConfirmEmail(email)

	rec = env.do(t, http.MethodPost, "/auth/signin", "", resumeauth.Credentials{Email: email, Password: password})
	if rec.Code != http.StatusOK {
		t.Fatalf("signin: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var res resumeauth.AuthResult
	decodeInto(t, rec, &res)
	return res
}

func TestRegisterConfirmAndSignIn(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(t, http.MethodPost, "/auth/register", "", resumeauth.CreateAccountInput{Email: "alice@example.com", Password: password})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var reg resumeauth.RegisterResult
	decodeInto(t, rec, &reg)
	if reg.Profile == nil || reg.Tokens != nil {
		t.Fatalf("unexpected register result: %+v", reg)
	}

	rec = env.do(t, http.MethodPost, "/auth/signin", "", resumeauth.Credentials{Email: "alice@example.com", Password: password})
	expectCode(t, rec, http.StatusForbidden, "EMAIL_NOT_CONFIRMED")

	token := env.gateway.IssueEmailToken("alice@example.com", provider.VerifySignup)
	rec = env.do(t, http.MethodPost, "/auth/confirm", "", confirmRequest{TokenHash: token, Type: provider.VerifySignup})
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodPost, "/auth/signin", "", resumeauth.Credentials{Email: "alice@example.com", Password: password})
	if rec.Code != http.StatusOK {
		t.Fatalf("signin: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var res resumeauth.AuthResult
	decodeInto(t, rec, &res)
	if res.Tokens == nil || res.Tokens.AccessToken == "" {
		t.Fatalf("expected tokens, got %+v", res)
	}

	rec = env.do(t, http.MethodGet, "/auth/me", res.Tokens.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("me: expected 200, got %d", rec.Code)
	}
	var me resumeauth.Profile
	decodeInto(t, rec, &me)
	if me.ID != reg.Profile.ID {
		t.Fatalf("expected profile %s, got %s", reg.Profile.ID, me.ID)
	}
}

func TestConfirmRejectedToken(t *testing.T) {
	env := newAPIEnv(t)

	rec := env.do(t, http.MethodPost, "/auth/confirm", "", confirmRequest{TokenHash: "nope", Type: provider.VerifySignup})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var res resumeauth.ConfirmResult
	decodeInto(t, rec, &res)
	if res.Verified {
		t.Fatal("expected verified false")
	}
}

func TestSessionRoutes(t *testing.T) {
	env := newAPIEnv(t)
	res := env.signIn(t, "alice@example.com")

	rec := env.do(t, http.MethodGet, "/auth/sessions", res.Tokens.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("sessions: expected 200, got %d", rec.Code)
	}
	var list []resumeauth.SessionInfo
	decodeInto(t, rec, &list)
	if len(list) != 1 || !list[0].Current || list[0].UserAgent != "router-test" || list[0].IP == "" {
		t.Fatalf("unexpected sessions: %+v", list)
	}

	rec = env.do(t, http.MethodPost, "/auth/refresh", "", refreshRequest{RefreshToken: res.Tokens.RefreshToken})
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var pair resumeauth.TokenPair
	decodeInto(t, rec, &pair)

	rec = env.do(t, http.MethodPost, "/auth/refresh", "", refreshRequest{RefreshToken: res.Tokens.RefreshToken})
	expectCode(t, rec, http.StatusUnauthorized, "TOKEN_REVOKED")

	rec = env.do(t, http.MethodPost, "/auth/signout", pair.AccessToken, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("signout: expected 204, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/auth/me", pair.AccessToken, nil)
	expectCode(t, rec, http.StatusUnauthorized, "TOKEN_REVOKED")
	if rec.Header().Get("WWW-Authenticate") != "Bearer" {
		t.Fatal("expected WWW-Authenticate header")
	}
}

func TestSignOutAllRoute(t *testing.T) {
	env := newAPIEnv(t)
	first := env.signIn(t, "alice@example.com")

	rec := env.do(t, http.MethodPost, "/auth/signin", "", resumeauth.Credentials{Email: "alice@example.com", Password: password})
	var second resumeauth.AuthResult
	decodeInto(t, rec, &second)

	rec = env.do(t, http.MethodPost, "/auth/signout/all", second.Tokens.AccessToken, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var out map[string]int
	decodeInto(t, rec, &out)
	if out["sessions_ended"] != 2 {
		t.Fatalf("expected 2 sessions ended, got %v", out)
	}

	rec = env.do(t, http.MethodGet, "/auth/me", first.Tokens.AccessToken, nil)
	expectCode(t, rec, http.StatusUnauthorized, "SESSION_NOT_FOUND")
}

func TestAdminRoutes(t *testing.T) {
	env := newAPIEnv(t)
	ctx := context.Background()

	user := env.signIn(t, "bob@example.com")
	rec := env.do(t, http.MethodGet, "/admin/users/"+user.Profile.ID+"/status", user.Tokens.AccessToken, nil)
	expectCode(t, rec, http.StatusForbidden, "ADMIN_REQUIRED")

	adminRes := env.signIn(t, "alice@example.com")
	role := resumeauth.RoleAdmin
	if _, err := env.dir.Update(ctx, adminRes.Profile.ID, resumeauth.ProfileUpdate{Role: &role}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	rec = env.do(t, http.MethodPost, "/auth/admin/signin", "", resumeauth.Credentials{Email: "alice@example.com", Password: password})
	if rec.Code != http.StatusOK {
		t.Fatalf("admin signin: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var admin resumeauth.AuthResult
	decodeInto(t, rec, &admin)
	token := admin.Tokens.AccessToken

	rec = env.do(t, http.MethodPut, "/admin/users/"+user.Profile.ID+"/status", token, statusRequest{Status: resumeauth.StatusSuspended})
	if rec.Code != http.StatusOK {
		t.Fatalf("set status: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/admin/users/"+user.Profile.ID+"/status", token, nil)
	var st statusResponse
	decodeInto(t, rec, &st)
	if st.Status != resumeauth.StatusSuspended {
		t.Fatalf("expected suspended, got %q", st.Status)
	}

	rec = env.do(t, http.MethodGet, "/auth/me", user.Tokens.AccessToken, nil)
	expectCode(t, rec, http.StatusForbidden, "ACCOUNT_SUSPENDED")

	rec = env.do(t, http.MethodPut, "/admin/users/"+user.Profile.ID+"/status", token, statusRequest{Status: "banned"})
	expectCode(t, rec, http.StatusBadRequest, "VALIDATION_ERROR")

	rec = env.do(t, http.MethodDelete, "/admin/users/"+user.Profile.ID, token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d: %s", rec.Code, rec.Body.String())
	}
	if env.dir.Len() != 1 {
		t.Fatalf("expected one remaining profile, got %d", env.dir.Len())
	}
}

func TestPasswordResetRoutes(t *testing.T) {
	env := newAPIEnv(t)
	env.signIn(t, "alice@example.com")

	rec := env.do(t, http.MethodPost, "/auth/password/reset", "", resetRequest{Email: "nobody@example.com"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
	var msg messageResponse
	decodeInto(t, rec, &msg)
	if msg.Message != resumeauth.PasswordResetMessage {
		t.Fatalf("unexpected message %q", msg.Message)
	}

	env.do(t, http.MethodPost, "/auth/password/reset", "", resetRequest{Email: "alice@example.com"})
	token := env.gateway.ResetToken("alice@example.com")

	rec = env.do(t, http.MethodPost, "/auth/password/update", "", resetCompleteRequest{TokenHash: token, Password: "brand-new-password"})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d: %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodPost, "/auth/signin", "", resumeauth.Credentials{Email: "alice@example.com", Password: "brand-new-password"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected sign-in with new password, got %d", rec.Code)
	}
}

func TestBadRequestBodies(t *testing.T) {
	env := newAPIEnv(t)

	for _, body := range []string{"", "{", `{"email":"a@example.com","password":"x","extra":1}`, "[]"} {
		req := httptest.NewRequest(http.MethodPost, "/auth/signin", strings.NewReader(body))
		rec := httptest.NewRecorder()
		env.router.ServeHTTP(rec, req)
		expectCode(t, rec, http.StatusBadRequest, "VALIDATION_ERROR")
	}

	big := `{"email":"` + strings.Repeat("a", maxBodyBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/auth/signin", strings.NewReader(big))
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	expectCode(t, rec, http.StatusBadRequest, "VALIDATION_ERROR")
}

func TestGuardedRoutesRequireToken(t *testing.T) {
	env := newAPIEnv(t)

	for _, path := range []string{"/auth/me", "/auth/sessions"} {
		rec := env.do(t, http.MethodGet, path, "", nil)
		expectCode(t, rec, http.StatusUnauthorized, "INVALID_TOKEN")
	}
	rec := env.do(t, http.MethodDelete, "/admin/users/u1", "", nil)
	expectCode(t, rec, http.StatusUnauthorized, "INVALID_TOKEN")
}

func TestHealthAndMetrics(t *testing.T) {
	env := newAPIEnv(t)
	env.signIn(t, "alice@example.com")

	rec := env.do(t, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health: expected 200, got %d", rec.Code)
	}

	rec = env.do(t, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics: expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"resumeauth_register_success_total 1", "resumeauth_signin_success_total 1"} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in metrics output", want)
		}
	}
}

func TestRouterRateLimit(t *testing.T) {
	env := newAPIEnv(t)
	rl := middleware.NewIPRateLimiter(0.001, 1, 0)
	defer rl.Stop()
	router := NewRouter(RouterDeps{Service: env.engine, RateLimiter: rl})

	send := func(path string) int {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{"email":"a@example.com","password":"x"}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := send("/auth/signin"); code == http.StatusTooManyRequests {
		t.Fatal("expected the first request to pass the limiter")
	}
	if code := send("/auth/signin"); code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", code)
	}

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected health to bypass the limiter, got %d", rec.Code)
	}
}

func TestForwardedHeadersIgnoredUnlessTrusted(t *testing.T) {
	register := func(router http.Handler, i int) int {
		body := fmt.Sprintf(`{"email":"user%d@example.com","password":%q}`, i, password)
		req := httptest.NewRequest(http.MethodPost, "/auth/register", strings.NewReader(body))
		req.RemoteAddr = "198.51.100.9:40000"
		req.Header.Set("X-Forwarded-For", fmt.Sprintf("203.0.113.%d", i))
		req.Header.Set("X-Real-IP", fmt.Sprintf("203.0.113.%d", i))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec.Code
	}

	env := newAPIEnv(t)
	for i := 1; i <= 3; i++ {
		if code := register(env.router, i); code != http.StatusCreated {
			t.Fatalf("attempt %d: expected 201, got %d", i, code)
		}
	}
	if code := register(env.router, 4); code != http.StatusTooManyRequests {
		t.Fatalf("expected forged headers to be ignored and 429 returned, got %d", code)
	}

	trusted := newAPIEnv(t)
	router := NewRouter(RouterDeps{Service: trusted.engine, TrustProxyHeaders: true})
	for i := 1; i <= 4; i++ {
		if code := register(router, i); code != http.StatusCreated {
			t.Fatalf("attempt %d behind a trusted proxy: expected 201, got %d", i, code)
		}
	}
}
