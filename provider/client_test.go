package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func newTestClient(t *testing.T, h http.HandlerFunc) (*Client, *bytes.Buffer) {
	t.Helper()
	server := httptest.NewServer(h)
	t.Cleanup(server.Close)

	var buf bytes.Buffer
	c := NewClient(server.Client(), newTestLogger(&buf), Config{
		BaseURL:    server.URL + "/auth/v1/",
		APIKey:     "anon-key",
		ServiceKey: "service-key",
	})
	return c, &buf
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClientCreateAccount(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/auth/v1/signup" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("apikey") != "anon-key" {
			t.Errorf("missing apikey header")
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["email"] != "alice@example.com" || body["password"] != "s3cret-pass" {
			t.Errorf("unexpected body %v", body)
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": "11111111-2222-3333-4444-555555555555", "email": "alice@example.com"})
	})

	ident, err := c.CreateAccount(context.Background(), "alice@example.com", "s3cret-pass", map[string]string{"first_name": "Alice"})
	if err != nil {
		t.Fatalf("CreateAccount failed: %v", err)
	}
	if ident.ID != "11111111-2222-3333-4444-555555555555" || ident.Confirmed() {
		t.Fatalf("unexpected identity: %+v", ident)
	}
}

func TestClientCreateAccountErrors(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   map[string]any
		want   error
	}{
		{"duplicate code", 422, map[string]any{"code": 422, "error_code": "user_already_exists", "msg": "User already registered"}, ErrDuplicate},
		{"duplicate message", 400, map[string]any{"msg": "User already registered"}, ErrDuplicate},
		{"weak password", 422, map[string]any{"error_code": "weak_password", "msg": "Password should be at least 6 characters"}, ErrWeakPassword},
		{"server error", 503, map[string]any{"msg": "upstream"}, ErrUnavailable},
		{"throttled", 429, map[string]any{"error_code": "over_request_rate_limit"}, ErrUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tc.status, tc.body)
			})
			_, err := c.CreateAccount(context.Background(), "a@example.com", "pw", nil)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			var apiErr *APIError
			if !errors.As(err, &apiErr) || apiErr.Status != tc.status {
				t.Fatalf("expected APIError with status %d, got %v", tc.status, err)
			}
		})
	}
}

func TestClientVerifyCredentials(t *testing.T) {
	confirmed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/auth/v1/token" || r.URL.Query().Get("grant_type") != "password" {
			t.Errorf("unexpected request %s?%s", r.URL.Path, r.URL.RawQuery)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "right" {
			writeJSON(w, 400, map[string]any{"error": "invalid_grant", "error_description": "Invalid login credentials"})
			return
		}
		writeJSON(w, 200, map[string]any{
			"access_token":  "pa",
			"refresh_token": "pr",
			"expires_in":    3600,
			"user":          map[string]any{"id": "u1", "email": "a@example.com", "email_confirmed_at": confirmed},
		})
	})

	sess, err := c.VerifyCredentials(context.Background(), "a@example.com", "right")
	if err != nil {
		t.Fatalf("VerifyCredentials failed: %v", err)
	}
	if sess.AccessToken != "pa" || sess.RefreshToken != "pr" || sess.Identity.ID != "u1" || !sess.Identity.Confirmed() {
		t.Fatalf("unexpected session: %+v", sess)
	}
	if sess.Expired(time.Now()) {
		t.Fatal("expected fresh session")
	}

	if _, err := c.VerifyCredentials(context.Background(), "a@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestClientVerifyCredentialsUnknown4xxFallsBackToInvalidCredentials(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 400, map[string]any{"error": "invalid_grant"})
	})
	if _, err := c.VerifyCredentials(context.Background(), "a@example.com", "x"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestClientEmailNotConfirmed(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 400, map[string]any{"error_code": "email_not_confirmed", "msg": "Email not confirmed"})
	})
	if _, err := c.VerifyCredentials(context.Background(), "a@example.com", "x"); !errors.Is(err, ErrEmailNotConfirmed) {
		t.Fatalf("expected ErrEmailNotConfirmed, got %v", err)
	}
}

func TestClientRefreshAndVerifyTokenFallback(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 400, map[string]any{"msg": "bad request"})
	})
	if _, err := c.RefreshExternalSession(context.Background(), "r"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken from refresh, got %v", err)
	}
	if _, err := c.VerifyEmailToken(context.Background(), "h", VerifySignup); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken from verify, got %v", err)
	}
}

func TestClientVerifyEmailTokenRequest(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if r.URL.Path != "/auth/v1/verify" || body["type"] != "recovery" || body["token_hash"] != "hash-1" {
			t.Errorf("unexpected verify request %s %v", r.URL.Path, body)
		}
		writeJSON(w, 200, map[string]any{
			"access_token": "pa",
			"expires_at":   time.Now().Add(time.Hour).Unix(),
			"user":         map[string]any{"id": "u1", "email": "a@example.com"},
		})
	})
	sess, err := c.VerifyEmailToken(context.Background(), "hash-1", VerifyRecovery)
	if err != nil {
		t.Fatalf("VerifyEmailToken failed: %v", err)
	}
	if sess.Identity.ID != "u1" {
		t.Fatalf("unexpected identity %+v", sess.Identity)
	}
}

func TestClientPasswordResetAndUpdate(t *testing.T) {
	var sawRecover, sawUpdate bool
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/v1/recover":
			sawRecover = r.URL.Query().Get("redirect_to") == "https://app.example.com/reset"
			w.WriteHeader(http.StatusOK)
		case "/auth/v1/user":
			sawUpdate = r.Method == http.MethodPut && r.Header.Get("Authorization") == "Bearer provider-access"
			writeJSON(w, 200, map[string]any{"id": "u1"})
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	if err := c.SendPasswordResetEmail(context.Background(), "a@example.com", "https://app.example.com/reset"); err != nil {
		t.Fatalf("SendPasswordResetEmail failed: %v", err)
	}
	if err := c.SetNewPassword(context.Background(), "provider-access", "n3w-password"); err != nil {
		t.Fatalf("SetNewPassword failed: %v", err)
	}
	if !sawRecover || !sawUpdate {
		t.Fatalf("expected both calls to be well-formed: recover=%v update=%v", sawRecover, sawUpdate)
	}
}

func TestClientDeleteAccountUsesServiceKeyAndToleratesMissing(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || !strings.HasPrefix(r.URL.Path, "/auth/v1/admin/users/") {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer service-key" {
			t.Errorf("expected service key bearer")
		}
		writeJSON(w, 404, map[string]any{"error_code": "user_not_found"})
	})
	if err := c.DeleteAccount(context.Background(), "u1"); err != nil {
		t.Fatalf("expected missing account delete to succeed, got %v", err)
	}
}

func TestClientSignOutToleratesInvalidSession(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, 401, map[string]any{"error_code": "bad_jwt"})
	})
	if err := c.SignOutExternal(context.Background(), "stale"); err != nil {
		t.Fatalf("expected nil for invalid provider session, got %v", err)
	}
}

func TestClientTransportFailureIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	var buf bytes.Buffer
	c := NewClient(http.DefaultClient, newTestLogger(&buf), Config{BaseURL: url})
	if _, err := c.VerifyCredentials(context.Background(), "a@example.com", "pw"); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if !strings.Contains(buf.String(), "provider request failed") {
		t.Fatalf("expected transport failure to be logged, got %q", buf.String())
	}
}

func TestClientHonorsContextDeadline(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := c.CreateAccount(ctx, "a@example.com", "pw", nil); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected timeout to surface as ErrUnavailable, got %v", err)
	}
}
