package jwt

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	gjwt "github.com/golang-jwt/jwt/v5"
)

func newEdKeys(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate ed25519 key: %v", err)
	}
	return pub, priv
}

func hsConfig() Config {
	return Config{
		AccessTTL:     15 * time.Minute,
		RefreshTTL:    7 * 24 * time.Hour,
		SigningMethod: MethodHS256,
		PrivateKey:    []byte("0123456789abcdef0123456789abcdef"),
		Issuer:        "resumeauth",
	}
}

func testSubject() Subject {
	return Subject{UserID: "u1", Email: "alice@example.com", Role: "user", SessionID: "s1"}
}

func TestIssueProducesDistinctPairSharingSession(t *testing.T) {
	m, err := NewManager(hsConfig())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	access, ac, err := m.Issue(TypeAccess, testSubject())
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}
	refresh, rc, err := m.Issue(TypeRefresh, testSubject())
	if err != nil {
		t.Fatalf("issue refresh: %v", err)
	}

	if ac.ID == rc.ID {
		t.Fatal("expected distinct jti values")
	}
	if ac.SID != rc.SID {
		t.Fatal("expected shared sid")
	}

	parsed, err := m.Parse(access)
	if err != nil {
		t.Fatalf("parse access: %v", err)
	}
	if parsed.Type != TypeAccess || parsed.Subject != "u1" || parsed.Email != "alice@example.com" || parsed.Role != "user" {
		t.Fatalf("unexpected access claims: %+v", parsed)
	}
	if got := parsed.ExpiresAt.Sub(parsed.IssuedAt.Time); got != 15*time.Minute {
		t.Fatalf("expected 15m access lifetime, got %v", got)
	}

	parsed, err = m.Parse(refresh)
	if err != nil {
		t.Fatalf("parse refresh: %v", err)
	}
	if parsed.Type != TypeRefresh {
		t.Fatalf("expected refresh typ, got %q", parsed.Type)
	}
	if got := parsed.ExpiresAt.Sub(parsed.IssuedAt.Time); got != 7*24*time.Hour {
		t.Fatalf("expected 7d refresh lifetime, got %v", got)
	}
}

func TestParseExpiredWrapsErrExpired(t *testing.T) {
	m, err := NewManager(hsConfig())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	m.now = func() time.Time { return time.Now().Add(-time.Hour) }
	access, _, err := m.Issue(TypeAccess, testSubject())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	m.now = time.Now

	if _, err := m.Parse(access); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}

	claims, err := m.ParseIgnoringExpiry(access)
	if err != nil {
		t.Fatalf("expected expired token to parse ignoring expiry: %v", err)
	}
	if claims.ID == "" || claims.SID != "s1" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestParseRejectsTamperedAndMalformed(t *testing.T) {
	m, err := NewManager(hsConfig())
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	access, _, err := m.Issue(TypeAccess, testSubject())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	other := hsConfig()
	other.PrivateKey = []byte("ffffffffffffffffffffffffffffffff")
	m2, _ := NewManager(other)
	if _, err := m2.Parse(access); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for foreign signature, got %v", err)
	}

	if _, err := m.Parse("not.a.jwt"); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
	if _, err := m.ParseIgnoringExpiry("garbage"); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed ignoring expiry, got %v", err)
	}
	if _, err := m2.ParseIgnoringExpiry(access); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected foreign signature rejected ignoring expiry, got %v", err)
	}
}

func TestParseRejectsMissingSessionClaims(t *testing.T) {
	cfg := hsConfig()
	m, err := NewManager(cfg)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := Claims{Type: TypeAccess, RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "u1",
		ID:        "j1",
		Issuer:    cfg.Issuer,
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	tok, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString(cfg.PrivateKey)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := m.Parse(tok); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for missing sid, got %v", err)
	}
}

func TestParseRejectsWrongAlgorithm(t *testing.T) {
	pub, _ := newEdKeys(t)
	m, err := NewManager(Config{AccessTTL: time.Minute, RefreshTTL: time.Hour, SigningMethod: MethodEd25519, PublicKey: pub})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := Claims{SID: "s1", Type: TypeAccess, RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "u1",
		ID:        "j1",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	token, err := gjwt.NewWithClaims(gjwt.SigningMethodHS256, claims).SignedString([]byte("secret-secret-secret-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := m.Parse(token); err == nil {
		t.Fatal("expected wrong algorithm to be rejected")
	}
}

func TestParseIssuerAudienceAndLeeway(t *testing.T) {
	_, priv := newEdKeys(t)
	m, err := NewManager(Config{
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv,
		PublicKey:     priv.Public().(ed25519.PublicKey),
		Issuer:        "resumeauth",
		Audience:      "api",
		Leeway:        30 * time.Second,
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	access, _, err := m.Issue(TypeAccess, testSubject())
	if err != nil {
		t.Fatalf("issue access: %v", err)
	}
	if _, err := m.Parse(access); err != nil {
		t.Fatalf("expected valid token to parse: %v", err)
	}

	sign := func(iss, aud string, exp time.Duration) string {
		claims := Claims{SID: "s1", Type: TypeAccess, RegisteredClaims: gjwt.RegisteredClaims{
			Subject:   "u1",
			ID:        "j1",
			Issuer:    iss,
			Audience:  gjwt.ClaimStrings{aud},
			ExpiresAt: gjwt.NewNumericDate(time.Now().Add(exp)),
			IssuedAt:  gjwt.NewNumericDate(time.Now().Add(-time.Minute)),
		}}
		s, _ := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, claims).SignedString(priv)
		return s
	}

	if _, err := m.Parse(sign("other", "api", time.Minute)); err == nil {
		t.Fatal("expected wrong issuer to fail")
	}
	if _, err := m.Parse(sign("resumeauth", "other-api", time.Minute)); err == nil {
		t.Fatal("expected wrong audience to fail")
	}
	if _, err := m.Parse(sign("resumeauth", "api", -15*time.Second)); err != nil {
		t.Fatalf("expected token within leeway to pass: %v", err)
	}
	if _, err := m.Parse(sign("resumeauth", "api", -2*time.Minute)); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected expired token to fail with ErrExpired, got %v", err)
	}
}

func TestParseUnknownKidFails(t *testing.T) {
	pub1, priv1 := newEdKeys(t)
	pub2, _ := newEdKeys(t)
	m, err := NewManager(Config{
		AccessTTL:     time.Minute,
		RefreshTTL:    time.Hour,
		SigningMethod: MethodEd25519,
		PrivateKey:    priv1,
		PublicKey:     pub1,
		KeyID:         "k1",
		VerifyKeys:    map[string][]byte{"k1": pub1},
	})
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	claims := Claims{SID: "s1", Type: TypeAccess, RegisteredClaims: gjwt.RegisteredClaims{
		Subject:   "u1",
		ID:        "j1",
		ExpiresAt: gjwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	tok := gjwt.NewWithClaims(gjwt.SigningMethodEdDSA, claims)
	tok.Header["kid"] = "k2"
	token, err := tok.SignedString(priv1)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := m.Parse(token); err == nil {
		t.Fatal("expected unknown kid failure")
	}

	good, _, err := m.Issue(TypeAccess, testSubject())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := m.Parse(good); err != nil {
		t.Fatalf("expected known kid token to pass: %v", err)
	}

	m2, _ := NewManager(Config{AccessTTL: time.Minute, RefreshTTL: time.Hour, SigningMethod: MethodEd25519, PublicKey: pub2, VerifyKeys: map[string][]byte{"k2": pub2}})
	if _, err := m2.Parse(good); err == nil {
		t.Fatal("expected parse failure with mismatched key set")
	}
}

func TestNewManagerRejectsBadConfig(t *testing.T) {
	cases := map[string]Config{
		"zero ttl":         {SigningMethod: MethodHS256, PrivateKey: hsConfig().PrivateKey},
		"short secret":     {AccessTTL: time.Minute, RefreshTTL: time.Hour, SigningMethod: MethodHS256, PrivateKey: []byte("short")},
		"refresh < access": {AccessTTL: time.Hour, RefreshTTL: time.Minute, SigningMethod: MethodHS256, PrivateKey: hsConfig().PrivateKey},
		"unknown method":   {AccessTTL: time.Minute, RefreshTTL: time.Hour, SigningMethod: "rs512"},
	}
	for name, cfg := range cases {
		if _, err := NewManager(cfg); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
