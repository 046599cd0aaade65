// Package provider is the gateway to the external identity service that owns
// credentials and identity records.
//
// Every call is a stateless network round trip. Failures are classified into the
// sentinel errors below so callers can map them without inspecting transport
// details; anything unclassified wraps [ErrUnavailable].
package provider

import (
	"context"
	"time"
)

// Verification types accepted by VerifyEmailToken.
const (
	VerifySignup      = "signup"
	VerifyEmail       = "email"
	VerifyRecovery    = "recovery"
	VerifyInvite      = "invite"
	VerifyMagicLink   = "magiclink"
	VerifyEmailChange = "email_change"
)

// Identity is the provider-owned identity record.
type Identity struct {
	ID               string
	Email            string
	EmailConfirmedAt *time.Time
}

// Confirmed reports whether the email address has been confirmed.
func (i *Identity) Confirmed() bool {
	return i != nil && i.EmailConfirmedAt != nil && !i.EmailConfirmedAt.IsZero()
}

// Session is a provider-side session. Its tokens are only used to call back into
// the provider; they are never handed to clients.
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Identity     Identity
}

// Expired reports whether the access token is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return s == nil || (!s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt))
}

// Gateway is the contract the identity core needs from the provider.
type Gateway interface {
	CreateAccount(ctx context.Context, email, password string, metadata map[string]string) (*Identity, error)
	VerifyCredentials(ctx context.Context, email, password string) (*Session, error)
	RefreshExternalSession(ctx context.Context, refreshToken string) (*Session, error)
	SignOutExternal(ctx context.Context, accessToken string) error
	VerifyEmailToken(ctx context.Context, tokenHash, verificationType string) (*Session, error)
	SendPasswordResetEmail(ctx context.Context, email, redirectURL string) error
	SetNewPassword(ctx context.Context, accessToken, newPassword string) error
	DeleteAccount(ctx context.Context, userID string) error
}
