package resumeauth

import (
	"context"
	"time"
)

// Role is the privilege level stored on a Profile.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// AccountStatus gates every authentication-sensitive operation.
//
// A user is inactive from registration until the email is confirmed, active
// afterwards, and suspended only by an administrative action.
type AccountStatus string

const (
	StatusInactive  AccountStatus = "inactive"
	StatusActive    AccountStatus = "active"
	StatusSuspended AccountStatus = "suspended"
)

// Valid reports whether s is one of the three known states.
func (s AccountStatus) Valid() bool {
	switch s {
	case StatusInactive, StatusActive, StatusSuspended:
		return true
	}
	return false
}

// Profile is the local record of a user. ID always equals the identity provider's
// user id.
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ProfileUpdate carries the mutable Profile fields. Nil fields are left unchanged.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	Role      *Role
}

// AccountDirectory is the relational store of Profiles.
//
// FindByID and FindByEmail return (nil, nil) when no profile matches. Create returns
// [ErrUserExists] for a duplicate id or email, Update returns [ErrProfileNotFound]
// when the profile is missing, and Delete is idempotent.
type AccountDirectory interface {
	Create(ctx context.Context, p *Profile) (*Profile, error)
	FindByID(ctx context.Context, id string) (*Profile, error)
	FindByEmail(ctx context.Context, email string) (*Profile, error)
	Update(ctx context.Context, id string, upd ProfileUpdate) (*Profile, error)
	Delete(ctx context.Context, id string) error
}

// CreateAccountInput is a signup request. Role may be empty; only "user" is accepted
// otherwise.
type CreateAccountInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role,omitempty"`
}

// Credentials is an email and password pair presented at sign-in.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// DeviceInfo is optional client metadata recorded on the session.
type DeviceInfo struct {
	IP        string `json:"ip,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// TokenPair is an access token and a refresh token sharing one session.
type TokenPair struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	ExpiresIn        int64     `json:"expires_in"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	SessionID        string    `json:"session_id"`
}

// TokenType discriminates access from refresh tokens.
type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

// Claims is the verified payload of a token.
type Claims struct {
	UserID    string
	Email     string
	Role      Role
	SessionID string
	TokenID   string
	Type      TokenType
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// RegisterResult is returned by [Engine.Register]. Tokens stays nil until the
// account is confirmed.
type RegisterResult struct {
	Profile *Profile   `json:"profile"`
	Tokens  *TokenPair `json:"tokens,omitempty"`
	Message string     `json:"message"`
}

// AuthResult is returned by a successful sign-in.
type AuthResult struct {
	Profile *Profile   `json:"profile"`
	Tokens  *TokenPair `json:"tokens"`
}

// ConfirmResult is returned by [Engine.ConfirmEmail]. Verified is false when the
// token was rejected; the error is nil in that case.
type ConfirmResult struct {
	Verified bool     `json:"verified"`
	Profile  *Profile `json:"profile,omitempty"`
	Message  string   `json:"message"`
}

// SessionInfo describes one active session of a user.
type SessionInfo struct {
	SessionID    string    `json:"session_id"`
	IP           string    `json:"ip,omitempty"`
	UserAgent    string    `json:"user_agent,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	LastActivity time.Time `json:"last_activity"`
	Current      bool      `json:"current"`
}
