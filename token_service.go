package resumeauth

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/resumeauth/internal/stores"
	"github.com/MrEthical07/resumeauth/jwt"
	"github.com/MrEthical07/resumeauth/session"
)

// TokenService issues, verifies, rotates and revokes token pairs.
//
// Tokens are self-contained, but every verification re-checks the mutable facts
// they snapshot: the blacklist, the account status and, for access tokens, the
// session. Any state read that fails or times out fails closed.
type TokenService struct {
	jwt       *jwt.Manager
	sessions  *session.Store
	blacklist *stores.Blacklist
	status    *stores.AccountStatusStore
	timeout   time.Duration
	metrics   *Metrics
	now       func() time.Time

	// onEvict is called with the ids of sessions evicted by the per-user cap.
	onEvict func(ctx context.Context, userID string, sessionIDs []string)
}

// IssueRequest describes the subject of a new token pair. An empty SessionID
// creates a new session first.
type IssueRequest struct {
	UserID    string
	Email     string
	Role      Role
	SessionID string
	Device    *DeviceInfo
}

// Issue signs a fresh access and refresh token bound to one session.
func (t *TokenService) Issue(ctx context.Context, req IssueRequest) (*TokenPair, error) {
	if req.UserID == "" {
		return nil, withMessage(ErrInternal, "token subject is missing")
	}

	sid := req.SessionID
	if sid == "" {
		data := session.Data{UserID: req.UserID, Email: req.Email, Role: string(req.Role)}
		if req.Device != nil {
			data.IP = req.Device.IP
			data.UserAgent = req.Device.UserAgent
		}

		rctx, cancel := context.WithTimeout(ctx, t.timeout)
		sess, evicted, err := t.sessions.Create(rctx, data)
		cancel()
		if len(evicted) > 0 {
			t.metrics.Add(MetricSessionEvicted, uint64(len(evicted)))
			if t.onEvict != nil {
				t.onEvict(ctx, req.UserID, evicted)
			}
		}
		if err != nil {
			return nil, wrap(ErrStateUnavailable, err)
		}
		t.metrics.Inc(MetricSessionCreated)
		sid = sess.SessionID
	}

	sub := jwt.Subject{UserID: req.UserID, Email: req.Email, Role: string(req.Role), SessionID: sid}
	access, ac, err := t.jwt.Issue(jwt.TypeAccess, sub)
	if err != nil {
		return nil, wrap(ErrInternal, err)
	}
	refresh, rc, err := t.jwt.Issue(jwt.TypeRefresh, sub)
	if err != nil {
		return nil, wrap(ErrInternal, err)
	}

	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		TokenType:        "Bearer",
		ExpiresIn:        int64(t.jwt.TTL(jwt.TypeAccess) / time.Second),
		ExpiresAt:        ac.ExpiresAt.Time,
		RefreshExpiresAt: rc.ExpiresAt.Time,
		SessionID:        sid,
	}, nil
}

// Verify checks the token's signature and expiry, then in order: the blacklist,
// the account status, and for access tokens that the session still exists. An
// empty expected type accepts either token type.
func (t *TokenService) Verify(ctx context.Context, token string, expected TokenType) (*Claims, error) {
	raw, err := t.jwt.Parse(token)
	if err != nil {
		if errors.Is(err, jwt.ErrExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	claims := toClaims(raw)
	if expected != "" && claims.Type != expected {
		return nil, withMessage(ErrInvalidToken, "unexpected token type")
	}

	rctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	revoked, err := t.blacklist.IsRevoked(rctx, claims.TokenID)
	if err != nil {
		return nil, wrap(ErrStateUnavailable, err)
	}
	if revoked {
		return nil, ErrTokenRevoked
	}

	status, err := t.AccountStatus(rctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	gate := GateAccess
	if claims.Type == TokenRefresh {
		gate = GateRefresh
	}
	if err := CheckAccountStatus(status, gate); err != nil {
		return nil, err
	}

	if claims.Type == TokenAccess {
		if _, err := t.sessions.Get(rctx, claims.UserID, claims.SessionID); err != nil {
			if errors.Is(err, session.ErrNotFound) {
				return nil, ErrSessionNotFound
			}
			return nil, wrap(ErrStateUnavailable, err)
		}
	}

	return claims, nil
}

// Rotate exchanges a refresh token for a new pair bound to the same session. The
// presented token is blacklisted before the new pair is returned, and only one of
// several concurrent rotations of the same token can succeed.
func (t *TokenService) Rotate(ctx context.Context, refreshToken string) (*TokenPair, *Claims, error) {
	claims, err := t.Verify(ctx, refreshToken, TokenRefresh)
	if err != nil {
		return nil, nil, err
	}

	rctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	if _, err := t.sessions.Get(rctx, claims.UserID, claims.SessionID); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, claims, ErrSessionNotFound
		}
		return nil, claims, wrap(ErrStateUnavailable, err)
	}

	// A refresh token that verified is not expired, but its remaining lifetime may
	// round down to zero; keep the entry for at least a second.
	ttl := claims.ExpiresAt.Sub(t.now())
	if ttl < time.Second {
		ttl = time.Second
	}
	won, err := t.blacklist.Revoke(rctx, claims.TokenID, ttl)
	if err != nil {
		return nil, claims, wrap(ErrStateUnavailable, err)
	}
	if !won {
		return nil, claims, ErrTokenRevoked
	}
	_ = t.status.Touch(rctx, claims.UserID)

	pair, err := t.Issue(ctx, IssueRequest{
		UserID:    claims.UserID,
		Email:     claims.Email,
		Role:      claims.Role,
		SessionID: claims.SessionID,
	})
	if err != nil {
		return nil, claims, err
	}
	return pair, claims, nil
}

// Revoke blacklists the token for the rest of its natural lifetime. Expired tokens
// are accepted and need no entry; the signature is still verified. The decoded
// claims are returned so callers can retire the session.
func (t *TokenService) Revoke(ctx context.Context, token string) (*Claims, error) {
	raw, err := t.jwt.ParseIgnoringExpiry(token)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims := toClaims(raw)

	ttl := claims.ExpiresAt.Sub(t.now())
	if ttl <= 0 {
		return claims, nil
	}

	rctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	if _, err := t.blacklist.Revoke(rctx, claims.TokenID, ttl); err != nil {
		return claims, wrap(ErrStateUnavailable, err)
	}
	t.metrics.Inc(MetricTokenRevoked)
	return claims, nil
}

// AccountStatus reads the status of userID. A missing entry reads as inactive.
func (t *TokenService) AccountStatus(ctx context.Context, userID string) (AccountStatus, error) {
	v, err := t.status.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, stores.ErrStatusNotFound) {
			return StatusInactive, nil
		}
		return "", wrap(ErrStateUnavailable, err)
	}
	status := AccountStatus(v)
	if !status.Valid() {
		return StatusInactive, nil
	}
	return status, nil
}

func toClaims(c *jwt.Claims) *Claims {
	out := &Claims{
		UserID:    c.Subject,
		Email:     c.Email,
		Role:      Role(c.Role),
		SessionID: c.SID,
		TokenID:   c.ID,
		Type:      TokenType(c.Type),
	}
	if c.IssuedAt != nil {
		out.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		out.ExpiresAt = c.ExpiresAt.Time
	}
	return out
}
