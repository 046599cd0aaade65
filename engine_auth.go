package resumeauth

import (
	"context"
	"errors"

	"github.com/MrEthical07/resumeauth/internal/audit"
	"github.com/MrEthical07/resumeauth/internal/rate"
)

// Authenticate signs a user in and issues a token pair on a new session.
//
// An unknown email and a wrong password produce the same INVALID_CREDENTIALS
// error. The account status is checked only after the credentials are accepted.
// An inactive account whose email the provider reports as confirmed is promoted
// to active here.
func (e *Engine) Authenticate(ctx context.Context, creds Credentials, device *DeviceInfo) (*AuthResult, error) {
	return e.authenticate(ctx, creds, device, false)
}

// AuthenticateAdmin is Authenticate restricted to profiles with the admin role.
func (e *Engine) AuthenticateAdmin(ctx context.Context, creds Credentials, device *DeviceInfo) (*AuthResult, error) {
	return e.authenticate(ctx, creds, device, true)
}

func (e *Engine) authenticate(ctx context.Context, creds Credentials, device *DeviceInfo, adminOnly bool) (*AuthResult, error) {
	email := NormalizeEmail(creds.Email)
	if email == "" || creds.Password == "" {
		return nil, withMessage(ErrValidation, "email and password are required")
	}
	dev := e.deviceFrom(ctx, device)

	rctx, cancel := e.redisCtx(ctx)
	err := e.signIn.Check(rctx, email, dev.IP)
	cancel()
	if err != nil {
		if errors.Is(err, rate.ErrRateLimited) {
			e.metricInc(MetricSignInRateLimited)
			e.signInFailed(ctx, "", ErrSignInRateLimit)
			return nil, ErrSignInRateLimit
		}
		return nil, wrap(ErrStateUnavailable, err)
	}

	profile, err := e.findProfileByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if err := CheckSignInExists(profile); err != nil {
		e.recordSignInFailure(ctx, email, dev.IP)
		e.signInFailed(ctx, "", err)
		return nil, err
	}

	pctx, pcancel := e.providerCtx(ctx)
	psess, err := e.gateway.VerifyCredentials(pctx, email, creds.Password)
	pcancel()
	if err != nil {
		err = e.providerError(ctx, "verify_credentials", err)
		if errors.Is(err, ErrInvalidCredentials) {
			e.recordSignInFailure(ctx, email, dev.IP)
		}
		e.signInFailed(ctx, profile.ID, err)
		return nil, err
	}
	if psess.Identity.ID != profile.ID {
		e.logger.ErrorContext(ctx, "identity and profile ids differ", "user_id", profile.ID, "identity_id", psess.Identity.ID)
		e.signInFailed(ctx, profile.ID, ErrInternal)
		return nil, ErrInternal
	}

	if adminOnly {
		if err := CheckAdmin(profile); err != nil {
			e.signInFailed(ctx, profile.ID, err)
			return nil, err
		}
	}

	if err := e.admitStatus(ctx, profile.ID, psess.Identity.Confirmed()); err != nil {
		e.signInFailed(ctx, profile.ID, err)
		return nil, err
	}

	rctx, cancel = e.redisCtx(ctx)
	if err := e.signIn.Reset(rctx, email, dev.IP); err != nil {
		e.logger.WarnContext(ctx, "sign-in throttle reset failed", "user_id", profile.ID, "error", err)
	}
	cancel()

	pair, err := e.tokens.Issue(ctx, IssueRequest{
		UserID: profile.ID,
		Email:  profile.Email,
		Role:   profile.Role,
		Device: dev,
	})
	if err != nil {
		e.signInFailed(ctx, profile.ID, err)
		return nil, err
	}

	e.metricInc(MetricSignInSuccess)
	e.emitAudit(ctx, audit.EventSignIn, true, profile.ID, pair.SessionID, nil, func() map[string]string {
		if adminOnly {
			return map[string]string{"admin": "true"}
		}
		return nil
	})

	return &AuthResult{Profile: profile, Tokens: pair}, nil
}

// admitStatus applies the sign-in status gate and promotes a confirmed inactive
// account to active. Suspension is never lifted here.
func (e *Engine) admitStatus(ctx context.Context, userID string, confirmed bool) error {
	rctx, cancel := e.redisCtx(ctx)
	defer cancel()

	status, err := e.tokens.AccountStatus(rctx, userID)
	if err != nil {
		return err
	}
	if err := CheckAccountStatus(status, GateSignIn); err != nil {
		return err
	}

	if status == StatusActive {
		if err := e.status.Touch(rctx, userID); err != nil {
			e.logger.WarnContext(ctx, "account status renewal failed", "user_id", userID, "error", err)
		}
		return nil
	}

	if !confirmed {
		return ErrEmailNotConfirmed
	}
	if err := e.status.Set(rctx, userID, string(StatusActive)); err != nil {
		return wrap(ErrStateUnavailable, err)
	}
	e.logger.InfoContext(ctx, "account activated on sign-in", "user_id", userID)
	e.emitAudit(ctx, audit.EventStatusChanged, true, userID, "", nil, func() map[string]string {
		return map[string]string{"from": string(status), "to": string(StatusActive)}
	})
	return nil
}

func (e *Engine) recordSignInFailure(ctx context.Context, email, ip string) {
	rctx, cancel := e.redisCtx(ctx)
	defer cancel()
	if err := e.signIn.RecordFailure(rctx, email, ip); err != nil {
		e.logger.WarnContext(ctx, "sign-in failure not recorded", "error", err)
	}
}

func (e *Engine) signInFailed(ctx context.Context, userID string, err error) {
	e.metricInc(MetricSignInFailure)
	e.emitAudit(ctx, audit.EventSignInFailed, false, userID, "", err, nil)
}

// Refresh rotates a refresh token into a new pair on the same session. A refresh
// token is good for exactly one successful rotation.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if refreshToken == "" {
		return nil, withMessage(ErrValidation, "refresh token is required")
	}

	pair, claims, err := e.tokens.Rotate(ctx, refreshToken)
	if err != nil {
		e.metricInc(MetricRefreshFailure)
		if errors.Is(err, ErrTokenRevoked) {
			e.metricInc(MetricRefreshReuseRejected)
		}
		userID := ""
		if claims != nil {
			userID = claims.UserID
		}
		e.emitAudit(ctx, audit.EventRefreshed, false, userID, "", err, nil)
		return nil, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, audit.EventRefreshed, true, claims.UserID, pair.SessionID, nil, nil)
	return pair, nil
}

// SignOut revokes the access token and ends its session. An empty token is a
// no-op. Expired tokens are accepted so a client can always sign out.
func (e *Engine) SignOut(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}

	claims, err := e.tokens.Revoke(ctx, accessToken)
	if err != nil {
		return err
	}

	rctx, cancel := e.redisCtx(ctx)
	defer cancel()
	if err := e.sessions.Delete(rctx, claims.UserID, claims.SessionID); err != nil {
		return wrap(ErrStateUnavailable, err)
	}

	e.metricInc(MetricSignOut)
	e.emitAudit(ctx, audit.EventSignedOut, true, claims.UserID, claims.SessionID, nil, nil)
	return nil
}

// SignOutAll ends every session of the token's owner and revokes the presented
// token. It returns the number of sessions removed.
func (e *Engine) SignOutAll(ctx context.Context, accessToken string) (int, error) {
	claims, err := e.tokens.Verify(ctx, accessToken, TokenAccess)
	if err != nil {
		return 0, err
	}
	if _, err := e.tokens.Revoke(ctx, accessToken); err != nil {
		return 0, err
	}

	rctx, cancel := e.redisCtx(ctx)
	defer cancel()
	n, err := e.sessions.DeleteAll(rctx, claims.UserID)
	if err != nil {
		return 0, wrap(ErrStateUnavailable, err)
	}

	e.metricInc(MetricSignOutAll)
	e.emitAudit(ctx, audit.EventSignedOutAll, true, claims.UserID, claims.SessionID, nil, nil)
	return n, nil
}

// CurrentUser returns the profile behind a valid access token.
func (e *Engine) CurrentUser(ctx context.Context, accessToken string) (*Profile, error) {
	claims, err := e.VerifyAccess(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	profile, err := e.findProfileByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, ErrProfileNotFound
	}
	return profile, nil
}

// ListSessions returns the live sessions of the token's owner, most recently
// active first. The session of the presented token is flagged Current.
func (e *Engine) ListSessions(ctx context.Context, accessToken string) ([]SessionInfo, error) {
	claims, err := e.VerifyAccess(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	rctx, cancel := e.redisCtx(ctx)
	defer cancel()
	list, err := e.sessions.List(rctx, claims.UserID)
	if err != nil {
		return nil, wrap(ErrStateUnavailable, err)
	}

	out := make([]SessionInfo, 0, len(list))
	for _, s := range list {
		out = append(out, SessionInfo{
			SessionID:    s.SessionID,
			IP:           s.IP,
			UserAgent:    s.UserAgent,
			CreatedAt:    s.CreatedAt,
			LastActivity: s.LastActivity,
			Current:      s.SessionID == claims.SessionID,
		})
	}
	return out, nil
}
