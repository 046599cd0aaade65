package resumeauth

import (
	"context"
	"errors"

	"github.com/MrEthical07/resumeauth/internal/audit"
	"github.com/MrEthical07/resumeauth/internal/limiters"
	"github.com/MrEthical07/resumeauth/provider"
)

// PasswordResetMessage is returned by every accepted reset request.
const PasswordResetMessage = "If an account exists for this email, a password reset link has been sent."

// RequestPasswordReset asks the provider to email a reset link. The answer is the
// same whether or not an account exists, and provider failures are only logged.
// Throttled requests get the same answer but no email is sent.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	if err := CheckResetConfig(e.config.PasswordReset.RedirectURL); err != nil {
		return "", err
	}
	email, err := ValidateEmailFormat(email)
	if err != nil {
		return "", err
	}

	rctx, rcancel := e.redisCtx(ctx)
	err = e.reset.CheckRequest(rctx, email, clientIPFromContext(ctx))
	rcancel()
	switch {
	case errors.Is(err, limiters.ErrResetRateLimited):
		e.metricInc(MetricPasswordResetThrottled)
		e.logger.WarnContext(ctx, "password reset request throttled")
		return PasswordResetMessage, nil
	case err != nil:
		// Fail open so the answer matches the normal one.
		e.logger.ErrorContext(ctx, "password reset throttle unavailable", "error", err)
	}

	pctx, cancel := e.providerCtx(ctx)
	err = e.gateway.SendPasswordResetEmail(pctx, email, e.config.PasswordReset.RedirectURL)
	cancel()
	if err != nil {
		e.logger.ErrorContext(ctx, "password reset email not sent", "error", err)
	}

	e.metricInc(MetricPasswordResetRequest)
	e.emitAudit(ctx, audit.EventPasswordResetSent, err == nil, "", "", nil, nil)
	return PasswordResetMessage, nil
}

// CompletePasswordReset redeems a recovery token and sets a new password. Every
// session of the user is ended afterwards.
func (e *Engine) CompletePasswordReset(ctx context.Context, tokenHash, newPassword string) error {
	if tokenHash == "" {
		return withMessage(ErrInvalidToken, "reset token is required")
	}
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	lctx, lcancel := e.redisCtx(ctx)
	err := e.reset.CheckConfirm(lctx, clientIPFromContext(ctx))
	lcancel()
	if errors.Is(err, limiters.ErrResetRateLimited) {
		e.metricInc(MetricPasswordResetThrottled)
		return e.resetFailed(ctx, "", ErrResetRateLimit)
	}
	if err != nil {
		return e.resetFailed(ctx, "", wrap(ErrStateUnavailable, err))
	}

	pctx, cancel := e.providerCtx(ctx)
	defer cancel()

	psess, err := e.gateway.VerifyEmailToken(pctx, tokenHash, provider.VerifyRecovery)
	if err != nil {
		return e.resetFailed(ctx, "", e.providerError(ctx, "verify_recovery_token", err))
	}
	userID := psess.Identity.ID

	if psess.Expired(e.now()) {
		psess, err = e.gateway.RefreshExternalSession(pctx, psess.RefreshToken)
		if err != nil {
			return e.resetFailed(ctx, userID, e.providerError(ctx, "refresh_external_session", err))
		}
	}

	if err := e.gateway.SetNewPassword(pctx, psess.AccessToken, newPassword); err != nil {
		return e.resetFailed(ctx, userID, e.providerError(ctx, "set_new_password", err))
	}

	if err := e.gateway.SignOutExternal(pctx, psess.AccessToken); err != nil {
		e.logger.WarnContext(ctx, "provider sign-out after reset failed", "user_id", userID, "error", err)
	}

	rctx, rcancel := e.redisCtx(ctx)
	defer rcancel()
	if n, err := e.sessions.DeleteAll(rctx, userID); err != nil {
		e.logger.ErrorContext(ctx, "sessions not cleared after password reset", "user_id", userID, "error", err)
	} else if n > 0 {
		e.logger.InfoContext(ctx, "sessions cleared after password reset", "user_id", userID, "count", n)
	}
	if err := e.signIn.Reset(rctx, psess.Identity.Email, clientIPFromContext(ctx)); err != nil {
		e.logger.WarnContext(ctx, "sign-in throttle reset failed", "user_id", userID, "error", err)
	}

	e.metricInc(MetricPasswordResetComplete)
	e.emitAudit(ctx, audit.EventPasswordReset, true, userID, "", nil, nil)
	return nil
}

func (e *Engine) resetFailed(ctx context.Context, userID string, err error) error {
	e.metricInc(MetricPasswordResetFailure)
	e.emitAudit(ctx, audit.EventPasswordReset, false, userID, "", err, nil)
	return err
}
