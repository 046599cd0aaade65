package resumeauth

import (
	"context"
	"errors"

	"github.com/MrEthical07/resumeauth/internal/audit"
)

// ConfirmEmail redeems an email-confirmation token and activates the account.
//
// A rejected or expired token is not an error: the result reports Verified false.
// Suspended accounts stay suspended.
func (e *Engine) ConfirmEmail(ctx context.Context, tokenHash, verificationType string) (*ConfirmResult, error) {
	if err := CheckVerificationType(verificationType); err != nil {
		return nil, err
	}
	if tokenHash == "" {
		return nil, withMessage(ErrValidation, "confirmation token is required")
	}

	pctx, cancel := e.providerCtx(ctx)
	psess, err := e.gateway.VerifyEmailToken(pctx, tokenHash, verificationType)
	cancel()
	if err != nil {
		err = e.providerError(ctx, "verify_email_token", err)
		e.metricInc(MetricEmailConfirmFailure)
		e.emitAudit(ctx, audit.EventEmailConfirmed, false, "", "", err, nil)
		if errors.Is(err, ErrInvalidToken) {
			return &ConfirmResult{Verified: false, Message: "The confirmation link is invalid or has expired."}, nil
		}
		return nil, err
	}
	userID := psess.Identity.ID

	rctx, rcancel := e.redisCtx(ctx)
	status, err := e.tokens.AccountStatus(rctx, userID)
	if err != nil {
		rcancel()
		return nil, err
	}
	if status != StatusSuspended && status != StatusActive {
		if err := e.status.Set(rctx, userID, string(StatusActive)); err != nil {
			rcancel()
			return nil, wrap(ErrStateUnavailable, err)
		}
	}
	rcancel()

	pctx, cancel = e.providerCtx(ctx)
	if err := e.gateway.SignOutExternal(pctx, psess.AccessToken); err != nil {
		e.logger.WarnContext(ctx, "provider sign-out after confirmation failed", "user_id", userID, "error", err)
	}
	cancel()

	profile, err := e.findProfileByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	e.metricInc(MetricEmailConfirmed)
	e.emitAudit(ctx, audit.EventEmailConfirmed, true, userID, "", nil, func() map[string]string {
		return map[string]string{"type": verificationType}
	})
	return &ConfirmResult{
		Verified: true,
		Profile:  profile,
		Message:  "Email confirmed. You can now sign in.",
	}, nil
}
