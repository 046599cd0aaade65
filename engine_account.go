package resumeauth

import (
	"context"
	"fmt"

	"github.com/MrEthical07/resumeauth/internal/audit"
	"github.com/sethvargo/go-retry"
)

// DeleteAccount removes the profile, then the provider identity record, then every
// session and the account status.
//
// The identity deletion is retried a bounded number of times. If it still fails
// the orphaned identity is reported and EXTERNAL_SERVICE_ERROR is returned, but
// the local state is cleared regardless.
func (e *Engine) DeleteAccount(ctx context.Context, userID string) error {
	if userID == "" {
		return withMessage(ErrValidation, "user id is required")
	}

	dctx, cancel := e.directoryCtx(ctx)
	err := e.directory.Delete(dctx, userID)
	cancel()
	if err != nil {
		e.logger.ErrorContext(ctx, "profile deletion failed", "user_id", userID, "error", err)
		return wrap(ErrInternal, err)
	}

	identityErr := e.deleteIdentity(ctx, userID)

	rctx, rcancel := e.redisCtx(ctx)
	defer rcancel()
	if _, err := e.sessions.DeleteAll(rctx, userID); err != nil {
		e.logger.ErrorContext(ctx, "sessions not cleared on account deletion", "user_id", userID, "error", err)
	}
	if err := e.status.Delete(rctx, userID); err != nil {
		e.logger.ErrorContext(ctx, "account status not cleared on account deletion", "user_id", userID, "error", err)
	}

	if identityErr != nil {
		e.emitAudit(ctx, audit.EventAccountDeleted, false, userID, "", identityErr, nil)
		return identityErr
	}

	e.metricInc(MetricAccountDeleted)
	e.logger.InfoContext(ctx, "account deleted", "user_id", userID)
	e.emitAudit(ctx, audit.EventAccountDeleted, true, userID, "", nil, nil)
	return nil
}

func (e *Engine) deleteIdentity(ctx context.Context, userID string) error {
	backoff := retry.WithMaxRetries(e.config.Compensation.MaxRetries, retry.NewExponential(e.config.Compensation.BaseBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		pctx, cancel := e.providerCtx(ctx)
		defer cancel()
		if err := e.gateway.DeleteAccount(pctx, userID); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err == nil {
		return nil
	}

	e.logger.ErrorContext(ctx, "identity record not deleted", "user_id", userID, "error", err)
	if e.reporter != nil {
		e.reporter.CaptureError(ctx, fmt.Errorf("delete identity %s: %w", userID, err), map[string]string{
			"op":      "delete_account",
			"user_id": userID,
		})
	}
	return e.providerError(ctx, "delete_account", err)
}
