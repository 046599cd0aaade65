package resumeauth

import (
	"context"

	"github.com/MrEthical07/resumeauth/internal/audit"
)

// SetAccountStatus changes the status of userID. Suspending an account also ends
// all of its sessions, so outstanding access tokens fail on the next request.
func (e *Engine) SetAccountStatus(ctx context.Context, userID string, status AccountStatus) error {
	if userID == "" || !status.Valid() {
		return withMessage(ErrValidation, "user id and a known status are required")
	}

	rctx, cancel := e.redisCtx(ctx)
	defer cancel()

	previous, err := e.tokens.AccountStatus(rctx, userID)
	if err != nil {
		return err
	}
	if err := e.status.Set(rctx, userID, string(status)); err != nil {
		return wrap(ErrStateUnavailable, err)
	}

	if status == StatusSuspended {
		e.metricInc(MetricAccountSuspended)
		n, err := e.sessions.DeleteAll(rctx, userID)
		if err != nil {
			return wrap(ErrStateUnavailable, err)
		}
		e.logger.InfoContext(ctx, "account suspended", "user_id", userID, "sessions_ended", n)
	}

	e.emitAudit(ctx, audit.EventStatusChanged, true, userID, "", nil, func() map[string]string {
		return map[string]string{"from": string(previous), "to": string(status)}
	})
	return nil
}

// AccountStatus returns the status of userID. Users without a stored status are
// reported as inactive.
func (e *Engine) AccountStatus(ctx context.Context, userID string) (AccountStatus, error) {
	rctx, cancel := e.redisCtx(ctx)
	defer cancel()
	return e.tokens.AccountStatus(rctx, userID)
}
