package resumeauth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/resumeauth/internal/audit"
	"github.com/MrEthical07/resumeauth/internal/limiters"
	"github.com/MrEthical07/resumeauth/internal/rate"
	"github.com/MrEthical07/resumeauth/internal/saga"
	"github.com/MrEthical07/resumeauth/internal/stores"
	"github.com/MrEthical07/resumeauth/provider"
	"github.com/MrEthical07/resumeauth/session"
)

// ErrorReporter receives failures that need out-of-band attention, such as an
// identity record left behind by a failed cleanup.
type ErrorReporter interface {
	CaptureError(ctx context.Context, err error, tags map[string]string)
}

// Engine is the identity and session lifecycle manager.
//
// Engine instances are configured once through [Builder] and are safe for
// concurrent use afterwards.
type Engine struct {
	config     Config
	tokens     *TokenService
	sessions   *session.Store
	status     *stores.AccountStatusStore
	regLimiter *limiters.RegistrationLimiter
	signIn     *rate.Limiter
	reset      *limiters.PasswordResetLimiter
	saga       *saga.Runner
	gateway    provider.Gateway
	directory  AccountDirectory
	audit      *audit.Dispatcher
	metrics    *Metrics
	logger     *slog.Logger
	reporter   ErrorReporter
	now        func() time.Time
}

// Close flushes queued audit events. It is safe to call more than once.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events dropped under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Tokens exposes the token service.
func (e *Engine) Tokens() *TokenService {
	return e.tokens
}

// VerifyAccess verifies an access token including the blacklist, status and
// session checks. It is the check the HTTP guard runs on every request.
func (e *Engine) VerifyAccess(ctx context.Context, accessToken string) (*Claims, error) {
	start := time.Now()
	claims, err := e.tokens.Verify(ctx, accessToken, TokenAccess)
	e.metrics.Observe(MetricVerifyLatency, time.Since(start))
	if err != nil {
		e.metricInc(MetricVerifyFailure)
		return nil, err
	}
	return claims, nil
}

// Ping reports whether the shared session state is reachable.
func (e *Engine) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, e.config.Timeouts.Redis)
	defer cancel()
	if _, err := e.sessions.Ping(ctx); err != nil {
		return wrap(ErrStateUnavailable, err)
	}
	return nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) providerCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.config.Timeouts.Provider)
}

func (e *Engine) directoryCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.config.Timeouts.Directory)
}

func (e *Engine) redisCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.config.Timeouts.Redis)
}

func (e *Engine) findProfileByEmail(ctx context.Context, email string) (*Profile, error) {
	dctx, cancel := e.directoryCtx(ctx)
	defer cancel()
	p, err := e.directory.FindByEmail(dctx, email)
	if err != nil {
		e.logger.ErrorContext(ctx, "directory lookup failed", "op", "find_by_email", "error", err)
		return nil, wrap(ErrInternal, err)
	}
	return p, nil
}

func (e *Engine) findProfileByID(ctx context.Context, id string) (*Profile, error) {
	dctx, cancel := e.directoryCtx(ctx)
	defer cancel()
	p, err := e.directory.FindByID(dctx, id)
	if err != nil {
		e.logger.ErrorContext(ctx, "directory lookup failed", "op", "find_by_id", "user_id", id, "error", err)
		return nil, wrap(ErrInternal, err)
	}
	return p, nil
}

// providerError maps a gateway failure to the error taxonomy. Unrecognized
// failures become EXTERNAL_SERVICE_ERROR and are logged with op.
func (e *Engine) providerError(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, provider.ErrDuplicate):
		return ErrUserExists
	case errors.Is(err, provider.ErrWeakPassword):
		return wrap(ErrWeakPassword, err)
	case errors.Is(err, provider.ErrInvalidCredentials):
		return ErrInvalidCredentials
	case errors.Is(err, provider.ErrEmailNotConfirmed):
		return ErrEmailNotConfirmed
	case errors.Is(err, provider.ErrInvalidToken):
		return ErrInvalidToken
	}
	e.logger.ErrorContext(ctx, "identity provider call failed", "op", op, "error", err)
	return wrap(ErrExternalService, err)
}

func (e *Engine) deviceFrom(ctx context.Context, device *DeviceInfo) *DeviceInfo {
	out := DeviceInfo{IP: clientIPFromContext(ctx), UserAgent: userAgentFromContext(ctx)}
	if device != nil {
		if device.IP != "" {
			out.IP = device.IP
		}
		if device.UserAgent != "" {
			out.UserAgent = device.UserAgent
		}
	}
	return &out
}

func (e *Engine) onSessionsEvicted(ctx context.Context, userID string, sessionIDs []string) {
	for _, sid := range sessionIDs {
		e.logger.InfoContext(ctx, "session evicted", "user_id", userID, "session_id", sid)
		e.emitAudit(ctx, audit.EventSessionEvicted, true, userID, sid, nil, nil)
	}
}
