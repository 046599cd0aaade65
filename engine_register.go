package resumeauth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/resumeauth/internal/audit"
	"github.com/MrEthical07/resumeauth/internal/saga"
	"github.com/MrEthical07/resumeauth/provider"
)

const sagaRegister = "register"

// Register creates an identity record with the provider and the matching profile.
//
// Business rules run first, cheapest first, and a rule failure never reaches the
// provider or the directory. If the profile cannot be created the identity record
// is deleted again on a best-effort basis; a failed cleanup is logged and reported
// but the caller still sees PROFILE_CREATION_FAILED. No tokens are issued; the
// account stays inactive until the email is confirmed.
func (e *Engine) Register(ctx context.Context, in CreateAccountInput) (*RegisterResult, error) {
	ip := clientIPFromContext(ctx)

	email, role, err := e.checkRegistration(ctx, ip, in)
	if err != nil {
		e.registerFailed(ctx, err, email)
		return nil, err
	}

	var (
		identity *provider.Identity
		profile  *Profile
	)
	steps := []saga.Step{
		{
			Name: "create_identity",
			Run: func(ctx context.Context) error {
				pctx, cancel := e.providerCtx(ctx)
				defer cancel()
				ident, err := e.gateway.CreateAccount(pctx, email, in.Password, map[string]string{
					"first_name": strings.TrimSpace(in.FirstName),
					"last_name":  strings.TrimSpace(in.LastName),
					"role":       string(role),
				})
				if err != nil {
					return e.providerError(ctx, "create_account", err)
				}
				if ident == nil || ident.ID == "" {
					return wrap(ErrExternalService, errors.New("provider returned no identity id"))
				}
				identity = ident
				return nil
			},
			Compensate: func(ctx context.Context) error {
				pctx, cancel := e.providerCtx(ctx)
				defer cancel()
				if err := e.gateway.DeleteAccount(pctx, identity.ID); err != nil {
					return fmt.Errorf("delete identity %s: %w", identity.ID, err)
				}
				e.metricInc(MetricCompensationApplied)
				return nil
			},
		},
		{
			Name: "create_profile",
			Run: func(ctx context.Context) error {
				dctx, cancel := e.directoryCtx(ctx)
				defer cancel()
				p, err := e.directory.Create(dctx, &Profile{
					ID:        identity.ID,
					Email:     email,
					FirstName: strings.TrimSpace(in.FirstName),
					LastName:  strings.TrimSpace(in.LastName),
					Role:      role,
				})
				if err != nil {
					e.logger.ErrorContext(ctx, "profile creation failed", "user_id", identity.ID, "error", err)
					return wrap(ErrProfileCreation, err)
				}
				profile = p
				return nil
			},
			Compensate: func(ctx context.Context) error {
				dctx, cancel := e.directoryCtx(ctx)
				defer cancel()
				if err := e.directory.Delete(dctx, identity.ID); err != nil {
					return fmt.Errorf("delete profile %s: %w", identity.ID, err)
				}
				return nil
			},
			UndoOnFailure: true,
		},
	}

	if err := e.saga.Execute(ctx, sagaRegister, steps...); err != nil {
		var stepErr *saga.StepError
		if errors.As(err, &stepErr) {
			err = stepErr.Err
		}
		if errors.Is(err, ErrUserExists) {
			e.metricInc(MetricRegisterDuplicate)
		}
		e.registerFailed(ctx, err, email)
		return nil, err
	}

	rctx, cancel := e.redisCtx(ctx)
	if err := e.status.Set(rctx, profile.ID, string(StatusInactive)); err != nil {
		// A missing status already reads as inactive.
		e.logger.WarnContext(ctx, "initial account status not stored", "user_id", profile.ID, "error", err)
	}
	cancel()

	e.metricInc(MetricRegisterSuccess)
	e.logger.InfoContext(ctx, "account registered", "user_id", profile.ID)
	e.emitAudit(ctx, audit.EventRegistered, true, profile.ID, "", nil, nil)

	return &RegisterResult{
		Profile: profile,
		Message: e.config.Registration.Message,
	}, nil
}

func (e *Engine) checkRegistration(ctx context.Context, ip string, in CreateAccountInput) (string, Role, error) {
	if ip != "" && e.config.Registration.MaxAttemptsPerIP > 0 {
		rctx, cancel := e.redisCtx(ctx)
		attempts, err := e.regLimiter.Record(rctx, ip)
		cancel()
		if err != nil {
			return "", "", wrap(ErrStateUnavailable, err)
		}
		if err := CheckRegistrationRate(attempts, e.config.Registration.MaxAttemptsPerIP); err != nil {
			e.metricInc(MetricRegisterRateLimited)
			return "", "", err
		}
	}

	email, err := ValidateEmailFormat(in.Email)
	if err != nil {
		return "", "", err
	}
	if err := CheckBlockedDomain(email, e.config.Registration.BlockedDomains); err != nil {
		return email, "", err
	}
	role, err := ValidateSignupRole(in.Role)
	if err != nil {
		return email, "", err
	}
	if err := ValidatePassword(in.Password); err != nil {
		return email, "", err
	}

	existing, err := e.findProfileByEmail(ctx, email)
	if err != nil {
		return email, "", err
	}
	if err := CheckUniqueEmail(existing); err != nil {
		e.metricInc(MetricRegisterDuplicate)
		return email, "", err
	}

	return email, role, nil
}

func (e *Engine) registerFailed(ctx context.Context, err error, email string) {
	e.metricInc(MetricRegisterFailure)
	e.emitAudit(ctx, audit.EventRegistrationFailed, false, "", "", err, func() map[string]string {
		if email == "" {
			return nil
		}
		return map[string]string{"email": email}
	})
}

func (e *Engine) onCompensationFailure(ctx context.Context, f saga.CompensationFailure) {
	e.metricInc(MetricCompensationFailed)
	e.emitAudit(ctx, audit.EventCompensationFailed, false, "", "", wrap(ErrExternalService, f.Err), func() map[string]string {
		return map[string]string{"step": f.Step}
	})
	if e.reporter != nil {
		e.reporter.CaptureError(ctx, fmt.Errorf("saga compensation %s: %w", f.Step, f.Err), map[string]string{
			"saga": sagaRegister,
			"step": f.Step,
		})
	}
}
