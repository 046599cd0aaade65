package resumeauth

import (
	"net/mail"
	"strings"

	"github.com/MrEthical07/resumeauth/provider"
)

// The functions in this file are the business rules evaluated ahead of any side
// effect. None of them performs I/O; callers look up the facts and pass them in.

// DefaultBlockedDomains lists disposable-mail domains rejected at signup.
var DefaultBlockedDomains = []string{
	"tempmail.com",
	"10minutemail.com",
	"guerrillamail.com",
	"mailinator.com",
	"throwawaymail.com",
	"yopmail.com",
}

// GatedOperation names the path an account-status check is made for.
type GatedOperation string

const (
	GateSignIn  GatedOperation = "sign_in"
	GateRefresh GatedOperation = "refresh"
	GateAccess  GatedOperation = "access"
)

// CheckRegistrationRate fails once attempts, including the current one, exceed max.
// max <= 0 disables the check.
func CheckRegistrationRate(attempts, max int) error {
	if max > 0 && attempts > max {
		return ErrRegistrationRateLimit
	}
	return nil
}

// NormalizeEmail lowercases and trims an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmailFormat returns the normalized address or VALIDATION_ERROR. Display
// names ("Alice <a@b.c>") are rejected; only a bare address is accepted.
func ValidateEmailFormat(email string) (string, error) {
	email = NormalizeEmail(email)
	if email == "" {
		return "", withMessage(ErrValidation, "email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || addr.Name != "" {
		return "", withMessage(ErrValidation, "email is not a valid address")
	}
	at := strings.LastIndexByte(email, '@')
	if at <= 0 || !strings.Contains(email[at+1:], ".") {
		return "", withMessage(ErrValidation, "email is not a valid address")
	}
	return email, nil
}

// CheckBlockedDomain fails with BLOCKED_DOMAIN when the domain of email, or any
// parent domain, is listed in blocked.
func CheckBlockedDomain(email string, blocked []string) error {
	at := strings.LastIndexByte(email, '@')
	if at < 0 {
		return withMessage(ErrValidation, "email is not a valid address")
	}
	domain := strings.ToLower(email[at+1:])
	for _, b := range blocked {
		b = strings.ToLower(strings.TrimSpace(b))
		if b == "" {
			continue
		}
		if domain == b || strings.HasSuffix(domain, "."+b) {
			return ErrBlockedDomain
		}
	}
	return nil
}

// ValidateSignupRole resolves the role requested at signup. Only the default user
// role can be requested; anything else is refused.
func ValidateSignupRole(role string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(role))) {
	case "", RoleUser:
		return RoleUser, nil
	case RoleAdmin:
		return "", ErrRoleNotAllowed
	default:
		return "", withMessage(ErrValidation, "unknown role")
	}
}

// ValidatePassword rejects an empty password. Strength policy belongs to the
// identity provider.
func ValidatePassword(password string) error {
	if strings.TrimSpace(password) == "" {
		return withMessage(ErrValidation, "password is required")
	}
	return nil
}

// CheckUniqueEmail fails with USER_EXISTS when a profile already holds the email.
func CheckUniqueEmail(existing *Profile) error {
	if existing != nil {
		return ErrUserExists
	}
	return nil
}

// CheckSignInExists fails with INVALID_CREDENTIALS when no profile exists, so an
// unknown email is indistinguishable from a wrong password.
func CheckSignInExists(p *Profile) error {
	if p == nil {
		return ErrInvalidCredentials
	}
	return nil
}

// CheckAdmin fails with ADMIN_REQUIRED unless p has the admin role.
func CheckAdmin(p *Profile) error {
	if p == nil || p.Role != RoleAdmin {
		return ErrAdminRequired
	}
	return nil
}

// CheckResetConfig fails with CONFIGURATION_ERROR when no reset redirect URL is
// configured.
func CheckResetConfig(redirectURL string) error {
	if strings.TrimSpace(redirectURL) == "" {
		return withMessage(ErrConfiguration, "password reset redirect URL is not configured")
	}
	return nil
}

// CheckVerificationType accepts only the verification types the identity provider
// issues links for.
func CheckVerificationType(typ string) error {
	switch typ {
	case provider.VerifySignup, provider.VerifyEmail, provider.VerifyRecovery,
		provider.VerifyInvite, provider.VerifyMagicLink, provider.VerifyEmailChange:
		return nil
	default:
		return ErrInvalidVerification
	}
}

// CheckAccountStatus applies the status gate for op.
//
// Suspended accounts are refused everywhere. Inactive accounts may sign in, which
// promotes them once the provider reports a confirmed email, but cannot refresh or
// use access tokens.
func CheckAccountStatus(status AccountStatus, op GatedOperation) error {
	switch status {
	case StatusActive:
		return nil
	case StatusSuspended:
		return ErrAccountSuspended
	case StatusInactive:
		if op == GateSignIn {
			return nil
		}
		return ErrAccountInactive
	default:
		return ErrAccountInactive
	}
}
