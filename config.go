package resumeauth

import (
	"errors"
	"time"
)

// Config is the complete Engine configuration. Start from [DefaultConfig] and
// override what the deployment needs; Build validates the result.
type Config struct {
	JWT           JWTConfig
	Session       SessionConfig
	Registration  RegistrationConfig
	SignIn        SignInConfig
	Status        StatusConfig
	PasswordReset PasswordResetConfig
	Timeouts      TimeoutConfig
	Compensation  CompensationConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures token signing. SigningMethod is "hs256" or "ed25519".
type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod string
	PrivateKey    []byte
	PublicKey     []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
	KeyID         string
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig configures the Redis session store. TTL is the rolling
// inactivity window; MaxPerUser caps concurrent sessions per user.
type SessionConfig struct {
	RedisPrefix string
	TTL         time.Duration
	MaxPerUser  int
}

/*
====================================
REGISTRATION CONFIG
====================================
*/

// RegistrationConfig configures the signup guard.
type RegistrationConfig struct {
	MaxAttemptsPerIP int
	Window           time.Duration
	BlockedDomains   []string
	// Message is returned to the caller after a successful registration.
	Message string
}

// SignInConfig throttles failed sign-ins per email and per IP.
type SignInConfig struct {
	MaxAttempts      int
	Cooldown         time.Duration
	EnableIPThrottle bool
}

// StatusConfig configures the account-status store.
type StatusConfig struct {
	TTL time.Duration
}

// PasswordResetConfig configures the reset email. RedirectURL is where the
// provider's link lands; an empty value disables reset requests.
//
// MaxAttempts bounds reset requests per email and per IP, and completions per IP,
// inside each Window. Zero disables the throttle.
type PasswordResetConfig struct {
	RedirectURL string
	MaxAttempts int
	Window      time.Duration
}

// TimeoutConfig bounds every external call.
type TimeoutConfig struct {
	Provider  time.Duration
	Directory time.Duration
	Redis     time.Duration
}

// CompensationConfig tunes saga cleanup retries.
type CompensationConfig struct {
	MaxRetries  uint64
	BaseBackoff time.Duration
	Timeout     time.Duration
}

// AuditConfig configures the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled     bool
	BufferSize  int
	DropIfFull  bool
	SinkTimeout time.Duration
}

// MetricsConfig toggles in-process counters.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the production defaults. Signing keys must still be set.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     15 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			SigningMethod: "hs256",
			Issuer:        "resumeauth",
			Leeway:        5 * time.Second,
		},
		Session: SessionConfig{
			RedisPrefix: "rs",
			TTL:         24 * time.Hour,
			MaxPerUser:  5,
		},
		Registration: RegistrationConfig{
			MaxAttemptsPerIP: 3,
			Window:           time.Hour,
			BlockedDomains:   append([]string(nil), DefaultBlockedDomains...),
			Message:          "Registration successful. Please check your email to confirm your account.",
		},
		SignIn: SignInConfig{
			MaxAttempts:      10,
			Cooldown:         15 * time.Minute,
			EnableIPThrottle: true,
		},
		PasswordReset: PasswordResetConfig{
			MaxAttempts: 5,
			Window:      time.Hour,
		},
		Status: StatusConfig{
			TTL: 30 * 24 * time.Hour,
		},
		Timeouts: TimeoutConfig{
			Provider:  10 * time.Second,
			Directory: 5 * time.Second,
			Redis:     2 * time.Second,
		},
		Compensation: CompensationConfig{
			MaxRetries:  3,
			BaseBackoff: 200 * time.Millisecond,
			Timeout:     15 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:     false,
			BufferSize:  1024,
			DropIfFull:  true,
			SinkTimeout: 5 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	out.Registration.BlockedDomains = append([]string(nil), cfg.Registration.BlockedDomains...)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

/*
====================================
VALIDATION
====================================
*/

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.RefreshTTL < c.JWT.AccessTTL {
		return errors.New("JWT RefreshTTL must be >= AccessTTL")
	}
	switch c.JWT.SigningMethod {
	case "hs256":
		if len(c.JWT.PrivateKey) < 32 {
			return errors.New("hs256 requires a PrivateKey of at least 32 bytes")
		}
	case "ed25519":
		if len(c.JWT.PrivateKey) == 0 {
			return errors.New("ed25519 requires PrivateKey")
		}
		if len(c.JWT.PublicKey) == 0 {
			return errors.New("ed25519 requires PublicKey")
		}
	default:
		return errors.New("unsupported JWT signing method")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	// Session
	if c.Session.TTL <= 0 {
		return errors.New("Session TTL must be > 0")
	}
	if c.Session.MaxPerUser < 0 {
		return errors.New("Session MaxPerUser must be >= 0")
	}

	// Registration
	if c.Registration.MaxAttemptsPerIP < 0 {
		return errors.New("Registration MaxAttemptsPerIP must be >= 0")
	}
	if c.Registration.MaxAttemptsPerIP > 0 && c.Registration.Window <= 0 {
		return errors.New("Registration Window must be > 0 when MaxAttemptsPerIP is set")
	}

	// Sign-in throttle
	if c.SignIn.MaxAttempts < 0 {
		return errors.New("SignIn MaxAttempts must be >= 0")
	}
	if c.SignIn.MaxAttempts > 0 && c.SignIn.Cooldown <= 0 {
		return errors.New("SignIn Cooldown must be > 0 when MaxAttempts is set")
	}

	// Password reset
	if c.PasswordReset.MaxAttempts < 0 {
		return errors.New("PasswordReset MaxAttempts must be >= 0")
	}
	if c.PasswordReset.MaxAttempts > 0 && c.PasswordReset.Window <= 0 {
		return errors.New("PasswordReset Window must be > 0 when MaxAttempts is set")
	}

	// Status
	if c.Status.TTL <= 0 {
		return errors.New("Status TTL must be > 0")
	}

	// Timeouts
	if c.Timeouts.Provider <= 0 || c.Timeouts.Directory <= 0 || c.Timeouts.Redis <= 0 {
		return errors.New("Timeouts must all be > 0")
	}

	// Compensation
	if c.Compensation.BaseBackoff <= 0 {
		return errors.New("Compensation BaseBackoff must be > 0")
	}
	if c.Compensation.Timeout <= 0 {
		return errors.New("Compensation Timeout must be > 0")
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}

	return nil
}
