// Package config loads service settings from the environment.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/resumeauth"
)

// Config is everything the service binary needs. It is read once at startup.
type Config struct {
	// Server
	HTTPAddr        string
	ShutdownTimeout time.Duration
	RateLimitRPS    float64
	RateLimitBurst  int
	TrustProxy      bool

	// Storage
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Identity provider
	ProviderURL        string
	ProviderAPIKey     string
	ProviderServiceKey string

	// Audit
	NATSURL     string
	NATSSubject string

	// Observability
	LogLevel    string
	SentryDSN   string
	Environment string
	MetricsPath string

	Engine resumeauth.Config
}

// Load reads Config from the environment. Missing required variables are
// reported together.
func Load() (*Config, error) {
	cfg := &Config{}
	var missing []string

	required := func(key string) string {
		v := os.Getenv(key)
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}

	cfg.DatabaseURL = required("DATABASE_URL")
	cfg.ProviderURL = required("AUTH_PROVIDER_URL")
	cfg.ProviderAPIKey = required("AUTH_PROVIDER_API_KEY")
	secret := required("JWT_SECRET")

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	cfg.HTTPAddr = getEnvString("HTTP_ADDR", ":8080")
	cfg.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	cfg.RateLimitRPS = getEnvFloat("RATE_LIMIT_RPS", 10)
	cfg.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 20)
	cfg.TrustProxy = getEnvBool("TRUST_PROXY_HEADERS", false)
	cfg.RedisAddr = getEnvString("REDIS_ADDR", "localhost:6379")
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	cfg.RedisDB = getEnvInt("REDIS_DB", 0)
	cfg.ProviderServiceKey = os.Getenv("AUTH_PROVIDER_SERVICE_KEY")
	cfg.NATSURL = os.Getenv("NATS_URL")
	cfg.NATSSubject = getEnvString("NATS_SUBJECT", "resumeauth.audit")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.SentryDSN = os.Getenv("SENTRY_DSN")
	cfg.Environment = getEnvString("APP_ENV", "development")
	cfg.MetricsPath = getEnvString("METRICS_PATH", "/metrics")

	engine := resumeauth.DefaultConfig()
	key, err := decodeSecret(secret)
	if err != nil {
		return nil, err
	}
	engine.JWT.PrivateKey = key
	engine.JWT.Issuer = getEnvString("JWT_ISSUER", engine.JWT.Issuer)
	engine.JWT.Audience = os.Getenv("JWT_AUDIENCE")
	engine.JWT.AccessTTL = getEnvDuration("ACCESS_TOKEN_TTL", engine.JWT.AccessTTL)
	engine.JWT.RefreshTTL = getEnvDuration("REFRESH_TOKEN_TTL", engine.JWT.RefreshTTL)
	engine.Session.TTL = getEnvDuration("SESSION_TTL", engine.Session.TTL)
	engine.Session.MaxPerUser = getEnvInt("SESSION_MAX_PER_USER", engine.Session.MaxPerUser)
	engine.Registration.MaxAttemptsPerIP = getEnvInt("REGISTRATION_MAX_PER_IP", engine.Registration.MaxAttemptsPerIP)
	engine.Registration.Window = getEnvDuration("REGISTRATION_WINDOW", engine.Registration.Window)
	if domains := os.Getenv("BLOCKED_EMAIL_DOMAINS"); domains != "" {
		engine.Registration.BlockedDomains = splitList(domains)
	}
	engine.SignIn.MaxAttempts = getEnvInt("SIGNIN_MAX_ATTEMPTS", engine.SignIn.MaxAttempts)
	engine.SignIn.Cooldown = getEnvDuration("SIGNIN_COOLDOWN", engine.SignIn.Cooldown)
	engine.PasswordReset.RedirectURL = os.Getenv("PASSWORD_RESET_REDIRECT_URL")
	engine.PasswordReset.MaxAttempts = getEnvInt("PASSWORD_RESET_MAX_ATTEMPTS", engine.PasswordReset.MaxAttempts)
	engine.PasswordReset.Window = getEnvDuration("PASSWORD_RESET_WINDOW", engine.PasswordReset.Window)
	engine.Timeouts.Provider = getEnvDuration("PROVIDER_TIMEOUT", engine.Timeouts.Provider)
	engine.Timeouts.Directory = getEnvDuration("DATABASE_TIMEOUT", engine.Timeouts.Directory)
	engine.Timeouts.Redis = getEnvDuration("REDIS_TIMEOUT", engine.Timeouts.Redis)
	engine.Audit.Enabled = getEnvBool("AUDIT_ENABLED", true)
	engine.Audit.SinkTimeout = getEnvDuration("AUDIT_SINK_TIMEOUT", engine.Audit.SinkTimeout)
	engine.Metrics.EnableLatencyHistograms = getEnvBool("METRICS_LATENCY_HISTOGRAMS", true)

	if err := engine.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine configuration: %w", err)
	}
	cfg.Engine = engine

	return cfg, nil
}

// decodeSecret accepts a raw secret or one prefixed with "base64:".
func decodeSecret(s string) ([]byte, error) {
	if rest, ok := strings.CutPrefix(s, "base64:"); ok {
		b, err := base64.StdEncoding.DecodeString(rest)
		if err != nil {
			return nil, fmt.Errorf("decode JWT_SECRET: %w", err)
		}
		return b, nil
	}
	return []byte(s), nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
