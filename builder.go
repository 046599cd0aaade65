package resumeauth

import (
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/resumeauth/internal/audit"
	"github.com/MrEthical07/resumeauth/internal/limiters"
	"github.com/MrEthical07/resumeauth/internal/rate"
	"github.com/MrEthical07/resumeauth/internal/saga"
	"github.com/MrEthical07/resumeauth/internal/stores"
	"github.com/MrEthical07/resumeauth/jwt"
	"github.com/MrEthical07/resumeauth/provider"
	"github.com/MrEthical07/resumeauth/session"
	"github.com/redis/go-redis/v9"
)

// Builder assembles an [Engine]. A Builder can be used for one Build call.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	gateway   provider.Gateway
	directory AccountDirectory
	logger    *slog.Logger
	auditSink AuditSink
	reporter  ErrorReporter

	built bool
}

// New returns a Builder preloaded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis sets the client holding sessions, the blacklist, account status and
// rate counters. Required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithGateway sets the identity provider gateway. Required.
func (b *Builder) WithGateway(g provider.Gateway) *Builder {
	b.gateway = g
	return b
}

// WithDirectory sets the profile store. Required.
func (b *Builder) WithDirectory(d AccountDirectory) *Builder {
	b.directory = d
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets where audit events go. It has no effect unless
// Config.Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithErrorReporter(r ErrorReporter) *Builder {
	b.reporter = r
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.gateway == nil {
		return nil, errors.New("identity provider gateway required")
	}
	if b.directory == nil {
		return nil, errors.New("account directory required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		RequireIAT:    true,
		KeyID:         cfg.JWT.KeyID,
	})
	if err != nil {
		return nil, err
	}

	prefix := cfg.Session.RedisPrefix
	engine := &Engine{
		config:    cfg,
		sessions:  session.NewStore(b.redis, prefix, cfg.Session.TTL, cfg.Session.MaxPerUser),
		status:    stores.NewAccountStatusStore(b.redis, prefix, cfg.Status.TTL),
		gateway:   b.gateway,
		directory: b.directory,
		metrics:   NewMetrics(cfg.Metrics),
		logger:    logger,
		reporter:  b.reporter,
		now:       time.Now,
	}
	engine.regLimiter = limiters.NewRegistrationLimiter(b.redis, limiters.RegistrationConfig{
		Prefix: prefix,
		Window: cfg.Registration.Window,
	})
	engine.reset = limiters.NewPasswordResetLimiter(b.redis, limiters.PasswordResetConfig{
		Prefix:      prefix,
		MaxAttempts: cfg.PasswordReset.MaxAttempts,
		Window:      cfg.PasswordReset.Window,
	})
	engine.signIn = rate.New(b.redis, rate.Config{
		Prefix:           prefix,
		EnableIPThrottle: cfg.SignIn.EnableIPThrottle,
		MaxAttempts:      cfg.SignIn.MaxAttempts,
		Cooldown:         cfg.SignIn.Cooldown,
	})
	engine.tokens = &TokenService{
		jwt:       jm,
		sessions:  engine.sessions,
		blacklist: stores.NewBlacklist(b.redis, prefix),
		status:    engine.status,
		timeout:   cfg.Timeouts.Redis,
		metrics:   engine.metrics,
		now:       time.Now,
	}
	engine.tokens.onEvict = engine.onSessionsEvicted
	engine.saga = saga.New(saga.Options{
		MaxRetries:            cfg.Compensation.MaxRetries,
		BaseBackoff:           cfg.Compensation.BaseBackoff,
		Timeout:               cfg.Compensation.Timeout,
		Logger:                logger,
		OnCompensationFailure: engine.onCompensationFailure,
	})
	if cfg.Audit.Enabled {
		engine.audit = audit.NewDispatcher(audit.Config{
			Enabled:     true,
			BufferSize:  cfg.Audit.BufferSize,
			DropIfFull:  cfg.Audit.DropIfFull,
			SinkTimeout: cfg.Audit.SinkTimeout,
		}, b.auditSink)
	}

	b.built = true

	return engine, nil
}
