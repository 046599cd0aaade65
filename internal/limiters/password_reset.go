package limiters

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrResetRateLimited      = errors.New("reset rate limited")
	ErrResetRedisUnavailable = errors.New("reset redis unavailable")
)

// PasswordResetConfig configures fixed-window reset throttling. MaxAttempts of
// zero disables every check.
type PasswordResetConfig struct {
	Prefix      string
	MaxAttempts int
	Window      time.Duration
}

// PasswordResetLimiter counts reset requests per email and per IP, and reset
// completions per IP.
type PasswordResetLimiter struct {
	redis  redis.UniversalClient
	config PasswordResetConfig
}

func NewPasswordResetLimiter(redisClient redis.UniversalClient, cfg PasswordResetConfig) *PasswordResetLimiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "rs"
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Hour
	}
	return &PasswordResetLimiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckRequest records a reset request. Both counters are always incremented so
// a throttled caller cannot probe which one tripped.
func (l *PasswordResetLimiter) CheckRequest(ctx context.Context, email, ip string) error {
	if l == nil || l.config.MaxAttempts <= 0 {
		return nil
	}

	limited := false
	if email != "" {
		over, err := l.enforceFixedWindow(ctx, l.key("req", strings.ToLower(email)))
		if err != nil {
			return err
		}
		limited = limited || over
	}
	if ip != "" {
		over, err := l.enforceFixedWindow(ctx, l.key("reqip", ip))
		if err != nil {
			return err
		}
		limited = limited || over
	}
	if limited {
		return ErrResetRateLimited
	}
	return nil
}

// CheckConfirm records a reset completion attempt from ip.
func (l *PasswordResetLimiter) CheckConfirm(ctx context.Context, ip string) error {
	if l == nil || l.config.MaxAttempts <= 0 || ip == "" {
		return nil
	}

	over, err := l.enforceFixedWindow(ctx, l.key("confip", ip))
	if err != nil {
		return err
	}
	if over {
		return ErrResetRateLimited
	}
	return nil
}

func (l *PasswordResetLimiter) enforceFixedWindow(ctx context.Context, key string) (bool, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
	}

	if count == 1 {
		if err := l.redis.Expire(ctx, key, l.config.Window).Err(); err != nil {
			return false, fmt.Errorf("%w: %v", ErrResetRedisUnavailable, err)
		}
	}

	return count > int64(l.config.MaxAttempts), nil
}

func (l *PasswordResetLimiter) key(kind, id string) string {
	return l.config.Prefix + ":pr:" + kind + ":" + id
}
