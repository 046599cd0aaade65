package limiters

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrRegistrationRedisUnavailable = errors.New("registration redis unavailable")

// RegistrationConfig configures the sliding registration window.
type RegistrationConfig struct {
	Prefix string
	Window time.Duration
}

// RegistrationLimiter counts registration attempts per client IP inside a sliding
// window. It only counts; the caller compares the count against its budget.
type RegistrationLimiter struct {
	redis  redis.UniversalClient
	config RegistrationConfig
	now    func() time.Time
}

func NewRegistrationLimiter(redisClient redis.UniversalClient, cfg RegistrationConfig) *RegistrationLimiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "rs"
	}
	if cfg.Window <= 0 {
		cfg.Window = time.Hour
	}
	return &RegistrationLimiter{
		redis:  redisClient,
		config: cfg,
		now:    time.Now,
	}
}

// Record adds an attempt for ip and returns the number of attempts, including this
// one, inside the current window.
func (l *RegistrationLimiter) Record(ctx context.Context, ip string) (int, error) {
	if l == nil {
		return 0, nil
	}

	key := l.key(ip)
	now := l.now()
	floor := now.Add(-l.config.Window).UnixMilli()

	var card *redis.IntCmd
	_, err := l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRemRangeByScore(ctx, key, "-inf", "("+strconv.FormatInt(floor, 10))
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixMilli()), Member: uuid.NewString()})
		card = pipe.ZCard(ctx, key)
		pipe.Expire(ctx, key, l.config.Window)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRegistrationRedisUnavailable, err)
	}

	return int(card.Val()), nil
}

// Count returns the attempts inside the current window without recording one.
func (l *RegistrationLimiter) Count(ctx context.Context, ip string) (int, error) {
	if l == nil {
		return 0, nil
	}

	floor := l.now().Add(-l.config.Window).UnixMilli()
	n, err := l.redis.ZCount(ctx, l.key(ip), strconv.FormatInt(floor, 10), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRegistrationRedisUnavailable, err)
	}
	return int(n), nil
}

func (l *RegistrationLimiter) key(ip string) string {
	if ip == "" {
		ip = "unknown"
	}
	return l.config.Prefix + ":reg:" + ip
}
