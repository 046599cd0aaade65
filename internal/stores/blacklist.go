package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrBlacklistRedisUnavailable = errors.New("blacklist redis unavailable")

// Blacklist records revoked token ids until their natural expiry.
type Blacklist struct {
	redis  redis.UniversalClient
	prefix string
}

func NewBlacklist(redisClient redis.UniversalClient, prefix string) *Blacklist {
	if prefix == "" {
		prefix = "rs"
	}
	return &Blacklist{redis: redisClient, prefix: prefix}
}

func (b *Blacklist) key(tokenID string) string {
	return b.prefix + ":bl:" + tokenID
}

// Revoke blacklists tokenID for ttl. It reports false when the id was already
// blacklisted, which makes it usable as a single-winner claim. A non-positive ttl
// is a no-op that reports true: the token can no longer be presented anyway.
func (b *Blacklist) Revoke(ctx context.Context, tokenID string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		return true, nil
	}
	ok, err := b.redis.SetNX(ctx, b.key(tokenID), "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBlacklistRedisUnavailable, err)
	}
	return ok, nil
}

// IsRevoked reports whether tokenID is blacklisted.
func (b *Blacklist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := b.redis.Exists(ctx, b.key(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrBlacklistRedisUnavailable, err)
	}
	return n == 1, nil
}
