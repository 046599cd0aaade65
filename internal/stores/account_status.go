package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrStatusNotFound         = errors.New("account status not found")
	ErrStatusRedisUnavailable = errors.New("account status redis unavailable")
)

// AccountStatusStore keeps the inactive/active/suspended gate per user.
type AccountStatusStore struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewAccountStatusStore(redisClient redis.UniversalClient, prefix string, ttl time.Duration) *AccountStatusStore {
	if prefix == "" {
		prefix = "rs"
	}
	if ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}
	return &AccountStatusStore{redis: redisClient, prefix: prefix, ttl: ttl}
}

func (s *AccountStatusStore) key(userID string) string {
	return s.prefix + ":st:" + userID
}

// Set writes status and renews the TTL.
func (s *AccountStatusStore) Set(ctx context.Context, userID, status string) error {
	if err := s.redis.Set(ctx, s.key(userID), status, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStatusRedisUnavailable, err)
	}
	return nil
}

// Get returns the stored status or [ErrStatusNotFound].
func (s *AccountStatusStore) Get(ctx context.Context, userID string) (string, error) {
	v, err := s.redis.Get(ctx, s.key(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrStatusNotFound
		}
		return "", fmt.Errorf("%w: %v", ErrStatusRedisUnavailable, err)
	}
	return v, nil
}

// Touch renews the TTL of an existing status without changing it.
func (s *AccountStatusStore) Touch(ctx context.Context, userID string) error {
	if err := s.redis.Expire(ctx, s.key(userID), s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStatusRedisUnavailable, err)
	}
	return nil
}

func (s *AccountStatusStore) Delete(ctx context.Context, userID string) error {
	if err := s.redis.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStatusRedisUnavailable, err)
	}
	return nil
}
