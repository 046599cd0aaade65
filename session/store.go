package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps every Redis transport or command failure.
var ErrRedisUnavailable = errors.New("redis unavailable")

// ErrNotFound is returned when the session does not exist or has expired.
var ErrNotFound = errors.New("session not found")

// ErrInvalidData is returned by Create when required session fields are missing.
var ErrInvalidData = errors.New("invalid session data")

// Store is a Redis-backed session store with rolling expiration and a per-user cap
// enforced by least-recently-active eviction.
type Store struct {
	redis      redis.UniversalClient
	prefix     string
	ttl        time.Duration
	maxPerUser int
	now        func() time.Time
}

// NewStore creates a session [Store]. ttl is the rolling inactivity window and
// maxPerUser the session cap; maxPerUser <= 0 disables the cap.
func NewStore(rdb redis.UniversalClient, prefix string, ttl time.Duration, maxPerUser int) *Store {
	if prefix == "" {
		prefix = "rs"
	}
	return &Store{
		redis:      rdb,
		prefix:     prefix,
		ttl:        ttl,
		maxPerUser: maxPerUser,
		now:        time.Now,
	}
}

// TTL returns the rolling inactivity window.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// MaxPerUser returns the configured session cap.
func (s *Store) MaxPerUser() int {
	return s.maxPerUser
}

func (s *Store) key(userID, sessionID string) string {
	return s.prefix + ":s:" + userID + ":" + sessionID
}

func (s *Store) userKey(userID string) string {
	return s.prefix + ":u:" + userID
}

// Create stores a new session for d.UserID. When the user already holds the maximum
// number of live sessions, the least recently active ones are evicted first and their
// IDs returned.
//
//	Performance: 1 ZRANGE + 1 pipelined EXISTS batch + 1 MULTI; plus 1 MULTI per eviction.
func (s *Store) Create(ctx context.Context, d Data) (*Session, []string, error) {
	if d.UserID == "" {
		return nil, nil, ErrInvalidData
	}

	evicted, err := s.enforceCap(ctx, d.UserID)
	if err != nil {
		return nil, evicted, err
	}

	now := s.now()
	sess := &Session{
		SessionID:    uuid.NewString(),
		UserID:       d.UserID,
		Email:        d.Email,
		Role:         d.Role,
		IP:           d.IP,
		UserAgent:    d.UserAgent,
		CreatedAt:    now,
		LastActivity: now,
	}

	data, err := Encode(sess)
	if err != nil {
		return nil, evicted, err
	}

	userKey := s.userKey(d.UserID)
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.key(d.UserID, sess.SessionID), data, s.ttl)
		pipe.ZAdd(ctx, userKey, redis.Z{Score: float64(now.UnixMilli()), Member: sess.SessionID})
		pipe.Expire(ctx, userKey, s.ttl)
		return nil
	})
	if err != nil {
		return nil, evicted, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	return sess, evicted, nil
}

// Get returns the session and, as a side effect of a successful read, renews its TTL
// and moves its last-activity time to now. A session deleted concurrently is never
// resurrected: the renewal only applies to keys that still exist.
func (s *Store) Get(ctx context.Context, userID, sessionID string) (*Session, error) {
	if userID == "" || sessionID == "" {
		return nil, ErrNotFound
	}

	key := s.key(userID, sessionID)
	data, err := s.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	sess, err := Decode(data)
	if err != nil {
		return nil, err
	}
	sess.SessionID = sessionID
	sess.LastActivity = s.now()

	encoded, err := Encode(sess)
	if err != nil {
		return nil, err
	}

	userKey := s.userKey(userID)
	var renewed *redis.BoolCmd
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		renewed = pipe.SetXX(ctx, key, encoded, s.ttl)
		pipe.ZAddXX(ctx, userKey, redis.Z{Score: float64(sess.LastActivity.UnixMilli()), Member: sessionID})
		pipe.Expire(ctx, userKey, s.ttl)
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if renewed == nil || !renewed.Val() {
		return nil, ErrNotFound
	}

	return sess, nil
}

// Peek fetches a session without renewing TTL or last-activity.
func (s *Store) Peek(ctx context.Context, userID, sessionID string) (*Session, error) {
	data, err := s.redis.Get(ctx, s.key(userID, sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	sess, err := Decode(data)
	if err != nil {
		return nil, err
	}
	sess.SessionID = sessionID
	return sess, nil
}

// Delete removes one session and its index entry. Deleting a missing session is not
// an error.
func (s *Store) Delete(ctx context.Context, userID, sessionID string) error {
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key(userID, sessionID))
		pipe.ZRem(ctx, s.userKey(userID), sessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// DeleteAll removes every indexed session for the user and returns how many session
// keys were deleted.
//
// A session created between the index read and the delete survives this call; it is
// still bounded by its own TTL.
func (s *Store) DeleteAll(ctx context.Context, userID string) (int, error) {
	userKey := s.userKey(userID)

	ids, err := s.redis.ZRange(ctx, userKey, 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, s.key(userID, id))
	}

	var deleted *redis.IntCmd
	_, err = s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(keys) > 0 {
			deleted = pipe.Del(ctx, keys...)
		}
		pipe.Del(ctx, userKey)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if deleted == nil {
		return 0, nil
	}
	return int(deleted.Val()), nil
}

// List returns the user's live sessions ordered from most to least recently active.
// It does not renew any TTL.
func (s *Store) List(ctx context.Context, userID string) ([]*Session, error) {
	live, err := s.liveIndex(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(live) == 0 {
		return []*Session{}, nil
	}

	pipe := s.redis.Pipeline()
	cmds := make([]*redis.StringCmd, len(live))
	for i, z := range live {
		cmds[i] = pipe.Get(ctx, s.key(userID, z.Member.(string)))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	out := make([]*Session, 0, len(live))
	for i, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		sess, err := Decode(data)
		if err != nil {
			return nil, err
		}
		sess.SessionID = live[i].Member.(string)
		out = append(out, sess)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActivity.After(out[j].LastActivity)
	})
	return out, nil
}

// Count returns the number of live sessions for the user. Index entries whose
// session already expired are pruned as a side effect.
func (s *Store) Count(ctx context.Context, userID string) (int, error) {
	live, err := s.liveIndex(ctx, userID)
	if err != nil {
		return 0, err
	}
	return len(live), nil
}

// Ping checks Redis availability and returns the round-trip latency.
func (s *Store) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := s.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

func (s *Store) enforceCap(ctx context.Context, userID string) ([]string, error) {
	if s.maxPerUser <= 0 {
		return nil, nil
	}

	live, err := s.liveIndex(ctx, userID)
	if err != nil {
		return nil, err
	}

	var evicted []string
	// live is ordered by ascending last-activity score.
	for len(live) >= s.maxPerUser {
		victim := live[0].Member.(string)
		if err := s.Delete(ctx, userID, victim); err != nil {
			return evicted, err
		}
		evicted = append(evicted, victim)
		live = live[1:]
	}

	return evicted, nil
}

// liveIndex returns index entries whose session key still exists, ordered by
// ascending last-activity. Stale entries are removed from the index.
func (s *Store) liveIndex(ctx context.Context, userID string) ([]redis.Z, error) {
	userKey := s.userKey(userID)

	entries, err := s.redis.ZRangeWithScores(ctx, userKey, 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(entries) == 0 {
		return nil, nil
	}

	pipe := s.redis.Pipeline()
	exists := make([]*redis.IntCmd, len(entries))
	for i, z := range entries {
		exists[i] = pipe.Exists(ctx, s.key(userID, z.Member.(string)))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	live := make([]redis.Z, 0, len(entries))
	var stale []interface{}
	for i, cmd := range exists {
		if cmd.Val() == 1 {
			live = append(live, entries[i])
			continue
		}
		stale = append(stale, entries[i].Member)
	}

	if len(stale) > 0 {
		if err := s.redis.ZRem(ctx, userKey, stale...).Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return live, nil
}
