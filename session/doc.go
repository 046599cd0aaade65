// Package session provides the Redis-backed session store that tracks every active
// sign-in context per user.
//
// # Storage layout
//
// Each session is a compact binary blob under "<prefix>:s:<userID>:<sessionID>" with a
// rolling TTL. A per-user sorted set "<prefix>:u:<userID>" indexes session IDs scored
// by last-activity time in milliseconds; the score drives least-recently-active
// eviction when a user reaches the session cap.
//
// # Architecture boundaries
//
// This package owns the [Store] and the [Session] model. It does NOT parse tokens,
// consult account status, or decide whether a caller is authenticated. Those
// decisions belong to the token service in the root package.
//
// # Cap enforcement
//
// Create performs check-then-evict-then-create without a distributed lock. Concurrent
// creations for one user may exceed the cap by the number of racing callers; the
// next Create evicts back below the cap.
package session
