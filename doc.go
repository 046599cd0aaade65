// Package resumeauth manages identity and session lifecycle for the resume builder:
// registration against an external identity provider, signed access/refresh token
// pairs, Redis-backed sessions, and account-status gating.
//
// Engine methods are safe to call from multiple goroutines after initialization
// through [Builder.Build].
//
// # Architecture boundaries
//
// resumeauth is the public surface. It exposes [Engine], [Builder], [Config], the
// [AccountDirectory] contract and value types (Profile, TokenPair, SessionInfo). The
// session store, blacklist, account-status store, limiters and saga runner live in
// sub-packages and are never exposed through Engine.
//
// # State
//
// No Engine holds authentication state in memory. Sessions, blacklisted token ids,
// account status and registration counters live in Redis with per-entry TTLs, so any
// number of instances can serve the same users.
//
// # Failures
//
// Every operation returns an *[Error] carrying a stable code. Sign-in failures are
// deliberately uniform, and password-reset requests answer the same way whether or
// not the account exists.
package resumeauth
