// Package middleware adapts the resumeauth Engine to net/http.
//
// # Middleware
//
//   - [Guard] verifies the bearer access token and stores the claims in the request context.
//   - [RequireAdmin] rejects callers whose verified role is not admin. Use after [Guard].
//   - [ClientInfo] records the caller's IP and User-Agent for the Engine.
//   - [IPRateLimiter] throttles requests per client IP.
//   - [Logging] writes one structured log line per request.
//
// Failures are written with [WriteError] as a JSON body carrying the error code and a
// user-facing message. The status comes from resumeauth.Error.HTTPStatus.
//
// This package makes no authentication decisions of its own. Token checks, session
// lookups and account status gates happen in the Engine.
package middleware
