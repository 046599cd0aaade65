// Package limiters holds the Redis-backed counters behind the registration and
// password reset throttles.
//
//   - [RegistrationLimiter] keeps a sliding window of attempts per client IP.
//   - [PasswordResetLimiter] keeps fixed windows per email and per IP.
//
// Limiters only count. The Engine decides what a limit means for the caller, for
// example a silent skip for reset requests and a 429 for registrations.
package limiters
