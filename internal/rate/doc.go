// Package rate provides Redis-backed fixed-window counters for sign-in throttling.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Keys:
//   - <prefix>:si:<email>  failed sign-ins per account
//   - <prefix>:sii:<ip>    failed sign-ins per client IP
//
// Only failures are counted; a successful sign-in clears both counters.
package rate
