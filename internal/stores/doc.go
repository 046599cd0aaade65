// Package stores provides Redis-backed records consulted on every token
// verification: the token blacklist and per-user account status.
//
// # Design
//
// Every record carries a TTL. Blacklist entries live exactly as long as the token
// they revoke could still be presented. Account status entries carry a long TTL
// that is renewed whenever the status is written.
//
// # Architecture boundaries
//
// This package owns persistence only. Callers decide what a missing status or a
// Redis failure means; the token service fails closed on both.
package stores
