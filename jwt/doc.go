// Package jwt signs and parses the access and refresh tokens of a token pair.
//
// Both token types carry sub, email, role, sid, jti and typ. Parse performs full
// verification. ParseIgnoringExpiry still checks the signature but lets
// revocation retire expired tokens.
package jwt
