package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/resumeauth"
)

// AccessVerifier is the part of the Engine the guard needs.
type AccessVerifier interface {
	VerifyAccess(ctx context.Context, accessToken string) (*resumeauth.Claims, error)
}

type claimsContextKey struct{}
type tokenContextKey struct{}

// ClaimsFromContext returns the claims stored by [Guard].
func ClaimsFromContext(ctx context.Context) (*resumeauth.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*resumeauth.Claims)
	return claims, ok
}

// AccessTokenFromContext returns the raw bearer token accepted by [Guard].
func AccessTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenContextKey{}).(string)
	return token
}

// Guard rejects requests without a valid bearer access token. The Engine's error
// decides the status, so a suspended account answers 403 and a revoked token 401.
func Guard(verifier AccessVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				WriteError(w, resumeauth.ErrConfiguration)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				w.Header().Set("WWW-Authenticate", "Bearer")
				WriteError(w, resumeauth.ErrInvalidToken)
				return
			}

			claims, err := verifier.VerifyAccess(r.Context(), token)
			if err != nil {
				if resumeauth.AsError(err).HTTPStatus() == http.StatusUnauthorized {
					w.Header().Set("WWW-Authenticate", "Bearer")
				}
				WriteError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
			ctx = context.WithValue(ctx, tokenContextKey{}, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
