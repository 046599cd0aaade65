package middleware

import (
	"net/http"

	"github.com/MrEthical07/resumeauth"
)

// RequireAdmin allows only callers whose verified role is admin. It must run after
// [Guard].
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			WriteError(w, resumeauth.ErrInvalidToken)
			return
		}
		if claims.Role != resumeauth.RoleAdmin {
			WriteError(w, resumeauth.ErrAdminRequired)
			return
		}
		next.ServeHTTP(w, r)
	})
}
