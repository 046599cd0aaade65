package middleware

import (
	"net"
	"net/http"

	"github.com/MrEthical07/resumeauth"
)

// ClientInfo stores the caller's IP and User-Agent in the request context so the
// Engine can key its limiters and label sessions. The IP comes from RemoteAddr, so
// forwarding headers count only when chi's RealIP runs in front of it.
func ClientInfo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := resumeauth.WithClientIP(r.Context(), ClientIP(r))
		if ua := r.UserAgent(); ua != "" {
			ctx = resumeauth.WithUserAgent(ctx, ua)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClientIP returns the host part of r.RemoteAddr.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
