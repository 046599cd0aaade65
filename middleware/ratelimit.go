package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/MrEthical07/resumeauth"
	"golang.org/x/time/rate"
)

// ErrTooManyRequests is written when an IP exceeds its request budget.
var ErrTooManyRequests = &resumeauth.Error{
	Code:    "TOO_MANY_REQUESTS",
	Kind:    resumeauth.KindRateLimit,
	Message: "too many requests, slow down",
}

type ipLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// IPRateLimiter is an in-process token bucket per client IP. It guards the HTTP
// surface only; the Engine keeps its own shared limits for registration and
// sign-in in Redis.
type IPRateLimiter struct {
	rate    rate.Limit
	burst   int
	idleTTL time.Duration

	mu       sync.Mutex
	limiters map[string]*ipLimiter

	stopCh   chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

// NewIPRateLimiter starts a limiter allowing rps requests per second with the
// given burst. Entries idle for more than twice cleanup are dropped.
func NewIPRateLimiter(rps float64, burst int, cleanup time.Duration) *IPRateLimiter {
	if cleanup <= 0 {
		cleanup = 5 * time.Minute
	}
	if burst <= 0 {
		burst = 1
	}
	rl := &IPRateLimiter{
		rate:     rate.Limit(rps),
		burst:    burst,
		idleTTL:  2 * cleanup,
		limiters: make(map[string]*ipLimiter),
		stopCh:   make(chan struct{}),
		now:      time.Now,
	}
	go rl.cleanupLoop(cleanup)
	return rl
}

// Stop ends the cleanup goroutine.
func (rl *IPRateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// Len returns the number of tracked IPs.
func (rl *IPRateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

func (rl *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.get(ClientIP(r)).Allow() {
			retryAfter := 1
			if rl.rate > 0 {
				retryAfter = int(math.Ceil(1.0 / float64(rl.rate)))
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			WriteError(w, ErrTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *IPRateLimiter) get(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	l, ok := rl.limiters[ip]
	if !ok {
		l = &ipLimiter{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[ip] = l
	}
	l.lastAccess = rl.now()
	return l.limiter
}

func (rl *IPRateLimiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *IPRateLimiter) cleanup() {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, l := range rl.limiters {
		if now.Sub(l.lastAccess) > rl.idleTTL {
			delete(rl.limiters, ip)
		}
	}
}
