package main

import (
	"crypto/subtle"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/bighogz/secform/internal/config"
)

// securityHeaders adds security-related HTTP headers.
func securityHeaders(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		next(w, r)
	}
}

// clientLimiter hands each client IP its own token bucket. Buckets idle
// longer than idleAfter are pruned once the map reaches maxClients.
type clientLimiter struct {
	mu         sync.Mutex
	clients    map[string]*clientBucket
	every      rate.Limit
	burst      int
	idleAfter  time.Duration
	maxClients int
	now        func() time.Time
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newClientLimiter(interval time.Duration, burst int) *clientLimiter {
	return &clientLimiter{
		clients:    make(map[string]*clientBucket),
		every:      rate.Every(interval),
		burst:      burst,
		idleAfter:  time.Hour,
		maxClients: 10000,
		now:        time.Now,
	}
}

func (cl *clientLimiter) allow(ip string) bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	now := cl.now()
	b, ok := cl.clients[ip]
	if !ok {
		if len(cl.clients) >= cl.maxClients {
			cl.prune(now)
		}
		b = &clientBucket{limiter: rate.NewLimiter(cl.every, cl.burst)}
		cl.clients[ip] = b
	}
	b.lastSeen = now
	return b.limiter.AllowN(now, 1)
}

func (cl *clientLimiter) prune(now time.Time) {
	for ip, b := range cl.clients {
		if now.Sub(b.lastSeen) > cl.idleAfter {
			delete(cl.clients, ip)
		}
	}
}

// Detail requests fan out to one archive fetch per entry.
var detailsLimiter = newClientLimiter(5*time.Second, 1)

func clientIP(r *http.Request) string {
	if f := r.Header.Get("X-Forwarded-For"); f != "" {
		return strings.TrimSpace(strings.Split(f, ",")[0])
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func rateLimitDetails(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !detailsLimiter.allow(clientIP(r)) {
			w.Header().Set("Retry-After", "5")
			http.Error(w, `{"error":"rate limit: try again in a few seconds"}`, http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}

// requireAdminKey guards the detail endpoints when ADMIN_API_KEY is set.
// The key comes from X-Admin-Key or a bearer Authorization header.
func requireAdminKey(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		want := config.AdminAPIKey
		if want == "" {
			next(w, r)
			return
		}
		got := r.Header.Get("X-Admin-Key")
		if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); got == "" && ok {
			got = token
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(want)) != 1 {
			w.Header().Set("WWW-Authenticate", `Bearer realm="secform"`)
			http.Error(w, `{"error":"admin key required"}`, http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}
