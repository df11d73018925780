package internal

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type rateLimiter struct {
	mu        sync.Mutex
	store     map[string]*rateEntry
	rps       rate.Limit
	burst     int
	ttl       time.Duration
	lastPrune time.Time
}

type rateEntry struct {
	limiter *rate.Limiter
	last    time.Time
}

// NewRateLimitHandler wraps next with a per-client token bucket keyed by
// source IP. Entries idle longer than ttl are dropped so the bucket map
// does not grow without bound. A non-positive rps disables limiting.
func NewRateLimitHandler(next http.Handler, rps int64, burst int64, ttl time.Duration) http.Handler {
	if rps <= 0 {
		return next
	}
	limiter := newRateLimiter(rps, burst, ttl)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !limiter.allow(clientIP(r)) {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func newRateLimiter(rps, burst int64, ttl time.Duration) *rateLimiter {
	if burst <= 0 {
		burst = rps
		if burst < 1 {
			burst = 1
		}
	}
	return &rateLimiter{
		store: make(map[string]*rateEntry),
		rps:   rate.Limit(rps),
		burst: int(burst),
		ttl:   ttl,
	}
}

func (l *rateLimiter) allow(key string) bool {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	l.prune(now)

	entry, ok := l.store[key]
	if !ok {
		entry = &rateEntry{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.store[key] = entry
	}
	entry.last = now
	return entry.limiter.Allow()
}

// prune drops entries idle longer than ttl, at most once per ttl.
func (l *rateLimiter) prune(now time.Time) {
	if l.ttl <= 0 || now.Sub(l.lastPrune) < l.ttl {
		return
	}
	l.lastPrune = now
	for key, entry := range l.store {
		if now.Sub(entry.last) > l.ttl {
			delete(l.store, key)
		}
	}
}

func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		if len(parts) > 0 {
			return strings.TrimSpace(parts[0])
		}
	}
	if ip := r.Header.Get("X-Real-Ip"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}
