package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Limiter is a fixed-window per-client request limiter. State is a
// mutex-guarded map pruned lazily on access, which is enough for a
// single-process gateway.
type Limiter struct {
	mu     sync.Mutex
	seen   map[string][]time.Time
	max    int
	window time.Duration
	now    func() time.Time
}

func New(max int, window time.Duration) *Limiter {
	return &Limiter{
		seen:   make(map[string][]time.Time),
		max:    max,
		window: window,
		now:    time.Now,
	}
}

// Allow records a request for the key and reports whether it is within
// the limit.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	var live []time.Time
	for _, t := range l.seen[key] {
		if now.Sub(t) < l.window {
			live = append(live, t)
		}
	}
	if len(live) >= l.max {
		l.seen[key] = live
		return false
	}
	l.seen[key] = append(live, now)
	return true
}

// ClientIP extracts the requesting client's address, preferring the
// first X-Forwarded-For hop set by the fronting proxy.
func ClientIP(r *http.Request) string {
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	if real := r.Header.Get("X-Real-Ip"); real != "" {
		return real
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
