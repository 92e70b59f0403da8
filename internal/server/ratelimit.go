// ratelimit.go - Sliding-window rate limiter middleware by client IP.
//
// Guards the upload endpoint. Clients are keyed on the connection address
// unless forwarding headers are explicitly trusted.
package server

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// rateLimiter tracks requests per IP address using an in-memory map with
// periodic cleanup.
type rateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rate     int           // requests allowed per window
	window   time.Duration // time window for rate limiting

	trustProxy bool // key on X-Forwarded-For / X-Real-IP


	stop     chan struct{}
	stopOnce sync.Once
}

// visitor tracks request timestamps for a single IP address
type visitor struct {
	requests []time.Time
	mu       sync.Mutex
}

// newRateLimiter creates a rate limiter that allows 'rate' requests per 'window'.
// Example: newRateLimiter(60, time.Minute, false) allows 60 requests per minute per IP.
func newRateLimiter(rate int, window time.Duration, trustProxy bool) *rateLimiter {
	rl := &rateLimiter{
		visitors:   make(map[string]*visitor),
		rate:       rate,
		window:     window,
		trustProxy: trustProxy,
		stop:       make(chan struct{}),
	}

	go rl.cleanup()

	return rl
}

func errRateLimited() *Error {
	return &Error{Kind: KindRateLimited, Code: "rate_limited", Message: msgRateLimited}
}

// middleware returns an HTTP middleware that enforces rate limits
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.allow(getClientIP(r, rl.trustProxy)) {
			w.Header().Set("Retry-After", rl.retryAfter())
			writeError(w, r, errRateLimited())
			return
		}

		next.ServeHTTP(w, r)
	})
}

// allow checks if a request from the given IP should be allowed
func (rl *rateLimiter) allow(ip string) bool {
	rl.mu.Lock()
	v, exists := rl.visitors[ip]
	if !exists {
		v = &visitor{}
		rl.visitors[ip] = v
	}
	rl.mu.Unlock()

	v.mu.Lock()
	defer v.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-rl.window)

	// Drop requests older than the window
	kept := v.requests[:0]
	for _, t := range v.requests {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	v.requests = kept

	if len(v.requests) >= rl.rate {
		return false
	}

	v.requests = append(v.requests, now)
	return true
}

func (rl *rateLimiter) retryAfter() string {
	secs := int(rl.window.Seconds())
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// close stops the cleanup goroutine.
func (rl *rateLimiter) close() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// cleanup periodically removes visitors with no recent requests
func (rl *rateLimiter) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
		}

		rl.mu.Lock()
		cutoff := time.Now().Add(-rl.window * 2) // Keep visitors for 2x window

		for ip, v := range rl.visitors {
			v.mu.Lock()
			if len(v.requests) == 0 || v.requests[len(v.requests)-1].Before(cutoff) {
				delete(rl.visitors, ip)
			}
			v.mu.Unlock()
		}
		rl.mu.Unlock()
	}
}

// getClientIP extracts the client's IP address from the request. The
// X-Forwarded-For and X-Real-IP headers are client-controlled, so they are
// only consulted when trustProxy is set.
func getClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if ip := strings.TrimSpace(first); ip != "" {
				return ip
			}
		}

		if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
			return xri
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
