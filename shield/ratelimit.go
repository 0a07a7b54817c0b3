package shield

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

type bucket struct {
	count   int
	resetAt time.Time
}

// RateLimiter allows at most max requests per client IP in each fixed window.
// A limiter with max <= 0 lets everything through.
type RateLimiter struct {
	max        int
	window     time.Duration
	trustProxy bool
	now        func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

// NewRateLimiter creates a limiter of max requests per window per client.
// trustProxy makes the limiter key clients by X-Forwarded-For; set it only
// behind a reverse proxy that writes that header.
func NewRateLimiter(max int, window time.Duration, trustProxy bool) *RateLimiter {
	return &RateLimiter{
		max:        max,
		window:     window,
		trustProxy: trustProxy,
		now:        time.Now,
		buckets:    make(map[string]*bucket),
	}
}

// StartGC drops expired buckets every window until done is closed.
func (rl *RateLimiter) StartGC(done <-chan struct{}) {
	if rl.max <= 0 {
		return
	}
	tick := time.NewTicker(rl.window)
	go func() {
		defer tick.Stop()
		for {
			select {
			case <-done:
				return
			case <-tick.C:
				rl.gc()
			}
		}
	}()
}

func (rl *RateLimiter) gc() {
	now := rl.now()
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, b := range rl.buckets {
		if now.After(b.resetAt) {
			delete(rl.buckets, ip)
		}
	}
}

func (rl *RateLimiter) allow(ip string) bool {
	if rl.max <= 0 {
		return true
	}
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	b, ok := rl.buckets[ip]
	if !ok || now.After(b.resetAt) {
		rl.buckets[ip] = &bucket{count: 1, resetAt: now.Add(rl.window)}
		return true
	}
	b.count++
	return b.count <= rl.max
}

// Middleware answers 429 with a JSON error once a client exceeds its quota.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ExtractIP(r, rl.trustProxy)
		if rl.allow(ip) {
			next.ServeHTTP(w, r)
			return
		}

		GetLogger(r.Context()).Warn("ratelimit: request blocked", "ip", ip)
		w.Header().Set("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]string{"error": "rate limit exceeded"})
	})
}

// ExtractIP returns the client IP. RemoteAddr is used unless trustProxy is
// set, in which case the last X-Forwarded-For hop wins: it is the one the
// proxy appended, earlier hops come from the client.
func ExtractIP(r *http.Request, trustProxy bool) string {
	if xff := r.Header.Get("X-Forwarded-For"); trustProxy && xff != "" {
		hops := strings.Split(xff, ",")
		if last := strings.TrimSpace(hops[len(hops)-1]); last != "" {
			return last
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
