package ratelimit

import (
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	staleAfter      = 10 * time.Minute
	cleanupInterval = time.Minute
)

// IPRateLimiter keeps a token bucket per client IP and evicts buckets not
// seen for staleAfter.
type IPRateLimiter struct {
	log      *log.Logger
	limiters map[string]*rate.Limiter
	lastSeen map[string]time.Time
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	stop     chan struct{}
}

// NewIPRateLimiter allows requests per window for each client IP.
func NewIPRateLimiter(logger *log.Logger, requests int, window time.Duration) *IPRateLimiter {
	rl := &IPRateLimiter{
		log:      logger,
		limiters: make(map[string]*rate.Limiter),
		lastSeen: make(map[string]time.Time),
		rate:     rate.Every(window / time.Duration(requests)),
		burst:    requests,
		stop:     make(chan struct{}),
	}

	go rl.cleanup()

	return rl
}

func (rl *IPRateLimiter) cleanup() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.mu.Lock()
			for ip, ls := range rl.lastSeen {
				if time.Since(ls) > staleAfter {
					delete(rl.limiters, ip)
					delete(rl.lastSeen, ip)
				}
			}
			rl.mu.Unlock()
		}
	}
}

func (rl *IPRateLimiter) Stop() {
	close(rl.stop)
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		return strings.TrimSpace(ips[len(ips)-1])
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}

	return host
}

func (rl *IPRateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	bucket, ok := rl.limiters[ip]
	if !ok {
		bucket = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[ip] = bucket
	}

	rl.lastSeen[ip] = time.Now()
	return bucket.Allow()
}

func (rl *IPRateLimiter) Middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !rl.Allow(ip) {
			rl.log.Printf("rate limit exceeded for %s on %s", ip, r.URL.Path)
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}

		next(w, r)
	}
}
