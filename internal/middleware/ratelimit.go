package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type visitor struct {
	connections int
	limiter     *rate.Limiter
	lastSeen    time.Time
}

// IPRateLimiter tracks per-IP connection counts and message rates.
type IPRateLimiter struct {
	mu       sync.Mutex
	visitors map[string]*visitor

	maxConnsPerIP int
	msgRate       rate.Limit
	msgBurst      int
	now           func() time.Time
}

// NewIPRateLimiter creates a rate limiter.
//   - maxConnsPerIP: max simultaneous WebSocket connections per IP
//   - msgRate: sustained messages per second per IP
//   - msgBurst: messages allowed in a burst above the sustained rate
func NewIPRateLimiter(maxConnsPerIP int, msgRate float64, msgBurst int) *IPRateLimiter {
	if msgBurst <= 0 {
		msgBurst = 1
	}
	return &IPRateLimiter{
		visitors:      make(map[string]*visitor),
		maxConnsPerIP: maxConnsPerIP,
		msgRate:       rate.Limit(msgRate),
		msgBurst:      msgBurst,
		now:           time.Now,
	}
}

func (rl *IPRateLimiter) visitor(ip string) *visitor {
	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.msgRate, rl.msgBurst)}
		rl.visitors[ip] = v
	}
	v.lastSeen = rl.now()
	return v
}

// ConnectAllowed checks if an IP can open a new connection.
// If allowed, increments the connection count and returns true.
func (rl *IPRateLimiter) ConnectAllowed(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v := rl.visitor(ip)
	if v.connections >= rl.maxConnsPerIP {
		return false
	}
	v.connections++
	return true
}

// Disconnect decrements the connection count for an IP.
func (rl *IPRateLimiter) Disconnect(ip string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	v, ok := rl.visitors[ip]
	if !ok {
		return
	}
	v.connections--
	if v.connections < 0 {
		v.connections = 0
	}
}

// Connections returns the open connection count for an IP.
func (rl *IPRateLimiter) Connections(ip string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if v, ok := rl.visitors[ip]; ok {
		return v.connections
	}
	return 0
}

// MessageAllowed checks if a message from this IP is within rate limits.
func (rl *IPRateLimiter) MessageAllowed(ip string) bool {
	rl.mu.Lock()
	v := rl.visitor(ip)
	now := v.lastSeen
	rl.mu.Unlock()
	return v.limiter.AllowN(now, 1)
}

// Sweep removes visitors with no open connections idle for longer than
// maxIdle. It returns the number removed.
func (rl *IPRateLimiter) Sweep(maxIdle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-maxIdle)
	removed := 0
	for ip, v := range rl.visitors {
		if v.connections <= 0 && v.lastSeen.Before(cutoff) {
			delete(rl.visitors, ip)
			removed++
		}
	}
	return removed
}

// Run sweeps stale visitors every interval until done is closed.
func (rl *IPRateLimiter) Run(done <-chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			rl.Sweep(interval)
		case <-done:
			return
		}
	}
}

// RealIP extracts the client IP from the request.
// Checks X-Forwarded-For (for reverse proxies like Fly.io) then RemoteAddr.
func RealIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if comma := strings.Index(xff, ","); comma > 0 {
			return strings.TrimSpace(xff[:comma])
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
