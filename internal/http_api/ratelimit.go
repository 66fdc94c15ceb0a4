package http_api

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/serayd61/Superchain-token-explorer-sub001/internal/metrics"
	"github.com/serayd61/Superchain-token-explorer-sub001/pkg/logger"
)

const (
	// DefaultAPIRateLimit is the number of requests per minute allowed per client IP.
	DefaultAPIRateLimit = 10

	staleLimiterTTL = 10 * time.Minute
	cleanupInterval = time.Minute
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter limits API requests per client IP with a token bucket that
// refills perMinute tokens every minute.
type RateLimiter struct {
	logger *logger.Logger

	mu       sync.Mutex
	limiters map[string]*limiterEntry
	limit    rate.Limit
	burst    int

	nowFunc  func() time.Time
	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewRateLimiter starts the background sweep of idle clients. Call Stop to release it.
func NewRateLimiter(perMinute int, logger *logger.Logger) *RateLimiter {
	if perMinute <= 0 {
		perMinute = DefaultAPIRateLimit
	}
	rl := &RateLimiter{
		logger:   logger,
		limiters: make(map[string]*limiterEntry),
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
		nowFunc:  time.Now,
		stopCh:   make(chan struct{}),
	}
	go rl.cleanupLoop()
	return rl
}

// Stop is safe to call multiple times.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopCh)
	})
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stopCh:
			return
		case <-ticker.C:
			rl.evictStale()
		}
	}
}

func (rl *RateLimiter) evictStale() {
	now := rl.nowFunc()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for ip, entry := range rl.limiters {
		if now.Sub(entry.lastSeen) > staleLimiterTTL {
			delete(rl.limiters, ip)
		}
	}
}

func (rl *RateLimiter) allow(ip string) (bool, time.Duration) {
	now := rl.nowFunc()
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, ok := rl.limiters[ip]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[ip] = entry
	}
	entry.lastSeen = now

	if entry.limiter.AllowN(now, 1) {
		return true, 0
	}
	// Time until the next token is available.
	missing := 1 - entry.limiter.TokensAt(now)
	return false, time.Duration(missing / float64(rl.limit) * float64(time.Second))
}

// Middleware rejects requests over the limit with 429 and a Retry-After header.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := extractClientIP(c.Request)
		ok, wait := rl.allow(ip)
		if ok {
			c.Next()
			return
		}

		retryAfter := int(wait.Round(time.Second) / time.Second)
		if retryAfter < 1 {
			retryAfter = 1
		}
		metrics.APIRateLimited.Inc()
		rl.logger.Warn("API rate limit exceeded", "client_ip", ip, "path", c.Request.URL.Path)

		c.Header("Retry-After", strconv.Itoa(retryAfter))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"success": false,
			"error":   "Rate limit exceeded, try again later",
		})
	}
}

// extractClientIP checks X-Forwarded-For (first IP), X-Real-IP, then RemoteAddr.
func extractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if idx := strings.IndexByte(xff, ','); idx != -1 {
			return strings.TrimSpace(xff[:idx])
		}
		return strings.TrimSpace(xff)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
