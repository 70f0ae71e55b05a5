package middleware

import (
	"sync"
	"time"

	"github.com/TsaH0/CircleOfInevitibility-backend/pkg/errors"
	"github.com/TsaH0/CircleOfInevitibility-backend/pkg/logger"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// IPRateLimiter manages rate limiters for each IP
type IPRateLimiter struct {
	ips   map[string]*rateLimiterEntry
	mu    sync.Mutex
	r     rate.Limit
	burst int
}

type rateLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewIPRateLimiter creates a new IP-based rate limiter
// r = requests per second, burst = max burst size
func NewIPRateLimiter(r rate.Limit, burst int) *IPRateLimiter {
	rl := &IPRateLimiter{
		ips:   make(map[string]*rateLimiterEntry),
		r:     r,
		burst: burst,
	}

	go rl.cleanup()

	return rl
}

func (rl *IPRateLimiter) cleanup() {
	for {
		time.Sleep(time.Minute)
		rl.evictIdle(time.Now(), 3*time.Minute)
	}
}

func (rl *IPRateLimiter) evictIdle(now time.Time, idle time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, entry := range rl.ips {
		if now.Sub(entry.lastSeen) > idle {
			delete(rl.ips, ip)
		}
	}
}

// GetLimiter returns the rate limiter for the given IP
func (rl *IPRateLimiter) GetLimiter(ip string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	entry, exists := rl.ips[ip]
	if !exists {
		entry = &rateLimiterEntry{limiter: rate.NewLimiter(rl.r, rl.burst)}
		rl.ips[ip] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter
}

var (
	// General API: 600 requests per minute (10/sec)
	GeneralLimiter = NewIPRateLimiter(rate.Limit(10.0), 50)

	// User creation issues tokens: 20 per minute
	SignupLimiter = NewIPRateLimiter(rate.Limit(20.0/60.0), 10)

	// Contest submissions: 60 per minute, submit-all counts once
	SubmitLimiter = NewIPRateLimiter(rate.Limit(1.0), 10)

	// Reflection generation calls paid providers: 10 per minute
	ReflectionLimiter = NewIPRateLimiter(rate.Limit(10.0/60.0), 3)
)

// RateLimitMiddleware creates a rate limiting middleware with a custom limiter
func RateLimitMiddleware(limiter *IPRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := c.ClientIP()
		if !limiter.GetLimiter(ip).Allow() {
			logger.Warn().
				Str("ip", ip).
				Str("path", c.Request.URL.Path).
				Msg("Rate limit exceeded")

			abortWith(c, errors.ErrRateLimit.WithMessage("Rate limit exceeded. Please slow down."))
			return
		}

		c.Next()
	}
}

func GeneralRateLimit() gin.HandlerFunc {
	return RateLimitMiddleware(GeneralLimiter)
}

func SignupRateLimit() gin.HandlerFunc {
	return RateLimitMiddleware(SignupLimiter)
}

func SubmitRateLimit() gin.HandlerFunc {
	return RateLimitMiddleware(SubmitLimiter)
}

func ReflectionRateLimit() gin.HandlerFunc {
	return RateLimitMiddleware(ReflectionLimiter)
}
