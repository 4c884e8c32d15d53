package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/keycal/keycal/internal/auth"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	// RatePerSecond applies to authenticated principals
	RatePerSecond int
	Burst         int
	// AnonRatePerSecond applies to requests without a principal, keyed by IP
	AnonRatePerSecond int
	AnonBurst         int
	// CleanupInterval is how often idle limiters are dropped
	CleanupInterval time.Duration
	// MaxAge is how long to keep a limiter after last use
	MaxAge time.Duration
}

// DefaultRateLimitConfig returns sensible defaults
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RatePerSecond:     50,
		Burst:             100,
		AnonRatePerSecond: 10,
		AnonBurst:         20,
		CleanupInterval:   5 * time.Minute,
		MaxAge:            10 * time.Minute,
	}
}

type rateLimiterEntry struct {
	limiter      *rate.Limiter
	lastSeenNano atomic.Int64
}

// RateLimiter manages per-key token buckets.
type RateLimiter struct {
	config   RateLimitConfig
	limiters sync.Map // map[string]*rateLimiterEntry
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a rate limiter and starts its cleanup loop.
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		config: config,
		stopCh: make(chan struct{}),
	}
	go rl.cleanup()
	return rl
}

func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			rl.limiters.Range(func(key, value any) bool {
				entry := value.(*rateLimiterEntry)
				if now.Sub(time.Unix(0, entry.lastSeenNano.Load())) > rl.config.MaxAge {
					rl.limiters.Delete(key)
				}
				return true
			})
		case <-rl.stopCh:
			return
		}
	}
}

// Stop ends the cleanup loop. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// Close implements io.Closer.
func (rl *RateLimiter) Close() error {
	rl.Stop()
	return nil
}

func (rl *RateLimiter) getLimiter(key string, ratePerSecond, burst int) *rate.Limiter {
	now := time.Now().UnixNano()

	if val, ok := rl.limiters.Load(key); ok {
		entry := val.(*rateLimiterEntry)
		entry.lastSeenNano.Store(now)
		return entry.limiter
	}

	entry := &rateLimiterEntry{limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst)}
	entry.lastSeenNano.Store(now)
	actual, _ := rl.limiters.LoadOrStore(key, entry)
	return actual.(*rateLimiterEntry).limiter
}

// Allow checks if a request is allowed for the given key and rate
func (rl *RateLimiter) Allow(key string, ratePerSecond, burst int) bool {
	return rl.getLimiter(key, ratePerSecond, burst).Allow()
}

// RateLimit enforces per-principal limits, falling back to the client IP
// for anonymous requests.
func RateLimit(rl *RateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var key string
			var ratePerSecond, burst int

			if p := auth.PrincipalFrom(r.Context()); p != nil {
				key = "sub:" + p.Subject
				ratePerSecond, burst = rl.config.RatePerSecond, rl.config.Burst
			} else {
				ip := r.RemoteAddr
				if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
					ip = host
				}
				key = "ip:" + ip
				ratePerSecond, burst = rl.config.AnonRatePerSecond, rl.config.AnonBurst
			}

			if !rl.Allow(key, ratePerSecond, burst) {
				w.Header().Set("Retry-After", "1")
				w.Header().Set("X-RateLimit-Limit", strconv.Itoa(ratePerSecond))
				w.Header().Set("X-RateLimit-Remaining", "0")
				writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
