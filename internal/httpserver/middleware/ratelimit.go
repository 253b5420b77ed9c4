package middleware

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/felixgeelhaar/fortify/ratelimit"

	"github.com/williamsiker/practicas/internal/config"
)

// RateLimiter throttles requests per API key, or per client IP for
// anonymous requests, using a token bucket.
type RateLimiter struct {
	limiter  ratelimit.RateLimiter
	interval time.Duration
}

// DefaultRateLimitConfig returns sensible defaults for rate limiting.
func DefaultRateLimitConfig() config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled:  true,
		Rate:     20,
		Burst:    40,
		Interval: time.Second,
	}
}

// NewRateLimiter creates a new rate limiter with the given configuration.
// Zero fields fall back to DefaultRateLimitConfig.
func NewRateLimiter(cfg config.RateLimitConfig) *RateLimiter {
	def := DefaultRateLimitConfig()
	if cfg.Rate <= 0 {
		cfg.Rate = def.Rate
	}
	if cfg.Burst <= 0 {
		cfg.Burst = max(def.Burst, cfg.Rate)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	return &RateLimiter{
		limiter: ratelimit.New(&ratelimit.Config{
			Rate:     cfg.Rate,
			Burst:    cfg.Burst,
			Interval: cfg.Interval,
		}),
		interval: cfg.Interval,
	}
}

// Handler returns middleware that answers 429 once a client's bucket is empty.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	retryAfter := strconv.Itoa(max(int(rl.interval.Seconds()), 1))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.limiter.Allow(r.Context(), clientKey(r)) {
			w.Header().Set("Retry-After", retryAfter)
			http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Close releases the limiter's resources.
func (rl *RateLimiter) Close() error {
	return rl.limiter.Close()
}

func clientKey(r *http.Request) string {
	if key := requestAPIKey(r); key != "" {
		return "key:" + key
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
