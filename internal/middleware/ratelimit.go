package middleware

import (
	"encoding/json"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sakif/sprintium/internal/auth"
)

// RateLimiterConfig holds the token-bucket parameters for both limiter sets.
type RateLimiterConfig struct {
	AuthRate        rate.Limit    // public /auth/* routes, per client IP
	AuthBurst       int
	APIRate         rate.Limit    // authenticated API, per user
	APIBurst        int
	CleanupInterval time.Duration // how often idle limiters are evicted
}

// DefaultRateLimiterConfig allows 10 auth requests per minute per IP and
// 120 API requests per minute per user.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return PerMinute(10, 120)
}

// PerMinute builds a config from per-minute budgets. The burst equals the
// budget so a fresh client can spend its whole minute at once.
func PerMinute(authPerMinute, apiPerMinute int) RateLimiterConfig {
	return RateLimiterConfig{
		AuthRate:        rate.Limit(float64(authPerMinute) / 60.0),
		AuthBurst:       authPerMinute,
		APIRate:         rate.Limit(float64(apiPerMinute) / 60.0),
		APIBurst:        apiPerMinute,
		CleanupInterval: 5 * time.Minute,
	}
}

type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// limiterSet maps a client key to its bucket.
type limiterSet struct {
	mu       sync.RWMutex
	limiters map[string]*clientLimiter
	limit    rate.Limit
	burst    int
}

func newLimiterSet(limit rate.Limit, burst int) *limiterSet {
	return &limiterSet{
		limiters: make(map[string]*clientLimiter),
		limit:    limit,
		burst:    burst,
	}
}

func (s *limiterSet) get(key string) *rate.Limiter {
	s.mu.RLock()
	cl, exists := s.limiters[key]
	s.mu.RUnlock()

	if exists {
		s.mu.Lock()
		cl.lastAccess = time.Now()
		s.mu.Unlock()
		return cl.limiter
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// double-check: another request may have created it meanwhile
	if cl, exists := s.limiters[key]; exists {
		cl.lastAccess = time.Now()
		return cl.limiter
	}

	limiter := rate.NewLimiter(s.limit, s.burst)
	s.limiters[key] = &clientLimiter{limiter: limiter, lastAccess: time.Now()}
	return limiter
}

func (s *limiterSet) evictIdle(now time.Time, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, cl := range s.limiters {
		if now.Sub(cl.lastAccess) > ttl {
			delete(s.limiters, key)
		}
	}
}

func (s *limiterSet) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.limiters)
}

// RateLimiter enforces per-IP limits on the public auth routes and per-user
// limits on the authenticated API. A background goroutine evicts limiters
// idle for more than twice the cleanup interval; call Stop on shutdown.
type RateLimiter struct {
	config RateLimiterConfig
	logger *slog.Logger

	auth *limiterSet
	api  *limiterSet

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a RateLimiter and starts its cleanup loop.
func NewRateLimiter(config RateLimiterConfig, logger *slog.Logger) *RateLimiter {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}
	rl := &RateLimiter{
		config: config,
		logger: logger,
		auth:   newLimiterSet(config.AuthRate, config.AuthBurst),
		api:    newLimiterSet(config.APIRate, config.APIBurst),
		stopCh: make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop ends the cleanup goroutine. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// AuthMiddleware limits requests per client IP. Mount it on the public
// /auth/* routes, after chi's RealIP.
func (rl *RateLimiter) AuthMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientIP(r)
			if !rl.auth.get(key).Allow() {
				rl.logger.Warn("rate limit exceeded",
					slog.String("client_ip", key),
					slog.String("limit_type", "auth"),
				)
				writeRateLimitResponse(w, rl.config.AuthRate)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// APIMiddleware limits requests per authenticated user. It must run after
// auth.RequireAuth; requests without a user fall back to the client IP.
func (rl *RateLimiter) APIMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, ok := auth.EmailFromContext(r.Context())
			if !ok {
				key = "ip:" + clientIP(r)
			}
			if !rl.api.get(key).Allow() {
				rl.logger.Warn("rate limit exceeded",
					slog.String("client", key),
					slog.String("limit_type", "api"),
				)
				writeRateLimitResponse(w, rl.config.APIRate)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AuthLimiterCount reports how many per-IP limiters are live.
func (rl *RateLimiter) AuthLimiterCount() int { return rl.auth.len() }

// APILimiterCount reports how many per-user limiters are live.
func (rl *RateLimiter) APILimiterCount() int { return rl.api.len() }

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *RateLimiter) cleanup(now time.Time) {
	ttl := rl.config.CleanupInterval * 2
	rl.auth.evictIdle(now, ttl)
	rl.api.evictIdle(now, ttl)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		// RealIP rewrites RemoteAddr without a port
		return r.RemoteAddr
	}
	return host
}

// writeRateLimitResponse writes 429 with the standard error body. Retry-After
// is the time until one token is refilled, at least one second.
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	retryAfterSec := 1
	if r > 0 {
		retryAfterSec = max(int(math.Ceil(1.0/float64(r))), 1)
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)

	json.NewEncoder(w).Encode(map[string]string{
		"error":   "rate_limited",
		"message": "Too many requests. Please try again later.",
	})
}
