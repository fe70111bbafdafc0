package limits

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ConnectionRateLimiter protects the subscribe endpoint from connection
// floods with two token buckets:
//
//   - Per-IP: limits a single client's reconnect churn
//   - Global: limits system-wide accept pressure from distributed sources
//
// Legitimate reconnect bursts (a browser tab re-establishing EventSource
// streams after a deploy) fit inside the burst allowance.
type ConnectionRateLimiter struct {
	ipLimiters map[string]*ipLimiterEntry
	ipMu       sync.Mutex
	ipBurst    int
	ipRate     float64
	ipTTL      time.Duration

	globalLimiter *rate.Limiter

	logger zerolog.Logger

	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}

	// onReject, when set, is called with the scope ("global" or "per_ip")
	// of every rejection. Used to feed Prometheus counters.
	onReject func(scope string)
}

type ipLimiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiterConfig holds connection rate limiter settings.
type RateLimiterConfig struct {
	IPBurst int     // max burst connections per IP (default 10)
	IPRate  float64 // sustained connections/sec per IP (default 1.0)
	IPTTL   time.Duration

	GlobalBurst int     // max burst connections system-wide (default 300)
	GlobalRate  float64 // sustained connections/sec system-wide (default 50.0)

	Logger   zerolog.Logger
	OnReject func(scope string)
}

// NewConnectionRateLimiter creates a limiter and starts its cleanup loop.
func NewConnectionRateLimiter(config RateLimiterConfig) *ConnectionRateLimiter {
	if config.IPBurst == 0 {
		config.IPBurst = 10
	}
	if config.IPRate == 0 {
		config.IPRate = 1.0
	}
	if config.IPTTL == 0 {
		config.IPTTL = 5 * time.Minute
	}
	if config.GlobalBurst == 0 {
		config.GlobalBurst = 300
	}
	if config.GlobalRate == 0 {
		config.GlobalRate = 50.0
	}

	limiter := &ConnectionRateLimiter{
		ipLimiters:    make(map[string]*ipLimiterEntry),
		ipBurst:       config.IPBurst,
		ipRate:        config.IPRate,
		ipTTL:         config.IPTTL,
		globalLimiter: rate.NewLimiter(rate.Limit(config.GlobalRate), config.GlobalBurst),
		logger:        config.Logger.With().Str("component", "connection_rate_limiter").Logger(),
		stopCleanup:   make(chan struct{}),
		onReject:      config.OnReject,
	}

	limiter.cleanupTicker = time.NewTicker(1 * time.Minute)
	go limiter.cleanupLoop()

	limiter.logger.Info().
		Int("ip_burst", config.IPBurst).
		Float64("ip_rate", config.IPRate).
		Dur("ip_ttl", config.IPTTL).
		Int("global_burst", config.GlobalBurst).
		Float64("global_rate", config.GlobalRate).
		Msg("Connection rate limiter initialized")

	return limiter
}

// Allow reports whether a connection from the given IP may proceed.
// The global bucket is checked first (no map lookup on the fast path).
func (crl *ConnectionRateLimiter) Allow(ip string) bool {
	if !crl.globalLimiter.Allow() {
		crl.logger.Debug().
			Str("ip", ip).
			Msg("Connection rejected: global rate limit exceeded")
		crl.reject("global")
		return false
	}

	if !crl.getIPLimiter(ip).Allow() {
		crl.logger.Debug().
			Str("ip", ip).
			Msg("Connection rejected: per-IP rate limit exceeded")
		crl.reject("per_ip")
		return false
	}

	return true
}

func (crl *ConnectionRateLimiter) reject(scope string) {
	if crl.onReject != nil {
		crl.onReject(scope)
	}
}

func (crl *ConnectionRateLimiter) getIPLimiter(ip string) *rate.Limiter {
	crl.ipMu.Lock()
	defer crl.ipMu.Unlock()

	if entry, ok := crl.ipLimiters[ip]; ok {
		entry.lastAccess = time.Now()
		return entry.limiter
	}

	limiter := rate.NewLimiter(rate.Limit(crl.ipRate), crl.ipBurst)
	crl.ipLimiters[ip] = &ipLimiterEntry{
		limiter:    limiter,
		lastAccess: time.Now(),
	}
	return limiter
}

// cleanupLoop removes stale per-IP limiters so the map cannot grow without
// bound across many distinct client addresses.
func (crl *ConnectionRateLimiter) cleanupLoop() {
	for {
		select {
		case <-crl.cleanupTicker.C:
			crl.cleanup()
		case <-crl.stopCleanup:
			crl.cleanupTicker.Stop()
			return
		}
	}
}

func (crl *ConnectionRateLimiter) cleanup() {
	crl.ipMu.Lock()
	defer crl.ipMu.Unlock()

	now := time.Now()
	removed := 0
	for ip, entry := range crl.ipLimiters {
		if now.Sub(entry.lastAccess) > crl.ipTTL {
			delete(crl.ipLimiters, ip)
			removed++
		}
	}
	if removed > 0 {
		crl.logger.Debug().
			Int("removed", removed).
			Int("remaining", len(crl.ipLimiters)).
			Msg("Cleaned up stale IP rate limiters")
	}
}

// Stop terminates the cleanup goroutine. Called during shutdown.
func (crl *ConnectionRateLimiter) Stop() {
	close(crl.stopCleanup)
}

// TrackedIPs returns the number of per-IP buckets currently held.
func (crl *ConnectionRateLimiter) TrackedIPs() int {
	crl.ipMu.Lock()
	defer crl.ipMu.Unlock()
	return len(crl.ipLimiters)
}
