package limits

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestPerIPBurstExhaustion(t *testing.T) {
	limiter := NewConnectionRateLimiter(RateLimiterConfig{
		IPBurst:     3,
		IPRate:      0.001, // effectively no refill within the test
		GlobalBurst: 100,
		GlobalRate:  100,
		Logger:      zerolog.Nop(),
	})
	defer limiter.Stop()

	for i := 0; i < 3; i++ {
		assert.True(t, limiter.Allow("10.0.0.1"), "connection %d within burst", i)
	}
	assert.False(t, limiter.Allow("10.0.0.1"))

	// A different client has its own bucket.
	assert.True(t, limiter.Allow("10.0.0.2"))
}

func TestGlobalBurstExhaustion(t *testing.T) {
	var rejectedScopes []string
	limiter := NewConnectionRateLimiter(RateLimiterConfig{
		IPBurst:     100,
		IPRate:      100,
		GlobalBurst: 2,
		GlobalRate:  0.001,
		Logger:      zerolog.Nop(),
		OnReject:    func(scope string) { rejectedScopes = append(rejectedScopes, scope) },
	})
	defer limiter.Stop()

	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.True(t, limiter.Allow("10.0.0.2"))
	assert.False(t, limiter.Allow("10.0.0.3"))
	assert.Equal(t, []string{"global"}, rejectedScopes)
}

func TestPerIPRefill(t *testing.T) {
	limiter := NewConnectionRateLimiter(RateLimiterConfig{
		IPBurst:     1,
		IPRate:      50, // one token every 20ms
		GlobalBurst: 100,
		GlobalRate:  100,
		Logger:      zerolog.Nop(),
	})
	defer limiter.Stop()

	assert.True(t, limiter.Allow("10.0.0.1"))
	assert.False(t, limiter.Allow("10.0.0.1"))

	time.Sleep(100 * time.Millisecond)
	assert.True(t, limiter.Allow("10.0.0.1"))
}

func TestTrackedIPs(t *testing.T) {
	limiter := NewConnectionRateLimiter(RateLimiterConfig{Logger: zerolog.Nop()})
	defer limiter.Stop()

	limiter.Allow("10.0.0.1")
	limiter.Allow("10.0.0.2")
	limiter.Allow("10.0.0.1")
	assert.Equal(t, 2, limiter.TrackedIPs())
}
