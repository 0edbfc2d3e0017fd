package ratelimit_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/censusql/gateway/internal/ratelimit"
)

func TestInMemoryLimiter_EnforcesPerIdentityLimit(t *testing.T) {
	l := ratelimit.NewInMemoryLimiter(ratelimit.Config{
		GlobalRPS:   1000,
		GlobalBurst: 1000,
		IdentityRPS: 2,
		IdentityBurst: 2,
	})
	defer l.Close()

	assert.True(t, l.Allow("caller-1"))
	assert.True(t, l.Allow("caller-1"))
	assert.False(t, l.Allow("caller-1"))
}

func TestInMemoryLimiter_IdentitiesAreIndependent(t *testing.T) {
	l := ratelimit.NewInMemoryLimiter(ratelimit.Config{
		GlobalRPS:     1000,
		GlobalBurst:   1000,
		IdentityRPS:   1,
		IdentityBurst: 1,
	})
	defer l.Close()

	assert.True(t, l.Allow("caller-a"))
	assert.True(t, l.Allow("caller-b"))
	assert.False(t, l.Allow("caller-a"))
}

func TestInMemoryLimiter_GlobalLimitAppliesFirst(t *testing.T) {
	l := ratelimit.NewInMemoryLimiter(ratelimit.Config{
		GlobalRPS:     1,
		GlobalBurst:   1,
		IdentityRPS:   1000,
		IdentityBurst: 1000,
	})
	defer l.Close()

	assert.True(t, l.Allow("caller-1"))
	assert.False(t, l.Allow("caller-2"))
}

func TestInMemoryLimiter_UnauthenticatedCallersShareOneBucket(t *testing.T) {
	l := ratelimit.NewInMemoryLimiter(ratelimit.Config{
		GlobalRPS:   1000,
		GlobalBurst: 1000,
		UnauthRPS:   1,
		UnauthBurst: 1,
	})
	defer l.Close()

	assert.True(t, l.Allow(""))
	assert.False(t, l.Allow(""))
}

func TestInMemoryLimiter_CleanupRemovesIdleIdentities(t *testing.T) {
	l := ratelimit.NewInMemoryLimiter(ratelimit.Config{
		GlobalRPS:       1000,
		GlobalBurst:     1000,
		IdentityRPS:     1,
		IdentityBurst:   1,
		CleanupInterval: 10 * time.Millisecond,
		IdleTimeout:     5 * time.Millisecond,
	})
	defer l.Close()

	l.Allow("stale-caller")
	time.Sleep(30 * time.Millisecond)

	// After cleanup the identity's bucket is recreated fresh, so a request
	// that would have been denied against the stale bucket succeeds again.
	assert.True(t, l.Allow("stale-caller"))
}
