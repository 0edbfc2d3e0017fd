// Package ratelimit implements the gateway's three-tier request throttle:
// a global ceiling, a per-caller-identity ceiling, and a stricter ceiling
// for unauthenticated callers.
package ratelimit

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	burstCapacityMultiplier = 2
	thresholdPercentage     = 80
)

// Limiter decides whether a request identified by identity (empty for an
// unauthenticated caller) may proceed.
type Limiter interface {
	Allow(identity string) bool
}

// Config controls the three tiers' rates and the idle-identity cleanup
// sweep.
type Config struct {
	GlobalRPS       int
	GlobalBurst     int
	IdentityRPS     int
	IdentityBurst   int
	UnauthRPS       int
	UnauthBurst     int
	MaxIdentities   int
	CleanupInterval time.Duration
	IdleTimeout     time.Duration
}

func (c Config) withDefaults() Config {
	if c.GlobalRPS <= 0 {
		c.GlobalRPS = 100
	}
	if c.IdentityRPS <= 0 {
		c.IdentityRPS = 20
	}
	if c.UnauthRPS <= 0 {
		c.UnauthRPS = 5
	}
	if c.MaxIdentities <= 0 {
		c.MaxIdentities = 10_000
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = 5 * time.Minute
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = time.Hour
	}

	return c
}

type identityLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
	mu         sync.Mutex
}

// InMemoryLimiter implements Limiter with golang.org/x/time/rate token
// buckets, one global, one per caller identity (lazily created), and one
// shared bucket for unauthenticated callers. Idle per-identity buckets are
// swept periodically so the map does not grow without bound.
type InMemoryLimiter struct {
	global       *rate.Limiter
	unauth       *rate.Limiter
	perIdentity  map[string]*identityLimiter
	mu           sync.RWMutex
	cfg          Config
	identityBurst int

	cleanupTicker *time.Ticker
	done          chan struct{}
}

// NewInMemoryLimiter constructs and starts an InMemoryLimiter. Callers must
// call Close when the limiter is no longer needed to stop its cleanup
// goroutine.
func NewInMemoryLimiter(cfg Config) *InMemoryLimiter {
	cfg = cfg.withDefaults()

	globalBurst := computeBurst(cfg.GlobalRPS, cfg.GlobalBurst)
	identityBurst := computeBurst(cfg.IdentityRPS, cfg.IdentityBurst)
	unauthBurst := computeBurst(cfg.UnauthRPS, cfg.UnauthBurst)

	l := &InMemoryLimiter{
		global:        rate.NewLimiter(rate.Limit(cfg.GlobalRPS), globalBurst),
		unauth:        rate.NewLimiter(rate.Limit(cfg.UnauthRPS), unauthBurst),
		perIdentity:   make(map[string]*identityLimiter),
		cfg:           cfg,
		identityBurst: identityBurst,
		done:          make(chan struct{}),
	}

	l.cleanupTicker = time.NewTicker(cfg.CleanupInterval)
	go l.cleanupLoop()

	return l
}

func computeBurst(rps, override int) int {
	if override > 0 {
		return override
	}

	return rps * burstCapacityMultiplier
}

// Allow checks the global tier first, then the identity or unauthenticated
// tier, matching the teacher's fail-fast tier ordering.
func (l *InMemoryLimiter) Allow(identity string) bool {
	if !l.global.Allow() {
		return false
	}

	if identity == "" {
		return l.unauth.Allow()
	}

	l.mu.RLock()
	il, ok := l.perIdentity[identity]
	l.mu.RUnlock()

	if !ok {
		l.mu.Lock()
		if il, ok = l.perIdentity[identity]; !ok {
			il = &identityLimiter{
				limiter:    rate.NewLimiter(rate.Limit(l.cfg.IdentityRPS), l.identityBurst),
				lastAccess: time.Now(),
			}
			l.perIdentity[identity] = il

			if current := len(l.perIdentity); current >= l.cfg.MaxIdentities*thresholdPercentage/100 {
				slog.Warn("rate limiter approaching max tracked identities",
					slog.Int("current_identities", current),
					slog.Int("max_identities", l.cfg.MaxIdentities))
			}
		}
		l.mu.Unlock()
	}

	il.mu.Lock()
	il.lastAccess = time.Now()
	il.mu.Unlock()

	return il.limiter.Allow()
}

func (l *InMemoryLimiter) cleanupLoop() {
	for {
		select {
		case <-l.cleanupTicker.C:
			l.cleanup()
		case <-l.done:
			return
		}
	}
}

func (l *InMemoryLimiter) cleanup() {
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	for identity, il := range l.perIdentity {
		il.mu.Lock()
		last := il.lastAccess
		il.mu.Unlock()

		if now.Sub(last) > l.cfg.IdleTimeout {
			delete(l.perIdentity, identity)
		}
	}
}

// Close stops the cleanup goroutine.
func (l *InMemoryLimiter) Close() {
	l.cleanupTicker.Stop()
	close(l.done)
}
