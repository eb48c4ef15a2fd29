package security

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	TierAdmin     = "admin"
	TierOwner     = "owner"
	TierWebhook   = "webhook"
	TierAnonymous = "default"
)

type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
	cleanup  *time.Timer
}

type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

func CreateRateLimiter() *RateLimiter {
	rl := &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
	}
	rl.startCleanup()
	return rl
}

func (rl *RateLimiter) Allow(key string, config RateLimitConfig) bool {
	rl.mu.Lock()
	limiter, exists := rl.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), config.Burst)
		rl.limiters[key] = limiter
	}
	rl.mu.Unlock()

	return limiter.Allow()
}

// GetStats returns the tokens left for key and the burst size.
func (rl *RateLimiter) GetStats(key string) (int, int, bool) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, exists := rl.limiters[key]
	if !exists {
		return 0, 0, false
	}
	return int(limiter.Tokens()), limiter.Burst(), true
}

func (rl *RateLimiter) startCleanup() {
	rl.cleanup = time.AfterFunc(5*time.Minute, func() {
		rl.mu.Lock()
		now := time.Now()
		for key, limiter := range rl.limiters {
			if limiter.TokensAt(now) >= float64(limiter.Burst()) {
				delete(rl.limiters, key)
			}
		}
		rl.mu.Unlock()

		rl.startCleanup()
	})
}

func (rl *RateLimiter) Close() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.cleanup != nil {
		rl.cleanup.Stop()
	}
}

// TieredRateLimiter keys limits by caller tier; unknown tiers fall back to
// TierAnonymous.
type TieredRateLimiter struct {
	tiers map[string]RateLimitConfig
	rl    *RateLimiter
}

func CreateTieredRateLimiter(tiers map[string]RateLimitConfig) *TieredRateLimiter {
	return &TieredRateLimiter{
		tiers: tiers,
		rl:    CreateRateLimiter(),
	}
}

// DefaultTiers scales a base rate: admins get four times the base, owners
// and anonymous callers the base, webhook senders twice the base.
func DefaultTiers(rps float64, burst int) map[string]RateLimitConfig {
	return map[string]RateLimitConfig{
		TierAdmin:     {RequestsPerSecond: rps * 4, Burst: burst * 4},
		TierOwner:     {RequestsPerSecond: rps, Burst: burst},
		TierWebhook:   {RequestsPerSecond: rps * 2, Burst: burst * 2},
		TierAnonymous: {RequestsPerSecond: rps, Burst: burst},
	}
}

func (trl *TieredRateLimiter) config(tier string) (string, RateLimitConfig) {
	if cfg, ok := trl.tiers[tier]; ok {
		return tier, cfg
	}
	return TierAnonymous, trl.tiers[TierAnonymous]
}

func (trl *TieredRateLimiter) Allow(key, tier string) bool {
	tier, cfg := trl.config(tier)
	return trl.rl.Allow(tier+":"+key, cfg)
}

func (trl *TieredRateLimiter) GetStats(key, tier string) (int, int, bool) {
	tier, _ = trl.config(tier)
	return trl.rl.GetStats(tier + ":" + key)
}

func (trl *TieredRateLimiter) Close() {
	trl.rl.Close()
}
