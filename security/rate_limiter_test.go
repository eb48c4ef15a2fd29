package security

import (
	"sync"
	"testing"
	"time"
)

func TestRateLimiter_Allow(t *testing.T) {
	limiter := CreateRateLimiter()
	defer limiter.Close()

	t.Run("Allow within limit", func(t *testing.T) {
		config := RateLimitConfig{RequestsPerSecond: 10, Burst: 10}
		for i := 0; i < 10; i++ {
			if !limiter.Allow("test-key-1", config) {
				t.Errorf("Request %d should be allowed", i+1)
			}
		}
	})

	t.Run("Block after limit", func(t *testing.T) {
		config := RateLimitConfig{RequestsPerSecond: 5, Burst: 5}
		for i := 0; i < 5; i++ {
			limiter.Allow("test-key-2", config)
		}
		if limiter.Allow("test-key-2", config) {
			t.Error("Request should be blocked after limit")
		}
	})
}

func TestRateLimiter_Refill(t *testing.T) {
	limiter := CreateRateLimiter()
	defer limiter.Close()
	config := RateLimitConfig{RequestsPerSecond: 10, Burst: 2}

	limiter.Allow("refill", config)
	limiter.Allow("refill", config)
	if limiter.Allow("refill", config) {
		t.Error("Request should be blocked")
	}

	time.Sleep(150 * time.Millisecond)

	if !limiter.Allow("refill", config) {
		t.Error("Request should be allowed after refill")
	}
}

func TestTieredRateLimiter_Tiers(t *testing.T) {
	limiter := CreateTieredRateLimiter(DefaultTiers(1, 2))
	defer limiter.Close()

	tests := []struct {
		name  string
		tier  string
		burst int
	}{
		{name: "Admin", tier: TierAdmin, burst: 8},
		{name: "Owner", tier: TierOwner, burst: 2},
		{name: "Webhook", tier: TierWebhook, burst: 4},
		{name: "Unknown tier falls back to anonymous", tier: "unknown", burst: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := "caller-" + tt.name
			for i := 0; i < tt.burst; i++ {
				if !limiter.Allow(key, tt.tier) {
					t.Fatalf("Allow() request %d = false, want true", i+1)
				}
			}
			if limiter.Allow(key, tt.tier) {
				t.Errorf("Allow() after %d requests = true, want false", tt.burst)
			}
		})
	}
}

func TestTieredRateLimiter_KeysAreIsolatedPerTier(t *testing.T) {
	limiter := CreateTieredRateLimiter(DefaultTiers(1, 1))
	defer limiter.Close()

	if !limiter.Allow("10.0.0.1", TierOwner) {
		t.Fatal("Allow() owner = false, want true")
	}
	if !limiter.Allow("10.0.0.1", TierWebhook) {
		t.Error("Allow() webhook with same key = false, want true")
	}
}

func TestRateLimiter_GetStats(t *testing.T) {
	limiter := CreateRateLimiter()
	defer limiter.Close()
	config := RateLimitConfig{RequestsPerSecond: 1, Burst: 10}

	if _, _, exists := limiter.GetStats("missing"); exists {
		t.Error("GetStats() exists = true for unknown key")
	}

	limiter.Allow("stats", config)
	limiter.Allow("stats", config)
	limiter.Allow("stats", config)

	tokens, burst, exists := limiter.GetStats("stats")
	if !exists {
		t.Fatal("GetStats() exists = false, want true")
	}
	if burst != 10 {
		t.Errorf("GetStats() burst = %d, want 10", burst)
	}
	if tokens < 7 || tokens > 8 {
		t.Errorf("GetStats() tokens = %d, want 7", tokens)
	}
}

func TestRateLimiter_ConcurrentAccess(t *testing.T) {
	limiter := CreateRateLimiter()
	defer limiter.Close()
	config := RateLimitConfig{RequestsPerSecond: 100, Burst: 100}

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			limiter.Allow("concurrent-key", config)
		}()
	}
	wg.Wait()

	if _, _, exists := limiter.GetStats("concurrent-key"); !exists {
		t.Error("GetStats() should return exists=true after concurrent access")
	}
}
