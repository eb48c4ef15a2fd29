package cache

import (
	"context"
	"sync"
	"time"
)

const replayKeyPrefix = "condopay:webhook:seen:"

// ReplayGuard remembers delivery ids for a window so a replayed webhook can
// be rejected before it reaches the database.
type ReplayGuard interface {
	// Claim reports false when id was already claimed inside the window.
	Claim(ctx context.Context, id string) (bool, error)
	// Release forgets id so a failed delivery can be retried.
	Release(ctx context.Context, id string) error
}

type RedisReplayGuard struct {
	cache  *RedisCache
	window time.Duration
}

func CreateRedisReplayGuard(cache *RedisCache, window time.Duration) *RedisReplayGuard {
	if window <= 0 {
		window = cache.TTL()
	}
	return &RedisReplayGuard{cache: cache, window: window}
}

func (g *RedisReplayGuard) Claim(ctx context.Context, id string) (bool, error) {
	return g.cache.SetNX(ctx, replayKeyPrefix+id, time.Now().Unix(), g.window)
}

func (g *RedisReplayGuard) Release(ctx context.Context, id string) error {
	return g.cache.Delete(ctx, replayKeyPrefix+id)
}

// MemoryReplayGuard is the single-instance fallback used when Redis is not
// configured.
type MemoryReplayGuard struct {
	mu     sync.Mutex
	seen   map[string]time.Time
	window time.Duration
	now    func() time.Time
}

func CreateMemoryReplayGuard(window time.Duration) *MemoryReplayGuard {
	return &MemoryReplayGuard{
		seen:   make(map[string]time.Time),
		window: window,
		now:    time.Now,
	}
}

func (g *MemoryReplayGuard) Claim(ctx context.Context, id string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	for key, expires := range g.seen {
		if !expires.After(now) {
			delete(g.seen, key)
		}
	}

	if _, ok := g.seen[id]; ok {
		return false, nil
	}
	g.seen[id] = now.Add(g.window)
	return true, nil
}

func (g *MemoryReplayGuard) Release(ctx context.Context, id string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.seen, id)
	return nil
}
