package monitoring

import (
	"context"
	"sync"
	"time"
)

type HealthStatus string

const (
	Healthy   HealthStatus = "healthy"
	Unhealthy HealthStatus = "unhealthy"
	Degraded  HealthStatus = "degraded"
)

// checkTimeout bounds a single dependency check so a hung database cannot
// hang the health endpoint.
const checkTimeout = 3 * time.Second

type HealthCheck struct {
	Status     HealthStatus `json:"status"`
	DurationMs int64        `json:"duration_ms"`
	Error      string       `json:"error,omitempty"`
}

type SystemHealth struct {
	Status    HealthStatus           `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]HealthCheck `json:"checks"`
	Uptime    string                 `json:"uptime"`
	Version   string                 `json:"version"`
}

type dependency struct {
	name     string
	check    func(context.Context) error
	optional bool
}

// HealthService checks the service's dependencies. A failing required
// dependency makes the service unhealthy; a failing optional one (Redis)
// only degrades it.
type HealthService struct {
	mu           sync.RWMutex
	dependencies []dependency
	started      time.Time
	version      string
}

func CreateHealthService(version string) *HealthService {
	return &HealthService{started: time.Now(), version: version}
}

func (hs *HealthService) AddCheck(name string, check func(context.Context) error) {
	hs.add(dependency{name: name, check: check})
}

func (hs *HealthService) AddOptionalCheck(name string, check func(context.Context) error) {
	hs.add(dependency{name: name, check: check, optional: true})
}

func (hs *HealthService) add(d dependency) {
	hs.mu.Lock()
	defer hs.mu.Unlock()
	hs.dependencies = append(hs.dependencies, d)
}

// GetHealth runs every check concurrently and folds the results into one
// status.
func (hs *HealthService) GetHealth(ctx context.Context) SystemHealth {
	hs.mu.RLock()
	deps := append([]dependency(nil), hs.dependencies...)
	hs.mu.RUnlock()

	results := make([]HealthCheck, len(deps))
	var wg sync.WaitGroup
	for i, d := range deps {
		wg.Add(1)
		go func(i int, d dependency) {
			defer wg.Done()
			results[i] = runCheck(ctx, d)
		}(i, d)
	}
	wg.Wait()

	health := SystemHealth{
		Status:    Healthy,
		Timestamp: time.Now().UTC(),
		Checks:    make(map[string]HealthCheck, len(deps)),
		Uptime:    time.Since(hs.started).Round(time.Second).String(),
		Version:   hs.version,
	}
	for i, d := range deps {
		health.Checks[d.name] = results[i]
		health.Status = worse(health.Status, results[i].Status)
	}
	return health
}

func runCheck(ctx context.Context, d dependency) HealthCheck {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	start := time.Now()
	err := d.check(ctx)
	check := HealthCheck{Status: Healthy, DurationMs: time.Since(start).Milliseconds()}
	if err != nil {
		check.Status = Unhealthy
		if d.optional {
			check.Status = Degraded
		}
		check.Error = err.Error()
	}
	return check
}

func worse(a, b HealthStatus) HealthStatus {
	rank := map[HealthStatus]int{Healthy: 0, Degraded: 1, Unhealthy: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
