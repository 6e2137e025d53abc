// Package health serves the liveness and readiness probes.
package health

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

// Check probes one dependency. A nil error means reachable.
type Check func(ctx context.Context) error

type Report struct {
	Status    Status            `json:"status"`
	Version   string            `json:"version,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]Result `json:"checks,omitempty"`
}

type Result struct {
	Status    Status `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// Registry runs the registered checks concurrently, each bounded by timeout.
type Registry struct {
	version string
	timeout time.Duration

	mu     sync.RWMutex
	checks map[string]Check
}

func NewRegistry(version string, timeout time.Duration) *Registry {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Registry{version: version, timeout: timeout, checks: map[string]Check{}}
}

func (r *Registry) Add(name string, check Check) {
	r.mu.Lock()
	r.checks[name] = check
	r.mu.Unlock()
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.checks))
	for name := range r.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Liveness never touches dependencies.
func (r *Registry) Liveness() Report {
	return Report{Status: StatusHealthy, Version: r.version, Timestamp: time.Now().UTC()}
}

func (r *Registry) Readiness(ctx context.Context) Report {
	r.mu.RLock()
	checks := make(map[string]Check, len(r.checks))
	for name, c := range r.checks {
		checks[name] = c
	}
	r.mu.RUnlock()

	var (
		mu      sync.Mutex
		results = make(map[string]Result, len(checks))
		g       errgroup.Group
	)
	for name, check := range checks {
		g.Go(func() error {
			res := r.run(ctx, check)
			mu.Lock()
			results[name] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	report := Report{Status: StatusHealthy, Version: r.version, Timestamp: time.Now().UTC(), Checks: results}
	for _, res := range results {
		if res.Status != StatusHealthy {
			report.Status = StatusUnhealthy
			break
		}
	}
	return report
}

func (r *Registry) run(ctx context.Context, check Check) Result {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	err := check(ctx)
	res := Result{Status: StatusHealthy, LatencyMS: time.Since(start).Milliseconds()}
	if err != nil {
		res.Status = StatusUnhealthy
		res.Error = err.Error()
	}
	return res
}

// LivenessHandler answers GET /health.
func (r *Registry) LivenessHandler(c *gin.Context) {
	c.JSON(http.StatusOK, r.Liveness())
}

// ReadinessHandler answers GET /ready with 503 while any check fails.
func (r *Registry) ReadinessHandler(c *gin.Context) {
	report := r.Readiness(c.Request.Context())
	code := http.StatusOK
	if report.Status != StatusHealthy {
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, report)
}

type pinger interface {
	PingContext(ctx context.Context) error
}

// Ping checks a database/sql pool.
func Ping(db pinger) Check {
	return func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("ping: %w", err)
		}
		return nil
	}
}

// RedisPing checks a redis client.
func RedisPing(client redis.UniversalClient) Check {
	return func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}
}
