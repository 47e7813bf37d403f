// Package health runs dependency health checks and serves the probe
// endpoints from the admin mux.
package health

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Status is the outcome of one health check.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult is one component's health verdict.
type CheckResult struct {
	Component string        `json:"component"`
	Status    Status        `json:"status"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
	Critical  bool          `json:"critical"`
	Timestamp time.Time     `json:"timestamp"`
}

// Checker probes one dependency.
type Checker interface {
	Name() string
	Critical() bool
	Check(ctx context.Context) error
}

// Manager runs registered checkers and caches their latest results.
type Manager struct {
	logger   *zap.Logger
	timeout  time.Duration
	interval time.Duration

	mu       sync.RWMutex
	checkers []Checker
	results  map[string]CheckResult
}

// NewManager builds a health manager. Checks run every interval once
// Start is called, and on demand for probe requests that find no cached
// result.
func NewManager(logger *zap.Logger, timeout, interval time.Duration) *Manager {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Manager{
		logger:   logger,
		timeout:  timeout,
		interval: interval,
		results:  make(map[string]CheckResult),
	}
}

// Register adds a checker.
func (m *Manager) Register(c Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers = append(m.checkers, c)
}

// Start runs checks periodically until ctx is cancelled.
func (m *Manager) Start(ctx context.Context) {
	m.runAll(ctx)
	ticker := time.NewTicker(m.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.runAll(ctx)
			}
		}
	}()
}

func (m *Manager) runAll(ctx context.Context) {
	m.mu.RLock()
	checkers := append([]Checker(nil), m.checkers...)
	m.mu.RUnlock()

	for _, c := range checkers {
		res := m.runOne(ctx, c)
		m.mu.Lock()
		m.results[c.Name()] = res
		m.mu.Unlock()

		if res.Status != StatusHealthy {
			m.logger.Warn("Health check failed",
				zap.String("component", res.Component),
				zap.Bool("critical", res.Critical),
				zap.String("error", res.Error),
			)
		}
	}
}

func (m *Manager) runOne(ctx context.Context, c Checker) CheckResult {
	cctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := time.Now()
	err := c.Check(cctx)
	res := CheckResult{
		Component: c.Name(),
		Status:    StatusHealthy,
		Duration:  time.Since(start),
		Critical:  c.Critical(),
		Timestamp: time.Now().UTC(),
	}
	if err != nil {
		res.Status = StatusUnhealthy
		res.Error = err.Error()
	}
	return res
}

// Results returns the latest check results keyed by component.
func (m *Manager) Results() map[string]CheckResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]CheckResult, len(m.results))
	for k, v := range m.results {
		out[k] = v
	}
	return out
}

// Healthy reports whether every critical dependency is up. Non-critical
// failures degrade but do not take the service down.
func (m *Manager) Healthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, res := range m.results {
		if res.Critical && res.Status != StatusHealthy {
			return false
		}
	}
	return true
}
