package observability

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// HealthStatus is the state of one component or of the whole process.
type HealthStatus string

const (
	HealthStatusUp   HealthStatus = "UP"
	HealthStatusDown HealthStatus = "DOWN"
)

// CheckFunc probes one dependency. *sql.DB.PingContext and
// snowflake.Session.PingContext both fit.
type CheckFunc func(ctx context.Context) error

// HealthResult represents the result of a health check
type HealthResult struct {
	Status   HealthStatus `json:"status"`
	Message  string       `json:"message,omitempty"`
	Duration int64        `json:"duration_ms"`
}

// HealthReport represents the overall health report
type HealthReport struct {
	Status     HealthStatus            `json:"status"`
	Timestamp  time.Time               `json:"timestamp"`
	Components map[string]HealthResult `json:"components"`
}

// HealthManager runs the registered checks concurrently under one timeout.
type HealthManager struct {
	mu      sync.RWMutex
	checks  map[string]CheckFunc
	timeout time.Duration
	logger  *zap.Logger
	now     func() time.Time
}

// NewHealthManager creates a new health manager
func NewHealthManager(timeout time.Duration, logger *zap.Logger) *HealthManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HealthManager{
		checks:  make(map[string]CheckFunc),
		timeout: timeout,
		logger:  logger,
		now:     time.Now,
	}
}

// Register adds or replaces the check for name.
func (hm *HealthManager) Register(name string, check CheckFunc) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.checks[name] = check
}

// Names lists the registered checks in order.
func (hm *HealthManager) Names() []string {
	hm.mu.RLock()
	defer hm.mu.RUnlock()
	names := make([]string, 0, len(hm.checks))
	for name := range hm.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CheckHealth performs all health checks and returns a report. One failing
// component marks the whole report DOWN.
func (hm *HealthManager) CheckHealth(ctx context.Context) HealthReport {
	hm.mu.RLock()
	checks := make(map[string]CheckFunc, len(hm.checks))
	for name, check := range hm.checks {
		checks[name] = check
	}
	hm.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, hm.timeout)
	defer cancel()

	var (
		mu         sync.Mutex
		components = make(map[string]HealthResult, len(checks))
		g          errgroup.Group
	)
	for name, check := range checks {
		name, check := name, check
		g.Go(func() error {
			start := time.Now()
			result := HealthResult{Status: HealthStatusUp}
			if err := check(ctx); err != nil {
				result.Status = HealthStatusDown
				result.Message = err.Error()
			}
			result.Duration = time.Since(start).Milliseconds()

			mu.Lock()
			components[name] = result
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	report := HealthReport{
		Status:     HealthStatusUp,
		Timestamp:  hm.now(),
		Components: components,
	}
	for name, c := range components {
		if c.Status != HealthStatusUp {
			report.Status = HealthStatusDown
			hm.logger.Warn("health check failed",
				zap.String("component", name),
				zap.String("message", c.Message))
		}
	}
	return report
}

// ReadinessHandler answers 200 only when every component is UP.
func (hm *HealthManager) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := hm.CheckHealth(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if report.Status == HealthStatusUp {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusServiceUnavailable)
		}

		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		_ = encoder.Encode(report)
	}
}
