package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// Health check status constants
const (
	StatusUp      = "UP"
	StatusDown    = "DOWN"
	StatusWarning = "WARNING"
)

// HealthCheckFunc probes one component.
type HealthCheckFunc func(context.Context) *CheckResult

// CheckResult is the outcome of a single component probe.
type CheckResult struct {
	Status      string                 `json:"status"`
	Component   string                 `json:"component"`
	Details     map[string]interface{} `json:"details,omitempty"`
	LastChecked time.Time              `json:"last_checked"`
	Error       string                 `json:"error,omitempty"`
}

// SystemHealth aggregates all component results.
type SystemHealth struct {
	Status     string                  `json:"status"`
	Components map[string]*CheckResult `json:"components"`
	Timestamp  time.Time               `json:"timestamp"`
}

// HealthChecker runs registered probes on demand and reports the
// worst status observed.
type HealthChecker struct {
	mu     sync.RWMutex
	checks map[string]HealthCheckFunc
}

func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		checks: make(map[string]HealthCheckFunc),
	}
}

// RegisterCheck adds a named component probe.
func (h *HealthChecker) RegisterCheck(name string, check HealthCheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// GetHealth runs every registered check and aggregates the results.
func (h *HealthChecker) GetHealth(ctx context.Context) *SystemHealth {
	h.mu.RLock()
	checks := make(map[string]HealthCheckFunc, len(h.checks))
	for name, check := range h.checks {
		checks[name] = check
	}
	h.mu.RUnlock()

	health := &SystemHealth{
		Status:     StatusUp,
		Components: make(map[string]*CheckResult, len(checks)),
		Timestamp:  time.Now(),
	}

	for name, check := range checks {
		result := check(ctx)
		result.LastChecked = time.Now()
		health.Components[name] = result

		if result.Status == StatusDown {
			health.Status = StatusDown
		} else if result.Status == StatusWarning && health.Status != StatusDown {
			health.Status = StatusWarning
		}
	}

	return health
}

// HTTPHandler serves the aggregated health report. 503 when any
// component is down.
func (h *HealthChecker) HTTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := h.GetHealth(ctx)

		w.Header().Set("Content-Type", "application/json")
		if health.Status == StatusDown {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	}
}

// PingCheck wraps a connectivity probe (database, redis) as a check.
func PingCheck(component string, ping func(context.Context) error) HealthCheckFunc {
	return func(ctx context.Context) *CheckResult {
		result := &CheckResult{
			Status:    StatusUp,
			Component: component,
		}
		if err := ping(ctx); err != nil {
			result.Status = StatusDown
			result.Error = err.Error()
		}
		return result
	}
}

// BreakerCheck reports circuit breaker states. Open breakers degrade
// the component to WARNING rather than DOWN; the service still serves
// reads while the vendor recovers.
func BreakerCheck(states func() map[string]string) HealthCheckFunc {
	return func(ctx context.Context) *CheckResult {
		result := &CheckResult{
			Status:    StatusUp,
			Component: "circuit_breakers",
			Details:   make(map[string]interface{}),
		}
		for name, state := range states() {
			result.Details[name] = state
			if state != "CLOSED" {
				result.Status = StatusWarning
				result.Error = "one or more circuit breakers not closed"
			}
		}
		return result
	}
}
