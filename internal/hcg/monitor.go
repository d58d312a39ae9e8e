package hcg

import (
	"context"
	"sync"

	"github.com/c-daly/logos/internal/observability"
	"github.com/c-daly/logos/internal/types"
)

// utilizationDegradedThreshold marks the pool as degraded when this fraction
// of sessions is in use during a probe.
const utilizationDegradedThreshold = 0.9

// HealthMonitor issues single, unretried health probes against the engine and
// remembers the most recent verdict. Probe failures are reported, never
// retried: health checks exist to observe the backend, not to mask it.
type HealthMonitor struct {
	engine *Engine
	log    *observability.Logger

	mu        sync.Mutex
	last      types.HealthStatus
	lastError string
}

// NewHealthMonitor builds a monitor over the engine.
func NewHealthMonitor(engine *Engine, log *observability.Logger) *HealthMonitor {
	if log == nil {
		log = observability.NewNopLogger()
	}
	return &HealthMonitor{engine: engine, log: log}
}

// Check runs one probe and records the outcome. A healthy probe on a nearly
// exhausted pool downgrades to degraded.
func (m *HealthMonitor) Check(ctx context.Context) types.HealthStatus {
	status := m.engine.HealthCheck(ctx)

	if status.IsHealthy() && status.PoolUtilization >= utilizationDegradedThreshold {
		degraded := types.Degraded("session pool near exhaustion")
		degraded.PoolUtilization = status.PoolUtilization
		status = degraded
	}

	m.mu.Lock()
	m.last = status
	if status.LastError != "" {
		m.lastError = status.LastError
	}
	m.mu.Unlock()

	if !status.IsHealthy() {
		m.log.Warn(ctx, "backend health probe",
			"state", status.State.String(),
			"pool_utilization", status.PoolUtilization,
			"last_error", status.LastError)
	}
	return status
}

// Last returns the most recent probe result. The zero status is returned
// before the first Check.
func (m *HealthMonitor) Last() types.HealthStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// LastError returns the most recent probe failure message, sticky across
// subsequent healthy probes.
func (m *HealthMonitor) LastError() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastError
}
