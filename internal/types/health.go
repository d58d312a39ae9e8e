package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// HealthState represents the health state of a system component
type HealthState string

const (
	HealthStateHealthy   HealthState = "healthy"
	HealthStateDegraded  HealthState = "degraded"
	HealthStateUnhealthy HealthState = "unhealthy"
)

// String returns the string representation of HealthState
func (s HealthState) String() string {
	return string(s)
}

// IsValid checks if the HealthState is a valid value
func (s HealthState) IsValid() bool {
	switch s {
	case HealthStateHealthy, HealthStateDegraded, HealthStateUnhealthy:
		return true
	default:
		return false
	}
}

// MarshalJSON implements json.Marshaler
func (s HealthState) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements json.Unmarshaler
func (s *HealthState) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	state := HealthState(str)
	if !state.IsValid() {
		return fmt.Errorf("invalid health state: %s", str)
	}

	*s = state
	return nil
}

// HealthStatus represents the health of the HCG backend connection as seen by
// a single probe. PoolUtilization is the fraction of pool sessions in use.
type HealthStatus struct {
	State            HealthState `json:"status"`
	BackendConnected bool        `json:"backend_connected"`
	PoolUtilization  float64     `json:"pool_utilization"`
	LastError        string      `json:"last_error,omitempty"`
	CheckedAt        time.Time   `json:"checked_at"`
}

// NewHealthStatus creates a new HealthStatus with the given state.
// CheckedAt is automatically set to the current time.
func NewHealthStatus(state HealthState, connected bool) HealthStatus {
	return HealthStatus{
		State:            state,
		BackendConnected: connected,
		CheckedAt:        time.Now().UTC(),
	}
}

// Healthy creates a HealthStatus with HealthStateHealthy state.
func Healthy() HealthStatus {
	return NewHealthStatus(HealthStateHealthy, true)
}

// Degraded creates a HealthStatus with HealthStateDegraded state.
func Degraded(lastError string) HealthStatus {
	s := NewHealthStatus(HealthStateDegraded, true)
	s.LastError = lastError
	return s
}

// Unhealthy creates a HealthStatus with HealthStateUnhealthy state.
func Unhealthy(lastError string) HealthStatus {
	s := NewHealthStatus(HealthStateUnhealthy, false)
	s.LastError = lastError
	return s
}

// IsHealthy returns true if the health state is healthy.
func (h HealthStatus) IsHealthy() bool {
	return h.State == HealthStateHealthy
}

// IsUnhealthy returns true if the health state is unhealthy.
func (h HealthStatus) IsUnhealthy() bool {
	return h.State == HealthStateUnhealthy
}
