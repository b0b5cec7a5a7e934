package health

import "time"

// Thresholds are the latency cut points used to classify a successful probe.
//
// A latency below Healthy is StatusHealthy, at or above Degraded is
// StatusUnhealthy, and anything between is StatusDegraded.
type Thresholds struct {
	Healthy  time.Duration
	Degraded time.Duration
}

// DefaultThresholds returns 100ms / 500ms.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Healthy:  100 * time.Millisecond,
		Degraded: 500 * time.Millisecond,
	}
}

// NewThresholds builds Thresholds, raising degraded to healthy when it is
// lower so the bands stay ordered.
func NewThresholds(healthy, degraded time.Duration) Thresholds {
	if degraded < healthy {
		degraded = healthy
	}
	return Thresholds{Healthy: healthy, Degraded: degraded}
}

// Classify maps a measured round-trip latency to a Status.
func (t Thresholds) Classify(latency time.Duration) Status {
	switch {
	case latency >= t.Degraded:
		return StatusUnhealthy
	case latency < t.Healthy:
		return StatusHealthy
	default:
		return StatusDegraded
	}
}
