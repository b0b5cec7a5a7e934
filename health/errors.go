package health

import (
	"errors"
	"fmt"
)

var (
	// ErrProbeFailed indicates a connection liveness probe failed or
	// exceeded its ping timeout. Probe failures are reported as *ProbeError.
	ErrProbeFailed = errors.New("health: probe failed")

	// ErrConnectionClosed is the probe error for a connection that already
	// reports itself closed.
	ErrConnectionClosed = errors.New("health: connection closed")

	// ErrProbeSkipped is returned by a Pinger that could not run its probe
	// for reasons unrelated to the target's health, such as a saturated
	// pool. CheckConnection records no outcome for it.
	ErrProbeSkipped = errors.New("health: probe skipped")

	// ErrCheckTimeout indicates a health check timed out.
	ErrCheckTimeout = errors.New("health: check timeout")

	// ErrCheckerNotFound indicates a checker was not found.
	ErrCheckerNotFound = errors.New("health: checker not found")

	// ErrInvalidConfig indicates a CheckConfig failed validation.
	ErrInvalidConfig = errors.New("health: invalid config")
)

// ProbeError carries the underlying cause of a failed probe.
// It matches ErrProbeFailed with errors.Is.
type ProbeError struct {
	Err error
}

func (e *ProbeError) Error() string {
	return fmt.Sprintf("%s: %v", ErrProbeFailed, e.Err)
}

// Is reports whether target is ErrProbeFailed.
func (e *ProbeError) Is(target error) bool {
	return target == ErrProbeFailed
}

// Unwrap returns the probe's underlying error.
func (e *ProbeError) Unwrap() error {
	return e.Err
}
