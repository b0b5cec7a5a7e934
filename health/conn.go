package health

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/jonwraymond/connops/observe"
	"github.com/jonwraymond/connops/resilience"
)

// Pinger is the probe capability a ConnectionChecker needs from a connection.
type Pinger interface {
	// IsClosed reports whether the connection has already been closed.
	IsClosed() bool

	// Ping performs one round trip to the backend.
	Ping(ctx context.Context) error
}

// CheckConfig configures a ConnectionChecker.
type CheckConfig struct {
	// CheckInterval is how often a scheduler should probe.
	// Default: 30 seconds
	CheckInterval time.Duration

	// Thresholds classify successful probes by latency.
	// Default: DefaultThresholds()
	Thresholds Thresholds

	// PingTimeout bounds a single probe.
	// Default: 5 seconds
	PingTimeout time.Duration

	// FailureThreshold is the failure streak at which ShouldMarkUnhealthy
	// turns true.
	// Default: 3
	FailureThreshold int64
}

// DefaultCheckConfig returns the default probe configuration.
func DefaultCheckConfig() CheckConfig {
	return CheckConfig{
		CheckInterval:    30 * time.Second,
		Thresholds:       DefaultThresholds(),
		PingTimeout:      5 * time.Second,
		FailureThreshold: 3,
	}
}

// Validate reports whether the configuration is usable.
func (c CheckConfig) Validate() error {
	switch {
	case c.CheckInterval <= 0:
		return fmt.Errorf("%w: check interval must be positive", ErrInvalidConfig)
	case c.PingTimeout <= 0:
		return fmt.Errorf("%w: ping timeout must be positive", ErrInvalidConfig)
	case c.FailureThreshold < 1:
		return fmt.Errorf("%w: failure threshold must be at least 1", ErrInvalidConfig)
	case c.Thresholds.Healthy < 0 || c.Thresholds.Degraded < c.Thresholds.Healthy:
		return fmt.Errorf("%w: thresholds must satisfy 0 <= healthy <= degraded", ErrInvalidConfig)
	}
	return nil
}

// CheckResult is the outcome of one probe.
type CheckResult struct {
	Status Status

	// Latency is the measured round trip. Zero when Err is set.
	Latency time.Duration

	// Err is a *ProbeError when the probe failed.
	Err error

	CheckedAt time.Time

	// ConsecutiveFailures is the failure streak after this probe; 0 on success.
	ConsecutiveFailures int64

	// Skipped is set when the Pinger returned ErrProbeSkipped. Status and
	// ConsecutiveFailures then carry the checker's unchanged state.
	Skipped bool
}

// Succeeded reports whether the probe completed without error.
func (r CheckResult) Succeeded() bool {
	return r.Err == nil
}

// ConnectionChecker tracks probe outcomes for one monitored connection.
//
// It does not schedule itself. Start and Stop only toggle the running flag;
// an owner such as monitor.Scheduler calls CheckConnection every
// CheckInterval while IsRunning is true.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Errors: probe failures never escape as returned errors; they are folded
// into CheckResult and the failure streak.
type ConnectionChecker struct {
	config CheckConfig
	target string

	failures atomic.Int64
	running  atomic.Bool

	mu         sync.RWMutex
	lastStatus Status

	logger  observe.Logger
	metrics observe.HealthMetrics
	tracer  observe.Tracer
}

// CheckerOption configures a ConnectionChecker.
type CheckerOption func(*ConnectionChecker)

// WithTarget names the monitored target in logs, metrics and spans.
func WithTarget(name string) CheckerOption {
	return func(c *ConnectionChecker) { c.target = name }
}

// WithLogger sets the checker's logger.
func WithLogger(l observe.Logger) CheckerOption {
	return func(c *ConnectionChecker) { c.logger = l }
}

// WithMetrics sets the checker's metrics recorder.
func WithMetrics(m observe.HealthMetrics) CheckerOption {
	return func(c *ConnectionChecker) { c.metrics = m }
}

// WithTracer sets the tracer used for probe spans.
func WithTracer(t observe.Tracer) CheckerOption {
	return func(c *ConnectionChecker) { c.tracer = t }
}

// NewConnectionChecker creates a checker. Zero fields of config take their
// DefaultCheckConfig values. The initial LastStatus is StatusHealthy.
func NewConnectionChecker(config CheckConfig, opts ...CheckerOption) *ConnectionChecker {
	def := DefaultCheckConfig()
	if config.CheckInterval <= 0 {
		config.CheckInterval = def.CheckInterval
	}
	if config.PingTimeout <= 0 {
		config.PingTimeout = def.PingTimeout
	}
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = def.FailureThreshold
	}
	if config.Thresholds == (Thresholds{}) {
		config.Thresholds = def.Thresholds
	}

	c := &ConnectionChecker{
		config:     config,
		target:     "default",
		lastStatus: StatusHealthy,
		logger:     observe.NopLogger(),
		metrics:    observe.NopHealthMetrics(),
		tracer:     observe.NopTracer(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(observe.Field{Key: "health.target", Value: c.target})
	return c
}

// CheckConnection probes conn once, bounded by PingTimeout.
//
// A success resets the failure streak and classifies the latency. A failure,
// including a closed connection or an expired ping timeout, increments the
// streak and yields StatusUnhealthy. ErrProbeSkipped changes nothing.
func (c *ConnectionChecker) CheckConnection(ctx context.Context, conn Pinger) CheckResult {
	ctx, span := c.tracer.StartSpan(ctx, observe.SpanProbe, attribute.String("health.target", c.target))

	start := time.Now()
	var err error
	if conn.IsClosed() {
		err = ErrConnectionClosed
	} else {
		err = resilience.ExecuteWithTimeout(ctx, c.config.PingTimeout, conn.Ping)
	}
	latency := time.Since(start)

	if errors.Is(err, ErrProbeSkipped) {
		status, n := c.LastStatus(), c.failures.Load()
		c.logger.Debug(ctx, "health probe skipped", observe.Err(err))
		span.SetAttributes(attribute.Bool("health.skipped", true))
		c.tracer.EndSpan(span, nil)
		return CheckResult{
			Status:              status,
			CheckedAt:           start,
			ConsecutiveFailures: n,
			Skipped:             true,
		}
	}

	if err != nil {
		perr := &ProbeError{Err: err}
		n := c.failures.Add(1)
		c.setLastStatus(StatusUnhealthy)

		c.logger.Warn(ctx, "health probe failed",
			observe.Err(err),
			observe.Field{Key: "consecutive_failures", Value: n},
		)
		c.metrics.RecordProbe(ctx, c.target, 0, StatusUnhealthy.String(), n, perr)
		span.SetAttributes(attribute.Int64("health.consecutive_failures", n))
		c.tracer.EndSpan(span, perr)

		return CheckResult{
			Status:              StatusUnhealthy,
			Err:                 perr,
			CheckedAt:           start,
			ConsecutiveFailures: n,
		}
	}

	c.failures.Store(0)
	status := c.config.Thresholds.Classify(latency)
	c.setLastStatus(status)

	c.logger.Debug(ctx, "health probe",
		observe.Field{Key: "status", Value: status.String()},
		observe.Field{Key: "latency_ms", Value: latency.Milliseconds()},
	)
	c.metrics.RecordProbe(ctx, c.target, latency, status.String(), 0, nil)
	span.SetAttributes(attribute.String("health.status", status.String()))
	c.tracer.EndSpan(span, nil)

	return CheckResult{
		Status:    status,
		Latency:   latency,
		CheckedAt: start,
	}
}

// ShouldMarkUnhealthy reports whether the failure streak reached FailureThreshold.
func (c *ConnectionChecker) ShouldMarkUnhealthy() bool {
	return c.failures.Load() >= c.config.FailureThreshold
}

// ResetFailures clears the streak and sets LastStatus to StatusHealthy,
// typically after a successful remediation.
func (c *ConnectionChecker) ResetFailures() {
	c.failures.Store(0)
	c.setLastStatus(StatusHealthy)
}

// ConsecutiveFailures returns the current failure streak.
func (c *ConnectionChecker) ConsecutiveFailures() int64 {
	return c.failures.Load()
}

// LastStatus returns the status of the most recent probe or reset.
func (c *ConnectionChecker) LastStatus() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastStatus
}

func (c *ConnectionChecker) setLastStatus(s Status) {
	c.mu.Lock()
	c.lastStatus = s
	c.mu.Unlock()
}

// IsRunning reports whether Start was called more recently than Stop.
func (c *ConnectionChecker) IsRunning() bool {
	return c.running.Load()
}

// Start sets the running flag.
func (c *ConnectionChecker) Start() {
	c.running.Store(true)
}

// Stop clears the running flag.
func (c *ConnectionChecker) Stop() {
	c.running.Store(false)
}

// CheckInterval returns the configured probe interval.
func (c *ConnectionChecker) CheckInterval() time.Duration {
	return c.config.CheckInterval
}

// Config returns the checker's configuration after defaults.
func (c *ConnectionChecker) Config() CheckConfig {
	return c.config
}

// Target returns the name given with WithTarget.
func (c *ConnectionChecker) Target() string {
	return c.target
}

// Checker adapts a live probe of target into a Checker for an Aggregator.
// Every Check runs CheckConnection, so it feeds the failure streak.
func (c *ConnectionChecker) Checker(name string, target Pinger) Checker {
	return NewCheckerFunc(name, func(ctx context.Context) Result {
		return c.CheckConnection(ctx, target).Result(c.config.FailureThreshold)
	})
}

// Result converts a probe outcome into an aggregator Result.
func (r CheckResult) Result(failureThreshold int64) Result {
	details := map[string]any{
		"consecutive_failures":  r.ConsecutiveFailures,
		"should_mark_unhealthy": r.ConsecutiveFailures >= failureThreshold,
	}
	if r.Err != nil {
		return Result{
			Status:    StatusUnhealthy,
			Message:   "probe failed",
			Details:   details,
			Timestamp: r.CheckedAt,
			Error:     r.Err,
		}
	}
	if r.Skipped {
		return Result{
			Status:    r.Status,
			Message:   "probe skipped",
			Details:   details,
			Timestamp: r.CheckedAt,
		}
	}
	details["latency_ms"] = float64(r.Latency.Microseconds()) / 1000
	return Result{
		Status:    r.Status,
		Message:   fmt.Sprintf("round trip %s", r.Latency.Round(time.Microsecond)),
		Details:   details,
		Duration:  r.Latency,
		Timestamp: r.CheckedAt,
	}
}
