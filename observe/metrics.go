package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Acquire outcomes recorded by PoolMetrics.
const (
	OutcomeOK             = "ok"
	OutcomeTimeout        = "timeout"
	OutcomeCreationFailed = "creation_failed"
	OutcomeClosed         = "closed"
	OutcomeCanceled       = "canceled"
	OutcomeExhausted      = "exhausted"
)

// PoolGauges is a point-in-time view of a pool used for observable gauges.
type PoolGauges struct {
	Idle    int64
	Active  int64
	Waiting int64
}

// PoolMetrics records connection pool metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must honor cancellation/deadlines and return quickly.
// - Errors: implementations must not panic.
type PoolMetrics interface {
	// RecordAcquire records one acquire attempt, its wait time and outcome.
	RecordAcquire(ctx context.Context, pool string, wait time.Duration, outcome string)

	// RecordCreated records a connection produced by the factory.
	RecordCreated(ctx context.Context, pool string)

	// RecordDiscarded records a connection closed by the pool and why.
	RecordDiscarded(ctx context.Context, pool string, reason string)

	// ObserveGauges registers fn as the source of idle/active/waiting gauges
	// for pool. The returned function unregisters it.
	ObserveGauges(pool string, fn func() PoolGauges) (func() error, error)
}

// HealthMetrics records health probe metrics.
type HealthMetrics interface {
	// RecordProbe records a probe outcome. failures is the streak after the probe.
	RecordProbe(ctx context.Context, target string, latency time.Duration, status string, failures int64, err error)

	// RecordRemediation records a remediation attempt for an unhealthy target.
	RecordRemediation(ctx context.Context, target string, err error)
}

type poolMetrics struct {
	meter           metric.Meter
	acquireTotal    metric.Int64Counter
	acquireDuration metric.Float64Histogram
	created         metric.Int64Counter
	discarded       metric.Int64Counter
	idle            metric.Int64ObservableGauge
	active          metric.Int64ObservableGauge
	waiting         metric.Int64ObservableGauge
}

// NewPoolMetrics creates PoolMetrics backed by the given meter.
func NewPoolMetrics(meter metric.Meter) (PoolMetrics, error) {
	m := &poolMetrics{meter: meter}
	var err error

	if m.acquireTotal, err = meter.Int64Counter(
		"pool.acquire.total",
		metric.WithDescription("Total number of acquire attempts by outcome"),
		metric.WithUnit("{call}"),
	); err != nil {
		return nil, err
	}
	if m.acquireDuration, err = meter.Float64Histogram(
		"pool.acquire.duration_ms",
		metric.WithDescription("Time spent in acquire in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.created, err = meter.Int64Counter(
		"pool.connections.created",
		metric.WithDescription("Connections created by the factory"),
		metric.WithUnit("{connection}"),
	); err != nil {
		return nil, err
	}
	if m.discarded, err = meter.Int64Counter(
		"pool.connections.discarded",
		metric.WithDescription("Connections closed by the pool, by reason"),
		metric.WithUnit("{connection}"),
	); err != nil {
		return nil, err
	}
	if m.idle, err = meter.Int64ObservableGauge(
		"pool.connections.idle",
		metric.WithDescription("Connections sitting in the idle cache"),
	); err != nil {
		return nil, err
	}
	if m.active, err = meter.Int64ObservableGauge(
		"pool.connections.active",
		metric.WithDescription("Connections checked out"),
	); err != nil {
		return nil, err
	}
	if m.waiting, err = meter.Int64ObservableGauge(
		"pool.acquire.waiting",
		metric.WithDescription("Callers currently blocked in acquire"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *poolMetrics) RecordAcquire(ctx context.Context, pool string, wait time.Duration, outcome string) {
	opt := metric.WithAttributes(
		attribute.String("pool.name", pool),
		attribute.String("outcome", outcome),
	)
	m.acquireTotal.Add(ctx, 1, opt)
	m.acquireDuration.Record(ctx, float64(wait.Microseconds())/1000, opt)
}

func (m *poolMetrics) RecordCreated(ctx context.Context, pool string) {
	m.created.Add(ctx, 1, metric.WithAttributes(attribute.String("pool.name", pool)))
}

func (m *poolMetrics) RecordDiscarded(ctx context.Context, pool string, reason string) {
	m.discarded.Add(ctx, 1, metric.WithAttributes(
		attribute.String("pool.name", pool),
		attribute.String("reason", reason),
	))
}

func (m *poolMetrics) ObserveGauges(pool string, fn func() PoolGauges) (func() error, error) {
	opt := metric.WithAttributes(attribute.String("pool.name", pool))
	reg, err := m.meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		g := fn()
		o.ObserveInt64(m.idle, g.Idle, opt)
		o.ObserveInt64(m.active, g.Active, opt)
		o.ObserveInt64(m.waiting, g.Waiting, opt)
		return nil
	}, m.idle, m.active, m.waiting)
	if err != nil {
		return nil, err
	}
	return reg.Unregister, nil
}

type healthMetrics struct {
	probes       metric.Int64Counter
	failures     metric.Int64Counter
	latency      metric.Float64Histogram
	streak       metric.Int64Gauge
	remediations metric.Int64Counter
}

// NewHealthMetrics creates HealthMetrics backed by the given meter.
func NewHealthMetrics(meter metric.Meter) (HealthMetrics, error) {
	m := &healthMetrics{}
	var err error

	if m.probes, err = meter.Int64Counter(
		"health.probe.total",
		metric.WithDescription("Health probes by resulting status"),
		metric.WithUnit("{probe}"),
	); err != nil {
		return nil, err
	}
	if m.failures, err = meter.Int64Counter(
		"health.probe.failures",
		metric.WithDescription("Failed health probes"),
		metric.WithUnit("{probe}"),
	); err != nil {
		return nil, err
	}
	if m.latency, err = meter.Float64Histogram(
		"health.probe.latency_ms",
		metric.WithDescription("Round-trip latency of successful probes in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.streak, err = meter.Int64Gauge(
		"health.failure_streak",
		metric.WithDescription("Consecutive failed probes since the last success or reset"),
	); err != nil {
		return nil, err
	}
	if m.remediations, err = meter.Int64Counter(
		"health.remediation.total",
		metric.WithDescription("Remediation attempts for unhealthy targets"),
		metric.WithUnit("{attempt}"),
	); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *healthMetrics) RecordProbe(ctx context.Context, target string, latency time.Duration, status string, failures int64, err error) {
	attrs := []attribute.KeyValue{
		attribute.String("health.target", target),
		attribute.String("health.status", status),
	}
	opt := metric.WithAttributes(attrs...)
	m.probes.Add(ctx, 1, opt)

	targetOpt := metric.WithAttributes(attribute.String("health.target", target))
	m.streak.Record(ctx, failures, targetOpt)

	if err != nil {
		m.failures.Add(ctx, 1, targetOpt)
		return
	}
	m.latency.Record(ctx, float64(latency.Microseconds())/1000, targetOpt)
}

func (m *healthMetrics) RecordRemediation(ctx context.Context, target string, err error) {
	m.remediations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("health.target", target),
		attribute.Bool("success", err == nil),
	))
}

// NopPoolMetrics returns PoolMetrics that record nothing.
func NopPoolMetrics() PoolMetrics { return nopPoolMetrics{} }

type nopPoolMetrics struct{}

func (nopPoolMetrics) RecordAcquire(context.Context, string, time.Duration, string) {}
func (nopPoolMetrics) RecordCreated(context.Context, string)                        {}
func (nopPoolMetrics) RecordDiscarded(context.Context, string, string)              {}
func (nopPoolMetrics) ObserveGauges(string, func() PoolGauges) (func() error, error) {
	return func() error { return nil }, nil
}

// NopHealthMetrics returns HealthMetrics that record nothing.
func NopHealthMetrics() HealthMetrics { return nopHealthMetrics{} }

type nopHealthMetrics struct{}

func (nopHealthMetrics) RecordProbe(context.Context, string, time.Duration, string, int64, error) {}
func (nopHealthMetrics) RecordRemediation(context.Context, string, error)                        {}
