package monitor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/jonwraymond/connops/health"
	"github.com/jonwraymond/connops/observe"
	"github.com/jonwraymond/connops/resilience"
)

// DefaultWorkers is the default size of the probe worker pool.
const DefaultWorkers = 8

type options struct {
	workers     int
	newExecutor func(target string) *resilience.Executor
	logger      observe.Logger
	metrics     observe.HealthMetrics
	tracer      observe.Tracer
}

// Option configures a Scheduler.
type Option func(*options)

// WithWorkers bounds how many probes run at once. Default: DefaultWorkers
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithExecutor sets the constructor for each target's remediation
// executor. Each target gets its own so breakers do not interact.
// Default: three attempts with exponential backoff and a 10s timeout per
// attempt behind a circuit breaker.
func WithExecutor(fn func(target string) *resilience.Executor) Option {
	return func(o *options) { o.newExecutor = fn }
}

// WithLogger sets the scheduler's logger.
func WithLogger(l observe.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics sets the recorder for remediation attempts.
func WithMetrics(m observe.HealthMetrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithTracer sets the tracer used for remediation spans.
func WithTracer(t observe.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

func defaultExecutor(string) *resilience.Executor {
	return resilience.NewExecutor(
		resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{})),
		resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{
			Backoff: resilience.Backoff{Jitter: true},
		})),
		resilience.WithTimeout(10*time.Second),
	)
}

type entry struct {
	target  Target
	exec    *resilience.Executor
	probing atomic.Bool

	mu   sync.RWMutex
	last *health.CheckResult
}

func (e *entry) setLast(r health.CheckResult) {
	e.mu.Lock()
	e.last = &r
	e.mu.Unlock()
}

func (e *entry) lastResult() (health.CheckResult, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.last == nil {
		return health.CheckResult{}, false
	}
	return *e.last, true
}

// Scheduler probes registered targets periodically.
//
// Contract:
// - Concurrency: safe for concurrent use. At most one probe per target is in
// flight; a tick that finds the previous probe still running is skipped.
// - Lifecycle: Register before Run. Run may be called once and blocks until
// its context ends.
type Scheduler struct {
	opts    options
	workers *ants.Pool
	remedy  singleflight.Group
	started atomic.Bool

	mu      sync.RWMutex
	entries map[string]*entry
	order   []string

	inflight sync.WaitGroup
}

// New creates a Scheduler.
func New(opts ...Option) (*Scheduler, error) {
	o := options{
		workers:     DefaultWorkers,
		newExecutor: defaultExecutor,
		logger:      observe.NopLogger(),
		metrics:     observe.NopHealthMetrics(),
		tracer:      observe.NopTracer(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	workers, err := ants.NewPool(o.workers)
	if err != nil {
		return nil, fmt.Errorf("monitor: worker pool: %w", err)
	}

	return &Scheduler{
		opts:    o,
		workers: workers,
		entries: make(map[string]*entry),
	}, nil
}

// Register adds a target and starts its checker.
func (s *Scheduler) Register(t Target) error {
	if t.Name == "" || t.Conn == nil || t.Checker == nil {
		return fmt.Errorf("%w: name, conn and checker are required", ErrInvalidTarget)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started.Load() {
		return ErrStarted
	}
	if _, ok := s.entries[t.Name]; ok {
		return fmt.Errorf("%w: %q", ErrTargetExists, t.Name)
	}
	s.entries[t.Name] = &entry{target: t, exec: s.opts.newExecutor(t.Name)}
	s.order = append(s.order, t.Name)
	t.Checker.Start()
	return nil
}

// Targets returns target names in registration order.
func (s *Scheduler) Targets() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

func (s *Scheduler) entry(name string) (*entry, error) {
	s.mu.RLock()
	e, ok := s.entries[name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTargetNotFound, name)
	}
	return e, nil
}

// Run probes every target on its checker's interval until ctx ends, then
// waits for in-flight probes and remediations and releases the worker pool.
func (s *Scheduler) Run(ctx context.Context) error {
	// Register holds mu while checking started, so the snapshot below
	// sees every target that was accepted.
	s.mu.Lock()
	if !s.started.CompareAndSwap(false, true) {
		s.mu.Unlock()
		return ErrStarted
	}
	entries := make([]*entry, 0, len(s.order))
	for _, name := range s.order {
		entries = append(entries, s.entries[name])
	}
	s.mu.Unlock()

	s.opts.logger.Info(ctx, "monitor started", observe.Field{Key: "targets", Value: len(entries)})

	var loops sync.WaitGroup
	for _, e := range entries {
		loops.Go(func() { s.loop(ctx, e) })
	}
	loops.Wait()
	s.inflight.Wait()
	s.workers.Release()

	s.opts.logger.Info(context.WithoutCancel(ctx), "monitor stopped")
	return nil
}

func (s *Scheduler) loop(ctx context.Context, e *entry) {
	ticker := time.NewTicker(e.target.Checker.CheckInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, e)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context, e *entry) {
	if ctx.Err() != nil || !e.target.Checker.IsRunning() {
		return
	}
	if !e.probing.CompareAndSwap(false, true) {
		s.opts.logger.Debug(ctx, "previous probe still running, skipping tick",
			observe.Field{Key: "health.target", Value: e.target.Name})
		return
	}

	s.inflight.Add(1)
	err := s.workers.Submit(func() {
		defer s.inflight.Done()
		defer e.probing.Store(false)
		s.probe(ctx, e)
	})
	if err != nil {
		s.inflight.Done()
		e.probing.Store(false)
		s.opts.logger.Warn(ctx, "probe not scheduled", observe.Err(err))
	}
}

// ProbeNow probes the named target immediately, remediating if needed, and
// returns the probe result.
func (s *Scheduler) ProbeNow(ctx context.Context, name string) (health.CheckResult, error) {
	e, err := s.entry(name)
	if err != nil {
		return health.CheckResult{}, err
	}
	return s.probe(ctx, e), nil
}

func (s *Scheduler) probe(ctx context.Context, e *entry) health.CheckResult {
	res := e.target.Checker.CheckConnection(ctx, e.target.Conn)
	if res.Skipped {
		return res
	}
	e.setLast(res)

	if e.target.Remediate != nil && e.target.Checker.ShouldMarkUnhealthy() {
		_ = s.remediate(ctx, e)
	}
	return res
}

// remediate runs the target's Remediate through its executor. Concurrent
// calls for the same target share one attempt.
func (s *Scheduler) remediate(ctx context.Context, e *entry) error {
	_, err, _ := s.remedy.Do(e.target.Name, func() (any, error) {
		name := e.target.Name
		ctx, span := s.opts.tracer.StartSpan(ctx, observe.SpanRemedy, attribute.String("health.target", name))

		s.opts.logger.Warn(ctx, "target unhealthy, remediating",
			observe.Field{Key: "health.target", Value: name},
			observe.Field{Key: "consecutive_failures", Value: e.target.Checker.ConsecutiveFailures()},
		)

		err := e.exec.Execute(ctx, e.target.Remediate)
		s.opts.metrics.RecordRemediation(ctx, name, err)
		s.opts.tracer.EndSpan(span, err)

		if err != nil {
			s.opts.logger.Error(ctx, "remediation failed",
				observe.Field{Key: "health.target", Value: name},
				observe.Err(err),
			)
			return nil, err
		}
		e.target.Checker.ResetFailures()
		s.opts.logger.Info(ctx, "target remediated", observe.Field{Key: "health.target", Value: name})
		return nil, nil
	})
	return err
}

// Breaker returns a snapshot of the named target's remediation circuit
// breaker, if its executor has one.
func (s *Scheduler) Breaker(name string) (resilience.BreakerSnapshot, bool) {
	e, err := s.entry(name)
	if err != nil || e.exec.CircuitBreaker() == nil {
		return resilience.BreakerSnapshot{}, false
	}
	return e.exec.CircuitBreaker().Snapshot(), true
}

// LastResult returns the most recent scheduled or on-demand probe of name.
func (s *Scheduler) LastResult(name string) (health.CheckResult, bool) {
	e, err := s.entry(name)
	if err != nil {
		return health.CheckResult{}, false
	}
	return e.lastResult()
}

// Checker exposes the cached state of the named target as a
// health.Checker. Before the first probe it reports healthy.
func (s *Scheduler) Checker(name string) (health.Checker, error) {
	e, err := s.entry(name)
	if err != nil {
		return nil, err
	}
	threshold := e.target.Checker.Config().FailureThreshold
	return health.NewCheckerFunc(name, func(context.Context) health.Result {
		res, ok := e.lastResult()
		if !ok {
			return health.Healthy("awaiting first probe")
		}
		return res.Result(threshold)
	}), nil
}

// RegisterWith adds a cached-result checker for every target to agg.
func (s *Scheduler) RegisterWith(agg *health.Aggregator) {
	for _, name := range s.Targets() {
		if c, err := s.Checker(name); err == nil {
			agg.Register(name, c)
		}
	}
}
