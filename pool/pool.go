package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/semaphore"

	"github.com/jonwraymond/connops/observe"
)

// Discard reasons reported to metrics and logs.
const (
	reasonMaxLifetime = "max_lifetime"
	reasonIdleTimeout = "idle_timeout"
	reasonValidate    = "validate"
	reasonClosed      = "closed"
	reasonCloseIdle   = "close_idle"
	reasonPoolClosed  = "pool_closed"
)

type idleEntry[C Connection] struct {
	conn       C
	createdAt  time.Time
	lastUsedAt time.Time
}

type options struct {
	name    string
	logger  observe.Logger
	metrics observe.PoolMetrics
	tracer  observe.Tracer
}

// Option configures a Pool.
type Option func(*options)

// WithName names the pool in logs, metrics and spans. Default: "default"
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithLogger sets the pool's logger.
func WithLogger(l observe.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithMetrics sets the pool's metrics recorder.
func WithMetrics(m observe.PoolMetrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithTracer sets the tracer used for acquire spans.
func WithTracer(t observe.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// Pool is a bounded pool of connections of type C.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Context: Acquire honors cancellation and deadlines of its context.
// - Ownership: a connection is owned by exactly one of the idle cache or a
// Handle at any time.
type Pool[C Connection] struct {
	config  Config
	factory Factory[C]
	sem     *semaphore.Weighted

	mu     sync.Mutex
	idle   []idleEntry[C]
	closed atomic.Bool // written under mu

	active  atomic.Int64
	waiting atomic.Int64

	done     context.Context
	shutdown context.CancelFunc

	opts       options
	unregister func() error
}

// New creates a pool. It returns an error matching ErrInvalidConfig when
// config does not validate.
func New[C Connection](factory Factory[C], config Config, opts ...Option) (*Pool[C], error) {
	if factory == nil {
		return nil, fmt.Errorf("%w: nil factory", ErrInvalidConfig)
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	o := options{
		name:    "default",
		logger:  observe.NopLogger(),
		metrics: observe.NopPoolMetrics(),
		tracer:  observe.NopTracer(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	o.logger = o.logger.With(observe.Field{Key: "pool.name", Value: o.name})

	done, shutdown := context.WithCancel(context.Background())
	p := &Pool[C]{
		config:   config,
		factory:  factory,
		sem:      semaphore.NewWeighted(int64(config.MaxSize)),
		done:     done,
		shutdown: shutdown,
		opts:     o,
	}

	unregister, err := o.metrics.ObserveGauges(o.name, p.gauges)
	if err != nil {
		shutdown()
		return nil, fmt.Errorf("pool: register gauges: %w", err)
	}
	p.unregister = unregister

	return p, nil
}

func (p *Pool[C]) gauges() observe.PoolGauges {
	s := p.Stats()
	return observe.PoolGauges{
		Idle:    int64(s.Idle),
		Active:  int64(s.Active),
		Waiting: int64(s.Waiting),
	}
}

// Name returns the name given with WithName.
func (p *Pool[C]) Name() string {
	return p.opts.name
}

// Config returns the pool's configuration.
func (p *Pool[C]) Config() Config {
	return p.config
}

// Stats returns a snapshot of the pool's counters.
func (p *Pool[C]) Stats() Stats {
	p.mu.Lock()
	idle := len(p.idle)
	p.mu.Unlock()

	active := int(p.active.Load())
	return Stats{
		Total:   idle + active,
		Idle:    idle,
		Active:  active,
		Waiting: int(p.waiting.Load()),
	}
}

// Acquire checks out a connection, reusing the oldest usable idle one or
// creating a new one. The wait is bounded by the earlier of ctx's deadline
// and AcquireTimeout.
func (p *Pool[C]) Acquire(ctx context.Context) (*Handle[C], error) {
	start := time.Now()
	ctx, span := p.opts.tracer.StartSpan(ctx, observe.SpanAcquire, attribute.String("pool.name", p.opts.name))

	h, err := p.acquire(ctx)

	p.opts.metrics.RecordAcquire(ctx, p.opts.name, time.Since(start), outcome(err))
	p.opts.tracer.EndSpan(span, err)
	return h, err
}

func (p *Pool[C]) acquire(ctx context.Context) (*Handle[C], error) {
	if p.closed.Load() {
		return nil, ErrClosed
	}

	p.waiting.Add(1)
	waiting := true
	defer func() {
		if waiting {
			p.waiting.Add(-1)
		}
	}()

	actx, cancel := context.WithTimeout(ctx, p.config.AcquireTimeout)
	defer cancel()
	stop := context.AfterFunc(p.done, cancel)
	defer stop()

	if err := p.sem.Acquire(actx, 1); err != nil {
		return nil, p.acquireErr(ctx)
	}
	if p.closed.Load() {
		p.sem.Release(1)
		return nil, ErrClosed
	}

	conn, createdAt, err := p.checkout(ctx, actx)
	if err != nil {
		p.sem.Release(1)
		return nil, err
	}

	p.waiting.Add(-1)
	waiting = false
	p.active.Add(1)

	return &Handle[C]{pool: p, conn: conn, createdAt: createdAt}, nil
}

// TryAcquire is Acquire without the wait for a permit. When MaxSize
// connections are already checked out it returns ErrExhausted at once.
// Creating a new connection is still bounded by AcquireTimeout.
func (p *Pool[C]) TryAcquire(ctx context.Context) (*Handle[C], error) {
	start := time.Now()
	ctx, span := p.opts.tracer.StartSpan(ctx, observe.SpanAcquire, attribute.String("pool.name", p.opts.name))

	h, err := p.tryAcquire(ctx)

	p.opts.metrics.RecordAcquire(ctx, p.opts.name, time.Since(start), outcome(err))
	p.opts.tracer.EndSpan(span, err)
	return h, err
}

func (p *Pool[C]) tryAcquire(ctx context.Context) (*Handle[C], error) {
	if p.closed.Load() {
		return nil, ErrClosed
	}
	if !p.sem.TryAcquire(1) {
		return nil, ErrExhausted
	}
	if p.closed.Load() {
		p.sem.Release(1)
		return nil, ErrClosed
	}

	actx, cancel := context.WithTimeout(ctx, p.config.AcquireTimeout)
	defer cancel()
	stop := context.AfterFunc(p.done, cancel)
	defer stop()

	conn, createdAt, err := p.checkout(ctx, actx)
	if err != nil {
		p.sem.Release(1)
		return nil, err
	}
	p.active.Add(1)

	return &Handle[C]{pool: p, conn: conn, createdAt: createdAt}, nil
}

// checkout runs with a permit held. It pops idle entries until one passes
// the liveness checks, or creates a new connection when the cache runs dry.
func (p *Pool[C]) checkout(ctx, actx context.Context) (C, time.Time, error) {
	for {
		entry, ok := p.popIdle()
		if !ok {
			break
		}
		if reason := p.expired(entry, time.Now()); reason != "" {
			p.discard(ctx, entry.conn, reason)
			continue
		}
		if !p.factory.Validate(actx, entry.conn) {
			p.discard(ctx, entry.conn, reasonValidate)
			continue
		}
		return entry.conn, entry.createdAt, nil
	}

	var zero C
	conn, err := p.factory.Create(actx)
	if err != nil {
		if actx.Err() != nil {
			return zero, time.Time{}, p.acquireErr(ctx)
		}
		p.opts.logger.Warn(ctx, "connection creation failed", observe.Err(err))
		return zero, time.Time{}, fmt.Errorf("%w: %w", ErrCreationFailed, err)
	}
	createdAt := time.Now()
	p.opts.metrics.RecordCreated(ctx, p.opts.name)

	if actx.Err() != nil {
		// Created after the deadline: keep it for the next caller.
		p.pushIdle(ctx, idleEntry[C]{conn: conn, createdAt: createdAt, lastUsedAt: createdAt})
		return zero, time.Time{}, p.acquireErr(ctx)
	}
	return conn, createdAt, nil
}

func (p *Pool[C]) acquireErr(ctx context.Context) error {
	if p.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return &TimeoutError{Timeout: p.config.AcquireTimeout}
}

func (p *Pool[C]) expired(e idleEntry[C], now time.Time) string {
	if p.config.MaxLifetime > 0 && now.Sub(e.createdAt) > p.config.MaxLifetime {
		return reasonMaxLifetime
	}
	if now.Sub(e.lastUsedAt) > p.config.IdleTimeout {
		return reasonIdleTimeout
	}
	return ""
}

func (p *Pool[C]) popIdle() (idleEntry[C], bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.idle) == 0 {
		return idleEntry[C]{}, false
	}
	e := p.idle[0]
	p.idle[0] = idleEntry[C]{}
	p.idle = p.idle[1:]
	return e, true
}

// pushIdle appends e to the back of the idle cache, or closes it when the
// pool is already closed.
func (p *Pool[C]) pushIdle(ctx context.Context, e idleEntry[C]) {
	p.mu.Lock()
	if p.closed.Load() {
		p.mu.Unlock()
		p.discard(ctx, e.conn, reasonPoolClosed)
		return
	}
	p.idle = append(p.idle, e)
	p.mu.Unlock()
}

// release is the return path for a Handle.
func (p *Pool[C]) release(conn C, createdAt time.Time) {
	ctx := context.Background()
	p.active.Add(-1)

	if conn.IsClosed() {
		p.opts.metrics.RecordDiscarded(ctx, p.opts.name, reasonClosed)
		p.opts.logger.Debug(ctx, "released connection was closed, discarding")
	} else {
		p.pushIdle(ctx, idleEntry[C]{conn: conn, createdAt: createdAt, lastUsedAt: time.Now()})
	}

	p.sem.Release(1)
}

// discard closes conn best-effort. Close errors are logged, never returned.
func (p *Pool[C]) discard(ctx context.Context, conn C, reason string) {
	p.opts.metrics.RecordDiscarded(ctx, p.opts.name, reason)
	if err := conn.Close(context.WithoutCancel(ctx)); err != nil {
		p.opts.logger.Warn(ctx, "closing discarded connection failed",
			observe.Field{Key: "reason", Value: reason},
			observe.Err(err),
		)
		return
	}
	p.opts.logger.Debug(ctx, "discarded connection", observe.Field{Key: "reason", Value: reason})
}

// CloseIdle drains the idle cache and closes every drained connection.
// Checked-out connections are not affected. Close errors are joined.
func (p *Pool[C]) CloseIdle(ctx context.Context) error {
	p.mu.Lock()
	drained := p.idle
	p.idle = nil
	p.mu.Unlock()

	return p.closeAll(ctx, drained, reasonCloseIdle)
}

func (p *Pool[C]) closeAll(ctx context.Context, entries []idleEntry[C], reason string) error {
	var errs []error
	for _, e := range entries {
		p.opts.metrics.RecordDiscarded(ctx, p.opts.name, reason)
		if err := e.conn.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if len(entries) > 0 {
		p.opts.logger.Info(ctx, "closed idle connections",
			observe.Field{Key: "count", Value: len(entries)},
			observe.Field{Key: "reason", Value: reason},
		)
	}
	return errors.Join(errs...)
}

// Close shuts the pool down. New and blocked Acquire calls fail with
// ErrClosed, idle connections are closed, and connections released later
// are closed instead of cached. Close is idempotent.
func (p *Pool[C]) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed.Load() {
		p.mu.Unlock()
		return nil
	}
	p.closed.Store(true)
	drained := p.idle
	p.idle = nil
	p.mu.Unlock()

	p.shutdown()

	var errs []error
	if err := p.unregister(); err != nil {
		errs = append(errs, fmt.Errorf("pool: unregister gauges: %w", err))
	}
	if err := p.closeAll(ctx, drained, reasonPoolClosed); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// IsClosed reports whether Close has been called.
func (p *Pool[C]) IsClosed() bool {
	return p.closed.Load()
}

// With acquires a connection, passes it to fn and releases it on every
// exit path, including a panic in fn.
func (p *Pool[C]) With(ctx context.Context, fn func(ctx context.Context, conn C) error) error {
	h, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer h.Release()
	return fn(ctx, h.Conn())
}

func outcome(err error) string {
	switch {
	case err == nil:
		return observe.OutcomeOK
	case errors.Is(err, ErrTimeout):
		return observe.OutcomeTimeout
	case errors.Is(err, ErrCreationFailed):
		return observe.OutcomeCreationFailed
	case errors.Is(err, ErrClosed):
		return observe.OutcomeClosed
	case errors.Is(err, ErrExhausted):
		return observe.OutcomeExhausted
	default:
		return observe.OutcomeCanceled
	}
}
