package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonwraymond/connops/health"
	"github.com/jonwraymond/connops/observe"
	"github.com/jonwraymond/connops/resilience"
)

var errDown = errors.New("connection refused")

type fakeConn struct {
	closed atomic.Bool
	pings  atomic.Int64

	mu  sync.Mutex
	err error
}

func (c *fakeConn) IsClosed() bool { return c.closed.Load() }

func (c *fakeConn) Ping(context.Context) error {
	c.pings.Add(1)
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *fakeConn) setErr(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
}

type remediationRecorder struct {
	observe.HealthMetrics
	mu   sync.Mutex
	errs []error
}

func (r *remediationRecorder) RecordRemediation(_ context.Context, _ string, err error) {
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}

func (r *remediationRecorder) calls() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

func plainExecutor(string) *resilience.Executor { return resilience.NewExecutor() }

func newChecker(name string, threshold int64, interval time.Duration) *health.ConnectionChecker {
	cfg := health.DefaultCheckConfig()
	cfg.FailureThreshold = threshold
	cfg.CheckInterval = interval
	cfg.PingTimeout = time.Second
	return health.NewConnectionChecker(cfg, health.WithTarget(name))
}

func newTestScheduler(t *testing.T, opts ...Option) *Scheduler {
	t.Helper()
	s, err := New(append([]Option{WithExecutor(plainExecutor)}, opts...)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return s
}

func TestScheduler_Register(t *testing.T) {
	s := newTestScheduler(t)
	checker := newChecker("primary", 3, time.Second)

	invalid := []Target{
		{Conn: &fakeConn{}, Checker: checker},
		{Name: "x", Checker: checker},
		{Name: "x", Conn: &fakeConn{}},
	}
	for _, tgt := range invalid {
		if err := s.Register(tgt); !errors.Is(err, ErrInvalidTarget) {
			t.Errorf("Register(%+v) error = %v, want ErrInvalidTarget", tgt, err)
		}
	}

	if err := s.Register(Target{Name: "primary", Conn: &fakeConn{}, Checker: checker}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if !checker.IsRunning() {
		t.Error("Register should start the checker")
	}
	if err := s.Register(Target{Name: "primary", Conn: &fakeConn{}, Checker: checker}); !errors.Is(err, ErrTargetExists) {
		t.Errorf("duplicate Register() error = %v, want ErrTargetExists", err)
	}
	if err := s.Register(Target{Name: "replica", Conn: &fakeConn{}, Checker: newChecker("replica", 3, time.Second)}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	got := s.Targets()
	if len(got) != 2 || got[0] != "primary" || got[1] != "replica" {
		t.Errorf("Targets() = %v, want [primary replica]", got)
	}

	if _, err := s.ProbeNow(context.Background(), "missing"); !errors.Is(err, ErrTargetNotFound) {
		t.Errorf("ProbeNow(missing) error = %v, want ErrTargetNotFound", err)
	}
}

func TestScheduler_CachedChecker(t *testing.T) {
	s := newTestScheduler(t)
	conn := &fakeConn{}
	_ = s.Register(Target{Name: "primary", Conn: conn, Checker: newChecker("primary", 3, time.Second)})
	ctx := context.Background()

	c, err := s.Checker("primary")
	if err != nil {
		t.Fatalf("Checker() error = %v", err)
	}
	if got := c.Check(ctx).Status; got != health.StatusHealthy {
		t.Errorf("status before first probe = %v, want healthy", got)
	}
	if _, ok := s.LastResult("primary"); ok {
		t.Error("LastResult() reported a result before any probe")
	}

	conn.setErr(errDown)
	res, err := s.ProbeNow(ctx, "primary")
	if err != nil {
		t.Fatalf("ProbeNow() error = %v", err)
	}
	if res.Status != health.StatusUnhealthy || res.ConsecutiveFailures != 1 {
		t.Errorf("ProbeNow() = %+v", res)
	}

	pings := conn.pings.Load()
	got := c.Check(ctx)
	if got.Status != health.StatusUnhealthy {
		t.Errorf("cached status = %v, want unhealthy", got.Status)
	}
	if conn.pings.Load() != pings {
		t.Error("cached checker probed the connection")
	}
	if last, ok := s.LastResult("primary"); !ok || last.ConsecutiveFailures != 1 {
		t.Errorf("LastResult() = %+v, %v", last, ok)
	}
}

func TestScheduler_RemediatesAtThreshold(t *testing.T) {
	metrics := &remediationRecorder{HealthMetrics: observe.NopHealthMetrics()}
	s := newTestScheduler(t, WithMetrics(metrics))
	conn := &fakeConn{}
	checker := newChecker("primary", 2, time.Second)

	var remedies atomic.Int32
	_ = s.Register(Target{
		Name:    "primary",
		Conn:    conn,
		Checker: checker,
		Remediate: func(context.Context) error {
			remedies.Add(1)
			conn.setErr(nil)
			return nil
		},
	})
	ctx := context.Background()

	conn.setErr(errDown)
	_, _ = s.ProbeNow(ctx, "primary")
	if remedies.Load() != 0 {
		t.Fatalf("remediated after 1 failure with threshold 2")
	}

	_, _ = s.ProbeNow(ctx, "primary")
	if remedies.Load() != 1 {
		t.Fatalf("remedies = %d, want 1", remedies.Load())
	}
	if checker.ConsecutiveFailures() != 0 || checker.LastStatus() != health.StatusHealthy {
		t.Errorf("after remediation: failures = %d, status = %v", checker.ConsecutiveFailures(), checker.LastStatus())
	}
	if calls := metrics.calls(); len(calls) != 1 || calls[0] != nil {
		t.Errorf("RecordRemediation calls = %v, want one success", calls)
	}

	res, _ := s.ProbeNow(ctx, "primary")
	if !res.Succeeded() {
		t.Errorf("probe after remediation = %+v, want success", res)
	}
}

func TestScheduler_RemediationFailureKeepsStreak(t *testing.T) {
	metrics := &remediationRecorder{HealthMetrics: observe.NopHealthMetrics()}
	s := newTestScheduler(t, WithMetrics(metrics), WithExecutor(func(string) *resilience.Executor {
		return resilience.NewExecutor(resilience.WithCircuitBreaker(
			resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{MaxFailures: 2, ResetTimeout: time.Hour}),
		))
	}))
	conn := &fakeConn{}
	conn.setErr(errDown)
	checker := newChecker("primary", 1, time.Second)

	var remedies atomic.Int32
	_ = s.Register(Target{
		Name:    "primary",
		Conn:    conn,
		Checker: checker,
		Remediate: func(context.Context) error {
			remedies.Add(1)
			return errors.New("reconnect refused")
		},
	})

	for range 3 {
		_, _ = s.ProbeNow(context.Background(), "primary")
	}

	if checker.ConsecutiveFailures() != 3 || !checker.ShouldMarkUnhealthy() {
		t.Errorf("failures = %d, want streak kept at 3", checker.ConsecutiveFailures())
	}
	if remedies.Load() != 2 {
		t.Errorf("remedies = %d, want 2 (third call rejected by open breaker)", remedies.Load())
	}

	calls := metrics.calls()
	if len(calls) != 3 || !errors.Is(calls[2], resilience.ErrCircuitOpen) {
		t.Errorf("RecordRemediation calls = %v, want third ErrCircuitOpen", calls)
	}

	snap, ok := s.Breaker("primary")
	if !ok || snap.State != resilience.StateOpen {
		t.Errorf("Breaker() = %+v, %v, want open", snap, ok)
	}
}

func TestScheduler_RemediationSingleFlight(t *testing.T) {
	s := newTestScheduler(t)
	conn := &fakeConn{}
	conn.setErr(errDown)

	gate := make(chan struct{})
	var remedies atomic.Int32
	_ = s.Register(Target{
		Name:    "primary",
		Conn:    conn,
		Checker: newChecker("primary", 1, time.Second),
		Remediate: func(context.Context) error {
			remedies.Add(1)
			<-gate
			return nil
		},
	})

	const callers = 5
	var wg sync.WaitGroup
	for range callers {
		wg.Go(func() { _, _ = s.ProbeNow(context.Background(), "primary") })
	}

	deadline := time.Now().Add(2 * time.Second)
	for conn.pings.Load() < callers && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	if remedies.Load() != 1 {
		t.Errorf("remedies = %d, want 1 shared remediation", remedies.Load())
	}
}

func TestScheduler_Run(t *testing.T) {
	s := newTestScheduler(t, WithWorkers(2))
	conn := &fakeConn{}
	checker := newChecker("primary", 3, 10*time.Millisecond)
	_ = s.Register(Target{Name: "primary", Conn: conn, Checker: checker})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for conn.pings.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatal("scheduler did not probe within 2s")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if err := s.Run(ctx); !errors.Is(err, ErrStarted) {
		t.Errorf("second Run() error = %v, want ErrStarted", err)
	}
	if err := s.Register(Target{Name: "late", Conn: &fakeConn{}, Checker: newChecker("late", 3, time.Second)}); !errors.Is(err, ErrStarted) {
		t.Errorf("Register() while running error = %v, want ErrStarted", err)
	}

	checker.Stop()
	time.Sleep(30 * time.Millisecond)
	stopped := conn.pings.Load()
	time.Sleep(50 * time.Millisecond)
	if conn.pings.Load() != stopped {
		t.Errorf("pings grew from %d to %d after Stop", stopped, conn.pings.Load())
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	if res, ok := s.LastResult("primary"); !ok || !res.Succeeded() {
		t.Errorf("LastResult() = %+v, %v", res, ok)
	}
}

// TestScheduler_RegisterDuringRun verifies every target accepted while Run is
// starting gets probed, and every other one is rejected with ErrStarted.
func TestScheduler_RegisterDuringRun(t *testing.T) {
	s := newTestScheduler(t, WithWorkers(4))

	const n = 32
	conns := make([]*fakeConn, n)
	accepted := make([]atomic.Bool, n)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	var wg sync.WaitGroup
	for i := range n {
		conns[i] = &fakeConn{}
		wg.Go(func() {
			name := fmt.Sprintf("target-%d", i)
			err := s.Register(Target{Name: name, Conn: conns[i], Checker: newChecker(name, 3, 5*time.Millisecond)})
			switch {
			case err == nil:
				accepted[i].Store(true)
			case !errors.Is(err, ErrStarted):
				t.Errorf("Register(%s) error = %v", name, err)
			}
		})
		if i == n/2 {
			go func() { done <- s.Run(ctx) }()
		}
	}
	wg.Wait()

	deadline := time.Now().Add(2 * time.Second)
	for i := range n {
		if !accepted[i].Load() {
			continue
		}
		for conns[i].pings.Load() == 0 {
			if time.Now().After(deadline) {
				t.Fatalf("accepted target-%d was never probed", i)
			}
			time.Sleep(5 * time.Millisecond)
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Run() error = %v", err)
	}
}

// TestScheduler_SlowProbeSkipsTicks verifies probes of one target never overlap.
func TestScheduler_SlowProbeSkipsTicks(t *testing.T) {
	s := newTestScheduler(t)
	var inFlight, peak atomic.Int32
	conn := &slowConn{delay: 40 * time.Millisecond, inFlight: &inFlight, peak: &peak}
	_ = s.Register(Target{Name: "slow", Conn: conn, Checker: newChecker("slow", 3, 5*time.Millisecond)})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := s.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if peak.Load() != 1 {
		t.Errorf("peak concurrent probes = %d, want 1", peak.Load())
	}
}

type slowConn struct {
	delay          time.Duration
	inFlight, peak *atomic.Int32
}

func (c *slowConn) IsClosed() bool { return false }

func (c *slowConn) Ping(ctx context.Context) error {
	n := c.inFlight.Add(1)
	defer c.inFlight.Add(-1)
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			break
		}
	}
	select {
	case <-time.After(c.delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestScheduler_RegisterWith(t *testing.T) {
	s := newTestScheduler(t)
	up, down := &fakeConn{}, &fakeConn{}
	down.setErr(errDown)
	_ = s.Register(Target{Name: "up", Conn: up, Checker: newChecker("up", 3, time.Second)})
	_ = s.Register(Target{Name: "down", Conn: down, Checker: newChecker("down", 3, time.Second)})

	ctx := context.Background()
	_, _ = s.ProbeNow(ctx, "up")
	_, _ = s.ProbeNow(ctx, "down")

	agg := health.NewAggregator()
	s.RegisterWith(agg)

	results := agg.CheckAll(ctx)
	if len(results) != 2 {
		t.Fatalf("CheckAll() returned %d results, want 2", len(results))
	}
	if results["down"].Status != health.StatusUnhealthy {
		t.Errorf("down = %v, want unhealthy", results["down"].Status)
	}
	if got := agg.OverallStatus(results); got != health.StatusUnhealthy {
		t.Errorf("OverallStatus() = %v, want unhealthy", got)
	}
}
