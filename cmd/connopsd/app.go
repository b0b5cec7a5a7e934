package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jonwraymond/connops/auth"
	"github.com/jonwraymond/connops/config"
	"github.com/jonwraymond/connops/driver/sqldb"
	"github.com/jonwraymond/connops/health"
	"github.com/jonwraymond/connops/monitor"
	"github.com/jonwraymond/connops/observe"
	"github.com/jonwraymond/connops/pool"
	"github.com/jonwraymond/connops/resilience"
)

const targetName = "database"

// app holds the wired components of one connopsd process.
type app struct {
	cfg      *config.Config
	registry *prometheus.Registry
	obs      observe.Observer
	logger   observe.Logger

	factory *sqldb.Factory
	pool    *pool.Pool[*sqldb.Conn]
	checker *health.ConnectionChecker
	sched   *monitor.Scheduler
	agg     *health.Aggregator
	authn   *auth.JWTAuthenticator
}

func newApp(ctx context.Context, cfg *config.Config, logOut io.Writer) (*app, error) {
	a := &app{cfg: cfg, registry: prometheus.NewRegistry()}
	if err := a.build(ctx, logOut); err != nil {
		_ = a.close(context.WithoutCancel(ctx))
		return nil, err
	}
	return a, nil
}

func (a *app) build(ctx context.Context, logOut io.Writer) error {
	cfg := a.cfg
	var err error

	oc := cfg.ObserveConfig()
	oc.Metrics.Registerer = a.registry
	oc.Logging.Writer = logOut
	if a.obs, err = observe.NewObserver(ctx, oc); err != nil {
		return fmt.Errorf("observer: %w", err)
	}
	a.logger = a.obs.Logger()
	tracer := observe.NewTracer(a.obs.Tracer())

	poolMetrics, err := observe.NewPoolMetrics(a.obs.Meter())
	if err != nil {
		return fmt.Errorf("pool metrics: %w", err)
	}
	healthMetrics, err := observe.NewHealthMetrics(a.obs.Meter())
	if err != nil {
		return fmt.Errorf("health metrics: %w", err)
	}

	if a.factory, err = sqldb.NewFactory(cfg.SQLConfig(), sqldb.WithLogger(a.logger)); err != nil {
		return err
	}
	a.pool, err = pool.New[*sqldb.Conn](a.factory, cfg.PoolConfig(),
		pool.WithName(targetName),
		pool.WithLogger(a.logger),
		pool.WithMetrics(poolMetrics),
		pool.WithTracer(tracer),
	)
	if err != nil {
		return err
	}

	a.checker = health.NewConnectionChecker(cfg.CheckConfig(),
		health.WithTarget(targetName),
		health.WithLogger(a.logger),
		health.WithMetrics(healthMetrics),
		health.WithTracer(tracer),
	)

	a.sched, err = monitor.New(
		monitor.WithExecutor(func(target string) *resilience.Executor {
			return cfg.RemediationExecutor(func(from, to resilience.State) {
				a.logger.Warn(context.Background(), "remediation breaker changed state",
					observe.Field{Key: "health.target", Value: target},
					observe.Field{Key: "from", Value: from.String()},
					observe.Field{Key: "to", Value: to.String()},
				)
			})
		}),
		monitor.WithLogger(a.logger),
		monitor.WithMetrics(healthMetrics),
		monitor.WithTracer(tracer),
	)
	if err != nil {
		return err
	}
	if err = a.sched.Register(monitor.PoolTarget(targetName, a.pool, a.checker)); err != nil {
		return err
	}

	a.agg = health.NewAggregator()
	a.sched.RegisterWith(a.agg)

	if cfg.HTTP.JWTSecret != "" {
		a.authn = auth.NewJWTAuthenticator(
			auth.JWTConfig{Issuer: cfg.HTTP.JWTIssuer},
			auth.NewStaticKeyProvider([]byte(cfg.HTTP.JWTSecret)),
		)
	}

	return nil
}

// handler builds the admin HTTP surface. /healthz is always public; the
// rest requires a bearer token when a JWT secret is configured.
func (a *app) handler() http.Handler {
	mux := http.NewServeMux()
	health.RegisterHandlers(mux, a.agg)
	mux.HandleFunc("GET /stats", a.handleStats)
	mux.HandleFunc("POST /probe", a.handleProbe)
	mux.HandleFunc("POST /pool/close-idle", a.handleCloseIdle)
	mux.Handle("GET /metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))

	if a.authn == nil {
		return mux
	}
	root := http.NewServeMux()
	root.Handle("GET /healthz", health.LivenessHandler())
	opts := []auth.MiddlewareOption{auth.WithMiddlewareLogger(a.logger)}
	if a.cfg.HTTP.JWTRole != "" {
		opts = append(opts, auth.RequireRole(a.cfg.HTTP.JWTRole))
	}
	root.Handle("/", auth.Middleware(a.authn, mux, opts...))
	return root
}

type statsResponse struct {
	Pool    string                      `json:"pool"`
	Config  poolConfigResponse          `json:"config"`
	Stats   pool.Stats                  `json:"stats"`
	Health  targetResponse              `json:"health"`
	Breaker *resilience.BreakerSnapshot `json:"breaker,omitempty"`
}

type poolConfigResponse struct {
	MaxSize        int    `json:"max_size"`
	AcquireTimeout string `json:"acquire_timeout"`
	IdleTimeout    string `json:"idle_timeout"`
	MaxLifetime    string `json:"max_lifetime,omitempty"`
}

type targetResponse struct {
	Status              health.Status `json:"status"`
	ConsecutiveFailures int64         `json:"consecutive_failures"`
	LatencyMS           float64       `json:"latency_ms,omitempty"`
	CheckedAt           time.Time     `json:"checked_at,omitzero"`
	Error               string        `json:"error,omitempty"`
	Skipped             bool          `json:"skipped,omitempty"`
}

func newTargetResponse(r health.CheckResult) targetResponse {
	resp := targetResponse{
		Status:              r.Status,
		ConsecutiveFailures: r.ConsecutiveFailures,
		LatencyMS:           float64(r.Latency.Microseconds()) / 1000,
		CheckedAt:           r.CheckedAt,
		Skipped:             r.Skipped,
	}
	if r.Err != nil {
		resp.Error = r.Err.Error()
	}
	return resp
}

func (a *app) handleStats(w http.ResponseWriter, r *http.Request) {
	pc := a.pool.Config()
	resp := statsResponse{
		Pool: a.pool.Name(),
		Config: poolConfigResponse{
			MaxSize:        pc.MaxSize,
			AcquireTimeout: pc.AcquireTimeout.String(),
			IdleTimeout:    pc.IdleTimeout.String(),
		},
		Stats: a.pool.Stats(),
		Health: targetResponse{
			Status:              a.checker.LastStatus(),
			ConsecutiveFailures: a.checker.ConsecutiveFailures(),
		},
	}
	if pc.MaxLifetime > 0 {
		resp.Config.MaxLifetime = pc.MaxLifetime.String()
	}
	if last, ok := a.sched.LastResult(targetName); ok {
		resp.Health = newTargetResponse(last)
		resp.Health.ConsecutiveFailures = a.checker.ConsecutiveFailures()
	}
	if snap, ok := a.sched.Breaker(targetName); ok {
		resp.Breaker = &snap
	}
	writeJSON(w, http.StatusOK, resp)
}

func (a *app) handleProbe(w http.ResponseWriter, r *http.Request) {
	res, err := a.sched.ProbeNow(r.Context(), targetName)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	code := http.StatusOK
	if !res.Status.IsUsable() {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, newTargetResponse(res))
}

func (a *app) handleCloseIdle(w http.ResponseWriter, r *http.Request) {
	if err := a.pool.CloseIdle(r.Context()); err != nil {
		a.logger.Warn(r.Context(), "close idle reported errors", observe.Err(err))
	}
	writeJSON(w, http.StatusOK, a.pool.Stats())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// serve runs the scheduler and HTTP server until ctx ends, then shuts the
// server down within the configured timeout.
func (a *app) serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.cfg.HTTP.Address)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.cfg.HTTP.Address, err)
	}
	return a.serveOn(ctx, ln)
}

func (a *app) serveOn(ctx context.Context, ln net.Listener) error {
	if _, err := a.sched.ProbeNow(ctx, targetName); err != nil {
		return err
	}

	runCtx, stopRun := context.WithCancel(ctx)
	defer stopRun()
	schedDone := make(chan struct{})
	go func() {
		defer close(schedDone)
		_ = a.sched.Run(runCtx)
	}()

	srv := &http.Server{
		Handler:           a.handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	srvErr := make(chan error, 1)
	go func() { srvErr <- srv.Serve(ln) }()

	a.logger.Info(ctx, "connopsd listening",
		observe.Field{Key: "address", Value: ln.Addr().String()},
		observe.Field{Key: "auth", Value: a.authn != nil},
	)

	var err error
	select {
	case <-ctx.Done():
	case err = <-srvErr:
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.cfg.HTTP.ShutdownTimeout.Std())
	defer cancel()
	if serr := srv.Shutdown(shutdownCtx); serr != nil && err == nil {
		err = serr
	}
	stopRun()
	<-schedDone
	return err
}

// close releases components in reverse dependency order. It tolerates a
// partially built app.
func (a *app) close(ctx context.Context) error {
	var errs []error
	if a.pool != nil {
		errs = append(errs, a.pool.Close(ctx))
	}
	if a.factory != nil {
		errs = append(errs, a.factory.Close())
	}
	if a.obs != nil {
		errs = append(errs, a.obs.Shutdown(ctx))
	}
	return errors.Join(errs...)
}
