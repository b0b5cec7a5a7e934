package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/jonwraymond/connops/driver/sqldb"
	"github.com/jonwraymond/connops/health"
	"github.com/jonwraymond/connops/observe"
	"github.com/jonwraymond/connops/pool"
	"github.com/jonwraymond/connops/resilience"
)

// ErrInvalid indicates the loaded configuration failed validation.
var ErrInvalid = errors.New("config: invalid")

// Config is the connopsd configuration file.
type Config struct {
	Service     ServiceConfig     `yaml:"service" toml:"service"`
	Database    DatabaseConfig    `yaml:"database" toml:"database"`
	Pool        PoolConfig        `yaml:"pool" toml:"pool"`
	Health      HealthConfig      `yaml:"health" toml:"health"`
	Remediation RemediationConfig `yaml:"remediation" toml:"remediation"`
	HTTP        HTTPConfig        `yaml:"http" toml:"http"`
	Observe     ObserveConfig     `yaml:"observe" toml:"observe"`
	Secrets     SecretsConfig     `yaml:"secrets" toml:"secrets"`
}

// ServiceConfig identifies the process in telemetry.
type ServiceConfig struct {
	Name    string `yaml:"name" toml:"name"`
	Version string `yaml:"version" toml:"version"`
}

// DatabaseConfig selects the backend. DSN may contain ${VAR} and
// secretref:<provider>:<ref> references.
type DatabaseConfig struct {
	Driver     string `yaml:"driver" toml:"driver"`
	DSN        string `yaml:"dsn" toml:"dsn"`
	ProbeQuery string `yaml:"probe_query" toml:"probe_query"`
}

// PoolConfig mirrors pool.Config.
type PoolConfig struct {
	MaxSize        int      `yaml:"max_size" toml:"max_size"`
	AcquireTimeout Duration `yaml:"acquire_timeout" toml:"acquire_timeout"`
	IdleTimeout    Duration `yaml:"idle_timeout" toml:"idle_timeout"`
	// MaxLifetime of zero means unbounded.
	MaxLifetime Duration `yaml:"max_lifetime" toml:"max_lifetime"`
}

// HealthConfig mirrors health.CheckConfig.
type HealthConfig struct {
	CheckInterval    Duration `yaml:"check_interval" toml:"check_interval"`
	PingTimeout      Duration `yaml:"ping_timeout" toml:"ping_timeout"`
	HealthyLatency   Duration `yaml:"healthy_latency" toml:"healthy_latency"`
	DegradedLatency  Duration `yaml:"degraded_latency" toml:"degraded_latency"`
	FailureThreshold int64    `yaml:"failure_threshold" toml:"failure_threshold"`
}

// RemediationConfig controls how an unhealthy target is reconnected.
type RemediationConfig struct {
	MaxAttempts     int      `yaml:"max_attempts" toml:"max_attempts"`
	InitialBackoff  Duration `yaml:"initial_backoff" toml:"initial_backoff"`
	MaxBackoff      Duration `yaml:"max_backoff" toml:"max_backoff"`
	Timeout         Duration `yaml:"timeout" toml:"timeout"`
	BreakerFailures int      `yaml:"breaker_failures" toml:"breaker_failures"`
	BreakerReset    Duration `yaml:"breaker_reset" toml:"breaker_reset"`
}

// HTTPConfig configures the admin listener. When JWTSecret is set every
// endpoint except /healthz requires an HS256 bearer token.
type HTTPConfig struct {
	Address         string   `yaml:"address" toml:"address"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout" toml:"shutdown_timeout"`
	JWTSecret       string   `yaml:"jwt_secret" toml:"jwt_secret"`
	JWTIssuer       string   `yaml:"jwt_issuer" toml:"jwt_issuer"`
	// JWTRole, if set, must appear in the token's roles claim.
	JWTRole string `yaml:"jwt_role" toml:"jwt_role"`
}

// ObserveConfig selects exporters and the log level.
type ObserveConfig struct {
	LogLevel        string  `yaml:"log_level" toml:"log_level"`
	MetricsExporter string  `yaml:"metrics_exporter" toml:"metrics_exporter"`
	TracingExporter string  `yaml:"tracing_exporter" toml:"tracing_exporter"`
	SamplePct       float64 `yaml:"sample_pct" toml:"sample_pct"`
}

// SecretsConfig configures the "file" secret provider.
type SecretsConfig struct {
	Dir string `yaml:"dir" toml:"dir"`
}

// Default returns the configuration used for unset fields.
func Default() *Config {
	pc := pool.DefaultConfig()
	hc := health.DefaultCheckConfig()
	return &Config{
		Service: ServiceConfig{Name: "connopsd", Version: "dev"},
		Database: DatabaseConfig{
			Driver:     sqldb.DriverSQLite,
			DSN:        "file:connops.db",
			ProbeQuery: sqldb.DefaultProbeQuery,
		},
		Pool: PoolConfig{
			MaxSize:        pc.MaxSize,
			AcquireTimeout: Duration(pc.AcquireTimeout),
			IdleTimeout:    Duration(pc.IdleTimeout),
			MaxLifetime:    Duration(pc.MaxLifetime),
		},
		Health: HealthConfig{
			CheckInterval:    Duration(hc.CheckInterval),
			PingTimeout:      Duration(hc.PingTimeout),
			HealthyLatency:   Duration(hc.Thresholds.Healthy),
			DegradedLatency:  Duration(hc.Thresholds.Degraded),
			FailureThreshold: hc.FailureThreshold,
		},
		Remediation: RemediationConfig{
			MaxAttempts:     5,
			InitialBackoff:  Duration(500 * time.Millisecond),
			MaxBackoff:      Duration(30 * time.Second),
			Timeout:         Duration(10 * time.Second),
			BreakerFailures: 3,
			BreakerReset:    Duration(time.Minute),
		},
		HTTP: HTTPConfig{
			Address:         "127.0.0.1:8080",
			ShutdownTimeout: Duration(10 * time.Second),
			JWTIssuer:       "connops",
		},
		Observe: ObserveConfig{
			LogLevel:        "info",
			MetricsExporter: "prometheus",
			TracingExporter: "none",
			SamplePct:       1.0,
		},
		Secrets: SecretsConfig{Dir: "/run/secrets"},
	}
}

// Validate checks every section against the component it configures.
func (c *Config) Validate() error {
	var errs []error
	if c.Service.Name == "" {
		errs = append(errs, errors.New("service.name is required"))
	}
	if err := c.SQLConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.PoolConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.CheckConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Remediation.MaxAttempts < 1 {
		errs = append(errs, errors.New("remediation.max_attempts must be at least 1"))
	}
	if c.Remediation.Timeout <= 0 {
		errs = append(errs, errors.New("remediation.timeout must be positive"))
	}
	if c.HTTP.Address == "" {
		errs = append(errs, errors.New("http.address is required"))
	}
	oc := c.ObserveConfig()
	if err := oc.Validate(); err != nil {
		errs = append(errs, err)
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// SQLConfig returns the sqldb factory configuration.
func (c *Config) SQLConfig() sqldb.Config {
	return sqldb.Config{
		Driver:     c.Database.Driver,
		DSN:        c.Database.DSN,
		ProbeQuery: c.Database.ProbeQuery,
	}
}

// PoolConfig returns the pool configuration.
func (c *Config) PoolConfig() pool.Config {
	return pool.Config{
		MaxSize:        c.Pool.MaxSize,
		AcquireTimeout: c.Pool.AcquireTimeout.Std(),
		IdleTimeout:    c.Pool.IdleTimeout.Std(),
		MaxLifetime:    c.Pool.MaxLifetime.Std(),
	}
}

// CheckConfig returns the health probe configuration.
func (c *Config) CheckConfig() health.CheckConfig {
	return health.CheckConfig{
		CheckInterval:    c.Health.CheckInterval.Std(),
		Thresholds:       health.NewThresholds(c.Health.HealthyLatency.Std(), c.Health.DegradedLatency.Std()),
		PingTimeout:      c.Health.PingTimeout.Std(),
		FailureThreshold: c.Health.FailureThreshold,
	}
}

// RemediationExecutor builds the retry, breaker and timeout chain used to
// reconnect unhealthy targets.
func (c *Config) RemediationExecutor(onStateChange func(from, to resilience.State)) *resilience.Executor {
	r := c.Remediation
	return resilience.NewExecutor(
		resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			MaxFailures:   r.BreakerFailures,
			ResetTimeout:  r.BreakerReset.Std(),
			OnStateChange: onStateChange,
		})),
		resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{
			MaxAttempts: r.MaxAttempts,
			Backoff: resilience.Backoff{
				Initial:  r.InitialBackoff.Std(),
				Max:      r.MaxBackoff.Std(),
				Strategy: resilience.BackoffExponential,
				Jitter:   true,
			},
		})),
		resilience.WithTimeout(r.Timeout.Std()),
	)
}

// ObserveConfig returns the telemetry configuration. The caller fills in
// the prometheus registerer and log writer.
func (c *Config) ObserveConfig() observe.Config {
	return observe.Config{
		ServiceName: c.Service.Name,
		Version:     c.Service.Version,
		Tracing: observe.TracingConfig{
			Enabled:   c.Observe.TracingExporter != "" && c.Observe.TracingExporter != "none",
			Exporter:  c.Observe.TracingExporter,
			SamplePct: c.Observe.SamplePct,
		},
		Metrics: observe.MetricsConfig{
			Enabled:  true,
			Exporter: c.Observe.MetricsExporter,
		},
		Logging: observe.LoggingConfig{
			Enabled: true,
			Level:   c.Observe.LogLevel,
		},
	}
}
