package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/connops/secret"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CONNOPS_"

// Load builds the configuration: defaults, then the file at path (if any),
// then CONNOPS_* environment overrides, then secret resolution of the DSN
// and JWT secret, then validation.
//
// The file format follows the extension: .yaml/.yml or .toml. Unknown keys
// are rejected.
func Load(ctx context.Context, path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", path, err)
		}
	}
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := cfg.resolveSecrets(ctx); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
	case ".toml":
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported config format %q", ext)
	}
	return nil
}

// envBinding maps one CONNOPS_* variable onto a field.
type envBinding struct {
	key   string
	apply func(v string) error
}

func envString(dst *string) func(string) error {
	return func(v string) error {
		*dst = v
		return nil
	}
}

func envInt(dst *int) func(string) error {
	return func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst = n
		return nil
	}
}

func envDuration(dst *Duration) func(string) error {
	return func(v string) error {
		return dst.UnmarshalText([]byte(v))
	}
}

func applyEnv(cfg *Config) error {
	bindings := []envBinding{
		{"DATABASE_DRIVER", envString(&cfg.Database.Driver)},
		{"DATABASE_DSN", envString(&cfg.Database.DSN)},
		{"POOL_MAX_SIZE", envInt(&cfg.Pool.MaxSize)},
		{"POOL_ACQUIRE_TIMEOUT", envDuration(&cfg.Pool.AcquireTimeout)},
		{"HEALTH_CHECK_INTERVAL", envDuration(&cfg.Health.CheckInterval)},
		{"HTTP_ADDRESS", envString(&cfg.HTTP.Address)},
		{"HTTP_JWT_SECRET", envString(&cfg.HTTP.JWTSecret)},
		{"HTTP_JWT_ROLE", envString(&cfg.HTTP.JWTRole)},
		{"LOG_LEVEL", envString(&cfg.Observe.LogLevel)},
		{"METRICS_EXPORTER", envString(&cfg.Observe.MetricsExporter)},
		{"TRACING_EXPORTER", envString(&cfg.Observe.TracingExporter)},
		{"SECRETS_DIR", envString(&cfg.Secrets.Dir)},
	}
	for _, b := range bindings {
		v, ok := os.LookupEnv(EnvPrefix + b.key)
		if !ok || v == "" {
			continue
		}
		if err := b.apply(v); err != nil {
			return fmt.Errorf("config: %s%s: %w", EnvPrefix, b.key, err)
		}
	}
	return nil
}

func (c *Config) resolveSecrets(ctx context.Context) error {
	r := secret.NewResolver(true, secret.NewEnvProvider(), secret.NewFileProvider(c.Secrets.Dir))
	defer r.Close()

	dsn, err := r.ResolveValue(ctx, c.Database.DSN)
	if err != nil {
		return fmt.Errorf("config: database.dsn: %w", err)
	}
	c.Database.DSN = dsn

	if c.HTTP.JWTSecret != "" {
		s, err := r.ResolveValue(ctx, c.HTTP.JWTSecret)
		if err != nil {
			return fmt.Errorf("config: http.jwt_secret: %w", err)
		}
		c.HTTP.JWTSecret = s
	}
	return nil
}
