package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/jonwraymond/connops/observe"
)

// Option configures a Factory.
type Option func(*Factory)

// WithLogger sets the factory's logger.
func WithLogger(l observe.Logger) Option {
	return func(f *Factory) { f.logger = l }
}

// Factory opens dedicated connections to one database. It implements
// pool.Factory[*Conn].
type Factory struct {
	cfg    Config
	db     *sql.DB
	logger observe.Logger
}

// NewFactory validates cfg and prepares a handle to the database. No
// connection is opened until Create.
func NewFactory(cfg Config, opts ...Option) (*Factory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ProbeQuery == "" {
		cfg.ProbeQuery = DefaultProbeQuery
	}

	db, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqldb: open %s: %w", cfg.Driver, err)
	}
	db.SetMaxIdleConns(0)

	f := &Factory{cfg: cfg, db: db, logger: observe.NopLogger()}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.With(
		observe.Field{Key: "db.driver", Value: cfg.Driver},
		observe.Field{Key: "db.target", Value: cfg.Target()},
	)
	return f, nil
}

// Create opens a new dedicated connection and verifies it with the probe
// query.
func (f *Factory) Create(ctx context.Context) (*Conn, error) {
	raw, err := f.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqldb: connect: %w", err)
	}

	c := &Conn{
		id:        uuid.NewString(),
		driver:    f.cfg.Driver,
		probe:     f.cfg.ProbeQuery,
		raw:       raw,
		createdAt: time.Now(),
	}
	if err := c.Ping(ctx); err != nil {
		_ = c.Close(ctx)
		return nil, fmt.Errorf("sqldb: probe new connection: %w", err)
	}

	f.logger.Debug(ctx, "opened connection", observe.Field{Key: "conn.id", Value: c.id})
	return c, nil
}

// Validate is the cheap reuse check: it consults only local state.
func (f *Factory) Validate(_ context.Context, c *Conn) bool {
	return !c.IsClosed()
}

// Config returns the factory's configuration.
func (f *Factory) Config() Config {
	return f.cfg
}

// Close releases the underlying *sql.DB. Connections already created are
// closed with it.
func (f *Factory) Close() error {
	return f.db.Close()
}
