package monitor

import (
	"context"
	"errors"
	"fmt"

	"github.com/jonwraymond/connops/health"
	"github.com/jonwraymond/connops/pool"
)

// Target is one monitored connection.
type Target struct {
	// Name identifies the target in logs, metrics and health endpoints.
	Name string

	// Conn is probed on every tick.
	Conn health.Pinger

	// Checker tracks the target's probe outcomes and failure streak.
	Checker *health.ConnectionChecker

	// Remediate restores an unhealthy target, for example by reconnecting.
	// Nil disables remediation.
	Remediate func(ctx context.Context) error
}

// PoolConn is a pooled connection that can be probed.
type PoolConn interface {
	pool.Connection
	health.Pinger
}

// poolPinger probes a pool by pinging one checked-out connection.
type poolPinger[C PoolConn] struct {
	pool *pool.Pool[C]
}

func (p poolPinger[C]) IsClosed() bool {
	return p.pool.IsClosed()
}

// Ping checks out a connection without waiting and pings it. A pool with
// every connection checked out is busy, not down, so the probe is skipped.
// A connection that fails its ping is closed so the pool discards it on
// release.
func (p poolPinger[C]) Ping(ctx context.Context) error {
	h, err := p.pool.TryAcquire(ctx)
	if errors.Is(err, pool.ErrExhausted) {
		return fmt.Errorf("%w: %w", health.ErrProbeSkipped, err)
	}
	if err != nil {
		return err
	}
	defer h.Release()

	if err := h.Conn().Ping(ctx); err != nil {
		_ = h.Close(ctx)
		return err
	}
	return nil
}

// PoolTarget monitors p as a whole. Its remediation closes every idle
// connection so the next acquires reconnect from scratch.
func PoolTarget[C PoolConn](name string, p *pool.Pool[C], checker *health.ConnectionChecker) Target {
	return Target{
		Name:      name,
		Conn:      poolPinger[C]{pool: p},
		Checker:   checker,
		Remediate: p.CloseIdle,
	}
}
