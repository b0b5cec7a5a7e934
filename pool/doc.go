// Package pool provides a bounded, generic pool of reusable backend
// connections.
//
// A Pool hands out at most Config.MaxSize connections at a time. Permits are
// taken from a FIFO-fair semaphore, so callers blocked in Acquire are served
// in arrival order. Idle connections are reused oldest-first; an idle
// connection past MaxLifetime, idle longer than IdleTimeout, or rejected by
// Factory.Validate is closed and skipped.
//
// Every successful Acquire returns a Handle that must be released exactly
// once. Release is idempotent, so the usual pattern is:
//
//	h, err := p.Acquire(ctx)
//	if err != nil {
//	    return err
//	}
//	defer h.Release()
//
// or, equivalently:
//
//	err := p.With(ctx, func(ctx context.Context, conn *sqldb.Conn) error {
//	    _, err := conn.ExecContext(ctx, "UPDATE ...")
//	    return err
//	})
//
// Acquire fails with a *TimeoutError (matching ErrTimeout) when
// AcquireTimeout elapses, with an error matching ErrCreationFailed when the
// factory cannot produce a connection, and with ErrClosed once the pool is
// closed.
package pool
