package sqldb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"sync/atomic"
	"time"
)

// Conn is a single dedicated database connection.
//
// It satisfies pool.Connection and health.Pinger. A Conn reports closed once
// Close has been called or once any operation on it failed with
// driver.ErrBadConn or sql.ErrConnDone.
type Conn struct {
	id        string
	driver    string
	probe     string
	raw       *sql.Conn
	createdAt time.Time

	closed atomic.Bool
	bad    atomic.Bool
}

// ID returns the connection's unique identifier.
func (c *Conn) ID() string { return c.id }

// Driver returns the driver name.
func (c *Conn) Driver() string { return c.driver }

// CreatedAt returns when the connection was opened.
func (c *Conn) CreatedAt() time.Time { return c.createdAt }

// IsClosed reports whether the connection is unusable.
func (c *Conn) IsClosed() bool {
	return c.closed.Load() || c.bad.Load()
}

// Close returns the underlying connection to the driver. Because the owning
// *sql.DB keeps no idle connections, this closes the driver connection.
func (c *Conn) Close(context.Context) error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.raw.Close()
}

// Ping runs the probe query on this connection.
func (c *Conn) Ping(ctx context.Context) error {
	var n int
	err := c.raw.QueryRowContext(ctx, c.probe).Scan(&n)
	return c.track(err)
}

// ExecContext executes a statement on this connection.
func (c *Conn) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	res, err := c.raw.ExecContext(ctx, query, args...)
	return res, c.track(err)
}

// QueryContext runs a query on this connection.
func (c *Conn) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	rows, err := c.raw.QueryContext(ctx, query, args...)
	return rows, c.track(err)
}

// QueryRowContext runs a query expected to return at most one row. Errors
// surface from the returned Row's Scan or Err.
func (c *Conn) QueryRowContext(ctx context.Context, query string, args ...any) *Row {
	return &Row{row: c.raw.QueryRowContext(ctx, query, args...), conn: c}
}

// Row is the result of QueryRowContext.
type Row struct {
	row  *sql.Row
	conn *Conn
}

// Scan copies the row's columns into dest, like sql.Row.Scan.
func (r *Row) Scan(dest ...any) error {
	return r.conn.track(r.row.Scan(dest...))
}

// Err returns the error, if any, encountered running the query.
func (r *Row) Err() error {
	return r.conn.track(r.row.Err())
}

// Raw exposes the underlying *sql.Conn.
func (c *Conn) Raw() *sql.Conn { return c.raw }

func (c *Conn) track(err error) error {
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		c.bad.Store(true)
	}
	return err
}
