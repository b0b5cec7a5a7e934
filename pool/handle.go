package pool

import (
	"context"
	"sync"
	"time"
)

// Handle owns one checked-out connection and its pool permit.
//
// Release returns the connection to the pool, or discards it if it reports
// closed, and then frees the permit. Release is safe to call more than once;
// only the first call has any effect. The connection must not be used after
// Release.
type Handle[C Connection] struct {
	pool      *Pool[C]
	conn      C
	createdAt time.Time
	once      sync.Once
}

// Conn returns the underlying connection.
func (h *Handle[C]) Conn() C {
	return h.conn
}

// IsClosed reports whether the underlying connection is closed.
func (h *Handle[C]) IsClosed() bool {
	return h.conn.IsClosed()
}

// Close closes the underlying connection. The pool discards it on Release.
func (h *Handle[C]) Close(ctx context.Context) error {
	return h.conn.Close(ctx)
}

// CreatedAt returns when the underlying connection was created.
func (h *Handle[C]) CreatedAt() time.Time {
	return h.createdAt
}

// Release returns the connection to the pool.
func (h *Handle[C]) Release() {
	h.once.Do(func() {
		h.pool.release(h.conn, h.createdAt)
	})
}
