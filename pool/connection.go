package pool

import "context"

// Connection is the capability the pool needs from a pooled resource.
type Connection interface {
	// IsClosed reports whether the connection is known to be unusable.
	IsClosed() bool

	// Close releases the connection's backend resources.
	Close(ctx context.Context) error
}

// Factory creates and validates connections.
//
// Contract:
// - Concurrency: Create and Validate may be called concurrently.
// - Context: Create must honor cancellation and deadlines.
// - Validate must be cheap; it runs on every idle reuse.
type Factory[C Connection] interface {
	Create(ctx context.Context) (C, error)
	Validate(ctx context.Context, conn C) bool
}

// FactoryFunc adapts a create function into a Factory whose Validate
// accepts any connection that does not report itself closed.
type FactoryFunc[C Connection] func(ctx context.Context) (C, error)

// Create calls f.
func (f FactoryFunc[C]) Create(ctx context.Context) (C, error) {
	return f(ctx)
}

// Validate reports !conn.IsClosed().
func (f FactoryFunc[C]) Validate(_ context.Context, conn C) bool {
	return !conn.IsClosed()
}
