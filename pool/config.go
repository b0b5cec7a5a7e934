package pool

import (
	"fmt"
	"time"
)

// Config holds the pool's size bounds and timeouts.
type Config struct {
	// MaxSize is the maximum number of connections checked out at once.
	// Default: 10
	MaxSize int

	// AcquireTimeout bounds Acquire, including any factory Create.
	// Default: 30 seconds
	AcquireTimeout time.Duration

	// IdleTimeout discards idle connections unused for longer than this.
	// Default: 10 minutes
	IdleTimeout time.Duration

	// MaxLifetime discards idle connections older than this, measured from
	// creation. Zero means unbounded.
	MaxLifetime time.Duration
}

// DefaultConfig returns the default pool configuration.
func DefaultConfig() Config {
	return Config{
		MaxSize:        10,
		AcquireTimeout: 30 * time.Second,
		IdleTimeout:    10 * time.Minute,
	}
}

// Validate reports whether the configuration is usable.
func (c Config) Validate() error {
	switch {
	case c.MaxSize < 1:
		return fmt.Errorf("%w: max size must be at least 1, got %d", ErrInvalidConfig, c.MaxSize)
	case c.AcquireTimeout <= 0:
		return fmt.Errorf("%w: acquire timeout must be positive", ErrInvalidConfig)
	case c.IdleTimeout <= 0:
		return fmt.Errorf("%w: idle timeout must be positive", ErrInvalidConfig)
	case c.MaxLifetime < 0:
		return fmt.Errorf("%w: max lifetime must not be negative", ErrInvalidConfig)
	}
	return nil
}
