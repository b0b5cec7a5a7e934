package pool

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrCreationFailed indicates the factory could not create a connection.
	// The factory's error is wrapped alongside it.
	ErrCreationFailed = errors.New("pool: connection creation failed")

	// ErrTimeout indicates AcquireTimeout elapsed. Acquire reports it as
	// *TimeoutError.
	ErrTimeout = errors.New("pool: acquire timed out")

	// ErrExhausted is returned by TryAcquire when every permit is checked out.
	ErrExhausted = errors.New("pool: exhausted")

	// ErrClosed indicates the pool has been closed.
	ErrClosed = errors.New("pool: closed")

	// ErrInvalidConfig indicates a Config failed validation.
	ErrInvalidConfig = errors.New("pool: invalid config")
)

// TimeoutError is returned by Acquire when the pool's AcquireTimeout
// elapses. It matches ErrTimeout with errors.Is.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s after %s", ErrTimeout, e.Timeout)
}

// Is reports whether target is ErrTimeout.
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}
