package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewTimeout_Default(t *testing.T) {
	timeout := NewTimeout(TimeoutConfig{})

	if timeout.Config().Timeout != DefaultTimeout {
		t.Errorf("Timeout = %v, want %v", timeout.Config().Timeout, DefaultTimeout)
	}
}

func TestTimeout_ExecuteSuccess(t *testing.T) {
	timeout := NewTimeout(TimeoutConfig{Timeout: time.Second})

	executed := false
	err := timeout.Execute(context.Background(), func(ctx context.Context) error {
		executed = true
		return nil
	})

	if err != nil {
		t.Errorf("Execute() error = %v", err)
	}
	if !executed {
		t.Error("Operation was not executed")
	}
}

func TestTimeout_ExecuteError(t *testing.T) {
	timeout := NewTimeout(TimeoutConfig{Timeout: time.Second})

	testErr := errors.New("test error")
	err := timeout.Execute(context.Background(), func(ctx context.Context) error {
		return testErr
	})

	if err != testErr {
		t.Errorf("Execute() error = %v, want %v", err, testErr)
	}
}

// TestTimeout_OperationIgnoresContext verifies Execute returns even when op hangs.
func TestTimeout_OperationIgnoresContext(t *testing.T) {
	timeout := NewTimeout(TimeoutConfig{Timeout: 10 * time.Millisecond})

	release := make(chan struct{})
	defer close(release)

	start := time.Now()
	err := timeout.Execute(context.Background(), func(ctx context.Context) error {
		<-release
		return nil
	})

	if !errors.Is(err, ErrTimeout) {
		t.Errorf("Execute() error = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Execute() took %v, want about 10ms", elapsed)
	}
}

func TestTimeout_ParentCancelled(t *testing.T) {
	timeout := NewTimeout(TimeoutConfig{Timeout: time.Second})

	ctx, cancel := context.WithCancel(context.Background())

	err := timeout.Execute(ctx, func(ctx context.Context) error {
		cancel()
		<-ctx.Done()
		return ctx.Err()
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Execute() error = %v, want context.Canceled", err)
	}
}

// TestTimeout_ParentDeadlineIsNotOwnTimeout verifies a shorter caller deadline surfaces as DeadlineExceeded.
func TestTimeout_ParentDeadlineIsNotOwnTimeout(t *testing.T) {
	timeout := NewTimeout(TimeoutConfig{Timeout: time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	release := make(chan struct{})
	defer close(release)

	err := timeout.Execute(ctx, func(ctx context.Context) error {
		<-release
		return nil
	})

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Execute() error = %v, want context.DeadlineExceeded", err)
	}
}

func TestTimeout_OperationSeesDeadline(t *testing.T) {
	timeout := NewTimeout(TimeoutConfig{Timeout: 50 * time.Millisecond})

	sawDeadline := make(chan bool, 1)
	_ = timeout.Execute(context.Background(), func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		sawDeadline <- ok
		return nil
	})

	if !<-sawDeadline {
		t.Error("operation context has no deadline")
	}
}

func TestExecuteWithTimeout(t *testing.T) {
	err := ExecuteWithTimeout(context.Background(), 5*time.Millisecond, func(ctx context.Context) error {
		<-ctx.Done()
		time.Sleep(20 * time.Millisecond)
		return ctx.Err()
	})

	if !errors.Is(err, ErrTimeout) {
		t.Errorf("ExecuteWithTimeout() error = %v, want ErrTimeout", err)
	}
}
