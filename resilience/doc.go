// Package resilience provides the recovery policies used when a monitored
// connection target goes unhealthy.
//
// Three patterns are provided and can be composed through an Executor:
//
//   - Timeout: bounds a single operation, such as a ping or a reconnect.
//
//   - Retry: re-runs a failed operation with a Backoff schedule. The default
//     schedule starts at 100ms, doubles each attempt and is capped at 30s.
//
//   - Circuit Breaker: stops hammering a target whose remediation keeps
//     failing, and lets a single probe through after ResetTimeout.
//
// # Usage
//
//	exec := resilience.NewExecutor(
//	    resilience.WithCircuitBreaker(resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
//	        MaxFailures:  3,
//	        ResetTimeout: time.Minute,
//	    })),
//	    resilience.WithRetry(resilience.NewRetry(resilience.RetryConfig{
//	        MaxAttempts: 5,
//	        Backoff:     resilience.DefaultBackoff(),
//	    })),
//	    resilience.WithTimeout(5*time.Second),
//	)
//
//	err := exec.Execute(ctx, func(ctx context.Context) error {
//	    return pool.CloseIdle(ctx)
//	})
package resilience
