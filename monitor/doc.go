// Package monitor drives health.ConnectionChecker probes on a schedule and
// remediates targets whose failure streak crosses the threshold.
//
// A Scheduler owns a set of Targets. While Run is active, each target is
// probed every CheckInterval on a bounded ants worker pool, as long as its
// checker IsRunning. When ShouldMarkUnhealthy turns true the target's
// Remediate function runs through a resilience.Executor (breaker, retry with
// backoff, timeout); success resets the checker's streak.
//
// The last probe of each target is cached and exposed as a health.Checker,
// so HTTP readiness endpoints report scheduled results without probing the
// backend on every request.
package monitor
