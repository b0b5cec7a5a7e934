// Package health classifies the health of pooled backend connections.
//
// A ConnectionChecker is a state machine over probe outcomes for one
// monitored target. Each CheckConnection runs a liveness probe bounded by
// PingTimeout. A success resets the failure streak and classifies the
// round-trip latency through Thresholds:
//
//	latency <  Healthy          -> StatusHealthy
//	Healthy <= latency < Degraded -> StatusDegraded
//	latency >= Degraded         -> StatusUnhealthy
//
// A failure increments the streak, and ShouldMarkUnhealthy turns true once
// the streak reaches FailureThreshold. The checker never schedules itself;
// see package monitor for the interval loop.
//
// # Aggregating Health Checks
//
// Checkers can be combined in an Aggregator and served over HTTP:
//
//	agg := health.NewAggregator()
//	agg.Register("primary", checker.Checker("primary", conn))
//
//	mux := http.NewServeMux()
//	health.RegisterHandlers(mux, agg) // /healthz, /readyz, /health, /health/{name}
package health
