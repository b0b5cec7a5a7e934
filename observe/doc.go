// Package observe provides observability primitives for connection pools and
// health monitors.
//
// It is a pure instrumentation library: structured logging, OpenTelemetry
// metrics and tracing, and exporter setup. The pool, health and monitor
// packages accept these primitives through functional options and fall back
// to no-op implementations when none are supplied.
package observe
