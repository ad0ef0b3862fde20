// Package instrumentation provides OpenTelemetry metrics and tracing for
// the chat and calendar pipeline.
//
// The Provider owns the meter and tracer providers and is configured through
// environment variables (see DefaultConfig). Metrics cover the HTTP surface,
// model calls, calendar API operations, rate limiting, and dispatched
// actions. Tracing is off by default and enabled via TRACING_EXPORTER.
//
// Client identities never reach metric labels: they are anonymized before
// logging and excluded from metrics entirely to keep cardinality bounded.
package instrumentation
