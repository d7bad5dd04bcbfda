// Package tracing builds the OpenTelemetry tracer provider for the vitals
// binaries. Database queries are traced through database.TraceObserver.
package tracing
