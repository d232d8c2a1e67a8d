// Package otel exports goGuard state through OpenTelemetry observable
// instruments.
//
// Authorize outcomes are one counter, goguard_authorize_decisions_total,
// with a "reason" attribute per decision reason. The global emergency level
// and the number of open breakers are gauges read from the engine on each
// collection. Callers own the MeterProvider and pass in a Meter.
package otel
