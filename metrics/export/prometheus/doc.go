// Package prometheus exposes goGuard metrics as a prometheus.Collector.
//
// [NewCollector] reads [goGuard.Engine.MetricsSnapshot] on each scrape.
// Counters are named goguard_*_total and the single histogram is
// goguard_authorize_latency_seconds. Register the collector on your own
// registry, or mount [Collector.Handler] which uses a private one.
package prometheus
