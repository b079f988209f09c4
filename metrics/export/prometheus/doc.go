// Package prometheus exposes engine metrics as a Prometheus collector.
//
// [Exporter] implements prometheus.Collector. Counter names are prefixed
// estate_auth_*_total; the single histogram is
// estate_auth_authenticate_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry. Callers register
//     the collector or mount [Exporter.Handler].
//   - Mutate engine state.
package prometheus
