// Package monitoring provides Prometheus metrics for the supervisor.
//
// Metrics are registered on a private registry owned by the Metrics value so
// tests can create as many instances as they like. The control API exposes the
// registry on /metrics.
//
// Metric families:
//   - x11host_bootstrap_*: archive extraction runs and entries written
//   - x11host_sessions_*: shell sessions started, stopped, recreated, live
//   - x11host_native_*: lifecycle signals forwarded to the native server
//   - x11host_lifecycle_*: host events processed by the coordinator
//   - x11host_http_*: control API requests
//
// All Record*/Set* methods are safe to call on a nil *Metrics.
package monitoring
