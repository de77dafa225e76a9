package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// Bootstrap metrics
	BootstrapRuns    *prometheus.CounterVec
	BootstrapEntries prometheus.Counter

	// Session metrics
	SessionsStarted   prometheus.Counter
	SessionsStopped   prometheus.Counter
	SessionsRecreated prometheus.Counter
	SessionsActive    prometheus.Gauge

	// Native metrics
	NativeSignals  *prometheus.CounterVec
	NativeDuration *prometheus.HistogramVec

	// Lifecycle metrics
	LifecycleEvents *prometheus.CounterVec

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewMetrics creates a new metrics collector on a fresh registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		BootstrapRuns: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "x11host_bootstrap_runs_total",
				Help: "Archive bootstrap invocations by result",
			},
			[]string{"result"},
		),
		BootstrapEntries: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "x11host_bootstrap_entries_total",
				Help: "Archive entries materialized under the private root",
			},
		),

		SessionsStarted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "x11host_sessions_started_total",
				Help: "Shell sessions launched",
			},
		),
		SessionsStopped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "x11host_sessions_stopped_total",
				Help: "Shell sessions torn down",
			},
		),
		SessionsRecreated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "x11host_sessions_recreated_total",
				Help: "Sessions replaced because the home directory drifted",
			},
		),
		SessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "x11host_sessions_active",
				Help: "Live shell sessions (0 or 1)",
			},
		),

		NativeSignals: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "x11host_native_signals_total",
				Help: "Lifecycle signals forwarded to the native server",
			},
			[]string{"signal", "result"},
		),
		NativeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "x11host_native_signal_duration_seconds",
				Help:    "Time spent inside native lifecycle calls",
				Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"signal"},
		),

		LifecycleEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "x11host_lifecycle_events_total",
				Help: "Host lifecycle events processed",
			},
			[]string{"event"},
		),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "x11host_http_requests_total",
				Help: "Control API requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "x11host_http_request_duration_seconds",
				Help:    "Control API request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"method", "path"},
		),
	}
}

// Registry returns the registry backing these metrics
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordBootstrap records a bootstrap run ("skipped", "extracted", "failed")
func (m *Metrics) RecordBootstrap(result string, entries int) {
	if m == nil {
		return
	}
	m.BootstrapRuns.WithLabelValues(result).Inc()
	m.BootstrapEntries.Add(float64(entries))
}

// RecordSessionStarted records a session launch
func (m *Metrics) RecordSessionStarted() {
	if m == nil {
		return
	}
	m.SessionsStarted.Inc()
	m.SessionsActive.Set(1)
}

// RecordSessionStopped records a session teardown or exit
func (m *Metrics) RecordSessionStopped() {
	if m == nil {
		return
	}
	m.SessionsStopped.Inc()
	m.SessionsActive.Set(0)
}

// RecordSessionRecreated records a drift-triggered replacement
func (m *Metrics) RecordSessionRecreated() {
	if m == nil {
		return
	}
	m.SessionsRecreated.Inc()
}

// RecordNativeSignal records a forwarded native call
func (m *Metrics) RecordNativeSignal(signal string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.NativeSignals.WithLabelValues(signal, result).Inc()
	m.NativeDuration.WithLabelValues(signal).Observe(duration.Seconds())
}

// RecordLifecycleEvent records a host event handled by the coordinator
func (m *Metrics) RecordLifecycleEvent(event string) {
	if m == nil {
		return
	}
	m.LifecycleEvents.WithLabelValues(event).Inc()
}

// RecordHTTPRequest records a control API request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
