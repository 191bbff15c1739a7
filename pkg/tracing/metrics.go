package tracing

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"tracefields/pkg/samplingoverlay"
)

// TracingMetrics holds the Prometheus metrics exposed around the
// propagation core and its secondary sampling overlay.
type TracingMetrics struct {
	// Total number of Extract calls through the globally installed propagator.
	extractionsTotal prometheus.Counter

	// Total number of Inject calls.
	injectionsTotal prometheus.Counter

	// Total Inject calls that ran against a non-empty redacted-field list.
	redactionsTotal prometheus.Counter

	// Number of secondary sampling systems currently configured locally.
	overlaySystemsActive prometheus.Gauge

	// Total per-system sampling decisions recorded across extractions.
	overlaySystemsRecorded prometheus.Counter

	// Total per-system sampling records dropped on ttl expiry.
	overlaySystemsExpired prometheus.Counter

	// Total panics recovered from a plugin updater or finished-span handler.
	handlerExceptionsTotal prometheus.Counter
}

// tracingMetricsOnce guards construction of the package's single set of
// Prometheus collectors: like the teacher's own package-level promauto vars,
// these metric names are registered against the process-wide default
// registerer exactly once, however many *TracingManager instances a host
// (or a test binary exercising several) builds over the process lifetime.
var (
	tracingMetricsOnce     sync.Once
	tracingMetricsInstance *TracingMetrics
)

// NewTracingMetrics returns the process-wide tracing Prometheus metrics,
// registering them on first use.
func NewTracingMetrics() *TracingMetrics {
	tracingMetricsOnce.Do(func() {
		tracingMetricsInstance = newTracingMetrics()
	})
	return tracingMetricsInstance
}

func newTracingMetrics() *TracingMetrics {
	return &TracingMetrics{
		extractionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tracefields_extractions_total",
			Help: "Total number of extra-field extractions performed.",
		}),
		injectionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tracefields_injections_total",
			Help: "Total number of extra-field injections performed.",
		}),
		redactionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tracefields_redactions_total",
			Help: "Total number of injections carrying a non-empty redacted-field list.",
		}),
		overlaySystemsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "tracefields_overlay_systems_active",
			Help: "Number of secondary sampling systems currently configured locally.",
		}),
		overlaySystemsRecorded: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tracefields_overlay_systems_recorded_total",
			Help: "Total secondary sampling system records observed during extraction.",
		}),
		overlaySystemsExpired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tracefields_overlay_systems_expired_total",
			Help: "Total secondary sampling systems dropped on ttl expiry.",
		}),
		handlerExceptionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "tracefields_handler_exceptions_total",
			Help: "Total panics recovered from a plugin updater or finished-span handler.",
		}),
	}
}

// SystemRecorded implements samplingoverlay.Observer.
func (m *TracingMetrics) SystemRecorded(name string) {
	m.overlaySystemsRecorded.Inc()
}

// SystemExpired implements samplingoverlay.Observer.
func (m *TracingMetrics) SystemExpired(name string) {
	m.overlaySystemsExpired.Inc()
}

var _ samplingoverlay.Observer = (*TracingMetrics)(nil)

// RecordExtraction increments the extraction counter.
func (m *TracingMetrics) RecordExtraction() {
	m.extractionsTotal.Inc()
}

// RecordInjection increments the injection counter, and the redaction
// counter too when redactionConfigured is true.
func (m *TracingMetrics) RecordInjection(redactionConfigured bool) {
	m.injectionsTotal.Inc()
	if redactionConfigured {
		m.redactionsTotal.Inc()
	}
}

// RecordHandlerException increments the recovered-panic counter.
func (m *TracingMetrics) RecordHandlerException() {
	m.handlerExceptionsTotal.Inc()
}

// SetOverlaySystemsActive sets the active-systems gauge to count. The
// registry publishes configuration changes via an atomic snapshot rather
// than notifying observers, so the host calls this after any Configure
// call whose count it wants reflected.
func (m *TracingMetrics) SetOverlaySystemsActive(count int) {
	m.overlaySystemsActive.Set(float64(count))
}
