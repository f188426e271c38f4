package monitoring

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the service's prometheus instrumentation. A nil *Metrics
// is valid and records nothing, so packages can take it optionally.
type Metrics struct {
	// HTTP metrics
	requestDuration *prometheus.HistogramVec
	requestCount    *prometheus.CounterVec

	// Vendor metrics
	vendorDuration *prometheus.HistogramVec
	vendorRetries  *prometheus.CounterVec
	circuitState   *prometheus.GaugeVec

	// Trade metrics
	tradeCount         *prometheus.CounterVec
	inconsistencyCount prometheus.Counter
	journalEntries     *prometheus.CounterVec

	// Cache metrics
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec
}

// NewMetrics registers the service's collectors under a namespace.
// Must be called once per process; promauto panics on duplicates.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		requestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"handler", "method", "status"},
		),

		requestCount: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"handler", "method", "status"},
		),

		vendorDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "vendor_request_duration_seconds",
				Help:      "Duration of vendor API calls, per attempt",
				Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"operation", "outcome"},
		),

		vendorRetries: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "vendor_retries_total",
				Help:      "Vendor call attempts beyond the first",
			},
			[]string{"operation"},
		),

		circuitState: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"operation"},
		),

		tradeCount: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trades_total",
				Help:      "Completed trade attempts by final status",
			},
			[]string{"status", "reason"},
		),

		inconsistencyCount: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "trade_inconsistencies_total",
				Help:      "Fills confirmed by the vendor that could not be recorded",
			},
		),

		journalEntries: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "journal_entries_total",
				Help:      "Transactions written to the journal",
			},
			[]string{"status"},
		),

		cacheHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_hits_total",
				Help:      "Quote cache hits",
			},
			[]string{"cache"},
		),

		cacheMisses: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_misses_total",
				Help:      "Quote cache misses",
			},
			[]string{"cache"},
		),
	}
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(handler, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(handler, method, code).Observe(duration.Seconds())
	m.requestCount.WithLabelValues(handler, method, code).Inc()
}

// ObserveVendorCall records one vendor API attempt.
func (m *Metrics) ObserveVendorCall(operation string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.vendorDuration.WithLabelValues(operation, outcome).Observe(duration.Seconds())
}

// ObserveVendorRetry counts a retry of a vendor operation.
func (m *Metrics) ObserveVendorRetry(operation string) {
	if m == nil {
		return
	}
	m.vendorRetries.WithLabelValues(operation).Inc()
}

// SetCircuitState reports a breaker's current state.
func (m *Metrics) SetCircuitState(operation string, state string) {
	if m == nil {
		return
	}
	var v float64
	switch state {
	case "HALF_OPEN":
		v = 1
	case "OPEN":
		v = 2
	}
	m.circuitState.WithLabelValues(operation).Set(v)
}

// ObserveTrade records a finished trade attempt.
func (m *Metrics) ObserveTrade(status, reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "none"
	}
	m.tradeCount.WithLabelValues(status, reason).Inc()
}

// ObserveJournalEntry counts a transaction written to the journal.
func (m *Metrics) ObserveJournalEntry(status string) {
	if m == nil {
		return
	}
	m.journalEntries.WithLabelValues(status).Inc()
}

// ObserveInconsistency counts a vendor-confirmed fill the ledger could
// not absorb. These require manual reconciliation and page on-call.
func (m *Metrics) ObserveInconsistency() {
	if m == nil {
		return
	}
	m.inconsistencyCount.Inc()
}

// ObserveCacheHit counts a quote cache hit.
func (m *Metrics) ObserveCacheHit(cache string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(cache).Inc()
}

// ObserveCacheMiss counts a quote cache miss.
func (m *Metrics) ObserveCacheMiss(cache string) {
	if m == nil {
		return
	}
	m.cacheMisses.WithLabelValues(cache).Inc()
}
