package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "lightning"

// Metrics holds the Prometheus counters, histograms, and gauges for the strike client.
type Metrics struct {
	// API request metrics.
	Requests        *prometheus.CounterVec   // labels: format, outcome={success,http_error,network_error,parse_error}
	RequestDuration *prometheus.HistogramVec // labels: format
	Retries         prometheus.Counter
	PagesFetched    prometheus.Counter
	TokenExchanges  *prometheus.CounterVec // labels: outcome={success,error}

	// Chunk metrics.
	ChunksFetched      prometheus.Counter
	ChunkFetchErrors   prometheus.Counter
	ChunkStrikes       prometheus.Histogram
	ChunkFetchDuration prometheus.Histogram

	// Finalisation timer metrics.
	TimerRunning   prometheus.Gauge
	FinalisedUntil prometheus.Gauge       // unix seconds of the last delivered chunk end
	SinkErrors     *prometheus.CounterVec // labels: sink
}

func newMetrics() *Metrics {
	return &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Strike API page requests by format and outcome.",
		}, []string{"format", "outcome"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "Strike API page request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"format"}),
		Retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_retries_total",
			Help:      "Page requests retried after a failure.",
		}),
		PagesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_fetched_total",
			Help:      "Pages merged by exhaustive fetches.",
		}),
		TokenExchanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "token_exchanges_total",
			Help:      "Client-credentials token exchanges by outcome.",
		}, []string{"outcome"}),
		ChunksFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_fetched_total",
			Help:      "Chunks fetched to completion.",
		}),
		ChunkFetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunk_fetch_errors_total",
			Help:      "Chunk fetches that failed after retries.",
		}),
		ChunkStrikes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chunk_strikes",
			Help:      "Strike records per fetched chunk.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}),
		ChunkFetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chunk_fetch_duration_seconds",
			Help:      "Duration of a complete chunk fetch including all pages.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		TimerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "finalisation_timer_running",
			Help:      "1 when the finalisation timer is active, 0 when stopped.",
		}),
		FinalisedUntil: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "finalised_until_seconds",
			Help:      "End of the most recent delivered chunk as a unix timestamp.",
		}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Chunk deliveries that failed by sink.",
		}, []string{"sink"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.Requests,
		m.RequestDuration,
		m.Retries,
		m.PagesFetched,
		m.TokenExchanges,
		m.ChunksFetched,
		m.ChunkFetchErrors,
		m.ChunkStrikes,
		m.ChunkFetchDuration,
		m.TimerRunning,
		m.FinalisedUntil,
		m.SinkErrors,
	}
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics that are not registered anywhere, to
// avoid "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}
