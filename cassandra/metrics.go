package cassandra

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// requestMetrics tracks per-opcode request outcomes (SPEC_FULL.md §4.L),
// built the way loki's pkg/dataobj/consumer flusher builds its metrics:
// promauto.With(registerer) so a nil registerer yields working, unlinked
// collectors rather than requiring a backend.
type requestMetrics struct {
	duration *prometheus.HistogramVec
	opened   prometheus.Counter
	closed   prometheus.Counter
}

func newRequestMetrics(registerer prometheus.Registerer) *requestMetrics {
	return &requestMetrics{
		duration: promauto.With(registerer).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "cql_client",
			Name:      "request_duration_seconds",
			Help:      "Duration of CQL requests by opcode and outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"opcode", "outcome"}),
		opened: promauto.With(registerer).NewCounter(prometheus.CounterOpts{
			Namespace: "cql_client",
			Name:      "connections_opened_total",
			Help:      "Total number of sessions successfully dialed.",
		}),
		closed: promauto.With(registerer).NewCounter(prometheus.CounterOpts{
			Namespace: "cql_client",
			Name:      "connections_closed_total",
			Help:      "Total number of sessions closed.",
		}),
	}
}

func (m *requestMetrics) observe(opcode, outcome string, seconds float64) {
	m.duration.WithLabelValues(opcode, outcome).Observe(seconds)
}

func (m *requestMetrics) connectionOpened() {
	m.opened.Inc()
}

func (m *requestMetrics) connectionClosed() {
	m.closed.Inc()
}
