package s7

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is a Prometheus collector recording exchange latency and outcome
// across any number of Clients, keyed by each Client's correlation ID
// (spec §7 supplement: operational observability). A *Metrics is shared
// across Clients via WithMetrics; it registers itself once with whatever
// prometheus.Registerer the caller passes to NewMetrics.
type Metrics struct {
	exchangeDuration *prometheus.HistogramVec
	exchangeTotal    *prometheus.CounterVec
}

// NewMetrics builds a Metrics and registers it with reg. Passing nil
// skips registration, leaving the caller free to register it elsewhere
// (or not at all, e.g. in tests).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		exchangeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "s7",
			Name:      "exchange_duration_seconds",
			Help:      "Duration of one S7 PDU request/reply exchange.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"client_id", "result"}),
		exchangeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "s7",
			Name:      "exchange_total",
			Help:      "Count of S7 PDU exchanges by outcome.",
		}, []string{"client_id", "result"}),
	}
	if reg != nil {
		reg.MustRegister(m.exchangeDuration, m.exchangeTotal)
	}
	return m
}

// ObserveExchange records one exchange's latency and outcome.
func (m *Metrics) ObserveExchange(clientID string, dur time.Duration, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	m.exchangeDuration.WithLabelValues(clientID, result).Observe(dur.Seconds())
	m.exchangeTotal.WithLabelValues(clientID, result).Inc()
}
