package s7

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveExchangeRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveExchange("client-1", 5*time.Millisecond, true)
	m.ObserveExchange("client-1", 5*time.Millisecond, false)

	if got := testutil.ToFloat64(m.exchangeTotal.WithLabelValues("client-1", "ok")); got != 1 {
		t.Errorf("exchange_total{result=ok} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.exchangeTotal.WithLabelValues("client-1", "error")); got != 1 {
		t.Errorf("exchange_total{result=error} = %v, want 1", got)
	}
}

func TestNewMetricsNilRegistererSkipsRegistration(t *testing.T) {
	m := NewMetrics(nil)
	if m == nil {
		t.Fatal("NewMetrics(nil) = nil")
	}
	// Should not panic even though nothing was registered.
	m.ObserveExchange("client-2", time.Millisecond, true)
}
