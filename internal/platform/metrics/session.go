// Package metrics exposes Prometheus collectors for storage sessions.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SessionMetrics records session lifetimes and per-operation outcomes. A nil
// *SessionMetrics is valid and records nothing.
type SessionMetrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	open       prometheus.Gauge
}

// NewSessionMetrics creates the collectors and registers them on reg. A nil
// registerer returns nil, which disables metrics.
func NewSessionMetrics(reg prometheus.Registerer) (*SessionMetrics, error) {
	if reg == nil {
		return nil, nil
	}

	m := &SessionMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "medforum",
			Subsystem: "session",
			Name:      "operations_total",
			Help:      "Session operations by name and outcome.",
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "medforum",
			Subsystem: "session",
			Name:      "operation_duration_seconds",
			Help:      "Latency of session operations.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"operation"}),
		open: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "medforum",
			Name:      "sessions_open",
			Help:      "Sessions currently holding a connection.",
		}),
	}

	for _, c := range []prometheus.Collector{m.operations, m.duration, m.open} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register session metrics: %w", err)
		}
	}
	return m, nil
}

// ObserveOperation counts one finished operation.
func (m *SessionMetrics) ObserveOperation(operation, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

func (m *SessionMetrics) SessionOpened() {
	if m != nil {
		m.open.Inc()
	}
}

func (m *SessionMetrics) SessionClosed() {
	if m != nil {
		m.open.Dec()
	}
}
