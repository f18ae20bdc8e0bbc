package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outbox publish results.
const (
	OutboxPublished = "published"
	OutboxRetry     = "retry"
	OutboxTerminal  = "terminal"
)

// OutboxMetrics counts relayed events. A nil value records nothing.
type OutboxMetrics struct {
	events *prometheus.CounterVec
	batch  prometheus.Histogram
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return nil
	}
	m := &OutboxMetrics{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "events_total",
			Help:      "Outbox events handled by the publisher, by result.",
		}, []string{"result"}),
		batch: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "batch_duration_seconds",
			Help:      "Time spent publishing one non-empty batch.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	reg.MustRegister(m.events, m.batch)
	return m
}

func (m *OutboxMetrics) Inc(result string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(result).Inc()
}

func (m *OutboxMetrics) ObserveBatch(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.batch.Observe(elapsed.Seconds())
}
