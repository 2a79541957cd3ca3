package metrics

import "github.com/prometheus/client_golang/prometheus"

// OutboxMetrics tracks the publisher loop: outcomes per event type and the
// backlog still waiting in outbox_events.
type OutboxMetrics struct {
	outcomes *prometheus.CounterVec
	pending  prometheus.Gauge
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "outbox",
		Name:      "events_total",
		Help:      "Outbox rows handled by the publisher, by event type and outcome.",
	}, []string{"event_type", "outcome"})
	pending := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "outbox",
		Name:      "pending_events",
		Help:      "Rows not yet published or dead-lettered, including scheduled retries.",
	})
	reg.MustRegister(outcomes, pending)
	return &OutboxMetrics{outcomes: outcomes, pending: pending}
}

func (m *OutboxMetrics) ObservePublished(eventType string) { m.observe(eventType, "published") }

func (m *OutboxMetrics) ObserveRetry(eventType string) { m.observe(eventType, "retry") }

func (m *OutboxMetrics) ObserveDeadLettered(eventType string) { m.observe(eventType, "dead_lettered") }

func (m *OutboxMetrics) SetPending(n int64) {
	if m == nil || m.pending == nil {
		return
	}
	m.pending.Set(float64(n))
}

func (m *OutboxMetrics) observe(eventType, outcome string) {
	if m == nil || m.outcomes == nil {
		return
	}
	m.outcomes.WithLabelValues(label(eventType), outcome).Inc()
}
