package metrics

import "github.com/prometheus/client_golang/prometheus"

// OutboxMetrics reports how outbox rows leave the table.
type OutboxMetrics struct {
	deliveries *prometheus.CounterVec
	pending    prometheus.Gauge
}

func NewOutboxMetrics(reg prometheus.Registerer) *OutboxMetrics {
	if reg == nil {
		return &OutboxMetrics{}
	}
	m := &OutboxMetrics{
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pos_outbox_deliveries_total",
			Help: "Outbox delivery attempts by event type and result (published, retry, terminal).",
		}, []string{"event_type", "result"}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pos_outbox_pending_events",
			Help: "Outbox rows still waiting for delivery.",
		}),
	}
	reg.MustRegister(m.deliveries, m.pending)
	return m
}

func (m *OutboxMetrics) ObserveDelivery(eventType, result string) {
	if m == nil || m.deliveries == nil {
		return
	}
	m.deliveries.WithLabelValues(eventType, result).Inc()
}

func (m *OutboxMetrics) SetPending(count int64) {
	if m == nil || m.pending == nil {
		return
	}
	m.pending.Set(float64(count))
}
