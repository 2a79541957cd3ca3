package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics counts applied transitions and rejected commands.
type BookingMetrics struct {
	transitions *prometheus.CounterVec
	failures    *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	if reg == nil {
		return &BookingMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "booking",
		Name:      "transitions_total",
		Help:      "Committed booking status transitions.",
	}, []string{"from", "to"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "booking",
		Name:      "command_failures_total",
		Help:      "Booking commands that returned an error, by command and error code.",
	}, []string{"command", "code"})
	reg.MustRegister(transitions, failures)
	return &BookingMetrics{transitions: transitions, failures: failures}
}

// ObserveTransition records a committed transition. Creation uses from="".
func (m *BookingMetrics) ObserveTransition(from, to string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(label(from), to).Inc()
}

func (m *BookingMetrics) ObserveFailure(command, code string) {
	if m == nil || m.failures == nil {
		return
	}
	m.failures.WithLabelValues(command, label(code)).Inc()
}

// LedgerMetrics counts appended entries and posted amounts per kind.
type LedgerMetrics struct {
	entries *prometheus.CounterVec
	amount  *prometheus.CounterVec
}

func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	entries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "entries_total",
		Help:      "Ledger entries appended, by kind and status.",
	}, []string{"kind", "status"})
	amount := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "ledger",
		Name:      "amount_cents_total",
		Help:      "Sum of appended ledger amounts in minor units, by kind.",
	}, []string{"kind"})
	reg.MustRegister(entries, amount)
	return &LedgerMetrics{entries: entries, amount: amount}
}

func (m *LedgerMetrics) ObserveEntry(kind, status string, amountCents int64) {
	if m == nil || m.entries == nil {
		return
	}
	m.entries.WithLabelValues(kind, status).Inc()
	if amountCents > 0 {
		m.amount.WithLabelValues(kind).Add(float64(amountCents))
	}
}

// NotificationMetrics tracks dispatcher throughput.
type NotificationMetrics struct {
	deliveries *prometheus.CounterVec
	dropped    prometheus.Counter
}

func NewNotificationMetrics(reg prometheus.Registerer) *NotificationMetrics {
	if reg == nil {
		return &NotificationMetrics{}
	}
	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "notification",
		Name:      "deliveries_total",
		Help:      "Notification deliveries by channel and outcome.",
	}, []string{"channel", "outcome"})
	dropped := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "notification",
		Name:      "dropped_total",
		Help:      "Events dropped because the dispatch queue was full.",
	})
	reg.MustRegister(deliveries, dropped)
	return &NotificationMetrics{deliveries: deliveries, dropped: dropped}
}

func (m *NotificationMetrics) ObserveDelivery(channel string, err error) {
	if m == nil || m.deliveries == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	m.deliveries.WithLabelValues(label(channel), outcome).Inc()
}

func (m *NotificationMetrics) IncDropped() {
	if m == nil || m.dropped == nil {
		return
	}
	m.dropped.Inc()
}
