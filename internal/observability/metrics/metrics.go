package metrics

import "github.com/prometheus/client_golang/prometheus"

// TriageMetrics exposes counters/histograms for symptom-checker flows.
type TriageMetrics struct {
	exchangesTotal *prometheus.CounterVec
	urgencyTotal   *prometheus.CounterVec
	llmLatency     *prometheus.HistogramVec
}

func NewTriageMetrics(reg prometheus.Registerer) *TriageMetrics {
	m := &TriageMetrics{
		exchangesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "teleseva",
			Subsystem: "triage",
			Name:      "exchanges_total",
			Help:      "Total symptom-checker exchanges",
		}, []string{"status"}),
		urgencyTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "teleseva",
			Subsystem: "triage",
			Name:      "urgency_total",
			Help:      "Urgency classifications of bot replies",
		}, []string{"level"}),
		llmLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "teleseva",
			Subsystem: "triage",
			Name:      "llm_latency_seconds",
			Help:      "Latency of LLM completion calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.exchangesTotal, m.urgencyTotal, m.llmLatency)
	return m
}

func (m *TriageMetrics) ObserveExchange(status string) {
	if m == nil {
		return
	}
	m.exchangesTotal.WithLabelValues(status).Inc()
}

func (m *TriageMetrics) ObserveUrgency(level string) {
	if m == nil {
		return
	}
	m.urgencyTotal.WithLabelValues(level).Inc()
}

func (m *TriageMetrics) ObserveLLMLatency(provider string, seconds float64) {
	if m == nil {
		return
	}
	m.llmLatency.WithLabelValues(provider).Observe(seconds)
}

// BookingMetrics exposes counters for the consultation booking flow.
type BookingMetrics struct {
	bookingsTotal  *prometheus.CounterVec
	cancelledTotal prometheus.Counter
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "teleseva",
			Subsystem: "booking",
			Name:      "bookings_total",
			Help:      "Total booking attempts",
		}, []string{"status"}),
		cancelledTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "teleseva",
			Subsystem: "booking",
			Name:      "cancelled_total",
			Help:      "Total cancelled appointments",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.bookingsTotal, m.cancelledTotal)
	return m
}

func (m *BookingMetrics) ObserveBooking(status string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(status).Inc()
}

func (m *BookingMetrics) ObserveCancellation() {
	if m == nil {
		return
	}
	m.cancelledTotal.Inc()
}
