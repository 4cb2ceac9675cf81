package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the booking flows.
type BookingMetrics struct {
	bookingsTotal       *prometheus.CounterVec
	transitionsTotal    *prometheus.CounterVec
	slotConflictsTotal  prometheus.Counter
	policyRejections    *prometheus.CounterVec
	expiredHoldsTotal   prometheus.Counter
	availabilityLatency prometheus.Histogram
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "caresync",
			Subsystem: "booking",
			Name:      "created_total",
			Help:      "Total bookings created",
		}, []string{"branch_id", "type", "status"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "caresync",
			Subsystem: "booking",
			Name:      "transitions_total",
			Help:      "Total booking state transitions",
		}, []string{"to_status"}),
		slotConflictsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "caresync",
			Subsystem: "booking",
			Name:      "slot_conflicts_total",
			Help:      "Create/reschedule attempts rejected because the slot was taken",
		}),
		policyRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "caresync",
			Subsystem: "booking",
			Name:      "policy_rejections_total",
			Help:      "Requests rejected by a booking policy rule",
		}, []string{"rule"}),
		expiredHoldsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "caresync",
			Subsystem: "booking",
			Name:      "expired_holds_total",
			Help:      "Pending-payment holds expired by the sweeper",
		}),
		availabilityLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "caresync",
			Subsystem: "availability",
			Name:      "compute_seconds",
			Help:      "Latency of availability computation, cache misses included",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.bookingsTotal, m.transitionsTotal, m.slotConflictsTotal,
		m.policyRejections, m.expiredHoldsTotal, m.availabilityLatency,
	)
	return m
}

func (m *BookingMetrics) ObserveBookingCreated(branchID, bookingType, status string) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(branchID, bookingType, status).Inc()
}

func (m *BookingMetrics) ObserveTransition(toStatus string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(toStatus).Inc()
}

func (m *BookingMetrics) ObserveSlotConflict() {
	if m == nil {
		return
	}
	m.slotConflictsTotal.Inc()
}

func (m *BookingMetrics) ObservePolicyRejection(rule string) {
	if m == nil {
		return
	}
	m.policyRejections.WithLabelValues(rule).Inc()
}

func (m *BookingMetrics) ObserveExpiredHolds(count int) {
	if m == nil {
		return
	}
	m.expiredHoldsTotal.Add(float64(count))
}

func (m *BookingMetrics) ObserveAvailabilityLatency(seconds float64) {
	if m == nil {
		return
	}
	m.availabilityLatency.Observe(seconds)
}
