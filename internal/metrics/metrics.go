package metrics

import "github.com/prometheus/client_golang/prometheus"

// InquiryMetrics exposes counters for the inquiry lifecycle. Notification
// dispatch failures are swallowed on the request path, so these counters
// are the operational signal for them.
type InquiryMetrics struct {
	createdTotal     prometheus.Counter
	transitionsTotal *prometheus.CounterVec
	expiredTotal     prometheus.Counter
	sweepFailures    prometheus.Counter
	reconcileFixes   prometheus.Counter
	notifyTotal      *prometheus.CounterVec
}

func NewInquiryMetrics(reg prometheus.Registerer) *InquiryMetrics {
	m := &InquiryMetrics{
		createdTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pakproperty",
			Subsystem: "inquiry",
			Name:      "created_total",
			Help:      "Total inquiries created",
		}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pakproperty",
			Subsystem: "inquiry",
			Name:      "transitions_total",
			Help:      "Total inquiry status transitions",
		}, []string{"from", "to"}),
		expiredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pakproperty",
			Subsystem: "inquiry",
			Name:      "expired_total",
			Help:      "Total inquiries expired by the sweeper",
		}),
		sweepFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pakproperty",
			Subsystem: "inquiry",
			Name:      "sweep_failures_total",
			Help:      "Per-record failures during expiration sweeps",
		}),
		reconcileFixes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pakproperty",
			Subsystem: "property",
			Name:      "inquiry_count_corrections_total",
			Help:      "Inquiry counter drift corrections applied by reconciliation",
		}),
		notifyTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pakproperty",
			Subsystem: "notify",
			Name:      "dispatch_total",
			Help:      "Notification dispatch attempts by event and outcome",
		}, []string{"event", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.createdTotal,
		m.transitionsTotal,
		m.expiredTotal,
		m.sweepFailures,
		m.reconcileFixes,
		m.notifyTotal,
	)
	return m
}

func (m *InquiryMetrics) ObserveCreated() {
	if m == nil {
		return
	}
	m.createdTotal.Inc()
}

func (m *InquiryMetrics) ObserveTransition(from, to string) {
	if m == nil {
		return
	}
	m.transitionsTotal.WithLabelValues(from, to).Inc()
}

func (m *InquiryMetrics) ObserveExpired(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.expiredTotal.Add(float64(n))
}

func (m *InquiryMetrics) ObserveSweepFailure() {
	if m == nil {
		return
	}
	m.sweepFailures.Inc()
}

func (m *InquiryMetrics) ObserveReconcileFixes(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.reconcileFixes.Add(float64(n))
}

func (m *InquiryMetrics) ObserveNotify(event string, ok bool) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	m.notifyTotal.WithLabelValues(event, status).Inc()
}
