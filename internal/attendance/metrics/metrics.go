package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the attendance module. All methods are
// nil-safe so wiring metrics stays optional in tests.
type Metrics struct {
	// Check-ins and check-outs by classified status and entry method.
	CheckIns  *prometheus.CounterVec
	CheckOuts *prometheus.CounterVec

	// Location gate rejections by reason (permission, unavailable,
	// accuracy, out_of_range).
	LocationRejections *prometheus.CounterVec

	// Approvals applied (idempotent repeats excluded).
	Approvals prometheus.Counter

	// End-to-end operation latency, including the location round-trip.
	OperationLatency *prometheus.HistogramVec
}

// New creates a Metrics instance with all attendance metrics registered.
func New() *Metrics {
	return &Metrics{
		CheckIns: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "timeclock_check_ins_total",
			Help: "Total successful check-ins by status and method",
		}, []string{"status", "method"}),

		CheckOuts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "timeclock_check_outs_total",
			Help: "Total successful check-outs by status and method",
		}, []string{"status", "method"}),

		LocationRejections: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "timeclock_location_rejections_total",
			Help: "Check-in/out attempts rejected by the location gate, by reason",
		}, []string{"reason"}),

		Approvals: promauto.NewCounter(prometheus.CounterOpts{
			Name: "timeclock_approvals_total",
			Help: "Total attendance records approved",
		}),

		OperationLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "timeclock_operation_duration_seconds",
			Help:    "Duration of attendance operations including location acquisition",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 20},
		}, []string{"operation"}),
	}
}

// IncrementCheckIn records a successful check-in.
func (m *Metrics) IncrementCheckIn(status, method string) {
	if m != nil {
		m.CheckIns.WithLabelValues(status, method).Inc()
	}
}

// IncrementCheckOut records a successful check-out.
func (m *Metrics) IncrementCheckOut(status, method string) {
	if m != nil {
		m.CheckOuts.WithLabelValues(status, method).Inc()
	}
}

// IncrementLocationRejection records a rejected location gate check.
func (m *Metrics) IncrementLocationRejection(reason string) {
	if m != nil {
		m.LocationRejections.WithLabelValues(reason).Inc()
	}
}

// IncrementApprovals records an applied approval.
func (m *Metrics) IncrementApprovals() {
	if m != nil {
		m.Approvals.Inc()
	}
}

// ObserveOperation records the total duration of an operation.
func (m *Metrics) ObserveOperation(operation string, d time.Duration) {
	if m != nil {
		m.OperationLatency.WithLabelValues(operation).Observe(d.Seconds())
	}
}
