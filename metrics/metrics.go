package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// AcquireCounter tracks completed acquisitions per participant.
	AcquireCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bakery_acquire_total",
		Help: "Total number of critical section entries",
	}, []string{"participant"})
	// ReleaseCounter tracks releases per participant.
	ReleaseCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bakery_release_total",
		Help: "Total number of critical section exits",
	}, []string{"participant"})
	// AbortCounter tracks acquisitions withdrawn on a spin limit or deadline.
	AbortCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bakery_acquire_aborted_total",
		Help: "Total number of acquisitions withdrawn before entry",
	})
	// ViolationCounter tracks observed mutual exclusion violations.
	ViolationCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bakery_mutual_exclusion_violations_total",
		Help: "Total number of overlapping critical sections observed",
	})
	// WaitHistogram reports how long Acquire took to return.
	WaitHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "bakery_acquire_wait_seconds",
		Help:    "Time from acquire request to critical section entry",
		Buckets: prometheus.ExponentialBuckets(1e-6, 4, 12),
	})
	// CriticalGauge reports the number of participants inside the critical
	// section. Anything above 1 is a violation.
	CriticalGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bakery_in_critical_section",
		Help: "Current number of participants inside the critical section",
	})
)

// NewRegistry creates a new Prometheus registry.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// RegisterHarnessMetrics registers the bakery harness metrics on the provided registry.
func RegisterHarnessMetrics(reg prometheus.Registerer) {
	reg.MustRegister(AcquireCounter, ReleaseCounter, AbortCounter, ViolationCounter, WaitHistogram, CriticalGauge)
}
