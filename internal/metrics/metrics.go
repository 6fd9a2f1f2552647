package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the service.
	Registry = prometheus.NewRegistry()

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// OperationDuration records timed operations (remote calls, cache lookups) by outcome.
	OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "operation_duration_seconds",
			Help:    "Duration of timed operations in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300, 900},
		},
		[]string{"op", "outcome"},
	)

	// JobPolls counts status polls of remote jobs by strategy and observed status.
	JobPolls = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "touring_job_polls_total", Help: "Remote job status polls."},
		[]string{"strategy", "status"},
	)
	// JobResolutions counts resolved remote jobs by strategy and outcome.
	JobResolutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "touring_job_resolutions_total", Help: "Remote jobs resolved by outcome."},
		[]string{"strategy", "outcome"},
	)
	// AvoidRepairs counts resubmissions after an avoid feature was rejected.
	AvoidRepairs = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "touring_avoid_repairs_total", Help: "Resubmissions without a rejected avoid feature."},
		[]string{"feature"},
	)
	// Unassigned counts ledger entries recorded before submission, by reason code.
	Unassigned = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "optimization_unassigned_total", Help: "Waypoints excluded before submission."},
		[]string{"code"},
	)
)

var regOnce sync.Once

// RegisterDefault registers all collectors on Registry. Safe to call more than once.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(OperationDuration)
		Registry.MustRegister(JobPolls)
		Registry.MustRegister(JobResolutions)
		Registry.MustRegister(AvoidRepairs)
		Registry.MustRegister(Unassigned)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}
