package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	SourceRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hnpipe_source_requests_total",
		Help: "Requests sent to the item source",
	}, []string{"operation", "status"})

	SourceRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hnpipe_source_request_duration_seconds",
		Help:    "Latency of item source requests",
		Buckets: []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"operation"})

	Runs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hnpipe_runs_total",
		Help: "Materialization runs by outcome",
	}, []string{"status"})

	RunDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "hnpipe_run_duration_seconds",
		Help:    "Wall time of a materialization run",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	TableRows = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "hnpipe_table_rows",
		Help: "Rows written in the last materialization of each table",
	}, []string{"table"})
)

// MustRegister registers all pipeline metrics.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		SourceRequests,
		SourceRequestDuration,
		Runs,
		RunDuration,
		TableRows,
	)
}

// ObserveSourceRequest records the duration and outcome of one source call.
func ObserveSourceRequest(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	SourceRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	SourceRequests.WithLabelValues(operation, status).Inc()
}
