package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		renderJobsSubmittedTotal,
		renderJobsProcessedTotal,
		renderPipelineDuration,
		queueDepth,
	)
}

var (
	renderJobsSubmittedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "render_jobs_submitted_total",
			Help: "Total number of render jobs accepted by the gateway.",
		},
	)

	renderJobsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "render_jobs_processed_total",
			Help: "Total number of render jobs processed, labeled by terminal status.",
		},
		[]string{"status"},
	)

	renderPipelineDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "render_pipeline_duration_seconds",
			Help:    "End-to-end pipeline duration per job.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
	)

	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "render_queue_depth",
			Help: "Current number of jobs waiting on the render queue.",
		},
	)
)

func IncJobSubmitted() { renderJobsSubmittedTotal.Inc() }

func IncJobProcessed(status string) {
	renderJobsProcessedTotal.WithLabelValues(status).Inc()
}

func ObservePipelineDuration(seconds float64) {
	renderPipelineDuration.Observe(seconds)
}

func SetQueueDepth(n int64) { queueDepth.Set(float64(n)) }
