package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		stageInvocationsTotal,
		stageLatencyMs,
	)
}

var (
	stageInvocationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stage_invocations_total",
			Help: "Total stage-worker invocations, labeled by worker and outcome.",
		},
		[]string{"worker", "outcome"}, // 'success', 'failure', 'transport'
	)

	stageLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stage_latency_ms",
			Help:    "Stage-worker call latency distribution in milliseconds.",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 15000, 60000, 300000, 900000},
		},
		[]string{"worker"},
	)
)

func ObserveStageCall(worker, outcome string, latencyMs float64) {
	stageInvocationsTotal.WithLabelValues(worker, outcome).Inc()
	stageLatencyMs.WithLabelValues(worker).Observe(latencyMs)
}
