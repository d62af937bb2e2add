package middleware

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// stageMetrics holds Prometheus counters for pipeline stage outcomes.
type stageMetrics struct {
	rateLimitAllowed  *prometheus.CounterVec
	rateLimitRejected *prometheus.CounterVec

	corsRequestsTotal *prometheus.CounterVec

	validationRejected *prometheus.CounterVec

	panicsRecovered prometheus.Counter
}

var (
	pipelineMetrics     *stageMetrics
	pipelineMetricsOnce sync.Once
)

// getStageMetrics returns the singleton stage metrics instance.
func getStageMetrics() *stageMetrics {
	pipelineMetricsOnce.Do(func() {
		pipelineMetrics = newStageMetrics()
	})
	return pipelineMetrics
}

func newStageMetrics() *stageMetrics {
	return &stageMetrics{
		rateLimitAllowed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gateway",
				Subsystem: "pipeline",
				Name:      "rate_limit_allowed_total",
				Help:      "Total number of requests allowed by the rate limiter",
			},
			[]string{"dimension"},
		),
		rateLimitRejected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gateway",
				Subsystem: "pipeline",
				Name:      "rate_limit_rejected_total",
				Help:      "Total number of requests rejected by the rate limiter",
			},
			[]string{"dimension"},
		),
		corsRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gateway",
				Subsystem: "pipeline",
				Name:      "cors_requests_total",
				Help:      "Total number of cross-origin requests by outcome",
			},
			[]string{"type"},
		),
		validationRejected: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gateway",
				Subsystem: "pipeline",
				Name:      "validation_rejected_total",
				Help:      "Total number of requests rejected by validation",
			},
			[]string{"reason"},
		),
		panicsRecovered: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: "gateway",
				Subsystem: "pipeline",
				Name:      "panics_recovered_total",
				Help:      "Total number of handler panics recovered",
			},
		),
	}
}
