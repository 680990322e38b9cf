// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/mouhalis/voiceval/internal/domain"
)

var (
	initOnce sync.Once

	executionsTotalCounter *prometheus.CounterVec
	modelStepsTotalCounter *prometheus.CounterVec
	stepCallDurationMetric prometheus.Histogram
	stepRetriesCounter     prometheus.Counter
	queueDepthGauge        prometheus.Gauge
)

// Init registers metrics on the default Prometheus registry exactly once.
func Init() {
	initOnce.Do(func() {
		executionsTotalCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scenario_executions_total",
				Help: "Total number of finished scenario executions by terminal status.",
			},
			[]string{"status"},
		)

		modelStepsTotalCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "model_steps_total",
				Help: "Total number of per-model step executions by outcome.",
			},
			[]string{"model", "status"},
		)

		stepCallDurationMetric = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "step_call_duration_seconds",
				Help:    "Duration of model step calls in seconds, retries included.",
				Buckets: prometheus.DefBuckets,
			},
		)

		stepRetriesCounter = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "step_retries_total",
				Help: "Total number of retried step attempts.",
			},
		)

		queueDepthGauge = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "batch_queue_depth",
				Help: "Number of scenarios waiting in the batch queue.",
			},
		)

		prometheus.MustRegister(
			executionsTotalCounter,
			modelStepsTotalCounter,
			stepCallDurationMetric,
			stepRetriesCounter,
			queueDepthGauge,
		)

		// Ensure counter vectors are visible at /metrics before first increment.
		for _, state := range []domain.ExecutionState{
			domain.ExecCompleted,
			domain.ExecFailed,
			domain.ExecCancelled,
		} {
			executionsTotalCounter.WithLabelValues(string(state))
		}
	})
}

func IncScenarioExecution(status string) {
	Init()
	executionsTotalCounter.WithLabelValues(status).Inc()
}

func IncModelStep(model, status string) {
	Init()
	modelStepsTotalCounter.WithLabelValues(model, status).Inc()
}

func ObserveStepCallDuration(d time.Duration) {
	Init()
	stepCallDurationMetric.Observe(d.Seconds())
}

func IncStepRetries() {
	Init()
	stepRetriesCounter.Inc()
}

func SetQueueDepth(n int) {
	Init()
	queueDepthGauge.Set(float64(n))
}
