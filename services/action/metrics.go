package action

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type metrics struct {
	executions *prometheus.CounterVec
	duration   prometheus.Histogram
}

func newMetrics() *metrics {
	return &metrics{
		executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rundeck_action",
			Name:      "executions_total",
			Help:      "Number of action executions by status and failure reason.",
		}, []string{"status", "reason"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "rundeck_action",
			Name:      "execution_duration_seconds",
			Help:      "Time taken by action executions, including every remote call.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

func (m *metrics) observe(r Result, d time.Duration) {
	m.executions.WithLabelValues(string(r.Status), string(r.Reason)).Inc()
	m.duration.Observe(d.Seconds())
}
