package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "snapfixer",
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "图像处理各阶段耗时分布（秒）。",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"stage"},
	)

	jobOutcomeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "snapfixer",
			Subsystem: "jobs",
			Name:      "outcomes_total",
			Help:      "处理任务终态计数。",
		},
		[]string{"status", "kind"},
	)

	sweptJobsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "snapfixer",
			Subsystem: "jobs",
			Name:      "swept_total",
			Help:      "被保留期清理删除的任务数。",
		},
	)

	sourceDeleteFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "snapfixer",
			Subsystem: "jobs",
			Name:      "source_delete_failures_total",
			Help:      "任务结束后删除源图失败的次数，残留对象由生命周期规则兜底。",
		},
	)
)

// ObserveStage records one pipeline stage duration. Its signature matches photo.StageObserver.
func ObserveStage(stage string, elapsed time.Duration) {
	stageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// RecordJobOutcome counts a job reaching a terminal status. kind is empty on success.
func RecordJobOutcome(status, kind string) {
	jobOutcomeTotal.WithLabelValues(status, kind).Inc()
}

// RecordSwept counts jobs removed by the retention sweep.
func RecordSwept(n int) {
	if n > 0 {
		sweptJobsTotal.Add(float64(n))
	}
}

// RecordSourceDeleteFailure counts a source object that outlived its job.
func RecordSourceDeleteFailure() {
	sourceDeleteFailuresTotal.Inc()
}
