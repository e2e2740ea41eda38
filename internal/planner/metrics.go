package planner

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	scenesPlannedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shot_planner_scenes_total",
			Help: "Total number of planned scenes by shot source.",
		},
		[]string{"source"}, // generated | reused | fallback
	)
	shotGradesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shot_planner_shot_grades_total",
			Help: "Total number of assessed shots by final grade.",
		},
		[]string{"grade"},
	)
	planDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shot_planner_plan_duration_seconds",
			Help:    "Histogram of full pipeline durations.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 12),
		},
	)
)

func recordSceneSource(source string) {
	scenesPlannedTotal.With(prometheus.Labels{"source": source}).Inc()
}

func recordShotGrade(grade string) {
	shotGradesTotal.With(prometheus.Labels{"grade": grade}).Inc()
}

func recordPlanDuration(d time.Duration) {
	planDuration.Observe(d.Seconds())
}
