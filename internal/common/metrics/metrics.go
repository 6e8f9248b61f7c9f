package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ExtractionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "inquiry_extraction_duration_seconds",
			Help:    "Duration of a single analyzer run in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"analyzer"},
	)

	ExtractorFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inquiry_extractor_failures_total",
			Help: "Analyzer runs that failed, panicked or timed out",
		},
		[]string{"analyzer", "reason"},
	)

	FlowDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inquiry_flow_decisions_total",
			Help: "Flow decisions by stage and decision kind",
		},
		[]string{"stage", "decision"},
	)

	EmergencyTriggers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inquiry_emergency_triggers_total",
			Help: "Emergency escalations by trigger source",
		},
		[]string{"source"},
	)

	DiagnosisDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "inquiry_diagnosis_duration_seconds",
			Help: "Duration of diagnostic reasoning in seconds",
		},
		[]string{"outcome"},
	)

	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inquiry_cache_requests_total",
			Help: "Cache lookups by cache name and result (hit, miss, error)",
		},
		[]string{"cache", "result"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "inquiry_active_sessions",
			Help: "Number of open inquiry sessions",
		},
	)
)
