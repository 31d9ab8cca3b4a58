package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobsTotal counts finished jobs by terminal status.
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transcribeflow_jobs_total",
			Help: "Total number of transcription jobs by terminal status",
		},
		[]string{"status"},
	)

	// StageDuration observes per-stage wall time in seconds.
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "transcribeflow_stage_duration_seconds",
			Help:    "Stage duration in seconds by pipeline stage",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"stage"},
	)

	// ModelsLoaded is 1 while inference models are memory-resident.
	ModelsLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "transcribeflow_models_loaded",
			Help: "Whether inference models are currently memory-resident (0 or 1)",
		},
	)

	// ModelUnloadsTotal counts idle-triggered model unloads.
	ModelUnloadsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "transcribeflow_model_unloads_total",
			Help: "Total number of idle-triggered model unloads",
		},
	)

	// DiarizationDegradedTotal counts jobs where diarization was
	// configured but silently degraded because the diarizer was
	// unavailable.
	DiarizationDegradedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "transcribeflow_diarization_degraded_total",
			Help: "Jobs that fell back to no diarization due to an unavailable diarizer",
		},
	)
)

// RecordJobFinished records a job reaching a terminal status.
func RecordJobFinished(status string) {
	JobsTotal.WithLabelValues(status).Inc()
}

// ObserveStage records one stage duration.
func ObserveStage(stage string, seconds float64) {
	StageDuration.WithLabelValues(stage).Observe(seconds)
}

// SetModelsLoaded flips the residency gauge.
func SetModelsLoaded(loaded bool) {
	if loaded {
		ModelsLoaded.Set(1)
	} else {
		ModelsLoaded.Set(0)
	}
}
