package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Turn metrics
	TurnsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "em_turns_started_total",
			Help: "Total number of conversation turns started",
		},
	)

	TurnsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "em_turns_completed_total",
			Help: "Total number of conversation turns completed",
		},
		[]string{"branch", "status"},
	)

	TurnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "em_turn_duration_seconds",
			Help:    "Conversation turn duration in seconds",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"branch"},
	)

	// Stage metrics
	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "em_stage_duration_seconds",
			Help:    "Per-stage duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	StageFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "em_stage_failures_total",
			Help: "Stage failures by stage and disposition (fatal, absorbed)",
		},
		[]string{"stage", "disposition"},
	)

	// Fan-out metrics
	FanoutBranches = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "em_fanout_branches",
			Help:    "Number of concurrent sub-branches per fan-out turn",
			Buckets: []float64{1, 2, 3, 4, 5, 6, 8, 10},
		},
	)

	// Augmentation metrics
	WebSearches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "em_web_searches_total",
			Help: "Web-search executor invocations by scope and status",
		},
		[]string{"scope", "status"},
	)

	RetrievalChunks = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "em_retrieval_chunks",
			Help:    "Number of document chunks returned after rerank",
			Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 20},
		},
	)

	// Stream metrics
	EventsEmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "em_stream_events_total",
			Help: "Output events emitted by type",
		},
		[]string{"type"},
	)
)
