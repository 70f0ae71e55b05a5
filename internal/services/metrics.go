package services

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	contestsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "contests_created_total",
			Help: "Total number of contests created",
		},
	)

	// status: COMPLETED, ABANDONED, EXPIRED
	contestsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contests_finished_total",
			Help: "Total number of contests that left the ACTIVE state",
		},
		[]string{"status"},
	)

	selectorShortfall = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "selector_shortfall_total",
			Help: "Contest creations rejected because the catalog could not fill every slot",
		},
	)

	selectionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "selector_duration_seconds",
			Help:    "Time spent selecting problems for a contest",
			Buckets: prometheus.DefBuckets,
		},
	)

	weakTopicsDetected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "weak_topics_detected_total",
			Help: "Weak topics opened by the rating engine",
		},
	)

	weakTopicsResolved = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "weak_topics_resolved_total",
			Help: "Weak topics that reached their target level",
		},
	)

	// outcome: generated, failed
	reflectionsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reflections_generated_total",
			Help: "Reflection generation attempts by outcome",
		},
		[]string{"outcome"},
	)
)
