package search

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dealfinder",
		Subsystem: "stream",
		Name:      "events_total",
		Help:      "Decoded stream events applied to the session, by kind.",
	}, []string{"kind"})

	droppedEventsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dealfinder",
		Subsystem: "stream",
		Name:      "dropped_events_total",
		Help:      "Events dropped because the session already reached a terminal phase.",
	})

	runsStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dealfinder",
		Subsystem: "search",
		Name:      "runs_started_total",
		Help:      "Search runs accepted by the controller.",
	})

	runsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dealfinder",
		Subsystem: "search",
		Name:      "runs_completed_total",
		Help:      "Search runs that reached the done phase.",
	})

	runsCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dealfinder",
		Subsystem: "search",
		Name:      "runs_cancelled_total",
		Help:      "Search runs cancelled by the user.",
	})

	runsFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dealfinder",
		Subsystem: "search",
		Name:      "runs_failed_total",
		Help:      "Search runs that ended in the error phase.",
	})

	runDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "dealfinder",
		Subsystem: "search",
		Name:      "run_duration_seconds",
		Help:      "Wall time from submission to the run's final phase.",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
	})

	subscribersGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "dealfinder",
		Subsystem: "stream",
		Name:      "subscribers",
		Help:      "Currently connected snapshot subscribers.",
	})
)
