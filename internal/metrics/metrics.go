// Package metrics provides Prometheus metrics for netpulse.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SweepsTotal counts monitoring sweeps by outcome (completed, skipped, empty, store_error)
	SweepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "netpulse",
			Subsystem: "monitor",
			Name:      "sweeps_total",
			Help:      "Total number of monitoring sweeps by outcome",
		},
		[]string{"outcome"},
	)

	// SweepDuration tracks how long a full sweep takes
	SweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "netpulse",
			Subsystem: "monitor",
			Name:      "sweep_duration_seconds",
			Help:      "Duration of monitoring sweeps in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)

	// StatusChanges counts edge-triggered status changes by new status
	StatusChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "netpulse",
			Subsystem: "monitor",
			Name:      "status_changes_total",
			Help:      "Total number of node status changes detected",
		},
		[]string{"status"},
	)

	// ProbesTotal counts individual probes by result (alive, dead, timeout, error)
	ProbesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "netpulse",
			Subsystem: "probe",
			Name:      "probes_total",
			Help:      "Total number of reachability probes by result",
		},
		[]string{"result"},
	)

	// ProbesInFlight tracks probes currently running
	ProbesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "netpulse",
			Subsystem: "probe",
			Name:      "in_flight",
			Help:      "Number of probes currently running",
		},
	)

	// EventsPublished counts events handed to the broadcaster by type
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "netpulse",
			Subsystem: "broadcast",
			Name:      "events_total",
			Help:      "Total number of events published",
		},
		[]string{"type"},
	)

	// EventsDropped counts events evicted from a full subscriber buffer
	EventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "netpulse",
			Subsystem: "broadcast",
			Name:      "dropped_total",
			Help:      "Total number of events dropped for slow subscribers",
		},
	)

	// Subscribers tracks live broadcaster subscriptions
	Subscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "netpulse",
			Subsystem: "broadcast",
			Name:      "subscribers",
			Help:      "Number of live subscribers",
		},
	)

	// MutationsTotal counts hierarchy mutations by operation and result
	MutationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "netpulse",
			Subsystem: "topology",
			Name:      "mutations_total",
			Help:      "Total number of hierarchy mutations by operation and result",
		},
		[]string{"operation", "result"},
	)
)
