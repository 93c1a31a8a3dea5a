// Package metrics exposes the Prometheus instrumentation for the telemetry
// engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SamplesAccepted counts samples that passed validation and were persisted.
	SamplesAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bus_telemetry",
		Name:      "samples_accepted_total",
		Help:      "Total number of telemetry samples accepted and persisted",
	})

	// SamplesRejected counts samples dropped by validation or authentication,
	// by reason.
	SamplesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bus_telemetry",
		Name:      "samples_rejected_total",
		Help:      "Total number of telemetry samples rejected before persistence",
	}, []string{"reason"})

	// FuelEvents counts classified fuel events by kind.
	FuelEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bus_telemetry",
		Name:      "fuel_events_total",
		Help:      "Total number of fuel events emitted by the classifier",
	}, []string{"kind"})

	// AlertsCreated counts alert rows inserted, by title.
	AlertsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bus_telemetry",
		Name:      "alerts_created_total",
		Help:      "Total number of alerts created after dedup",
	}, []string{"title"})

	// AlertsSuppressed counts alert conditions suppressed by the open-alert
	// dedup check.
	AlertsSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bus_telemetry",
		Name:      "alerts_suppressed_total",
		Help:      "Total number of duplicate alert conditions suppressed",
	})

	// RealtimeDrops counts realtime messages dropped on slow subscribers.
	RealtimeDrops = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bus_telemetry",
		Name:      "realtime_drops_total",
		Help:      "Total number of realtime updates dropped for slow subscribers",
	})

	// ReaperDeleted counts samples removed by the retention reaper.
	ReaperDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "bus_telemetry",
		Name:      "reaper_deleted_samples_total",
		Help:      "Total number of samples deleted past the retention horizon",
	})
)
