package telemetry

import (
	"fmt"
	"math"

	"github.com/quantafons/bus-telemetry/internal/models"
)

// Classification thresholds, in liters and liters per hour. All comparisons
// are strict; a delta exactly at a threshold does not fire.
const (
	refuelThresholdLiters = 10
	theftThresholdLiters  = -5
	excessiveDeltaLiters  = -2
	excessiveRateLPH      = 15
	idleDeltaLiters       = -0.5
	idleMinElapsedHours   = 0.5
)

// fuelDelta captures everything a classification rule may look at.
type fuelDelta struct {
	diff         float64 // current fuel - previous fuel, liters
	elapsedHours float64
	curr         *models.TelemetrySample
}

// fuelRule pairs a predicate with an event constructor. Rules are evaluated
// in a fixed order and the first match wins, so precedence is pinned by the
// slice, not by nesting.
type fuelRule struct {
	kind    models.FuelEventKind
	matches func(d fuelDelta) bool
	build   func(d fuelDelta) *models.FuelEvent
}

var fuelRules = []fuelRule{
	{
		kind: models.FuelEventRefuel,
		matches: func(d fuelDelta) bool {
			return d.diff > refuelThresholdLiters
		},
		build: func(d fuelDelta) *models.FuelEvent {
			return newFuelEvent(d.curr, models.FuelEventRefuel, d.diff, models.SeverityInfo,
				fmt.Sprintf("Fuel refill detected: %.1fL added", d.diff))
		},
	},
	{
		kind: models.FuelEventTheft,
		matches: func(d fuelDelta) bool {
			return d.diff < theftThresholdLiters && d.curr.SpeedKmh == 0 && !d.curr.EngineOn
		},
		build: func(d fuelDelta) *models.FuelEvent {
			return newFuelEvent(d.curr, models.FuelEventTheft, math.Abs(d.diff), models.SeverityCritical,
				fmt.Sprintf("Potential fuel theft: %.1fL lost while stationary", math.Abs(d.diff)))
		},
	},
	{
		kind: models.FuelEventExcessive,
		matches: func(d fuelDelta) bool {
			if d.diff >= excessiveDeltaLiters || d.elapsedHours <= 0 {
				return false
			}
			return math.Abs(d.diff)/d.elapsedHours > excessiveRateLPH
		},
		build: func(d fuelDelta) *models.FuelEvent {
			rate := math.Abs(d.diff) / d.elapsedHours
			return newFuelEvent(d.curr, models.FuelEventExcessive, math.Abs(d.diff), models.SeverityWarning,
				fmt.Sprintf("High fuel consumption: %.1fL/hour", rate))
		},
	},
	{
		kind: models.FuelEventIdle,
		matches: func(d fuelDelta) bool {
			return d.curr.SpeedKmh == 0 && d.curr.EngineOn &&
				d.diff < idleDeltaLiters && d.elapsedHours >= idleMinElapsedHours
		},
		build: func(d fuelDelta) *models.FuelEvent {
			return newFuelEvent(d.curr, models.FuelEventIdle, math.Abs(d.diff), models.SeverityWarning,
				fmt.Sprintf("Extended idling detected: %.1fL consumed while stationary", math.Abs(d.diff)))
		},
	},
}

// Classify compares two consecutive samples of one vehicle and returns at
// most one fuel event, or nil when nothing matches. It is a pure function:
// the same (previous, current) pair always yields the same result.
//
// THEFT is not bounded against elapsed time, so a large drop between samples
// hours apart still classifies as theft. That mirrors deployed behavior and
// is kept deliberately; see DESIGN.md.
func Classify(previous, current *models.TelemetrySample) *models.FuelEvent {
	if previous == nil || previous.FuelLevel == nil || current.FuelLevel == nil {
		return nil
	}

	d := fuelDelta{
		diff:         *current.FuelLevel - *previous.FuelLevel,
		elapsedHours: current.Timestamp.Sub(previous.Timestamp).Hours(),
		curr:         current,
	}

	for _, rule := range fuelRules {
		if rule.matches(d) {
			return rule.build(d)
		}
	}
	return nil
}

func newFuelEvent(s *models.TelemetrySample, kind models.FuelEventKind, amount float64, sev models.Severity, details string) *models.FuelEvent {
	return &models.FuelEvent{
		VehicleID:    s.VehicleID,
		TenantID:     s.TenantID,
		Timestamp:    s.Timestamp,
		Kind:         kind,
		AmountLiters: amount,
		Details:      details,
		Severity:     sev,
	}
}

// AlertTitleFor maps a fuel event kind to the alert title raised for
// WARNING and CRITICAL events.
func AlertTitleFor(kind models.FuelEventKind) string {
	switch kind {
	case models.FuelEventTheft:
		return "Fuel Theft Detected"
	case models.FuelEventExcessive:
		return "Fuel Excessive Consumption Detected"
	case models.FuelEventIdle:
		return "Fuel Idle Detected"
	default:
		return "Fuel " + string(kind) + " Detected"
	}
}
