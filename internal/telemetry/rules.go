package telemetry

import (
	"fmt"
	"time"

	"github.com/quantafons/bus-telemetry/internal/models"
)

const (
	speedLimitKmh      = 80
	lowFuelWarningPct  = 20
	lowFuelCriticalPct = 10
	idlingWindow       = 10 * time.Minute
	idlingSampleCount  = 5
)

// AlertContext carries everything the instantaneous alert rules inspect for
// one accepted sample. Recent holds the vehicle's samples from the trailing
// idling window in time order, and may be empty when the sample cannot be
// an idling candidate.
type AlertContext struct {
	Vehicle *models.Vehicle
	Sample  *models.TelemetrySample
	Recent  []models.TelemetrySample
}

// AlertCandidate is a rule match that the engine turns into an Alert row,
// subject to the open-alert dedup check.
type AlertCandidate struct {
	Level   models.Severity
	Title   string
	Message string
}

// alertRule evaluates one condition against a context. Rules run in slice
// order on every accepted sample, independent of the fuel classifier.
type alertRule func(ctx AlertContext) *AlertCandidate

var alertRules = []alertRule{
	speedRule,
	lowFuelRule,
	idlingRule,
}

// EvaluateAlertRules runs the instantaneous and short-window rules against
// an accepted sample. Pure computation; it never touches the store.
func EvaluateAlertRules(ctx AlertContext) []AlertCandidate {
	var out []AlertCandidate
	for _, rule := range alertRules {
		if c := rule(ctx); c != nil {
			out = append(out, *c)
		}
	}
	return out
}

func speedRule(ctx AlertContext) *AlertCandidate {
	if ctx.Sample.SpeedKmh <= speedLimitKmh {
		return nil
	}
	return &AlertCandidate{
		Level:   models.SeverityWarning,
		Title:   models.AlertTitleSpeedLimit,
		Message: fmt.Sprintf("Bus %s is traveling at %.1f km/h", ctx.Vehicle.Name, ctx.Sample.SpeedKmh),
	}
}

func lowFuelRule(ctx AlertContext) *AlertCandidate {
	if ctx.Sample.FuelLevel == nil || ctx.Vehicle.TankCapacity <= 0 {
		return nil
	}
	pct := *ctx.Sample.FuelLevel / ctx.Vehicle.TankCapacity * 100
	if pct >= lowFuelWarningPct {
		return nil
	}
	level := models.SeverityWarning
	if pct < lowFuelCriticalPct {
		level = models.SeverityCritical
	}
	return &AlertCandidate{
		Level:   level,
		Title:   models.AlertTitleLowFuel,
		Message: fmt.Sprintf("Bus %s fuel level is at %.1f%%", ctx.Vehicle.Name, pct),
	}
}

// idlingRule fires when the bus reported more than idlingSampleCount samples
// inside the trailing window and the most recent idlingSampleCount of them
// were all stationary with the engine running.
func idlingRule(ctx AlertContext) *AlertCandidate {
	if ctx.Sample.SpeedKmh != 0 || !ctx.Sample.EngineOn {
		return nil
	}
	if len(ctx.Recent) <= idlingSampleCount {
		return nil
	}
	tail := ctx.Recent[len(ctx.Recent)-idlingSampleCount:]
	for i := range tail {
		if tail[i].SpeedKmh != 0 || !tail[i].EngineOn {
			return nil
		}
	}
	return &AlertCandidate{
		Level:   models.SeverityInfo,
		Title:   models.AlertTitleIdling,
		Message: fmt.Sprintf("Bus %s has been idling for more than 10 minutes", ctx.Vehicle.Name),
	}
}

// GeofenceCandidate builds the alert raised when a vehicle's position lies
// outside every active tenant geofence. Severity is policy owned by the
// caller; the containment test itself lives in geo.go.
func GeofenceCandidate(vehicle *models.Vehicle, level models.Severity) AlertCandidate {
	return AlertCandidate{
		Level:   level,
		Title:   models.AlertTitleGeofence,
		Message: fmt.Sprintf("Bus %s is outside all active geofences", vehicle.Name),
	}
}

// IdlingWindow is the trailing window the engine fetches recent samples for.
func IdlingWindow() time.Duration { return idlingWindow }
