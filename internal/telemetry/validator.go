package telemetry

import (
	"errors"
	"fmt"
	"time"

	"github.com/quantafons/bus-telemetry/internal/models"
)

// ErrInvalidSample is returned when a raw sample fails range checks. The
// sample is dropped; nothing is persisted.
var ErrInvalidSample = errors.New("invalid telemetry sample")

// Fuel gauges overshoot the nameplate capacity slightly, so readings up to
// 110% of the tank are accepted.
const fuelToleranceFactor = 1.1

// ValidateSample normalizes a raw sample for the given vehicle and range
// checks it against the vehicle's declared tank capacity. The submitting
// vehicle's identity is already trusted; ingress authenticates before
// validation.
func ValidateSample(raw *models.RawSample, vehicle *models.Vehicle, now time.Time) (*models.TelemetrySample, error) {
	if raw.Latitude != nil && (*raw.Latitude < -90 || *raw.Latitude > 90) {
		return nil, fmt.Errorf("%w: latitude %.4f out of range", ErrInvalidSample, *raw.Latitude)
	}
	if raw.Longitude != nil && (*raw.Longitude < -180 || *raw.Longitude > 180) {
		return nil, fmt.Errorf("%w: longitude %.4f out of range", ErrInvalidSample, *raw.Longitude)
	}
	if raw.SpeedKmh < 0 || raw.SpeedKmh > 200 {
		return nil, fmt.Errorf("%w: speed %.1f km/h out of range", ErrInvalidSample, raw.SpeedKmh)
	}
	if raw.FuelLevel != nil {
		limit := vehicle.TankCapacity * fuelToleranceFactor
		if *raw.FuelLevel < 0 || *raw.FuelLevel > limit {
			return nil, fmt.Errorf("%w: fuel level %.1fL outside [0, %.1f]", ErrInvalidSample, *raw.FuelLevel, limit)
		}
	}

	ts := now
	if raw.Timestamp != nil && !raw.Timestamp.IsZero() {
		ts = raw.Timestamp.UTC()
	}

	sample := &models.TelemetrySample{
		VehicleID: vehicle.ID.Hex(),
		TenantID:  vehicle.TenantID,
		Timestamp: ts,
		Latitude:  raw.Latitude,
		Longitude: raw.Longitude,
		SpeedKmh:  raw.SpeedKmh,
		FuelLevel: raw.FuelLevel,
		FuelFlow:  clampNonNegative(raw.FuelFlow),
		Odometer:  clampNonNegative(raw.Odometer),
		EngineOn:  raw.EngineOn,
		Heading:   raw.Heading,
		Altitude:  raw.Altitude,
	}
	return sample, nil
}

func clampNonNegative(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
