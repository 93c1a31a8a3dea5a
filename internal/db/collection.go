package db

import (
	"context"
	"time"

	"github.com/quantafons/bus-telemetry/internal/models"
)

// TelemetryCollection defines the interface for sample persistence.
// Samples are append-only; the reaper is the only deleter.
type TelemetryCollection interface {
	InsertSample(ctx context.Context, sample models.TelemetrySample) error
	// FindPrevious returns the nearest sample strictly earlier than the
	// given instant, or ErrNotFound.
	FindPrevious(ctx context.Context, vehicleID string, before time.Time) (*models.TelemetrySample, error)
	// Latest returns the newest sample for a vehicle, or ErrNotFound.
	Latest(ctx context.Context, vehicleID string) (*models.TelemetrySample, error)
	// FindWindow returns samples in [from, to] ordered by timestamp ascending.
	FindWindow(ctx context.Context, vehicleID string, from, to time.Time) ([]models.TelemetrySample, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// VehicleCollection defines the registry reads the core performs, plus the
// last-seen write and registration.
type VehicleCollection interface {
	InsertVehicle(ctx context.Context, vehicle models.Vehicle) (string, error)
	FindVehicleByID(ctx context.Context, id string) (*models.Vehicle, error)
	FindByRegistration(ctx context.Context, tenantID, registrationNo string) (*models.Vehicle, error)
	FindActive(ctx context.Context) ([]models.Vehicle, error)
	UpdateLastSeen(ctx context.Context, id string, seen time.Time) error
}

// AlertCollection defines alert persistence. FindOpen backs the dedup
// invariant: at most one unacknowledged alert per (vehicle, title).
type AlertCollection interface {
	InsertAlert(ctx context.Context, alert models.Alert) error
	FindOpen(ctx context.Context, vehicleID, title string) (*models.Alert, error)
	FindByTenant(ctx context.Context, tenantID string, unacknowledgedOnly bool, limit int64) ([]models.Alert, error)
	Acknowledge(ctx context.Context, id, tenantID, userID string, at time.Time) error
}

// FuelEventCollection defines fuel event persistence. Events are append-only.
type FuelEventCollection interface {
	InsertEvent(ctx context.Context, event models.FuelEvent) error
	FindWindow(ctx context.Context, vehicleID string, from, to time.Time) ([]models.FuelEvent, error)
}

// GeofenceCollection exposes the tenant geofence list to the alert engine.
type GeofenceCollection interface {
	FindActiveByTenant(ctx context.Context, tenantID string) ([]models.Geofence, error)
}
