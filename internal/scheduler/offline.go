package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/quantafons/bus-telemetry/internal/db"
	"github.com/quantafons/bus-telemetry/internal/metrics"
	"github.com/quantafons/bus-telemetry/internal/models"
)

// OfflineThreshold is how long a vehicle may stay silent before it counts as
// offline.
const OfflineThreshold = time.Hour

// OfflineMonitor raises a "Bus Offline" alert for active vehicles whose
// last accepted sample is older than the staleness threshold. The open-alert
// dedup makes repeat runs within one outage idempotent.
type OfflineMonitor struct {
	Vehicles db.VehicleCollection
	Alerts   db.AlertCollection

	// Now is overridable in tests; defaults to time.Now.
	Now func() time.Time
}

// Run performs one monitor sweep. Per-vehicle failures are logged and the
// sweep continues; vehicles already handled are unaffected.
func (m *OfflineMonitor) Run(ctx context.Context) error {
	vehicles, err := m.Vehicles.FindActive(ctx)
	if err != nil {
		return fmt.Errorf("list active vehicles: %w", err)
	}

	now := time.Now().UTC()
	if m.Now != nil {
		now = m.Now()
	}

	for i := range vehicles {
		vehicle := &vehicles[i]
		if vehicle.LastSeen == nil {
			continue
		}
		elapsed := now.Sub(*vehicle.LastSeen)
		if elapsed <= OfflineThreshold {
			continue
		}
		if err := m.alertOffline(ctx, vehicle, elapsed, now); err != nil {
			log.WithFields(log.Fields{"vehicle_id": vehicle.ID.Hex()}).
				WithError(err).Error("Offline check failed for vehicle")
		}
	}
	return nil
}

func (m *OfflineMonitor) alertOffline(ctx context.Context, vehicle *models.Vehicle, elapsed time.Duration, now time.Time) error {
	_, err := m.Alerts.FindOpen(ctx, vehicle.ID.Hex(), models.AlertTitleOffline)
	if err == nil {
		return nil // outage already alerted and unacknowledged
	}
	if !errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("open alert lookup: %w", err)
	}

	alert := models.Alert{
		VehicleID: vehicle.ID.Hex(),
		TenantID:  vehicle.TenantID,
		Timestamp: now,
		Level:     models.SeverityWarning,
		Title:     models.AlertTitleOffline,
		Message:   fmt.Sprintf("Bus %s has not transmitted data for %s", vehicle.Name, elapsed.Round(time.Minute)),
	}
	if err := m.Alerts.InsertAlert(ctx, alert); err != nil {
		return fmt.Errorf("insert offline alert: %w", err)
	}
	metrics.AlertsCreated.WithLabelValues(models.AlertTitleOffline).Inc()
	return nil
}
