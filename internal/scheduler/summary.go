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
	"github.com/quantafons/bus-telemetry/internal/telemetry"
)

// DailySummary records one DAILY_SUMMARY fuel event per active vehicle
// covering the previous day, when the day saw any consumption.
type DailySummary struct {
	Vehicles   db.VehicleCollection
	Telemetry  db.TelemetryCollection
	FuelEvents db.FuelEventCollection

	Now func() time.Time
}

// Run aggregates yesterday's samples per vehicle. Tank capacity is whatever
// the registry holds at run time; mid-window reassignments are not tracked.
func (s *DailySummary) Run(ctx context.Context) error {
	vehicles, err := s.Vehicles.FindActive(ctx)
	if err != nil {
		return fmt.Errorf("list active vehicles: %w", err)
	}

	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now()
	}
	dayEnd := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	dayStart := dayEnd.AddDate(0, 0, -1)

	for i := range vehicles {
		vehicle := &vehicles[i]
		if err := s.summarize(ctx, vehicle, dayStart, dayEnd); err != nil {
			log.WithFields(log.Fields{"vehicle_id": vehicle.ID.Hex()}).
				WithError(err).Error("Daily fuel summary failed for vehicle")
		}
	}
	log.Info("Daily fuel reports generated")
	return nil
}

func (s *DailySummary) summarize(ctx context.Context, vehicle *models.Vehicle, dayStart, dayEnd time.Time) error {
	// FindWindow's upper bound is inclusive and BSON datetimes carry
	// millisecond precision; a sample stamped exactly at midnight belongs
	// to the next day.
	samples, err := s.Telemetry.FindWindow(ctx, vehicle.ID.Hex(), dayStart, dayEnd.Add(-time.Millisecond))
	if err != nil {
		return fmt.Errorf("load samples: %w", err)
	}

	report, err := telemetry.ComputeEfficiency(samples)
	if err != nil {
		if errors.Is(err, telemetry.ErrInsufficientData) {
			return nil // quiet day, nothing to summarize
		}
		return err
	}
	if report.TotalFuelL <= 0 {
		return nil
	}

	event := models.FuelEvent{
		VehicleID:    vehicle.ID.Hex(),
		TenantID:     vehicle.TenantID,
		Timestamp:    dayEnd,
		Kind:         models.FuelEventDailySummary,
		AmountLiters: report.TotalFuelL,
		Details: fmt.Sprintf("Daily consumption: %.1fL, Distance: %.1fkm, Efficiency: %.1f km/L",
			report.TotalFuelL, report.TotalDistanceKm, report.OverallKmpl),
		Severity: models.SeverityInfo,
	}
	if err := s.FuelEvents.InsertEvent(ctx, event); err != nil {
		return fmt.Errorf("insert summary event: %w", err)
	}
	metrics.FuelEvents.WithLabelValues(string(models.FuelEventDailySummary)).Inc()
	return nil
}
