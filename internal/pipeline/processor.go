// Package pipeline runs the ingestion path: validate, sequence per vehicle,
// persist, classify, alert, publish.
package pipeline

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

// Publisher fans processed updates out to tenant-scoped subscribers.
// Delivery is best-effort; implementations must not block processing.
type Publisher interface {
	PublishUpdate(tenantID string, update models.TelemetryUpdate)
}

// Options tunes the ingestion engine.
type Options struct {
	Lanes      int
	LaneBuffer int
	// GeofenceAlerts enables the geofence containment rule; severity is
	// policy handed in from configuration.
	GeofenceAlerts   bool
	GeofenceSeverity models.Severity
}

// Engine is the ingestion engine: one Process call takes a validated sample
// through persist, classify, alert and publish as a single per-vehicle unit
// of work.
type Engine struct {
	store     *db.Store
	publisher Publisher
	seq       *Sequencer
	opts      Options
}

// NewEngine builds and starts an ingestion engine.
func NewEngine(store *db.Store, publisher Publisher, opts Options) *Engine {
	if opts.Lanes <= 0 {
		opts.Lanes = 16
	}
	if opts.LaneBuffer <= 0 {
		opts.LaneBuffer = 64
	}
	if opts.GeofenceSeverity == "" {
		opts.GeofenceSeverity = models.SeverityWarning
	}
	e := &Engine{store: store, publisher: publisher, opts: opts}
	e.seq = NewSequencer(opts.Lanes, opts.LaneBuffer, e.processJob)
	return e
}

// Process validates one raw sample for an already-authenticated vehicle and
// runs it through the vehicle's lane. Validation failures reject without
// touching any state; store failures fail the call so the transport can
// retry.
func (e *Engine) Process(ctx context.Context, vehicle *models.Vehicle, raw *models.RawSample) (*models.TelemetrySample, error) {
	sample, err := telemetry.ValidateSample(raw, vehicle, time.Now().UTC())
	if err != nil {
		metrics.SamplesRejected.WithLabelValues("invalid").Inc()
		return nil, err
	}
	if err := e.seq.Submit(ctx, vehicle, sample); err != nil {
		return nil, err
	}
	return sample, nil
}

// Close stops the intake and drains in-flight samples.
func (e *Engine) Close() {
	e.seq.Close()
}

func (e *Engine) processJob(j *job) {
	j.reply <- e.handleSample(j.ctx, j.vehicle, j.sample)
}

func (e *Engine) handleSample(ctx context.Context, vehicle *models.Vehicle, sample *models.TelemetrySample) error {
	// Nearest strictly-earlier sample, which is not necessarily the last
	// inserted row when sensor clocks are coarse.
	previous, err := e.store.Telemetry.FindPrevious(ctx, sample.VehicleID, sample.Timestamp)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		return fmt.Errorf("read previous sample: %w", err)
	}

	if err := e.store.Telemetry.InsertSample(ctx, *sample); err != nil {
		return fmt.Errorf("persist sample: %w", err)
	}
	metrics.SamplesAccepted.Inc()

	if event := telemetry.Classify(previous, sample); event != nil {
		e.recordFuelEvent(ctx, vehicle, event)
	}

	e.evaluateAlertRules(ctx, vehicle, sample)

	if err := e.store.Vehicles.UpdateLastSeen(ctx, sample.VehicleID, sample.Timestamp); err != nil {
		log.WithFields(log.Fields{"vehicle_id": sample.VehicleID}).
			WithError(err).Warn("Failed to update vehicle last_seen")
	}

	if e.publisher != nil {
		e.publisher.PublishUpdate(sample.TenantID, models.TelemetryUpdate{
			VehicleID: sample.VehicleID,
			Latitude:  sample.Latitude,
			Longitude: sample.Longitude,
			SpeedKmh:  sample.SpeedKmh,
			FuelLevel: sample.FuelLevel,
			EngineOn:  sample.EngineOn,
			Timestamp: sample.Timestamp,
		})
	}
	return nil
}

// recordFuelEvent persists a classified event and escalates WARNING and
// CRITICAL events into alerts. The sample is already committed, so failures
// here are logged rather than failing the ingestion call.
func (e *Engine) recordFuelEvent(ctx context.Context, vehicle *models.Vehicle, event *models.FuelEvent) {
	if err := e.store.FuelEvents.InsertEvent(ctx, *event); err != nil {
		log.WithFields(log.Fields{"vehicle_id": event.VehicleID, "kind": event.Kind}).
			WithError(err).Error("Failed to persist fuel event")
		return
	}
	metrics.FuelEvents.WithLabelValues(string(event.Kind)).Inc()

	if event.Severity == models.SeverityWarning || event.Severity == models.SeverityCritical {
		e.raiseAlert(ctx, vehicle, telemetry.AlertCandidate{
			Level:   event.Severity,
			Title:   telemetry.AlertTitleFor(event.Kind),
			Message: event.Details,
		}, event.Timestamp)
	}
}

func (e *Engine) evaluateAlertRules(ctx context.Context, vehicle *models.Vehicle, sample *models.TelemetrySample) {
	ruleCtx := telemetry.AlertContext{Vehicle: vehicle, Sample: sample}

	// Recent samples are only needed for the idling rule.
	if sample.SpeedKmh == 0 && sample.EngineOn {
		since := sample.Timestamp.Add(-telemetry.IdlingWindow())
		recent, err := e.store.Telemetry.FindWindow(ctx, sample.VehicleID, since, sample.Timestamp)
		if err != nil {
			log.WithFields(log.Fields{"vehicle_id": sample.VehicleID}).
				WithError(err).Warn("Alert check failed to load recent samples")
		} else {
			ruleCtx.Recent = recent
		}
	}

	candidates := telemetry.EvaluateAlertRules(ruleCtx)

	if e.opts.GeofenceAlerts && sample.Latitude != nil && sample.Longitude != nil {
		fences, err := e.store.Geofences.FindActiveByTenant(ctx, vehicle.TenantID)
		if err != nil {
			log.WithFields(log.Fields{"tenant_id": vehicle.TenantID}).
				WithError(err).Warn("Alert check failed to load geofences")
		} else if telemetry.OutsideActiveGeofences(*sample.Latitude, *sample.Longitude, fences) {
			candidates = append(candidates, telemetry.GeofenceCandidate(vehicle, e.opts.GeofenceSeverity))
		}
	}

	for _, candidate := range candidates {
		e.raiseAlert(ctx, vehicle, candidate, sample.Timestamp)
	}
}

// raiseAlert inserts an alert unless an unacknowledged alert with the same
// title is already open for the vehicle.
func (e *Engine) raiseAlert(ctx context.Context, vehicle *models.Vehicle, candidate telemetry.AlertCandidate, at time.Time) {
	_, err := e.store.Alerts.FindOpen(ctx, vehicle.ID.Hex(), candidate.Title)
	if err == nil {
		metrics.AlertsSuppressed.Inc()
		return
	}
	if !errors.Is(err, db.ErrNotFound) {
		log.WithFields(log.Fields{"vehicle_id": vehicle.ID.Hex(), "title": candidate.Title}).
			WithError(err).Error("Alert dedup check failed")
		return
	}

	alert := models.Alert{
		VehicleID: vehicle.ID.Hex(),
		TenantID:  vehicle.TenantID,
		Timestamp: at,
		Level:     candidate.Level,
		Title:     candidate.Title,
		Message:   candidate.Message,
	}
	if err := e.store.Alerts.InsertAlert(ctx, alert); err != nil {
		log.WithFields(log.Fields{"vehicle_id": vehicle.ID.Hex(), "title": candidate.Title}).
			WithError(err).Error("Alert insert failed")
		return
	}
	metrics.AlertsCreated.WithLabelValues(candidate.Title).Inc()
}
