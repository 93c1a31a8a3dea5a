package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/quantafons/bus-telemetry/internal/db"
	"github.com/quantafons/bus-telemetry/internal/models"
	"github.com/quantafons/bus-telemetry/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MockTelemetryCollection is a mock implementation of db.TelemetryCollection
type MockTelemetryCollection struct {
	mock.Mock
}

func (m *MockTelemetryCollection) InsertSample(ctx context.Context, sample models.TelemetrySample) error {
	args := m.Called(ctx, sample)
	return args.Error(0)
}

func (m *MockTelemetryCollection) FindPrevious(ctx context.Context, vehicleID string, before time.Time) (*models.TelemetrySample, error) {
	args := m.Called(ctx, vehicleID, before)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TelemetrySample), args.Error(1)
}

func (m *MockTelemetryCollection) Latest(ctx context.Context, vehicleID string) (*models.TelemetrySample, error) {
	args := m.Called(ctx, vehicleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TelemetrySample), args.Error(1)
}

func (m *MockTelemetryCollection) FindWindow(ctx context.Context, vehicleID string, from, to time.Time) ([]models.TelemetrySample, error) {
	args := m.Called(ctx, vehicleID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.TelemetrySample), args.Error(1)
}

func (m *MockTelemetryCollection) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// MockVehicleCollection is a mock implementation of db.VehicleCollection
type MockVehicleCollection struct {
	mock.Mock
}

func (m *MockVehicleCollection) InsertVehicle(ctx context.Context, vehicle models.Vehicle) (string, error) {
	args := m.Called(ctx, vehicle)
	return args.String(0), args.Error(1)
}

func (m *MockVehicleCollection) FindVehicleByID(ctx context.Context, id string) (*models.Vehicle, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Vehicle), args.Error(1)
}

func (m *MockVehicleCollection) FindByRegistration(ctx context.Context, tenantID, registrationNo string) (*models.Vehicle, error) {
	args := m.Called(ctx, tenantID, registrationNo)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Vehicle), args.Error(1)
}

func (m *MockVehicleCollection) FindActive(ctx context.Context) ([]models.Vehicle, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Vehicle), args.Error(1)
}

func (m *MockVehicleCollection) UpdateLastSeen(ctx context.Context, id string, seen time.Time) error {
	args := m.Called(ctx, id, seen)
	return args.Error(0)
}

// MockAlertCollection is a mock implementation of db.AlertCollection
type MockAlertCollection struct {
	mock.Mock
}

func (m *MockAlertCollection) InsertAlert(ctx context.Context, alert models.Alert) error {
	args := m.Called(ctx, alert)
	return args.Error(0)
}

func (m *MockAlertCollection) FindOpen(ctx context.Context, vehicleID, title string) (*models.Alert, error) {
	args := m.Called(ctx, vehicleID, title)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Alert), args.Error(1)
}

func (m *MockAlertCollection) FindByTenant(ctx context.Context, tenantID string, unacknowledgedOnly bool, limit int64) ([]models.Alert, error) {
	args := m.Called(ctx, tenantID, unacknowledgedOnly, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Alert), args.Error(1)
}

func (m *MockAlertCollection) Acknowledge(ctx context.Context, id, tenantID, userID string, at time.Time) error {
	args := m.Called(ctx, id, tenantID, userID, at)
	return args.Error(0)
}

// MockFuelEventCollection is a mock implementation of db.FuelEventCollection
type MockFuelEventCollection struct {
	mock.Mock
}

func (m *MockFuelEventCollection) InsertEvent(ctx context.Context, event models.FuelEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockFuelEventCollection) FindWindow(ctx context.Context, vehicleID string, from, to time.Time) ([]models.FuelEvent, error) {
	args := m.Called(ctx, vehicleID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.FuelEvent), args.Error(1)
}

// MockGeofenceCollection is a mock implementation of db.GeofenceCollection
type MockGeofenceCollection struct {
	mock.Mock
}

func (m *MockGeofenceCollection) FindActiveByTenant(ctx context.Context, tenantID string) ([]models.Geofence, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Geofence), args.Error(1)
}

// recordingPublisher captures realtime updates without a hub.
type recordingPublisher struct {
	mu      sync.Mutex
	updates []models.TelemetryUpdate
	tenants []string
}

func (p *recordingPublisher) PublishUpdate(tenantID string, update models.TelemetryUpdate) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tenants = append(p.tenants, tenantID)
	p.updates = append(p.updates, update)
}

type engineFixture struct {
	telemetry  *MockTelemetryCollection
	vehicles   *MockVehicleCollection
	alerts     *MockAlertCollection
	fuelEvents *MockFuelEventCollection
	geofences  *MockGeofenceCollection
	publisher  *recordingPublisher
	engine     *Engine
	vehicle    *models.Vehicle
}

func newEngineFixture(t *testing.T, opts Options) *engineFixture {
	t.Helper()
	f := &engineFixture{
		telemetry:  new(MockTelemetryCollection),
		vehicles:   new(MockVehicleCollection),
		alerts:     new(MockAlertCollection),
		fuelEvents: new(MockFuelEventCollection),
		geofences:  new(MockGeofenceCollection),
		publisher:  &recordingPublisher{},
	}
	store := &db.Store{
		Telemetry:  f.telemetry,
		Vehicles:   f.vehicles,
		Alerts:     f.alerts,
		FuelEvents: f.fuelEvents,
		Geofences:  f.geofences,
	}
	f.engine = NewEngine(store, f.publisher, opts)
	t.Cleanup(f.engine.Close)

	f.vehicle = &models.Vehicle{
		ID:           primitive.NewObjectID(),
		TenantID:     "tenant-1",
		Name:         "Bus 01",
		TankCapacity: 100,
		IsActive:     true,
	}
	return f
}

func floatPtr(v float64) *float64 { return &v }

func TestEngine_ProcessAcceptsAndPublishes(t *testing.T) {
	f := newEngineFixture(t, Options{})

	f.telemetry.On("FindPrevious", mock.Anything, f.vehicle.ID.Hex(), mock.Anything).Return(nil, db.ErrNotFound)
	f.telemetry.On("InsertSample", mock.Anything, mock.Anything).Return(nil)
	f.vehicles.On("UpdateLastSeen", mock.Anything, f.vehicle.ID.Hex(), mock.Anything).Return(nil)

	raw := &models.RawSample{SpeedKmh: 40, FuelLevel: floatPtr(70), Odometer: 1000, EngineOn: true}
	sample, err := f.engine.Process(context.Background(), f.vehicle, raw)
	require.NoError(t, err)
	assert.Equal(t, f.vehicle.ID.Hex(), sample.VehicleID)
	assert.Equal(t, "tenant-1", sample.TenantID)

	f.telemetry.AssertExpectations(t)
	f.vehicles.AssertExpectations(t)
	f.alerts.AssertNotCalled(t, "InsertAlert", mock.Anything, mock.Anything)

	require.Len(t, f.publisher.updates, 1)
	assert.Equal(t, "tenant-1", f.publisher.tenants[0])
	assert.Equal(t, f.vehicle.ID.Hex(), f.publisher.updates[0].VehicleID)
}

func TestEngine_ProcessRejectsInvalidSample(t *testing.T) {
	f := newEngineFixture(t, Options{})

	raw := &models.RawSample{SpeedKmh: 500}
	_, err := f.engine.Process(context.Background(), f.vehicle, raw)
	assert.ErrorIs(t, err, telemetry.ErrInvalidSample)

	f.telemetry.AssertNotCalled(t, "InsertSample", mock.Anything, mock.Anything)
	assert.Empty(t, f.publisher.updates)
}

func TestEngine_ProcessFailsOnStoreError(t *testing.T) {
	f := newEngineFixture(t, Options{})

	f.telemetry.On("FindPrevious", mock.Anything, mock.Anything, mock.Anything).Return(nil, db.ErrNotFound)
	f.telemetry.On("InsertSample", mock.Anything, mock.Anything).Return(errors.New("write concern timeout"))

	raw := &models.RawSample{SpeedKmh: 40}
	_, err := f.engine.Process(context.Background(), f.vehicle, raw)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persist sample")

	// Nothing downstream of the failed insert runs.
	f.vehicles.AssertNotCalled(t, "UpdateLastSeen", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, f.publisher.updates)
}

func TestEngine_TheftRaisesAlert(t *testing.T) {
	f := newEngineFixture(t, Options{})

	previous := &models.TelemetrySample{
		VehicleID: f.vehicle.ID.Hex(),
		TenantID:  "tenant-1",
		Timestamp: time.Now().UTC().Add(-10 * time.Minute),
		FuelLevel: floatPtr(60),
	}
	f.telemetry.On("FindPrevious", mock.Anything, mock.Anything, mock.Anything).Return(previous, nil)
	f.telemetry.On("InsertSample", mock.Anything, mock.Anything).Return(nil)
	f.vehicles.On("UpdateLastSeen", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.fuelEvents.On("InsertEvent", mock.Anything, mock.MatchedBy(func(e models.FuelEvent) bool {
		return e.Kind == models.FuelEventTheft
	})).Return(nil)
	f.alerts.On("FindOpen", mock.Anything, f.vehicle.ID.Hex(), "Fuel Theft Detected").Return(nil, db.ErrNotFound)
	f.alerts.On("InsertAlert", mock.Anything, mock.MatchedBy(func(a models.Alert) bool {
		return a.Title == "Fuel Theft Detected" && a.Level == models.SeverityCritical
	})).Return(nil)

	raw := &models.RawSample{SpeedKmh: 0, FuelLevel: floatPtr(50), EngineOn: false}
	_, err := f.engine.Process(context.Background(), f.vehicle, raw)
	require.NoError(t, err)

	f.fuelEvents.AssertExpectations(t)
	f.alerts.AssertExpectations(t)
}

func TestEngine_RefuelEventDoesNotAlert(t *testing.T) {
	f := newEngineFixture(t, Options{})

	previous := &models.TelemetrySample{
		VehicleID: f.vehicle.ID.Hex(),
		TenantID:  "tenant-1",
		Timestamp: time.Now().UTC().Add(-10 * time.Minute),
		FuelLevel: floatPtr(50),
	}
	f.telemetry.On("FindPrevious", mock.Anything, mock.Anything, mock.Anything).Return(previous, nil)
	f.telemetry.On("InsertSample", mock.Anything, mock.Anything).Return(nil)
	f.vehicles.On("UpdateLastSeen", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.fuelEvents.On("InsertEvent", mock.Anything, mock.MatchedBy(func(e models.FuelEvent) bool {
		return e.Kind == models.FuelEventRefuel && e.Severity == models.SeverityInfo
	})).Return(nil)

	// INFO events are recorded but never escalated to alerts.
	raw := &models.RawSample{SpeedKmh: 30, FuelLevel: floatPtr(65), EngineOn: true}
	_, err := f.engine.Process(context.Background(), f.vehicle, raw)
	require.NoError(t, err)

	f.fuelEvents.AssertExpectations(t)
	f.alerts.AssertNotCalled(t, "FindOpen", mock.Anything, mock.Anything, mock.Anything)
	f.alerts.AssertNotCalled(t, "InsertAlert", mock.Anything, mock.Anything)
}

func TestEngine_DuplicateAlertSuppressed(t *testing.T) {
	f := newEngineFixture(t, Options{})

	open := &models.Alert{Title: models.AlertTitleSpeedLimit}
	f.telemetry.On("FindPrevious", mock.Anything, mock.Anything, mock.Anything).Return(nil, db.ErrNotFound)
	f.telemetry.On("InsertSample", mock.Anything, mock.Anything).Return(nil)
	f.vehicles.On("UpdateLastSeen", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.alerts.On("FindOpen", mock.Anything, f.vehicle.ID.Hex(), models.AlertTitleSpeedLimit).Return(open, nil)

	raw := &models.RawSample{SpeedKmh: 95, EngineOn: true}
	_, err := f.engine.Process(context.Background(), f.vehicle, raw)
	require.NoError(t, err)

	f.alerts.AssertNotCalled(t, "InsertAlert", mock.Anything, mock.Anything)
}

func TestEngine_IdlingLoadsRecentWindow(t *testing.T) {
	f := newEngineFixture(t, Options{})

	f.telemetry.On("FindPrevious", mock.Anything, mock.Anything, mock.Anything).Return(nil, db.ErrNotFound)
	f.telemetry.On("InsertSample", mock.Anything, mock.Anything).Return(nil)
	f.telemetry.On("FindWindow", mock.Anything, f.vehicle.ID.Hex(), mock.Anything, mock.Anything).
		Return([]models.TelemetrySample{}, nil)
	f.vehicles.On("UpdateLastSeen", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	raw := &models.RawSample{SpeedKmh: 0, EngineOn: true, FuelLevel: floatPtr(70)}
	_, err := f.engine.Process(context.Background(), f.vehicle, raw)
	require.NoError(t, err)
	f.telemetry.AssertCalled(t, "FindWindow", mock.Anything, f.vehicle.ID.Hex(), mock.Anything, mock.Anything)

	// A moving sample never loads the window.
	f2 := newEngineFixture(t, Options{})
	f2.telemetry.On("FindPrevious", mock.Anything, mock.Anything, mock.Anything).Return(nil, db.ErrNotFound)
	f2.telemetry.On("InsertSample", mock.Anything, mock.Anything).Return(nil)
	f2.vehicles.On("UpdateLastSeen", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	_, err = f2.engine.Process(context.Background(), f2.vehicle, &models.RawSample{SpeedKmh: 40, EngineOn: true})
	require.NoError(t, err)
	f2.telemetry.AssertNotCalled(t, "FindWindow", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestEngine_GeofenceViolation(t *testing.T) {
	f := newEngineFixture(t, Options{GeofenceAlerts: true, GeofenceSeverity: models.SeverityCritical})

	fences := []models.Geofence{
		{CenterLat: 51.5074, CenterLon: -0.1278, RadiusMeters: 1000, IsActive: true},
	}
	f.telemetry.On("FindPrevious", mock.Anything, mock.Anything, mock.Anything).Return(nil, db.ErrNotFound)
	f.telemetry.On("InsertSample", mock.Anything, mock.Anything).Return(nil)
	f.vehicles.On("UpdateLastSeen", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.geofences.On("FindActiveByTenant", mock.Anything, "tenant-1").Return(fences, nil)
	f.alerts.On("FindOpen", mock.Anything, f.vehicle.ID.Hex(), models.AlertTitleGeofence).Return(nil, db.ErrNotFound)
	f.alerts.On("InsertAlert", mock.Anything, mock.MatchedBy(func(a models.Alert) bool {
		return a.Title == models.AlertTitleGeofence && a.Level == models.SeverityCritical
	})).Return(nil)

	// Paris is well outside a 1 km fence around London.
	raw := &models.RawSample{SpeedKmh: 40, EngineOn: true, Latitude: floatPtr(48.8566), Longitude: floatPtr(2.3522)}
	_, err := f.engine.Process(context.Background(), f.vehicle, raw)
	require.NoError(t, err)

	f.alerts.AssertExpectations(t)
}

func TestEngine_ClosedEngineRejects(t *testing.T) {
	f := newEngineFixture(t, Options{})
	f.engine.Close()

	_, err := f.engine.Process(context.Background(), f.vehicle, &models.RawSample{SpeedKmh: 40})
	assert.ErrorIs(t, err, ErrShuttingDown)
}
