package telemetry

import (
	"testing"
	"time"

	"github.com/quantafons/bus-telemetry/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func testVehicle() *models.Vehicle {
	return &models.Vehicle{
		ID:           primitive.NewObjectID(),
		TenantID:     "tenant-1",
		Name:         "Bus 01",
		TankCapacity: 100,
		IsActive:     true,
	}
}

func TestValidateSample_Accepts(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	vehicle := testVehicle()
	raw := &models.RawSample{
		Latitude:  fuelPtr(51.5),
		Longitude: fuelPtr(-0.12),
		SpeedKmh:  45,
		FuelLevel: fuelPtr(80),
		Odometer:  12345.6,
		EngineOn:  true,
	}

	sample, err := ValidateSample(raw, vehicle, now)
	require.NoError(t, err)
	assert.Equal(t, vehicle.ID.Hex(), sample.VehicleID)
	assert.Equal(t, "tenant-1", sample.TenantID)
	assert.Equal(t, now, sample.Timestamp)
	assert.Equal(t, 45.0, sample.SpeedKmh)
}

func TestValidateSample_KeepsReportedTimestamp(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	reported := now.Add(-2 * time.Minute)
	raw := &models.RawSample{Timestamp: &reported, SpeedKmh: 10}

	sample, err := ValidateSample(raw, testVehicle(), now)
	require.NoError(t, err)
	assert.Equal(t, reported, sample.Timestamp)
}

func TestValidateSample_Rejects(t *testing.T) {
	now := time.Now().UTC()
	vehicle := testVehicle()

	tests := []struct {
		name string
		raw  *models.RawSample
	}{
		{"latitude above 90", &models.RawSample{Latitude: fuelPtr(91), Longitude: fuelPtr(0)}},
		{"latitude below -90", &models.RawSample{Latitude: fuelPtr(-90.5), Longitude: fuelPtr(0)}},
		{"longitude above 180", &models.RawSample{Latitude: fuelPtr(0), Longitude: fuelPtr(181)}},
		{"negative speed", &models.RawSample{SpeedKmh: -1}},
		{"speed above 200", &models.RawSample{SpeedKmh: 200.1}},
		{"negative fuel", &models.RawSample{FuelLevel: fuelPtr(-0.1)}},
		{"fuel above tolerance", &models.RawSample{FuelLevel: fuelPtr(111)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ValidateSample(tt.raw, vehicle, now)
			assert.ErrorIs(t, err, ErrInvalidSample)
		})
	}
}

func TestValidateSample_FuelTolerance(t *testing.T) {
	// Readings up to 110% of the tank pass; gauges overshoot.
	now := time.Now().UTC()
	raw := &models.RawSample{FuelLevel: fuelPtr(109.9)}

	sample, err := ValidateSample(raw, testVehicle(), now)
	require.NoError(t, err)
	assert.InDelta(t, 109.9, *sample.FuelLevel, 1e-9)
}

func TestValidateSample_ClampsNegativeCounters(t *testing.T) {
	now := time.Now().UTC()
	raw := &models.RawSample{FuelFlow: -3, Odometer: -10}

	sample, err := ValidateSample(raw, testVehicle(), now)
	require.NoError(t, err)
	assert.Equal(t, 0.0, sample.FuelFlow)
	assert.Equal(t, 0.0, sample.Odometer)
}

func TestValidateSample_OptionalFieldsStayNil(t *testing.T) {
	now := time.Now().UTC()
	raw := &models.RawSample{SpeedKmh: 30}

	sample, err := ValidateSample(raw, testVehicle(), now)
	require.NoError(t, err)
	assert.Nil(t, sample.Latitude)
	assert.Nil(t, sample.Longitude)
	assert.Nil(t, sample.FuelLevel)
}
