package telemetry

import (
	"testing"
	"time"

	"github.com/quantafons/bus-telemetry/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fuelPtr(v float64) *float64 { return &v }

func makeSample(ts time.Time, fuel float64, speed float64, engineOn bool) *models.TelemetrySample {
	return &models.TelemetrySample{
		VehicleID: "bus-1",
		TenantID:  "tenant-1",
		Timestamp: ts,
		SpeedKmh:  speed,
		FuelLevel: fuelPtr(fuel),
		EngineOn:  engineOn,
	}
}

func TestClassify_Refuel(t *testing.T) {
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	prev := makeSample(base, 40, 0, false)
	curr := makeSample(base.Add(10*time.Minute), 55, 0, false)

	event := Classify(prev, curr)
	require.NotNil(t, event)
	assert.Equal(t, models.FuelEventRefuel, event.Kind)
	assert.Equal(t, models.SeverityInfo, event.Severity)
	assert.InDelta(t, 15.0, event.AmountLiters, 1e-9)
	assert.Equal(t, "Fuel refill detected: 15.0L added", event.Details)
}

func TestClassify_Theft(t *testing.T) {
	base := time.Date(2026, 3, 1, 22, 0, 0, 0, time.UTC)
	prev := makeSample(base, 50, 0, false)
	curr := makeSample(base.Add(30*time.Minute), 44, 0, false)

	event := Classify(prev, curr)
	require.NotNil(t, event)
	assert.Equal(t, models.FuelEventTheft, event.Kind)
	assert.Equal(t, models.SeverityCritical, event.Severity)
	assert.InDelta(t, 6.0, event.AmountLiters, 1e-9)
}

func TestClassify_TheftRequiresStationaryEngineOff(t *testing.T) {
	base := time.Date(2026, 3, 1, 22, 0, 0, 0, time.UTC)
	prev := makeSample(base, 50, 0, false)

	// Moving: the same drop is not theft.
	moving := makeSample(base.Add(5*time.Minute), 44, 30, true)
	event := Classify(prev, moving)
	require.NotNil(t, event)
	assert.NotEqual(t, models.FuelEventTheft, event.Kind)

	// Engine running while stationary: also not theft.
	running := makeSample(base.Add(5*time.Minute), 44, 0, true)
	event = Classify(prev, running)
	if event != nil {
		assert.NotEqual(t, models.FuelEventTheft, event.Kind)
	}
}

func TestClassify_TheftUnboundedByElapsedTime(t *testing.T) {
	// A large drop across an overnight gap still classifies as theft.
	base := time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)
	prev := makeSample(base, 80, 0, false)
	curr := makeSample(base.Add(10*time.Hour), 60, 0, false)

	event := Classify(prev, curr)
	require.NotNil(t, event)
	assert.Equal(t, models.FuelEventTheft, event.Kind)
}

func TestClassify_ExcessiveConsumption(t *testing.T) {
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	// 4L over 10 minutes while moving: 24 L/h, above the 15 L/h bound.
	prev := makeSample(base, 50, 60, true)
	curr := makeSample(base.Add(10*time.Minute), 46, 60, true)

	event := Classify(prev, curr)
	require.NotNil(t, event)
	assert.Equal(t, models.FuelEventExcessive, event.Kind)
	assert.Equal(t, models.SeverityWarning, event.Severity)
	assert.Equal(t, "High fuel consumption: 24.0L/hour", event.Details)
}

func TestClassify_Idle(t *testing.T) {
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	// 1L burned over 1 hour while parked with the engine on.
	prev := makeSample(base, 50, 0, true)
	curr := makeSample(base.Add(time.Hour), 49, 0, true)

	event := Classify(prev, curr)
	require.NotNil(t, event)
	assert.Equal(t, models.FuelEventIdle, event.Kind)
	assert.Equal(t, models.SeverityWarning, event.Severity)
	assert.InDelta(t, 1.0, event.AmountLiters, 1e-9)
}

func TestClassify_ThresholdsAreStrict(t *testing.T) {
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		prev *models.TelemetrySample
		curr *models.TelemetrySample
	}{
		{
			name: "gain of exactly 10L is not a refuel",
			prev: makeSample(base, 40, 0, false),
			curr: makeSample(base.Add(10*time.Minute), 50, 0, false),
		},
		{
			name: "drop of exactly 5L while parked is not theft",
			prev: makeSample(base, 50, 0, false),
			curr: makeSample(base.Add(3*time.Hour), 45, 0, false),
		},
		{
			name: "drop of exactly 2L never reaches the rate check",
			prev: makeSample(base, 50, 60, true),
			curr: makeSample(base.Add(time.Minute), 48, 60, true),
		},
		{
			name: "rate of exactly 15L per hour is not excessive",
			prev: makeSample(base, 50, 60, true),
			curr: makeSample(base.Add(12*time.Minute), 47, 60, true),
		},
		{
			name: "idle drop of exactly 0.5L does not fire",
			prev: makeSample(base, 50, 0, true),
			curr: makeSample(base.Add(time.Hour), 49.5, 0, true),
		},
		{
			name: "idle under half an hour does not fire",
			prev: makeSample(base, 50, 0, true),
			curr: makeSample(base.Add(20*time.Minute), 49, 0, true),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Nil(t, Classify(tt.prev, tt.curr))
		})
	}
}

func TestClassify_TheftWinsOverExcessive(t *testing.T) {
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	// 6L in 10 minutes while parked with engine off satisfies both the
	// theft and the rate predicates; theft has precedence.
	prev := makeSample(base, 50, 0, false)
	curr := makeSample(base.Add(10*time.Minute), 44, 0, false)

	event := Classify(prev, curr)
	require.NotNil(t, event)
	assert.Equal(t, models.FuelEventTheft, event.Kind)
}

func TestClassify_NoPreviousOrNoFuel(t *testing.T) {
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	curr := makeSample(base, 50, 0, false)

	assert.Nil(t, Classify(nil, curr))

	noFuel := makeSample(base.Add(time.Minute), 0, 0, false)
	noFuel.FuelLevel = nil
	assert.Nil(t, Classify(curr, noFuel))

	prevNoFuel := makeSample(base, 0, 0, false)
	prevNoFuel.FuelLevel = nil
	assert.Nil(t, Classify(prevNoFuel, curr))
}

func TestClassify_Deterministic(t *testing.T) {
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	prev := makeSample(base, 50, 0, false)
	curr := makeSample(base.Add(10*time.Minute), 44, 0, false)

	first := Classify(prev, curr)
	second := Classify(prev, curr)
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.Equal(t, first.Kind, second.Kind)
	assert.Equal(t, first.Details, second.Details)
	assert.Equal(t, first.AmountLiters, second.AmountLiters)
}

func TestAlertTitleFor(t *testing.T) {
	assert.Equal(t, "Fuel Theft Detected", AlertTitleFor(models.FuelEventTheft))
	assert.Equal(t, "Fuel Excessive Consumption Detected", AlertTitleFor(models.FuelEventExcessive))
	assert.Equal(t, "Fuel Idle Detected", AlertTitleFor(models.FuelEventIdle))
}
