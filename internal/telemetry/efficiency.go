package telemetry

import (
	"errors"
	"time"

	"github.com/quantafons/bus-telemetry/internal/models"
)

// ErrInsufficientData is returned when an efficiency window holds fewer than
// two samples. It signals a caller condition, not an internal fault.
var ErrInsufficientData = errors.New("insufficient telemetry data for analysis")

// SegmentPoint is one adjacent-pair entry in the efficiency timeline.
type SegmentPoint struct {
	Timestamp    time.Time `json:"timestamp"`
	Kmpl         float64   `json:"kmpl"`
	LPer100Km    float64   `json:"l_per_100km"`
	DistanceKm   float64   `json:"distance_km"`
	FuelConsumed float64   `json:"fuel_consumed_l"`
}

// EfficiencyReport aggregates distance and fuel consumption over a sample
// window.
type EfficiencyReport struct {
	OverallKmpl      float64        `json:"overall_kmpl"`
	OverallLPer100Km float64        `json:"overall_l_per_100km"`
	TotalDistanceKm  float64        `json:"total_distance_km"`
	TotalFuelL       float64        `json:"total_fuel_consumed_l"`
	Timeline         []SegmentPoint `json:"efficiency_timeline"`
}

// ComputeEfficiency walks a time-ordered sample sequence for one vehicle and
// accumulates distance and fuel consumption per adjacent pair. Distance
// counts whenever the odometer increased; fuel counts only when the level
// dropped on a pair that also moved, so refueling pairs never contribute
// consumption. Aggregation is idempotent over the same window.
func ComputeEfficiency(samples []models.TelemetrySample) (*EfficiencyReport, error) {
	if len(samples) < 2 {
		return nil, ErrInsufficientData
	}

	report := &EfficiencyReport{Timeline: []SegmentPoint{}}

	for i := 1; i < len(samples); i++ {
		prev := &samples[i-1]
		curr := &samples[i]

		distance := 0.0
		if prev.Odometer > 0 && curr.Odometer > 0 {
			distance = curr.Odometer - prev.Odometer
			if distance > 0 {
				report.TotalDistanceKm += distance
			}
		}

		if prev.FuelLevel == nil || curr.FuelLevel == nil {
			continue
		}
		fuelDiff := *prev.FuelLevel - *curr.FuelLevel
		if fuelDiff > 0 && distance > 0 {
			report.TotalFuelL += fuelDiff
			report.Timeline = append(report.Timeline, SegmentPoint{
				Timestamp:    curr.Timestamp,
				Kmpl:         distance / fuelDiff,
				LPer100Km:    (fuelDiff / distance) * 100,
				DistanceKm:   distance,
				FuelConsumed: fuelDiff,
			})
		}
	}

	if report.TotalFuelL > 0 {
		report.OverallKmpl = report.TotalDistanceKm / report.TotalFuelL
	}
	if report.TotalDistanceKm > 0 {
		report.OverallLPer100Km = (report.TotalFuelL / report.TotalDistanceKm) * 100
	}
	return report, nil
}
