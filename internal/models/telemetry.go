package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TelemetrySample is one timestamped reading from a vehicle. Samples are
// append-only per vehicle: created by ingestion, never updated, deleted only
// by the retention reaper.
type TelemetrySample struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	VehicleID string             `bson:"vehicle_id" json:"vehicle_id"`
	TenantID  string             `bson:"tenant_id" json:"tenant_id"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
	Latitude  *float64           `bson:"latitude,omitempty" json:"latitude,omitempty"`
	Longitude *float64           `bson:"longitude,omitempty" json:"longitude,omitempty"`
	SpeedKmh  float64            `bson:"speed_kmh" json:"speed_kmh"`
	FuelLevel *float64           `bson:"fuel_level_liters,omitempty" json:"fuel_level_liters,omitempty"`
	FuelFlow  float64            `bson:"fuel_flow_lph" json:"fuel_flow_lph"`
	Odometer  float64            `bson:"odometer_km" json:"odometer_km"`
	EngineOn  bool               `bson:"engine_on" json:"engine_on"`
	Heading   *float64           `bson:"heading,omitempty" json:"heading,omitempty"`
	Altitude  *float64           `bson:"altitude,omitempty" json:"altitude,omitempty"`
}

// RawSample is the wire form of a sample as submitted by a vehicle, before
// validation. Optional fields stay nil when the sensor did not report them.
type RawSample struct {
	Timestamp *time.Time `json:"timestamp,omitempty"`
	Latitude  *float64   `json:"latitude,omitempty"`
	Longitude *float64   `json:"longitude,omitempty"`
	SpeedKmh  float64    `json:"speed_kmh"`
	FuelLevel *float64   `json:"fuel_level_liters,omitempty"`
	FuelFlow  float64    `json:"fuel_flow_lph"`
	Odometer  float64    `json:"odometer_km"`
	EngineOn  bool       `json:"engine_on"`
	Heading   *float64   `json:"heading,omitempty"`
	Altitude  *float64   `json:"altitude,omitempty"`
}

// TelemetryUpdate is the realtime payload fanned out to tenant subscribers
// after a sample has been accepted and classified.
type TelemetryUpdate struct {
	VehicleID string    `json:"vehicle_id"`
	Latitude  *float64  `json:"latitude,omitempty"`
	Longitude *float64  `json:"longitude,omitempty"`
	SpeedKmh  float64   `json:"speed_kmh"`
	FuelLevel *float64  `json:"fuel_level_liters,omitempty"`
	EngineOn  bool      `json:"engine_on"`
	Timestamp time.Time `json:"timestamp"`
}
