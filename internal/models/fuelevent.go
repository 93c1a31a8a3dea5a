package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// FuelEventKind classifies a fuel-level change between two consecutive samples.
type FuelEventKind string

const (
	FuelEventRefuel       FuelEventKind = "REFUEL"
	FuelEventTheft        FuelEventKind = "THEFT"
	FuelEventExcessive    FuelEventKind = "EXCESSIVE_CONSUMPTION"
	FuelEventIdle         FuelEventKind = "IDLE"
	FuelEventDailySummary FuelEventKind = "DAILY_SUMMARY"
)

// Severity grades fuel events and alerts.
type Severity string

const (
	SeverityInfo     Severity = "INFO"
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// FuelEvent is a derived classification of a fuel-level change. Events are
// append-only and never mutated; they remain the durable record after raw
// samples age out.
type FuelEvent struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	VehicleID    string             `bson:"vehicle_id" json:"vehicle_id"`
	TenantID     string             `bson:"tenant_id" json:"tenant_id"`
	Timestamp    time.Time          `bson:"timestamp" json:"timestamp"`
	Kind         FuelEventKind      `bson:"event_type" json:"event_type"`
	AmountLiters float64            `bson:"amount_liters" json:"amount_liters"`
	Details      string             `bson:"details" json:"details"`
	Severity     Severity           `bson:"severity" json:"severity"`
}
