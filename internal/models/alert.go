package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Alert titles the engine and scheduled jobs create. At most one
// unacknowledged alert may exist per (vehicle, title) at any time.
const (
	AlertTitleSpeedLimit = "Speed Limit Exceeded"
	AlertTitleLowFuel    = "Low Fuel Level"
	AlertTitleIdling     = "Extended Idling Detected"
	AlertTitleOffline    = "Bus Offline"
	AlertTitleGeofence   = "Geofence Violation"
)

// Alert is a user-facing, acknowledgeable notification. It is mutable only
// via acknowledgment.
type Alert struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	VehicleID      string             `bson:"vehicle_id" json:"vehicle_id"`
	TenantID       string             `bson:"tenant_id" json:"tenant_id"`
	Timestamp      time.Time          `bson:"timestamp" json:"timestamp"`
	Level          Severity           `bson:"level" json:"level"`
	Title          string             `bson:"title" json:"title"`
	Message        string             `bson:"message" json:"message"`
	IsAcknowledged bool               `bson:"is_acknowledged" json:"is_acknowledged"`
	AcknowledgedBy string             `bson:"acknowledged_by,omitempty" json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time         `bson:"acknowledged_at,omitempty" json:"acknowledged_at,omitempty"`
}
