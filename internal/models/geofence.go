package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Geofence is a circular region used to test vehicle location containment.
// Read-only input to the alert engine.
type Geofence struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID     string             `bson:"tenant_id" json:"tenant_id"`
	Name         string             `bson:"name" json:"name"`
	CenterLat    float64            `bson:"center_latitude" json:"center_latitude"`
	CenterLon    float64            `bson:"center_longitude" json:"center_longitude"`
	RadiusMeters float64            `bson:"radius_meters" json:"radius_meters"`
	IsActive     bool               `bson:"is_active" json:"is_active"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
}
