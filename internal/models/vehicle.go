package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Vehicle represents a school bus in the fleet registry. The telemetry core
// reads tank capacity and the active flag and writes LastSeen; everything
// else is owned by the registry.
type Vehicle struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID       string             `bson:"tenant_id" json:"tenant_id"`
	Name           string             `bson:"name" json:"name"`
	RegistrationNo string             `bson:"registration_no" json:"registration_no"`
	Capacity       int                `bson:"capacity" json:"capacity"`
	DriverID       string             `bson:"driver_id,omitempty" json:"driver_id,omitempty"`
	IsActive       bool               `bson:"is_active" json:"is_active"`
	TankCapacity   float64            `bson:"fuel_tank_capacity" json:"fuel_tank_capacity"` // liters
	TokenHash      string             `bson:"token_hash" json:"-"`
	LastSeen       *time.Time         `bson:"last_seen,omitempty" json:"last_seen,omitempty"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
}

// RegisterVehicleRequest is the payload for registering a new bus.
type RegisterVehicleRequest struct {
	Name           string  `json:"name"`
	RegistrationNo string  `json:"registration_no"`
	Capacity       int     `json:"capacity"`
	TankCapacity   float64 `json:"fuel_tank_capacity"`
}

// RegisterVehicleResponse carries the one-time credential issued at
// registration. The token is never stored in clear and cannot be recovered.
type RegisterVehicleResponse struct {
	VehicleID string `json:"vehicle_id"`
	Token     string `json:"token"`
}
