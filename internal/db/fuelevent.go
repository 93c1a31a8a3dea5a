package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/quantafons/bus-telemetry/internal/models"
)

// MongoFuelEventCollection wraps a MongoDB collection for fuel event
// operations.
type MongoFuelEventCollection struct {
	Collection *mongo.Collection
}

// InsertEvent appends one fuel event.
func (c *MongoFuelEventCollection) InsertEvent(ctx context.Context, event models.FuelEvent) error {
	if c.Collection == nil {
		return fmt.Errorf("mongo collection is nil")
	}
	_, err := c.Collection.InsertOne(ctx, event)
	return err
}

// FindWindow returns a vehicle's fuel events in [from, to], newest first.
func (c *MongoFuelEventCollection) FindWindow(ctx context.Context, vehicleID string, from, to time.Time) ([]models.FuelEvent, error) {
	filter := bson.M{
		"vehicle_id": vehicleID,
		"timestamp":  bson.M{"$gte": from, "$lte": to},
	}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}})

	cursor, err := c.Collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []models.FuelEvent
	if err := cursor.All(ctx, &events); err != nil {
		return nil, err
	}
	return events, nil
}

// MongoGeofenceCollection wraps a MongoDB collection for geofence reads.
type MongoGeofenceCollection struct {
	Collection *mongo.Collection
}

// FindActiveByTenant returns a tenant's active geofences.
func (c *MongoGeofenceCollection) FindActiveByTenant(ctx context.Context, tenantID string) ([]models.Geofence, error) {
	cursor, err := c.Collection.Find(ctx, bson.M{"tenant_id": tenantID, "is_active": true})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var fences []models.Geofence
	if err := cursor.All(ctx, &fences); err != nil {
		return nil, err
	}
	return fences, nil
}
