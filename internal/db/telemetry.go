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

// MongoTelemetryCollection wraps a MongoDB collection for sample operations.
type MongoTelemetryCollection struct {
	Collection *mongo.Collection
}

// InsertSample appends one sample.
func (c *MongoTelemetryCollection) InsertSample(ctx context.Context, sample models.TelemetrySample) error {
	if c.Collection == nil {
		return fmt.Errorf("mongo collection is nil")
	}
	_, err := c.Collection.InsertOne(ctx, sample)
	return err
}

// FindPrevious returns the nearest sample strictly earlier than the given
// instant for a vehicle.
func (c *MongoTelemetryCollection) FindPrevious(ctx context.Context, vehicleID string, before time.Time) (*models.TelemetrySample, error) {
	filter := bson.M{
		"vehicle_id": vehicleID,
		"timestamp":  bson.M{"$lt": before},
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "timestamp", Value: -1}})

	var sample models.TelemetrySample
	err := c.Collection.FindOne(ctx, filter, opts).Decode(&sample)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sample, nil
}

// Latest returns the newest sample for a vehicle.
func (c *MongoTelemetryCollection) Latest(ctx context.Context, vehicleID string) (*models.TelemetrySample, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "timestamp", Value: -1}})

	var sample models.TelemetrySample
	err := c.Collection.FindOne(ctx, bson.M{"vehicle_id": vehicleID}, opts).Decode(&sample)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &sample, nil
}

// FindWindow returns a vehicle's samples in [from, to] in timestamp order.
func (c *MongoTelemetryCollection) FindWindow(ctx context.Context, vehicleID string, from, to time.Time) ([]models.TelemetrySample, error) {
	filter := bson.M{
		"vehicle_id": vehicleID,
		"timestamp":  bson.M{"$gte": from, "$lte": to},
	}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}})

	cursor, err := c.Collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var samples []models.TelemetrySample
	if err := cursor.All(ctx, &samples); err != nil {
		return nil, err
	}
	return samples, nil
}

// DeleteOlderThan removes samples older than the cutoff and reports how many
// were deleted.
func (c *MongoTelemetryCollection) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := c.Collection.DeleteMany(ctx, bson.M{"timestamp": bson.M{"$lt": cutoff}})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}
