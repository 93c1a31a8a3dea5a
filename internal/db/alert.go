package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/quantafons/bus-telemetry/internal/models"
)

// MongoAlertCollection wraps a MongoDB collection for alert operations.
type MongoAlertCollection struct {
	Collection *mongo.Collection
}

// InsertAlert inserts an alert record.
func (c *MongoAlertCollection) InsertAlert(ctx context.Context, alert models.Alert) error {
	if c.Collection == nil {
		return fmt.Errorf("mongo collection is nil")
	}
	_, err := c.Collection.InsertOne(ctx, alert)
	return err
}

// FindOpen returns the unacknowledged alert with the given title for a
// vehicle, or ErrNotFound when none is open.
func (c *MongoAlertCollection) FindOpen(ctx context.Context, vehicleID, title string) (*models.Alert, error) {
	filter := bson.M{
		"vehicle_id":      vehicleID,
		"title":           title,
		"is_acknowledged": false,
	}

	var alert models.Alert
	err := c.Collection.FindOne(ctx, filter).Decode(&alert)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

// FindByTenant returns a tenant's alerts, newest first, optionally filtered
// to unacknowledged ones.
func (c *MongoAlertCollection) FindByTenant(ctx context.Context, tenantID string, unacknowledgedOnly bool, limit int64) ([]models.Alert, error) {
	filter := bson.M{"tenant_id": tenantID}
	if unacknowledgedOnly {
		filter["is_acknowledged"] = false
	}
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: -1}}).SetLimit(limit)

	cursor, err := c.Collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var alerts []models.Alert
	if err := cursor.All(ctx, &alerts); err != nil {
		return nil, err
	}
	return alerts, nil
}

// Acknowledge marks an alert acknowledged, recording who and when. The only
// permitted mutation of an alert. The tenant filter keeps one tenant from
// acknowledging another's alerts.
func (c *MongoAlertCollection) Acknowledge(ctx context.Context, id, tenantID, userID string, at time.Time) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid alert ID: %w", err)
	}
	update := bson.M{"$set": bson.M{
		"is_acknowledged": true,
		"acknowledged_by": userID,
		"acknowledged_at": at,
	}}
	result, err := c.Collection.UpdateOne(ctx, bson.M{"_id": objectID, "tenant_id": tenantID}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
