package db

import (
	"context"
	"fmt"
	"time"

	"github.com/shiplink/fleet-coordination/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoTripCollection implements TripCollection for MongoDB
type MongoTripCollection struct {
	Collection *mongo.Collection
}

// InsertTrip inserts a trip record, stamping ID and timestamps.
func (c *MongoTripCollection) InsertTrip(ctx context.Context, trip *models.Trip) error {
	if c.Collection == nil {
		return fmt.Errorf("mongo collection is nil")
	}
	if trip.ID.IsZero() {
		trip.ID = primitive.NewObjectID()
	}
	trip.CreatedAt = time.Now()
	trip.UpdatedAt = time.Now()

	_, err := c.Collection.InsertOne(ctx, trip)
	return err
}

// FindTripByID finds a trip by its ID.
func (c *MongoTripCollection) FindTripByID(ctx context.Context, id string) (*models.Trip, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid trip ID: %w", err)
	}

	var trip models.Trip
	err = c.Collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&trip)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &trip, nil
}

// FindTripsByStatus lists trips in any of the given statuses, sorted on the
// requested field.
func (c *MongoTripCollection) FindTripsByStatus(ctx context.Context, statuses []models.TripStatus, sortField string, ascending bool) ([]models.Trip, error) {
	order := -1
	if ascending {
		order = 1
	}
	if sortField == "" {
		sortField = "created_at"
	}

	opts := options.Find().SetSort(bson.D{{Key: sortField, Value: order}})
	cursor, err := c.Collection.Find(ctx, bson.M{"status": bson.M{"$in": statuses}}, opts)
	if err != nil {
		return nil, err
	}

	var trips []models.Trip
	if err := cursor.All(ctx, &trips); err != nil {
		return nil, err
	}
	return trips, nil
}

// FindTripsByClient lists a client's trips, newest first.
func (c *MongoTripCollection) FindTripsByClient(ctx context.Context, clientID string) ([]models.Trip, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := c.Collection.Find(ctx, bson.M{"client_id": clientID}, opts)
	if err != nil {
		return nil, err
	}

	var trips []models.Trip
	if err := cursor.All(ctx, &trips); err != nil {
		return nil, err
	}
	return trips, nil
}

// FindCurrentTripByDriver returns the driver's latest assigned or active
// trip, or ErrNotFound when the driver has none.
func (c *MongoTripCollection) FindCurrentTripByDriver(ctx context.Context, driverID string) (*models.Trip, error) {
	filter := bson.M{
		"driver_id": driverID,
		"status":    bson.M{"$in": []models.TripStatus{models.StatusAssigned, models.StatusActive}},
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var trip models.Trip
	err := c.Collection.FindOne(ctx, filter, opts).Decode(&trip)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &trip, nil
}

// UpdateTrip applies a partial update to a trip row. Concurrent writers are
// not serialized beyond the single-document write: last write wins.
func (c *MongoTripCollection) UpdateTrip(ctx context.Context, id string, update bson.M) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid trip ID: %w", err)
	}

	update["updated_at"] = time.Now()
	result, err := c.Collection.UpdateOne(ctx, bson.M{"_id": objectID}, bson.M{"$set": update})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTrip deletes a trip by its ID.
func (c *MongoTripCollection) DeleteTrip(ctx context.Context, id string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid trip ID: %w", err)
	}

	result, err := c.Collection.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}
