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

// MongoMilestoneCollection implements MilestoneCollection for MongoDB
type MongoMilestoneCollection struct {
	Collection *mongo.Collection
}

// InsertMilestone appends one milestone, stamping ID, recorded_at (server
// observed time) and created_at.
func (c *MongoMilestoneCollection) InsertMilestone(ctx context.Context, milestone *models.Milestone) error {
	if c.Collection == nil {
		return fmt.Errorf("mongo collection is nil")
	}
	if milestone.ID.IsZero() {
		milestone.ID = primitive.NewObjectID()
	}
	milestone.RecordedAt = time.Now()
	milestone.CreatedAt = time.Now()

	_, err := c.Collection.InsertOne(ctx, milestone)
	return err
}

// FindMilestonesByTrip lists a trip's milestones ordered by recorded_at.
// Direction is presentation-specific, so the caller picks it.
func (c *MongoMilestoneCollection) FindMilestonesByTrip(ctx context.Context, tripID string, ascending bool) ([]models.Milestone, error) {
	if c.Collection == nil {
		return nil, fmt.Errorf("mongo collection is nil")
	}

	order := -1
	if ascending {
		order = 1
	}
	opts := options.Find().SetSort(bson.D{{Key: "recorded_at", Value: order}})
	cursor, err := c.Collection.Find(ctx, bson.M{"trip_id": tripID}, opts)
	if err != nil {
		return nil, err
	}

	var milestones []models.Milestone
	if err := cursor.All(ctx, &milestones); err != nil {
		return nil, err
	}
	return milestones, nil
}

// DeleteMilestone removes one milestone by ID. The log is append-only at the
// API surface; this exists solely to compensate a failed status transition.
func (c *MongoMilestoneCollection) DeleteMilestone(ctx context.Context, id string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("invalid milestone ID: %w", err)
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

// MongoMessageCollection implements MessageCollection for MongoDB
type MongoMessageCollection struct {
	Collection *mongo.Collection
}

// InsertMessage appends one chat line, stamping ID and created_at.
func (c *MongoMessageCollection) InsertMessage(ctx context.Context, message *models.Message) error {
	if c.Collection == nil {
		return fmt.Errorf("mongo collection is nil")
	}
	if message.ID.IsZero() {
		message.ID = primitive.NewObjectID()
	}
	message.CreatedAt = time.Now()

	_, err := c.Collection.InsertOne(ctx, message)
	return err
}

// FindMessagesByTrip lists a trip's chat ascending by created_at.
func (c *MongoMessageCollection) FindMessagesByTrip(ctx context.Context, tripID string) ([]models.Message, error) {
	if c.Collection == nil {
		return nil, fmt.Errorf("mongo collection is nil")
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := c.Collection.Find(ctx, bson.M{"trip_id": tripID}, opts)
	if err != nil {
		return nil, err
	}

	var messages []models.Message
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}
