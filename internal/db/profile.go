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

// MongoProfileCollection implements ProfileCollection for MongoDB
type MongoProfileCollection struct {
	Collection *mongo.Collection
}

// InsertProfile inserts a new profile, stamping ID and timestamps.
func (c *MongoProfileCollection) InsertProfile(ctx context.Context, profile *models.Profile) error {
	if c.Collection == nil {
		return fmt.Errorf("mongo collection is nil")
	}
	if profile.ID.IsZero() {
		profile.ID = primitive.NewObjectID()
	}
	profile.CreatedAt = time.Now()
	profile.UpdatedAt = time.Now()

	_, err := c.Collection.InsertOne(ctx, profile)
	return err
}

// FindProfileByID finds a profile by its ID
func (c *MongoProfileCollection) FindProfileByID(ctx context.Context, id string) (*models.Profile, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	var profile models.Profile
	err = c.Collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&profile)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &profile, nil
}

// FindProfileByEmail finds a profile by its email
func (c *MongoProfileCollection) FindProfileByEmail(ctx context.Context, email string) (*models.Profile, error) {
	var profile models.Profile
	err := c.Collection.FindOne(ctx, bson.M{"email": email}).Decode(&profile)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return &profile, nil
}

// FindProfilesByIDs fetches a batch of profiles keyed by hex ID. Used to
// join trip parties without N+1 lookups.
func (c *MongoProfileCollection) FindProfilesByIDs(ctx context.Context, ids []string) (map[string]*models.Profile, error) {
	objectIDs := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		objectID, err := primitive.ObjectIDFromHex(id)
		if err != nil {
			continue
		}
		objectIDs = append(objectIDs, objectID)
	}

	result := make(map[string]*models.Profile, len(objectIDs))
	if len(objectIDs) == 0 {
		return result, nil
	}

	cursor, err := c.Collection.Find(ctx, bson.M{"_id": bson.M{"$in": objectIDs}})
	if err != nil {
		return nil, err
	}
	var profiles []models.Profile
	if err := cursor.All(ctx, &profiles); err != nil {
		return nil, err
	}
	for i := range profiles {
		result[profiles[i].ID.Hex()] = &profiles[i]
	}
	return result, nil
}

// FindDrivers lists driver profiles ordered by name, optionally only the
// active ones (the assignment read model).
func (c *MongoProfileCollection) FindDrivers(ctx context.Context, onlyActive bool) ([]models.Profile, error) {
	filter := bson.M{"role": models.RoleDriver}
	if onlyActive {
		filter["is_active"] = true
	}

	opts := options.Find().SetSort(bson.D{{Key: "full_name", Value: 1}})
	cursor, err := c.Collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}

	var drivers []models.Profile
	if err := cursor.All(ctx, &drivers); err != nil {
		return nil, err
	}
	return drivers, nil
}

// UpdateProfile applies a partial update to a profile by its ID.
func (c *MongoProfileCollection) UpdateProfile(ctx context.Context, id string, update bson.M) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
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

// UpdateLastLogin updates the last login timestamp for a profile
func (c *MongoProfileCollection) UpdateLastLogin(ctx context.Context, id string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return err
	}

	_, err = c.Collection.UpdateOne(ctx, bson.M{"_id": objectID}, bson.M{"$set": bson.M{"last_login": time.Now()}})
	return err
}
