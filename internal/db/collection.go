package db

import (
	"context"
	"errors"

	"github.com/shiplink/fleet-coordination/internal/models"
	"go.mongodb.org/mongo-driver/bson"
)

// ErrNotFound is returned when a lookup matches no document.
var ErrNotFound = errors.New("not found")

// ProfileCollection defines the interface for profile operations.
type ProfileCollection interface {
	InsertProfile(ctx context.Context, profile *models.Profile) error
	FindProfileByID(ctx context.Context, id string) (*models.Profile, error)
	FindProfileByEmail(ctx context.Context, email string) (*models.Profile, error)
	FindProfilesByIDs(ctx context.Context, ids []string) (map[string]*models.Profile, error)
	FindDrivers(ctx context.Context, onlyActive bool) ([]models.Profile, error)
	UpdateProfile(ctx context.Context, id string, update bson.M) error
	UpdateLastLogin(ctx context.Context, id string) error
}

// VehicleCollection defines the interface for vehicle operations.
type VehicleCollection interface {
	InsertVehicle(ctx context.Context, vehicle *models.Vehicle) error
	FindVehicles(ctx context.Context) ([]models.Vehicle, error)
	FindAvailableVehicles(ctx context.Context) ([]models.Vehicle, error)
	FindVehicleByID(ctx context.Context, id string) (*models.Vehicle, error)
	FindVehicleByRegistration(ctx context.Context, registration string) (*models.Vehicle, error)
	FindVehiclesByIDs(ctx context.Context, ids []string) (map[string]*models.Vehicle, error)
	UpdateVehicle(ctx context.Context, id string, update bson.M) error
	SetAvailability(ctx context.Context, id string, available bool) error
	DeleteVehicle(ctx context.Context, id string) error
}

// TripCollection defines the interface for trip operations.
type TripCollection interface {
	InsertTrip(ctx context.Context, trip *models.Trip) error
	FindTripByID(ctx context.Context, id string) (*models.Trip, error)
	FindTripsByStatus(ctx context.Context, statuses []models.TripStatus, sortField string, ascending bool) ([]models.Trip, error)
	FindTripsByClient(ctx context.Context, clientID string) ([]models.Trip, error)
	FindCurrentTripByDriver(ctx context.Context, driverID string) (*models.Trip, error)
	UpdateTrip(ctx context.Context, id string, update bson.M) error
	DeleteTrip(ctx context.Context, id string) error
}

// MilestoneCollection defines the interface for the append-only milestone log.
type MilestoneCollection interface {
	InsertMilestone(ctx context.Context, milestone *models.Milestone) error
	FindMilestonesByTrip(ctx context.Context, tripID string, ascending bool) ([]models.Milestone, error)
	DeleteMilestone(ctx context.Context, id string) error
}

// MessageCollection defines the interface for the per-trip chat log.
type MessageCollection interface {
	InsertMessage(ctx context.Context, message *models.Message) error
	FindMessagesByTrip(ctx context.Context, tripID string) ([]models.Message, error)
}
