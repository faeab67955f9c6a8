package models

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MilestoneType is the kind of event a driver logs against a trip.
type MilestoneType string

const (
	MilestonePickup MilestoneType = "pickup"
	MilestoneBreak  MilestoneType = "break"
	MilestoneFuel   MilestoneType = "fuel"
	MilestoneToll   MilestoneType = "toll"
	MilestoneDrop   MilestoneType = "drop"
)

// MilestoneMetadata is a tagged variant: which fields are meaningful depends
// on the milestone type. ValidateFor enforces the shape per type.
type MilestoneMetadata struct {
	FuelCost     *float64 `bson:"fuel_cost,omitempty" json:"fuel_cost,omitempty"`
	Liters       *float64 `bson:"liters,omitempty" json:"liters,omitempty"`
	TollAmount   *float64 `bson:"toll_amount,omitempty" json:"toll_amount,omitempty"`
	DurationMins *int     `bson:"duration_mins,omitempty" json:"duration_mins,omitempty"`
	Notes        string   `bson:"notes,omitempty" json:"notes,omitempty"`
}

// Milestone is one append-only log entry for a trip.
type Milestone struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TripID       string             `bson:"trip_id" json:"trip_id"`
	Type         MilestoneType      `bson:"type" json:"type"`
	LocationName string             `bson:"location_name,omitempty" json:"location_name,omitempty"`
	RecordedAt   time.Time          `bson:"recorded_at" json:"recorded_at"`
	Metadata     MilestoneMetadata  `bson:"metadata" json:"metadata"`
	CreatedAt    time.Time          `bson:"created_at" json:"created_at"`
}

// IsValidMilestoneType checks if a milestone type is known.
func IsValidMilestoneType(t MilestoneType) bool {
	switch t {
	case MilestonePickup, MilestoneBreak, MilestoneFuel, MilestoneToll, MilestoneDrop:
		return true
	default:
		return false
	}
}

// ValidateFor checks that the metadata carries the fields its milestone type
// requires and that amounts are sane.
func (m MilestoneMetadata) ValidateFor(t MilestoneType) error {
	switch t {
	case MilestoneFuel:
		if m.FuelCost == nil || *m.FuelCost <= 0 {
			return errors.New("fuel milestone requires a positive fuel_cost")
		}
		if m.Liters != nil && *m.Liters <= 0 {
			return errors.New("liters must be positive")
		}
	case MilestoneToll:
		if m.TollAmount == nil || *m.TollAmount <= 0 {
			return errors.New("toll milestone requires a positive toll_amount")
		}
	case MilestoneBreak:
		if m.DurationMins != nil && *m.DurationMins <= 0 {
			return errors.New("duration_mins must be positive")
		}
	case MilestonePickup, MilestoneDrop:
		// Location and notes only.
	default:
		return errors.New("unknown milestone type")
	}
	return nil
}

// RecordMilestoneRequest is the driver payload for logging an event.
type RecordMilestoneRequest struct {
	Type         MilestoneType     `json:"type"`
	LocationName string            `json:"location_name,omitempty"`
	Metadata     MilestoneMetadata `json:"metadata"`
}
