package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TripStatus is the lifecycle state of a shipment.
type TripStatus string

const (
	StatusPending   TripStatus = "pending"
	StatusAssigned  TripStatus = "assigned"
	StatusActive    TripStatus = "active"
	StatusCompleted TripStatus = "completed"
	StatusCancelled TripStatus = "cancelled"
)

// Trip represents a shipment engagement. Driver and vehicle stay unset while
// the trip is pending and are always set together by assignment.
type Trip struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ClientID       string             `bson:"client_id" json:"client_id"`
	DriverID       string             `bson:"driver_id,omitempty" json:"driver_id,omitempty"`
	VehicleID      string             `bson:"vehicle_id,omitempty" json:"vehicle_id,omitempty"`
	Status         TripStatus         `bson:"status" json:"status"`
	BilledAmount   float64            `bson:"billed_amount" json:"billed_amount"`
	AmountReceived float64            `bson:"amount_received" json:"amount_received"`
	PickupLocation string             `bson:"pickup_location" json:"pickup_location"`
	DropLocation   string             `bson:"drop_location" json:"drop_location"`
	Notes          string             `bson:"notes,omitempty" json:"notes,omitempty"`
	CreatedAt      time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time          `bson:"updated_at" json:"updated_at"`

	// Joined parties, filled by handlers, never persisted.
	Client  *ProfileRef `bson:"-" json:"client,omitempty"`
	Driver  *ProfileRef `bson:"-" json:"driver,omitempty"`
	Vehicle *VehicleRef `bson:"-" json:"vehicle,omitempty"`
}

// IsValidTripStatus checks if a status is one of the lifecycle states.
func IsValidTripStatus(s TripStatus) bool {
	switch s {
	case StatusPending, StatusAssigned, StatusActive, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

// CanTransition reports whether a status change follows the lifecycle
// pending → assigned → active → completed. Cancellation is reachable from
// pending only (admin deletes the request).
func (t *Trip) CanTransition(to TripStatus) bool {
	switch t.Status {
	case StatusPending:
		return to == StatusAssigned || to == StatusCancelled
	case StatusAssigned:
		return to == StatusActive
	case StatusActive:
		return to == StatusCompleted
	default:
		return false
	}
}

// CreateTripRequest is the client payload for a new shipment request.
type CreateTripRequest struct {
	PickupLocation string  `json:"pickup_location"`
	DropLocation   string  `json:"drop_location"`
	BilledAmount   float64 `json:"billed_amount"`
	Notes          string  `json:"notes,omitempty"`
}

// AssignTripRequest binds one driver and one vehicle to a pending trip.
// Partial assignment is not a valid state, so both IDs are required.
type AssignTripRequest struct {
	DriverID  string `json:"driver_id"`
	VehicleID string `json:"vehicle_id"`
}
