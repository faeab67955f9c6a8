package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Vehicle represents a fleet asset.
type Vehicle struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	RegistrationNumber string             `bson:"registration_number" json:"registration_number"`
	VehicleType        string             `bson:"vehicle_type" json:"vehicle_type"` // "truck", "van", "container", "trailer"
	CapacityKg         float64            `bson:"capacity_kg" json:"capacity_kg"`
	IsAvailable        bool               `bson:"is_available" json:"is_available"`
	Model              string             `bson:"model,omitempty" json:"model,omitempty"`
	Year               int                `bson:"year,omitempty" json:"year,omitempty"`
	InsuranceNumber    string             `bson:"insurance_number,omitempty" json:"insurance_number,omitempty"`
	InsuranceExpiry    *time.Time         `bson:"insurance_expiry,omitempty" json:"insurance_expiry,omitempty"`
	AdminID            string             `bson:"admin_id" json:"admin_id"`
	CreatedAt          time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt          time.Time          `bson:"updated_at" json:"updated_at"`
}

// VehicleRef is the joined subset embedded in trip responses.
type VehicleRef struct {
	ID                 string `bson:"id" json:"id"`
	RegistrationNumber string `bson:"registration_number" json:"registration_number"`
	VehicleType        string `bson:"vehicle_type" json:"vehicle_type"`
}

// Ref returns the embeddable subset of a vehicle.
func (v *Vehicle) Ref() *VehicleRef {
	return &VehicleRef{
		ID:                 v.ID.Hex(),
		RegistrationNumber: v.RegistrationNumber,
		VehicleType:        v.VehicleType,
	}
}
