package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role represents user roles in the system
type Role string

const (
	RoleAdmin  Role = "admin"
	RoleClient Role = "client"
	RoleDriver Role = "driver"
)

// Profile represents a user of the coordination system. Drivers created by
// an admin carry the same record shape as self-registered users.
type Profile struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FullName      string             `bson:"full_name" json:"full_name"`
	Phone         string             `bson:"phone" json:"phone"`
	Email         string             `bson:"email" json:"email"`
	PasswordHash  string             `bson:"password_hash" json:"-"`
	Role          Role               `bson:"role" json:"role"`
	IsActive      bool               `bson:"is_active" json:"is_active"`
	IsAvailable   bool               `bson:"is_available" json:"is_available"`
	Age           *int               `bson:"age,omitempty" json:"age,omitempty"`
	LicenseNumber string             `bson:"license_number,omitempty" json:"license_number,omitempty"`
	Remarks       string             `bson:"remarks,omitempty" json:"remarks,omitempty"`
	LastLogin     *time.Time         `bson:"last_login,omitempty" json:"last_login,omitempty"`
	CreatedAt     time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt     time.Time          `bson:"updated_at" json:"updated_at"`
}

// ProfileRef is the joined subset embedded in trip and message responses.
type ProfileRef struct {
	ID       string `bson:"id" json:"id"`
	FullName string `bson:"full_name" json:"full_name"`
	Phone    string `bson:"phone,omitempty" json:"phone,omitempty"`
	Role     Role   `bson:"role,omitempty" json:"role,omitempty"`
}

// Ref returns the embeddable subset of a profile.
func (p *Profile) Ref() *ProfileRef {
	return &ProfileRef{
		ID:       p.ID.Hex(),
		FullName: p.FullName,
		Phone:    p.Phone,
		Role:     p.Role,
	}
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest represents a user registration request
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Phone    string `json:"phone"`
	Role     Role   `json:"role"`
}

// CreateDriverRequest is the admin payload for onboarding a driver.
// Accounts are created with a default password the driver changes later.
type CreateDriverRequest struct {
	FullName      string `json:"full_name"`
	Phone         string `json:"phone"`
	Email         string `json:"email"`
	Age           *int   `json:"age,omitempty"`
	LicenseNumber string `json:"license_number,omitempty"`
	Remarks       string `json:"remarks,omitempty"`
}

// LoginResponse represents a successful login response
type LoginResponse struct {
	Token        string  `json:"token"`
	RefreshToken string  `json:"refresh_token"`
	User         Profile `json:"user"`
}

// Claims represents JWT claims
type Claims struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
	Exp      int64  `json:"exp"`
}

// IsValidRole checks if a role is valid
func IsValidRole(role Role) bool {
	switch role {
	case RoleAdmin, RoleClient, RoleDriver:
		return true
	default:
		return false
	}
}

// HasPermission checks if a user has permission for a specific action
func (p *Profile) HasPermission(action string) bool {
	switch p.Role {
	case RoleAdmin:
		return true
	case RoleClient:
		return action == "create_trip" || action == "view_own_trips" ||
			action == "view_milestones" || action == "send_message"
	case RoleDriver:
		return action == "view_assigned_trip" || action == "record_milestone" ||
			action == "update_trip_status" || action == "view_milestones"
	default:
		return false
	}
}
