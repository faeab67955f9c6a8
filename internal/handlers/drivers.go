package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
	"github.com/shiplink/fleet-coordination/internal/auth"
	"github.com/shiplink/fleet-coordination/internal/db"
	"github.com/shiplink/fleet-coordination/internal/events"
	"github.com/shiplink/fleet-coordination/internal/models"
	"go.mongodb.org/mongo-driver/bson"
)

// Drivers onboarded by an admin start with this password and are expected
// to change it on first login.
const defaultDriverPassword = "test1234"

// DriverHandler handles the admin-facing driver roster.
type DriverHandler struct {
	authService *auth.Service
	profiles    db.ProfileCollection
	bus         *events.Bus
}

// NewDriverHandler creates a new driver handler
func NewDriverHandler(authService *auth.Service, profiles db.ProfileCollection, bus *events.Bus) *DriverHandler {
	return &DriverHandler{
		authService: authService,
		profiles:    profiles,
		bus:         bus,
	}
}

// CreateDriver onboards a driver account. Drivers do not self-register.
func (h *DriverHandler) CreateDriver(w http.ResponseWriter, r *http.Request) {
	var req models.CreateDriverRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.authService.ValidateEmail(req.Email); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.authService.ValidateFullName(req.FullName); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.authService.ValidatePhone(req.Phone); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Age != nil && (*req.Age < 18 || *req.Age > 80) {
		http.Error(w, "Driver age must be between 18 and 80", http.StatusBadRequest)
		return
	}

	if _, err := h.profiles.FindProfileByEmail(r.Context(), req.Email); err == nil {
		http.Error(w, "Email already exists", http.StatusConflict)
		return
	}

	passwordHash, err := h.authService.HashPassword(defaultDriverPassword)
	if err != nil {
		http.Error(w, "Failed to hash password", http.StatusInternalServerError)
		return
	}

	driver := models.Profile{
		FullName:      req.FullName,
		Phone:         req.Phone,
		Email:         req.Email,
		PasswordHash:  passwordHash,
		Role:          models.RoleDriver,
		IsActive:      true,
		IsAvailable:   true,
		Age:           req.Age,
		LicenseNumber: req.LicenseNumber,
		Remarks:       req.Remarks,
	}

	if err := h.profiles.InsertProfile(r.Context(), &driver); err != nil {
		http.Error(w, "Failed to create driver", http.StatusInternalServerError)
		return
	}

	h.bus.Publish(events.TableProfiles, events.EventInsert, driver.ID.Hex(), "")
	log.WithFields(log.Fields{
		"driver_id": driver.ID.Hex(),
		"email":     driver.Email,
	}).Info("Driver onboarded")

	writeJSON(w, http.StatusCreated, driver)
}

// ListDrivers returns every driver on the roster, active or not.
func (h *DriverHandler) ListDrivers(w http.ResponseWriter, r *http.Request) {
	drivers, err := h.profiles.FindDrivers(r.Context(), false)
	if err != nil {
		http.Error(w, "Failed to list drivers", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, drivers)
}

// ListActiveDrivers returns drivers eligible for assignment.
func (h *DriverHandler) ListActiveDrivers(w http.ResponseWriter, r *http.Request) {
	drivers, err := h.profiles.FindDrivers(r.Context(), true)
	if err != nil {
		http.Error(w, "Failed to list drivers", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, drivers)
}

// UpdateDriver edits roster details for one driver.
func (h *DriverHandler) UpdateDriver(w http.ResponseWriter, r *http.Request) {
	driverID := chi.URLParam(r, "id")

	driver, err := h.profiles.FindProfileByID(r.Context(), driverID)
	if err != nil {
		http.Error(w, "Driver not found", http.StatusNotFound)
		return
	}
	if driver.Role != models.RoleDriver {
		http.Error(w, "Profile is not a driver", http.StatusBadRequest)
		return
	}

	var req struct {
		FullName      *string `json:"full_name"`
		Phone         *string `json:"phone"`
		Age           *int    `json:"age"`
		LicenseNumber *string `json:"license_number"`
		Remarks       *string `json:"remarks"`
		IsActive      *bool   `json:"is_active"`
		IsAvailable   *bool   `json:"is_available"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	update := bson.M{}
	if req.FullName != nil {
		if err := h.authService.ValidateFullName(*req.FullName); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		update["full_name"] = *req.FullName
	}
	if req.Phone != nil {
		if err := h.authService.ValidatePhone(*req.Phone); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		update["phone"] = *req.Phone
	}
	if req.Age != nil {
		if *req.Age < 18 || *req.Age > 80 {
			http.Error(w, "Driver age must be between 18 and 80", http.StatusBadRequest)
			return
		}
		update["age"] = *req.Age
	}
	if req.LicenseNumber != nil {
		update["license_number"] = *req.LicenseNumber
	}
	if req.Remarks != nil {
		update["remarks"] = *req.Remarks
	}
	if req.IsActive != nil {
		update["is_active"] = *req.IsActive
	}
	if req.IsAvailable != nil {
		update["is_available"] = *req.IsAvailable
	}

	if len(update) == 0 {
		http.Error(w, "Nothing to update", http.StatusBadRequest)
		return
	}

	if err := h.profiles.UpdateProfile(r.Context(), driverID, update); err != nil {
		http.Error(w, "Failed to update driver", http.StatusInternalServerError)
		return
	}

	h.bus.Publish(events.TableProfiles, events.EventUpdate, driverID, "")

	writeJSON(w, http.StatusOK, map[string]string{"message": "Driver updated"})
}
