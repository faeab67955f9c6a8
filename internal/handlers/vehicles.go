package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
	"github.com/shiplink/fleet-coordination/internal/db"
	"github.com/shiplink/fleet-coordination/internal/events"
	"github.com/shiplink/fleet-coordination/internal/middleware"
	"github.com/shiplink/fleet-coordination/internal/models"
	"go.mongodb.org/mongo-driver/bson"
)

// VehicleHandler handles fleet inventory requests
type VehicleHandler struct {
	vehicles db.VehicleCollection
	trips    db.TripCollection
	bus      *events.Bus
}

// NewVehicleHandler creates a new vehicle handler
func NewVehicleHandler(vehicles db.VehicleCollection, trips db.TripCollection, bus *events.Bus) *VehicleHandler {
	return &VehicleHandler{
		vehicles: vehicles,
		trips:    trips,
		bus:      bus,
	}
}

// CreateVehicle registers a fleet asset under the calling admin.
func (h *VehicleHandler) CreateVehicle(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}

	var req struct {
		RegistrationNumber string     `json:"registration_number"`
		VehicleType        string     `json:"vehicle_type"`
		CapacityKg         float64    `json:"capacity_kg"`
		Model              string     `json:"model,omitempty"`
		Year               int        `json:"year,omitempty"`
		InsuranceNumber    string     `json:"insurance_number,omitempty"`
		InsuranceExpiry    *time.Time `json:"insurance_expiry,omitempty"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.RegistrationNumber == "" || req.VehicleType == "" {
		http.Error(w, "Registration number and vehicle type are required", http.StatusBadRequest)
		return
	}
	if req.CapacityKg <= 0 {
		http.Error(w, "Capacity must be positive", http.StatusBadRequest)
		return
	}

	if _, err := h.vehicles.FindVehicleByRegistration(r.Context(), req.RegistrationNumber); err == nil {
		http.Error(w, "Registration number already exists", http.StatusConflict)
		return
	}

	vehicle := models.Vehicle{
		RegistrationNumber: req.RegistrationNumber,
		VehicleType:        req.VehicleType,
		CapacityKg:         req.CapacityKg,
		IsAvailable:        true,
		Model:              req.Model,
		Year:               req.Year,
		InsuranceNumber:    req.InsuranceNumber,
		InsuranceExpiry:    req.InsuranceExpiry,
		AdminID:            claims.UserID,
	}

	if err := h.vehicles.InsertVehicle(r.Context(), &vehicle); err != nil {
		http.Error(w, "Failed to create vehicle", http.StatusInternalServerError)
		return
	}

	h.bus.Publish(events.TableVehicles, events.EventInsert, vehicle.ID.Hex(), "")
	log.WithFields(log.Fields{
		"vehicle_id":   vehicle.ID.Hex(),
		"registration": vehicle.RegistrationNumber,
	}).Info("Vehicle registered")

	writeJSON(w, http.StatusCreated, vehicle)
}

// ListVehicles returns the whole fleet ordered by registration number.
func (h *VehicleHandler) ListVehicles(w http.ResponseWriter, r *http.Request) {
	vehicles, err := h.vehicles.FindVehicles(r.Context())
	if err != nil {
		http.Error(w, "Failed to list vehicles", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, vehicles)
}

// ListAvailableVehicles returns vehicles eligible for assignment.
func (h *VehicleHandler) ListAvailableVehicles(w http.ResponseWriter, r *http.Request) {
	vehicles, err := h.vehicles.FindAvailableVehicles(r.Context())
	if err != nil {
		http.Error(w, "Failed to list vehicles", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, vehicles)
}

// ListBusyVehicles returns the IDs of vehicles bound to assigned or active
// trips. Busy-ness is derived here, not persisted on the vehicle row.
func (h *VehicleHandler) ListBusyVehicles(w http.ResponseWriter, r *http.Request) {
	trips, err := h.trips.FindTripsByStatus(r.Context(),
		[]models.TripStatus{models.StatusAssigned, models.StatusActive}, "updated_at", false)
	if err != nil {
		http.Error(w, "Failed to derive vehicle usage", http.StatusInternalServerError)
		return
	}

	busy := make([]string, 0, len(trips))
	seen := make(map[string]bool, len(trips))
	for i := range trips {
		id := trips[i].VehicleID
		if id != "" && !seen[id] {
			seen[id] = true
			busy = append(busy, id)
		}
	}

	writeJSON(w, http.StatusOK, map[string][]string{"vehicle_ids": busy})
}

// GetVehicle returns one vehicle.
func (h *VehicleHandler) GetVehicle(w http.ResponseWriter, r *http.Request) {
	vehicle, err := h.vehicles.FindVehicleByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Vehicle not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, vehicle)
}

// UpdateVehicle edits vehicle details.
func (h *VehicleHandler) UpdateVehicle(w http.ResponseWriter, r *http.Request) {
	vehicleID := chi.URLParam(r, "id")

	var req struct {
		VehicleType     *string    `json:"vehicle_type"`
		CapacityKg      *float64   `json:"capacity_kg"`
		Model           *string    `json:"model"`
		Year            *int       `json:"year"`
		InsuranceNumber *string    `json:"insurance_number"`
		InsuranceExpiry *time.Time `json:"insurance_expiry"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	update := bson.M{}
	if req.VehicleType != nil {
		update["vehicle_type"] = *req.VehicleType
	}
	if req.CapacityKg != nil {
		if *req.CapacityKg <= 0 {
			http.Error(w, "Capacity must be positive", http.StatusBadRequest)
			return
		}
		update["capacity_kg"] = *req.CapacityKg
	}
	if req.Model != nil {
		update["model"] = *req.Model
	}
	if req.Year != nil {
		update["year"] = *req.Year
	}
	if req.InsuranceNumber != nil {
		update["insurance_number"] = *req.InsuranceNumber
	}
	if req.InsuranceExpiry != nil {
		update["insurance_expiry"] = *req.InsuranceExpiry
	}

	if len(update) == 0 {
		http.Error(w, "Nothing to update", http.StatusBadRequest)
		return
	}

	if err := h.vehicles.UpdateVehicle(r.Context(), vehicleID, update); err != nil {
		if err == db.ErrNotFound {
			http.Error(w, "Vehicle not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to update vehicle", http.StatusInternalServerError)
		return
	}

	h.bus.Publish(events.TableVehicles, events.EventUpdate, vehicleID, "")

	writeJSON(w, http.StatusOK, map[string]string{"message": "Vehicle updated"})
}

// SetAvailability flips the availability flag. The write is idempotent and
// last-write-wins; concurrent opposite toggles converge on whichever write
// lands last, and every session reconciles via the change event.
func (h *VehicleHandler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	vehicleID := chi.URLParam(r, "id")

	var req struct {
		IsAvailable *bool `json:"is_available"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.IsAvailable == nil {
		http.Error(w, "is_available is required", http.StatusBadRequest)
		return
	}

	if err := h.vehicles.SetAvailability(r.Context(), vehicleID, *req.IsAvailable); err != nil {
		if err == db.ErrNotFound {
			http.Error(w, "Vehicle not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to update availability", http.StatusInternalServerError)
		return
	}

	h.bus.Publish(events.TableVehicles, events.EventUpdate, vehicleID, "")

	writeJSON(w, http.StatusOK, map[string]string{"message": "Availability updated"})
}

// DeleteVehicle removes a fleet asset.
func (h *VehicleHandler) DeleteVehicle(w http.ResponseWriter, r *http.Request) {
	vehicleID := chi.URLParam(r, "id")

	if err := h.vehicles.DeleteVehicle(r.Context(), vehicleID); err != nil {
		if err == db.ErrNotFound {
			http.Error(w, "Vehicle not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to delete vehicle", http.StatusInternalServerError)
		return
	}

	h.bus.Publish(events.TableVehicles, events.EventDelete, vehicleID, "")

	writeJSON(w, http.StatusOK, map[string]string{"message": "Vehicle deleted"})
}
