package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
	"github.com/shiplink/fleet-coordination/internal/db"
	"github.com/shiplink/fleet-coordination/internal/events"
	"github.com/shiplink/fleet-coordination/internal/middleware"
	"github.com/shiplink/fleet-coordination/internal/models"
	"go.mongodb.org/mongo-driver/bson"
)

// TripHandler handles shipment lifecycle requests
type TripHandler struct {
	trips    db.TripCollection
	profiles db.ProfileCollection
	vehicles db.VehicleCollection
	bus      *events.Bus
}

// NewTripHandler creates a new trip handler
func NewTripHandler(trips db.TripCollection, profiles db.ProfileCollection, vehicles db.VehicleCollection, bus *events.Bus) *TripHandler {
	return &TripHandler{
		trips:    trips,
		profiles: profiles,
		vehicles: vehicles,
		bus:      bus,
	}
}

// CreateTrip handles a client's new shipment request. The trip always starts
// pending with no driver or vehicle bound.
func (h *TripHandler) CreateTrip(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}

	var req models.CreateTripRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.PickupLocation == "" || req.DropLocation == "" {
		http.Error(w, "Pickup and drop locations are required", http.StatusBadRequest)
		return
	}
	if req.BilledAmount < 0 {
		http.Error(w, "Billed amount cannot be negative", http.StatusBadRequest)
		return
	}

	trip := models.Trip{
		ClientID:       claims.UserID,
		Status:         models.StatusPending,
		BilledAmount:   req.BilledAmount,
		PickupLocation: req.PickupLocation,
		DropLocation:   req.DropLocation,
		Notes:          req.Notes,
	}

	if err := h.trips.InsertTrip(r.Context(), &trip); err != nil {
		http.Error(w, "Failed to create trip", http.StatusInternalServerError)
		return
	}

	h.bus.Publish(events.TableTrips, events.EventInsert, trip.ID.Hex(), trip.ID.Hex())
	log.WithFields(log.Fields{
		"trip_id": trip.ID.Hex(),
		"client":  claims.UserID,
	}).Info("Trip requested")

	writeJSON(w, http.StatusCreated, trip)
}

// ListPendingTrips returns the admin triage queue, newest first, with the
// requesting client joined in.
func (h *TripHandler) ListPendingTrips(w http.ResponseWriter, r *http.Request) {
	trips, err := h.trips.FindTripsByStatus(r.Context(),
		[]models.TripStatus{models.StatusPending}, "created_at", false)
	if err != nil {
		http.Error(w, "Failed to list trips", http.StatusInternalServerError)
		return
	}

	if err := h.attachParties(r, trips); err != nil {
		http.Error(w, "Failed to join trip parties", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, trips)
}

// ListActiveTrips returns assigned and active trips, most recently touched
// first, with all parties joined in.
func (h *TripHandler) ListActiveTrips(w http.ResponseWriter, r *http.Request) {
	trips, err := h.trips.FindTripsByStatus(r.Context(),
		[]models.TripStatus{models.StatusAssigned, models.StatusActive}, "updated_at", false)
	if err != nil {
		http.Error(w, "Failed to list trips", http.StatusInternalServerError)
		return
	}

	if err := h.attachParties(r, trips); err != nil {
		http.Error(w, "Failed to join trip parties", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, trips)
}

// ListClientTrips returns the caller's own trips, newest first.
func (h *TripHandler) ListClientTrips(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}

	trips, err := h.trips.FindTripsByClient(r.Context(), claims.UserID)
	if err != nil {
		http.Error(w, "Failed to list trips", http.StatusInternalServerError)
		return
	}

	if err := h.attachParties(r, trips); err != nil {
		http.Error(w, "Failed to join trip parties", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, trips)
}

// GetDriverTrip returns the caller's current assigned or active trip, or
// null when the driver has none.
func (h *TripHandler) GetDriverTrip(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}

	trip, err := h.trips.FindCurrentTripByDriver(r.Context(), claims.UserID)
	if err != nil {
		if err == db.ErrNotFound {
			writeJSON(w, http.StatusOK, nil)
			return
		}
		http.Error(w, "Failed to load trip", http.StatusInternalServerError)
		return
	}

	trips := []models.Trip{*trip}
	if err := h.attachParties(r, trips); err != nil {
		http.Error(w, "Failed to join trip parties", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, trips[0])
}

// GetTrip returns one trip with parties joined. Admins see every trip,
// clients their own, drivers their assigned ones.
func (h *TripHandler) GetTrip(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}

	trip, err := h.trips.FindTripByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "Trip not found", http.StatusNotFound)
		return
	}

	if !canViewTrip(claims, trip) {
		http.Error(w, "Insufficient permissions", http.StatusForbidden)
		return
	}

	trips := []models.Trip{*trip}
	if err := h.attachParties(r, trips); err != nil {
		http.Error(w, "Failed to join trip parties", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, trips[0])
}

// AssignTrip binds a driver and a vehicle to a pending trip and moves it to
// assigned. Both IDs are required together; partial assignment is invalid.
// The vehicle's availability flag is validated but not flipped (busy-ness is
// derived from assigned/active trips).
func (h *TripHandler) AssignTrip(w http.ResponseWriter, r *http.Request) {
	tripID := chi.URLParam(r, "id")

	var req models.AssignTripRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.DriverID == "" || req.VehicleID == "" {
		http.Error(w, "Driver and vehicle are required together", http.StatusBadRequest)
		return
	}

	trip, err := h.trips.FindTripByID(r.Context(), tripID)
	if err != nil {
		http.Error(w, "Trip not found", http.StatusNotFound)
		return
	}
	if !trip.CanTransition(models.StatusAssigned) {
		http.Error(w, "Trip is not pending", http.StatusConflict)
		return
	}

	driver, err := h.profiles.FindProfileByID(r.Context(), req.DriverID)
	if err != nil {
		http.Error(w, "Driver not found", http.StatusNotFound)
		return
	}
	if driver.Role != models.RoleDriver || !driver.IsActive {
		http.Error(w, "Driver is not available for assignment", http.StatusConflict)
		return
	}

	vehicle, err := h.vehicles.FindVehicleByID(r.Context(), req.VehicleID)
	if err != nil {
		http.Error(w, "Vehicle not found", http.StatusNotFound)
		return
	}
	if !vehicle.IsAvailable {
		http.Error(w, "Vehicle is not available for assignment", http.StatusConflict)
		return
	}

	err = h.trips.UpdateTrip(r.Context(), tripID, bson.M{
		"driver_id":  req.DriverID,
		"vehicle_id": req.VehicleID,
		"status":     models.StatusAssigned,
	})
	if err != nil {
		http.Error(w, "Failed to assign trip", http.StatusInternalServerError)
		return
	}

	h.bus.Publish(events.TableTrips, events.EventUpdate, tripID, tripID)
	log.WithFields(log.Fields{
		"trip_id": tripID,
		"driver":  req.DriverID,
		"vehicle": req.VehicleID,
	}).Info("Trip assigned")

	writeJSON(w, http.StatusOK, map[string]string{"message": "Trip assigned"})
}

// UpdateTrip lets an admin edit locations, notes and financials at any
// status. Status never changes here. amount_received above billed_amount is
// accepted as-is.
func (h *TripHandler) UpdateTrip(w http.ResponseWriter, r *http.Request) {
	tripID := chi.URLParam(r, "id")

	var req struct {
		PickupLocation *string  `json:"pickup_location"`
		DropLocation   *string  `json:"drop_location"`
		Notes          *string  `json:"notes"`
		BilledAmount   *float64 `json:"billed_amount"`
		AmountReceived *float64 `json:"amount_received"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	update := bson.M{}
	if req.PickupLocation != nil {
		update["pickup_location"] = *req.PickupLocation
	}
	if req.DropLocation != nil {
		update["drop_location"] = *req.DropLocation
	}
	if req.Notes != nil {
		update["notes"] = *req.Notes
	}
	if req.BilledAmount != nil {
		if *req.BilledAmount < 0 {
			http.Error(w, "Billed amount cannot be negative", http.StatusBadRequest)
			return
		}
		update["billed_amount"] = *req.BilledAmount
	}
	if req.AmountReceived != nil {
		if *req.AmountReceived < 0 {
			http.Error(w, "Amount received cannot be negative", http.StatusBadRequest)
			return
		}
		update["amount_received"] = *req.AmountReceived
	}

	if len(update) == 0 {
		http.Error(w, "Nothing to update", http.StatusBadRequest)
		return
	}

	if err := h.trips.UpdateTrip(r.Context(), tripID, update); err != nil {
		if err == db.ErrNotFound {
			http.Error(w, "Trip not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to update trip", http.StatusInternalServerError)
		return
	}

	h.bus.Publish(events.TableTrips, events.EventUpdate, tripID, tripID)

	writeJSON(w, http.StatusOK, map[string]string{"message": "Trip updated"})
}

// DeleteTrip removes a pending trip entirely. This is the only cancellation
// path: once a trip is assigned it runs to completion.
func (h *TripHandler) DeleteTrip(w http.ResponseWriter, r *http.Request) {
	tripID := chi.URLParam(r, "id")

	trip, err := h.trips.FindTripByID(r.Context(), tripID)
	if err != nil {
		http.Error(w, "Trip not found", http.StatusNotFound)
		return
	}
	if trip.Status != models.StatusPending {
		http.Error(w, "Only pending trips can be deleted", http.StatusConflict)
		return
	}

	if err := h.trips.DeleteTrip(r.Context(), tripID); err != nil {
		http.Error(w, "Failed to delete trip", http.StatusInternalServerError)
		return
	}

	h.bus.Publish(events.TableTrips, events.EventDelete, tripID, tripID)
	log.WithField("trip_id", tripID).Info("Pending trip deleted")

	writeJSON(w, http.StatusOK, map[string]string{"message": "Trip deleted"})
}

func canViewTrip(claims *models.Claims, trip *models.Trip) bool {
	switch claims.Role {
	case models.RoleAdmin:
		return true
	case models.RoleClient:
		return trip.ClientID == claims.UserID
	case models.RoleDriver:
		return trip.DriverID == claims.UserID
	default:
		return false
	}
}

// attachParties joins client, driver and vehicle refs onto trips with two
// batched lookups.
func (h *TripHandler) attachParties(r *http.Request, trips []models.Trip) error {
	if len(trips) == 0 {
		return nil
	}

	profileIDs := make([]string, 0, len(trips)*2)
	vehicleIDs := make([]string, 0, len(trips))
	for i := range trips {
		profileIDs = append(profileIDs, trips[i].ClientID)
		if trips[i].DriverID != "" {
			profileIDs = append(profileIDs, trips[i].DriverID)
		}
		if trips[i].VehicleID != "" {
			vehicleIDs = append(vehicleIDs, trips[i].VehicleID)
		}
	}

	profiles, err := h.profiles.FindProfilesByIDs(r.Context(), profileIDs)
	if err != nil {
		return err
	}
	vehicles, err := h.vehicles.FindVehiclesByIDs(r.Context(), vehicleIDs)
	if err != nil {
		return err
	}

	for i := range trips {
		if p, ok := profiles[trips[i].ClientID]; ok {
			trips[i].Client = p.Ref()
		}
		if p, ok := profiles[trips[i].DriverID]; ok {
			trips[i].Driver = p.Ref()
		}
		if v, ok := vehicles[trips[i].VehicleID]; ok {
			trips[i].Vehicle = v.Ref()
		}
	}
	return nil
}
