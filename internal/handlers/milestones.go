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

// MilestoneHandler handles the per-trip event log and the two transitions
// that ride on it (arrive at pickup, complete delivery).
type MilestoneHandler struct {
	trips      db.TripCollection
	milestones db.MilestoneCollection
	bus        *events.Bus
}

// NewMilestoneHandler creates a new milestone handler
func NewMilestoneHandler(trips db.TripCollection, milestones db.MilestoneCollection, bus *events.Bus) *MilestoneHandler {
	return &MilestoneHandler{
		trips:      trips,
		milestones: milestones,
		bus:        bus,
	}
}

// ListMilestones returns a trip's milestones ordered by recorded_at.
// ?sort=desc flips the direction (driver view); default is ascending
// (client view).
func (h *MilestoneHandler) ListMilestones(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}

	tripID := chi.URLParam(r, "id")
	trip, err := h.trips.FindTripByID(r.Context(), tripID)
	if err != nil {
		http.Error(w, "Trip not found", http.StatusNotFound)
		return
	}
	if !canViewTrip(claims, trip) {
		http.Error(w, "Insufficient permissions", http.StatusForbidden)
		return
	}

	ascending := r.URL.Query().Get("sort") != "desc"
	milestones, err := h.milestones.FindMilestonesByTrip(r.Context(), tripID, ascending)
	if err != nil {
		http.Error(w, "Failed to list milestones", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, milestones)
}

// RecordMilestone appends a break, fuel or toll event to the driver's
// current trip. Pickup and drop events go through the transition endpoints
// because they also move trip status.
func (h *MilestoneHandler) RecordMilestone(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}

	tripID := chi.URLParam(r, "id")
	trip, err := h.trips.FindTripByID(r.Context(), tripID)
	if err != nil {
		http.Error(w, "Trip not found", http.StatusNotFound)
		return
	}
	if trip.DriverID != claims.UserID {
		http.Error(w, "Trip is not assigned to you", http.StatusForbidden)
		return
	}
	if trip.Status != models.StatusActive {
		http.Error(w, "Trip is not active", http.StatusConflict)
		return
	}

	var req models.RecordMilestoneRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if req.Type == models.MilestonePickup || req.Type == models.MilestoneDrop {
		http.Error(w, "Pickup and drop are recorded via trip transitions", http.StatusBadRequest)
		return
	}
	if !models.IsValidMilestoneType(req.Type) {
		http.Error(w, "Invalid milestone type", http.StatusBadRequest)
		return
	}
	if err := req.Metadata.ValidateFor(req.Type); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	milestone := models.Milestone{
		TripID:       tripID,
		Type:         req.Type,
		LocationName: req.LocationName,
		Metadata:     req.Metadata,
	}
	if err := h.milestones.InsertMilestone(r.Context(), &milestone); err != nil {
		http.Error(w, "Failed to record milestone", http.StatusInternalServerError)
		return
	}

	h.bus.Publish(events.TableMilestones, events.EventInsert, milestone.ID.Hex(), tripID)
	log.WithFields(log.Fields{
		"trip_id": tripID,
		"type":    req.Type,
	}).Info("Milestone recorded")

	writeJSON(w, http.StatusCreated, milestone)
}

// ArrivePickup logs the pickup milestone and moves the trip from assigned to
// active. The two writes are compensated: a failed status update removes the
// just-appended milestone so status and log stay consistent.
func (h *MilestoneHandler) ArrivePickup(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, models.MilestonePickup, models.StatusActive)
}

// CompleteDelivery logs the drop milestone and moves the trip from active to
// completed, with the same compensation.
func (h *MilestoneHandler) CompleteDelivery(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, models.MilestoneDrop, models.StatusCompleted)
}

func (h *MilestoneHandler) transition(w http.ResponseWriter, r *http.Request, milestoneType models.MilestoneType, target models.TripStatus) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}

	tripID := chi.URLParam(r, "id")
	trip, err := h.trips.FindTripByID(r.Context(), tripID)
	if err != nil {
		http.Error(w, "Trip not found", http.StatusNotFound)
		return
	}
	if trip.DriverID != claims.UserID {
		http.Error(w, "Trip is not assigned to you", http.StatusForbidden)
		return
	}
	if !trip.CanTransition(target) {
		http.Error(w, "Trip is not in the right state for this transition", http.StatusConflict)
		return
	}

	var req struct {
		LocationName string                   `json:"location_name,omitempty"`
		Metadata     models.MilestoneMetadata `json:"metadata"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	milestone := models.Milestone{
		TripID:       tripID,
		Type:         milestoneType,
		LocationName: req.LocationName,
		Metadata:     req.Metadata,
	}
	if err := h.milestones.InsertMilestone(r.Context(), &milestone); err != nil {
		http.Error(w, "Failed to record milestone", http.StatusInternalServerError)
		return
	}

	if err := h.trips.UpdateTrip(r.Context(), tripID, bson.M{"status": target}); err != nil {
		// Compensate so the log does not claim a transition that never took.
		if delErr := h.milestones.DeleteMilestone(r.Context(), milestone.ID.Hex()); delErr != nil {
			log.WithError(delErr).WithField("milestone_id", milestone.ID.Hex()).
				Error("Compensation failed, milestone is orphaned")
		}
		http.Error(w, "Failed to update trip status", http.StatusInternalServerError)
		return
	}

	h.bus.Publish(events.TableMilestones, events.EventInsert, milestone.ID.Hex(), tripID)
	h.bus.Publish(events.TableTrips, events.EventUpdate, tripID, tripID)
	log.WithFields(log.Fields{
		"trip_id": tripID,
		"status":  target,
	}).Info("Trip transitioned")

	writeJSON(w, http.StatusOK, milestone)
}
