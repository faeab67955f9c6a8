package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shiplink/fleet-coordination/internal/events"
	"github.com/shiplink/fleet-coordination/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestRecordMilestone(t *testing.T) {
	tripID := primitive.NewObjectID()
	activeTrip := func() *models.Trip {
		return &models.Trip{ID: tripID, ClientID: "client-1", DriverID: "driver-1", Status: models.StatusActive}
	}

	post := func(handler *MilestoneHandler, body []byte, userID string) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/api/driver/trips/"+tripID.Hex()+"/milestones", bytes.NewReader(body))
		r = withClaims(r, userID, models.RoleDriver)
		r = withURLParam(r, "id", tripID.Hex())
		return doRequest(handler.RecordMilestone, r)
	}

	t.Run("records a fuel stop", func(t *testing.T) {
		trips := new(MockTripCollection)
		trips.On("FindTripByID", mock.Anything, tripID.Hex()).Return(activeTrip(), nil)
		milestones := new(MockMilestoneCollection)
		milestones.On("InsertMilestone", mock.Anything, mock.AnythingOfType("*models.Milestone")).
			Run(func(args mock.Arguments) {
				args.Get(1).(*models.Milestone).ID = primitive.NewObjectID()
			}).Return(nil)

		bus := events.NewBus()
		defer bus.Close()
		_, changes := bus.Subscribe(4)

		handler := NewMilestoneHandler(trips, milestones, bus)
		cost := 3500.0
		body, _ := json.Marshal(models.RecordMilestoneRequest{
			Type:         models.MilestoneFuel,
			LocationName: "HP pump, Lonavala",
			Metadata:     models.MilestoneMetadata{FuelCost: &cost},
		})
		w := post(handler, body, "driver-1")

		require.Equal(t, http.StatusCreated, w.Code)

		change := <-changes
		assert.Equal(t, events.TableMilestones, change.Table)
		assert.Equal(t, tripID.Hex(), change.TripID)
	})

	t.Run("rejects fuel without cost", func(t *testing.T) {
		trips := new(MockTripCollection)
		trips.On("FindTripByID", mock.Anything, tripID.Hex()).Return(activeTrip(), nil)

		handler := NewMilestoneHandler(trips, new(MockMilestoneCollection), events.NewBus())
		body, _ := json.Marshal(models.RecordMilestoneRequest{Type: models.MilestoneFuel})
		w := post(handler, body, "driver-1")

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rejects pickup through the log endpoint", func(t *testing.T) {
		trips := new(MockTripCollection)
		trips.On("FindTripByID", mock.Anything, tripID.Hex()).Return(activeTrip(), nil)

		handler := NewMilestoneHandler(trips, new(MockMilestoneCollection), events.NewBus())
		body, _ := json.Marshal(models.RecordMilestoneRequest{Type: models.MilestonePickup})
		w := post(handler, body, "driver-1")

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rejects another driver's trip", func(t *testing.T) {
		trips := new(MockTripCollection)
		trips.On("FindTripByID", mock.Anything, tripID.Hex()).Return(activeTrip(), nil)

		handler := NewMilestoneHandler(trips, new(MockMilestoneCollection), events.NewBus())
		body, _ := json.Marshal(models.RecordMilestoneRequest{Type: models.MilestoneBreak})
		w := post(handler, body, "driver-2")

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("rejects trip that is not active", func(t *testing.T) {
		assigned := activeTrip()
		assigned.Status = models.StatusAssigned

		trips := new(MockTripCollection)
		trips.On("FindTripByID", mock.Anything, tripID.Hex()).Return(assigned, nil)

		handler := NewMilestoneHandler(trips, new(MockMilestoneCollection), events.NewBus())
		body, _ := json.Marshal(models.RecordMilestoneRequest{Type: models.MilestoneBreak})
		w := post(handler, body, "driver-1")

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestArrivePickup(t *testing.T) {
	tripID := primitive.NewObjectID()
	assignedTrip := func() *models.Trip {
		return &models.Trip{ID: tripID, ClientID: "client-1", DriverID: "driver-1", Status: models.StatusAssigned}
	}

	post := func(handler *MilestoneHandler) *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodPost, "/api/driver/trips/"+tripID.Hex()+"/arrive-pickup",
			bytes.NewReader([]byte(`{"location_name":"Warehouse 4"}`)))
		r = withClaims(r, "driver-1", models.RoleDriver)
		r = withURLParam(r, "id", tripID.Hex())
		return doRequest(handler.ArrivePickup, r)
	}

	t.Run("logs pickup and activates the trip", func(t *testing.T) {
		trips := new(MockTripCollection)
		trips.On("FindTripByID", mock.Anything, tripID.Hex()).Return(assignedTrip(), nil)
		trips.On("UpdateTrip", mock.Anything, tripID.Hex(), bson.M{"status": models.StatusActive}).Return(nil)

		milestones := new(MockMilestoneCollection)
		milestones.On("InsertMilestone", mock.Anything, mock.AnythingOfType("*models.Milestone")).
			Run(func(args mock.Arguments) {
				m := args.Get(1).(*models.Milestone)
				m.ID = primitive.NewObjectID()
				assert.Equal(t, models.MilestonePickup, m.Type)
			}).Return(nil)

		bus := events.NewBus()
		defer bus.Close()
		_, changes := bus.Subscribe(4)

		handler := NewMilestoneHandler(trips, milestones, bus)
		w := post(handler)

		require.Equal(t, http.StatusOK, w.Code)
		trips.AssertExpectations(t)
		milestones.AssertExpectations(t)

		first := <-changes
		second := <-changes
		assert.Equal(t, events.TableMilestones, first.Table)
		assert.Equal(t, events.TableTrips, second.Table)
	})

	t.Run("removes the milestone when the status write fails", func(t *testing.T) {
		trips := new(MockTripCollection)
		trips.On("FindTripByID", mock.Anything, tripID.Hex()).Return(assignedTrip(), nil)
		trips.On("UpdateTrip", mock.Anything, tripID.Hex(), mock.Anything).Return(assert.AnError)

		milestones := new(MockMilestoneCollection)
		milestones.On("InsertMilestone", mock.Anything, mock.AnythingOfType("*models.Milestone")).
			Run(func(args mock.Arguments) {
				args.Get(1).(*models.Milestone).ID = primitive.NewObjectID()
			}).Return(nil)
		milestones.On("DeleteMilestone", mock.Anything, mock.AnythingOfType("string")).Return(nil)

		handler := NewMilestoneHandler(trips, milestones, events.NewBus())
		w := post(handler)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		milestones.AssertCalled(t, "DeleteMilestone", mock.Anything, mock.AnythingOfType("string"))
	})

	t.Run("rejects pickup on an active trip", func(t *testing.T) {
		active := assignedTrip()
		active.Status = models.StatusActive

		trips := new(MockTripCollection)
		trips.On("FindTripByID", mock.Anything, tripID.Hex()).Return(active, nil)

		handler := NewMilestoneHandler(trips, new(MockMilestoneCollection), events.NewBus())
		w := post(handler)

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestCompleteDelivery(t *testing.T) {
	tripID := primitive.NewObjectID()

	t.Run("logs drop and completes the trip", func(t *testing.T) {
		trips := new(MockTripCollection)
		trips.On("FindTripByID", mock.Anything, tripID.Hex()).
			Return(&models.Trip{ID: tripID, DriverID: "driver-1", Status: models.StatusActive}, nil)
		trips.On("UpdateTrip", mock.Anything, tripID.Hex(), bson.M{"status": models.StatusCompleted}).Return(nil)

		milestones := new(MockMilestoneCollection)
		milestones.On("InsertMilestone", mock.Anything, mock.AnythingOfType("*models.Milestone")).
			Run(func(args mock.Arguments) {
				m := args.Get(1).(*models.Milestone)
				m.ID = primitive.NewObjectID()
				assert.Equal(t, models.MilestoneDrop, m.Type)
			}).Return(nil)

		handler := NewMilestoneHandler(trips, milestones, events.NewBus())
		r := httptest.NewRequest(http.MethodPost, "/api/driver/trips/"+tripID.Hex()+"/complete",
			bytes.NewReader([]byte(`{"location_name":"Pune depot"}`)))
		r = withClaims(r, "driver-1", models.RoleDriver)
		r = withURLParam(r, "id", tripID.Hex())
		w := doRequest(handler.CompleteDelivery, r)

		assert.Equal(t, http.StatusOK, w.Code)
		trips.AssertExpectations(t)
	})
}

func TestListMilestones(t *testing.T) {
	tripID := primitive.NewObjectID()
	trip := &models.Trip{ID: tripID, ClientID: "client-1", DriverID: "driver-1", Status: models.StatusActive}

	t.Run("default order is ascending", func(t *testing.T) {
		trips := new(MockTripCollection)
		trips.On("FindTripByID", mock.Anything, tripID.Hex()).Return(trip, nil)
		milestones := new(MockMilestoneCollection)
		milestones.On("FindMilestonesByTrip", mock.Anything, tripID.Hex(), true).Return([]models.Milestone{}, nil)

		handler := NewMilestoneHandler(trips, milestones, events.NewBus())
		r := httptest.NewRequest(http.MethodGet, "/api/trips/"+tripID.Hex()+"/milestones", nil)
		r = withClaims(r, "client-1", models.RoleClient)
		r = withURLParam(r, "id", tripID.Hex())
		w := doRequest(handler.ListMilestones, r)

		assert.Equal(t, http.StatusOK, w.Code)
		milestones.AssertExpectations(t)
	})

	t.Run("sort=desc flips the direction", func(t *testing.T) {
		trips := new(MockTripCollection)
		trips.On("FindTripByID", mock.Anything, tripID.Hex()).Return(trip, nil)
		milestones := new(MockMilestoneCollection)
		milestones.On("FindMilestonesByTrip", mock.Anything, tripID.Hex(), false).Return([]models.Milestone{}, nil)

		handler := NewMilestoneHandler(trips, milestones, events.NewBus())
		r := httptest.NewRequest(http.MethodGet, "/api/trips/"+tripID.Hex()+"/milestones?sort=desc", nil)
		r = withClaims(r, "driver-1", models.RoleDriver)
		r = withURLParam(r, "id", tripID.Hex())
		w := doRequest(handler.ListMilestones, r)

		assert.Equal(t, http.StatusOK, w.Code)
		milestones.AssertExpectations(t)
	})

	t.Run("unrelated client is forbidden", func(t *testing.T) {
		trips := new(MockTripCollection)
		trips.On("FindTripByID", mock.Anything, tripID.Hex()).Return(trip, nil)

		handler := NewMilestoneHandler(trips, new(MockMilestoneCollection), events.NewBus())
		r := httptest.NewRequest(http.MethodGet, "/api/trips/"+tripID.Hex()+"/milestones", nil)
		r = withClaims(r, "client-2", models.RoleClient)
		r = withURLParam(r, "id", tripID.Hex())
		w := doRequest(handler.ListMilestones, r)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}
