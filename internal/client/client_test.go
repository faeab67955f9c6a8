package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/shiplink/fleet-coordination/internal/events"
	"github.com/shiplink/fleet-coordination/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCacheTagInvalidation(t *testing.T) {
	cache := NewCache()
	cache.Set("trips:pending", "a", events.TableTrips)
	cache.Set("trips:active", "b", events.TableTrips)
	cache.Set("vehicles", "c", events.TableVehicles)

	cache.Invalidate(events.TableTrips)

	_, ok := cache.Get("trips:pending")
	assert.False(t, ok)
	_, ok = cache.Get("trips:active")
	assert.False(t, ok)
	_, ok = cache.Get("vehicles")
	assert.True(t, ok, "untagged entries survive")
}

func TestReadThroughCache(t *testing.T) {
	var hits atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/admin/vehicles", r.URL.Path)
		hits.Add(1)
		json.NewEncoder(w).Encode([]models.Vehicle{{RegistrationNumber: "MH12AB1234"}})
	}))
	defer server.Close()

	c := New(server.URL)
	ctx := context.Background()

	first, err := c.Vehicles(ctx)
	require.NoError(t, err)
	second, err := c.Vehicles(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(1), hits.Load(), "second read served from cache")

	c.Cache().Invalidate(events.TableVehicles)
	_, err = c.Vehicles(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), hits.Load(), "invalidation forces a refetch")
}

func TestSetVehicleAvailability(t *testing.T) {
	vehicleID := primitive.NewObjectID()

	t.Run("rolls back the cached view when the write fails", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				json.NewEncoder(w).Encode([]models.Vehicle{{ID: vehicleID, IsAvailable: true}})
			case http.MethodPatch:
				http.Error(w, "boom", http.StatusInternalServerError)
			}
		}))
		defer server.Close()

		c := New(server.URL)
		ctx := context.Background()

		_, err := c.Vehicles(ctx)
		require.NoError(t, err)

		err = c.SetVehicleAvailability(ctx, vehicleID.Hex(), false)
		require.Error(t, err)

		cached, ok := c.Cache().Get("vehicles")
		require.True(t, ok, "snapshot restored after rollback")
		vehicles := cached.([]models.Vehicle)
		assert.True(t, vehicles[0].IsAvailable, "optimistic flip undone")
	})

	t.Run("settles against the server on success", func(t *testing.T) {
		available := true
		var gets atomic.Int64
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				gets.Add(1)
				json.NewEncoder(w).Encode([]models.Vehicle{{ID: vehicleID, IsAvailable: available}})
			case http.MethodPatch:
				var req struct {
					IsAvailable *bool `json:"is_available"`
				}
				json.NewDecoder(r.Body).Decode(&req)
				available = *req.IsAvailable
				w.Write([]byte(`{"message":"ok"}`))
			}
		}))
		defer server.Close()

		c := New(server.URL)
		ctx := context.Background()

		_, err := c.Vehicles(ctx)
		require.NoError(t, err)

		require.NoError(t, c.SetVehicleAvailability(ctx, vehicleID.Hex(), false))

		vehicles, err := c.Vehicles(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), gets.Load(), "toggle invalidated the fleet view")
		assert.False(t, vehicles[0].IsAvailable)
	})

	t.Run("toggle is idempotent", func(t *testing.T) {
		var patches atomic.Int64
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				json.NewEncoder(w).Encode([]models.Vehicle{{ID: vehicleID, IsAvailable: false}})
			case http.MethodPatch:
				patches.Add(1)
				w.Write([]byte(`{"message":"ok"}`))
			}
		}))
		defer server.Close()

		c := New(server.URL)
		ctx := context.Background()

		require.NoError(t, c.SetVehicleAvailability(ctx, vehicleID.Hex(), false))
		require.NoError(t, c.SetVehicleAvailability(ctx, vehicleID.Hex(), false))

		vehicles, err := c.Vehicles(ctx)
		require.NoError(t, err)
		assert.False(t, vehicles[0].IsAvailable)
		assert.Equal(t, int64(2), patches.Load())
	})
}

func TestMutationsInvalidateTrips(t *testing.T) {
	var tripGets atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet:
			tripGets.Add(1)
			json.NewEncoder(w).Encode([]models.Trip{})
		case r.Method == http.MethodPost:
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(models.Trip{Status: models.StatusPending})
		}
	}))
	defer server.Close()

	c := New(server.URL)
	ctx := context.Background()

	_, err := c.MyTrips(ctx)
	require.NoError(t, err)
	_, err = c.MyTrips(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(1), tripGets.Load())

	_, err = c.CreateTrip(ctx, models.CreateTripRequest{PickupLocation: "Mumbai", DropLocation: "Pune"})
	require.NoError(t, err)

	_, err = c.MyTrips(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), tripGets.Load(), "creating a trip invalidated trip views")
}

func TestErrorResponses(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "Trip is not pending", http.StatusConflict)
	}))
	defer server.Close()

	c := New(server.URL)
	err := c.AssignTrip(context.Background(), "abc", "d", "v")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "409")
	assert.Contains(t, err.Error(), "Trip is not pending")
}
