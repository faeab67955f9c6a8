package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shiplink/fleet-coordination/internal/events"
	"github.com/shiplink/fleet-coordination/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSession(hub *Hub) *Session {
	return &Session{
		ID:     "test-session",
		Claims: &models.Claims{UserID: "u1", Role: models.RoleAdmin},
		send:   make(chan []byte, 8),
		hub:    hub,
		subs:   make(map[subscription]struct{}),
	}
}

func TestSession_Wants(t *testing.T) {
	session := testSession(nil)
	session.subscribe(events.TableTrips, "")
	session.subscribe(events.TableMilestones, "trip-1")

	tests := []struct {
		name     string
		change   events.Change
		expected bool
	}{
		{"table-wide trips match", events.Change{Table: events.TableTrips, RowID: "t9"}, true},
		{"scoped milestone match", events.Change{Table: events.TableMilestones, TripID: "trip-1"}, true},
		{"scoped milestone other trip", events.Change{Table: events.TableMilestones, TripID: "trip-2"}, false},
		{"unsubscribed table", events.Change{Table: events.TableVehicles}, false},
		{"milestone without trip id", events.Change{Table: events.TableMilestones}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, session.wants(tt.change))
		})
	}
}

func TestSession_Unsubscribe(t *testing.T) {
	session := testSession(nil)
	session.subscribe(events.TableVehicles, "")
	assert.True(t, session.wants(events.Change{Table: events.TableVehicles}))

	session.unsubscribe(events.TableVehicles, "")
	assert.False(t, session.wants(events.Change{Table: events.TableVehicles}))
}

func TestSession_HandleMessage(t *testing.T) {
	session := testSession(nil)

	session.handleMessage(ClientMessage{Action: "subscribe", Table: events.TableMessages, TripID: "trip-3"})
	assert.True(t, session.wants(events.Change{Table: events.TableMessages, TripID: "trip-3"}))

	session.handleMessage(ClientMessage{Action: "unsubscribe", Table: events.TableMessages, TripID: "trip-3"})
	assert.False(t, session.wants(events.Change{Table: events.TableMessages, TripID: "trip-3"}))

	// Unknown actions are ignored.
	session.handleMessage(ClientMessage{Action: "noop"})
}

func TestHub_BroadcastToMatchingSessions(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	hub := NewHub(bus)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	tripsSession := testSession(hub)
	tripsSession.ID = "trips-session"
	tripsSession.subscribe(events.TableTrips, "")

	milestoneSession := testSession(hub)
	milestoneSession.ID = "milestone-session"
	milestoneSession.subscribe(events.TableMilestones, "trip-1")

	hub.register <- tripsSession
	hub.register <- milestoneSession

	bus.Publish(events.TableTrips, events.EventUpdate, "trip-1", "")

	select {
	case data := <-tripsSession.send:
		var frame ServerMessage
		require.NoError(t, json.Unmarshal(data, &frame))
		assert.Equal(t, "change", frame.Type)
		payload, err := json.Marshal(frame.Payload)
		require.NoError(t, err)
		var change events.Change
		require.NoError(t, json.Unmarshal(payload, &change))
		assert.Equal(t, events.TableTrips, change.Table)
		assert.Equal(t, "trip-1", change.RowID)
	case <-time.After(time.Second):
		t.Fatal("trips session did not receive change frame")
	}

	select {
	case <-milestoneSession.send:
		t.Fatal("milestone session received an event for an unsubscribed table")
	case <-time.After(100 * time.Millisecond):
	}

	bus.Publish(events.TableMilestones, events.EventInsert, "m1", "trip-1")

	select {
	case data := <-milestoneSession.send:
		var frame ServerMessage
		require.NoError(t, json.Unmarshal(data, &frame))
		assert.Equal(t, "change", frame.Type)
	case <-time.After(time.Second):
		t.Fatal("milestone session did not receive scoped change frame")
	}
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	bus := events.NewBus()
	defer bus.Close()

	hub := NewHub(bus)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	session := testSession(hub)
	hub.register <- session
	hub.unregister <- session

	select {
	case _, open := <-session.send:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("send channel was not closed on unregister")
	}
}
