package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"github.com/shiplink/fleet-coordination/internal/events"
	"github.com/shiplink/fleet-coordination/internal/models"
	"github.com/shiplink/fleet-coordination/internal/ws"
)

// Client is a Go consumer of the coordination API. Reads go through a
// tag-invalidated cache; ListenChanges keeps the cache fresh from the
// server's change feed.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
	cache   *Cache
}

// New creates a client for a server base URL (e.g. "http://localhost:8080").
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		cache:   NewCache(),
	}
}

// Cache exposes the client's cache, mainly for tests and diagnostics.
func (c *Client) Cache() *Cache {
	return c.cache
}

// SetToken installs a previously obtained token.
func (c *Client) SetToken(token string) {
	c.token = token
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: %d %s", method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out != nil {
		return json.Unmarshal(data, out)
	}
	return nil
}

// cachedGet is a read-through fetch: cache hit short-circuits the request,
// a miss fetches and stores the decoded value under the given tags.
func cachedGet[T any](ctx context.Context, c *Client, key, path string, tags ...events.Table) (T, error) {
	var zero T
	if v, ok := c.cache.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}

	var out T
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return zero, err
	}
	c.cache.Set(key, out, tags...)
	return out, nil
}

// Login authenticates and stores the session token.
func (c *Client) Login(ctx context.Context, email, password string) (*models.LoginResponse, error) {
	var resp models.LoginResponse
	err := c.do(ctx, http.MethodPost, "/api/auth/login", models.LoginRequest{Email: email, Password: password}, &resp)
	if err != nil {
		return nil, err
	}
	c.token = resp.Token
	return &resp, nil
}

// Register creates an account and stores the session token.
func (c *Client) Register(ctx context.Context, req models.RegisterRequest) (*models.LoginResponse, error) {
	var resp models.LoginResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", req, &resp); err != nil {
		return nil, err
	}
	c.token = resp.Token
	return &resp, nil
}

// PendingTrips returns the admin triage queue.
func (c *Client) PendingTrips(ctx context.Context) ([]models.Trip, error) {
	return cachedGet[[]models.Trip](ctx, c, "trips:pending", "/api/admin/trips/pending", events.TableTrips)
}

// ActiveTrips returns assigned and active trips.
func (c *Client) ActiveTrips(ctx context.Context) ([]models.Trip, error) {
	return cachedGet[[]models.Trip](ctx, c, "trips:active", "/api/admin/trips/active", events.TableTrips)
}

// MyTrips returns the calling client's trips.
func (c *Client) MyTrips(ctx context.Context) ([]models.Trip, error) {
	return cachedGet[[]models.Trip](ctx, c, "trips:mine", "/api/client/trips", events.TableTrips)
}

// CurrentTrip returns the calling driver's assigned or active trip, nil when
// there is none.
func (c *Client) CurrentTrip(ctx context.Context) (*models.Trip, error) {
	return cachedGet[*models.Trip](ctx, c, "trips:current", "/api/driver/trip", events.TableTrips)
}

// Trip returns one trip with parties joined.
func (c *Client) Trip(ctx context.Context, tripID string) (*models.Trip, error) {
	return cachedGet[*models.Trip](ctx, c, "trip:"+tripID, "/api/trips/"+tripID, events.TableTrips)
}

// Milestones returns a trip's milestone log.
func (c *Client) Milestones(ctx context.Context, tripID string) ([]models.Milestone, error) {
	return cachedGet[[]models.Milestone](ctx, c, "milestones:"+tripID, "/api/trips/"+tripID+"/milestones", events.TableMilestones)
}

// Messages returns a trip's chat thread.
func (c *Client) Messages(ctx context.Context, tripID string) ([]models.Message, error) {
	return cachedGet[[]models.Message](ctx, c, "messages:"+tripID, "/api/trips/"+tripID+"/messages", events.TableMessages)
}

// Vehicles returns the whole fleet.
func (c *Client) Vehicles(ctx context.Context) ([]models.Vehicle, error) {
	return cachedGet[[]models.Vehicle](ctx, c, "vehicles", "/api/admin/vehicles", events.TableVehicles)
}

// Drivers returns the driver roster.
func (c *Client) Drivers(ctx context.Context) ([]models.Profile, error) {
	return cachedGet[[]models.Profile](ctx, c, "drivers", "/api/admin/drivers", events.TableProfiles)
}

// CreateTrip requests a new shipment and invalidates trip views.
func (c *Client) CreateTrip(ctx context.Context, req models.CreateTripRequest) (*models.Trip, error) {
	var trip models.Trip
	if err := c.do(ctx, http.MethodPost, "/api/client/trips", req, &trip); err != nil {
		return nil, err
	}
	c.cache.Invalidate(events.TableTrips)
	return &trip, nil
}

// AssignTrip binds a driver and vehicle to a pending trip.
func (c *Client) AssignTrip(ctx context.Context, tripID, driverID, vehicleID string) error {
	err := c.do(ctx, http.MethodPost, "/api/admin/trips/"+tripID+"/assign",
		models.AssignTripRequest{DriverID: driverID, VehicleID: vehicleID}, nil)
	if err != nil {
		return err
	}
	c.cache.Invalidate(events.TableTrips)
	return nil
}

// RecordMilestone logs a break, fuel or toll event on the driver's trip.
func (c *Client) RecordMilestone(ctx context.Context, tripID string, req models.RecordMilestoneRequest) (*models.Milestone, error) {
	var milestone models.Milestone
	if err := c.do(ctx, http.MethodPost, "/api/driver/trips/"+tripID+"/milestones", req, &milestone); err != nil {
		return nil, err
	}
	c.cache.Invalidate(events.TableMilestones)
	return &milestone, nil
}

// ArrivePickup logs pickup and activates the trip.
func (c *Client) ArrivePickup(ctx context.Context, tripID, locationName string) error {
	err := c.do(ctx, http.MethodPost, "/api/driver/trips/"+tripID+"/arrive-pickup",
		map[string]string{"location_name": locationName}, nil)
	if err != nil {
		return err
	}
	c.cache.Invalidate(events.TableTrips, events.TableMilestones)
	return nil
}

// CompleteDelivery logs drop and completes the trip.
func (c *Client) CompleteDelivery(ctx context.Context, tripID, locationName string) error {
	err := c.do(ctx, http.MethodPost, "/api/driver/trips/"+tripID+"/complete",
		map[string]string{"location_name": locationName}, nil)
	if err != nil {
		return err
	}
	c.cache.Invalidate(events.TableTrips, events.TableMilestones)
	return nil
}

// SendMessage posts a chat line on a trip.
func (c *Client) SendMessage(ctx context.Context, tripID, content string) (*models.Message, error) {
	var message models.Message
	if err := c.do(ctx, http.MethodPost, "/api/trips/"+tripID+"/messages",
		models.SendMessageRequest{Content: content}, &message); err != nil {
		return nil, err
	}
	c.cache.Invalidate(events.TableMessages)
	return &message, nil
}

// CreateVehicle registers a fleet asset.
func (c *Client) CreateVehicle(ctx context.Context, req map[string]interface{}) (*models.Vehicle, error) {
	var vehicle models.Vehicle
	if err := c.do(ctx, http.MethodPost, "/api/admin/vehicles", req, &vehicle); err != nil {
		return nil, err
	}
	c.cache.Invalidate(events.TableVehicles)
	return &vehicle, nil
}

// CreateDriver onboards a driver account.
func (c *Client) CreateDriver(ctx context.Context, req models.CreateDriverRequest) (*models.Profile, error) {
	var driver models.Profile
	if err := c.do(ctx, http.MethodPost, "/api/admin/drivers", req, &driver); err != nil {
		return nil, err
	}
	c.cache.Invalidate(events.TableProfiles)
	return &driver, nil
}

// SetVehicleAvailability flips a vehicle's availability optimistically: the
// cached fleet view is patched before the request goes out, rolled back if
// the write fails, and invalidated once it settles so the next read returns
// the server's truth. Concurrent opposite toggles converge on the last write.
func (c *Client) SetVehicleAvailability(ctx context.Context, vehicleID string, available bool) error {
	snapshot, had := c.cache.Get("vehicles")
	if had {
		vehicles, ok := snapshot.([]models.Vehicle)
		if ok {
			patched := make([]models.Vehicle, len(vehicles))
			copy(patched, vehicles)
			for i := range patched {
				if patched[i].ID.Hex() == vehicleID {
					patched[i].IsAvailable = available
				}
			}
			c.cache.Set("vehicles", patched, events.TableVehicles)
		}
	}

	err := c.do(ctx, http.MethodPatch, "/api/admin/vehicles/"+vehicleID+"/availability",
		map[string]bool{"is_available": available}, nil)
	if err != nil {
		if had {
			c.cache.Set("vehicles", snapshot, events.TableVehicles)
		} else {
			c.cache.Invalidate(events.TableVehicles)
		}
		return err
	}

	c.cache.Invalidate(events.TableVehicles)
	return nil
}

// ListenChanges connects to the change feed, subscribes to the given tables
// and invalidates cached views as events arrive. It blocks until the context
// is cancelled or the connection drops. A trips change also invalidates
// vehicle views, since vehicle busy-ness derives from trip state.
func (c *Client) ListenChanges(ctx context.Context, tables ...events.Table) error {
	wsURL := strings.Replace(c.baseURL, "http", "ws", 1) + "/api/ws?token=" + c.token

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to change feed: %w", err)
	}
	defer conn.Close()

	for _, table := range tables {
		if err := conn.WriteJSON(ws.ClientMessage{Action: "subscribe", Table: table}); err != nil {
			return err
		}
	}

	// Anything cached before the subscriptions landed may already be stale.
	c.cache.Clear()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		var frame struct {
			Type    string        `json:"type"`
			Payload events.Change `json:"payload"`
		}
		if err := conn.ReadJSON(&frame); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		if frame.Type != "change" {
			continue
		}

		c.cache.Invalidate(frame.Payload.Table)
		if frame.Payload.Table == events.TableTrips {
			c.cache.Invalidate(events.TableVehicles)
		}
		log.WithFields(log.Fields{
			"table": frame.Payload.Table,
			"event": frame.Payload.Event,
		}).Debug("Invalidated cached views")
	}
}
