package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"github.com/shiplink/fleet-coordination/internal/events"
	"github.com/shiplink/fleet-coordination/internal/models"
)

// subscription scopes a session to one table, optionally to one trip.
// An empty TripID means every row of the table.
type subscription struct {
	Table  events.Table
	TripID string
}

// Session is one connected websocket consumer.
type Session struct {
	ID     string
	Claims *models.Claims

	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	mu   sync.RWMutex
	subs map[subscription]struct{}
}

// ClientMessage is what a session sends to manage its subscriptions.
type ClientMessage struct {
	Action string       `json:"action"` // "subscribe" or "unsubscribe"
	Table  events.Table `json:"table"`
	TripID string       `json:"trip_id,omitempty"`
}

// ServerMessage wraps every frame pushed to a session.
type ServerMessage struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

func (s *Session) subscribe(table events.Table, tripID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs[subscription{Table: table, TripID: tripID}] = struct{}{}
}

func (s *Session) unsubscribe(table events.Table, tripID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, subscription{Table: table, TripID: tripID})
}

// wants reports whether a change event matches one of the session's
// subscriptions, either table-wide or scoped to the event's trip.
func (s *Session) wants(change events.Change) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.subs[subscription{Table: change.Table}]; ok {
		return true
	}
	if change.TripID == "" {
		return false
	}
	_, ok := s.subs[subscription{Table: change.Table, TripID: change.TripID}]
	return ok
}

// Hub forwards bus events to connected sessions.
type Hub struct {
	bus        *events.Bus
	register   chan *Session
	unregister chan *Session
	sessions   map[string]*Session
}

// NewHub creates a hub over an event bus.
func NewHub(bus *events.Bus) *Hub {
	return &Hub{
		bus:        bus,
		register:   make(chan *Session),
		unregister: make(chan *Session),
		sessions:   make(map[string]*Session),
	}
}

// Run pumps registrations and change events until the context is cancelled
// or the bus closes.
func (h *Hub) Run(ctx context.Context) {
	subID, changes := h.bus.Subscribe(256)
	defer h.bus.Unsubscribe(subID)

	for {
		select {
		case <-ctx.Done():
			for id, session := range h.sessions {
				delete(h.sessions, id)
				close(session.send)
			}
			return

		case session := <-h.register:
			h.sessions[session.ID] = session
			log.WithFields(log.Fields{
				"session": session.ID,
				"role":    session.Claims.Role,
			}).Info("WebSocket session registered")

		case session := <-h.unregister:
			if _, ok := h.sessions[session.ID]; ok {
				delete(h.sessions, session.ID)
				close(session.send)
				log.WithField("session", session.ID).Info("WebSocket session unregistered")
			}

		case change, ok := <-changes:
			if !ok {
				return
			}
			h.broadcast(change)
		}
	}
}

func (h *Hub) broadcast(change events.Change) {
	frame := ServerMessage{
		Type:      "change",
		Payload:   change,
		Timestamp: time.Now(),
	}
	data, err := json.Marshal(frame)
	if err != nil {
		log.WithError(err).Error("Failed to marshal change frame")
		return
	}

	for id, session := range h.sessions {
		if !session.wants(change) {
			continue
		}
		select {
		case session.send <- data:
		default:
			// Slow consumer: drop the session, it reconnects and refetches.
			delete(h.sessions, id)
			close(session.send)
		}
	}
}

func newSession(hub *Hub, conn *websocket.Conn, claims *models.Claims) *Session {
	return &Session{
		ID:     uuid.NewString(),
		Claims: claims,
		conn:   conn,
		send:   make(chan []byte, 32),
		hub:    hub,
		subs:   make(map[subscription]struct{}),
	}
}

func (s *Session) writePump() {
	ticker := time.NewTicker(30 * time.Second) // Ping interval
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case message, ok := <-s.send:
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := s.conn.WriteMessage(websocket.PingMessage, []byte{}); err != nil {
				return
			}
		}
	}
}

func (s *Session) readPump() {
	defer func() {
		s.hub.unregister <- s
		s.conn.Close()
	}()

	s.conn.SetReadLimit(1024)
	s.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.WithError(err).WithField("session", s.ID).Warn("WebSocket read error")
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			log.WithField("session", s.ID).Warn("Malformed WebSocket message")
			continue
		}
		s.handleMessage(msg)
	}
}

func (s *Session) handleMessage(msg ClientMessage) {
	switch msg.Action {
	case "subscribe":
		s.subscribe(msg.Table, msg.TripID)
	case "unsubscribe":
		s.unsubscribe(msg.Table, msg.TripID)
	default:
		log.WithFields(log.Fields{
			"session": s.ID,
			"action":  msg.Action,
		}).Warn("Unknown WebSocket action")
	}
}
