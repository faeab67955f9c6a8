package ws

import (
	"net/http"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"github.com/shiplink/fleet-coordination/internal/middleware"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin policy is handled by the CORS middleware in front of the router.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler upgrades authenticated requests into hub sessions.
type Handler struct {
	hub *Hub
}

// NewHandler creates a websocket handler for a hub.
func NewHandler(hub *Hub) *Handler {
	return &Handler{hub: hub}
}

// ServeHTTP upgrades the connection and runs the session pumps. The session
// starts with no subscriptions; the client sends subscribe messages for the
// tables (and trips) it watches.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	session := newSession(h.hub, conn, claims)
	h.hub.register <- session

	go session.writePump()
	go session.readPump()
}
