package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shiplink/fleet-coordination/internal/db"
	"github.com/shiplink/fleet-coordination/internal/events"
	"github.com/shiplink/fleet-coordination/internal/middleware"
	"github.com/shiplink/fleet-coordination/internal/models"
)

// MessageHandler handles the per-trip chat between the client and admins.
type MessageHandler struct {
	trips    db.TripCollection
	messages db.MessageCollection
	profiles db.ProfileCollection
	bus      *events.Bus
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(trips db.TripCollection, messages db.MessageCollection, profiles db.ProfileCollection, bus *events.Bus) *MessageHandler {
	return &MessageHandler{
		trips:    trips,
		messages: messages,
		profiles: profiles,
		bus:      bus,
	}
}

// ListMessages returns a trip's messages oldest-first, with sender names
// joined in.
func (h *MessageHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
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

	messages, err := h.messages.FindMessagesByTrip(r.Context(), tripID)
	if err != nil {
		http.Error(w, "Failed to list messages", http.StatusInternalServerError)
		return
	}

	senderIDs := make([]string, 0, len(messages))
	seen := make(map[string]bool, len(messages))
	for i := range messages {
		if !seen[messages[i].SenderID] {
			seen[messages[i].SenderID] = true
			senderIDs = append(senderIDs, messages[i].SenderID)
		}
	}
	if len(senderIDs) > 0 {
		senders, err := h.profiles.FindProfilesByIDs(r.Context(), senderIDs)
		if err == nil {
			for i := range messages {
				if sender, ok := senders[messages[i].SenderID]; ok {
					messages[i].Sender = sender.Ref()
				}
			}
		}
	}

	writeJSON(w, http.StatusOK, messages)
}

// SendMessage appends a chat message to a trip. Admins can post on any trip;
// clients only on their own. Drivers coordinate by phone, not chat.
func (h *MessageHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
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
	if claims.Role != models.RoleAdmin && trip.ClientID != claims.UserID {
		http.Error(w, "Insufficient permissions", http.StatusForbidden)
		return
	}

	var req models.SendMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		http.Error(w, "Message content is required", http.StatusBadRequest)
		return
	}
	if len(content) > 2000 {
		http.Error(w, "Message is too long", http.StatusBadRequest)
		return
	}

	message := models.Message{
		TripID:   tripID,
		SenderID: claims.UserID,
		Content:  content,
	}
	if err := h.messages.InsertMessage(r.Context(), &message); err != nil {
		http.Error(w, "Failed to send message", http.StatusInternalServerError)
		return
	}

	h.bus.Publish(events.TableMessages, events.EventInsert, message.ID.Hex(), tripID)

	writeJSON(w, http.StatusCreated, message)
}
