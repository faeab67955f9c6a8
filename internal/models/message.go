package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Message is one append-only chat line between the client and the admin on a
// trip. Sender is joined for display.
type Message struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TripID    string             `bson:"trip_id" json:"trip_id"`
	SenderID  string             `bson:"sender_id" json:"sender_id"`
	Content   string             `bson:"content" json:"content"`
	CreatedAt time.Time          `bson:"created_at" json:"created_at"`

	Sender *ProfileRef `bson:"-" json:"sender,omitempty"`
}

// SendMessageRequest is the payload for posting a chat line.
type SendMessageRequest struct {
	Content string `json:"content"`
}
