package entity

import (
	"fmt"
	"time"
)

type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypeImage    MessageType = "image"
	MessageTypeLocation MessageType = "location"
)

// Location is the payload of a location message.
type Location struct {
	Latitude    float64 `json:"latitude" firestore:"latitude"`
	Longitude   float64 `json:"longitude" firestore:"longitude"`
	AddressName string  `json:"address_name" firestore:"addressName"`
}

// Message is an immutable, append-only child of a ChatRoom. Exactly one
// payload field is set depending on Type. Image messages carry only the
// storage object key; readers resolve it to a URL with their own base-URL
// configuration, never from the record itself.
type Message struct {
	ID       string      `json:"id" firestore:"id"`
	RoomID   string      `json:"room_id" firestore:"roomId"`
	SenderID string      `json:"sender_id" firestore:"senderId"`
	Type     MessageType `json:"type" firestore:"type"`

	Text     string    `json:"text,omitempty" firestore:"text,omitempty"`
	ImageKey string    `json:"image_key,omitempty" firestore:"imageKey,omitempty"`
	Location *Location `json:"location,omitempty" firestore:"location,omitempty"`

	// Timestamp is server-assigned at write time and is the sort key.
	Timestamp time.Time `json:"timestamp" firestore:"timestamp,serverTimestamp"`

	// Pending marks a local optimistic echo that has not been confirmed
	// by the store yet. Never persisted.
	Pending bool `json:"pending,omitempty" firestore:"-"`
}

// Validate checks that the message carries exactly the payload its type
// requires.
func (m *Message) Validate() error {
	switch m.Type {
	case MessageTypeText:
		if m.Text == "" {
			return fmt.Errorf("text message requires a body")
		}
	case MessageTypeImage:
		if m.ImageKey == "" {
			return fmt.Errorf("image message requires an object key")
		}
	case MessageTypeLocation:
		if m.Location == nil || m.Location.AddressName == "" {
			return fmt.Errorf("location message requires coordinates and an address name")
		}
	default:
		return fmt.Errorf("unknown message type %q", m.Type)
	}
	return nil
}

// Preview returns the human-readable summary stored on the room as
// lastMessage.
func (m *Message) Preview() string {
	switch m.Type {
	case MessageTypeImage:
		return "📷 Photo"
	case MessageTypeLocation:
		if m.Location != nil {
			return "📍 " + m.Location.AddressName
		}
		return "📍 Location"
	default:
		return m.Text
	}
}

// SamePayload reports whether two messages carry an identical payload.
// Used to match a local echo against its confirmed server record.
func (m *Message) SamePayload(other *Message) bool {
	if m.Type != other.Type {
		return false
	}
	switch m.Type {
	case MessageTypeText:
		return m.Text == other.Text
	case MessageTypeImage:
		return m.ImageKey == other.ImageKey
	case MessageTypeLocation:
		if m.Location == nil || other.Location == nil {
			return m.Location == other.Location
		}
		return *m.Location == *other.Location
	}
	return false
}
