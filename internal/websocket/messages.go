package websocket

import (
	"encoding/json"
	"time"

	"github.com/spacebook/client/internal/models"
)

// MessageType identifies the type of WebSocket message.
type MessageType string

const (
	// Server -> Client event types
	TypeSessionExpired      MessageType = "session.expired"
	TypeAvailabilityChanged MessageType = "availability.changed"
	TypeBookingSubmitted    MessageType = "booking.submitted"
	TypeBookingConfirmed    MessageType = "booking.confirmed"
	TypeBookingFailed       MessageType = "booking.failed"
	TypeReservationCanceled MessageType = "reservation.cancelled"
	TypeNotification        MessageType = "notification"

	// Client -> Server command types
	TypePing MessageType = "ping"

	// Server -> Client response types
	TypePong  MessageType = "pong"
	TypeError MessageType = "error"
)

// Message represents a WebSocket message envelope.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   any         `json:"payload,omitempty"`
}

// NewMessage creates a new message with the current timestamp.
func NewMessage(msgType MessageType, payload any) Message {
	return Message{
		Type:      msgType,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// JSON serializes the message to JSON bytes.
func (m Message) JSON() ([]byte, error) {
	return json.Marshal(m)
}

// SessionExpiredPayload is the payload for session.expired events.
type SessionExpiredPayload struct {
	Message string `json:"message"`
}

// AvailabilityPayload is the payload for availability.changed events.
type AvailabilityPayload struct {
	FormID   string                `json:"form_id"`
	SpaceID  int64                 `json:"space_id"`
	Date     string                `json:"date"`
	Reserved []models.ReservedTime `json:"reserved"`
	Cleared  bool                  `json:"selection_cleared"`
}

// BookingPayload is the payload for booking.* events.
type BookingPayload struct {
	FormID        string `json:"form_id"`
	SpaceID       int64  `json:"space_id"`
	ReservationID int64  `json:"reservation_id,omitempty"`
	TotalPrice    int64  `json:"total_price,omitempty"`
	Message       string `json:"message,omitempty"`
}

// ReservationPayload is the payload for reservation.cancelled events.
type ReservationPayload struct {
	ReservationID int64 `json:"reservation_id"`
}

// NotificationPayload is the payload for notification events.
type NotificationPayload struct {
	Level       string `json:"level"` // info, warning, error, success
	Title       string `json:"title"`
	Message     string `json:"message"`
	Dismissible bool   `json:"dismissible"`
}

// ErrorPayload is the payload for error messages.
type ErrorPayload struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	OriginalType string `json:"original_type,omitempty"`
}

// ParseCommand decodes a client message and returns its type.
func ParseCommand(data []byte) (MessageType, error) {
	var cmd struct {
		Type MessageType `json:"type"`
	}
	if err := json.Unmarshal(data, &cmd); err != nil {
		return "", err
	}
	return cmd.Type, nil
}
