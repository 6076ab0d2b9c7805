package websocket

import (
	"go.uber.org/zap"

	"github.com/spacebook/client/internal/models"
)

// EventBroadcaster handles broadcasting WebSocket events.
type EventBroadcaster struct {
	hub    *Hub
	logger *zap.Logger
}

// NewEventBroadcaster creates a new event broadcaster.
func NewEventBroadcaster(hub *Hub) *EventBroadcaster {
	return &EventBroadcaster{hub: hub, logger: hub.logger}
}

// BroadcastSessionExpired tells every tab the login is gone.
func (b *EventBroadcaster) BroadcastSessionExpired(message string) {
	b.broadcast(NewMessage(TypeSessionExpired, SessionExpiredPayload{Message: message}))
}

// BroadcastAvailabilityChanged sends the new reserved intervals of a form's date.
func (b *EventBroadcaster) BroadcastAvailabilityChanged(formID string, spaceID int64, date string, reserved []models.ReservedTime, cleared bool) {
	if reserved == nil {
		reserved = []models.ReservedTime{}
	}
	payload := AvailabilityPayload{
		FormID:   formID,
		SpaceID:  spaceID,
		Date:     date,
		Reserved: reserved,
		Cleared:  cleared,
	}
	b.broadcast(NewMessage(TypeAvailabilityChanged, payload))
}

// BroadcastBookingSubmitted announces that a form went to the service.
func (b *EventBroadcaster) BroadcastBookingSubmitted(formID string, spaceID int64) {
	b.broadcast(NewMessage(TypeBookingSubmitted, BookingPayload{FormID: formID, SpaceID: spaceID}))
}

// BroadcastBookingConfirmed announces an accepted reservation.
func (b *EventBroadcaster) BroadcastBookingConfirmed(formID string, reservation models.Reservation) {
	payload := BookingPayload{
		FormID:        formID,
		SpaceID:       reservation.SpaceID,
		ReservationID: reservation.ID,
		TotalPrice:    reservation.TotalPrice,
	}
	b.broadcast(NewMessage(TypeBookingConfirmed, payload))
}

// BroadcastBookingFailed announces a rejected submission.
func (b *EventBroadcaster) BroadcastBookingFailed(formID string, spaceID int64, message string) {
	payload := BookingPayload{FormID: formID, SpaceID: spaceID, Message: message}
	b.broadcast(NewMessage(TypeBookingFailed, payload))
}

// BroadcastReservationCancelled announces a cancellation.
func (b *EventBroadcaster) BroadcastReservationCancelled(reservationID int64) {
	b.broadcast(NewMessage(TypeReservationCanceled, ReservationPayload{ReservationID: reservationID}))
}

// BroadcastNotification sends a notification to all connected clients.
func (b *EventBroadcaster) BroadcastNotification(level, title, message string) {
	payload := NotificationPayload{
		Level:       level,
		Title:       title,
		Message:     message,
		Dismissible: true,
	}
	b.broadcast(NewMessage(TypeNotification, payload))
}

// broadcast sends a message to all connected clients.
func (b *EventBroadcaster) broadcast(msg Message) {
	data, err := msg.JSON()
	if err != nil {
		b.logger.Error("encoding websocket message", zap.String("type", string(msg.Type)), zap.Error(err))
		return
	}

	b.hub.Broadcast(data)
}
