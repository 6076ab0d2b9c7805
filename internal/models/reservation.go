package models

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

const (
	ReservationConfirmed ReservationStatus = "CONFIRMED"
	ReservationCancelled ReservationStatus = "CANCELLED"
)

// Reservation is a confirmed or cancelled booking.
type Reservation struct {
	ID                int64             `json:"id"`
	UserID            int64             `json:"userId"`
	SpaceID           int64             `json:"spaceId"`
	StartTime         string            `json:"startTime"`
	EndTime           string            `json:"endTime"`
	PeopleCount       int               `json:"peopleCount"`
	Purpose           string            `json:"purpose,omitempty"`
	TotalPrice        int64             `json:"totalPrice"`
	ReservationStatus ReservationStatus `json:"reservationStatus"`
	CreatedAt         string            `json:"createdAt"`
}

// ReservationListItem is the entry shown in "my reservations".
type ReservationListItem struct {
	ID                int64             `json:"id"`
	SpaceID           int64             `json:"spaceId"`
	SpaceName         string            `json:"spaceName"`
	StartTime         string            `json:"startTime"`
	EndTime           string            `json:"endTime"`
	TotalPrice        int64             `json:"totalPrice"`
	ReservationStatus ReservationStatus `json:"reservationStatus"`
}

// CreateReservationRequest is the body of POST /reservations.
// Times use the local "2006-01-02T15:04:05" layout.
type CreateReservationRequest struct {
	SpaceID     int64  `json:"spaceId"`
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	PeopleCount int    `json:"peopleCount"`
	Purpose     string `json:"purpose,omitempty"`
}

// ReservedTime is one booked hour block of a space on a given day.
type ReservedTime struct {
	StartHour int `json:"startHour"`
	EndHour   int `json:"endHour"`
}
