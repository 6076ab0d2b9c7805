package mockapi

import (
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/spacebook/client/internal/models"
)

func (s *Server) handleCreateReservation(w http.ResponseWriter, r *http.Request) {
	var req models.CreateReservationRequest
	if !decodeBody(r, &req) {
		writeFailure(w, http.StatusBadRequest, "invalid request body")
		return
	}

	start, errStart := time.ParseInLocation(timeLayout, req.StartTime, time.Local)
	end, errEnd := time.ParseInLocation(timeLayout, req.EndTime, time.Local)
	if errStart != nil || errEnd != nil {
		writeFailure(w, http.StatusBadRequest, "times must use the YYYY-MM-DDTHH:mm:ss format")
		return
	}
	if !start.Truncate(time.Hour).Equal(start) || !end.Truncate(time.Hour).Equal(end) {
		writeFailure(w, http.StatusBadRequest, "reservations must start and end on the hour")
		return
	}
	if !end.After(start) {
		writeFailure(w, http.StatusBadRequest, "end time must be after start time")
		return
	}
	if start.Before(s.now().Truncate(time.Hour).Add(time.Hour)) {
		writeFailure(w, http.StatusBadRequest, "reservations must start at least one hour from now")
		return
	}
	if req.PeopleCount < 1 {
		writeFailure(w, http.StatusBadRequest, "at least 1 person is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	space := s.findSpace(req.SpaceID)
	if space == nil || space.SpaceStatus != models.SpaceOpen {
		writeFailure(w, http.StatusNotFound, "space not found")
		return
	}
	if req.PeopleCount > space.Capacity {
		writeFailure(w, http.StatusBadRequest, "the number of people exceeds the space capacity")
		return
	}
	for _, b := range s.bookings {
		if b.SpaceID == space.ID && b.ReservationStatus == models.ReservationConfirmed &&
			b.start.Before(end) && start.Before(b.end) {
			writeFailure(w, http.StatusConflict, "the selected time is already reserved")
			return
		}
	}

	hours := int64(end.Sub(start) / time.Hour)
	s.nextReservationID++
	b := &booking{
		Reservation: models.Reservation{
			ID:                s.nextReservationID,
			UserID:            userID(r),
			SpaceID:           space.ID,
			StartTime:         start.Format(timeLayout),
			EndTime:           end.Format(timeLayout),
			PeopleCount:       req.PeopleCount,
			Purpose:           req.Purpose,
			TotalPrice:        hours * space.PricePerHour,
			ReservationStatus: models.ReservationConfirmed,
			CreatedAt:         s.now().Format(timeLayout),
		},
		start: start,
		end:   end,
	}
	s.bookings = append(s.bookings, b)

	s.logger.Debug("reservation created",
		zap.Int64("reservation_id", b.ID),
		zap.Int64("space_id", space.ID),
	)
	writeData(w, http.StatusCreated, b.Reservation)
}

func (s *Server) handleMyReservations(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	uid := userID(r)

	s.mu.Lock()
	items := []models.ReservationListItem{}
	for i := len(s.bookings) - 1; i >= 0; i-- {
		b := s.bookings[i]
		if b.UserID != uid {
			continue
		}
		name := ""
		if space := s.findSpace(b.SpaceID); space != nil {
			name = space.SpaceName
		}
		items = append(items, models.ReservationListItem{
			ID:                b.ID,
			SpaceID:           b.SpaceID,
			SpaceName:         name,
			StartTime:         b.StartTime,
			EndTime:           b.EndTime,
			TotalPrice:        b.TotalPrice,
			ReservationStatus: b.ReservationStatus,
		})
	}
	s.mu.Unlock()

	writeData(w, http.StatusOK, paginate(items, page, 10))
}

// ownedBooking finds reservation id of the caller, writing the failure when absent.
// Callers hold s.mu.
func (s *Server) ownedBooking(w http.ResponseWriter, r *http.Request) *booking {
	b := s.findBooking(pathID(r))
	if b == nil {
		writeFailure(w, http.StatusNotFound, "reservation not found")
		return nil
	}
	if b.UserID != userID(r) {
		writeFailure(w, http.StatusForbidden, "this reservation belongs to another user")
		return nil
	}
	return b
}

func (s *Server) handleGetReservation(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if b := s.ownedBooking(w, r); b != nil {
		writeData(w, http.StatusOK, b.Reservation)
	}
}

func (s *Server) handleCancelReservation(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b := s.ownedBooking(w, r)
	if b == nil {
		return
	}
	if b.ReservationStatus == models.ReservationCancelled {
		writeFailure(w, http.StatusBadRequest, "the reservation is already cancelled")
		return
	}
	if s.now().After(b.start.AddDate(0, 0, -1)) {
		writeFailure(w, http.StatusBadRequest, "reservations can only be cancelled up to one day before the start")
		return
	}

	b.ReservationStatus = models.ReservationCancelled
	writeData(w, http.StatusOK, nil)
}
