package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/spacebook/client/internal/api/middleware"
	"github.com/spacebook/client/internal/apiclient"
	"github.com/spacebook/client/internal/booking"
	"github.com/spacebook/client/internal/models"
	"github.com/spacebook/client/internal/websocket"
)

// CreateFormRequest opens a booking form, optionally on a date.
type CreateFormRequest struct {
	SpaceID int64  `json:"spaceId"`
	Date    string `json:"date,omitempty"`
}

// CreateForm opens a booking form for a space.
func CreateForm(client *apiclient.Client, registry *booking.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateFormRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.SpaceID <= 0 {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "spaceId is required")
			return
		}

		ctx := r.Context()
		space, err := client.Space(ctx, req.SpaceID)
		if err != nil {
			writeFailure(w, r, err)
			return
		}

		form := registry.Open(booking.SpaceInfoFrom(*space))
		if req.Date != "" {
			if err := selectDate(ctx, client, form, req.Date); err != nil {
				registry.Close(form.ID())
				writeFailure(w, r, err)
				return
			}
		}
		writeJSON(w, http.StatusCreated, form.Snapshot())
	}
}

// selectDate moves form to date and loads that date's reserved intervals.
func selectDate(ctx context.Context, source booking.AvailabilitySource, form *booking.Form, date string) error {
	if _, err := form.Apply(booking.Update{Date: &date}); err != nil {
		return err
	}
	date = form.Date()
	intervals, err := source.ReservedTimes(ctx, form.Space().ID, date)
	if err != nil {
		return err
	}
	form.LoadReserved(date, intervals)
	return nil
}

func lookupForm(w http.ResponseWriter, r *http.Request, registry *booking.Registry) (*booking.Form, bool) {
	form, ok := registry.Get(mux.Vars(r)["id"])
	if !ok {
		middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Booking form not found")
		return nil, false
	}
	return form, true
}

// GetForm returns the current state of a form.
func GetForm(registry *booking.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, ok := lookupForm(w, r, registry)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, form.Snapshot())
	}
}

// UpdateForm applies a partial edit. A new date is applied and its
// availability loaded before the hours are checked against it.
func UpdateForm(client *apiclient.Client, registry *booking.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, ok := lookupForm(w, r, registry)
		if !ok {
			return
		}

		var update booking.Update
		if !decodeJSON(w, r, &update) {
			return
		}

		if update.Date != nil {
			if err := selectDate(r.Context(), client, form, *update.Date); err != nil {
				writeFailure(w, r, err)
				return
			}
			update.Date = nil
		}
		if _, err := form.Apply(update); err != nil {
			writeFailure(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, form.Snapshot())
	}
}

// announcingSubmitter tells connected tabs when a draft actually goes out.
type announcingSubmitter struct {
	client *apiclient.Client
	events *websocket.EventBroadcaster
	formID string
}

func (s announcingSubmitter) CreateReservation(ctx context.Context, req models.CreateReservationRequest) (*models.Reservation, error) {
	s.events.BroadcastBookingSubmitted(s.formID, req.SpaceID)
	return s.client.CreateReservation(ctx, req)
}

// SubmitForm validates the form and creates the reservation.
func SubmitForm(client *apiclient.Client, registry *booking.Registry, events *websocket.EventBroadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		form, ok := lookupForm(w, r, registry)
		if !ok {
			return
		}

		submitter := announcingSubmitter{client: client, events: events, formID: form.ID()}
		reservation, err := form.Submit(r.Context(), submitter)
		if err != nil {
			var verr *booking.ValidationError
			if !errors.As(err, &verr) && !errors.Is(err, booking.ErrFormBusy) && !errors.Is(err, booking.ErrFormClosed) {
				events.BroadcastBookingFailed(form.ID(), form.Space().ID, apiclient.UserMessage(err))
			}
			writeFailure(w, r, err)
			return
		}

		events.BroadcastBookingConfirmed(form.ID(), *reservation)
		writeJSON(w, http.StatusCreated, form.Snapshot())
	}
}

// DeleteForm discards a form.
func DeleteForm(registry *booking.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !registry.Close(mux.Vars(r)["id"]) {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Booking form not found")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
