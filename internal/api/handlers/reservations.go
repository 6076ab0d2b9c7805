package handlers

import (
	"net/http"
	"strconv"

	"github.com/spacebook/client/internal/api/middleware"
	"github.com/spacebook/client/internal/apiclient"
	"github.com/spacebook/client/internal/websocket"
)

// MyReservations lists the user's reservations, newest first. page is zero-based.
func MyReservations(client *apiclient.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := 0
		if v := r.URL.Query().Get("page"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "page must be a non-negative number")
				return
			}
			page = n
		}

		reservations, err := client.MyReservations(r.Context(), page)
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, reservations)
	}
}

// GetReservation returns one reservation.
func GetReservation(client *apiclient.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		reservation, err := client.Reservation(r.Context(), id)
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, reservation)
	}
}

// CancelReservation cancels a reservation and tells connected tabs.
func CancelReservation(client *apiclient.Client, events *websocket.EventBroadcaster) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		if err := client.CancelReservation(r.Context(), id); err != nil {
			writeFailure(w, r, err)
			return
		}
		events.BroadcastReservationCancelled(id)
		w.WriteHeader(http.StatusNoContent)
	}
}
