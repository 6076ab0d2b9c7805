package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spacebook/client/internal/api/middleware"
	"github.com/spacebook/client/internal/apiclient"
	"github.com/spacebook/client/internal/booking"
	"github.com/spacebook/client/internal/models"
)

// ListSpaces searches the catalog with the query's filters.
func ListSpaces(client *apiclient.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := client.Spaces(r.Context(), models.ParseSpaceSearch(r.URL.Query()))
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, page)
	}
}

// GetSpace returns one space.
func GetSpace(client *apiclient.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		space, err := client.Space(r.Context(), id)
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, space)
	}
}

// SlotsResponse describes the bookable hours of a space on one date.
type SlotsResponse struct {
	SpaceID      int64                `json:"spaceId"`
	Date         string               `json:"date"`
	Reserved     booking.Reserved     `json:"reserved"`
	StartOptions []booking.HourOption `json:"startOptions"`
	EndOptions   []booking.HourOption `json:"endOptions,omitempty"`
	Valid        *bool                `json:"valid,omitempty"`
	TotalPrice   int64                `json:"totalPrice,omitempty"`
}

// Slots answers which hours of a date can start or end a booking. With
// start it lists the valid ends; with start and end it also prices the interval.
func Slots(client *apiclient.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		q := r.URL.Query()
		date := q.Get("date")
		if _, err := time.Parse(booking.DateLayout, date); err != nil {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, booking.MessageInvalidDate)
			return
		}
		start, ok := optionalHour(w, q.Get("start"))
		if !ok {
			return
		}
		end, ok := optionalHour(w, q.Get("end"))
		if !ok {
			return
		}

		ctx := r.Context()
		space, err := client.Space(ctx, id)
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		intervals, err := client.ReservedTimes(ctx, id, date)
		if err != nil {
			writeFailure(w, r, err)
			return
		}

		reserved := booking.Reserved(intervals).Sorted()
		resp := SlotsResponse{
			SpaceID:      id,
			Date:         date,
			Reserved:     reserved,
			StartOptions: reserved.StartOptions(),
		}
		startOK := booking.InGrid(start) && !reserved.IsReserved(start)
		if start > 0 {
			resp.EndOptions = []booking.HourOption{}
			if startOK {
				resp.EndOptions = reserved.EndOptions(start)
			}
		}
		if start > 0 && end > 0 {
			valid := startOK && reserved.IsValidEnd(start, end)
			resp.Valid = &valid
			if valid {
				resp.TotalPrice = booking.Price(start, end, space.PricePerHour)
			}
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func optionalHour(w http.ResponseWriter, v string) (int, bool) {
	if v == "" {
		return 0, true
	}
	hour, err := strconv.Atoi(v)
	if err != nil || hour < 0 || hour > 24 {
		middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "hours must be whole numbers between 0 and 24")
		return 0, false
	}
	return hour, true
}

// Recommendations asks the service for spaces matching a free-text description.
func Recommendations(client *apiclient.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.RecommendationRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		req.Query = strings.TrimSpace(req.Query)
		if req.Query == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.ErrValidation, "describe the space you are looking for")
			return
		}

		spaces, err := client.Recommendations(r.Context(), req.Query)
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		if spaces == nil {
			spaces = []models.SpaceListItem{}
		}
		writeJSON(w, http.StatusOK, spaces)
	}
}
