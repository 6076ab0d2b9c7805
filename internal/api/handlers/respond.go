// Package handlers provides HTTP request handlers for the local session server.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/spacebook/client/internal/account"
	"github.com/spacebook/client/internal/api/middleware"
	"github.com/spacebook/client/internal/apiclient"
	"github.com/spacebook/client/internal/booking"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// decodeJSON reads the request body into v. An empty body leaves v untouched.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid request body")
	return false
}

// pathID parses the {id} route variable.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "Invalid id")
		return 0, false
	}
	return id, true
}

// writeFailure maps err onto the error response the browser understands.
func writeFailure(w http.ResponseWriter, r *http.Request, err error) {
	var accountErr *account.ValidationError
	var bookingErr *booking.ValidationError
	var apiErr *apiclient.Error

	switch {
	case errors.As(err, &accountErr):
		middleware.WriteErrorWithDetails(w, http.StatusBadRequest, middleware.ErrValidation, accountErr.Messages[0], accountErr.Messages)
	case errors.As(err, &bookingErr):
		middleware.WriteErrorWithDetails(w, http.StatusBadRequest, middleware.ErrValidation, bookingErr.Messages[0], bookingErr.Messages)
	case errors.Is(err, booking.ErrFormBusy), errors.Is(err, booking.ErrFormClosed):
		middleware.WriteError(w, http.StatusConflict, middleware.ErrConflict, err.Error())
	case errors.Is(err, apiclient.ErrSessionExpired):
		middleware.WriteError(w, http.StatusUnauthorized, middleware.ErrSessionExpired, apiclient.MessageSessionExpired)
	case errors.Is(err, apiclient.ErrServiceUnreachable):
		middleware.WriteError(w, http.StatusBadGateway, middleware.ErrServiceUnreachable, apiclient.MessageUnreachable)
	case errors.As(err, &apiErr):
		middleware.WriteErrorWithDetails(w, http.StatusUnprocessableEntity, middleware.ErrRequestFailed, apiErr.Message, map[string]int{"status": apiErr.Status})
	default:
		middleware.Logger(r.Context()).Error("request failed", zap.Error(err))
		middleware.WriteError(w, http.StatusInternalServerError, middleware.ErrInternalError, "An unexpected error occurred")
	}
}
