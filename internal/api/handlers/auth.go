package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/spacebook/client/internal/account"
	"github.com/spacebook/client/internal/api/middleware"
	"github.com/spacebook/client/internal/models"
	"github.com/spacebook/client/internal/storage"
)

// Login authenticates and stores the issued credentials.
func Login(accounts *account.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.LoginRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		user, err := accounts.Login(r.Context(), req)
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}

// Signup creates an account and signs it in.
func Signup(accounts *account.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.SignupRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		user, err := accounts.Signup(r.Context(), req)
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, user)
	}
}

// Logout ends the session. Calling it while signed out is not an error.
func Logout(accounts *account.Service, forms interface{ Clear() }) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := accounts.Logout(r.Context()); err != nil {
			writeFailure(w, r, err)
			return
		}
		forms.Clear()
		w.WriteHeader(http.StatusNoContent)
	}
}

// Withdraw deletes the account.
func Withdraw(accounts *account.Service, forms interface{ Clear() }) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req models.DeleteAccountRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		if err := accounts.Withdraw(r.Context(), req.Password); err != nil {
			writeFailure(w, r, err)
			return
		}
		forms.Clear()
		w.WriteHeader(http.StatusNoContent)
	}
}

// Me returns the signed-in user, or 401 when anonymous.
func Me(accounts *account.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := accounts.CurrentUser(r.Context())
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		if user == nil {
			middleware.WriteError(w, http.StatusUnauthorized, middleware.ErrUnauthorized, "Not signed in")
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}

// UpdateMe changes the phone number and/or password.
func UpdateMe(accounts *account.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var edit account.ProfileEdit
		if !decodeJSON(w, r, &edit) {
			return
		}

		user, err := accounts.UpdateProfile(r.Context(), edit)
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}

// HistorySource lists recent sign-in, renewal and sign-out events.
type HistorySource interface {
	History(ctx context.Context, limit int) ([]storage.SessionEvent, error)
}

// SessionHistory returns the credential history of the profile. It is only
// available with a backend that records one.
func SessionHistory(source HistorySource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if source == nil {
			middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Session history is not recorded by this credential backend")
			return
		}

		limit := 20
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 || n > 200 {
				middleware.WriteError(w, http.StatusBadRequest, middleware.ErrBadRequest, "limit must be between 1 and 200")
				return
			}
			limit = n
		}

		events, err := source.History(r.Context(), limit)
		if err != nil {
			writeFailure(w, r, err)
			return
		}
		if events == nil {
			events = []storage.SessionEvent{}
		}
		writeJSON(w, http.StatusOK, events)
	}
}
