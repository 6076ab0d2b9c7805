// Package api provides HTTP routing for the local session server.
package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/spacebook/client/internal/account"
	"github.com/spacebook/client/internal/api/handlers"
	"github.com/spacebook/client/internal/api/middleware"
	"github.com/spacebook/client/internal/apiclient"
	"github.com/spacebook/client/internal/booking"
	"github.com/spacebook/client/internal/session"
	"github.com/spacebook/client/internal/websocket"
)

// Services are the components the routes are served from.
type Services struct {
	Client   *apiclient.Client
	Accounts *account.Service
	Registry *booking.Registry
	Hub      *websocket.Hub

	// CredentialBackend names the store for /status.
	CredentialBackend string
	// StoreCheck and RemoteCheck feed /health; either may be nil.
	StoreCheck  handlers.Checker
	RemoteCheck handlers.Checker
	// History serves /session/history; nil when the backend keeps none.
	History handlers.HistorySource

	// RateLimitPerMin caps requests per client IP; zero disables the limit.
	RateLimitPerMin int
	Logger          *zap.Logger
}

// NewRouter creates and configures the HTTP router with all API routes.
// staticDir may be empty, in which case no frontend is served.
func NewRouter(s Services, staticDir string) *mux.Router {
	r := mux.NewRouter()

	// Apply global middleware
	r.Use(middleware.Logging(s.Logger))
	r.Use(middleware.ErrorRecovery)

	events := websocket.NewEventBroadcaster(s.Hub)
	signedIn := func(ctx context.Context) bool {
		token, err := session.AccessToken(ctx, s.Client.Store())
		return err == nil && token != ""
	}

	// API subrouter
	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.NewRateLimiter(s.RateLimitPerMin).Middleware)
	api.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, middleware.ErrNotFound, "Route not found")
	})

	// Health and status endpoints
	api.HandleFunc("/health", handlers.HealthCheck(s.StoreCheck, s.RemoteCheck)).Methods("GET")
	api.HandleFunc("/status", handlers.Status(s.CredentialBackend, signedIn, s.Registry, s.Hub)).Methods("GET")

	// WebSocket endpoint
	api.HandleFunc("/ws", handlers.WebSocketUpgrade(s.Hub)).Methods("GET")

	// Account endpoints
	api.HandleFunc("/auth/login", handlers.Login(s.Accounts)).Methods("POST")
	api.HandleFunc("/auth/signup", handlers.Signup(s.Accounts)).Methods("POST")
	api.HandleFunc("/auth/logout", handlers.Logout(s.Accounts, s.Registry)).Methods("POST")
	api.HandleFunc("/auth/withdraw", handlers.Withdraw(s.Accounts, s.Registry)).Methods("DELETE")
	api.HandleFunc("/me", handlers.Me(s.Accounts)).Methods("GET")
	api.HandleFunc("/me", handlers.UpdateMe(s.Accounts)).Methods("PATCH")
	api.HandleFunc("/session/history", handlers.SessionHistory(s.History)).Methods("GET")

	// Catalog endpoints
	api.HandleFunc("/spaces", handlers.ListSpaces(s.Client)).Methods("GET")
	api.HandleFunc("/spaces/{id}", handlers.GetSpace(s.Client)).Methods("GET")
	api.HandleFunc("/spaces/{id}/slots", handlers.Slots(s.Client)).Methods("GET")
	api.HandleFunc("/recommendations", handlers.Recommendations(s.Client)).Methods("POST")

	// Booking form endpoints
	api.HandleFunc("/booking-forms", handlers.CreateForm(s.Client, s.Registry)).Methods("POST")
	api.HandleFunc("/booking-forms/{id}", handlers.GetForm(s.Registry)).Methods("GET")
	api.HandleFunc("/booking-forms/{id}", handlers.UpdateForm(s.Client, s.Registry)).Methods("PUT")
	api.HandleFunc("/booking-forms/{id}", handlers.DeleteForm(s.Registry)).Methods("DELETE")
	api.HandleFunc("/booking-forms/{id}/submit", handlers.SubmitForm(s.Client, s.Registry, events)).Methods("POST")

	// Reservation endpoints
	api.HandleFunc("/reservations/my", handlers.MyReservations(s.Client)).Methods("GET")
	api.HandleFunc("/reservations/{id}", handlers.GetReservation(s.Client)).Methods("GET")
	api.HandleFunc("/reservations/{id}/cancel", handlers.CancelReservation(s.Client, events)).Methods("PATCH")

	// Serve static frontend files
	if staticDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(staticDir)))
	}

	return r
}
