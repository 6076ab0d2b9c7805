package handlers

import (
	"context"
	"net/http"

	"github.com/spacebook/client/internal/booking"
	"github.com/spacebook/client/internal/websocket"
)

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status          string `json:"status"`
	StoreConnected  bool   `json:"store_connected"`
	RemoteReachable bool   `json:"remote_reachable"`
}

// Checker reports whether a dependency is usable.
type Checker func(ctx context.Context) error

// HealthCheck returns a handler that checks the credential store and the remote service.
// Either checker may be nil.
func HealthCheck(store, remote Checker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		storeOK := store == nil || store(ctx) == nil
		remoteOK := remote == nil || remote(ctx) == nil

		status := "healthy"
		code := http.StatusOK
		if !storeOK {
			status = "unhealthy"
			code = http.StatusServiceUnavailable
		} else if !remoteOK {
			status = "degraded"
		}

		writeJSON(w, code, HealthResponse{
			Status:          status,
			StoreConnected:  storeOK,
			RemoteReachable: remoteOK,
		})
	}
}

// StatusResponse represents the session server status.
type StatusResponse struct {
	CredentialBackend string `json:"credential_backend"`
	SignedIn          bool   `json:"signed_in"`
	OpenForms         int    `json:"open_forms"`
	ConnectedClients  int    `json:"connected_clients"`
}

// Status returns a handler that reports what the session server is holding.
func Status(backend string, signedIn func(ctx context.Context) bool, registry *booking.Registry, hub *websocket.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, StatusResponse{
			CredentialBackend: backend,
			SignedIn:          signedIn(r.Context()),
			OpenForms:         registry.Len(),
			ConnectedClients:  hub.ClientCount(),
		})
	}
}
