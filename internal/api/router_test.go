package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spacebook/client/internal/account"
	"github.com/spacebook/client/internal/apiclient"
	"github.com/spacebook/client/internal/booking"
	"github.com/spacebook/client/internal/mockapi"
	"github.com/spacebook/client/internal/session"
	"github.com/spacebook/client/internal/websocket"
)

const bookingDate = "2099-01-15"

type fixture struct {
	remote   *mockapi.Server
	local    *httptest.Server
	registry *booking.Registry
}

func newFixture(t *testing.T, baseURL string, rateLimit int) *fixture {
	t.Helper()

	f := &fixture{registry: booking.NewRegistry(time.Hour)}
	if baseURL == "" {
		f.remote = mockapi.New(mockapi.Options{PasswordCost: bcrypt.MinCost, SeedSpaces: true})
		remote := httptest.NewServer(f.remote)
		t.Cleanup(remote.Close)
		baseURL = remote.URL + mockapi.BasePath
	}

	client := apiclient.New(apiclient.Config{BaseURL: baseURL, Timeout: 2 * time.Second}, session.NewMemoryStore(), nil)
	hub := websocket.NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)

	router := NewRouter(Services{
		Client:            client,
		Accounts:          account.NewService(client, nil),
		Registry:          f.registry,
		Hub:               hub,
		CredentialBackend: "memory",
		RateLimitPerMin:   rateLimit,
	}, "")
	f.local = httptest.NewServer(router)
	t.Cleanup(f.local.Close)
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, f.local.URL+path, reader)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]any
	if len(bytes.TrimSpace(raw)) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &decoded))
	}
	return resp.StatusCode, decoded
}

func (f *fixture) signup(t *testing.T) {
	t.Helper()
	status, body := f.do(t, http.MethodPost, "/api/auth/signup", map[string]string{
		"username":    "kim",
		"email":       "kim@example.com",
		"password":    "secret12!",
		"phoneNumber": "010-1234-5678",
	})
	require.Equal(t, http.StatusCreated, status, body)
}

func TestHealthAndStatus(t *testing.T) {
	f := newFixture(t, "", 0)

	status, body := f.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "healthy", body["status"])

	status, body = f.do(t, http.MethodGet, "/api/status", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["signed_in"])
	assert.Equal(t, "memory", body["credential_backend"])

	status, body = f.do(t, http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", body["error"])
}

func TestAccountFlow(t *testing.T) {
	f := newFixture(t, "", 0)

	status, body := f.do(t, http.MethodGet, "/api/me", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "unauthorized", body["error"])

	status, body = f.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "kim@example.com"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation_error", body["error"])
	assert.Equal(t, account.MessagePasswordRequired, body["message"])

	f.signup(t)

	status, body = f.do(t, http.MethodGet, "/api/me", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "kim@example.com", body["email"])

	status, body = f.do(t, http.MethodPatch, "/api/me", map[string]string{"phoneNumber": "010-1234-5678"})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, account.MessageNothingToChange, body["message"])

	status, _ = f.do(t, http.MethodPost, "/api/auth/logout", nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = f.do(t, http.MethodPost, "/api/auth/logout", nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, body = f.do(t, http.MethodPost, "/api/auth/login", map[string]string{"email": "kim@example.com", "password": "wrong123!"})
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "request_failed", body["error"])
	assert.Equal(t, "invalid email or password", body["message"])

	status, _ = f.do(t, http.MethodGet, "/api/session/history", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestSlots(t *testing.T) {
	f := newFixture(t, "", 0)

	status, body := f.do(t, http.MethodGet, "/api/spaces/3/slots?date="+bookingDate+"&start=10&end=12", nil)
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, true, body["valid"])
	assert.Equal(t, float64(40000), body["totalPrice"])
	assert.Len(t, body["startOptions"], len(booking.HourGrid))
	assert.Len(t, body["endOptions"], 13)

	status, body = f.do(t, http.MethodGet, "/api/spaces/3/slots?date=tomorrow", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, booking.MessageInvalidDate, body["message"])

	status, _ = f.do(t, http.MethodGet, "/api/spaces/99/slots?date="+bookingDate, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
}

func TestBookingFormLifecycle(t *testing.T) {
	f := newFixture(t, "", 0)
	f.signup(t)

	status, body := f.do(t, http.MethodPost, "/api/booking-forms", map[string]any{"spaceId": 3, "date": bookingDate})
	require.Equal(t, http.StatusCreated, status, body)
	formID := body["id"].(string)
	assert.Equal(t, string(booking.StateUnset), body["state"])

	status, body = f.do(t, http.MethodPut, "/api/booking-forms/"+formID, map[string]any{"startHour": 10, "endHour": 12, "peopleCount": 2})
	require.Equal(t, http.StatusOK, status, body)
	assert.Equal(t, string(booking.StateFullyChosen), body["state"])
	assert.Equal(t, float64(40000), body["totalPrice"])

	status, body = f.do(t, http.MethodPost, "/api/booking-forms/"+formID+"/submit", nil)
	require.Equal(t, http.StatusCreated, status, body)
	assert.Equal(t, string(booking.StateConfirmed), body["state"])
	reservation := body["reservation"].(map[string]any)
	assert.Equal(t, float64(40000), reservation["totalPrice"])

	status, body = f.do(t, http.MethodPost, "/api/booking-forms/"+formID+"/submit", nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "conflict", body["error"])

	// A second form sees the new reservation.
	status, body = f.do(t, http.MethodPost, "/api/booking-forms", map[string]any{"spaceId": 3, "date": bookingDate})
	require.Equal(t, http.StatusCreated, status)
	second := body["id"].(string)
	status, body = f.do(t, http.MethodPut, "/api/booking-forms/"+second, map[string]any{"startHour": 11})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, booking.MessageStartReserved, body["message"])

	status, body = f.do(t, http.MethodPost, "/api/booking-forms/"+second+"/submit", nil)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, booking.MessageRequiredFields, body["message"])

	status, _ = f.do(t, http.MethodDelete, "/api/booking-forms/"+second, nil)
	assert.Equal(t, http.StatusNoContent, status)
	status, _ = f.do(t, http.MethodGet, "/api/booking-forms/"+second, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, body = f.do(t, http.MethodGet, "/api/reservations/my", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), body["totalElements"])

	id := int64(reservation["id"].(float64))
	path := "/api/reservations/" + strconv.FormatInt(id, 10)
	status, body = f.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "CONFIRMED", body["reservationStatus"])

	status, _ = f.do(t, http.MethodPatch, path+"/cancel", nil)
	assert.Equal(t, http.StatusNoContent, status)

	// Logging out drops the open forms.
	status, _ = f.do(t, http.MethodPost, "/api/auth/logout", nil)
	require.Equal(t, http.StatusNoContent, status)
	assert.Equal(t, 0, f.registry.Len())
}

func TestSessionExpiredMapsTo401(t *testing.T) {
	f := newFixture(t, "", 0)
	f.signup(t)

	f.remote.RevokeRefreshTokens()
	f.remote.ExpireAccessTokens()

	status, body := f.do(t, http.MethodGet, "/api/reservations/my", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "session_expired", body["error"])
	assert.Equal(t, apiclient.MessageSessionExpired, body["message"])

	status, body = f.do(t, http.MethodGet, "/api/status", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, body["signed_in"])
}

func TestUnreachableServiceMapsTo502(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	url := dead.URL
	dead.Close()

	f := newFixture(t, url+"/api/v1", 0)

	status, body := f.do(t, http.MethodGet, "/api/spaces", nil)
	assert.Equal(t, http.StatusBadGateway, status)
	assert.Equal(t, "service_unreachable", body["error"])
	assert.Equal(t, apiclient.MessageUnreachable, body["message"])
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t, "", 1)

	status, _ := f.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, status)
	status, body := f.do(t, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, "rate_limited", body["error"])
}

func TestWebSocketPingAndEvents(t *testing.T) {
	f := newFixture(t, "", 0)
	f.signup(t)

	url := "ws" + strings.TrimPrefix(f.local.URL, "http") + "/api/ws"
	conn, _, err := gorillaws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() websocket.Message {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
		var msg struct {
			Type websocket.MessageType `json:"type"`
		}
		require.NoError(t, conn.ReadJSON(&msg))
		return websocket.Message{Type: msg.Type}
	}

	require.NoError(t, conn.WriteMessage(gorillaws.TextMessage, []byte(`{"type":"ping"}`)))
	assert.Equal(t, websocket.TypePong, read().Type)

	status, body := f.do(t, http.MethodPost, "/api/booking-forms", map[string]any{"spaceId": 1, "date": bookingDate})
	require.Equal(t, http.StatusCreated, status)
	formID := body["id"].(string)
	status, _ = f.do(t, http.MethodPut, "/api/booking-forms/"+formID, map[string]any{"startHour": 14, "endHour": 15, "peopleCount": 1})
	require.Equal(t, http.StatusOK, status)
	status, _ = f.do(t, http.MethodPost, "/api/booking-forms/"+formID+"/submit", nil)
	require.Equal(t, http.StatusCreated, status)

	assert.Equal(t, websocket.TypeBookingSubmitted, read().Type)
	assert.Equal(t, websocket.TypeBookingConfirmed, read().Type)
}
