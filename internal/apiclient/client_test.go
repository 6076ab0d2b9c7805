package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spacebook/client/internal/models"
	"github.com/spacebook/client/internal/session"
)

func writeEnvelope(w http.ResponseWriter, status int, success bool, data any, message *string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"success":   success,
		"data":      data,
		"message":   message,
		"timestamp": time.Now().Format("2006-01-02T15:04:05"),
	})
}

func strPtr(s string) *string { return &s }

// fakeService answers protected calls only for the "current" access token and
// rotates tokens on reissue.
type fakeService struct {
	mu            sync.Mutex
	validAccess   string
	validRefresh  string
	nextAccess    string
	nextRefresh   string
	reissueCalls  int32
	protectedHits int32
	reissueDelay  time.Duration
	failReissue   bool
	alwaysReject  bool
}

func (f *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case ReissueEndpoint:
		atomic.AddInt32(&f.reissueCalls, 1)
		time.Sleep(f.reissueDelay)
		var req models.TokenReissueRequest
		json.NewDecoder(r.Body).Decode(&req)

		f.mu.Lock()
		defer f.mu.Unlock()
		if f.failReissue || req.RefreshToken != f.validRefresh {
			writeEnvelope(w, http.StatusUnauthorized, false, nil, strPtr("invalid refresh token"))
			return
		}
		f.validAccess, f.validRefresh = f.nextAccess, f.nextRefresh
		writeEnvelope(w, http.StatusOK, true, models.TokenResponse{AccessToken: f.validAccess, RefreshToken: f.validRefresh}, nil)

	case "/protected":
		atomic.AddInt32(&f.protectedHits, 1)
		f.mu.Lock()
		ok := !f.alwaysReject && r.Header.Get("Authorization") == "Bearer "+f.validAccess
		f.mu.Unlock()
		if !ok {
			writeEnvelope(w, http.StatusUnauthorized, false, nil, strPtr("login required"))
			return
		}
		writeEnvelope(w, http.StatusOK, true, map[string]string{"hello": "world"}, nil)

	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *session.MemoryStore) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	store := session.NewMemoryStore()
	client := New(Config{BaseURL: srv.URL, Timeout: 5 * time.Second}, store, zap.NewNop())
	return client, store
}

func TestCallAttachesBearerToken(t *testing.T) {
	var gotAuth, gotType, gotCustom string
	client, store := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotType = r.Header.Get("Content-Type")
		gotCustom = r.Header.Get("X-Custom")
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		writeEnvelope(w, http.StatusOK, true, nil, nil)
	}))
	ctx := context.Background()

	_, err := client.Do(ctx, "/anything", Options{})
	require.NoError(t, err)
	assert.Empty(t, gotAuth, "anonymous calls carry no credentials")
	assert.Equal(t, "application/json", gotType)

	require.NoError(t, store.Set(ctx, session.CredentialPair{AccessToken: "a1", RefreshToken: "r1"}))
	_, err = client.Do(ctx, "/anything", Options{Headers: map[string]string{"X-Custom": "yes"}})
	require.NoError(t, err)
	assert.Equal(t, "Bearer a1", gotAuth)
	assert.Equal(t, "yes", gotCustom)
}

func TestCallDecodesData(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusOK, true, []models.ReservedTime{{StartHour: 10, EndHour: 12}}, strPtr("ok"))
	}))

	env, err := Call[[]models.ReservedTime](context.Background(), client, "/spaces/1/reserved-times", Options{})
	require.NoError(t, err)
	assert.True(t, env.Success)
	assert.Equal(t, "ok", env.Message)
	assert.Equal(t, []models.ReservedTime{{StartHour: 10, EndHour: 12}}, env.Data)
}

func TestBusinessFailureFallbackMessage(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusBadRequest, false, nil, nil)
	}))

	_, err := client.Do(context.Background(), "/reservations", Options{Method: http.MethodPost})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRequestFailed))
	assert.Equal(t, MessageFallback, UserMessage(err))

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
}

func TestBusinessFailureServerMessage(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusConflict, false, nil, strPtr("time slot already reserved"))
	}))

	_, err := client.Do(context.Background(), "/reservations", Options{Method: http.MethodPost})
	assert.Equal(t, "time slot already reserved", UserMessage(err))
}

func TestNonEnvelopeBodyIsBusinessFailure(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>bad gateway</html>"))
	}))

	_, err := client.Do(context.Background(), "/spaces", Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRequestFailed))
	assert.Equal(t, MessageFallback, UserMessage(err))
}

func TestTransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := New(Config{BaseURL: url, Timeout: time.Second}, session.NewMemoryStore(), nil)
	_, err := client.Do(context.Background(), "/spaces", Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrServiceUnreachable))
	assert.False(t, errors.Is(err, ErrRequestFailed))
	assert.Equal(t, MessageUnreachable, UserMessage(err))
}

func TestConcurrentExpiryRenewsOnce(t *testing.T) {
	svc := &fakeService{
		validAccess:  "a2",
		validRefresh: "r1",
		nextAccess:   "a2",
		nextRefresh:  "r2",
		reissueDelay: 50 * time.Millisecond,
	}
	// The stored access token "a1" is already stale on the server.
	client, store := newTestClient(t, svc)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, session.CredentialPair{AccessToken: "a1", RefreshToken: "r1"}))

	var observed int32
	client.RegisterSessionObserver(func() { atomic.AddInt32(&observed, 1) })

	const n = 10
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = client.Do(ctx, "/protected", Options{})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "call %d", i)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&svc.reissueCalls))
	assert.Equal(t, int32(0), atomic.LoadInt32(&observed))

	pair, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, session.CredentialPair{AccessToken: "a2", RefreshToken: "r2"}, *pair)
}

func TestRetryHappensOnlyOnce(t *testing.T) {
	svc := &fakeService{
		validAccess:  "a1",
		validRefresh: "r1",
		nextAccess:   "a2",
		nextRefresh:  "r2",
		alwaysReject: true,
	}
	client, store := newTestClient(t, svc)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, session.CredentialPair{AccessToken: "a1", RefreshToken: "r1"}))

	var observed int32
	client.RegisterSessionObserver(func() { atomic.AddInt32(&observed, 1) })

	_, err := client.Do(ctx, "/protected", Options{})
	require.Error(t, err)

	var apiErr *Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, KindBusiness, apiErr.Kind)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "login required", apiErr.Message)

	assert.Equal(t, int32(1), atomic.LoadInt32(&svc.reissueCalls))
	assert.Equal(t, int32(2), atomic.LoadInt32(&svc.protectedHits))
	assert.Equal(t, int32(0), atomic.LoadInt32(&observed))

	token, err := session.AccessToken(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, "a2", token, "renewed credentials are kept")
}

func TestFailedRenewalExpiresSession(t *testing.T) {
	svc := &fakeService{validAccess: "a9", validRefresh: "r9", failReissue: true}
	client, store := newTestClient(t, svc)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, session.CredentialPair{AccessToken: "a1", RefreshToken: "r1"}))

	var observed int32
	client.RegisterSessionObserver(func() { atomic.AddInt32(&observed, 1) })

	_, err := client.Do(ctx, "/protected", Options{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSessionExpired))
	assert.Equal(t, MessageSessionExpired, UserMessage(err))

	pair, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, pair)
	assert.Equal(t, int32(1), atomic.LoadInt32(&observed))
	assert.Equal(t, int32(1), atomic.LoadInt32(&svc.protectedHits), "no retry after failed renewal")
}

func TestAnonymousUnauthorizedExpiresSession(t *testing.T) {
	svc := &fakeService{validAccess: "a1", validRefresh: "r1"}
	client, _ := newTestClient(t, svc)

	var observed int32
	client.RegisterSessionObserver(func() { atomic.AddInt32(&observed, 1) })

	_, err := client.Do(context.Background(), "/protected", Options{})
	assert.True(t, errors.Is(err, ErrSessionExpired))
	assert.Equal(t, int32(0), atomic.LoadInt32(&svc.reissueCalls), "no refresh token, no remote renewal")
	assert.Equal(t, int32(1), atomic.LoadInt32(&observed))
}

func TestReissueEndpointNeverRecurses(t *testing.T) {
	svc := &fakeService{validAccess: "a1", validRefresh: "other", failReissue: true}
	client, store := newTestClient(t, svc)
	ctx := context.Background()
	require.NoError(t, store.Set(ctx, session.CredentialPair{AccessToken: "a1", RefreshToken: "r1"}))

	_, err := client.Do(ctx, ReissueEndpoint, Options{Method: http.MethodPost, Body: models.TokenReissueRequest{RefreshToken: "r1"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRequestFailed))
	assert.Equal(t, int32(1), atomic.LoadInt32(&svc.reissueCalls))

	pair, err := store.Get(ctx)
	require.NoError(t, err)
	assert.NotNil(t, pair, "a direct reissue failure does not clear the session")
}

func TestLoginFailureIsNotExpiry(t *testing.T) {
	var reissued int32
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == ReissueEndpoint {
			atomic.AddInt32(&reissued, 1)
		}
		writeEnvelope(w, http.StatusUnauthorized, false, nil, strPtr("wrong email or password"))
	}))

	var observed int32
	client.RegisterSessionObserver(func() { atomic.AddInt32(&observed, 1) })

	_, err := client.Login(context.Background(), models.LoginRequest{Email: "a@b.co", Password: "x"})
	require.Error(t, err)
	assert.Equal(t, "wrong email or password", UserMessage(err))
	assert.Equal(t, int32(0), atomic.LoadInt32(&reissued))
	assert.Equal(t, int32(0), atomic.LoadInt32(&observed))
}

func TestOutboundRateLimiter(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		writeEnvelope(w, http.StatusOK, true, nil, nil)
	}))
	defer srv.Close()

	client := New(Config{BaseURL: srv.URL, RequestsPerSecond: 1}, session.NewMemoryStore(), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := client.Do(ctx, "/spaces", Options{})
	require.NoError(t, err)
	_, err = client.Do(ctx, "/spaces", Options{})
	require.Error(t, err, "second call must wait longer than the deadline allows")
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}
