package account

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spacebook/client/internal/apiclient"
	"github.com/spacebook/client/internal/mockapi"
	"github.com/spacebook/client/internal/models"
	"github.com/spacebook/client/internal/session"
)

type fixture struct {
	remote  *mockapi.Server
	client  *apiclient.Client
	store   *session.MemoryStore
	service *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	remote := mockapi.New(mockapi.Options{PasswordCost: bcrypt.MinCost, SeedSpaces: true})
	ts := httptest.NewServer(remote)
	t.Cleanup(ts.Close)

	store := session.NewMemoryStore()
	client := apiclient.New(apiclient.Config{BaseURL: ts.URL + mockapi.BasePath, Timeout: 5 * time.Second}, store, nil)
	return &fixture{remote: remote, client: client, store: store, service: NewService(client, nil)}
}

var signupForm = models.SignupRequest{
	Username:    "kim",
	Email:       "kim@example.com",
	Password:    "secret12!",
	PhoneNumber: "010-1234-5678",
}

func TestSignupStoresCredentials(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.service.Signup(ctx, signupForm)
	require.NoError(t, err)
	assert.Equal(t, "kim@example.com", user.Email)

	pair, err := f.store.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, pair)
	assert.NotEmpty(t, pair.AccessToken)
	assert.NotEmpty(t, pair.RefreshToken)
}

func TestSignupValidationSkipsNetwork(t *testing.T) {
	f := newFixture(t)
	form := signupForm
	form.PhoneNumber = "12345"

	_, err := f.service.Signup(context.Background(), form)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = f.service.Login(context.Background(), models.LoginRequest{Email: signupForm.Email, Password: signupForm.Password})
	assert.Error(t, err, "the account was never created")
}

func TestLoginFailureLeavesSessionAnonymous(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.service.Signup(ctx, signupForm)
	require.NoError(t, err)
	require.NoError(t, f.service.Logout(ctx))

	observed := 0
	f.client.RegisterSessionObserver(func() { observed++ })

	_, err = f.service.Login(ctx, models.LoginRequest{Email: signupForm.Email, Password: "wrong123!"})
	require.ErrorIs(t, err, apiclient.ErrRequestFailed)
	assert.Equal(t, 0, observed)
	assert.Equal(t, int64(0), f.remote.ReissueCount())

	user, err := f.service.Login(ctx, models.LoginRequest{Email: signupForm.Email, Password: signupForm.Password})
	require.NoError(t, err)
	assert.Equal(t, "kim", user.Username)
}

func TestLogoutIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	observed := 0
	f.client.RegisterSessionObserver(func() { observed++ })

	// Anonymous logout makes no network call and notifies nobody.
	require.NoError(t, f.service.Logout(ctx))

	_, err := f.service.Signup(ctx, signupForm)
	require.NoError(t, err)
	require.NoError(t, f.service.Logout(ctx))
	require.NoError(t, f.service.Logout(ctx))

	pair, err := f.store.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, pair)
	assert.Equal(t, 0, observed)
	assert.Equal(t, int64(0), f.remote.ReissueCount())
}

func TestLogoutClearsEvenWhenRemoteRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.service.Signup(ctx, signupForm)
	require.NoError(t, err)

	f.remote.ExpireAccessTokens()
	require.NoError(t, f.service.Logout(ctx))

	pair, err := f.store.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, pair)
	assert.Equal(t, int64(0), f.remote.ReissueCount())
}

func TestCurrentUser(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	user, err := f.service.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, user)

	_, err = f.service.Signup(ctx, signupForm)
	require.NoError(t, err)

	user, err = f.service.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Equal(t, "kim", user.Username)

	// A broken session is dropped rather than reported.
	require.NoError(t, f.store.Set(ctx, session.CredentialPair{AccessToken: "junk", RefreshToken: "junk"}))
	user, err = f.service.CurrentUser(ctx)
	require.NoError(t, err)
	assert.Nil(t, user)
	pair, err := f.store.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, pair)
}

func TestUpdateProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.service.Signup(ctx, signupForm)
	require.NoError(t, err)

	_, err = f.service.UpdateProfile(ctx, ProfileEdit{PhoneNumber: signupForm.PhoneNumber})
	assert.Equal(t, []string{MessageNothingToChange}, messages(t, err))

	user, err := f.service.UpdateProfile(ctx, ProfileEdit{PhoneNumber: "010-5555-6666"})
	require.NoError(t, err)
	assert.Equal(t, "010-5555-6666", user.PhoneNumber)

	_, err = f.service.UpdateProfile(ctx, ProfileEdit{CurrentPassword: "wrong123!", NewPassword: "better34@"})
	assert.Equal(t, "current password does not match", apiclient.UserMessage(err))
}

func TestUpdateProfileWhenAnonymous(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.UpdateProfile(context.Background(), ProfileEdit{PhoneNumber: "010-5555-6666"})
	assert.ErrorIs(t, err, apiclient.ErrSessionExpired)
}

func TestWithdraw(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.service.Signup(ctx, signupForm)
	require.NoError(t, err)

	err = f.service.Withdraw(ctx, "")
	assert.Equal(t, []string{MessagePasswordRequired}, messages(t, err))

	err = f.service.Withdraw(ctx, "wrong123!")
	assert.Equal(t, "password does not match", apiclient.UserMessage(err))
	pair, err := f.store.Get(ctx)
	require.NoError(t, err)
	assert.NotNil(t, pair, "a rejected withdrawal keeps the session")

	require.NoError(t, f.service.Withdraw(ctx, signupForm.Password))
	pair, err = f.store.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, pair)
}
