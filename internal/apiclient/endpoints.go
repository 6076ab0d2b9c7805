package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/spacebook/client/internal/models"
	"github.com/spacebook/client/internal/session"
)

// Remote endpoints, relative to Config.BaseURL.
const (
	LoginEndpoint           = "/auth/login"
	SignupEndpoint          = "/auth/signup"
	ReissueEndpoint         = "/auth/reissue"
	LogoutEndpoint          = "/auth/logout"
	WithdrawEndpoint        = "/auth/withdraw"
	MeEndpoint              = "/users/me"
	SpacesEndpoint          = "/spaces"
	ReservationsEndpoint    = "/reservations"
	RecommendationsEndpoint = "/recommendations"
)

// reissue exchanges a refresh token for a new pair. It is the refresher's
// RenewFunc; a 401 here never triggers another renewal.
func (c *Client) reissue(ctx context.Context, refreshToken string) (session.CredentialPair, error) {
	env, err := Call[models.TokenResponse](ctx, c, ReissueEndpoint, Options{
		Method: http.MethodPost,
		Body:   models.TokenReissueRequest{RefreshToken: refreshToken},
	})
	if err != nil {
		return session.CredentialPair{}, err
	}
	if env.Data.AccessToken == "" || env.Data.RefreshToken == "" {
		return session.CredentialPair{}, fmt.Errorf("reissue returned an incomplete token pair")
	}
	return session.CredentialPair{
		AccessToken:  env.Data.AccessToken,
		RefreshToken: env.Data.RefreshToken,
	}, nil
}

// Login authenticates with email and password. The caller stores the tokens.
// A 401 here means wrong credentials, so it is never treated as expiry.
func (c *Client) Login(ctx context.Context, req models.LoginRequest) (*models.TokenResponse, error) {
	env, err := Call[models.TokenResponse](ctx, c, LoginEndpoint, Options{Method: http.MethodPost, Body: req, NoRefresh: true})
	if err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// Signup creates an account and returns its first token pair.
func (c *Client) Signup(ctx context.Context, req models.SignupRequest) (*models.TokenResponse, error) {
	env, err := Call[models.TokenResponse](ctx, c, SignupEndpoint, Options{Method: http.MethodPost, Body: req, NoRefresh: true})
	if err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// Logout revokes the refresh token server-side. A 401 is not renewed.
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.Do(ctx, LogoutEndpoint, Options{Method: http.MethodPost, NoRefresh: true})
	return err
}

// Withdraw deletes the account after confirming the password.
func (c *Client) Withdraw(ctx context.Context, password string) error {
	_, err := c.Do(ctx, WithdrawEndpoint, Options{
		Method: http.MethodDelete,
		Body:   models.DeleteAccountRequest{Password: password},
	})
	return err
}

// Me fetches the current user.
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	env, err := Call[models.User](ctx, c, MeEndpoint, Options{})
	if err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// UpdateMe changes the phone number and/or password of the current user.
func (c *Client) UpdateMe(ctx context.Context, req models.UpdateUserRequest) (*models.User, error) {
	env, err := Call[models.User](ctx, c, MeEndpoint, Options{Method: http.MethodPatch, Body: req})
	if err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// Spaces searches the catalog.
func (c *Client) Spaces(ctx context.Context, search models.SpaceSearch) (*models.Page[models.SpaceListItem], error) {
	env, err := Call[models.Page[models.SpaceListItem]](ctx, c, SpacesEndpoint, Options{Query: search.Query()})
	if err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// Space fetches one space's detail.
func (c *Client) Space(ctx context.Context, id int64) (*models.Space, error) {
	env, err := Call[models.Space](ctx, c, spacePath(id), Options{})
	if err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// ReservedTimes lists the booked hour blocks of a space on date (YYYY-MM-DD).
func (c *Client) ReservedTimes(ctx context.Context, spaceID int64, date string) ([]models.ReservedTime, error) {
	env, err := Call[[]models.ReservedTime](ctx, c, spacePath(spaceID)+"/reserved-times", Options{
		Query: url.Values{"date": {date}},
	})
	if err != nil {
		return nil, err
	}
	return env.Data, nil
}

// CreateReservation submits a booking.
func (c *Client) CreateReservation(ctx context.Context, req models.CreateReservationRequest) (*models.Reservation, error) {
	env, err := Call[models.Reservation](ctx, c, ReservationsEndpoint, Options{Method: http.MethodPost, Body: req})
	if err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// MyReservations lists the current user's reservations, newest first.
func (c *Client) MyReservations(ctx context.Context, page int) (*models.Page[models.ReservationListItem], error) {
	env, err := Call[models.Page[models.ReservationListItem]](ctx, c, ReservationsEndpoint+"/my", Options{
		Query: url.Values{"page": {strconv.Itoa(page)}},
	})
	if err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// Reservation fetches one of the current user's reservations.
func (c *Client) Reservation(ctx context.Context, id int64) (*models.Reservation, error) {
	env, err := Call[models.Reservation](ctx, c, reservationPath(id), Options{})
	if err != nil {
		return nil, err
	}
	return &env.Data, nil
}

// CancelReservation cancels one of the current user's reservations.
func (c *Client) CancelReservation(ctx context.Context, id int64) error {
	_, err := c.Do(ctx, reservationPath(id)+"/cancel", Options{Method: http.MethodPatch})
	return err
}

// Recommendations asks the service for spaces matching a free-text request.
func (c *Client) Recommendations(ctx context.Context, query string) ([]models.SpaceListItem, error) {
	env, err := Call[[]models.SpaceListItem](ctx, c, RecommendationsEndpoint, Options{
		Method: http.MethodPost,
		Body:   models.RecommendationRequest{Query: query},
	})
	if err != nil {
		return nil, err
	}
	return env.Data, nil
}

func spacePath(id int64) string {
	return SpacesEndpoint + "/" + strconv.FormatInt(id, 10)
}

func reservationPath(id int64) string {
	return ReservationsEndpoint + "/" + strconv.FormatInt(id, 10)
}
