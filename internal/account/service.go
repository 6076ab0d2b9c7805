// Package account runs the login, signup, logout, withdrawal and profile flows
// on top of the request pipeline.
package account

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/spacebook/client/internal/apiclient"
	"github.com/spacebook/client/internal/models"
	"github.com/spacebook/client/internal/session"
)

// Service owns the session's credentials for the account flows.
type Service struct {
	client *apiclient.Client
	store  session.CredentialStore
	logger *zap.Logger
}

// NewService creates an account service that shares client's credential store.
func NewService(client *apiclient.Client, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		client: client,
		store:  client.Store(),
		logger: logger.Named("account"),
	}
}

// Login validates the form, authenticates and stores the issued pair.
// It returns the logged-in user.
func (s *Service) Login(ctx context.Context, req models.LoginRequest) (*models.User, error) {
	req.Email = strings.TrimSpace(req.Email)
	if err := ValidateLogin(req); err != nil {
		return nil, err
	}

	tokens, err := s.client.Login(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.establish(ctx, tokens)
}

// Signup validates the form, creates the account and stores the issued pair.
func (s *Service) Signup(ctx context.Context, req models.SignupRequest) (*models.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)
	if err := ValidateSignup(req); err != nil {
		return nil, err
	}

	tokens, err := s.client.Signup(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.establish(ctx, tokens)
}

func (s *Service) establish(ctx context.Context, tokens *models.TokenResponse) (*models.User, error) {
	if err := s.store.Set(ctx, session.CredentialPair{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	}); err != nil {
		return nil, fmt.Errorf("storing credentials: %w", err)
	}

	user, err := s.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apiclient.ErrSessionExpired
	}
	s.logger.Info("signed in", zap.Int64("user_id", user.ID))
	return user, nil
}

// Logout ends the session. It is safe to call when anonymous or twice in a
// row. The remote call is best effort; credentials are always cleared.
func (s *Service) Logout(ctx context.Context) error {
	pair, err := s.store.Get(ctx)
	if err != nil {
		return fmt.Errorf("reading credentials: %w", err)
	}

	if pair != nil {
		if err := s.client.Logout(ctx); err != nil {
			s.logger.Warn("remote logout failed", zap.Error(err))
		}
	}

	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("clearing credentials: %w", err)
	}
	return nil
}

// Withdraw deletes the account and ends the session.
func (s *Service) Withdraw(ctx context.Context, password string) error {
	if password == "" {
		return &ValidationError{Messages: []string{MessagePasswordRequired}}
	}
	if err := s.client.Withdraw(ctx, password); err != nil {
		return err
	}
	if err := s.store.Clear(ctx); err != nil {
		return fmt.Errorf("clearing credentials: %w", err)
	}
	s.logger.Info("account withdrawn")
	return nil
}

// CurrentUser returns the logged-in user, or nil when anonymous. A failed
// lookup drops the stored credentials and reports the session as anonymous.
func (s *Service) CurrentUser(ctx context.Context) (*models.User, error) {
	token, err := session.AccessToken(ctx, s.store)
	if err != nil {
		return nil, fmt.Errorf("reading credentials: %w", err)
	}
	if token == "" {
		return nil, nil
	}

	user, err := s.client.Me(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Warn("fetching current user failed, clearing credentials", zap.Error(err))
		if clearErr := s.store.Clear(ctx); clearErr != nil {
			return nil, fmt.Errorf("clearing credentials: %w", clearErr)
		}
		return nil, nil
	}
	return user, nil
}

// UpdateProfile validates edit against the current profile and sends only
// the changed fields.
func (s *Service) UpdateProfile(ctx context.Context, edit ProfileEdit) (*models.User, error) {
	current, err := s.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, apiclient.ErrSessionExpired
	}

	req, err := ValidateProfileEdit(*current, edit)
	if err != nil {
		return nil, err
	}
	return s.client.UpdateMe(ctx, *req)
}
