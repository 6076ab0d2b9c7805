package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrNoRefreshToken is returned when a renewal is attempted without a refresh credential.
var ErrNoRefreshToken = errors.New("no refresh token")

// RenewFunc exchanges a refresh token for a new credential pair.
type RenewFunc func(ctx context.Context, refreshToken string) (CredentialPair, error)

const renewKey = "renew"

// Refresher performs at most one credential renewal at a time. Callers that
// arrive while a renewal is outstanding wait for it and share its outcome.
type Refresher struct {
	store   CredentialStore
	renew   RenewFunc
	logger  *zap.Logger
	timeout time.Duration

	group singleflight.Group
	// mu orders token checks against the end of a flight, see EnsureRenewed.
	mu sync.Mutex
}

// NewRefresher creates a refresher that writes renewed pairs into store.
func NewRefresher(store CredentialStore, renew RenewFunc, logger *zap.Logger) *Refresher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refresher{
		store:   store,
		renew:   renew,
		logger:  logger,
		timeout: 30 * time.Second,
	}
}

// SetTimeout bounds how long a single renewal may take.
func (r *Refresher) SetTimeout(d time.Duration) {
	if d > 0 {
		r.timeout = d
	}
}

// EnsureRenewed makes sure the store holds credentials newer than usedAccessToken,
// the token that the failing request carried. It returns true when the caller may
// retry with the stored credentials and false when the session cannot be recovered.
//
// If another renewal already replaced usedAccessToken, no remote call is made.
func (r *Refresher) EnsureRenewed(ctx context.Context, usedAccessToken string) bool {
	r.mu.Lock()
	current, err := AccessToken(ctx, r.store)
	if err != nil {
		r.mu.Unlock()
		r.logger.Warn("reading credentials before renewal", zap.Error(err))
		return false
	}
	if current != "" && current != usedAccessToken {
		r.mu.Unlock()
		return true
	}
	ch := r.group.DoChan(renewKey, func() (any, error) {
		err := r.renewOnce()
		// A caller holding mu has read the old token and is about to join;
		// keep the flight open until it has.
		r.mu.Lock()
		r.mu.Unlock()
		return nil, err
	})
	r.mu.Unlock()

	select {
	case res := <-ch:
		return res.Err == nil
	case <-ctx.Done():
		return false
	}
}

// renewOnce runs detached from any caller's context so that one caller giving
// up does not fail the renewal for everyone else waiting on it.
func (r *Refresher) renewOnce() error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	pair, err := r.store.Get(ctx)
	if err != nil {
		r.logger.Warn("token renewal failed", zap.Error(err))
		return fmt.Errorf("reading refresh token: %w", err)
	}
	if pair == nil || pair.RefreshToken == "" {
		r.logger.Info("token renewal skipped: no refresh token")
		return ErrNoRefreshToken
	}

	renewed, err := r.renew(ctx, pair.RefreshToken)
	if err != nil {
		r.logger.Warn("token renewal failed", zap.Error(err))
		return fmt.Errorf("renewing credentials: %w", err)
	}

	if err := r.store.Set(ctx, renewed); err != nil {
		r.logger.Error("storing renewed credentials", zap.Error(err))
		return fmt.Errorf("storing renewed credentials: %w", err)
	}

	r.logger.Info("credentials renewed")
	return nil
}
