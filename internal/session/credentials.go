// Package session holds the client's credentials and coordinates their renewal.
package session

import (
	"context"
	"sync"
)

// CredentialPair is the access/refresh token pair issued by the remote service.
// Both tokens are opaque; nothing in this package looks inside them.
type CredentialPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// CredentialStore persists the current credential pair.
// Get returns a nil pair when the session is anonymous. Clear on an empty
// store is a no-op.
type CredentialStore interface {
	Get(ctx context.Context) (*CredentialPair, error)
	Set(ctx context.Context, pair CredentialPair) error
	Clear(ctx context.Context) error
}

// MemoryStore is a process-local CredentialStore.
type MemoryStore struct {
	mu   sync.RWMutex
	pair *CredentialPair
}

// NewMemoryStore creates an empty (anonymous) store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Get returns a copy of the stored pair, or nil when anonymous.
func (s *MemoryStore) Get(_ context.Context) (*CredentialPair, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.pair == nil {
		return nil, nil
	}
	p := *s.pair
	return &p, nil
}

// Set replaces the stored pair.
func (s *MemoryStore) Set(_ context.Context, pair CredentialPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pair = &pair
	return nil
}

// Clear forgets the stored pair.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pair = nil
	return nil
}

// AccessToken returns the stored access token or "" when anonymous.
func AccessToken(ctx context.Context, store CredentialStore) (string, error) {
	pair, err := store.Get(ctx)
	if err != nil {
		return "", err
	}
	if pair == nil {
		return "", nil
	}
	return pair.AccessToken, nil
}
