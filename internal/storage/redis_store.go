package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/spacebook/client/internal/session"
)

const credentialKeyPrefix = "spacebook:credentials:"

// RedisCredentialStore keeps one profile's credential pair under a single
// Redis key with no expiry. It implements session.CredentialStore.
type RedisCredentialStore struct {
	client *redis.Client
	key    string
}

var _ session.CredentialStore = (*RedisCredentialStore)(nil)

// NewRedisClient connects to addr and verifies the connection.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return client, nil
}

// NewRedisCredentialStore creates a store for profile.
func NewRedisCredentialStore(client *redis.Client, profile string) *RedisCredentialStore {
	return &RedisCredentialStore{client: client, key: credentialKeyPrefix + profile}
}

// Get returns the stored pair, or nil when the profile is anonymous.
func (s *RedisCredentialStore) Get(ctx context.Context) (*session.CredentialPair, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading credentials: %w", err)
	}

	var pair session.CredentialPair
	if err := json.Unmarshal(data, &pair); err != nil {
		return nil, fmt.Errorf("decoding credentials: %w", err)
	}
	return &pair, nil
}

// Set replaces both tokens with one write.
func (s *RedisCredentialStore) Set(ctx context.Context, pair session.CredentialPair) error {
	data, err := json.Marshal(pair)
	if err != nil {
		return fmt.Errorf("encoding credentials: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, 0).Err(); err != nil {
		return fmt.Errorf("saving credentials: %w", err)
	}
	return nil
}

// Clear removes the pair. Deleting a missing key is not an error.
func (s *RedisCredentialStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("deleting credentials: %w", err)
	}
	return nil
}
