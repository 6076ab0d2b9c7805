package storage

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spacebook/client/internal/session"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "nested", "session.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, RunMigrations(db, nil))
	return db
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, RunMigrations(db, nil))

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM _migrations").Scan(&count))
	assert.Equal(t, 2, count)
}

func TestCredentialRepositoryLifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewCredentialRepository(newTestDB(t), "default")

	pair, err := repo.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, pair)

	require.NoError(t, repo.Clear(ctx), "clearing an empty store is a no-op")

	require.NoError(t, repo.Set(ctx, session.CredentialPair{AccessToken: "a1", RefreshToken: "r1"}))
	require.NoError(t, repo.Set(ctx, session.CredentialPair{AccessToken: "a2", RefreshToken: "r2"}))

	pair, err = repo.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, &session.CredentialPair{AccessToken: "a2", RefreshToken: "r2"}, pair)

	token, err := session.AccessToken(ctx, repo)
	require.NoError(t, err)
	assert.Equal(t, "a2", token)

	require.NoError(t, repo.Clear(ctx))
	pair, err = repo.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, pair)

	history, err := repo.History(ctx, 10)
	require.NoError(t, err)
	kinds := make([]string, 0, len(history))
	for _, e := range history {
		kinds = append(kinds, e.Kind)
	}
	assert.Equal(t, []string{EventSignedOut, EventRenewed, EventSignedIn}, kinds)
}

func TestCredentialRepositoryProfilesAreIsolated(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	work := NewCredentialRepository(db, "work")
	home := NewCredentialRepository(db, "home")

	require.NoError(t, work.Set(ctx, session.CredentialPair{AccessToken: "w", RefreshToken: "wr"}))

	pair, err := home.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, pair)

	require.NoError(t, home.Clear(ctx))
	pair, err = work.Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, pair)
	assert.Equal(t, "w", pair.AccessToken)
}

func TestCredentialRepositorySurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.db")

	db, err := NewDB(path)
	require.NoError(t, err)
	require.NoError(t, RunMigrations(db, nil))
	require.NoError(t, NewCredentialRepository(db, "default").Set(ctx, session.CredentialPair{AccessToken: "a", RefreshToken: "r"}))
	require.NoError(t, db.Close())

	db, err = NewDB(path)
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, RunMigrations(db, nil))

	pair, err := NewCredentialRepository(db, "default").Get(ctx)
	require.NoError(t, err)
	require.NotNil(t, pair)
	assert.Equal(t, "r", pair.RefreshToken)
}

func TestCredentialRepositoryConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	repo := NewCredentialRepository(newTestDB(t), "default")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, repo.Set(ctx, session.CredentialPair{AccessToken: "a", RefreshToken: "r"}))
		}()
	}
	wg.Wait()

	history, err := repo.History(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, history, 8)
}

func TestRedisCredentialStore(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()

	client, err := NewRedisClient(ctx, addr, os.Getenv("REDIS_PASSWORD"), 0)
	require.NoError(t, err)
	defer client.Close()

	store := NewRedisCredentialStore(client, "test-"+GenerateID())
	t.Cleanup(func() { store.Clear(context.Background()) })

	pair, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, pair)

	require.NoError(t, store.Set(ctx, session.CredentialPair{AccessToken: "a", RefreshToken: "r"}))
	pair, err = store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, &session.CredentialPair{AccessToken: "a", RefreshToken: "r"}, pair)

	require.NoError(t, store.Clear(ctx))
	require.NoError(t, store.Clear(ctx))
	pair, err = store.Get(ctx)
	require.NoError(t, err)
	assert.Nil(t, pair)
}
