package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/spacebook/client/internal/session"
)

// Session history kinds.
const (
	EventSignedIn  = "signed_in"
	EventRenewed   = "renewed"
	EventSignedOut = "signed_out"
)

// SessionEvent is one row of a profile's session history.
type SessionEvent struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	OccurredAt time.Time `json:"occurredAt"`
}

// CredentialRepository keeps one profile's credential pair in SQLite.
// It implements session.CredentialStore.
type CredentialRepository struct {
	BaseRepository
	profile string
}

var _ session.CredentialStore = (*CredentialRepository)(nil)

// NewCredentialRepository creates a store for profile.
func NewCredentialRepository(db *DB, profile string) *CredentialRepository {
	return &CredentialRepository{
		BaseRepository: NewBaseRepository(db),
		profile:        profile,
	}
}

// Get returns the stored pair, or nil when the profile is anonymous.
func (r *CredentialRepository) Get(ctx context.Context) (*session.CredentialPair, error) {
	return r.get(ctx, r.DB())
}

func (r *CredentialRepository) get(ctx context.Context, q Queryable) (*session.CredentialPair, error) {
	pair := &session.CredentialPair{}

	err := q.QueryRowContext(ctx, `
		SELECT access_token, refresh_token FROM credentials WHERE profile = ?
	`, r.profile).Scan(&pair.AccessToken, &pair.RefreshToken)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying credentials: %w", err)
	}

	return pair, nil
}

// Set replaces both tokens in one statement.
func (r *CredentialRepository) Set(ctx context.Context, pair session.CredentialPair) error {
	return r.Transaction(func(tx *sql.Tx) error {
		existing, err := r.get(ctx, tx)
		if err != nil {
			return err
		}

		now := r.Now()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO credentials (profile, access_token, refresh_token, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(profile) DO UPDATE SET
				access_token = excluded.access_token,
				refresh_token = excluded.refresh_token,
				updated_at = excluded.updated_at
		`, r.profile, pair.AccessToken, pair.RefreshToken, now, now)
		if err != nil {
			return fmt.Errorf("saving credentials: %w", err)
		}

		kind := EventSignedIn
		if existing != nil {
			kind = EventRenewed
		}
		return r.record(ctx, tx, kind, now)
	})
}

// Clear removes the pair. Clearing an anonymous profile is a no-op.
func (r *CredentialRepository) Clear(ctx context.Context) error {
	return r.Transaction(func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM credentials WHERE profile = ?`, r.profile)
		if err != nil {
			return fmt.Errorf("deleting credentials: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("checking rows affected: %w", err)
		}
		if rows == 0 {
			return nil
		}
		return r.record(ctx, tx, EventSignedOut, r.Now())
	})
}

func (r *CredentialRepository) record(ctx context.Context, q Queryable, kind string, at time.Time) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO session_events (id, profile, kind, occurred_at) VALUES (?, ?, ?, ?)
	`, GenerateID(), r.profile, kind, at)
	if err != nil {
		return fmt.Errorf("recording session event: %w", err)
	}
	return nil
}

// History returns the profile's most recent session events, newest first.
func (r *CredentialRepository) History(ctx context.Context, limit int) ([]SessionEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.DB().QueryContext(ctx, `
		SELECT id, kind, occurred_at FROM session_events
		WHERE profile = ?
		ORDER BY occurred_at DESC, rowid DESC
		LIMIT ?
	`, r.profile, limit)
	if err != nil {
		return nil, fmt.Errorf("querying session events: %w", err)
	}
	defer rows.Close()

	events := []SessionEvent{}
	for rows.Next() {
		var e SessionEvent
		if err := rows.Scan(&e.ID, &e.Kind, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("scanning session event: %w", err)
		}
		events = append(events, e)
	}
	return events, rows.Err()
}
