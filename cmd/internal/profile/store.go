package profile

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the profile persistence surface used by guards and heartbeat.
type Store interface {
	Get(ctx context.Context, userID uuid.UUID) (Profile, error)
	GetByEmail(ctx context.Context, email string) (Profile, error)

	// RecordLogin writes last_login_at and the session ref. Last writer wins;
	// there is deliberately no conflict detection. The newest login owns the
	// account.
	RecordLogin(ctx context.Context, now time.Time, userID uuid.UUID, ref SessionRef) error

	// TouchHeartbeat advances last_login_at/updated_at without touching the
	// stored session ref.
	TouchHeartbeat(ctx context.Context, now time.Time, userID uuid.UUID) error

	// SetAccountExpiry replaces account_expires_at (admin key extension path).
	SetAccountExpiry(ctx context.Context, now time.Time, userID uuid.UUID, until time.Time) error
}

// PostgresStore implements Store using PostgreSQL (ludo.profiles).
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a Postgres-backed profile store.
func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, errors.New("profile: nil db pool")
	}
	return &PostgresStore{pool: pool}, nil
}

const profileColumns = `
	user_id, email, account_expires_at,
	last_login_at, last_login_session_id,
	created_at, updated_at
`

func scanProfile(row pgx.Row) (Profile, error) {
	var p Profile
	err := row.Scan(
		&p.UserID,
		&p.Email,
		&p.AccountExpiresAt,
		&p.LastLoginAt,
		&p.LastLoginSessionID,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, err
	}
	return p, nil
}

func (s *PostgresStore) Get(ctx context.Context, userID uuid.UUID) (Profile, error) {
	return scanProfile(s.pool.QueryRow(ctx, `
		SELECT `+profileColumns+`
		FROM ludo.profiles
		WHERE user_id = $1
	`, userID))
}

func (s *PostgresStore) GetByEmail(ctx context.Context, email string) (Profile, error) {
	return scanProfile(s.pool.QueryRow(ctx, `
		SELECT `+profileColumns+`
		FROM ludo.profiles
		WHERE lower(email) = lower($1)
	`, email))
}

func (s *PostgresStore) RecordLogin(ctx context.Context, now time.Time, userID uuid.UUID, ref SessionRef) error {
	encoded, err := ref.Encode()
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE ludo.profiles
		SET last_login_at = $2,
		    last_login_session_id = $3,
		    updated_at = $2
		WHERE user_id = $1
	`, userID, now, encoded)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) TouchHeartbeat(ctx context.Context, now time.Time, userID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE ludo.profiles
		SET last_login_at = $2,
		    updated_at = $2
		WHERE user_id = $1
	`, userID, now)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) SetAccountExpiry(ctx context.Context, now time.Time, userID uuid.UUID, until time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE ludo.profiles
		SET account_expires_at = $3,
		    updated_at = $2
		WHERE user_id = $1
	`, userID, now, until)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
