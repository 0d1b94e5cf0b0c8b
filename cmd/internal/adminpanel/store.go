package adminpanel

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the persistence surface for the admin APIs.
type Store interface {
	ListKeys(ctx context.Context) ([]AccessKey, error)
	CreateKey(ctx context.Context, k AccessKey) error

	ListAnnouncements(ctx context.Context) ([]Announcement, error)
	// CurrentAnnouncement returns the newest active announcement or
	// ErrNotFound when none is active.
	CurrentAnnouncement(ctx context.Context) (Announcement, error)
	CreateAnnouncement(ctx context.Context, a Announcement) error

	SubmitFeedback(ctx context.Context, f Feedback) error
	ListFeedback(ctx context.Context) ([]Feedback, error)

	ListAILimits(ctx context.Context) ([]AILimit, error)
	SetAILimit(ctx context.Context, l AILimit) error
}

// PostgresStore implements Store on the ludo schema.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) (*PostgresStore, error) {
	if pool == nil {
		return nil, errors.New("adminpanel: nil db pool")
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) ListKeys(ctx context.Context) ([]AccessKey, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, code, duration_days, note, created_by, created_at, redeemed_by, redeemed_at
		FROM ludo.access_keys
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []AccessKey
	for rows.Next() {
		var k AccessKey
		if err := rows.Scan(&k.ID, &k.Code, &k.DurationDays, &k.Note, &k.CreatedBy, &k.CreatedAt, &k.RedeemedBy, &k.RedeemedAt); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) CreateKey(ctx context.Context, k AccessKey) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ludo.access_keys (id, code, duration_days, note, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, k.ID, k.Code, k.DurationDays, k.Note, k.CreatedBy, k.CreatedAt)
	return err
}

func (s *PostgresStore) ListAnnouncements(ctx context.Context) ([]Announcement, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, title, body, active, created_by, created_at
		FROM ludo.announcements
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Announcement
	for rows.Next() {
		var a Announcement
		if err := rows.Scan(&a.ID, &a.Title, &a.Body, &a.Active, &a.CreatedBy, &a.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CurrentAnnouncement(ctx context.Context) (Announcement, error) {
	var a Announcement
	err := s.pool.QueryRow(ctx, `
		SELECT id, title, body, active, created_by, created_at
		FROM ludo.announcements
		WHERE active
		ORDER BY created_at DESC
		LIMIT 1
	`).Scan(&a.ID, &a.Title, &a.Body, &a.Active, &a.CreatedBy, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Announcement{}, ErrNotFound
	}
	if err != nil {
		return Announcement{}, err
	}
	return a, nil
}

func (s *PostgresStore) CreateAnnouncement(ctx context.Context, a Announcement) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ludo.announcements (id, title, body, active, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, a.ID, a.Title, a.Body, a.Active, a.CreatedBy, a.CreatedAt)
	return err
}

func (s *PostgresStore) SubmitFeedback(ctx context.Context, f Feedback) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ludo.feedback (id, user_id, email, message, page, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, f.ID, f.UserID, f.Email, f.Message, f.Page, f.CreatedAt)
	return err
}

func (s *PostgresStore) ListFeedback(ctx context.Context) ([]Feedback, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, email, message, page, created_at
		FROM ludo.feedback
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Feedback
	for rows.Next() {
		var f Feedback
		if err := rows.Scan(&f.ID, &f.UserID, &f.Email, &f.Message, &f.Page, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListAILimits(ctx context.Context) ([]AILimit, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id, daily_limit, updated_at
		FROM ludo.ai_usage_limits
		ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AILimit
	for rows.Next() {
		var l AILimit
		if err := rows.Scan(&l.UserID, &l.DailyLimit, &l.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SetAILimit(ctx context.Context, l AILimit) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO ludo.ai_usage_limits (user_id, daily_limit, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE
		SET daily_limit = EXCLUDED.daily_limit,
		    updated_at = EXCLUDED.updated_at
	`, l.UserID, l.DailyLimit, l.UpdatedAt)
	return err
}
