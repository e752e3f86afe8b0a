package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/outreach-portal/server/internal/auth"
	"github.com/outreach-portal/server/internal/metrics"
)

// SessionRepository implements auth.SessionRepository. Only token hashes are
// stored.
type SessionRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

var _ auth.SessionRepository = (*SessionRepository)(nil)

func (r *SessionRepository) queryer() DBTX {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

func (r *SessionRepository) CreateSession(ctx context.Context, s auth.Session) (err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("create_session", start, err) }()

	_, err = r.queryer().Exec(ctx, `
INSERT INTO sessions (token_hash, user_id, email, role, first_name, last_name, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.TokenHash, s.Identity.UserID, s.Identity.Email, string(s.Identity.Role),
		s.Identity.FirstName, s.Identity.LastName, s.CreatedAt, s.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (r *SessionRepository) GetSession(ctx context.Context, tokenHash string) (_ *auth.Session, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("get_session", start, err) }()

	var (
		s    auth.Session
		role string
	)
	err = r.queryer().QueryRow(ctx, `
SELECT token_hash, user_id, email, role, first_name, last_name, created_at, expires_at
  FROM sessions
 WHERE token_hash = $1`, tokenHash).Scan(
		&s.TokenHash, &s.Identity.UserID, &s.Identity.Email, &role,
		&s.Identity.FirstName, &s.Identity.LastName, &s.CreatedAt, &s.ExpiresAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, auth.ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	s.Identity.Role = auth.Role(role)
	return &s, nil
}

// DeleteSession is idempotent.
func (r *SessionRepository) DeleteSession(ctx context.Context, tokenHash string) (err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("delete_session", start, err) }()

	if _, err = r.queryer().Exec(ctx, `DELETE FROM sessions WHERE token_hash = $1`, tokenHash); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (r *SessionRepository) DeleteExpiredSessions(ctx context.Context, before time.Time) (_ int64, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("prune_sessions", start, err) }()

	tag, err := r.queryer().Exec(ctx, `DELETE FROM sessions WHERE expires_at <= $1`, before)
	if err != nil {
		return 0, fmt.Errorf("prune sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}
