package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"time"
)

// DefaultSessionTTL is the fixed lifetime of a session record.
const DefaultSessionTTL = 24 * time.Hour

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
)

// Session is a server-side session record. Token is only known at issue
// time; the store keeps TokenHash.
type Session struct {
	Token     string
	TokenHash string
	Identity  Identity
	CreatedAt time.Time
	ExpiresAt time.Time
}

// SessionRepository persists session records keyed by token hash.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) error
	GetSession(ctx context.Context, tokenHash string) (*Session, error)
	DeleteSession(ctx context.Context, tokenHash string) error
	DeleteExpiredSessions(ctx context.Context, before time.Time) (int64, error)
}

// SessionManager issues, resolves and destroys session records.
type SessionManager struct {
	repo SessionRepository
	ttl  time.Duration
	now  func() time.Time
}

func NewSessionManager(repo SessionRepository, ttl time.Duration) *SessionManager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &SessionManager{repo: repo, ttl: ttl, now: time.Now}
}

func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

// Issue creates a new session bound to id and returns it with its token.
func (m *SessionManager) Issue(ctx context.Context, id Identity) (Session, error) {
	token, err := generateSecureToken()
	if err != nil {
		return Session{}, err
	}
	now := m.now().UTC()
	session := Session{
		Token:     token,
		TokenHash: HashToken(token),
		Identity:  id,
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl),
	}
	if err := m.repo.CreateSession(ctx, session); err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

// Resolve looks up the session for token. Expired records are deleted and
// reported as ErrSessionExpired.
func (m *SessionManager) Resolve(ctx context.Context, token string) (Session, error) {
	if token == "" {
		return Session{}, ErrSessionNotFound
	}
	hash := HashToken(token)
	session, err := m.repo.GetSession(ctx, hash)
	if err != nil {
		return Session{}, err
	}
	if !m.now().Before(session.ExpiresAt) {
		if err := m.repo.DeleteSession(ctx, hash); err != nil {
			return Session{}, fmt.Errorf("delete expired session: %w", err)
		}
		return Session{}, ErrSessionExpired
	}
	session.Token = token
	return *session, nil
}

// Destroy removes the session for token. Destroying an absent session is not
// an error.
func (m *SessionManager) Destroy(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	err := m.repo.DeleteSession(ctx, HashToken(token))
	if err != nil && !errors.Is(err, ErrSessionNotFound) {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Prune deletes every expired session and returns how many were removed.
func (m *SessionManager) Prune(ctx context.Context) (int64, error) {
	return m.repo.DeleteExpiredSessions(ctx, m.now().UTC())
}

func generateSecureToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// HashToken returns the stored form of a session token.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}
