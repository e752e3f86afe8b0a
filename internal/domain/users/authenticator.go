package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/outreach-portal/server/internal/auth"
	"github.com/outreach-portal/server/internal/metrics"
)

// MinPasswordLength applies to registration and password changes.
const MinPasswordLength = 8

// SessionIssuer creates and destroys server-side sessions.
type SessionIssuer interface {
	Issue(ctx context.Context, id auth.Identity) (auth.Session, error)
	Destroy(ctx context.Context, token string) error
}

// Authenticator registers accounts and turns credentials into sessions.
type Authenticator struct {
	repo     Repository
	hasher   *auth.PasswordHasher
	sessions SessionIssuer
	logger   zerolog.Logger
	now      func() time.Time
}

func NewAuthenticator(repo Repository, hasher *auth.PasswordHasher, sessions SessionIssuer, logger zerolog.Logger) *Authenticator {
	return &Authenticator{
		repo:     repo,
		hasher:   hasher,
		sessions: sessions,
		logger:   logger.With().Str("component", "authenticator").Logger(),
		now:      time.Now,
	}
}

// RegisterParams is the self-registration form.
type RegisterParams struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
}

// Register creates an active account with the user role. It returns
// ErrDuplicateEmail without writing anything when the email is taken.
func (a *Authenticator) Register(ctx context.Context, params RegisterParams) (*User, error) {
	profile := cleanProfile(Profile{
		FirstName: params.FirstName,
		LastName:  params.LastName,
		Email:     params.Email,
	})
	errs := checkProfile(profile)
	if len(params.Password) < MinPasswordLength {
		errs.Add("password", fmt.Sprintf("Must be at least %d characters long", MinPasswordLength))
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	if _, err := a.repo.GetUserByEmail(ctx, profile.Email); err == nil {
		metrics.Registrations.WithLabelValues("duplicate").Inc()
		return nil, ErrDuplicateEmail
	} else if !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	hash, err := a.hasher.Hash(params.Password)
	if err != nil {
		return nil, err
	}

	user, err := a.repo.CreateUser(ctx, CreateParams{
		Profile:      profile,
		PasswordHash: hash,
		Role:         auth.RoleUser,
		IsActive:     true,
	})
	if err != nil {
		if errors.Is(err, ErrDuplicateEmail) {
			metrics.Registrations.WithLabelValues("duplicate").Inc()
			return nil, err
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	metrics.Registrations.WithLabelValues("success").Inc()
	a.logger.Info().Int64("user_id", user.ID).Msg("user registered")
	return user, nil
}

// Login checks credentials and issues a session. Unknown email and wrong
// password both return ErrInvalidCredentials.
func (a *Authenticator) Login(ctx context.Context, email, password string) (auth.Session, error) {
	user, err := a.repo.GetUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			a.hasher.Burn(password)
			metrics.LoginAttempts.WithLabelValues("invalid").Inc()
			return auth.Session{}, ErrInvalidCredentials
		}
		return auth.Session{}, fmt.Errorf("failed to look up user: %w", err)
	}

	if err := a.hasher.Verify(user.PasswordHash, password); err != nil {
		metrics.LoginAttempts.WithLabelValues("invalid").Inc()
		return auth.Session{}, ErrInvalidCredentials
	}

	if !user.IsActive {
		metrics.LoginAttempts.WithLabelValues("deactivated").Inc()
		a.logger.Warn().Int64("user_id", user.ID).Msg("login refused for deactivated account")
		return auth.Session{}, ErrAccountDeactivated
	}

	if err := a.repo.UpdateLastLogin(ctx, user.ID, a.now().UTC()); err != nil {
		return auth.Session{}, fmt.Errorf("failed to update last login: %w", err)
	}

	session, err := a.sessions.Issue(ctx, user.Identity())
	if err != nil {
		return auth.Session{}, err
	}

	metrics.LoginAttempts.WithLabelValues("success").Inc()
	a.logger.Info().Int64("user_id", user.ID).Msg("user logged in")
	return session, nil
}

// Logout destroys the session for token. It succeeds when no such session
// exists.
func (a *Authenticator) Logout(ctx context.Context, token string) error {
	return a.sessions.Destroy(ctx, token)
}

// Refresh re-reads the account behind a session so role changes and
// deactivation take effect on the next request. It returns ErrUserNotFound or
// ErrAccountDeactivated when the session should no longer be honoured.
func (a *Authenticator) Refresh(ctx context.Context, id auth.Identity) (auth.Identity, error) {
	user, err := a.repo.GetUserByID(ctx, id.UserID)
	if err != nil {
		return auth.Identity{}, err
	}
	if !user.IsActive {
		return auth.Identity{}, ErrAccountDeactivated
	}
	return user.Identity(), nil
}
