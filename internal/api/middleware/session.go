package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/outreach-portal/server/internal/auth"
	"github.com/outreach-portal/server/internal/domain/users"
)

// IdentityRefresher re-reads the account behind a session.
type IdentityRefresher interface {
	Refresh(ctx context.Context, id auth.Identity) (auth.Identity, error)
}

// SessionConfig configures session resolution.
type SessionConfig struct {
	Store      *auth.CookieStore
	CookieName string
	// Refresher, when set, re-checks role and active flag on every request.
	Refresher IdentityRefresher
}

// Session resolves the session cookie into an auth.Identity on the request
// context. Requests without a valid session pass through anonymously. A
// session whose account was deleted or deactivated is destroyed. Store
// failures end the request with a 500.
func Session(cfg SessionConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger := zerolog.Ctx(r.Context())

			session, err := cfg.Store.Get(r, cfg.CookieName)
			if err != nil {
				logger.Error().Err(err).Msg("session lookup failed")
				ServerError(w, r)
				return
			}

			id, ok := auth.SessionIdentity(session)
			if !ok {
				next.ServeHTTP(w, r)
				return
			}

			if cfg.Refresher != nil {
				fresh, err := cfg.Refresher.Refresh(r.Context(), id)
				switch {
				case errors.Is(err, users.ErrUserNotFound), errors.Is(err, users.ErrAccountDeactivated):
					logger.Info().Int64("user_id", id.UserID).Err(err).Msg("ending session")
					if expireErr := cfg.Store.Expire(w, r, cfg.CookieName); expireErr != nil {
						logger.Error().Err(expireErr).Msg("failed to end session")
					}
					next.ServeHTTP(w, r)
					return
				case err != nil:
					logger.Error().Err(err).Int64("user_id", id.UserID).Msg("session revalidation failed")
					ServerError(w, r)
					return
				}
				id = fresh
			}

			ctx := auth.WithIdentity(r.Context(), id)
			reqLogger := logger.With().Int64("user_id", id.UserID).Logger()
			ctx = reqLogger.WithContext(ctx)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
