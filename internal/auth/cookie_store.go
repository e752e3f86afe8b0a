package auth

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
)

const identityValue = "identity"

// ErrNoIdentity is returned when a new session is saved without an identity.
var ErrNoIdentity = errors.New("session has no identity")

// CookieStore is a sessions.Store whose records live server side. The cookie
// only carries the signed opaque token; the identity comes from the
// SessionManager on every request.
type CookieStore struct {
	Options *sessions.Options

	manager *SessionManager
	codecs  []securecookie.Codec
}

// NewCookieStore signs cookies with keyPairs (see securecookie.CodecsFromPairs).
func NewCookieStore(manager *SessionManager, opts sessions.Options, keyPairs ...[]byte) *CookieStore {
	codecs := securecookie.CodecsFromPairs(keyPairs...)
	for _, codec := range codecs {
		if sc, ok := codec.(*securecookie.SecureCookie); ok {
			sc.MaxAge(int(manager.TTL().Seconds()))
		}
	}
	if opts.MaxAge == 0 {
		opts.MaxAge = int(manager.TTL().Seconds())
	}
	return &CookieStore{
		Options: &opts,
		manager: manager,
		codecs:  codecs,
	}
}

// Get returns the session for name, cached for the lifetime of the request.
func (s *CookieStore) Get(r *http.Request, name string) (*sessions.Session, error) {
	return sessions.GetRegistry(r).Get(s, name)
}

// New resolves the cookie into a session. A missing, tampered, unknown or
// expired cookie yields a fresh session with IsNew set. Store failures are
// returned alongside the fresh session.
func (s *CookieStore) New(r *http.Request, name string) (*sessions.Session, error) {
	session := sessions.NewSession(s, name)
	opts := *s.Options
	session.Options = &opts
	session.IsNew = true

	cookie, err := r.Cookie(name)
	if err != nil {
		return session, nil
	}

	var token string
	if err := securecookie.DecodeMulti(name, cookie.Value, &token, s.codecs...); err != nil {
		return session, nil
	}

	record, err := s.manager.Resolve(r.Context(), token)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) || errors.Is(err, ErrSessionExpired) {
			return session, nil
		}
		return session, err
	}

	session.ID = token
	session.Values[identityValue] = record.Identity
	session.IsNew = false
	return session, nil
}

// Save writes the cookie. A negative MaxAge destroys the record and expires
// the cookie; a session without an ID is issued a new record first.
func (s *CookieStore) Save(r *http.Request, w http.ResponseWriter, session *sessions.Session) error {
	if session.Options != nil && session.Options.MaxAge < 0 {
		if err := s.manager.Destroy(r.Context(), session.ID); err != nil {
			return err
		}
		session.ID = ""
		http.SetCookie(w, sessions.NewCookie(session.Name(), "", session.Options))
		return nil
	}

	if session.ID == "" {
		id, ok := session.Values[identityValue].(Identity)
		if !ok {
			return ErrNoIdentity
		}
		record, err := s.manager.Issue(r.Context(), id)
		if err != nil {
			return err
		}
		session.ID = record.Token
	}

	encoded, err := securecookie.EncodeMulti(session.Name(), session.ID, s.codecs...)
	if err != nil {
		return fmt.Errorf("encode session cookie: %w", err)
	}
	http.SetCookie(w, sessions.NewCookie(session.Name(), encoded, session.Options))
	return nil
}

// Attach writes the cookie for an already issued session record.
func (s *CookieStore) Attach(w http.ResponseWriter, r *http.Request, name string, record Session) error {
	session := sessions.NewSession(s, name)
	opts := *s.Options
	session.Options = &opts
	session.ID = record.Token
	session.Values[identityValue] = record.Identity
	return s.Save(r, w, session)
}

// Expire destroys the record behind the request's cookie, if any, and clears
// the cookie.
func (s *CookieStore) Expire(w http.ResponseWriter, r *http.Request, name string) error {
	session, err := s.Get(r, name)
	if err != nil && session == nil {
		return err
	}
	session.Options.MaxAge = -1
	return s.Save(r, w, session)
}

// SessionIdentity returns the identity held by a session loaded through this
// store.
func SessionIdentity(session *sessions.Session) (Identity, bool) {
	if session == nil || session.IsNew {
		return Identity{}, false
	}
	id, ok := session.Values[identityValue].(Identity)
	return id, ok
}
