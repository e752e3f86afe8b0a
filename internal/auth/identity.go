package auth

import (
	"context"
	"strconv"
	"strings"
)

// Identity is the signed-in user as resolved from the session for the
// current request.
type Identity struct {
	UserID    int64  `json:"id"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

func (i Identity) DisplayName() string {
	name := strings.TrimSpace(i.FirstName + " " + i.LastName)
	if name == "" {
		return i.Email
	}
	return name
}

type identityKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the identity bound by the session middleware.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	if !ok || id.UserID <= 0 {
		return Identity{}, false
	}
	return id, true
}

// ParseUserID parses a user id taken from a route path.
func ParseUserID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// CanAccessUser reports whether id may act on the user whose id appears in
// the route path as rawTarget. Admins always may; anyone else only when the
// path id parses and equals their own.
func CanAccessUser(id Identity, rawTarget string) bool {
	if id.UserID <= 0 {
		return false
	}
	if id.IsAdmin() {
		return true
	}
	target, ok := ParseUserID(rawTarget)
	if !ok {
		return false
	}
	return target == id.UserID
}
