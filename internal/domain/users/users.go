package users

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/outreach-portal/server/internal/auth"
)

var (
	ErrUserNotFound       = errors.New("user not found")
	ErrDuplicateEmail     = errors.New("email is already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountDeactivated = errors.New("account is deactivated")
	ErrSelfModification   = errors.New("administrators cannot remove or deactivate their own account")
)

// PageSize is the number of participants shown per page.
const PageSize = 50

// User is a participant or administrator account.
type User struct {
	ID               int64      `json:"id"`
	Email            string     `json:"email"`
	PasswordHash     string     `json:"-"`
	FirstName        string     `json:"first_name"`
	LastName         string     `json:"last_name"`
	Phone            string     `json:"phone,omitempty"`
	SchoolOrEmployer string     `json:"school_or_employer,omitempty"`
	FieldOfInterest  string     `json:"field_of_interest,omitempty"`
	DateOfBirth      *time.Time `json:"date_of_birth,omitempty"`
	Role             auth.Role  `json:"role"`
	IsActive         bool       `json:"is_active"`
	LastLogin        *time.Time `json:"last_login,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// Identity returns the session identity for u.
func (u User) Identity() auth.Identity {
	return auth.Identity{
		UserID:    u.ID,
		Email:     u.Email,
		Role:      u.Role,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

// Profile holds the fields a user may edit about themselves.
type Profile struct {
	FirstName        string
	LastName         string
	Email            string
	Phone            string
	SchoolOrEmployer string
	FieldOfInterest  string
	DateOfBirth      *time.Time
}

// CreateParams contains the stored fields of a new user.
type CreateParams struct {
	Profile
	PasswordHash string
	Role         auth.Role
	IsActive     bool
}

// UpdateParams contains the fields written by an update. Nil pointers leave
// the stored value unchanged.
type UpdateParams struct {
	Profile
	Role         *auth.Role
	IsActive     *bool
	PasswordHash *string
}

// ListOptions selects a page of users. Filters carries the raw query-string
// values (search).
type ListOptions struct {
	Filters url.Values
	Page    int
}

type ListResult struct {
	Users    []User
	Total    int
	Page     int
	PageSize int
}

// Stats are the user counts shown on the dashboard.
type Stats struct {
	Total  int
	Users  int
	Admins int
}

// Repository persists users.
type Repository interface {
	CreateUser(ctx context.Context, params CreateParams) (*User, error)
	GetUserByID(ctx context.Context, id int64) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	ListUsers(ctx context.Context, opts ListOptions) (ListResult, error)
	ListUsersByRole(ctx context.Context, role auth.Role) ([]User, error)
	UpdateUser(ctx context.Context, id int64, params UpdateParams) (*User, error)
	UpdateLastLogin(ctx context.Context, id int64, at time.Time) error
	DeleteUser(ctx context.Context, id int64) error
	CountUsers(ctx context.Context) (Stats, error)
}
