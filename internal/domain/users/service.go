package users

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/outreach-portal/server/internal/auth"
	"github.com/outreach-portal/server/internal/sanitize"
	"github.com/outreach-portal/server/internal/validation"
)

// Service manages participant and administrator accounts.
type Service struct {
	repo   Repository
	hasher *auth.PasswordHasher
	logger zerolog.Logger
}

func NewService(repo Repository, hasher *auth.PasswordHasher, logger zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		hasher: hasher,
		logger: logger.With().Str("component", "users").Logger(),
	}
}

// NormalizeEmail is the stored form of an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func cleanProfile(p Profile) Profile {
	return Profile{
		FirstName:        sanitize.Text(strings.TrimSpace(p.FirstName)),
		LastName:         sanitize.Text(strings.TrimSpace(p.LastName)),
		Email:            NormalizeEmail(p.Email),
		Phone:            sanitize.Text(strings.TrimSpace(p.Phone)),
		SchoolOrEmployer: sanitize.Text(strings.TrimSpace(p.SchoolOrEmployer)),
		FieldOfInterest:  sanitize.Text(strings.TrimSpace(p.FieldOfInterest)),
		DateOfBirth:      p.DateOfBirth,
	}
}

func checkProfile(p Profile) validation.Errors {
	errs := validation.Errors{}
	if p.FirstName == "" {
		errs.Add("first_name", "This field is required")
	}
	if p.LastName == "" {
		errs.Add("last_name", "This field is required")
	}
	if p.Email == "" || !strings.Contains(p.Email, "@") {
		errs.Add("email", "Must be a valid email address")
	}
	return errs
}

// CreateUser creates an account on behalf of an administrator.
func (s *Service) CreateUser(ctx context.Context, profile Profile, password string, role auth.Role) (*User, error) {
	profile = cleanProfile(profile)
	errs := checkProfile(profile)
	if len(password) < MinPasswordLength {
		errs.Add("password", fmt.Sprintf("Must be at least %d characters long", MinPasswordLength))
	}
	if !auth.ValidRole(string(role)) {
		errs.Add("role", "Must be one of: user, admin")
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	if err := s.ensureEmailFree(ctx, profile.Email, 0); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	user, err := s.repo.CreateUser(ctx, CreateParams{
		Profile:      profile,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info().Int64("user_id", user.ID).Str("role", string(user.Role)).Msg("user created")
	return user, nil
}

func (s *Service) ensureEmailFree(ctx context.Context, email string, ownerID int64) error {
	existing, err := s.repo.GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, ErrUserNotFound):
		return nil
	case err != nil:
		return fmt.Errorf("failed to check email: %w", err)
	case existing.ID != ownerID:
		return ErrDuplicateEmail
	}
	return nil
}

func (s *Service) GetUser(ctx context.Context, id int64) (*User, error) {
	user, err := s.repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// ListUsers returns one page of users matching the search filter.
func (s *Service) ListUsers(ctx context.Context, opts ListOptions) (ListResult, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	result, err := s.repo.ListUsers(ctx, opts)
	if err != nil {
		return ListResult{}, fmt.Errorf("failed to list users: %w", err)
	}
	return result, nil
}

// ListParticipants returns every account with the user role, for pickers.
func (s *Service) ListParticipants(ctx context.Context) ([]User, error) {
	list, err := s.repo.ListUsersByRole(ctx, auth.RoleUser)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	return list, nil
}

// ListAll returns every account, for pickers that also allow admins.
func (s *Service) ListAll(ctx context.Context) ([]User, error) {
	participants, err := s.repo.ListUsersByRole(ctx, auth.RoleUser)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	admins, err := s.repo.ListUsersByRole(ctx, auth.RoleAdmin)
	if err != nil {
		return nil, fmt.Errorf("failed to list admins: %w", err)
	}
	return append(participants, admins...), nil
}

// EditRequest carries an edit made through the profile form. Role, IsActive
// and Password are optional.
type EditRequest struct {
	Profile
	Role     *auth.Role
	IsActive *bool
	Password string
}

// UpdateUser applies req to user id on behalf of actor. Only administrators
// may change role or active status; for anyone else those fields are ignored.
func (s *Service) UpdateUser(ctx context.Context, actor auth.Identity, id int64, req EditRequest) (*User, error) {
	profile := cleanProfile(req.Profile)
	errs := checkProfile(profile)
	if req.Password != "" && len(req.Password) < MinPasswordLength {
		errs.Add("password", fmt.Sprintf("Must be at least %d characters long", MinPasswordLength))
	}
	if req.Role != nil && !auth.ValidRole(string(*req.Role)) {
		errs.Add("role", "Must be one of: user, admin")
	}
	if err := errs.Err(); err != nil {
		return nil, err
	}

	if _, err := s.GetUser(ctx, id); err != nil {
		return nil, err
	}
	if err := s.ensureEmailFree(ctx, profile.Email, id); err != nil {
		return nil, err
	}

	params := UpdateParams{Profile: profile}
	if actor.IsAdmin() {
		params.Role = req.Role
		params.IsActive = req.IsActive
		if actor.UserID == id {
			if params.Role != nil && *params.Role != auth.RoleAdmin {
				return nil, ErrSelfModification
			}
			if params.IsActive != nil && !*params.IsActive {
				return nil, ErrSelfModification
			}
		}
	}
	if req.Password != "" {
		hash, err := s.hasher.Hash(req.Password)
		if err != nil {
			return nil, err
		}
		params.PasswordHash = &hash
	}

	user, err := s.repo.UpdateUser(ctx, id, params)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrDuplicateEmail) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	s.logger.Info().Int64("user_id", id).Int64("actor_id", actor.UserID).Msg("user updated")
	return user, nil
}

// SetActive activates or deactivates user id. Administrators cannot
// deactivate themselves.
func (s *Service) SetActive(ctx context.Context, actor auth.Identity, id int64, active bool) error {
	if actor.UserID == id && !active {
		return ErrSelfModification
	}
	user, err := s.GetUser(ctx, id)
	if err != nil {
		return err
	}
	if _, err := s.repo.UpdateUser(ctx, id, UpdateParams{
		Profile:  profileOf(*user),
		IsActive: &active,
	}); err != nil {
		return fmt.Errorf("failed to update user status: %w", err)
	}

	s.logger.Info().Int64("user_id", id).Bool("active", active).Int64("actor_id", actor.UserID).Msg("user status changed")
	return nil
}

// DeleteUser permanently removes user id and everything they own.
func (s *Service) DeleteUser(ctx context.Context, actor auth.Identity, id int64) error {
	if actor.UserID == id {
		return ErrSelfModification
	}
	if err := s.repo.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete user: %w", err)
	}

	s.logger.Info().Int64("user_id", id).Int64("actor_id", actor.UserID).Msg("user deleted")
	return nil
}

// Stats returns the account counts for the dashboard.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	stats, err := s.repo.CountUsers(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count users: %w", err)
	}
	return stats, nil
}

// EnsureAdmin creates an administrator with email unless an account with
// that email exists. It reports whether an account was created.
func (s *Service) EnsureAdmin(ctx context.Context, profile Profile, password string) (bool, error) {
	email := NormalizeEmail(profile.Email)
	if _, err := s.repo.GetUserByEmail(ctx, email); err == nil {
		return false, nil
	} else if !errors.Is(err, ErrUserNotFound) {
		return false, fmt.Errorf("failed to check admin user: %w", err)
	}

	if _, err := s.CreateUser(ctx, profile, password, auth.RoleAdmin); err != nil {
		return false, err
	}
	return true, nil
}

// Promote grants the admin role to the account with email.
func (s *Service) Promote(ctx context.Context, email string) (*User, error) {
	user, err := s.repo.GetUserByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	role := auth.RoleAdmin
	active := true
	return s.repo.UpdateUser(ctx, user.ID, UpdateParams{
		Profile:  profileOf(*user),
		Role:     &role,
		IsActive: &active,
	})
}

func profileOf(u User) Profile {
	return Profile{
		FirstName:        u.FirstName,
		LastName:         u.LastName,
		Email:            u.Email,
		Phone:            u.Phone,
		SchoolOrEmployer: u.SchoolOrEmployer,
		FieldOfInterest:  u.FieldOfInterest,
		DateOfBirth:      u.DateOfBirth,
	}
}
