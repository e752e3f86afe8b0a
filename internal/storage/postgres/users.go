package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/outreach-portal/server/internal/auth"
	"github.com/outreach-portal/server/internal/domain/users"
	"github.com/outreach-portal/server/internal/metrics"
	"github.com/outreach-portal/server/internal/storage/listquery"
)

// UserRepository implements users.Repository.
type UserRepository struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

var _ users.Repository = (*UserRepository)(nil)

func (r *UserRepository) queryer() DBTX {
	if r.tx != nil {
		return r.tx
	}
	return r.pool
}

const userColumns = `user_id, email, password, first_name, last_name,
	COALESCE(phone, ''), COALESCE(school_or_employer, ''), COALESCE(field_of_interest, ''),
	date_of_birth, role, is_active, last_login, created_at`

var userListSpec = listquery.Spec{
	Fields: []listquery.Field{
		{Param: "search", Columns: []string{"first_name", "last_name", "email"}, Match: listquery.Contains},
	},
	OrderBy:  "last_name ASC, first_name ASC, user_id ASC",
	PageSize: users.PageSize,
}

func scanUser(row pgx.Row) (users.User, error) {
	var (
		u    users.User
		role string
	)
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.FirstName, &u.LastName,
		&u.Phone, &u.SchoolOrEmployer, &u.FieldOfInterest,
		&u.DateOfBirth, &role, &u.IsActive, &u.LastLogin, &u.CreatedAt,
	)
	u.Role = auth.Role(role)
	return u, err
}

func collectUser(row pgx.CollectableRow) (users.User, error) {
	return scanUser(row)
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (r *UserRepository) CreateUser(ctx context.Context, params users.CreateParams) (_ *users.User, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("create_user", start, err) }()

	row := r.queryer().QueryRow(ctx, `
INSERT INTO users (email, password, first_name, last_name, phone, school_or_employer,
                   field_of_interest, date_of_birth, role, is_active)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING `+userColumns,
		params.Email, params.PasswordHash, params.FirstName, params.LastName,
		nullIfEmpty(params.Phone), nullIfEmpty(params.SchoolOrEmployer), nullIfEmpty(params.FieldOfInterest),
		params.DateOfBirth, string(params.Role), params.IsActive,
	)
	u, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, users.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	return &u, nil
}

func (r *UserRepository) getOne(ctx context.Context, operation, where string, arg any) (_ *users.User, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery(operation, start, err) }()

	u, err := scanUser(r.queryer().QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, users.ErrUserNotFound
		}
		return nil, fmt.Errorf("%s: %w", operation, err)
	}
	return &u, nil
}

func (r *UserRepository) GetUserByID(ctx context.Context, id int64) (*users.User, error) {
	return r.getOne(ctx, "get_user", "user_id = $1", id)
}

func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*users.User, error) {
	return r.getOne(ctx, "get_user_by_email", "email = $1", email)
}

func (r *UserRepository) ListUsers(ctx context.Context, opts users.ListOptions) (users.ListResult, error) {
	page := pageOrFirst(opts.Page)
	list, total, err := listPage(ctx, r.queryer(), "list_users", userListSpec, opts.Filters, page, nil,
		`SELECT COUNT(*) FROM users`,
		`SELECT `+userColumns+` FROM users`,
		collectUser,
	)
	if err != nil {
		return users.ListResult{}, err
	}
	return users.ListResult{Users: list, Total: total, Page: page, PageSize: users.PageSize}, nil
}

func (r *UserRepository) ListUsersByRole(ctx context.Context, role auth.Role) (_ []users.User, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("list_users_by_role", start, err) }()

	rows, err := r.queryer().Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE role = $1 ORDER BY last_name, first_name, user_id`,
		string(role),
	)
	if err != nil {
		return nil, fmt.Errorf("list users by role: %w", err)
	}
	return pgx.CollectRows(rows, collectUser)
}

func (r *UserRepository) UpdateUser(ctx context.Context, id int64, params users.UpdateParams) (_ *users.User, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("update_user", start, err) }()

	var role *string
	if params.Role != nil {
		s := string(*params.Role)
		role = &s
	}

	row := r.queryer().QueryRow(ctx, `
UPDATE users
   SET first_name = $2,
       last_name = $3,
       email = $4,
       phone = $5,
       school_or_employer = $6,
       field_of_interest = $7,
       date_of_birth = $8,
       role = COALESCE($9, role),
       is_active = COALESCE($10, is_active),
       password = COALESCE($11, password)
 WHERE user_id = $1
RETURNING `+userColumns,
		id, params.FirstName, params.LastName, params.Email,
		nullIfEmpty(params.Phone), nullIfEmpty(params.SchoolOrEmployer), nullIfEmpty(params.FieldOfInterest),
		params.DateOfBirth, role, params.IsActive, params.PasswordHash,
	)
	u, err := scanUser(row)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return nil, users.ErrUserNotFound
		case isUniqueViolation(err):
			return nil, users.ErrDuplicateEmail
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return &u, nil
}

func (r *UserRepository) UpdateLastLogin(ctx context.Context, id int64, at time.Time) (err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("update_last_login", start, err) }()

	tag, err := r.queryer().Exec(ctx, `UPDATE users SET last_login = $2 WHERE user_id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return affectedOne(tag, users.ErrUserNotFound)
}

// DeleteUser removes the user; sessions, donations, registrations and
// milestones go with it through ON DELETE CASCADE.
func (r *UserRepository) DeleteUser(ctx context.Context, id int64) (err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("delete_user", start, err) }()

	tag, err := r.queryer().Exec(ctx, `DELETE FROM users WHERE user_id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return affectedOne(tag, users.ErrUserNotFound)
}

func (r *UserRepository) CountUsers(ctx context.Context) (_ users.Stats, err error) {
	start := time.Now()
	defer func() { metrics.RecordQuery("count_users", start, err) }()

	var stats users.Stats
	err = r.queryer().QueryRow(ctx, `
SELECT COUNT(*),
       COUNT(*) FILTER (WHERE role = 'user'),
       COUNT(*) FILTER (WHERE role = 'admin')
  FROM users`).Scan(&stats.Total, &stats.Users, &stats.Admins)
	if err != nil {
		return users.Stats{}, fmt.Errorf("count users: %w", err)
	}
	return stats, nil
}
