package users

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/outreach-portal/server/internal/auth"
	"github.com/outreach-portal/server/internal/validation"
)

type fakeRepo struct {
	mu     sync.Mutex
	nextID int64
	users  map[int64]User

	getByEmailErr error
	lastLogins    map[int64]time.Time
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{users: make(map[int64]User), lastLogins: make(map[int64]time.Time)}
}

func (f *fakeRepo) CreateUser(_ context.Context, p CreateParams) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.Email == p.Email {
			return nil, ErrDuplicateEmail
		}
	}
	f.nextID++
	u := User{
		ID:           f.nextID,
		Email:        p.Email,
		PasswordHash: p.PasswordHash,
		FirstName:    p.FirstName,
		LastName:     p.LastName,
		Role:         p.Role,
		IsActive:     p.IsActive,
		CreatedAt:    time.Now(),
	}
	f.users[u.ID] = u
	return &u, nil
}

func (f *fakeRepo) GetUserByID(_ context.Context, id int64) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}

func (f *fakeRepo) GetUserByEmail(_ context.Context, email string) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getByEmailErr != nil {
		return nil, f.getByEmailErr
	}
	for _, u := range f.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, ErrUserNotFound
}

func (f *fakeRepo) ListUsers(_ context.Context, opts ListOptions) (ListResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]User, 0, len(f.users))
	for _, u := range f.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastName < out[j].LastName })
	return ListResult{Users: out, Total: len(out), Page: opts.Page, PageSize: PageSize}, nil
}

func (f *fakeRepo) ListUsersByRole(_ context.Context, role auth.Role) ([]User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []User
	for _, u := range f.users {
		if u.Role == role {
			out = append(out, u)
		}
	}
	return out, nil
}

func (f *fakeRepo) UpdateUser(_ context.Context, id int64, p UpdateParams) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	u.FirstName, u.LastName, u.Email = p.FirstName, p.LastName, p.Email
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.IsActive != nil {
		u.IsActive = *p.IsActive
	}
	if p.PasswordHash != nil {
		u.PasswordHash = *p.PasswordHash
	}
	f.users[id] = u
	return &u, nil
}

func (f *fakeRepo) UpdateLastLogin(_ context.Context, id int64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastLogins[id] = at
	return nil
}

func (f *fakeRepo) DeleteUser(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return ErrUserNotFound
	}
	delete(f.users, id)
	return nil
}

func (f *fakeRepo) CountUsers(_ context.Context) (Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var s Stats
	for _, u := range f.users {
		s.Total++
		if u.Role == auth.RoleAdmin {
			s.Admins++
		} else {
			s.Users++
		}
	}
	return s, nil
}

func newTestService(t *testing.T) (*Service, *fakeRepo) {
	t.Helper()
	repo := newFakeRepo()
	return NewService(repo, auth.NewPasswordHasher(bcrypt.MinCost), zerolog.Nop()), repo
}

func TestService_CreateUser(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, Profile{FirstName: " Ann ", LastName: "Lee", Email: " Ann@Example.COM "}, "longenough", auth.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", user.Email)
	assert.Equal(t, "Ann", user.FirstName)
	assert.Equal(t, auth.RoleAdmin, user.Role)
	assert.True(t, user.IsActive)
	assert.NotEqual(t, "longenough", repo.users[user.ID].PasswordHash)

	_, err = svc.CreateUser(ctx, Profile{FirstName: "Other", LastName: "Person", Email: "ann@example.com"}, "longenough", auth.RoleUser)
	assert.ErrorIs(t, err, ErrDuplicateEmail)
	assert.Len(t, repo.users, 1)
}

func TestService_CreateUser_Validation(t *testing.T) {
	svc, repo := newTestService(t)

	_, err := svc.CreateUser(context.Background(), Profile{Email: "bad"}, "short", auth.Role("owner"))
	errs, ok := validation.AsErrors(err)
	require.True(t, ok, "expected validation errors, got %v", err)
	assert.Contains(t, errs, "first_name")
	assert.Contains(t, errs, "last_name")
	assert.Contains(t, errs, "email")
	assert.Contains(t, errs, "password")
	assert.Contains(t, errs, "role")
	assert.Empty(t, repo.users)
}

func TestService_CreateUser_StripsMarkup(t *testing.T) {
	svc, _ := newTestService(t)

	user, err := svc.CreateUser(context.Background(), Profile{FirstName: "<b>Ann</b>", LastName: "O'Neil", Email: "ann@example.com"}, "longenough", auth.RoleUser)
	require.NoError(t, err)
	assert.Equal(t, "Ann", user.FirstName)
	assert.Equal(t, "O'Neil", user.LastName)
}

func TestService_UpdateUser_NonAdminCannotChangeRole(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, Profile{FirstName: "Kim", LastName: "Ng", Email: "kim@example.com"}, "longenough", auth.RoleUser)
	require.NoError(t, err)

	admin := auth.RoleAdmin
	active := false
	updated, err := svc.UpdateUser(ctx, user.Identity(), user.ID, EditRequest{
		Profile:  Profile{FirstName: "Kimberly", LastName: "Ng", Email: "kim@example.com"},
		Role:     &admin,
		IsActive: &active,
	})
	require.NoError(t, err)
	assert.Equal(t, "Kimberly", updated.FirstName)
	assert.Equal(t, auth.RoleUser, repo.users[user.ID].Role)
	assert.True(t, repo.users[user.ID].IsActive)
}

func TestService_UpdateUser_AdminChangesRole(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, Profile{FirstName: "Kim", LastName: "Ng", Email: "kim@example.com"}, "longenough", auth.RoleUser)
	require.NoError(t, err)

	actor := auth.Identity{UserID: 999, Role: auth.RoleAdmin}
	admin := auth.RoleAdmin
	_, err = svc.UpdateUser(ctx, actor, user.ID, EditRequest{
		Profile: Profile{FirstName: "Kim", LastName: "Ng", Email: "kim@example.com"},
		Role:    &admin,
	})
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, repo.users[user.ID].Role)
}

func TestService_UpdateUser_EmailTakenByOther(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.CreateUser(ctx, Profile{FirstName: "A", LastName: "A", Email: "a@example.com"}, "longenough", auth.RoleUser)
	require.NoError(t, err)
	_, err = svc.CreateUser(ctx, Profile{FirstName: "B", LastName: "B", Email: "b@example.com"}, "longenough", auth.RoleUser)
	require.NoError(t, err)

	_, err = svc.UpdateUser(ctx, a.Identity(), a.ID, EditRequest{Profile: Profile{FirstName: "A", LastName: "A", Email: "b@example.com"}})
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	_, err = svc.UpdateUser(ctx, a.Identity(), a.ID, EditRequest{Profile: Profile{FirstName: "A2", LastName: "A", Email: "a@example.com"}})
	assert.NoError(t, err)
}

func TestService_AdminCannotRemoveThemselves(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	admin, err := svc.CreateUser(ctx, Profile{FirstName: "Root", LastName: "Admin", Email: "root@example.com"}, "longenough", auth.RoleAdmin)
	require.NoError(t, err)
	actor := admin.Identity()

	assert.ErrorIs(t, svc.DeleteUser(ctx, actor, admin.ID), ErrSelfModification)
	assert.ErrorIs(t, svc.SetActive(ctx, actor, admin.ID, false), ErrSelfModification)

	demote := auth.RoleUser
	_, err = svc.UpdateUser(ctx, actor, admin.ID, EditRequest{
		Profile: Profile{FirstName: "Root", LastName: "Admin", Email: "root@example.com"},
		Role:    &demote,
	})
	assert.ErrorIs(t, err, ErrSelfModification)
}

func TestService_SetActiveAndDelete(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	actor := auth.Identity{UserID: 100, Role: auth.RoleAdmin}

	user, err := svc.CreateUser(ctx, Profile{FirstName: "Kim", LastName: "Ng", Email: "kim@example.com"}, "longenough", auth.RoleUser)
	require.NoError(t, err)

	require.NoError(t, svc.SetActive(ctx, actor, user.ID, false))
	assert.False(t, repo.users[user.ID].IsActive)

	require.NoError(t, svc.DeleteUser(ctx, actor, user.ID))
	assert.ErrorIs(t, svc.DeleteUser(ctx, actor, user.ID), ErrUserNotFound)
}

func TestService_EnsureAdmin(t *testing.T) {
	svc, repo := newTestService(t)
	ctx := context.Background()
	profile := Profile{FirstName: "Site", LastName: "Admin", Email: "admin@example.com"}

	created, err := svc.EnsureAdmin(ctx, profile, "longenough")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = svc.EnsureAdmin(ctx, profile, "longenough")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Len(t, repo.users, 1)
}

func TestService_Promote(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, Profile{FirstName: "Kim", LastName: "Ng", Email: "kim@example.com"}, "longenough", auth.RoleUser)
	require.NoError(t, err)

	user, err := svc.Promote(ctx, "KIM@example.com")
	require.NoError(t, err)
	assert.Equal(t, auth.RoleAdmin, user.Role)

	_, err = svc.Promote(ctx, "nobody@example.com")
	assert.True(t, errors.Is(err, ErrUserNotFound))
}

func TestService_Stats(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, email := range []string{"a@example.com", "b@example.com"} {
		_, err := svc.CreateUser(ctx, Profile{FirstName: "X", LastName: "Y", Email: email}, "longenough", auth.RoleUser)
		require.NoError(t, err)
	}
	_, err := svc.CreateUser(ctx, Profile{FirstName: "X", LastName: "Y", Email: "c@example.com"}, "longenough", auth.RoleAdmin)
	require.NoError(t, err)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{Total: 3, Users: 2, Admins: 1}, stats)
}
