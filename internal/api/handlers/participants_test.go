package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outreach-portal/server/internal/auth"
	"github.com/outreach-portal/server/internal/domain/donations"
	"github.com/outreach-portal/server/internal/domain/milestones"
	"github.com/outreach-portal/server/internal/domain/surveys"
	"github.com/outreach-portal/server/internal/domain/users"
)

type stubUsers struct {
	byID      map[int64]users.User
	listed    users.ListOptions
	created   []users.Profile
	edits     []users.EditRequest
	activated map[int64]bool
	deleted   []int64
	err       error
}

func newStubUsers() *stubUsers {
	return &stubUsers{
		byID: map[int64]users.User{
			1: {ID: 1, Email: adminID.Email, FirstName: "Ada", LastName: "Admin", Role: auth.RoleAdmin, IsActive: true},
			5: {ID: 5, Email: participantID.Email, FirstName: "Ann", LastName: "Lee", Role: auth.RoleUser, IsActive: true, Phone: "555-0100"},
		},
		activated: map[int64]bool{},
	}
}

func (s *stubUsers) ListUsers(_ context.Context, opts users.ListOptions) (users.ListResult, error) {
	s.listed = opts
	return users.ListResult{Users: []users.User{s.byID[1], s.byID[5]}, Total: 2, Page: 1, PageSize: users.PageSize}, nil
}

func (s *stubUsers) GetUser(_ context.Context, id int64) (*users.User, error) {
	u, ok := s.byID[id]
	if !ok {
		return nil, users.ErrUserNotFound
	}
	return &u, nil
}

func (s *stubUsers) CreateUser(_ context.Context, profile users.Profile, _ string, role auth.Role) (*users.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.created = append(s.created, profile)
	return &users.User{ID: 7, Email: profile.Email, FirstName: profile.FirstName, LastName: profile.LastName, Role: role}, nil
}

func (s *stubUsers) UpdateUser(_ context.Context, _ auth.Identity, id int64, req users.EditRequest) (*users.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.edits = append(s.edits, req)
	u := s.byID[id]
	return &u, nil
}

func (s *stubUsers) SetActive(_ context.Context, actor auth.Identity, id int64, active bool) error {
	if actor.UserID == id {
		return users.ErrSelfModification
	}
	s.activated[id] = active
	return nil
}

func (s *stubUsers) DeleteUser(_ context.Context, actor auth.Identity, id int64) error {
	if actor.UserID == id {
		return users.ErrSelfModification
	}
	s.deleted = append(s.deleted, id)
	return nil
}

type ownedRecords struct{}

func (ownedRecords) listDonations(_ context.Context, _ auth.Identity, opts donations.ListOptions) (donations.ListResult, error) {
	day := time.Date(2024, time.January, 9, 0, 0, 0, 0, time.UTC)
	return donations.ListResult{Donations: []donations.Donation{{ID: 1, UserID: opts.OwnerID, Amount: 1250, Date: &day}}}, nil
}

type donationsFunc func(ctx context.Context, actor auth.Identity, opts donations.ListOptions) (donations.ListResult, error)

func (f donationsFunc) List(ctx context.Context, actor auth.Identity, opts donations.ListOptions) (donations.ListResult, error) {
	return f(ctx, actor, opts)
}

type surveysFunc func(ctx context.Context, actor auth.Identity, opts surveys.ListOptions) (surveys.ListResult, error)

func (f surveysFunc) List(ctx context.Context, actor auth.Identity, opts surveys.ListOptions) (surveys.ListResult, error) {
	return f(ctx, actor, opts)
}

type milestonesFunc func(ctx context.Context, actor auth.Identity, opts milestones.ListOptions) (milestones.ListResult, error)

func (f milestonesFunc) List(ctx context.Context, actor auth.Identity, opts milestones.ListOptions) (milestones.ListResult, error) {
	return f(ctx, actor, opts)
}

func newParticipantsHandler(t *testing.T, svc *stubUsers) *ParticipantsHandler {
	t.Helper()
	noSurveys := surveysFunc(func(context.Context, auth.Identity, surveys.ListOptions) (surveys.ListResult, error) {
		return surveys.ListResult{}, nil
	})
	someMilestones := milestonesFunc(func(_ context.Context, _ auth.Identity, opts milestones.ListOptions) (milestones.ListResult, error) {
		return milestones.ListResult{Milestones: []milestones.Milestone{{ID: 3, UserID: opts.OwnerID, Title: "Accepted to college"}}}, nil
	})
	return NewParticipantsHandler(testPages(t), svc, donationsFunc(ownedRecords{}.listDonations), noSurveys, someMilestones)
}

func TestParticipantsList(t *testing.T) {
	svc := newStubUsers()
	h := newParticipantsHandler(t, svc)

	t.Run("admin searches everyone", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.List(rec, as(getRequest("/participants?search=lee"), adminID))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "lee", svc.listed.Filters.Get("search"))
		assert.Contains(t, rec.Body.String(), "Lee, Ann")
		assert.Contains(t, rec.Body.String(), "Admin, Ada")
		assert.Contains(t, rec.Body.String(), "/participants/5/deactivate")
		assert.NotContains(t, rec.Body.String(), "/participants/1/deactivate")
	})

	t.Run("participant sees only themselves", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.List(rec, as(getRequest("/participants"), participantID))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Lee, Ann")
		assert.NotContains(t, rec.Body.String(), "Admin, Ada")
		assert.NotContains(t, rec.Body.String(), "/participants/add")
	})
}

func TestParticipantsShow(t *testing.T) {
	h := newParticipantsHandler(t, newStubUsers())

	rec := httptest.NewRecorder()
	h.Show(rec, withID(as(getRequest("/participants/5"), participantID), "5"))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "555-0100")
	assert.Contains(t, body, "$1,250.00")
	assert.Contains(t, body, "Accepted to college")
	assert.Contains(t, body, "No registrations yet.")

	rec = httptest.NewRecorder()
	h.Show(rec, withID(as(getRequest("/participants/42"), adminID), "42"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestParticipantsAdd(t *testing.T) {
	svc := newStubUsers()
	h := newParticipantsHandler(t, svc)

	rec := httptest.NewRecorder()
	h.Add(rec, as(postForm("/participants/add", url.Values{
		"first_name":    {"Bo"},
		"last_name":     {"Park"},
		"email":         {"bo@example.com"},
		"password":      {"long enough"},
		"date_of_birth": {"2005-04-01"},
	}), adminID))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	require.Len(t, svc.created, 1)
	require.NotNil(t, svc.created[0].DateOfBirth)
	assert.Equal(t, 2005, svc.created[0].DateOfBirth.Year())

	svc.err = users.ErrDuplicateEmail
	rec = httptest.NewRecorder()
	h.Add(rec, as(postForm("/participants/add", url.Values{"first_name": {"Bo"}, "email": {"ann@example.com"}}), adminID))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "An account with this email already exists")
}

func TestParticipantsEdit_RoleOnlyForAdmins(t *testing.T) {
	form := url.Values{
		"first_name": {"Ann"},
		"last_name":  {"Lee"},
		"email":      {"ann@example.com"},
		"role":       {"admin"},
	}

	t.Run("participant", func(t *testing.T) {
		svc := newStubUsers()
		h := newParticipantsHandler(t, svc)
		rec := httptest.NewRecorder()
		h.Edit(rec, withID(as(postForm("/participants/5/edit", form), participantID), "5"))

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "/participants/5", rec.Header().Get("Location"))
		require.Len(t, svc.edits, 1)
		assert.Nil(t, svc.edits[0].Role)
		assert.Nil(t, svc.edits[0].IsActive)
	})

	t.Run("admin", func(t *testing.T) {
		svc := newStubUsers()
		h := newParticipantsHandler(t, svc)
		rec := httptest.NewRecorder()
		h.Edit(rec, withID(as(postForm("/participants/5/edit", form), adminID), "5"))

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		require.Len(t, svc.edits, 1)
		require.NotNil(t, svc.edits[0].Role)
		assert.Equal(t, auth.RoleAdmin, *svc.edits[0].Role)
		require.NotNil(t, svc.edits[0].IsActive)
		assert.False(t, *svc.edits[0].IsActive)
	})
}

func TestParticipantsEditPage_Prefills(t *testing.T) {
	h := newParticipantsHandler(t, newStubUsers())

	rec := httptest.NewRecorder()
	h.EditPage(rec, withID(as(getRequest("/participants/5/edit"), participantID), "5"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `value="555-0100"`)
	assert.NotContains(t, rec.Body.String(), `name="role"`)
}

func TestParticipantsSelfModification(t *testing.T) {
	svc := newStubUsers()
	h := newParticipantsHandler(t, svc)

	rec := httptest.NewRecorder()
	h.Delete(rec, withID(as(postForm("/participants/1/delete", nil), adminID), "1"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Empty(t, svc.deleted)

	rec = httptest.NewRecorder()
	h.Deactivate(rec, withID(as(postForm("/participants/1/deactivate", nil), adminID), "1"))
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = httptest.NewRecorder()
	h.Deactivate(rec, withID(as(postForm("/participants/5/deactivate", nil), adminID), "5"))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, false, svc.activated[5])

	rec = httptest.NewRecorder()
	h.Activate(rec, jsonRequest(withID(as(postForm("/participants/5/activate", nil), adminID), "5")))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":5,"is_active":true}`, rec.Body.String())
	assert.True(t, svc.activated[5])

	rec = httptest.NewRecorder()
	h.Delete(rec, withID(as(postForm("/participants/5/delete", nil), adminID), "5"))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, []int64{5}, svc.deleted)
}
