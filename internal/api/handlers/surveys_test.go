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
	"github.com/outreach-portal/server/internal/domain/events"
	"github.com/outreach-portal/server/internal/domain/surveys"
)

type stubSurveys struct {
	listed    surveys.ListOptions
	submitted []surveys.SubmitRequest
	updates   map[int64]surveys.Answers
	statuses  map[int64]surveys.Status
	deleted   []int64
	err       error
}

func (s *stubSurveys) List(_ context.Context, _ auth.Identity, opts surveys.ListOptions) (surveys.ListResult, error) {
	s.listed = opts
	five := 5
	regs := []surveys.Registration{
		{ID: 4, UserID: 5, FirstName: "Ann", LastName: "Lee", EventTitle: "Résumé clinic",
			EventDate: time.Date(2024, time.May, 2, 0, 0, 0, 0, time.UTC), Status: surveys.StatusNoShow,
			Answers: surveys.Answers{Satisfaction: &five, Comments: "Very helpful"}},
	}
	return surveys.ListResult{Registrations: regs, Total: 1, Page: 1, PageSize: 20}, nil
}

func (s *stubSurveys) Get(_ context.Context, id int64) (*surveys.Registration, error) {
	if id != 4 {
		return nil, surveys.ErrNotFound
	}
	three := 3
	return &surveys.Registration{ID: 4, FirstName: "Ann", LastName: "Lee", EventTitle: "Résumé clinic",
		Status: surveys.StatusAttended, Answers: surveys.Answers{Usefulness: &three}}, nil
}

func (s *stubSurveys) Submit(_ context.Context, _ auth.Identity, req surveys.SubmitRequest) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.submitted = append(s.submitted, req)
	return 12, nil
}

func (s *stubSurveys) Update(_ context.Context, id int64, status surveys.Status, answers surveys.Answers) error {
	if s.updates == nil {
		s.updates = map[int64]surveys.Answers{}
		s.statuses = map[int64]surveys.Status{}
	}
	s.updates[id] = answers
	s.statuses[id] = status
	return nil
}

func (s *stubSurveys) Delete(_ context.Context, id int64) error {
	s.deleted = append(s.deleted, id)
	return nil
}

type eventOptions []events.Instance

func (o eventOptions) Options(context.Context) ([]events.Instance, error) {
	return o, nil
}

var upcoming = eventOptions{workshop}

func TestSurveysList(t *testing.T) {
	svc := &stubSurveys{}
	h := NewSurveysHandler(testPages(t), svc, upcoming)

	rec := httptest.NewRecorder()
	h.List(rec, as(getRequest("/surveys?satisfaction=N%2FA&date=2024-05-02"), adminID))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, surveys.NullRating, svc.listed.Filters.Get("satisfaction"))
	body := rec.Body.String()
	assert.Contains(t, body, `<option value="N/A" selected>`)
	assert.Contains(t, body, "No-show")
	assert.Contains(t, body, "Very helpful")
	assert.Contains(t, body, "/surveys/4/edit")
}

func TestSurveysNewPage_LabelsInstances(t *testing.T) {
	h := NewSurveysHandler(testPages(t), &stubSurveys{}, upcoming)

	rec := httptest.NewRecorder()
	h.NewPage(rec, as(getRequest("/surveys/new"), participantID))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Résumé clinic - 05/02/2024")
	assert.Contains(t, rec.Body.String(), `name="recommendation"`)
}

func TestSurveysSubmit(t *testing.T) {
	svc := &stubSurveys{}
	h := NewSurveysHandler(testPages(t), svc, upcoming)

	rec := httptest.NewRecorder()
	h.Submit(rec, as(postForm("/surveys", url.Values{
		"event_id":     {"11"},
		"satisfaction": {"4"},
		"usefulness":   {""},
		"comments":     {"More sessions please"},
		"milestones":   {"Started an internship"},
	}), participantID))

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/surveys", rec.Header().Get("Location"))
	require.Len(t, svc.submitted, 1)
	got := svc.submitted[0]
	assert.Equal(t, int64(11), got.EventInstanceID)
	require.NotNil(t, got.Satisfaction)
	assert.Equal(t, 4, *got.Satisfaction)
	assert.Nil(t, got.Usefulness)
	assert.Equal(t, "Started an internship", got.Milestone)
}

func TestSurveysSubmit_Rejected(t *testing.T) {
	svc := &stubSurveys{}
	h := NewSurveysHandler(testPages(t), svc, upcoming)

	rec := httptest.NewRecorder()
	h.Submit(rec, as(postForm("/surveys", url.Values{"event_id": {"11"}, "satisfaction": {"great"}}), participantID))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Must be a whole number")
	assert.Contains(t, rec.Body.String(), `<option value="11" selected>`)
	assert.Empty(t, svc.submitted)

	svc.err = surveys.ErrNotFound
	rec = httptest.NewRecorder()
	h.Submit(rec, jsonRequest(as(postForm("/surveys", url.Values{"event_id": {"11"}}), participantID)))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSurveysEdit(t *testing.T) {
	svc := &stubSurveys{}
	h := NewSurveysHandler(testPages(t), svc, upcoming)

	rec := httptest.NewRecorder()
	h.EditPage(rec, withID(as(getRequest("/surveys/4/edit"), adminID), "4"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `<option value="attended" selected>`)
	assert.Contains(t, rec.Body.String(), `<option value="3" selected>`)

	rec = httptest.NewRecorder()
	h.Edit(rec, withID(as(postForm("/surveys/4/edit", url.Values{"status": {"cancelled"}, "instructor": {"2"}}), adminID), "4"))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, surveys.StatusCancelled, svc.statuses[4])
	require.NotNil(t, svc.updates[4].Instructor)
	assert.Equal(t, 2, *svc.updates[4].Instructor)

	rec = httptest.NewRecorder()
	h.Edit(rec, withID(as(postForm("/surveys/9/edit", url.Values{"status": {"attended"}}), adminID), "9"))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	h.Delete(rec, withID(as(postForm("/surveys/4/delete", nil), adminID), "4"))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, []int64{4}, svc.deleted)
}
