package handlers

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/outreach-portal/server/internal/api/middleware"
	"github.com/outreach-portal/server/internal/api/pagination"
	"github.com/outreach-portal/server/internal/api/render"
	"github.com/outreach-portal/server/internal/auth"
	"github.com/outreach-portal/server/internal/domain/events"
	"github.com/outreach-portal/server/internal/domain/surveys"
	"github.com/outreach-portal/server/internal/validation"
)

type SurveyService interface {
	List(ctx context.Context, actor auth.Identity, opts surveys.ListOptions) (surveys.ListResult, error)
	Get(ctx context.Context, id int64) (*surveys.Registration, error)
	Submit(ctx context.Context, actor auth.Identity, req surveys.SubmitRequest) (int64, error)
	Update(ctx context.Context, id int64, status surveys.Status, answers surveys.Answers) error
	Delete(ctx context.Context, id int64) error
}

// EventOptions lists the instances a survey can be about.
type EventOptions interface {
	Options(ctx context.Context) ([]events.Instance, error)
}

type SurveysHandler struct {
	*Pages
	service SurveyService
	events  EventOptions
}

func NewSurveysHandler(pages *Pages, service SurveyService, options EventOptions) *SurveysHandler {
	return &SurveysHandler{Pages: pages, service: service, events: options}
}

var ratingChoices = []string{"1", "2", "3", "4", "5"}

// List handles GET /surveys. Filters: search, date, satisfaction (1-5 or
// N/A).
func (h *SurveysHandler) List(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.List(r.Context(), actor(r), surveys.ListOptions{
		Filters: filters(r),
		Page:    pagination.ParsePage(r),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if middleware.WantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]any{"surveys": result.Registrations, "total": result.Total, "page": result.Page})
		return
	}
	q := r.URL.Query()
	page := h.page(r, "Surveys", "surveys")
	page.Data["Registrations"] = result.Registrations
	page.Data["Search"] = q.Get("search")
	page.Data["Date"] = q.Get("date")
	page.Data["Satisfaction"] = q.Get("satisfaction")
	page.Data["Ratings"] = append(append([]string{}, ratingChoices...), surveys.NullRating)
	page.Data["Page"] = pagination.New(r, result.Page, result.PageSize, result.Total)
	h.html(w, r, http.StatusOK, "surveys.html", page)
}

func (h *SurveysHandler) newPage(w http.ResponseWriter, r *http.Request) (render.Page, bool) {
	options, err := h.events.Options(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return render.Page{}, false
	}
	page := h.page(r, "Submit a survey", "surveys")
	page.Data["Events"] = options
	page.Data["Ratings"] = ratingChoices
	return page, true
}

func answersForm(errs validation.Errors, r *http.Request) surveys.Answers {
	return surveys.Answers{
		Satisfaction:   formOptionalInt(errs, r, "satisfaction"),
		Usefulness:     formOptionalInt(errs, r, "usefulness"),
		Instructor:     formOptionalInt(errs, r, "instructor"),
		Recommendation: formOptionalInt(errs, r, "recommendation"),
		Comments:       formString(r, "comments"),
	}
}

// NewPage handles GET /surveys/new.
func (h *SurveysHandler) NewPage(w http.ResponseWriter, r *http.Request) {
	page, ok := h.newPage(w, r)
	if !ok {
		return
	}
	h.html(w, r, http.StatusOK, "survey_new.html", page)
}

// Submit handles POST /surveys: the signed-in user's answers for one event,
// with optional milestone text.
func (h *SurveysHandler) Submit(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r, h.Pages) {
		return
	}
	page, ok := h.newPage(w, r)
	if !ok {
		return
	}
	errs := validation.Errors{}
	req := surveys.SubmitRequest{
		EventInstanceID: formInt64(errs, r, "event_id"),
		Answers:         answersForm(errs, r),
		Milestone:       formString(r, "milestones"),
	}
	if err := errs.Err(); err != nil {
		h.formPage(w, r, http.StatusBadRequest, "survey_new.html", page, errs)
		return
	}

	id, err := h.service.Submit(r.Context(), actor(r), req)
	if err != nil {
		h.rejectForm(w, r, err, "survey_new.html", page)
		return
	}
	done(w, r, "/surveys", map[string]any{"registration_id": id})
}

func registrationValues(reg *surveys.Registration) url.Values {
	v := url.Values{}
	v.Set("status", string(reg.Status))
	set := func(field string, n *int) {
		if n != nil {
			v.Set(field, strconv.Itoa(*n))
		}
	}
	set("satisfaction", reg.Satisfaction)
	set("usefulness", reg.Usefulness)
	set("instructor", reg.Instructor)
	set("recommendation", reg.Recommendation)
	v.Set("comments", reg.Comments)
	return v
}

func (h *SurveysHandler) editorPage(r *http.Request, reg *surveys.Registration) render.Page {
	page := h.page(r, "Edit survey", "surveys")
	page.Data["Registration"] = reg
	page.Data["Statuses"] = surveys.Statuses
	page.Data["Ratings"] = ratingChoices
	page.Form = registrationValues(reg)
	return page
}

// EditPage handles GET /surveys/{id}/edit.
func (h *SurveysHandler) EditPage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.notFound(w, r)
		return
	}
	reg, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.html(w, r, http.StatusOK, "survey_form.html", h.editorPage(r, reg))
}

// Edit handles POST /surveys/{id}/edit.
func (h *SurveysHandler) Edit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.notFound(w, r)
		return
	}
	reg, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !parseForm(w, r, h.Pages) {
		return
	}
	page := h.editorPage(r, reg)
	errs := validation.Errors{}
	answers := answersForm(errs, r)
	status := surveys.Status(formString(r, "status"))
	if err := errs.Err(); err != nil {
		h.formPage(w, r, http.StatusBadRequest, "survey_form.html", page, errs)
		return
	}

	err = h.service.Update(r.Context(), id, status, answers)
	h.record(r, "survey.update", "registration", id, err)
	if err != nil {
		h.rejectForm(w, r, err, "survey_form.html", page)
		return
	}
	done(w, r, "/surveys", map[string]any{"registration_id": id})
}

// Delete handles POST /surveys/{id}/delete. Milestones are kept.
func (h *SurveysHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.notFound(w, r)
		return
	}
	err := h.service.Delete(r.Context(), id)
	h.record(r, "survey.delete", "registration", id, err)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	done(w, r, "/surveys", map[string]any{"deleted": id})
}
