package handlers

import (
	"context"
	"net/http"

	"github.com/outreach-portal/server/internal/api/middleware"
	"github.com/outreach-portal/server/internal/api/pagination"
	"github.com/outreach-portal/server/internal/api/render"
	"github.com/outreach-portal/server/internal/auth"
	"github.com/outreach-portal/server/internal/domain/milestones"
	"github.com/outreach-portal/server/internal/validation"
)

type MilestoneService interface {
	List(ctx context.Context, actor auth.Identity, opts milestones.ListOptions) (milestones.ListResult, error)
	Create(ctx context.Context, p milestones.Params) (int64, error)
	Delete(ctx context.Context, id int64) error
}

type MilestonesHandler struct {
	*Pages
	service MilestoneService
	users   UserPicker
}

func NewMilestonesHandler(pages *Pages, service MilestoneService, picker UserPicker) *MilestonesHandler {
	return &MilestonesHandler{Pages: pages, service: service, users: picker}
}

// List handles GET /milestones.
func (h *MilestonesHandler) List(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.List(r.Context(), actor(r), milestones.ListOptions{
		Filters: filters(r),
		Page:    pagination.ParsePage(r),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if middleware.WantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]any{"milestones": result.Milestones, "total": result.Total, "page": result.Page})
		return
	}
	page := h.page(r, "Milestones", "milestones")
	page.Data["Milestones"] = result.Milestones
	page.Data["Search"] = r.URL.Query().Get("search")
	page.Data["Page"] = pagination.New(r, result.Page, result.PageSize, result.Total)
	h.html(w, r, http.StatusOK, "milestones.html", page)
}

func (h *MilestonesHandler) editorPage(w http.ResponseWriter, r *http.Request) (render.Page, bool) {
	owners, err := h.users.ListAll(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return render.Page{}, false
	}
	page := h.page(r, "Add milestone", "milestones")
	page.Data["Owners"] = owners
	return page, true
}

// AddPage handles GET /milestones/add.
func (h *MilestonesHandler) AddPage(w http.ResponseWriter, r *http.Request) {
	page, ok := h.editorPage(w, r)
	if !ok {
		return
	}
	h.html(w, r, http.StatusOK, "milestone_form.html", page)
}

// Add handles POST /milestones/add. A blank date means today.
func (h *MilestonesHandler) Add(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r, h.Pages) {
		return
	}
	page, ok := h.editorPage(w, r)
	if !ok {
		return
	}
	errs := validation.Errors{}
	params := milestones.Params{
		UserID: formInt64(errs, r, "user_id"),
		Title:  formString(r, "title"),
	}
	if date := validation.OptionalDate(errs, "milestone_date", r.PostFormValue("milestone_date")); date != nil {
		params.Date = *date
	}
	if err := errs.Err(); err != nil {
		h.formPage(w, r, http.StatusBadRequest, "milestone_form.html", page, errs)
		return
	}

	id, err := h.service.Create(r.Context(), params)
	h.record(r, "milestone.create", "milestone", id, err)
	if err != nil {
		h.rejectForm(w, r, err, "milestone_form.html", page)
		return
	}
	done(w, r, "/milestones", map[string]any{"milestone_id": id})
}

// Delete handles POST /milestones/{id}/delete.
func (h *MilestonesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.notFound(w, r)
		return
	}
	err := h.service.Delete(r.Context(), id)
	h.record(r, "milestone.delete", "milestone", id, err)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	done(w, r, "/milestones", map[string]any{"deleted": id})
}
