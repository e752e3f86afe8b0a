package handlers

import (
	"context"
	"net/http"
	"net/url"

	"github.com/outreach-portal/server/internal/api/middleware"
	"github.com/outreach-portal/server/internal/api/pagination"
	"github.com/outreach-portal/server/internal/api/render"
	"github.com/outreach-portal/server/internal/auth"
	"github.com/outreach-portal/server/internal/domain/donations"
	"github.com/outreach-portal/server/internal/domain/milestones"
	"github.com/outreach-portal/server/internal/domain/surveys"
	"github.com/outreach-portal/server/internal/domain/users"
	"github.com/outreach-portal/server/internal/validation"
)

type UserService interface {
	ListUsers(ctx context.Context, opts users.ListOptions) (users.ListResult, error)
	GetUser(ctx context.Context, id int64) (*users.User, error)
	CreateUser(ctx context.Context, profile users.Profile, password string, role auth.Role) (*users.User, error)
	UpdateUser(ctx context.Context, actor auth.Identity, id int64, req users.EditRequest) (*users.User, error)
	SetActive(ctx context.Context, actor auth.Identity, id int64, active bool) error
	DeleteUser(ctx context.Context, actor auth.Identity, id int64) error
}

type donationLister interface {
	List(ctx context.Context, actor auth.Identity, opts donations.ListOptions) (donations.ListResult, error)
}

type surveyLister interface {
	List(ctx context.Context, actor auth.Identity, opts surveys.ListOptions) (surveys.ListResult, error)
}

type milestoneLister interface {
	List(ctx context.Context, actor auth.Identity, opts milestones.ListOptions) (milestones.ListResult, error)
}

// ParticipantsHandler serves the participant records.
type ParticipantsHandler struct {
	*Pages
	users      UserService
	donations  donationLister
	surveys    surveyLister
	milestones milestoneLister
}

func NewParticipantsHandler(pages *Pages, userService UserService, d donationLister, s surveyLister, m milestoneLister) *ParticipantsHandler {
	return &ParticipantsHandler{Pages: pages, users: userService, donations: d, surveys: s, milestones: m}
}

// List handles GET /participants. Administrators search every account;
// anyone else sees only their own row.
func (h *ParticipantsHandler) List(w http.ResponseWriter, r *http.Request) {
	id := actor(r)
	var result users.ListResult
	if id.IsAdmin() {
		var err error
		result, err = h.users.ListUsers(r.Context(), users.ListOptions{
			Filters: filters(r),
			Page:    pagination.ParsePage(r),
		})
		if err != nil {
			h.fail(w, r, err)
			return
		}
	} else {
		self, err := h.users.GetUser(r.Context(), id.UserID)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		result = users.ListResult{Users: []users.User{*self}, Total: 1, Page: 1, PageSize: users.PageSize}
	}

	if middleware.WantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]any{"participants": result.Users, "total": result.Total, "page": result.Page})
		return
	}
	page := h.page(r, "Participants", "participants")
	page.Data["Users"] = result.Users
	page.Data["Page"] = pagination.New(r, result.Page, result.PageSize, result.Total)
	page.Data["Search"] = r.URL.Query().Get("search")
	h.html(w, r, http.StatusOK, "participants.html", page)
}

// Show handles GET /participants/{id}: the profile with the participant's
// donations, surveys and milestones.
func (h *ParticipantsHandler) Show(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.notFound(w, r)
		return
	}
	ctx := r.Context()
	user, err := h.users.GetUser(ctx, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	d, err := h.donations.List(ctx, actor(r), donations.ListOptions{OwnerID: id, Page: 1})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	s, err := h.surveys.List(ctx, actor(r), surveys.ListOptions{OwnerID: id, Page: 1})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	m, err := h.milestones.List(ctx, actor(r), milestones.ListOptions{OwnerID: id, Page: 1})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if middleware.WantsJSON(r) {
		writeJSON(w, http.StatusOK, map[string]any{
			"participant":   user,
			"donations":     d.Donations,
			"registrations": s.Registrations,
			"milestones":    m.Milestones,
		})
		return
	}
	page := h.page(r, user.FirstName+" "+user.LastName, "participants")
	page.Data["User"] = user
	page.Data["Donations"] = d.Donations
	page.Data["Registrations"] = s.Registrations
	page.Data["Milestones"] = m.Milestones
	h.html(w, r, http.StatusOK, "participant.html", page)
}

func profileForm(errs validation.Errors, r *http.Request) users.Profile {
	return users.Profile{
		FirstName:        formString(r, "first_name"),
		LastName:         formString(r, "last_name"),
		Email:            formString(r, "email"),
		Phone:            formString(r, "phone"),
		SchoolOrEmployer: formString(r, "school_or_employer"),
		FieldOfInterest:  formString(r, "field_of_interest"),
		DateOfBirth:      validation.OptionalDate(errs, "date_of_birth", r.PostFormValue("date_of_birth")),
	}
}

// userValues pre-fills the edit form.
func userValues(u *users.User) url.Values {
	v := url.Values{}
	v.Set("first_name", u.FirstName)
	v.Set("last_name", u.LastName)
	v.Set("email", u.Email)
	v.Set("phone", u.Phone)
	v.Set("school_or_employer", u.SchoolOrEmployer)
	v.Set("field_of_interest", u.FieldOfInterest)
	if u.DateOfBirth != nil {
		v.Set("date_of_birth", u.DateOfBirth.Format("2006-01-02"))
	}
	v.Set("role", string(u.Role))
	if u.IsActive {
		v.Set("is_active", "on")
	}
	return v
}

func (h *ParticipantsHandler) editorPage(r *http.Request, title string, user *users.User) render.Page {
	page := h.page(r, title, "participants")
	page.Data["Roles"] = []auth.Role{auth.RoleUser, auth.RoleAdmin}
	if user != nil {
		page.Data["User"] = user
		page.Form = userValues(user)
	}
	return page
}

// AddPage handles GET /participants/add.
func (h *ParticipantsHandler) AddPage(w http.ResponseWriter, r *http.Request) {
	h.html(w, r, http.StatusOK, "participant_form.html", h.editorPage(r, "Add participant", nil))
}

// Add handles POST /participants/add.
func (h *ParticipantsHandler) Add(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r, h.Pages) {
		return
	}
	errs := validation.Errors{}
	profile := profileForm(errs, r)
	role := auth.Role(formString(r, "role"))
	if role == "" {
		role = auth.RoleUser
	}
	if err := errs.Err(); err != nil {
		h.formPage(w, r, http.StatusBadRequest, "participant_form.html", h.editorPage(r, "Add participant", nil), errs)
		return
	}

	user, err := h.users.CreateUser(r.Context(), profile, r.PostFormValue("password"), role)
	h.record(r, "participant.create", "user", userID(user), err)
	if err != nil {
		h.rejectForm(w, r, err, "participant_form.html", h.editorPage(r, "Add participant", nil))
		return
	}
	done(w, r, "/participants", map[string]any{"participant": user})
}

// EditPage handles GET /participants/{id}/edit.
func (h *ParticipantsHandler) EditPage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.notFound(w, r)
		return
	}
	user, err := h.users.GetUser(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.html(w, r, http.StatusOK, "participant_form.html", h.editorPage(r, "Edit participant", user))
}

// Edit handles POST /participants/{id}/edit. Role and active status are only
// read from the form for administrators.
func (h *ParticipantsHandler) Edit(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.notFound(w, r)
		return
	}
	user, err := h.users.GetUser(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !parseForm(w, r, h.Pages) {
		return
	}

	errs := validation.Errors{}
	req := users.EditRequest{
		Profile:  profileForm(errs, r),
		Password: r.PostFormValue("password"),
	}
	who := actor(r)
	if who.IsAdmin() {
		if raw := formString(r, "role"); raw != "" {
			role := auth.Role(raw)
			req.Role = &role
		}
		active := r.PostFormValue("is_active") != ""
		req.IsActive = &active
	}
	if err := errs.Err(); err != nil {
		h.formPage(w, r, http.StatusBadRequest, "participant_form.html", h.editorPage(r, "Edit participant", user), errs)
		return
	}

	updated, err := h.users.UpdateUser(r.Context(), who, id, req)
	if who.IsAdmin() {
		h.record(r, "participant.update", "user", id, err)
	}
	if err != nil {
		h.rejectForm(w, r, err, "participant_form.html", h.editorPage(r, "Edit participant", user))
		return
	}
	done(w, r, "/participants/"+r.PathValue("id"), map[string]any{"participant": updated})
}

// Delete handles POST /participants/{id}/delete.
func (h *ParticipantsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		h.notFound(w, r)
		return
	}
	err := h.users.DeleteUser(r.Context(), actor(r), id)
	h.record(r, "participant.delete", "user", id, err)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	done(w, r, "/participants", map[string]any{"deleted": id})
}

// Deactivate handles POST /participants/{id}/deactivate.
func (h *ParticipantsHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

// Activate handles POST /participants/{id}/activate.
func (h *ParticipantsHandler) Activate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *ParticipantsHandler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	id, ok := pathID(r)
	if !ok {
		h.notFound(w, r)
		return
	}
	action := "participant.deactivate"
	if active {
		action = "participant.activate"
	}
	err := h.users.SetActive(r.Context(), actor(r), id, active)
	h.record(r, action, "user", id, err)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	done(w, r, "/participants", map[string]any{"id": id, "is_active": active})
}

func userID(u *users.User) int64 {
	if u == nil {
		return 0
	}
	return u.ID
}
