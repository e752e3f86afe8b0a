// Package handlers implements the portal's pages. Handlers accept narrow
// service interfaces, render HTML through render.Renderer and answer JSON
// callers with problem details.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/csrf"
	"github.com/rs/zerolog"

	"github.com/outreach-portal/server/internal/api/middleware"
	"github.com/outreach-portal/server/internal/api/render"
	"github.com/outreach-portal/server/internal/audit"
	"github.com/outreach-portal/server/internal/auth"
	"github.com/outreach-portal/server/internal/domain/users"
	"github.com/outreach-portal/server/internal/validation"
)

// Pages is shared by every handler: it renders views and maps errors to
// responses.
type Pages struct {
	Renderer  *render.Renderer
	Validator *validation.Validator
	Audit     *audit.Logger
	Env       string
}

func NewPages(renderer *render.Renderer, auditLog *audit.Logger, env string) *Pages {
	return &Pages{Renderer: renderer, Validator: validation.New(), Audit: auditLog, Env: env}
}

// record writes the audit entry for an administrative change.
func (p *Pages) record(r *http.Request, action, resourceType string, id int64, err error) {
	if p.Audit == nil {
		return
	}
	status := audit.StatusSuccess
	var details map[string]string
	if err != nil {
		status = audit.StatusFailure
		details = map[string]string{"error": err.Error()}
	}
	resourceID := ""
	if id > 0 {
		resourceID = strconv.FormatInt(id, 10)
	}
	p.Audit.LogFromRequest(r, action, resourceType, resourceID, status, details)
}

// page starts the template data for r: identity for the nav and the CSRF
// field for forms.
func (p *Pages) page(r *http.Request, title, active string) render.Page {
	id, ok := auth.IdentityFromContext(r.Context())
	return render.Page{
		Title:     title,
		Active:    active,
		Identity:  id,
		LoggedIn:  ok,
		CSRFField: csrf.TemplateField(r),
		Data:      map[string]any{},
	}
}

func (p *Pages) html(w http.ResponseWriter, r *http.Request, status int, name string, page render.Page) {
	if err := p.Renderer.HTML(w, status, name, page); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Str("template", name).Msg("template error")
		http.Error(w, "Template error", http.StatusInternalServerError)
	}
}

// formPage re-renders a form with the submitted values and field messages.
func (p *Pages) formPage(w http.ResponseWriter, r *http.Request, status int, name string, page render.Page, errs validation.Errors) {
	if middleware.WantsJSON(r) {
		p.fail(w, r, errs)
		return
	}
	page.Form = r.PostForm
	page.Errors = errs
	p.html(w, r, status, name, page)
}

// rejectForm answers a failed form submission: validation problems and a
// taken email re-render the form, anything else goes through fail.
func (p *Pages) rejectForm(w http.ResponseWriter, r *http.Request, err error, name string, page render.Page) {
	if errs, ok := validation.AsErrors(err); ok {
		p.formPage(w, r, http.StatusBadRequest, name, page, errs)
		return
	}
	if errors.Is(err, users.ErrDuplicateEmail) && !middleware.WantsJSON(r) {
		p.formPage(w, r, http.StatusConflict, name, page, validation.Errors{"email": "An account with this email already exists"})
		return
	}
	p.fail(w, r, err)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// done answers a successful form post: JSON callers get payload, browsers
// are sent to location.
func done(w http.ResponseWriter, r *http.Request, location string, payload any) {
	if middleware.WantsJSON(r) {
		writeJSON(w, http.StatusOK, payload)
		return
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

func actor(r *http.Request) auth.Identity {
	id, _ := auth.IdentityFromContext(r.Context())
	return id
}

// pathID parses the numeric {id} path value. Anything else is a 404.
func pathID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func filters(r *http.Request) url.Values {
	return r.URL.Query()
}

func formString(r *http.Request, field string) string {
	return strings.TrimSpace(r.PostFormValue(field))
}

// formInt64 reads an optional positive integer field. Bad input is recorded
// on errs.
func formInt64(errs validation.Errors, r *http.Request, field string) int64 {
	raw := formString(r, field)
	if raw == "" {
		return 0
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		errs.Add(field, "Must be a whole number")
		return 0
	}
	return n
}

// formOptionalInt reads a field that may be left blank.
func formOptionalInt(errs validation.Errors, r *http.Request, field string) *int {
	raw := formString(r, field)
	if raw == "" {
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		errs.Add(field, "Must be a whole number")
		return nil
	}
	return &n
}

func parseForm(w http.ResponseWriter, r *http.Request, p *Pages) bool {
	if err := r.ParseForm(); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return false
		}
		p.fail(w, r, validation.Field("form", "Could not read the submitted form"))
		return false
	}
	return true
}
