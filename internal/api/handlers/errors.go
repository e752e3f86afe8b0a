package handlers

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/outreach-portal/server/internal/api/middleware"
	"github.com/outreach-portal/server/internal/api/problem"
	"github.com/outreach-portal/server/internal/domain/donations"
	"github.com/outreach-portal/server/internal/domain/events"
	"github.com/outreach-portal/server/internal/domain/milestones"
	"github.com/outreach-portal/server/internal/domain/surveys"
	"github.com/outreach-portal/server/internal/domain/users"
	"github.com/outreach-portal/server/internal/validation"
)

// failure is how an error class is presented to the caller.
type failure struct {
	status  int
	typ     string
	title   string
	message string
}

var errNotFound = errors.New("not found")

var notFoundFailure = failure{http.StatusNotFound, problem.TypeNotFound, "Not found", "The page you asked for does not exist."}

// classify maps domain errors onto the response taxonomy. Anything it does
// not recognise is a store failure.
func classify(err error) failure {
	if _, ok := validation.AsErrors(err); ok {
		return failure{http.StatusBadRequest, problem.TypeValidation, "Validation failed", "Please correct the highlighted fields."}
	}
	switch {
	case errors.Is(err, users.ErrInvalidCredentials):
		return failure{http.StatusUnauthorized, problem.TypeUnauthorized, "Invalid email or password", "Invalid email or password."}
	case errors.Is(err, users.ErrAccountDeactivated):
		return failure{http.StatusForbidden, problem.TypeDeactivated, "Account deactivated", "Your account has been deactivated. Contact an administrator."}
	case errors.Is(err, problem.ErrForbidden):
		return failure{http.StatusForbidden, problem.TypeForbidden, "Forbidden", "You do not have permission to view this page."}
	case errors.Is(err, users.ErrSelfModification):
		return failure{http.StatusConflict, problem.TypeConflict, "Conflict", "Administrators cannot remove or deactivate their own account."}
	case errors.Is(err, users.ErrDuplicateEmail):
		return failure{http.StatusConflict, problem.TypeConflict, "Conflict", "An account with this email already exists."}
	case errors.Is(err, errNotFound),
		errors.Is(err, users.ErrUserNotFound),
		errors.Is(err, events.ErrNotFound),
		errors.Is(err, events.ErrMasterNotFound),
		errors.Is(err, donations.ErrNotFound),
		errors.Is(err, surveys.ErrNotFound),
		errors.Is(err, milestones.ErrNotFound):
		return notFoundFailure
	}
	return failure{http.StatusInternalServerError, problem.TypeServerError, "Server error", "Something went wrong. Please try again later."}
}

// fail writes err as a problem for JSON callers or as the error page.
func (p *Pages) fail(w http.ResponseWriter, r *http.Request, err error) {
	f := classify(err)

	if middleware.WantsJSON(r) {
		var opts []problem.Option
		if errs, ok := validation.AsErrors(err); ok {
			opts = append(opts, problem.WithErrors(errs))
		}
		problem.Write(w, r, f.status, f.typ, f.title, err, p.Env, opts...)
		return
	}

	logger := zerolog.Ctx(r.Context())
	if f.status >= http.StatusInternalServerError {
		logger.Error().Err(err).Str("path", r.URL.Path).Str("method", r.Method).Msg("request failed")
	} else {
		logger.Warn().Err(err).Int("status", f.status).Str("path", r.URL.Path).Msg(f.title)
	}

	page := p.page(r, f.title, "")
	page.Data["Status"] = f.status
	page.Data["Message"] = f.message
	if errs, ok := validation.AsErrors(err); ok {
		page.Errors = errs
	}
	p.html(w, r, f.status, "error.html", page)
}

func (p *Pages) notFound(w http.ResponseWriter, r *http.Request) {
	p.fail(w, r, errNotFound)
}

// NotFound renders the 404 page for unmatched routes.
func (p *Pages) NotFound() http.Handler {
	return http.HandlerFunc(p.notFound)
}
