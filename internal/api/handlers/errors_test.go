package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outreach-portal/server/internal/api/problem"
	"github.com/outreach-portal/server/internal/domain/donations"
	"github.com/outreach-portal/server/internal/domain/events"
	"github.com/outreach-portal/server/internal/domain/milestones"
	"github.com/outreach-portal/server/internal/domain/surveys"
	"github.com/outreach-portal/server/internal/domain/users"
	"github.com/outreach-portal/server/internal/validation"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		typ    string
	}{
		{"validation", validation.Field("amount", "Must be a number"), http.StatusBadRequest, problem.TypeValidation},
		{"invalid credentials", users.ErrInvalidCredentials, http.StatusUnauthorized, problem.TypeUnauthorized},
		{"deactivated", users.ErrAccountDeactivated, http.StatusForbidden, problem.TypeDeactivated},
		{"forbidden", problem.ErrForbidden, http.StatusForbidden, problem.TypeForbidden},
		{"self modification", users.ErrSelfModification, http.StatusConflict, problem.TypeConflict},
		{"duplicate email", fmt.Errorf("create: %w", users.ErrDuplicateEmail), http.StatusConflict, problem.TypeConflict},
		{"user not found", users.ErrUserNotFound, http.StatusNotFound, problem.TypeNotFound},
		{"event not found", events.ErrNotFound, http.StatusNotFound, problem.TypeNotFound},
		{"donation not found", donations.ErrNotFound, http.StatusNotFound, problem.TypeNotFound},
		{"registration not found", fmt.Errorf("get: %w", surveys.ErrNotFound), http.StatusNotFound, problem.TypeNotFound},
		{"milestone not found", milestones.ErrNotFound, http.StatusNotFound, problem.TypeNotFound},
		{"store failure", errors.New("connection refused"), http.StatusInternalServerError, problem.TypeServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := classify(tt.err)
			assert.Equal(t, tt.status, f.status)
			assert.Equal(t, tt.typ, f.typ)
			assert.NotEmpty(t, f.message)
		})
	}
}

func TestFail_HTML(t *testing.T) {
	p := testPages(t)

	rec := httptest.NewRecorder()
	p.fail(rec, as(getRequest("/donations/3/edit"), adminID), donations.ErrNotFound)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "does not exist")

	rec = httptest.NewRecorder()
	p.fail(rec, as(getRequest("/events"), adminID), errors.New("pq: relation missing"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "relation missing")
}

func TestFail_JSONValidation(t *testing.T) {
	p := testPages(t)
	errs := validation.Errors{}
	errs.Add("amount", "Must be a number")

	rec := httptest.NewRecorder()
	p.fail(rec, jsonRequest(getRequest("/donations/add")), errs)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	var body problem.ProblemDetails
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, problem.TypeValidation, body.Type)
	assert.Equal(t, "Must be a number", body.Errors["amount"])
	assert.Equal(t, "/donations/add", body.Instance)
}

func TestNotFound_XHR(t *testing.T) {
	p := testPages(t)
	req := getRequest("/events/x/edit")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")

	rec := httptest.NewRecorder()
	p.notFound(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), problem.TypeNotFound)
}
