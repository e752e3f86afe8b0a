package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/outreach-portal/server/internal/auth"
)

func asUser(r *http.Request, id auth.Identity) *http.Request {
	return r.WithContext(auth.WithIdentity(r.Context(), id))
}

var (
	participant = auth.Identity{UserID: 5, Email: "ann@example.com", Role: auth.RoleUser}
	admin       = auth.Identity{UserID: 1, Email: "root@example.com", Role: auth.RoleAdmin}
)

func TestRequireAuth(t *testing.T) {
	handler := RequireAuth(okHandler())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, LoginPath, rec.Header().Get("Location"))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodGet, "/dashboard", nil), participant))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAdmin(t *testing.T) {
	handler := RequireAdmin(okHandler())

	t.Run("anonymous redirects", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users", nil))
		assert.Equal(t, http.StatusFound, rec.Code)
	})

	t.Run("participant gets html 403", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodGet, "/users", nil), participant))
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
		assert.Empty(t, rec.Header().Get("Location"))
	})

	t.Run("participant gets json 403", func(t *testing.T) {
		req := asUser(httptest.NewRequest(http.MethodPost, "/users/9/delete", nil), participant)
		req.Header.Set("X-Requested-With", "XMLHttpRequest")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Type"), "application/problem+json")
		assert.True(t, strings.Contains(rec.Body.String(), "/problems/forbidden"))
	})

	t.Run("admin passes", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, asUser(httptest.NewRequest(http.MethodGet, "/users", nil), admin))
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestRequireSelfOrAdmin(t *testing.T) {
	handler := RequireSelfOrAdmin("id")(okHandler())

	tests := []struct {
		name   string
		id     *auth.Identity
		target string
		want   int
	}{
		{"anonymous", nil, "5", http.StatusFound},
		{"own record", &participant, "5", http.StatusOK},
		{"other record", &participant, "6", http.StatusForbidden},
		{"non-numeric", &participant, "five", http.StatusForbidden},
		{"missing", &participant, "", http.StatusForbidden},
		{"admin on other", &admin, "6", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/users/x/edit", nil)
			req.SetPathValue("id", tt.target)
			if tt.id != nil {
				req = asUser(req, *tt.id)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
