package render

import (
	"html/template"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/outreach-portal/server/internal/api/pagination"
	"github.com/outreach-portal/server/internal/auth"
)

func TestNew_ParsesEveryPage(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	for _, name := range []string{
		"index.html", "login.html", "register.html", "dashboard.html", "error.html",
		"participants.html", "participant.html", "participant_form.html",
		"events.html", "event_form.html",
		"donations.html", "donation_form.html",
		"surveys.html", "survey_new.html", "survey_form.html",
		"milestones.html", "milestone_form.html",
	} {
		assert.True(t, r.Has(name), name)
	}
	assert.False(t, r.Has("layout.html"))
}

func TestHTML_LoginRerender(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	page := Page{
		Title:     "Log in",
		Active:    "login",
		CSRFField: template.HTML(`<input type="hidden" name="gorilla.csrf.Token" value="tok">`),
		Flash:     "Invalid email or password",
		Errors:    map[string]string{"email": "Must be a valid email address"},
		Form:      url.Values{"email": {"ann<script>@example.com"}},
	}
	require.NoError(t, r.HTML(rec, http.StatusUnauthorized, "login.html", page))

	body := rec.Body.String()
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, body, `name="gorilla.csrf.Token" value="tok"`)
	assert.Contains(t, body, "Invalid email or password")
	assert.Contains(t, body, "Must be a valid email address")
	assert.Contains(t, body, "ann&lt;script&gt;@example.com")
	assert.NotContains(t, body, "ann<script>")
	assert.Contains(t, body, "<title>Log in - Outreach Portal</title>")
	assert.NotContains(t, body, "Log out")
}

func TestHTML_NavigationFollowsRole(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	render := func(role auth.Role) string {
		rec := httptest.NewRecorder()
		page := Page{
			Title:    "Events",
			Active:   "events",
			LoggedIn: true,
			Identity: auth.Identity{UserID: 3, FirstName: "Ann", LastName: "Lee", Role: role},
			Data: map[string]any{
				"Events":     nil,
				"Categories": []string{"Workshop"},
				"Search":     "",
				"Category":   "Workshop",
				"Page":       pagination.Page{Number: 1, Size: 20},
			},
		}
		require.NoError(t, r.HTML(rec, http.StatusOK, "events.html", page))
		return rec.Body.String()
	}

	participant := render(auth.RoleUser)
	assert.Contains(t, participant, "My profile")
	assert.Contains(t, participant, "Ann Lee")
	assert.Contains(t, participant, "No events found.")
	assert.Contains(t, participant, `<option value="Workshop" selected>`)
	assert.NotContains(t, participant, "/events/add")

	admin := render(auth.RoleAdmin)
	assert.Contains(t, admin, "/events/add")
	assert.Contains(t, admin, ">Participants</a>")
}

func TestHTML_UnknownPage(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	err = r.HTML(rec, http.StatusOK, "missing.html", Page{})
	require.Error(t, err)
	assert.Zero(t, rec.Body.Len())
}

func TestHTML_FailedRenderWritesNothing(t *testing.T) {
	r, err := New()
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	page := Page{LoggedIn: true, Data: map[string]any{"Stats": "not stats"}}
	require.Error(t, r.HTML(rec, http.StatusOK, "dashboard.html", page))
	assert.Zero(t, rec.Body.Len())
	assert.Empty(t, rec.Header().Get("Content-Type"))
}

func TestFuncs(t *testing.T) {
	day := time.Date(2024, time.March, 7, 14, 5, 0, 0, time.UTC)
	five := 5

	assert.Equal(t, "03/07/2024", formatDate(day))
	assert.Equal(t, "03/07/2024", formatDate(&day))
	assert.Equal(t, "", formatDate((*time.Time)(nil)))
	assert.Equal(t, "", formatDate(time.Time{}))
	assert.Equal(t, "03/07/2024 2:05 PM", formatDateTime(day))
	assert.Equal(t, "2024-03-07", isoDate("date", day))
	assert.Equal(t, "2024-03-07T14:05", isoDate("datetime", &day))

	assert.Equal(t, "$0.00", formatMoney(0))
	assert.Equal(t, "$25.50", formatMoney(25.5))
	assert.Equal(t, "$1,234.56", formatMoney(1234.56))
	assert.Equal(t, "$1,000,000.00", formatMoney(1e6))
	assert.Equal(t, "-$12.00", formatMoney(-12))

	assert.Equal(t, "N/A", formatRating(nil))
	assert.Equal(t, "5", formatRating(&five))
	assert.Equal(t, "", intValue(nil))
	assert.Equal(t, "5", intValue(&five))

	assert.Equal(t, "No-show", titleCase("no-show"))
	assert.Equal(t, "", titleCase(""))
}

func TestPageHelpers(t *testing.T) {
	var empty Page
	assert.Equal(t, "", empty.Value("email"))
	assert.Equal(t, "", empty.Error("email"))

	p := Page{Form: url.Values{"email": {"a@b.c"}}, Errors: map[string]string{"email": "taken"}}
	assert.Equal(t, "a@b.c", p.Value("email"))
	assert.Equal(t, "taken", p.Error("email"))
}
