package middleware

import (
	"html/template"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/outreach-portal/server/internal/api/problem"
)

var statusPage = template.Must(template.New("status").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>{{.Title}}</title><link rel="stylesheet" href="/static/styles.css"></head>
<body><main class="container"><h1>{{.Title}}</h1><p>{{.Message}}</p><p><a href="/dashboard">Back to dashboard</a></p></main></body>
</html>`))

// writeHTMLStatus renders a bare status page for browser callers.
func writeHTMLStatus(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = statusPage.Execute(w, struct {
		Title   string
		Message string
	}{Title: http.StatusText(status), Message: message})
}

// Forbidden writes the generic 403 used by the role guards.
func Forbidden(w http.ResponseWriter, r *http.Request) {
	if WantsJSON(r) {
		problem.Write(w, r, http.StatusForbidden, problem.TypeForbidden, "Forbidden", nil, "")
		return
	}
	writeHTMLStatus(w, http.StatusForbidden, "You do not have permission to view this page.")
}

// ServerError writes the generic 500 used when the session store fails.
func ServerError(w http.ResponseWriter, r *http.Request) {
	if WantsJSON(r) {
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Internal server error", nil, "")
		return
	}
	writeHTMLStatus(w, http.StatusInternalServerError, "Something went wrong. Please try again later.")
}

func zerologWarn(r *http.Request, err error, msg string) {
	zerolog.Ctx(r.Context()).Warn().Err(err).Str("path", r.URL.Path).Str("method", r.Method).Msg(msg)
}
