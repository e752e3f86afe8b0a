package middleware

import (
	"net/http"
	"strings"
)

// WantsJSON reports whether the caller asked for a JSON response: an
// XMLHttpRequest, or an Accept header that mentions json.
func WantsJSON(r *http.Request) bool {
	if r == nil {
		return false
	}
	if strings.EqualFold(r.Header.Get("X-Requested-With"), "XMLHttpRequest") {
		return true
	}
	return strings.Contains(strings.ToLower(r.Header.Get("Accept")), "json")
}
