package middleware

import (
	"net/http"

	"github.com/gorilla/csrf"

	"github.com/outreach-portal/server/internal/api/problem"
)

// CSRFFieldName is the hidden form field carrying the token.
const CSRFFieldName = "csrf_token"

// CSRFProtection guards every unsafe request with a double-submit token.
// Forms embed the token as a hidden field; XHR callers may send it in the
// X-CSRF-Token header. When secure is false the cookie is sent over plain
// HTTP and the origin check is told so.
func CSRFProtection(authKey []byte, secure bool) func(http.Handler) http.Handler {
	protect := csrf.Protect(authKey,
		csrf.Secure(secure),
		csrf.Path("/"),
		csrf.HttpOnly(true),
		csrf.SameSite(csrf.SameSiteLaxMode),
		csrf.FieldName(CSRFFieldName),
		csrf.ErrorHandler(http.HandlerFunc(csrfErrorHandler)),
	)
	return func(next http.Handler) http.Handler {
		protected := protect(next)
		if secure {
			return protected
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			protected.ServeHTTP(w, csrf.PlaintextHTTPRequest(r))
		})
	}
}

func csrfErrorHandler(w http.ResponseWriter, r *http.Request) {
	if WantsJSON(r) {
		problem.Write(w, r, http.StatusForbidden, problem.TypeCSRF, "CSRF token validation failed", csrf.FailureReason(r), "")
		return
	}
	zerologWarn(r, csrf.FailureReason(r), "csrf validation failed")
	writeHTMLStatus(w, http.StatusForbidden, "The form has expired. Go back, reload the page and try again.")
}

// CSRFToken returns the token for the current request, for embedding in forms.
func CSRFToken(r *http.Request) string {
	return csrf.Token(r)
}
