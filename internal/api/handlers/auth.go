package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/sessions"
	"github.com/rs/zerolog"

	"github.com/outreach-portal/server/internal/api/middleware"
	"github.com/outreach-portal/server/internal/auth"
	"github.com/outreach-portal/server/internal/domain/users"
	"github.com/outreach-portal/server/internal/validation"
)

// Authenticator is the account side of login and registration.
type Authenticator interface {
	Register(ctx context.Context, params users.RegisterParams) (*users.User, error)
	Login(ctx context.Context, email, password string) (auth.Session, error)
	Logout(ctx context.Context, token string) error
}

// SessionCookies writes and clears the session cookie.
type SessionCookies interface {
	Get(r *http.Request, name string) (*sessions.Session, error)
	Attach(w http.ResponseWriter, r *http.Request, name string, record auth.Session) error
	Expire(w http.ResponseWriter, r *http.Request, name string) error
}

type AuthHandler struct {
	*Pages
	auth       Authenticator
	cookies    SessionCookies
	cookieName string
}

func NewAuthHandler(pages *Pages, authenticator Authenticator, cookies SessionCookies, cookieName string) *AuthHandler {
	return &AuthHandler{Pages: pages, auth: authenticator, cookies: cookies, cookieName: cookieName}
}

type loginForm struct {
	Email    string `form:"email" validate:"required,email"`
	Password string `form:"password" validate:"required"`
}

type registerForm struct {
	FirstName       string `form:"first_name" validate:"required,max=100"`
	LastName        string `form:"last_name" validate:"required,max=100"`
	Email           string `form:"email" validate:"required,email"`
	Password        string `form:"password" validate:"required,min=8"`
	ConfirmPassword string `form:"confirm_password" validate:"required,eqfield=Password"`
}

// Index handles GET /.
func (h *AuthHandler) Index(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.IdentityFromContext(r.Context()); ok {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}
	h.html(w, r, http.StatusOK, "index.html", h.page(r, "Welcome", "home"))
}

// LoginPage handles GET /login.
func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.IdentityFromContext(r.Context()); ok {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}
	page := h.page(r, "Log in", "login")
	if r.URL.Query().Get("registered") != "" {
		page.Flash = "Registration successful. Please log in."
	}
	h.html(w, r, http.StatusOK, "login.html", page)
}

// Login handles POST /login. Unknown email and wrong password produce the
// same response.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r, h.Pages) {
		return
	}
	form := loginForm{
		Email:    formString(r, "email"),
		Password: r.PostFormValue("password"),
	}
	page := h.page(r, "Log in", "login")

	if err := h.Validator.Struct(form); err != nil {
		errs, _ := validation.AsErrors(err)
		h.formPage(w, r, http.StatusBadRequest, "login.html", page, errs)
		return
	}

	session, err := h.auth.Login(r.Context(), form.Email, form.Password)
	if err != nil {
		if errors.Is(err, users.ErrInvalidCredentials) || errors.Is(err, users.ErrAccountDeactivated) {
			f := classify(err)
			if middleware.WantsJSON(r) {
				h.fail(w, r, err)
				return
			}
			zerolog.Ctx(r.Context()).Warn().Err(err).Msg("login failed")
			page.Form = r.PostForm
			page.Form.Del("password")
			page.Flash = f.message
			h.html(w, r, f.status, "login.html", page)
			return
		}
		h.fail(w, r, err)
		return
	}

	if err := h.cookies.Attach(w, r, h.cookieName, session); err != nil {
		h.fail(w, r, err)
		return
	}
	done(w, r, "/dashboard", map[string]any{"user": session.Identity})
}

// RegisterPage handles GET /register.
func (h *AuthHandler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.IdentityFromContext(r.Context()); ok {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}
	h.html(w, r, http.StatusOK, "register.html", h.page(r, "Register", "register"))
}

// Register handles POST /register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if !parseForm(w, r, h.Pages) {
		return
	}
	form := registerForm{
		FirstName:       formString(r, "first_name"),
		LastName:        formString(r, "last_name"),
		Email:           formString(r, "email"),
		Password:        r.PostFormValue("password"),
		ConfirmPassword: r.PostFormValue("confirm_password"),
	}
	page := h.page(r, "Register", "register")

	if err := h.Validator.Struct(form); err != nil {
		errs, _ := validation.AsErrors(err)
		h.formPage(w, r, http.StatusBadRequest, "register.html", page, errs)
		return
	}

	user, err := h.auth.Register(r.Context(), users.RegisterParams{
		FirstName: form.FirstName,
		LastName:  form.LastName,
		Email:     form.Email,
		Password:  form.Password,
	})
	if err != nil {
		h.rejectForm(w, r, err, "register.html", page)
		return
	}

	done(w, r, "/login?registered=1", map[string]any{"user": user.Identity()})
}

// Logout handles GET and POST /logout. It succeeds without a session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())
	if session, err := h.cookies.Get(r, h.cookieName); err == nil && session.ID != "" {
		if err := h.auth.Logout(r.Context(), session.ID); err != nil {
			logger.Error().Err(err).Msg("failed to destroy session")
		}
	}
	if err := h.cookies.Expire(w, r, h.cookieName); err != nil {
		logger.Error().Err(err).Msg("failed to clear session cookie")
	}
	http.Redirect(w, r, middleware.LoginPath, http.StatusSeeOther)
}
