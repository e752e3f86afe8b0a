package api

import (
	"net/http"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/outreach-portal/server/internal/api/handlers"
	"github.com/outreach-portal/server/internal/api/middleware"
	"github.com/outreach-portal/server/internal/auth"
	"github.com/outreach-portal/server/internal/config"
	"github.com/outreach-portal/server/internal/metrics"
	"github.com/outreach-portal/server/web"
)

// Dependencies is everything the router mounts. cmd/server builds it from the
// database pool and configuration.
type Dependencies struct {
	Config    config.Config
	Logger    zerolog.Logger
	Sessions  *auth.CookieStore
	Refresher middleware.IdentityRefresher
	CSRFKey   []byte
	// RateLimiter is shared by the public and login tiers. NewRouter builds
	// one when it is nil; the caller owns stopping it.
	RateLimiter *middleware.RateLimiter

	Pages        *handlers.Pages
	Health       *handlers.HealthChecker
	Auth         *handlers.AuthHandler
	Dashboard    *handlers.DashboardHandler
	Participants *handlers.ParticipantsHandler
	Events       *handlers.EventsHandler
	Donations    *handlers.DonationsHandler
	Surveys      *handlers.SurveysHandler
	Milestones   *handlers.MilestonesHandler
}

// NewRouter builds the route table and wraps it in the middleware chain:
// correlation, tracing, logging, metrics, security headers, body limit,
// CSRF, session and the public rate limit. Guards are applied per route.
func NewRouter(d Dependencies) http.Handler {
	cfg := d.Config
	mux := http.NewServeMux()

	authed := func(h http.HandlerFunc) http.Handler { return middleware.RequireAuth(h) }
	admin := func(h http.HandlerFunc) http.Handler { return middleware.RequireAdmin(h) }
	selfOrAdmin := func(h http.HandlerFunc) http.Handler { return middleware.RequireSelfOrAdmin("id")(h) }

	limiter := d.RateLimiter
	if limiter == nil {
		limiter = middleware.NewRateLimiter(cfg.RateLimit)
	}
	loginTier := middleware.WithRateLimitTierHandler(middleware.TierLogin)
	throttled := func(h http.HandlerFunc) http.Handler { return loginTier(limiter.Middleware(h)) }

	mux.Handle("/healthz", handlers.Healthz())
	mux.Handle("/readyz", d.Health.Readyz())
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	mux.Handle("/static/", web.StaticHandler())
	mux.Handle("/robots.txt", web.RobotsTxtHandler())

	mux.Handle("/{$}", methodMux(map[string]http.Handler{
		http.MethodGet: http.HandlerFunc(d.Auth.Index),
	}))
	mux.Handle("/login", methodMux(map[string]http.Handler{
		http.MethodGet:  http.HandlerFunc(d.Auth.LoginPage),
		http.MethodPost: throttled(d.Auth.Login),
	}))
	mux.Handle("/register", methodMux(map[string]http.Handler{
		http.MethodGet:  http.HandlerFunc(d.Auth.RegisterPage),
		http.MethodPost: throttled(d.Auth.Register),
	}))
	mux.Handle("/logout", methodMux(map[string]http.Handler{
		http.MethodGet:  http.HandlerFunc(d.Auth.Logout),
		http.MethodPost: http.HandlerFunc(d.Auth.Logout),
	}))
	mux.Handle("/dashboard", methodMux(map[string]http.Handler{
		http.MethodGet: authed(d.Dashboard.Show),
	}))

	p := d.Participants
	mux.Handle("/participants", methodMux(map[string]http.Handler{
		http.MethodGet: authed(p.List),
	}))
	mux.Handle("/participants/add", methodMux(map[string]http.Handler{
		http.MethodGet:  admin(p.AddPage),
		http.MethodPost: admin(p.Add),
	}))
	mux.Handle("/participants/{id}", methodMux(map[string]http.Handler{
		http.MethodGet: selfOrAdmin(p.Show),
	}))
	mux.Handle("/participants/{id}/edit", methodMux(map[string]http.Handler{
		http.MethodGet:  selfOrAdmin(p.EditPage),
		http.MethodPost: selfOrAdmin(p.Edit),
	}))
	mux.Handle("/participants/{id}/delete", methodMux(map[string]http.Handler{
		http.MethodPost: admin(p.Delete),
	}))
	mux.Handle("/participants/{id}/deactivate", methodMux(map[string]http.Handler{
		http.MethodPost: admin(p.Deactivate),
	}))
	mux.Handle("/participants/{id}/activate", methodMux(map[string]http.Handler{
		http.MethodPost: admin(p.Activate),
	}))

	e := d.Events
	mux.Handle("/events", methodMux(map[string]http.Handler{
		http.MethodGet: authed(e.List),
	}))
	mux.Handle("/events/add", methodMux(map[string]http.Handler{
		http.MethodGet:  admin(e.AddPage),
		http.MethodPost: admin(e.Add),
	}))
	mux.Handle("/events/{id}/edit", methodMux(map[string]http.Handler{
		http.MethodGet:  admin(e.EditPage),
		http.MethodPost: admin(e.Edit),
	}))
	mux.Handle("/events/{id}/delete", methodMux(map[string]http.Handler{
		http.MethodPost: admin(e.Delete),
	}))

	dn := d.Donations
	mux.Handle("/donations", methodMux(map[string]http.Handler{
		http.MethodGet: authed(dn.List),
	}))
	mux.Handle("/donations/add", methodMux(map[string]http.Handler{
		http.MethodGet:  authed(dn.AddPage),
		http.MethodPost: authed(dn.Add),
	}))
	mux.Handle("/donations/{id}/edit", methodMux(map[string]http.Handler{
		http.MethodGet:  admin(dn.EditPage),
		http.MethodPost: admin(dn.Edit),
	}))
	mux.Handle("/donations/{id}/delete", methodMux(map[string]http.Handler{
		http.MethodPost: admin(dn.Delete),
	}))

	s := d.Surveys
	mux.Handle("/surveys", methodMux(map[string]http.Handler{
		http.MethodGet:  authed(s.List),
		http.MethodPost: authed(s.Submit),
	}))
	mux.Handle("/surveys/new", methodMux(map[string]http.Handler{
		http.MethodGet: authed(s.NewPage),
	}))
	mux.Handle("/surveys/{id}/edit", methodMux(map[string]http.Handler{
		http.MethodGet:  admin(s.EditPage),
		http.MethodPost: admin(s.Edit),
	}))
	mux.Handle("/surveys/{id}/delete", methodMux(map[string]http.Handler{
		http.MethodPost: admin(s.Delete),
	}))

	m := d.Milestones
	mux.Handle("/milestones", methodMux(map[string]http.Handler{
		http.MethodGet: authed(m.List),
	}))
	mux.Handle("/milestones/add", methodMux(map[string]http.Handler{
		http.MethodGet:  admin(m.AddPage),
		http.MethodPost: admin(m.Add),
	}))
	mux.Handle("/milestones/{id}/delete", methodMux(map[string]http.Handler{
		http.MethodPost: admin(m.Delete),
	}))

	mux.Handle("/", d.Pages.NotFound())

	secure := cfg.Environment == "production"
	var h http.Handler = mux
	h = limiter.Middleware(h)
	h = middleware.Session(middleware.SessionConfig{
		Store:      d.Sessions,
		CookieName: cfg.Session.CookieName,
		Refresher:  d.Refresher,
	})(h)
	h = middleware.CSRFProtection(d.CSRFKey, secure)(h)
	h = middleware.FormRequestSize()(h)
	h = middleware.SecurityHeaders(secure)(h)
	h = metrics.HTTPMiddleware(h)
	h = middleware.RequestLogging(d.Logger)(h)
	h = middleware.Tracing(h)
	h = middleware.CorrelationID(d.Logger)(h)
	return h
}

func methodMux(handlers map[string]http.Handler) http.Handler {
	if get, ok := handlers[http.MethodGet]; ok {
		if _, hasHead := handlers[http.MethodHead]; !hasHead {
			handlers[http.MethodHead] = get
		}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if handler, ok := handlers[r.Method]; ok {
			handler.ServeHTTP(w, r)
			return
		}
		w.Header().Set("Allow", allowedMethods(handlers))
		w.WriteHeader(http.StatusMethodNotAllowed)
	})
}

func allowedMethods(handlers map[string]http.Handler) string {
	methods := make([]string, 0, len(handlers))
	for method := range handlers {
		methods = append(methods, method)
	}
	sort.Strings(methods)
	return strings.Join(methods, ", ")
}
