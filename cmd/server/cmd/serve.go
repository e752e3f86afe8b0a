package cmd

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/sessions"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/outreach-portal/server/internal/api"
	"github.com/outreach-portal/server/internal/api/handlers"
	"github.com/outreach-portal/server/internal/api/middleware"
	"github.com/outreach-portal/server/internal/api/render"
	"github.com/outreach-portal/server/internal/audit"
	"github.com/outreach-portal/server/internal/auth"
	"github.com/outreach-portal/server/internal/config"
	"github.com/outreach-portal/server/internal/domain/dashboard"
	"github.com/outreach-portal/server/internal/domain/donations"
	"github.com/outreach-portal/server/internal/domain/events"
	"github.com/outreach-portal/server/internal/domain/milestones"
	"github.com/outreach-portal/server/internal/domain/surveys"
	"github.com/outreach-portal/server/internal/domain/users"
	"github.com/outreach-portal/server/internal/metrics"
	"github.com/outreach-portal/server/internal/storage/postgres"
	"github.com/outreach-portal/server/internal/telemetry"
)

func newServeCommand() *cobra.Command {
	var (
		// Server flags (override config/env)
		serverHost string
		serverPort int
	)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		Long: `Start the HTTP server and begin accepting requests.

The server will:
- Load configuration from environment variables (or --config file if provided)
- Apply pending migrations when AUTO_MIGRATE=true
- Bootstrap the admin account if ADMIN_EMAIL and ADMIN_PASSWORD are set
- Handle graceful shutdown on SIGINT/SIGTERM

Examples:
  # Start with default configuration (from env vars)
  server serve

  # Start on a specific host and port
  server serve --host 127.0.0.1 --port 9090

  # Start with debug logging
  server serve --log-level debug --log-format console`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			if serverHost != "" {
				cfg.Server.Host = serverHost
			}
			if serverPort != 0 {
				cfg.Server.Port = serverPort
			}
			return runServer(cmd.Context(), cfg)
		},
	}

	serveCmd.Flags().StringVar(&serverHost, "host", "", "server host address (default: 0.0.0.0)")
	serveCmd.Flags().IntVar(&serverPort, "port", 0, "server port (default: 8080)")
	return serveCmd
}

func runServer(ctx context.Context, cfg config.Config) error {
	logger := config.NewLogger(cfg.Logging)
	logger.Info().Str("version", Version).Str("environment", cfg.Environment).Msg("starting outreach portal")

	metrics.Init(Version, GitCommit, BuildDate)

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.Tracing, Version)
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(stopCtx); err != nil {
			logger.Error().Err(err).Msg("tracing shutdown error")
		}
	}()

	if cfg.Database.AutoMigrate {
		if err := postgres.MigrateUp(cfg.Database.URL); err != nil {
			return err
		}
		logger.Info().Msg("migrations applied")
	}

	pool, err := openPool(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer pool.Close()
	metrics.Registry.MustRegister(metrics.NewDBCollector(pool))

	repo, err := postgres.NewRepository(pool)
	if err != nil {
		return err
	}

	hasher := auth.NewPasswordHasher(cfg.Auth.BcryptCost)
	userService := users.NewService(repo.Users(), hasher, logger)

	bootstrapCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	if err := bootstrapAdmin(bootstrapCtx, userService, cfg, logger); err != nil {
		logger.Error().Err(err).Msg("admin bootstrap failed")
	}
	cancel()

	deps, err := buildDependencies(cfg, logger, repo, hasher, userService)
	if err != nil {
		return err
	}

	deps.RateLimiter = middleware.NewRateLimiter(cfg.RateLimit)
	defer deps.RateLimiter.Stop()

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           api.NewRouter(deps),
		ReadTimeout:       10 * time.Second, // Total time to read request
		WriteTimeout:      30 * time.Second, // Total time to write response
		ReadHeaderTimeout: 5 * time.Second,  // Time to read headers
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1 MB max header size
	}

	// Start server in background
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
		}
	}()

	return gracefulShutdown(server, logger)
}

// buildDependencies wires repositories, services and handlers together.
func buildDependencies(cfg config.Config, logger zerolog.Logger, repo *postgres.Repository, hasher *auth.PasswordHasher, userService *users.Service) (api.Dependencies, error) {
	sessionSecret, err := secretOrRandom(cfg.Session.Secret, "SESSION_SECRET", logger)
	if err != nil {
		return api.Dependencies{}, err
	}
	csrfKey, err := secretOrRandom(cfg.Auth.CSRFKey, "CSRF_KEY", logger)
	if err != nil {
		return api.Dependencies{}, err
	}

	manager := auth.NewSessionManager(repo.Sessions(), cfg.Session.TTL)
	cookies := auth.NewCookieStore(manager, sessions.Options{
		Path:     "/",
		HttpOnly: cfg.Session.HTTPOnly,
		Secure:   cfg.IsProduction(),
		SameSite: http.SameSiteLaxMode,
	}, sessionSecret)

	authenticator := users.NewAuthenticator(repo.Users(), hasher, manager, logger)
	var refresher middleware.IdentityRefresher
	if cfg.Session.Revalidate {
		refresher = authenticator
	}

	eventService := events.NewService(repo.Events(), logger)
	donationService := donations.NewService(repo.Donations(), logger)
	surveyService := surveys.NewService(repo.Surveys(), logger)
	milestoneService := milestones.NewService(repo.Milestones(), logger)
	stats := dashboard.NewService(userService, donationService, eventService, surveyService, milestoneService)

	renderer, err := render.New()
	if err != nil {
		return api.Dependencies{}, fmt.Errorf("load templates: %w", err)
	}
	pages := handlers.NewPages(renderer, audit.NewLogger(logger), cfg.Environment)

	return api.Dependencies{
		Config:    cfg,
		Logger:    logger,
		Sessions:  cookies,
		Refresher: refresher,
		CSRFKey:   csrfKey,

		Pages:        pages,
		Health:       handlers.NewHealthChecker(repo, Version),
		Auth:         handlers.NewAuthHandler(pages, authenticator, cookies, cfg.Session.CookieName),
		Dashboard:    handlers.NewDashboardHandler(pages, stats),
		Participants: handlers.NewParticipantsHandler(pages, userService, donationService, surveyService, milestoneService),
		Events:       handlers.NewEventsHandler(pages, eventService, time.Local),
		Donations:    handlers.NewDonationsHandler(pages, donationService, userService),
		Surveys:      handlers.NewSurveysHandler(pages, surveyService, eventService),
		Milestones:   handlers.NewMilestonesHandler(pages, milestoneService, userService),
	}, nil
}

// secretOrRandom returns the configured secret, or 32 random bytes when none
// is set. Production configs are rejected earlier by config.Validate.
func secretOrRandom(secret, name string, logger zerolog.Logger) ([]byte, error) {
	if secret != "" {
		return []byte(secret), nil
	}
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generate %s: %w", name, err)
	}
	logger.Warn().Str("setting", name).Msg("not set; using a random key, sessions will not survive a restart")
	return key, nil
}

func bootstrapAdmin(ctx context.Context, svc *users.Service, cfg config.Config, logger zerolog.Logger) error {
	bootstrap := cfg.AdminBootstrap
	if bootstrap.Email == "" || bootstrap.Password == "" {
		logger.Debug().Msg("admin bootstrap env vars not set; skipping")
		return nil
	}

	created, err := svc.EnsureAdmin(ctx, users.Profile{
		FirstName: bootstrap.FirstName,
		LastName:  bootstrap.LastName,
		Email:     bootstrap.Email,
	}, bootstrap.Password)
	if err != nil {
		return err
	}
	if !created {
		return nil
	}

	// Redact email in production to avoid PII leaks
	if cfg.IsProduction() {
		logger.Info().Msg("bootstrapped admin user")
	} else {
		logger.Info().Str("email", bootstrap.Email).Msg("bootstrapped admin user")
	}
	return nil
}

func gracefulShutdown(server *http.Server, logger zerolog.Logger) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Info().Msg("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("shutdown error")
		return err
	}

	logger.Info().Msg("server stopped")
	return nil
}
