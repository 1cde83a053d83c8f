// Package app provides application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/piraidev/sereno/internal/bot"
	"github.com/piraidev/sereno/internal/config"
	"github.com/piraidev/sereno/internal/incident"
	incidentpostgres "github.com/piraidev/sereno/internal/incident/postgres"
	"github.com/piraidev/sereno/internal/integration"
	"github.com/piraidev/sereno/internal/integration/jira"
	"github.com/piraidev/sereno/internal/integration/zoom"
	"github.com/piraidev/sereno/internal/notify"
	"github.com/piraidev/sereno/internal/oauth"
	"github.com/piraidev/sereno/internal/pkg/ctxlog"
	"github.com/piraidev/sereno/internal/pkg/httputil"
	"github.com/piraidev/sereno/internal/pkg/metrics"
	"github.com/piraidev/sereno/internal/pkg/postgres"
	"github.com/piraidev/sereno/internal/slack"
	"github.com/piraidev/sereno/internal/team"
	teampostgres "github.com/piraidev/sereno/internal/team/postgres"
	"github.com/piraidev/sereno/internal/version"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// App represents the application instance.
type App struct {
	config        *config.Config
	logger        *slog.Logger
	db            *pgxpool.Pool
	server        *http.Server
	metricsServer *http.Server
	metricsCancel context.CancelFunc
}

// New creates a new application instance.
func New(cfg *config.Config) (*App, error) {
	logger := initLogger(cfg.Log)

	connectCtx, connectCancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer connectCancel()

	db, err := postgres.Connect(connectCtx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnectAttempts: cfg.Database.ConnectAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if cfg.Database.MigrationsPath != "" {
		if err := postgres.Migrate("file://"+cfg.Database.MigrationsPath, cfg.Database.URL); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply migrations: %w", err)
		}
	}

	metricsCtx, metricsCancel := context.WithCancel(context.Background())

	app := &App{
		config:        cfg,
		logger:        logger,
		db:            db,
		metricsCancel: metricsCancel,
	}

	go app.collectDBMetrics(metricsCtx)

	router, err := app.setupRouter()
	if err != nil {
		db.Close()
		metricsCancel()
		return nil, fmt.Errorf("setup router: %w", err)
	}

	app.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       60 * time.Second,
	}

	// Metrics server on separate port
	metricsRouter := chi.NewRouter()
	metricsRouter.Handle("/metrics", promhttp.Handler())

	app.metricsServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Metrics.Port),
		Handler:           metricsRouter,
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 2 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return app, nil
}

// Run starts the HTTP servers.
func (a *App) Run() error {
	go func() {
		a.logger.Info("starting metrics server",
			"host", a.config.Server.Host,
			"port", a.config.Metrics.Port,
		)
		if err := a.metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("metrics server error", "error", err)
		}
	}()

	a.logger.Info("starting server",
		"host", a.config.Server.Host,
		"port", a.config.Server.Port,
		"version", version.String(),
	)

	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down servers")

	a.metricsCancel()

	var wg sync.WaitGroup
	var errs []error
	var mu sync.Mutex

	wg.Add(2)

	go func() {
		defer wg.Done()
		if err := a.server.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown server: %w", err))
			mu.Unlock()
		}
	}()

	go func() {
		defer wg.Done()
		if err := a.metricsServer.Shutdown(ctx); err != nil {
			mu.Lock()
			errs = append(errs, fmt.Errorf("shutdown metrics server: %w", err))
			mu.Unlock()
		}
	}()

	wg.Wait()

	a.db.Close()

	return errors.Join(errs...)
}

func (a *App) collectDBMetrics(ctx context.Context) {
	metrics.RecordDBPoolMetrics(a.db)

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			metrics.RecordDBPoolMetrics(a.db)
		case <-ctx.Done():
			return
		}
	}
}

// Router returns the HTTP handler for testing.
func (a *App) Router() http.Handler {
	return a.server.Handler
}

func (a *App) setupRouter() (*chi.Mux, error) {
	r := chi.NewRouter()

	// Metrics middleware must be first to measure full request time
	r.Use(httputil.MetricsMiddleware)
	r.Use(middleware.RequestID)
	r.Use(httputil.RequestLoggerMiddleware(a.logger))
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/healthz", a.healthzHandler)
	r.Get("/readyz", a.readyzHandler)
	r.Get("/version", a.versionHandler)

	loc, err := a.config.Timezone()
	if err != nil {
		return nil, err
	}

	// The team repository backs every per-workspace lookup: settings,
	// stored provider credentials and the bot token for outbound calls.
	teamRepo := teampostgres.NewRepository(a.db)
	teamService := team.NewService(teamRepo, a.logger)

	tokens := integration.NewTokenManager(teamRepo)
	jiraProvider := jira.NewProvider(jira.Config{
		ClientID:     a.config.Jira.ClientID,
		ClientSecret: a.config.Jira.ClientSecret,
		RedirectURL:  a.config.Jira.RedirectURL,
		AuthBaseURL:  a.config.Jira.AuthBaseURL,
		APIBaseURL:   a.config.Jira.APIBaseURL,
	}, tokens)
	zoomProvider := zoom.NewProvider(zoom.Config{
		ClientID:     a.config.Zoom.ClientID,
		ClientSecret: a.config.Zoom.ClientSecret,
		RedirectURL:  a.config.Zoom.RedirectURL,
		AuthBaseURL:  a.config.Zoom.AuthBaseURL,
		APIBaseURL:   a.config.Zoom.APIBaseURL,
	}, tokens)
	registry := integration.NewRegistry(teamRepo, jiraProvider, zoomProvider)

	slackClient := slack.NewClient(slack.Config{
		BaseURL:      a.config.Slack.BaseURL,
		ClientID:     a.config.Slack.ClientID,
		ClientSecret: a.config.Slack.ClientSecret,
	}, teamRepo)

	formatter := bot.Formatter{}
	coordinator := notify.NewCoordinator(slackClient, teamService, formatter, a.logger)

	incidentRepo := incidentpostgres.NewRepository(a.db)
	incidentService := incident.NewService(incidentRepo, registry, slackClient, coordinator, loc, a.logger)

	signer := oauth.NewStateSigner(a.config.Slack.StateSecret)
	links := oauth.NewLinks(oauth.LinksConfig{
		JiraClientID:     a.config.Jira.ClientID,
		JiraRedirectURL:  a.config.Jira.RedirectURL,
		JiraAuthBaseURL:  a.config.Jira.AuthBaseURL,
		ZoomClientID:     a.config.Zoom.ClientID,
		ZoomRedirectURL:  a.config.Zoom.RedirectURL,
		ZoomAuthBaseURL:  a.config.Zoom.AuthBaseURL,
		SlackClientID:    a.config.Slack.ClientID,
		SlackRedirectURL: a.config.Slack.RedirectURL,
	}, signer)

	oauthHandler := oauth.NewHandler(signer, jiraProvider, zoomProvider, slackClient, teamRepo, a.logger)
	botHandler := bot.NewHandler(incidentService, teamService, slackClient, links, a.logger)

	r.Route("/slack", func(r chi.Router) {
		r.Use(bot.VerifySlackRequest(a.config.Slack.SigningSecret))
		botHandler.RegisterRoutes(r)
	})

	r.Route("/oauth", func(r chi.Router) {
		oauthHandler.RegisterRoutes(r)
	})

	return r, nil
}

func (a *App) healthzHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) readyzHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := a.db.Ping(ctx); err != nil {
		ctxlog.FromContext(r.Context()).Error("readiness check failed", "error", err)
		httputil.Text(w, http.StatusServiceUnavailable, "Database unavailable")
		return
	}

	httputil.Text(w, http.StatusOK, "OK")
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"version":    version.Version,
		"commit":     version.GitCommit,
		"build_date": version.BuildDate,
	})
}

func initLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: level}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
