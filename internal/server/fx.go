// Package server builds the application's dependencies and runs the HTTP server.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/fikircreative/prospector/internal/api"
	"github.com/fikircreative/prospector/internal/auth"
	"github.com/fikircreative/prospector/internal/clock"
	"github.com/fikircreative/prospector/internal/config"
	"github.com/fikircreative/prospector/internal/ids"
	"github.com/fikircreative/prospector/internal/lead"
	"github.com/fikircreative/prospector/internal/logging"
	"github.com/fikircreative/prospector/internal/places"
	memorypublisher "github.com/fikircreative/prospector/internal/publisher/memory"
	gcppublisher "github.com/fikircreative/prospector/internal/publisher/pubsub"
	"github.com/fikircreative/prospector/internal/search"
	pgstore "github.com/fikircreative/prospector/internal/storage/postgres"
	sqlitestore "github.com/fikircreative/prospector/internal/storage/sqlite"
	"github.com/fikircreative/prospector/internal/telemetry"
)

type eventPublisher interface {
	lead.Publisher
	Close() error
}

// App contains the application's dependencies.
type App struct {
	cfg            *config.Config
	logger         *zap.Logger
	apiServer      *api.Server
	leads          lead.Repository
	events         eventPublisher
	tracerShutdown func(context.Context) error
}

// Handler exposes the API router, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run starts the HTTP server and blocks until the context is canceled or a
// termination signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}
	closeErr := a.Close(shutdownCtx)

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
		return closeErr
	}
}

// Close releases the store, publisher, and telemetry providers.
func (a *App) Close(ctx context.Context) error {
	a.closeInfrastructure()
	a.closeObservability(ctx)
	a.logger.Info("shutdown complete")
	return nil
}

func (a *App) closeInfrastructure() {
	if a.events != nil {
		if err := a.events.Close(); err != nil {
			a.logger.Warn("publisher close failed", zap.Error(err))
		}
	}
	if a.leads != nil {
		if err := a.leads.Close(); err != nil {
			a.logger.Warn("lead store close failed", zap.Error(err))
		}
	}
}

func (a *App) closeObservability(ctx context.Context) {
	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
	// stderr sync returns EINVAL on some platforms
	_ = a.logger.Sync()
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	logger.Info("building application dependencies",
		zap.String("service", cfg.Application.ServiceName),
		zap.String("version", cfg.Application.Version),
		zap.Int("server_port", cfg.Server.Port),
		zap.String("database_backend", cfg.Database.Backend),
		zap.String("places_api_key", logging.Redact(cfg.Places.APIKey)),
	)

	app := &App{cfg: cfg, logger: logger}

	tp, err := telemetry.InitTracerProvider(ctx, cfg.Application.ServiceName, cfg.Application.Version)
	if err != nil {
		return nil, fmt.Errorf("tracer init failed: %w", err)
	}
	app.tracerShutdown = tp.Shutdown

	clk := clock.System{}
	if app.leads, err = setupDatabase(ctx, cfg, clk, logger); err != nil {
		app.closeObservability(ctx)
		return nil, err
	}
	if app.events, err = setupPublisher(ctx, cfg, logger); err != nil {
		app.closeInfrastructure()
		app.closeObservability(ctx)
		return nil, err
	}

	sessions, err := auth.NewSessionManager(auth.SessionConfig{
		Secret:       []byte(cfg.Auth.SessionSecret),
		TTL:          cfg.Auth.SessionTTL,
		CookieSecure: cfg.Auth.CookieSecure,
		Issuer:       cfg.Application.ServiceName,
	}, clk)
	if err != nil {
		app.closeInfrastructure()
		app.closeObservability(ctx)
		return nil, fmt.Errorf("session manager init failed: %w", err)
	}
	allow := auth.ParseAllowList(cfg.Auth.AllowedEmails)
	logger.Info("access allow-list loaded", zap.Int("emails", allow.Len()))

	placesClient := places.New(places.Config{
		APIKey:            cfg.Places.APIKey,
		BaseURL:           cfg.Places.BaseURL,
		Region:            cfg.Places.Region,
		Language:          cfg.Places.Language,
		Timeout:           cfg.Places.HTTPTimeout,
		RequestsPerSecond: cfg.Places.RateLimitRPS,
		Burst:             cfg.Places.RateLimitBurst,
	}, nil, logger.Named("places"))

	searchSvc := search.NewService(placesClient, search.Options{
		PageDelay:         cfg.Places.PageDelay,
		EnrichLimit:       cfg.Places.EnrichLimit,
		EnrichConcurrency: cfg.Places.EnrichConcurrency,
	}, logger.Named("search"))

	app.apiServer, err = api.NewServer(api.Deps{
		Gate: auth.NewGate(sessions, allow, logger.Named("auth")),
		Identity: auth.NewGoogleProvider(auth.GoogleConfig{
			ClientID:     cfg.Auth.GoogleClientID,
			ClientSecret: cfg.Auth.GoogleClientSecret,
			RedirectURL:  cfg.Auth.RedirectURL,
		}),
		Search:         searchSvc,
		Leads:          app.leads,
		Events:         app.events,
		Clock:          clk,
		Logger:         logger.Named("api"),
		SignInURL:      cfg.Auth.SignInURL,
		PostSignInURL:  cfg.Auth.PostSignInURL,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RequestTimeout: cfg.Server.RequestTimeout,
	})
	if err != nil {
		app.closeInfrastructure()
		app.closeObservability(ctx)
		return nil, fmt.Errorf("api init failed: %w", err)
	}
	return app, nil
}

func setupDatabase(ctx context.Context, cfg *config.Config, clk lead.Clock, logger *zap.Logger) (lead.Repository, error) {
	switch cfg.Database.Backend {
	case config.BackendSQLite:
		store, err := sqlitestore.Open(ctx, cfg.Database.DSN, ids.UUIDv7{}, clk)
		if err != nil {
			return nil, fmt.Errorf("sqlite store init failed: %w", err)
		}
		logger.Info("using sqlite lead store", zap.String("path", cfg.Database.DSN))
		return store, nil
	default:
		store, err := pgstore.NewLeadStore(ctx, pgstore.LeadStoreConfig{
			DSN:             cfg.Database.DSN,
			Table:           cfg.Database.Table,
			MaxConns:        cfg.Database.MaxConns,
			MinConns:        cfg.Database.MinConns,
			MaxConnLifetime: cfg.Database.MaxConnLifetime,
		}, ids.UUIDv7{}, clk)
		if err != nil {
			return nil, fmt.Errorf("postgres store init failed: %w", err)
		}
		if cfg.Database.AutoMigrate {
			if err := store.EnsureSchema(ctx); err != nil {
				_ = store.Close()
				return nil, err
			}
		}
		logger.Info("using postgres lead store", zap.String("table", cfg.Database.Table))
		return store, nil
	}
}

func setupPublisher(ctx context.Context, cfg *config.Config, logger *zap.Logger) (eventPublisher, error) {
	if cfg.PubSub.TopicName == "" || cfg.PubSub.ProjectID == "" {
		logger.Info("no Pub/Sub topic configured, keeping lead events in memory")
		return memorypublisher.New(memorypublisher.DefaultCapacity), nil
	}
	pub, err := gcppublisher.New(ctx, cfg.PubSub.ProjectID, cfg.PubSub.TopicName)
	if err != nil {
		return nil, fmt.Errorf("pubsub publisher init failed: %w", err)
	}
	logger.Info("Pub/Sub publisher initialized",
		zap.String("project", cfg.PubSub.ProjectID),
		zap.String("topic", cfg.PubSub.TopicName),
	)
	return pub, nil
}
