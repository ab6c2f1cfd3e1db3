package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpapi "github.com/skyfold/console/internal/identity/http"
	"github.com/skyfold/console/internal/identity/keystone"
	"github.com/skyfold/console/internal/identity/service"
	"github.com/skyfold/console/internal/identity/session"
	"github.com/skyfold/console/internal/identity/store"
	"github.com/skyfold/console/internal/identity/store/drivers/sqlite"
	"github.com/skyfold/console/pkg/cryptox"
	"github.com/skyfold/console/pkg/sessionx"
	"github.com/skyfold/console/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the console identity service with all its
// dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db       store.Store
	sessions *session.Store
	cookies  *sessionx.Codec
	backend  *keystone.Client

	// Services
	scopeService        *service.ScopeService
	authService         *service.AuthService
	housekeepingService *service.HousekeepingService

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// New creates a new Application instance with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("CONSOLE_ENDPOINT must be set")
	}

	logger := slogx.New(slogx.Config{
		Service: "console-identity",
		Version: BuildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})
	if cfg.Region != "" {
		logger = logger.With("region", cfg.Region)
	}

	app := &Application{cfg: cfg, logger: logger}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initSessions(); err != nil {
		return nil, err
	}
	app.initServices()
	app.initHTTP()

	return app, nil
}

func (app *Application) initDatabase() error {
	db, err := sqlite.NewStore(app.cfg.CacheFile)
	if err != nil {
		return fmt.Errorf("opening friendly-id cache: %w", err)
	}
	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("migrating friendly-id cache: %w", err)
	}
	app.db = db
	return nil
}

func (app *Application) initSessions() error {
	key, err := cryptox.LoadSigningKey(app.cfg.SecretFile)
	if err != nil {
		return fmt.Errorf("loading session secret: %w", err)
	}

	app.sessions = session.NewStore(app.cfg.SessionTTL)
	app.cookies = sessionx.NewCodec(key, app.cfg.SessionTTL, app.cfg.Env != "dev")
	return nil
}

func (app *Application) initServices() {
	app.backend = keystone.New(app.cfg.Endpoint, app.cfg.AuthTimeout)

	resolver := &service.Resolver{
		IDs:      app.db.FriendlyIDs(),
		Endpoint: app.cfg.Endpoint,
	}

	app.scopeService = &service.ScopeService{Resolver: resolver}
	app.authService = &service.AuthService{
		Backend:  app.backend,
		Resolver: resolver,
	}
	app.housekeepingService = service.NewHousekeepingService(
		app.sessions,
		app.logger,
		app.cfg.HousekeepingInterval,
	)
}

func (app *Application) initHTTP() {
	router := httpapi.NewRouter(BuildVersion, app.db, app.sessions, app.cookies, app.logger)
	router.ScopeService = app.scopeService
	router.AuthService = app.authService
	router.ApplyRoutes()

	app.router = router
	app.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", app.cfg.Port),
		Handler: router,
	}
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("console identity starting", "port", app.cfg.Port, "version", BuildVersion)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down console identity...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	// Shutdown the HTTP server
	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing friendly-id cache", "error", err)
	}

	app.logger.Info("shutdown complete")
	return nil
}
