package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpapi "github.com/entradalabs/entrada/internal/gateway/http"
	"github.com/entradalabs/entrada/internal/gateway/service"
	"github.com/entradalabs/entrada/internal/gateway/store"
	"github.com/entradalabs/entrada/internal/gateway/store/drivers/sqlite"
	"github.com/entradalabs/entrada/pkg/backendsdk"
	"github.com/entradalabs/entrada/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the ticketing gateway with all its dependencies.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db       store.Store
	client   *backendsdk.Client
	realtime *backendsdk.Realtime

	notify   *service.NotificationStore
	cache    *service.QueryCache
	registry *service.Registry
	bridge   *service.ChangeBridge

	server *http.Server
	router *httpapi.Router

	housekeepingDone chan struct{}
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "entrada-gateway",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
		housekeepingDone: make(chan struct{}),
	}

	client, err := backendsdk.NewClient(cfg.BackendURL, cfg.BackendAnonKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize backend client: %w", err)
	}
	app.client = client
	app.realtime = client.Realtime()

	if err := app.initDatabase(); err != nil {
		return nil, err
	}

	app.notify = service.NewNotificationStore()
	app.cache = service.NewQueryCache(app.notify, app.logger)
	app.registry = service.NewRegistry(app.client, app.db.Sessions(), app.notify, app.logger)
	app.bridge = service.NewChangeBridge(app.realtime, app.cache, app.logger)

	app.initHTTP()

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	// The change feed is an enhancement over TTL expiry; a backend without
	// realtime still serves, just with staler caches.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := app.bridge.Start(ctx); err != nil {
		app.logger.Warn("change feed unavailable, relying on cache TTLs", "err", err)
	}
	cancel()

	go app.housekeeping()

	app.logger.Info("gateway starting", "port", app.cfg.Port, "version", BuildVersion)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

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
	app.logger.Info("shutting down gateway...")

	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	close(app.housekeepingDone)
	app.bridge.Stop()
	if err := app.realtime.Close(); err != nil {
		app.logger.Error("error closing change feed", "error", err)
	}
	app.registry.Close()
	app.notify.Close()

	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("gateway stopped")
	return nil
}

// initDatabase initializes the session database and applies migrations.
func (app *Application) initDatabase() error {
	host := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(host)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

func (app *Application) initHTTP() {
	app.router = httpapi.NewRouter(
		app.client,
		app.registry,
		app.cache,
		app.notify,
		app.db,
		BuildVersion,
		app.logger,
	)
	app.router.ApplyRoutes()

	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           app.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// housekeeping periodically drops expired session rows.
func (app *Application) housekeeping() {
	ticker := time.NewTicker(app.cfg.HousekeepingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := app.registry.Sweep(ctx); err != nil {
				app.logger.Warn("session sweep failed", "err", err)
			}
			cancel()
		case <-app.housekeepingDone:
			return
		}
	}
}
