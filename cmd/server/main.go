package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexey-v-paramonov/sc-api/internal/apps"
	"github.com/alexey-v-paramonov/sc-api/internal/auth"
	"github.com/alexey-v-paramonov/sc-api/internal/catalog"
	"github.com/alexey-v-paramonov/sc-api/internal/config"
	"github.com/alexey-v-paramonov/sc-api/internal/payments"
	"github.com/alexey-v-paramonov/sc-api/internal/radios"
	"github.com/alexey-v-paramonov/sc-api/pkg/accesslog"
	"github.com/alexey-v-paramonov/sc-api/pkg/logger"
	"github.com/alexey-v-paramonov/sc-api/pkg/unzip"
	trmsql "github.com/avito-tech/go-transaction-manager/drivers/sql/v2"
	trmcontext "github.com/avito-tech/go-transaction-manager/trm/v2/context"
	"github.com/avito-tech/go-transaction-manager/trm/v2/manager"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/nanmu42/gzip"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	sqldblogger "github.com/simukti/sqldb-logger"
)

// Version indicates the current version of the application.
var Version = "1.0.0"

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Server run context.
	serverCtx, serverStopCtx := context.WithCancel(context.Background())
	defer serverStopCtx()

	// Load application configurations.
	cfg := config.MustLoad()

	// Create root logger tagged with server version.
	logger := logger.New(cfg).With(serverCtx, "version", Version)

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return fmt.Errorf("failed to open the database: %w", err)
	}

	// Log every query to the database.
	db = sqldblogger.OpenDriver(cfg.DSN, db.Driver(), logger)

	// Check connectivity and DSN correctness.
	if err = db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to the database: %w", err)
	}

	// Close connection.
	defer func() {
		if err = db.Close(); err != nil {
			logger.Error(err)
		}
		_ = logger.Sync()
	}()

	// Create default transaction manager for database/sql package.
	trManager := manager.Must(
		trmsql.NewDefaultFactory(db),
		manager.WithCtxManager(trmcontext.DefaultManager),
	)

	// Init repository for auth service.
	authRepo, err := auth.NewRepository(db, trmsql.DefaultCtxGetter, logger)
	if err != nil {
		return fmt.Errorf("failed to init auth repository: %w", err)
	}

	// Init auth service.
	authService, err := auth.NewService(authRepo, logger, cfg)
	if err != nil {
		return fmt.Errorf("failed to init auth service: %w", err)
	}

	// Init repository for radios service.
	radiosRepo, err := radios.NewRepository(db, trmsql.DefaultCtxGetter, logger)
	if err != nil {
		return fmt.Errorf("failed to init radios repository: %w", err)
	}

	// Init radios service.
	radiosService, err := radios.NewService(radiosRepo, logger)
	if err != nil {
		return fmt.Errorf("failed to init radios service: %w", err)
	}

	// Init repository for payments service.
	paymentsRepo, err := payments.NewRepository(db, trmsql.DefaultCtxGetter, logger)
	if err != nil {
		return fmt.Errorf("failed to init payments repository: %w", err)
	}

	// Init payments service.
	paymentsService, err := payments.NewService(paymentsRepo, trManager, logger)
	if err != nil {
		return fmt.Errorf("failed to init payments service: %w", err)
	}

	// Init repository for catalog service.
	catalogRepo, err := catalog.NewRepository(db, trmsql.DefaultCtxGetter, logger)
	if err != nil {
		return fmt.Errorf("failed to init catalog repository: %w", err)
	}

	// Init catalog service.
	catalogService, err := catalog.NewService(catalogRepo, logger)
	if err != nil {
		return fmt.Errorf("failed to init catalog service: %w", err)
	}

	// Init repository for mobile apps service.
	appsRepo, err := apps.NewRepository(db, trmsql.DefaultCtxGetter, logger)
	if err != nil {
		return fmt.Errorf("failed to init apps repository: %w", err)
	}

	// Init mobile apps service.
	appsService, err := apps.NewService(appsRepo, logger)
	if err != nil {
		return fmt.Errorf("failed to init apps service: %w", err)
	}

	// Create root router.
	router := initRootRouter(logger)

	// Init and group handlers for auth routes.
	auth.HandlerWithOptions(authService, auth.ChiServerOptions{
		BaseURL:          "/api/v1/user",
		BaseRouter:       router,
		ErrorHandlerFunc: auth.ErrorHandlerFunc,
		AuthMiddleware:   authService.Middleware,
	})

	// Init handlers for radios routes.
	radios.HandlerWithOptions(radiosService, radios.ChiServerOptions{
		BaseURL:          "/api/v1/radios",
		BaseRouter:       router,
		Middlewares:      []radios.MiddlewareFunc{authService.Middleware},
		ErrorHandlerFunc: radios.ErrorHandlerFunc,
	})

	// Init handlers for payments routes.
	payments.HandlerWithOptions(paymentsService, payments.ChiServerOptions{
		BaseURL:          "/api/v1/payments",
		BaseRouter:       router,
		ErrorHandlerFunc: payments.ErrorHandlerFunc,
		AuthMiddleware:   authService.Middleware,
		StaffMiddleware:  authService.StaffOnly,
	})

	// Init handlers for catalog routes.
	catalog.HandlerWithOptions(catalogService, catalog.ChiServerOptions{
		BaseURL:          "/api/v1/catalog",
		BaseRouter:       router,
		ErrorHandlerFunc: catalog.ErrorHandlerFunc,
		AuthMiddleware:   authService.Middleware,
		StaffMiddleware:  authService.StaffOnly,
	})

	// Init handlers for mobile apps routes.
	apps.HandlerWithOptions(appsService, apps.ChiServerOptions{
		BaseURL:          "/api/v1/apps",
		BaseRouter:       router,
		Middlewares:      []apps.MiddlewareFunc{authService.Middleware},
		ErrorHandlerFunc: apps.ErrorHandlerFunc,
	})

	// Operational endpoints.
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	// Build HTTP server.
	hs := &http.Server{
		Addr:              cfg.HTTPServer.Address,
		ReadHeaderTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:       cfg.HTTPServer.IdleTimeout,
		Handler:           router,
	}

	// Graceful shutdown.
	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGHUP, syscall.SIGINT,
			syscall.SIGTERM, syscall.SIGQUIT, os.Interrupt)

		signal := <-sig

		logger.With(serverCtx, "signal", signal.String()).
			Infof("Shutting down server with %s timeout",
				cfg.HTTPServer.ShutdownTimeout)

		if err = hs.Shutdown(serverCtx); err != nil {
			logger.Errorf("graceful shutdown failed: %s", err)
		}
		serverStopCtx()
	}()

	// Start the HTTP server with graceful shutdown.
	logger.Infof("Server %v is running at %v", Version, cfg.HTTPServer.Address)
	if err = hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("run server failed: %w", err)
	}

	// Wait for server context to be stopped or force exit if timeout exceeded.
	select {
	case <-serverCtx.Done():
	case <-time.After(cfg.HTTPServer.ShutdownTimeout):
		return errors.New("graceful shutdown timed out.. forcing exit")
	}

	return nil
}

func initRootRouter(logger logger.Logger) *chi.Mux {
	router := chi.NewRouter()
	router.Use(accesslog.Handler(logger))
	router.Use(middleware.Recoverer)
	router.Use(gzip.DefaultHandler().WrapHandler)
	router.Use(unzip.Middleware(logger))

	return router
}
