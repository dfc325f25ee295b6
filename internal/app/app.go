package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"student-records/internal/config"
	"student-records/internal/db"
	"student-records/internal/docs"
	"student-records/internal/health"
	"student-records/internal/messaging"
	"student-records/internal/metrics"
	"student-records/internal/middleware"
	"student-records/internal/student"
	"student-records/internal/telemetry"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

type App struct {
	config        *config.Config
	router        chi.Router
	server        *http.Server
	logger        *slog.Logger
	db            *bun.DB
	producer      *messaging.Producer
	meterProvider *sdkmetric.MeterProvider
	service       student.Service
}

// New wires every component. Resources opened before a failure are released
// before the error is returned.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	logger.Info("initializing application", "env", cfg.Env)

	app := &App{
		config: cfg,
		router: chi.NewRouter(),
		logger: logger,
	}
	defer func() {
		if err != nil {
			app.Close(context.Background())
		}
	}()

	app.meterProvider, err = telemetry.InitMeterProvider(ctx, cfg.Telemetry.OTLPEndpoint, ServiceName, Version, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	meter := otel.Meter(ServiceName)
	appMetrics, err := metrics.New(meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}
	if err := metrics.RegisterRuntime(meter); err != nil {
		logger.Warn("failed to register runtime metrics", "error", err)
	}

	app.db, err = db.New(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	if err := appMetrics.RegisterDB(app.db.DB, meter); err != nil {
		logger.Warn("failed to register connection pool metrics", "error", err)
	}

	if cfg.Database.EnsureSchema {
		if err := db.EnsureSchema(ctx, app.db, "school", (*student.Student)(nil)); err != nil {
			return nil, fmt.Errorf("failed to ensure schema: %w", err)
		}
		logger.Info("database schema ready")
	}

	var publisher student.EventPublisher
	if cfg.NATS.URL != "" {
		app.producer, err = messaging.NewProducer(cfg.NATS.URL, cfg.NATS.Subject, logger, appMetrics)
		if err != nil {
			// Events are best-effort; the API keeps working without them.
			logger.Warn("failed to initialize NATS producer", "error", err)
			app.producer = nil
			err = nil
		} else {
			publisher = app.producer
		}
	}

	repo := student.NewRepository(app.db, appMetrics, logger, cfg.Database.QueryTimeout)
	app.service = student.NewService(repo, student.NewExporter(), student.ServiceOptions{
		ExportPath: cfg.Export.Path,
		Publisher:  publisher,
		Metrics:    appMetrics,
		Logger:     logger,
	})

	app.routes()

	logger.Info("application initialized successfully")
	return app, nil
}

func (a *App) routes() {
	a.router.Use(chimw.RequestID)
	a.router.Use(chimw.RealIP)
	a.router.Use(middleware.Logger(a.logger))
	a.router.Use(chimw.Recoverer)
	a.router.Use(middleware.SecurityHeaders)
	a.router.Use(middleware.CORS(a.config.Server.CORSOrigins))

	health.NewHandler(a.db, a.config.Database.ConnectTimeout, a.logger).RegisterRoutes(a.router)
	docs.NewHandler().RegisterRoutes(a.router)

	studentHandler := student.NewHandler(a.service, a.logger)
	a.router.Route("/api/students", studentHandler.RegisterRoutes)
}

func (a *App) Handler() http.Handler {
	return a.router
}

func (a *App) Service() student.Service {
	return a.service
}

// Run blocks until the server stops. A graceful Shutdown returns nil.
func (a *App) Run() error {
	a.server = &http.Server{
		Addr:         ":" + a.config.Server.Port,
		Handler:      a.router,
		ReadTimeout:  a.config.Server.ReadTimeout,
		WriteTimeout: a.config.Server.WriteTimeout,
		IdleTimeout:  a.config.Server.IdleTimeout,
	}

	a.logger.Info("server starting", "port", a.config.Server.Port)
	if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("shutting down server")

	var errs []error
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
	}
	if err := a.Close(ctx); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Close releases the producer, meter provider and database pool.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("NATS close: %w", err))
		}
		a.producer = nil
	}
	if err := telemetry.Shutdown(ctx, a.meterProvider, a.logger); err != nil {
		errs = append(errs, err)
	}
	a.meterProvider = nil
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("database close: %w", err))
		}
		a.db = nil
	}
	return errors.Join(errs...)
}
