package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/example/meeting-lifecycle/internal/application"
	"github.com/example/meeting-lifecycle/internal/config"
	"github.com/example/meeting-lifecycle/internal/events"
	httptransport "github.com/example/meeting-lifecycle/internal/http"
	"github.com/example/meeting-lifecycle/internal/logging"
	"github.com/example/meeting-lifecycle/internal/persistence"
	"github.com/example/meeting-lifecycle/internal/persistence/memory"
	"github.com/example/meeting-lifecycle/internal/persistence/sqlite"
	"github.com/example/meeting-lifecycle/internal/persistence/sqlite/migration"
	"github.com/example/meeting-lifecycle/internal/recurrence"
	"github.com/example/meeting-lifecycle/internal/workflow"
)

func main() {
	bootstrap := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		bootstrap.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("scheduler stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	store, health, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	publisher, closePublisher, err := newPublisher(cfg, logger)
	if err != nil {
		return err
	}
	defer closePublisher()

	app := newServices(cfg, store, publisher, uuid.NewString, time.Now, logger)
	if err := loadCatalog(ctx, cfg.WorkflowCatalog, app.workflows, logger); err != nil {
		return err
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           newHandler(app, health, logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("scheduler API listening",
		"addr", server.Addr,
		"storage", cfg.Storage,
		"event_sink", cfg.EventSink,
		"timezone", cfg.Location.String(),
	)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server encountered error: %w", err)
	}
	return nil
}

// openStore returns the configured backend, already migrated, and a health probe.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (persistence.Store, func(context.Context) error, error) {
	if cfg.Storage == config.StorageMemory {
		logger.Warn("using in-memory storage; data is lost on restart")
		return memory.New(), nil, nil
	}

	storage, err := sqlite.Open(migration.DefaultSQLiteConfig(cfg.SQLiteDSN))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open storage: %w", err)
	}
	if err := storage.Migrate(ctx, logger); err != nil {
		_ = storage.Close()
		return nil, nil, fmt.Errorf("failed to apply migrations: %w", err)
	}
	return storage, storage.Ping, nil
}

// newPublisher selects the event sink. The returned func releases the connection.
func newPublisher(cfg config.Config, logger *slog.Logger) (events.Publisher, func(), error) {
	logPublisher := events.LogPublisher{Logger: logger.With("component", "events")}
	if cfg.EventSink != config.EventSinkNATS {
		return logPublisher, func() {}, nil
	}

	conn, err := events.Connect(cfg.NATSURL, logger)
	if err != nil {
		return nil, nil, err
	}
	publisher := events.Fanout{logPublisher, events.NewNATSPublisher(conn, cfg.NATSSubjectPrefix)}
	return publisher, func() {
		if err := conn.Drain(); err != nil {
			logger.Error("failed to drain nats connection", "error", err)
		}
	}, nil
}

type services struct {
	availability *application.AvailabilityService
	series       *application.SeriesService
	workflows    *application.WorkflowService
}

func newServices(cfg config.Config, store persistence.Store, publisher events.Publisher, idGenerator func() string, now func() time.Time, logger *slog.Logger) services {
	engine := recurrence.NewEngine(cfg.Location, recurrence.WithMaxOccurrences(cfg.MaxOccurrences))
	policy := application.SlotPolicy{MinMinutes: cfg.SlotMinMinutes, MaxMinutes: cfg.SlotMaxMinutes}

	availabilityService := application.NewAvailabilityService(store, policy, logger)
	seriesService := application.NewSeriesServiceWithLogger(store, availabilityService, engine, publisher, idGenerator, now, logger)
	seriesService.SetRetentionHorizon(cfg.RetentionHorizon)

	return services{
		availability: availabilityService,
		series:       seriesService,
		workflows:    application.NewWorkflowServiceWithLogger(store, publisher, idGenerator, now, logger),
	}
}

func newHandler(app services, health func(context.Context) error, logger *slog.Logger) http.Handler {
	return httptransport.NewRouter(httptransport.RouterConfig{
		Availability:   httptransport.NewAvailabilityHandler(app.availability, logger),
		Series:         httptransport.NewSeriesHandler(app.series, logger, time.Now),
		Workflows:      httptransport.NewWorkflowHandler(app.workflows, logger),
		Health:         health,
		Logger:         logger,
		RequestTimeout: 25 * time.Second,
	})
}

// loadCatalog registers every definition from the YAML catalog at path.
// An empty path is a no-op.
func loadCatalog(ctx context.Context, path string, workflows *application.WorkflowService, logger *slog.Logger) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open workflow catalog: %w", err)
	}
	defer f.Close()

	defs, err := workflow.LoadCatalog(f)
	if err != nil {
		return fmt.Errorf("failed to load workflow catalog %s: %w", path, err)
	}
	for _, def := range defs {
		if _, err := workflows.RegisterDefinition(ctx, def); err != nil {
			return fmt.Errorf("failed to register workflow %s: %w", def.ID, err)
		}
	}
	logger.Info("workflow catalog loaded", "path", path, "definitions", len(defs))
	return nil
}
