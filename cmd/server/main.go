// Package main implements the entry point for the docshelf server, which
// manages a personal document library with background conversion of
// uploaded files and URLs.
package main

import (
	"database/sql"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"

	"github.com/fennwick/docshelf/internal/config"
	"github.com/fennwick/docshelf/internal/converter"
	"github.com/fennwick/docshelf/internal/platform/logger"
	"github.com/fennwick/docshelf/internal/platform/postgres"
	"github.com/fennwick/docshelf/internal/service"
	"github.com/fennwick/docshelf/internal/service/auth"
	"github.com/fennwick/docshelf/internal/store"
	"github.com/fennwick/docshelf/internal/worker"
)

// application bundles the initialized dependencies of the server process.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	userStore store.UserStore
	docStore  store.DocumentStore
	jobStore  store.JobStore

	jwtService       auth.JWTService
	passwordVerifier auth.PasswordVerifier

	ingestService   service.IngestService
	documentService service.DocumentService
	jobService      service.JobService

	runner *worker.Runner
}

func main() {
	// A missing .env file is fine: configuration also comes from the
	// environment and config.yaml.
	_ = godotenv.Load()

	app, err := initializeApp()
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer app.cleanup()

	if err := app.runner.Start(); err != nil {
		log.Fatalf("Failed to start worker pool: %v", err)
	}

	if err := app.startHTTPServer(app.setupRouter()); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// initializeApp loads configuration, connects the database, applies
// migrations and wires every service and the worker pool.
func initializeApp() (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	appLogger.Info("configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"worker_count", cfg.Worker.Count)

	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := postgres.MigrateUp(db, appLogger); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	userStore := postgres.NewPostgresUserStore(db, appLogger)
	docStore := postgres.NewPostgresDocumentStore(db, appLogger)
	jobStore := postgres.NewPostgresJobStore(db, appLogger)

	jwtService, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT service: %w", err)
	}

	registry := converter.NewRegistry()

	processor := worker.NewProcessor(
		jobStore,
		docStore,
		registry,
		nil,
		time.Duration(cfg.Worker.FetchTimeoutSeconds)*time.Second,
		appLogger,
	)
	runner := worker.NewRunner(jobStore, processor, worker.RunnerConfig{
		WorkerCount:     cfg.Worker.Count,
		QueueSize:       cfg.Worker.QueueSize,
		StuckJobAge:     time.Duration(cfg.Worker.StuckJobAgeMinutes) * time.Minute,
		MonitorInterval: time.Duration(cfg.Worker.MonitorIntervalSeconds) * time.Second,
	}, appLogger)

	ingestService, err := service.NewIngestService(
		docStore, jobStore, db, runner, registry, cfg.Ingest, appLogger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create ingest service: %w", err)
	}

	documentService, err := service.NewDocumentService(docStore, appLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create document service: %w", err)
	}

	jobService, err := service.NewJobService(jobStore, runner, appLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create job service: %w", err)
	}

	return &application{
		config:           cfg,
		logger:           appLogger,
		db:               db,
		userStore:        userStore,
		docStore:         docStore,
		jobStore:         jobStore,
		jwtService:       jwtService,
		passwordVerifier: auth.NewBcryptVerifier(),
		ingestService:    ingestService,
		documentService:  documentService,
		jobService:       jobService,
		runner:           runner,
	}, nil
}

// cleanup releases process-wide resources after the HTTP server has
// drained. The runner stops first so no worker writes against a closed
// database handle.
func (app *application) cleanup() {
	app.runner.Stop()

	if err := app.db.Close(); err != nil {
		app.logger.Error("failed to close database", "error", err)
	}
}

// healthHandler reports liveness, including database reachability.
func (app *application) healthHandler(w http.ResponseWriter, r *http.Request) {
	if err := app.db.PingContext(r.Context()); err != nil {
		app.logger.Error("health check database ping failed", "error", err)
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		app.logger.Error("failed to write health check response", "error", err)
	}
}
