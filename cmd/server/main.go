// Package main provides the entry point for the thematic screener HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/helixir/thematic-screener-service/internal/bigdata"
	"github.com/helixir/thematic-screener-service/internal/config"
	"github.com/helixir/thematic-screener-service/internal/database"
	"github.com/helixir/thematic-screener-service/internal/examples"
	"github.com/helixir/thematic-screener-service/internal/observability"
	"github.com/helixir/thematic-screener-service/internal/repository"
	"github.com/helixir/thematic-screener-service/internal/screening"
	httpserver "github.com/helixir/thematic-screener-service/internal/server/http"
	"github.com/helixir/thematic-screener-service/internal/status"
	"github.com/helixir/thematic-screener-service/internal/telemetry"
	"github.com/helixir/thematic-screener-service/internal/validation"
)

const serviceName = "thematic-screener-service"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Set up structured logging.
	logger := observability.NewLogger(observability.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
		Service:    serviceName,
		Version:    cfg.Version,
	})
	logger = observability.WithComponent(logger, "server")
	logger.Info().Msg("starting")

	// Set up context with graceful shutdown via OS signals.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Status store backend.
	var (
		statusRepo repository.StatusRepository
		health     httpserver.HealthChecker
	)
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		db, err := database.New(ctx, &cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()

		if cfg.Database.MigrationAutoRun {
			if err := database.MigrateUp(db, cfg.Database.MigrationPath, logger); err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}
		}
		statusRepo = repository.NewPgStatusRepository(db)
		health = db
	default:
		logger.Warn().Msg("using in-memory status store; requests are lost on restart")
		statusRepo = repository.NewMemoryStatusRepository()
	}
	store := status.NewStore(statusRepo)

	metrics := observability.NewMetrics(cfg.Metrics.Namespace)

	// Bigdata client. Lookups need it even when analysis is not configured so
	// that every request fails the same way.
	bigdataClient := bigdata.New(bigdata.Config{
		BaseURL:           cfg.Bigdata.BaseURL,
		APIKey:            cfg.Bigdata.APIKey,
		LLMAPIKey:         cfg.Bigdata.OpenAIAPIKey,
		Timeout:           cfg.Bigdata.Timeout,
		WorkflowTimeout:   cfg.Bigdata.WorkflowTimeout,
		RateLimit:         cfg.Bigdata.RateLimit,
		BurstSize:         cfg.Bigdata.Burst,
		MaxRetries:        cfg.Bigdata.MaxRetries,
		LookupBatchSize:   cfg.Bigdata.KnowledgeGraph.BatchSize,
		LookupConcurrency: cfg.Bigdata.KnowledgeGraph.Concurrency,
		CacheSize:         cfg.Bigdata.KnowledgeGraph.CacheSize,
		CacheTTL:          cfg.Bigdata.KnowledgeGraph.CacheTTL,
	})
	var workflow screening.Workflow
	if cfg.AnalysisConfigured() {
		workflow = bigdataClient
	} else {
		logger.Warn().Msg("SCREENER_BIGDATA_API_KEY not set; submitted analyses will fail")
	}

	tracker := newTracker(cfg, bigdataClient, logger)
	defer func() {
		if err := tracker.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close telemetry sinks")
		}
	}()

	// Background tasks outlive the request that started them but not the process.
	taskCtx, cancelTasks := context.WithCancel(context.Background())
	defer cancelTasks()

	orchestrator, err := screening.NewOrchestrator(screening.Dependencies{
		Store:         store,
		Resolver:      bigdataClient,
		Workflow:      workflow,
		Tracker:       tracker,
		Metrics:       metrics,
		Logger:        logger,
		ClientVersion: bigdataClient.Version(),
		BaseContext:   taskCtx,
	})
	if err != nil {
		return fmt.Errorf("create orchestrator: %w", err)
	}

	deps := httpserver.Dependencies{
		Submitter: orchestrator,
		Statuses:  store,
		Validator: validation.New(),
		DB:        health,
		Metrics:   metrics,
		Logger:    logger,
	}
	catalog, err := examples.LoadDir(cfg.ExamplesDir)
	switch {
	case err == nil:
		deps.Examples = catalog
		logger.Info().Strs("examples", catalog.Names()).Msg("examples loaded")
	case cfg.DemoMode:
		return fmt.Errorf("load examples for demo mode: %w", err)
	default:
		logger.Warn().Err(err).Str("examples_dir", cfg.ExamplesDir).Msg("examples not loaded")
	}

	httpCfg := httpserver.Config{
		Address:              cfg.Server.HTTPAddress(),
		ReadTimeout:          cfg.Server.ReadTimeout,
		WriteTimeout:         cfg.Server.WriteTimeout,
		IdleTimeout:          2 * time.Minute,
		ShutdownTimeout:      cfg.Server.ShutdownTimeout,
		Version:              cfg.Version,
		AccessToken:          cfg.Auth.AccessToken,
		DemoMode:             cfg.DemoMode,
		TemplatesDir:         cfg.TemplatesDir,
		DefaultLLMModel:      cfg.Workflow.LLMModel,
		DefaultDocumentLimit: cfg.Workflow.DocumentLimit,
		DefaultBatchSize:     cfg.Workflow.BatchSize,
	}
	httpSrv := httpserver.NewServer(httpCfg, deps)

	// Set up Prometheus metrics handler on a separate port if configured.
	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.Metrics.Path, promhttp.Handler())
		metricsServer = &http.Server{
			Addr:         cfg.Server.MetricsAddress(),
			Handler:      metricsMux,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}
	}

	// Channel to collect server errors.
	errCh := make(chan error, 2)

	go func() {
		if err := httpSrv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	if metricsServer != nil {
		go func() {
			logger.Info().
				Str("address", metricsServer.Addr).
				Msg("metrics server starting")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server error: %w", err)
			}
		}()
	}

	tracker.Track(ctx, telemetry.Event{
		Name:       telemetry.EventServiceStart,
		Properties: map[string]any{"bigdataClientVersion": bigdataClient.Version()},
	})

	readyLog := logger.Info().
		Str("http_address", httpCfg.Address).
		Bool("analysis_configured", cfg.AnalysisConfigured()).
		Bool("demo_mode", cfg.DemoMode).
		Str("database_driver", cfg.Database.Driver)
	if metricsServer != nil {
		readyLog = readyLog.Str("metrics_address", metricsServer.Addr)
	}
	readyLog.Msg("thematic-screener-service is ready")

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		logger.Info().Msg("received shutdown signal")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error")
		return err
	}

	// Graceful shutdown.
	logger.Info().Msg("shutting down thematic-screener-service")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("HTTP server shutdown error")
	}

	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("metrics server shutdown error")
		}
	}

	// Wait for in-flight screenings, then cancel whatever is left.
	drained := make(chan struct{})
	go func() {
		orchestrator.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		logger.Info().Msg("in-flight screenings finished")
	case <-shutdownCtx.Done():
		logger.Warn().Msg("cancelling in-flight screenings due to shutdown timeout")
		cancelTasks()
		<-drained
	}

	logger.Info().Msg("thematic-screener-service shutdown complete")
	return nil
}

// newTracker builds the telemetry tracker from the configured sinks.
func newTracker(cfg *config.Config, client *bigdata.Client, logger zerolog.Logger) *telemetry.Tracker {
	if !cfg.Telemetry.Enabled {
		return telemetry.NewTracker(logger)
	}

	var sinks []telemetry.Sink
	if cfg.Telemetry.Bigdata && cfg.AnalysisConfigured() {
		sinks = append(sinks, telemetry.NewBigdataSink(client))
	}
	if cfg.Telemetry.Kafka.Enabled {
		sinks = append(sinks, telemetry.NewKafkaSink(telemetry.KafkaConfig{
			Brokers:      cfg.Telemetry.Kafka.Brokers,
			Topic:        cfg.Telemetry.Kafka.Topic,
			BatchSize:    cfg.Telemetry.Kafka.BatchSize,
			BatchTimeout: cfg.Telemetry.Kafka.BatchTimeout,
		}))
	}
	return telemetry.NewTracker(logger, sinks...)
}
