package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/forgo/vitals/internal/config"
	"github.com/forgo/vitals/internal/database"
	"github.com/forgo/vitals/internal/handler"
	"github.com/forgo/vitals/internal/jobs"
	"github.com/forgo/vitals/internal/logger"
	"github.com/forgo/vitals/internal/middleware"
	"github.com/forgo/vitals/internal/repository"
	"github.com/forgo/vitals/internal/tracing"
)

const serviceName = "vitals-server"

func main() {
	cfg, err := config.Load()
	if err != nil {
		// The configured logger depends on cfg; fall back to defaults.
		log := logger.New(config.Default().Log, serviceName)
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	log := logger.New(cfg.Log, serviceName)

	tp := tracing.New(cfg.Tracing, log)

	mgrCfg, err := cfg.ManagerConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid database configuration")
	}

	dbLog := log.With().Str("component", "database").Logger()
	acc := database.NewAccessor(func() (*database.Manager, error) {
		observer := database.Observers(
			database.NewLogObserver(dbLog, cfg.Log.SlowQueryThreshold),
			database.NewTraceObserver(tp.Tracer("github.com/forgo/vitals/internal/database")),
		)
		return database.NewManager(mgrCfg, database.SurrealDriver{},
			database.WithLogger(dbLog),
			database.WithObserver(observer),
		), nil
	}, dbLog)

	ctx := context.Background()
	db, status, err := acc.Init(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	log.Info().
		Str("env", cfg.Env).
		Str("status", string(status.Status)).
		Str("namespace", mgrCfg.Namespace).
		Str("database", mgrCfg.Database).
		Msg("database initialized")

	if err := repository.Migrate(ctx, db); err != nil {
		// The server still starts so /health can report the outage.
		log.Error().Err(err).Msg("schema migration failed")
	}

	alertRepo := repository.NewAlertRepository(db)

	var monitor *jobs.HealthMonitor
	if cfg.Health.Interval > 0 {
		monitor = jobs.NewHealthMonitor(db, alertRepo, log.With().Str("component", "health_monitor").Logger(), cfg.Health.Interval)
		monitor.Start()
	}

	healthHandler := handler.NewHealthHandler(db)
	alertHandler := handler.NewAlertHandler(alertRepo)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler.Health)
	mux.HandleFunc("GET /v1/alerts", alertHandler.List)
	mux.HandleFunc("GET /v1/alerts/{id}", alertHandler.Get)
	mux.HandleFunc("POST /v1/alerts", alertHandler.Create)
	mux.HandleFunc("POST /v1/alerts/ack", alertHandler.Acknowledge)

	wrapped := middleware.Chain(mux,
		middleware.RequestID,
		middleware.Logger(log),
		middleware.Recovery(log),
		middleware.Timeout(cfg.Server.WriteTimeout),
	)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      wrapped,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	if monitor != nil {
		monitor.Stop()
	}
	acc.Close(shutdownCtx)
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("tracer shutdown")
	}

	log.Info().Msg("server stopped")
}

