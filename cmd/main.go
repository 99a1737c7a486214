package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/courier-service/courier_service/internal/api/routes"
	"github.com/courier-service/courier_service/internal/infrastructure/config"
	"github.com/courier-service/courier_service/internal/infrastructure/di"
	"github.com/courier-service/courier_service/pkg/graceful"
	"github.com/courier-service/courier_service/pkg/logger"
	"github.com/courier-service/courier_service/pkg/metrics"
	"github.com/courier-service/courier_service/pkg/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	log := logger.New(cfg.LogLevel, cfg.Environment)
	defer log.Sync()

	tracingShutdown, err := tracing.InitTracer(context.Background(), tracing.Config{
		Enabled:      cfg.Tracing.Enabled,
		CollectorURL: cfg.Tracing.CollectorURL,
		Environment:  cfg.Environment,
		SampleRate:   cfg.Tracing.SampleRate,
		Insecure:     cfg.Tracing.Insecure,
	}, log.Zap())
	if err != nil {
		log.Fatal("Failed to initialize tracing", "error", err)
	}
	defer tracingShutdown(context.Background())

	container, err := di.NewContainer(cfg, log.Zap())
	if err != nil {
		log.Fatal("Failed to build container", "error", err)
	}

	router := routes.SetupRoutes(container)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				stats := container.SQLDB.Stats()
				metrics.DatabaseConnectionsGauge.WithLabelValues("open").Set(float64(stats.OpenConnections))
				metrics.DatabaseConnectionsGauge.WithLabelValues("in_use").Set(float64(stats.InUse))
				metrics.DatabaseConnectionsGauge.WithLabelValues("idle").Set(float64(stats.Idle))
			}
		}
	}()
	if cfg.Workers.AttestationSweepEnabled {
		if err := container.Sweeper.Start(workerCtx); err != nil {
			log.Fatal("Failed to start attestation sweeper", "error", err)
		}
		log.Info("Attestation sweeper started", "schedule", cfg.Workers.AttestationSweepSchedule)
	}

	server := &http.Server{
		Addr:           fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeout) * time.Second,
		// transfers stream their action log over SSE; writes stay open for
		// the full run
		WriteTimeout:   0,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.Info("Starting server", "addr", server.Addr, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", "error", err)
		}
	}()

	shutdown := graceful.NewShutdownManager(server, 30*time.Second, log)
	shutdown.OnStop("attestation-sweeper", func() {
		stopWorkers()
		container.Sweeper.Stop()
	})
	shutdown.OnClose("container", container.Close)
	shutdown.WaitForShutdown()
}
