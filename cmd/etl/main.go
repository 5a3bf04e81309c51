package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	httpadapter "github.com/couchcryptid/wildfire-etl/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/wildfire-etl/internal/adapter/kafka"
	"github.com/couchcryptid/wildfire-etl/internal/app"
	"github.com/couchcryptid/wildfire-etl/internal/config"
	"github.com/couchcryptid/wildfire-etl/internal/observability"
	"github.com/couchcryptid/wildfire-etl/internal/pipeline"
)

func main() {
	// A missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reporters := pipeline.MultiReporter{pipeline.LogReporter{Logger: logger}}
	var kafkaReporter *kafkaadapter.Reporter
	if cfg.KafkaEnabled {
		kafkaReporter = kafkaadapter.NewReporter(cfg, logger, metrics)
		reporters = append(reporters, kafkaReporter)
		logger.Info("kafka publishing enabled", "brokers", cfg.KafkaBrokers)
	}

	p, err := app.NewPipeline(ctx, cfg, reporters, logger, metrics)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start the refresh schedule.
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := p.Run(ctx, cfg.Schedule); err != nil {
			logger.Error("pipeline error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	select {
	case <-done:
	case <-shutdownCtx.Done():
		logger.Warn("pipeline did not stop before the shutdown timeout")
	}
	if kafkaReporter != nil {
		if err := kafkaReporter.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
