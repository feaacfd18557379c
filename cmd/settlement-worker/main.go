package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/settleflow/settleflow-backend/internal/eventbus"
	"github.com/settleflow/settleflow-backend/internal/settlements"
	"github.com/settleflow/settleflow-backend/pkg/config"
	"github.com/settleflow/settleflow-backend/pkg/db"
	"github.com/settleflow/settleflow-backend/pkg/logger"
	"github.com/settleflow/settleflow-backend/pkg/metrics"
	"github.com/settleflow/settleflow-backend/pkg/migrate"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "settlement-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "settlement-worker"

	logg = logger.New(logger.Options{
		ServiceName: "settlement-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	source, err := eventbus.NewSource(context.Background(), cfg, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap event channel", err)
		os.Exit(1)
	}
	defer func() {
		if err := source.Close(); err != nil {
			logg.Error(context.Background(), "error closing event channel", err)
		}
	}()

	consumer, err := settlements.NewConsumer(settlements.ConsumerParams{
		Repo:       settlements.NewRepository(dbClient.DB()),
		DLQ:        settlements.NewDLQRepository(dbClient.DB()),
		Settlement: cfg.Settlement,
		Metrics:    metrics.NewPipelineMetrics(prometheus.DefaultRegisterer),
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create settlement consumer", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"channel":     cfg.Channel.Driver,
	})
	logg.Info(ctx, "starting settlement worker")

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return source.Receive(groupCtx, consumer.HandleMessage)
	})
	group.Go(func() error {
		return metrics.Serve(groupCtx, cfg.App.MetricsPort, prometheus.DefaultGatherer)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "settlement worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "settlement worker shutting down gracefully")
}
