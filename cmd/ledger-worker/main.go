package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"ledgerbot/internal/amqp"
	"ledgerbot/internal/backend"
	"ledgerbot/internal/cli"
	"ledgerbot/internal/config"
	"ledgerbot/internal/log"
	"ledgerbot/internal/worker"
)

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	logger.Info("Starting ledger-worker")

	cfg := cli.LoadAndValidateConfig(logger, func(c *config.Config) error {
		if err := c.Validate(); err != nil {
			return err
		}
		if !c.EventsEnabled() {
			return errors.New("AMQP_URL is required by the worker")
		}
		return nil
	})

	rootCtx := log.WithContext(context.Background(), logger)
	store := cli.OpenStore(rootCtx, logger, cfg)
	defer store.Close()

	sinkConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Failed to build sink configuration", log.FieldError, err)
		os.Exit(1)
	}
	sink, err := backend.NewFactory(logger).CreateSink(rootCtx, sinkConfig)
	if err != nil {
		logger.Error("Failed to initialize mirror sink", log.FieldError, err, "sink", sinkConfig.Type)
		os.Exit(1)
	}
	if sink.Cleanup != nil {
		defer sink.Cleanup()
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	mirror := worker.NewMirror(store, sink.Writer, logger)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)
	ctx = log.WithContext(ctx, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := amqpClient.ConsumeExpenseRecorded(gctx, mirror.HandleRecorded)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	if err := g.Wait(); err != nil {
		logger.Error("Message consumption failed", log.FieldError, err)
	}
	if ctx.Err() != nil {
		<-done
	}
	logger.Info("ledger-worker stopped")
}
