package main

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	telemw "gopkg.in/telebot.v3/middleware"

	"ledgerbot/internal/amqp"
	"ledgerbot/internal/bot"
	"ledgerbot/internal/cache"
	"ledgerbot/internal/cli"
	"ledgerbot/internal/config"
	"ledgerbot/internal/log"
	"ledgerbot/internal/middleware/ratelimit"
	"ledgerbot/internal/middleware/trace"
	"ledgerbot/internal/services"
)

// Upper bound on remembered settled offers; older ones are evicted first.
const settledOffersMax = 10000

func main() {
	// Load .env file for local development (ignore errors in production/docker)
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	logger.Info("Starting ledgerbot")

	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).ValidateBot)

	rootCtx := log.WithContext(context.Background(), logger)
	store := cli.OpenStore(rootCtx, logger, cfg)
	defer store.Close()

	// Events are optional: the bot keeps recording when the broker is down.
	var publisher services.EventPublisher
	if cfg.EventsEnabled() {
		amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Warn("AMQP unavailable, expense events disabled", log.FieldError, err)
		} else {
			defer amqpClient.Close()
			publisher = amqpClient
		}
	} else {
		logger.Info("AMQP_URL not set, expense events disabled")
	}

	settled := cache.NewLRUCache[int64](settledOffersMax, cfg.SelectionTTL)
	cacheManager := cache.NewManager(func(removed int) {
		logger.WithComponent(log.ComponentCache).Debug("Expired settled offers", log.FieldCount, removed)
	})
	cacheManager.Register(settled)
	cacheManager.StartCleanup(time.Hour)
	defer cacheManager.Stop()

	limiter := ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RateLimitPerMinute})
	defer limiter.Stop()

	expenses := services.NewExpenseService(store, publisher, logger)
	selection := services.NewMonthSelection(store, settled, logger)
	handlers := bot.NewHandlers(store, expenses, selection, logger)

	b, err := bot.New(bot.Settings{
		Token:       cfg.TelegramToken,
		PollTimeout: cfg.TelegramPollTimeout,
	}, handlers)
	if err != nil {
		logger.Error("Failed to create Telegram bot", log.FieldError, err)
		os.Exit(1)
	}

	var stopOnce sync.Once
	stopBot := func() { stopOnce.Do(b.Stop) }

	ctx, done := cli.GracefulShutdown(logger, 15*time.Second, stopBot)

	tracer := trace.NewMiddleware(log.WithContext(ctx, logger), logger)
	handlers.Register(b, tracer.Middleware(), telemw.Recover(handlers.OnError), limiter.Middleware())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Bot polling started", "bot", b.Me.Username)
		b.Start()
		if ctx.Err() == nil {
			return errors.New("bot polling stopped unexpectedly")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		stopBot()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Bot stopped", log.FieldError, err)
	}
	if ctx.Err() != nil {
		<-done
	}

	metrics := tracer.GetMetrics()
	logger.Info("ledgerbot stopped",
		"updates", metrics.TotalUpdates,
		"failed_updates", metrics.FailedUpdates,
		"rate_limited", limiter.GetMetrics().TotalHits)
}
