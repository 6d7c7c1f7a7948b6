package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"plotbot/config"
	"plotbot/pkg/alert"
	"plotbot/pkg/bot"
	"plotbot/pkg/logger"
	"plotbot/pkg/viber"
	"plotbot/service"
	"plotbot/storage"
	"plotbot/storage/memory"
	"plotbot/storage/postgres"
	"plotbot/storage/redis"
)

func main() {
	cfg := config.Load()

	log := logger.New(cfg.ServiceName, cfg.LoggerLevel)
	defer func() { _ = log.Zap().Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pgStore, err := postgres.New(ctx, cfg, log)
	if err != nil {
		log.Error("Failed to connect to postgres", logger.Error(err))
		os.Exit(1)
	}
	defer pgStore.Close()

	var guard storage.IGuard
	if cfg.RedisEnabled {
		guard, err = redis.New(ctx, cfg, log)
		if err != nil {
			log.Error("Failed to connect to redis", logger.Error(err))
			os.Exit(1)
		}
	} else {
		log.Info("Redis disabled, using in-process guard")
		guard = memory.NewGuard()
	}
	defer guard.Close()

	alerts, err := alert.New(cfg.AdminBotToken, cfg.AdminID, log)
	if err != nil {
		log.Warning("Admin alerts disabled", logger.Error(err))
		alerts = alert.Nop{}
	}

	client := viber.NewClient(cfg.ViberAPIURL, cfg.ViberAuthToken, cfg.ViberSenderName)

	svc := service.New(cfg, pgStore, client, alerts, log)
	b := bot.New(&cfg, svc, client, guard, log)

	go svc.Reminder().Run(ctx)

	if cfg.ViberWebhookURL != "" {
		// Viber calls the webhook back during registration, so the server must be up first.
		go func() {
			time.Sleep(2 * time.Second)
			if err := client.SetWebhook(ctx, cfg.ViberWebhookURL); err != nil {
				log.Error("Failed to register viber webhook", logger.Error(err))
				return
			}
			log.Info("Viber webhook registered", logger.String("url", cfg.ViberWebhookURL))
		}()
	}

	log.Info("Plot bot is starting...")
	if err := b.RunServer(ctx); err != nil {
		log.Error("HTTP server failed", logger.Error(err))
		os.Exit(1)
	}

	log.Info("Shutting down...")
}
