package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/Raimpz/simple-chat/internal/cache"
	"github.com/Raimpz/simple-chat/internal/config"
	"github.com/Raimpz/simple-chat/internal/log"
	"github.com/Raimpz/simple-chat/internal/mail"
	"github.com/Raimpz/simple-chat/internal/queue"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.LogLevel).With().Str("service", "mail-worker").Logger()
	if err := cfg.ValidateWorker(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer client.Close()

	processor := mail.NewProcessor(mail.NewSender(cfg.Mail, logger), cfg.Security.ResetCodeTTL, logger)
	consumer := queue.NewConsumer(
		client,
		cfg.Redis.MailStream,
		cfg.Redis.MailGroup,
		cfg.Redis.Consumer,
		cfg.Redis.ClaimInterval,
		logger,
		processor,
	)
	if err := consumer.EnsureGroup(ctx); err != nil {
		logger.Fatal().Err(err).Msg("create consumer group failed")
	}

	logger.Info().Str("stream", cfg.Redis.MailStream).Msg("mail worker started")
	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error().Err(err).Msg("consumer stopped unexpectedly")
	}
	logger.Info().Msg("mail worker stopped")
}
