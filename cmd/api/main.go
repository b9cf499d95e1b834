package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Raimpz/simple-chat/internal/cache"
	"github.com/Raimpz/simple-chat/internal/config"
	"github.com/Raimpz/simple-chat/internal/database"
	"github.com/Raimpz/simple-chat/internal/handlers"
	"github.com/Raimpz/simple-chat/internal/jobs"
	"github.com/Raimpz/simple-chat/internal/log"
	"github.com/Raimpz/simple-chat/internal/notify"
	"github.com/Raimpz/simple-chat/internal/realtime"
	"github.com/Raimpz/simple-chat/internal/repository"
	"github.com/Raimpz/simple-chat/internal/repository/postgres"
	"github.com/Raimpz/simple-chat/internal/repository/sqlite"
	"github.com/Raimpz/simple-chat/internal/security"
	"github.com/Raimpz/simple-chat/internal/server"
	"github.com/Raimpz/simple-chat/internal/service"
	"github.com/Raimpz/simple-chat/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stores, checks, closeDB, err := openStores(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("failed to open database")
	}
	defer closeDB()

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect redis")
		}
		defer redisClient.Close()
		checks = append(checks, handlers.HealthCheck{Name: "cache", Ping: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}})
	} else {
		logger.Warn().Msg("redis not configured: mail is logged and realtime delivery stays in-process")
	}

	var notifier service.Notifier = notify.NewLogNotifier(logger)
	if redisClient != nil {
		notifier = notify.NewQueueNotifier(redisClient, cfg.Redis.MailStream)
	}

	var avatars service.AvatarStore
	if cfg.Storage.Enabled() {
		objectStore, err := storage.NewObjectStore(cfg.Storage)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to init object store")
		}
		if err := objectStore.EnsureBucket(ctx); err != nil {
			logger.Warn().Err(err).Msg("ensure bucket failed")
		}
		avatars = objectStore
	}

	tokens, err := security.NewTokenService(cfg.Security)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init token service")
	}
	cipher, err := security.NewFieldCipher(cfg.Security.EncryptionKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init message cipher")
	}
	hasher := security.NewPasswordHasher(security.ParamsFromConfig(cfg.Security.Argon2))

	hub := realtime.NewHub(redisClient, cfg.Redis.PubSubPrefix, logger.With().Str("component", "hub").Logger())
	go func() {
		if err := hub.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("hub relay stopped")
		}
	}()

	authService := service.NewAuthService(stores.Users, hasher, tokens, notifier, cfg.Security.ResetCodeTTL, logger)
	messageService := service.NewMessageService(stores.Users, stores.Messages, cipher, hub, logger)
	endpoint := realtime.NewEndpoint(
		ctx,
		hub,
		realtime.NewAuthenticator(tokens, stores.Users, logger),
		messageService,
		cfg.AllowCORSOrigins,
		logger.With().Str("component", "ws").Logger(),
	)

	handlerSet := handlers.NewHandlerSet(logger, handlers.Deps{
		Auth:        authService,
		Users:       service.NewUserService(stores.Users, avatars, cfg.Storage.MaxAvatarSize, logger),
		Friends:     service.NewFriendService(stores.Users, stores.FriendRequests, logger),
		Messages:    messageService,
		Tokens:      tokens,
		UserStore:   stores.Users,
		WebSocket:   endpoint.Handle,
		Checks:      checks,
		Environment: cfg.Environment,
	})
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	scheduler := jobs.NewScheduler(stores.Users, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server failed")
			stop()
		}
	}()

	waitForShutdown(ctx, logger, httpServer, scheduler)
}

// openStores builds the repositories for the configured driver.
func openStores(ctx context.Context, cfg config.DatabaseConfig) (repository.Stores, []handlers.HealthCheck, func(), error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		pool, err := database.NewPostgresPool(ctx, cfg)
		if err != nil {
			return repository.Stores{}, nil, nil, err
		}
		if err := database.MigratePostgres(ctx, pool); err != nil {
			pool.Close()
			return repository.Stores{}, nil, nil, err
		}
		check := handlers.HealthCheck{Name: "database", Ping: pool.Ping}
		return postgres.NewStores(pool), []handlers.HealthCheck{check}, pool.Close, nil

	case config.DriverSQLite:
		db, err := database.NewSQLite(cfg)
		if err != nil {
			return repository.Stores{}, nil, nil, err
		}
		if err := sqlite.Migrate(db); err != nil {
			return repository.Stores{}, nil, nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return repository.Stores{}, nil, nil, err
		}
		check := handlers.HealthCheck{Name: "database", Ping: sqlDB.PingContext}
		return sqlite.NewStores(db), []handlers.HealthCheck{check}, func() { _ = sqlDB.Close() }, nil
	}
	return repository.Stores{}, nil, nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

func waitForShutdown(ctx context.Context, logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler) {
	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}

	scheduler.Stop(shutdownCtx)

	logger.Info().Msg("server exited cleanly")
}
