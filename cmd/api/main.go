package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/cache"
	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/config"
	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/database"
	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/handlers"
	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/jobs"
	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/log"
	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/repository"
	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/resource"
	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/security"
	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/server"
	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/service"
	"github.com/Mr-Midnight-101/Department-Management-system-sub000/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment)

	ctx := context.Background()

	store, err := database.Open(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("failed to open database")
	}

	teachers := repository.NewTeacherRepository(store)
	if err := teachers.EnsureIndexes(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to ensure teacher indexes")
	}

	var (
		redisClient *redis.Client
		counts      cache.Counts = cache.NoCounts{}
	)
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect redis")
		}
		counts = cache.NewRedisCounts(redisClient, cfg.Redis.CountTTL)
	}

	engines := make([]*resource.Engine, 0, len(resource.All()))
	var students *resource.Engine
	for _, schema := range resource.All() {
		engine := resource.NewEngine(store, counts, schema)
		if err := engine.EnsureIndexes(ctx); err != nil {
			logger.Fatal().Err(err).Str("collection", schema.Name).Msg("failed to ensure indexes")
		}
		if schema.Name == resource.CollectionStudents {
			students = engine
		}
		engines = append(engines, engine)
	}

	objectStore, err := storage.New(cfg.Storage)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to init object store")
	}
	if err := objectStore.EnsureBucket(ctx); err != nil {
		logger.Warn().Err(err).Msg("ensure bucket failed")
	}

	tokens := security.NewTokens(
		cfg.Security.AccessSecret,
		cfg.Security.RefreshSecret,
		cfg.Security.AccessTTL,
		cfg.Security.RefreshTTL,
	)
	avatars := service.NewAvatarService(objectStore, cfg.Upload, logger)

	handlerSet := handlers.NewHandlerSet(handlers.Deps{
		Log:       logger,
		Config:    cfg,
		Store:     store,
		Redis:     redisClient,
		Auth:      service.NewAuthService(teachers, store, tokens, avatars, counts, logger),
		Settings:  service.NewSettingsService(repository.NewSettingsRepository(store), logger),
		Imports:   service.NewImportService(students, store, logger),
		Resources: engines,
	})
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	scheduler := jobs.NewScheduler(jobs.StagingSweep{
		Dir:     cfg.Upload.StagingDir,
		Pattern: service.StagingPattern,
		MaxAge:  cfg.Upload.MaxStagingAge,
	}, logger)
	if err := scheduler.Start(); err != nil {
		logger.Error().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, scheduler, store, redisClient)
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, scheduler *jobs.Scheduler, store repository.Store, redisClient *redis.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		if err := srv.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("forced shutdown failed")
		}
	}

	scheduler.Stop()

	if err := store.Close(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("database close error")
	}
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("redis close error")
		}
	}

	logger.Info().Msg("server exited cleanly")
}
