package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SAP-F-2025/gradebook-service/internal/cache"
	"github.com/SAP-F-2025/gradebook-service/internal/config"
	"github.com/SAP-F-2025/gradebook-service/internal/events"
	"github.com/SAP-F-2025/gradebook-service/internal/handlers"
	"github.com/SAP-F-2025/gradebook-service/internal/repositories"
	"github.com/SAP-F-2025/gradebook-service/internal/repositories/memory"
	"github.com/SAP-F-2025/gradebook-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/gradebook-service/internal/services"
	"github.com/SAP-F-2025/gradebook-service/internal/utils"
	"github.com/SAP-F-2025/gradebook-service/internal/validator"
	"github.com/SAP-F-2025/gradebook-service/pkg"
	"github.com/gin-gonic/gin"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := utils.NewServiceSlog(cfg.IsProduction())
	slog.SetDefault(logger)
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, cacheService, cleanup, err := setupStorage(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to set up storage", "backend", cfg.StorageBackend, "error", err)
		os.Exit(1)
	}
	defer cleanup()

	eventPublisher, err := cfg.Events.CreateEventPublisher(logger)
	if err != nil {
		logger.Error("Failed to create event publisher, falling back to mock", "error", err)
		eventPublisher = events.NewMockEventPublisher(logger)
	}
	defer func() {
		if err := eventPublisher.Close(); err != nil {
			logger.Error("Failed to close event publisher", "error", err)
		}
	}()

	v := validator.New()
	serviceManager := services.NewServiceManager(services.ServiceManagerConfig{
		Repo:      repo,
		Cache:     cacheService,
		CacheTTL:  cfg.CacheTTL,
		Publisher: eventPublisher,
		Logger:    logger,
		Validator: v,
	})

	var parser handlers.TokenParser
	if cfg.Auth.Enabled {
		parser = handlers.NewCasdoorTokenParser(cfg.Auth)
	} else {
		logger.Warn("Authentication disabled, trusting X-User-ID and X-User-Role headers")
	}

	handlerManager := handlers.NewHandlerManager(serviceManager, v, utils.NewSlogLogger(logger))
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handlerManager.NewRouter(parser),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Gradebook service listening",
			"port", cfg.Port,
			"environment", cfg.Environment,
			"storage", cfg.StorageBackend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down gradebook service")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", "error", err)
	}
}

// setupStorage opens the configured backend. Redis is optional: when it is
// unreachable the service runs without a cache.
func setupStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repositories.Repository, cache.CacheService, func(), error) {
	if cfg.StorageBackend == config.StorageBackendMemory {
		logger.Warn("Using in-memory storage; data is lost on restart")
		store := memory.NewStore()
		if err := seedMemoryStore(store, cfg.MemorySeedFile, logger); err != nil {
			return nil, nil, nil, err
		}
		return memory.NewRepository(store), cache.NewNoopCache(), func() {}, nil
	}

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := postgres.Migrate(db); err != nil {
		return nil, nil, nil, err
	}

	cleanup := func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	}

	var cacheService cache.CacheService
	redisClient, err := pkg.NewRedisClient(ctx, cfg)
	if err != nil {
		logger.Warn("Redis unavailable, caching disabled", "error", err)
		cacheService = cache.NewNoopCache()
	} else {
		cacheService = cache.NewRedisCache(redisClient, logger)
		dbCleanup := cleanup
		cleanup = func() {
			redisClient.Close()
			dbCleanup()
		}
	}

	return postgres.NewRepository(db), cacheService, cleanup, nil
}

// seedMemoryStore loads the periods and students the memory backend needs
// before grades can be saved. Without a seed file the store starts empty.
func seedMemoryStore(store *memory.Store, path string, logger *slog.Logger) error {
	if path == "" {
		logger.Warn("MEMORY_SEED_FILE not set; no periods or students exist, so score saves will fail until seeded")
		return nil
	}

	fixture, err := memory.LoadFixture(path)
	if err != nil {
		return err
	}
	seeded, err := store.Seed(fixture)
	if err != nil {
		return fmt.Errorf("invalid seed file %s: %w", path, err)
	}

	for i, id := range seeded.PeriodIDs {
		logger.Info("Seeded grading period",
			"period_id", id,
			"school_year", fixture.Periods[i].SchoolYear,
			"name", fixture.Periods[i].Name)
	}
	logger.Info("Seeded student accounts", "count", len(seeded.StudentIDs), "file", path)
	return nil
}
