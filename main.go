package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/SAP-F-2025/quiz-service/internal/auth"
	"github.com/SAP-F-2025/quiz-service/internal/cache"
	"github.com/SAP-F-2025/quiz-service/internal/config"
	"github.com/SAP-F-2025/quiz-service/internal/events"
	"github.com/SAP-F-2025/quiz-service/internal/grading"
	"github.com/SAP-F-2025/quiz-service/internal/handlers"
	"github.com/SAP-F-2025/quiz-service/internal/lock"
	"github.com/SAP-F-2025/quiz-service/internal/monitoring"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
	"github.com/SAP-F-2025/quiz-service/internal/repositories/memory"
	"github.com/SAP-F-2025/quiz-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/quiz-service/internal/services"
	"github.com/SAP-F-2025/quiz-service/internal/utils"
	"github.com/SAP-F-2025/quiz-service/internal/validator"
	"github.com/SAP-F-2025/quiz-service/pkg"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	slogLogger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	logger := utils.NewSlogLogger(slogLogger)

	// Initialize storage
	var (
		repo        repositories.Repository
		repoManager repositories.RepositoryManager
	)
	switch cfg.StorageDriver {
	case "memory":
		repo = memory.NewRepository()
		logger.Warn("Using in-memory storage, data is lost on restart")
	default:
		db, err := pkg.InitDatabase(cfg)
		if err != nil {
			log.Fatalf("Failed to initialize database: %v", err)
		}
		repoManager = postgres.NewRepositoryManager(postgres.RepositoryConfig{
			DB:          db,
			AutoMigrate: cfg.AutoMigrate,
		})
		if err := repoManager.Initialize(); err != nil {
			log.Fatalf("Failed to initialize repositories: %v", err)
		}
		repo = repoManager.GetRepository()
	}

	// Initialize Redis (if configured)
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = pkg.NewRedisClient(cfg)
		if err != nil {
			if cfg.Attempt.DistributedLock {
				log.Fatalf("Failed to initialize Redis: %v", err)
			}
			logger.Warn("Redis unavailable, statistics cache disabled", "error", err)
		}
	}
	cacheManager := cache.NewCacheManager(redisClient)

	// Attempt locks: in-process always, redis on top when attempts are served by several replicas
	var locker lock.Locker = lock.NewKeyedMutex()
	if cfg.Attempt.DistributedLock && redisClient != nil {
		locker = lock.Chain{locker, lock.NewRedisLocker(redisClient, lock.RedisLockerConfig{
			TTL:        cfg.Attempt.LockTTL,
			Retries:    cfg.Attempt.LockRetries,
			RetryDelay: cfg.Attempt.LockRetryDelay,
		}, slogLogger)}
	}
	locker = lock.WithTimeout(locker, cfg.Attempt.LockTTL)

	// Event publisher: kafka when brokers are configured, in-process otherwise
	publisher, err := events.NewWatermillPublisher(events.PublisherConfig{
		Brokers:     cfg.Kafka.Brokers,
		TopicPrefix: cfg.Kafka.TopicPrefix,
	}, slogLogger)
	if err != nil {
		log.Fatalf("Failed to initialize event publisher: %v", err)
	}

	// Authentication
	var revocations auth.RevocationStore = auth.NewMemoryRevocationStore()
	if redisClient != nil {
		revocations = auth.NewCacheRevocationStore(cacheManager)
	}
	tokens := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.Issuer, revocations)
	var verifier auth.Verifier = tokens
	if cfg.Auth.Provider == "casdoor" {
		verifier = auth.ChainVerifier{tokens, auth.NewCasdoorVerifier(cfg.Casdoor, repo.User(), slogLogger)}
	}

	metrics := monitoring.NewMetrics()

	// Initialize services
	serviceManager := services.NewServiceManager(services.Dependencies{
		Repo:        repo,
		RepoManager: repoManager,
		Cache:       cacheManager,
		Locker:      locker,
		Grader:      grading.NewDefaultGrader(grading.WithMaxEditDistance(cfg.Attempt.MaxEditDistance)),
		Publisher:   publisher,
		Metrics:     metrics,
		Tokens:      tokens,
		Revocations: revocations,
		Clock:       services.SystemClock,
		Logger:      slogLogger,
		Validator:   validator.New(),
	}, services.ServiceManagerConfig{
		DefaultPassingScore: cfg.Attempt.DefaultPassingScore,
		Statistics: services.StatisticsConfig{
			CacheTTL:       cfg.Stats.CacheTTL,
			RecentActivity: cfg.Stats.RecentActivity,
			PopularTests:   cfg.Stats.PopularTests,
		},
	})
	if err := serviceManager.Initialize(context.Background()); err != nil {
		log.Fatalf("Failed to initialize services: %v", err)
	}

	if cfg.Admin.Email != "" && cfg.Admin.Password != "" {
		if _, err := serviceManager.Users().EnsureAdmin(context.Background(), cfg.Admin.Email, cfg.Admin.Password); err != nil {
			log.Fatalf("Failed to bootstrap administrator: %v", err)
		}
	}

	// Setup Gin router
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handlers.SetupMiddleware(router, logger, handlers.MiddlewareConfig{
		RequestTimeout: cfg.RequestTimeout,
		Metrics:        metrics,
	})

	handlerManager := handlers.NewHandlerManager(serviceManager, verifier, metrics, handlers.RouterConfig{
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
	}, logger)
	handlerManager.SetupRoutes(router)

	// Create HTTP server
	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Starting server", "port", cfg.Port, "environment", cfg.Environment, "storage", cfg.StorageDriver)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	// closes the publisher and the database
	if err := serviceManager.Shutdown(ctx); err != nil {
		logger.Error("Failed to shutdown services", "error", err)
	}

	if redisClient != nil {
		redisClient.Close()
	}

	logger.Info("Server exited")
}
