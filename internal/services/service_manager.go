package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/SAP-F-2025/quiz-service/internal/auth"
	"github.com/SAP-F-2025/quiz-service/internal/cache"
	"github.com/SAP-F-2025/quiz-service/internal/events"
	"github.com/SAP-F-2025/quiz-service/internal/grading"
	"github.com/SAP-F-2025/quiz-service/internal/lock"
	"github.com/SAP-F-2025/quiz-service/internal/monitoring"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
	"github.com/SAP-F-2025/quiz-service/internal/validator"
)

// ServiceManagerConfig holds configuration for the service manager
type ServiceManagerConfig struct {
	DefaultPassingScore int
	ConflictRetries     int
	Statistics          StatisticsConfig
}

// Dependencies are the shared collaborators handed to every service
type Dependencies struct {
	Repo        repositories.Repository
	RepoManager repositories.RepositoryManager // optional, used for health and shutdown
	Cache       *cache.CacheManager
	Locker      lock.Locker
	Grader      grading.Grader
	Publisher   events.EventPublisher
	Metrics     *monitoring.Metrics
	Tokens      TokenIssuer
	Revocations auth.RevocationStore
	Clock       Clock
	Logger      *slog.Logger
	Validator   *validator.Validator
}

// serviceManager implements ServiceManager interface
type serviceManager struct {
	deps   Dependencies
	config ServiceManagerConfig
	logger *slog.Logger

	// Service instances
	userService       UserService
	testService       TestService
	attemptService    AttemptService
	statisticsService StatisticsService
	exportService     ExportService

	// Lifecycle management
	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

// NewServiceManager creates a new service manager with all dependencies
func NewServiceManager(deps Dependencies, config ServiceManagerConfig) ServiceManager {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Validator == nil {
		deps.Validator = validator.New()
	}
	if deps.Cache == nil {
		deps.Cache = cache.NewCacheManager(nil)
	}
	if deps.Revocations == nil {
		deps.Revocations = auth.NewMemoryRevocationStore()
	}
	if config.DefaultPassingScore == 0 {
		config.DefaultPassingScore = 60
	}
	return &serviceManager{
		deps:   deps,
		config: config,
		logger: deps.Logger,
	}
}

// Initialize sets up all services and their dependencies
func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}
	if sm.deps.Repo == nil {
		return errors.New("service manager requires a repository")
	}
	if sm.deps.Tokens == nil {
		return errors.New("service manager requires a token issuer")
	}

	sm.logger.Info("Initializing service manager")
	d := sm.deps

	sm.userService = NewUserService(d.Repo, d.Cache, d.Tokens, d.Revocations, sm.logger, d.Validator)
	sm.testService = NewTestService(d.Repo, d.Cache, sm.logger, d.Validator, sm.config.DefaultPassingScore)
	sm.attemptService = NewAttemptService(AttemptDeps{
		Repo:            d.Repo,
		Locker:          d.Locker,
		Grader:          d.Grader,
		Publisher:       d.Publisher,
		Cache:           d.Cache,
		Metrics:         d.Metrics,
		Clock:           d.Clock,
		Logger:          sm.logger,
		Validator:       d.Validator,
		ConflictRetries: sm.config.ConflictRetries,
	})
	sm.statisticsService = NewStatisticsService(d.Repo, d.Cache, sm.config.Statistics, sm.logger)
	sm.exportService = NewExportService(d.Repo, sm.statisticsService, sm.logger)

	sm.initialized = true
	sm.logger.Info("Service manager initialized successfully")
	return nil
}

// Service getters
func (sm *serviceManager) Users() UserService {
	sm.mustBeInitialized()
	return sm.userService
}

func (sm *serviceManager) Tests() TestService {
	sm.mustBeInitialized()
	return sm.testService
}

func (sm *serviceManager) Attempts() AttemptService {
	sm.mustBeInitialized()
	return sm.attemptService
}

func (sm *serviceManager) Statistics() StatisticsService {
	sm.mustBeInitialized()
	return sm.statisticsService
}

func (sm *serviceManager) Export() ExportService {
	sm.mustBeInitialized()
	return sm.exportService
}

func (sm *serviceManager) mustBeInitialized() {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
}

// Health and lifecycle
func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		return fmt.Errorf("service manager not initialized")
	}
	if sm.shutdown {
		return fmt.Errorf("service manager is shut down")
	}

	if sm.deps.RepoManager != nil {
		if err := sm.deps.RepoManager.HealthCheck(ctx); err != nil {
			return fmt.Errorf("repository health check failed: %w", err)
		}
	} else if err := sm.deps.Repo.Ping(ctx); err != nil {
		return fmt.Errorf("repository health check failed: %w", err)
	}

	// the cache is optional; its absence degrades statistics to recomputation
	if err := sm.deps.Cache.HealthCheck(ctx); err != nil && !errors.Is(err, cache.ErrCacheNotAvailable) {
		return err
	}
	return nil
}

func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}

	sm.logger.Info("Shutting down service manager")

	var errs []error
	if sm.deps.Publisher != nil {
		if err := sm.deps.Publisher.Close(); err != nil {
			sm.logger.Error("Failed to close event publisher", "error", err)
			errs = append(errs, err)
		}
	}
	if sm.deps.RepoManager != nil {
		if err := sm.deps.RepoManager.Shutdown(ctx); err != nil {
			sm.logger.Error("Failed to shutdown repository manager", "error", err)
			errs = append(errs, err)
		}
	}

	sm.shutdown = true
	sm.logger.Info("Service manager shut down completed")
	return errors.Join(errs...)
}
