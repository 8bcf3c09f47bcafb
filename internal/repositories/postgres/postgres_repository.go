package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
)

// PostgreSQLRepository implements the main Repository interface
type PostgreSQLRepository struct {
	db *gorm.DB

	user     repositories.UserRepository
	test     repositories.TestRepository
	question repositories.QuestionRepository
	option   repositories.OptionRepository
	attempt  repositories.AttemptRepository
	answer   repositories.AnswerRepository
}

// RepositoryConfig holds configuration for repository initialization
type RepositoryConfig struct {
	DB          *gorm.DB
	AutoMigrate bool
}

// NewPostgreSQLRepository creates a repository whose sub-repositories share db
func NewPostgreSQLRepository(db *gorm.DB) *PostgreSQLRepository {
	return &PostgreSQLRepository{
		db:       db,
		user:     NewUserPostgreSQL(db),
		test:     NewTestPostgreSQL(db),
		question: NewQuestionPostgreSQL(db),
		option:   NewOptionPostgreSQL(db),
		attempt:  NewAttemptPostgreSQL(db),
		answer:   NewAnswerPostgreSQL(db),
	}
}

func (r *PostgreSQLRepository) User() repositories.UserRepository         { return r.user }
func (r *PostgreSQLRepository) Test() repositories.TestRepository         { return r.test }
func (r *PostgreSQLRepository) Question() repositories.QuestionRepository { return r.question }
func (r *PostgreSQLRepository) Option() repositories.OptionRepository     { return r.option }
func (r *PostgreSQLRepository) Attempt() repositories.AttemptRepository   { return r.attempt }
func (r *PostgreSQLRepository) Answer() repositories.AnswerRepository     { return r.answer }

// WithTransaction executes a function within a database transaction
func (r *PostgreSQLRepository) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewPostgreSQLRepository(tx))
	})
}

// Ping checks the health of the database connection
func (r *PostgreSQLRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// Close closes the connection pool
func (r *PostgreSQLRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// Migrate creates or updates the schema
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Test{},
		&models.Question{},
		&models.AnswerOption{},
		&models.TestAttempt{},
		&models.AttemptAnswer{},
	)
}

// RepositoryManager implements the RepositoryManager interface
type RepositoryManager struct {
	config RepositoryConfig
	repo   repositories.Repository
}

// NewRepositoryManager creates a new repository manager
func NewRepositoryManager(config RepositoryConfig) repositories.RepositoryManager {
	return &RepositoryManager{
		config: config,
	}
}

// Initialize verifies connectivity, migrates if configured and builds the repository
func (rm *RepositoryManager) Initialize() error {
	if rm.config.DB == nil {
		return fmt.Errorf("database connection is required")
	}

	sqlDB, err := rm.config.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}

	if rm.config.AutoMigrate {
		if err := Migrate(rm.config.DB.WithContext(ctx)); err != nil {
			return fmt.Errorf("database migration failed: %w", err)
		}
	}

	rm.repo = NewPostgreSQLRepository(rm.config.DB)
	return nil
}

// GetRepository returns the repository instance
func (rm *RepositoryManager) GetRepository() repositories.Repository {
	return rm.repo
}

// HealthCheck checks the health of all repository connections
func (rm *RepositoryManager) HealthCheck(ctx context.Context) error {
	if rm.repo == nil {
		return fmt.Errorf("repository not initialized")
	}

	return rm.repo.Ping(ctx)
}

// Shutdown gracefully shuts down all repository connections
func (rm *RepositoryManager) Shutdown(ctx context.Context) error {
	if rm.repo == nil {
		return nil
	}

	return rm.repo.Close()
}
