package repositories

import "context"

// Repository aggregates every repository the service needs
type Repository interface {
	User() UserRepository
	Test() TestRepository
	Question() QuestionRepository
	Option() OptionRepository
	Attempt() AttemptRepository
	Answer() AnswerRepository

	// WithTransaction runs fn against a repository bound to one transaction;
	// any error returned by fn rolls everything back
	WithTransaction(ctx context.Context, fn func(Repository) error) error

	Ping(ctx context.Context) error
	Close() error
}

// RepositoryManager owns the lifecycle of a Repository
type RepositoryManager interface {
	Initialize() error
	GetRepository() Repository
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
