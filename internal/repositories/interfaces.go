package repositories

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/quiz-service/internal/models"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
	// ErrConflict reports a write that lost a race: a stale version or a closed attempt
	ErrConflict = errors.New("concurrent modification")
)

// IsNotFoundError normalises backend specific not-found errors
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, gorm.ErrRecordNotFound)
}

func IsDuplicateError(err error) bool {
	return errors.Is(err, ErrDuplicate) || errors.Is(err, gorm.ErrDuplicatedKey)
}

// ===== FILTERS =====

type UserFilters struct {
	Query  string // matches email, first or last name
	Limit  int
	Offset int
}

type TestFilters struct {
	IsActive  *bool
	CreatorID *uint
	Search    string // matches title or description
	Limit     int
	Offset    int
}

// AttemptFilters lists attempts newest first; Limit <= 0 returns every match
type AttemptFilters struct {
	UserID     *uint
	TestID     *uint
	IsFinished *bool
	Limit      int
	Offset     int
}

type QuestionOrder struct {
	QuestionID uint `json:"questionId"`
	OrderIndex int  `json:"orderIndex"`
}

// ===== REPOSITORIES =====

type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	List(ctx context.Context, filters UserFilters) ([]*models.User, int64, error)
	Count(ctx context.Context) (int64, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

type TestRepository interface {
	Create(ctx context.Context, test *models.Test) error
	GetByID(ctx context.Context, id uint) (*models.Test, error)
	GetByIDs(ctx context.Context, ids []uint) ([]*models.Test, error)
	Update(ctx context.Context, test *models.Test) error
	List(ctx context.Context, filters TestFilters) ([]*models.Test, int64, error)
	Count(ctx context.Context) (int64, error)
}

type QuestionRepository interface {
	Create(ctx context.Context, question *models.Question) error
	GetByID(ctx context.Context, id uint) (*models.Question, error)
	Update(ctx context.Context, question *models.Question) error
	// Delete removes the question together with its options
	Delete(ctx context.Context, id uint) error
	// ListByTest returns questions ordered by (orderIndex, id), options preloaded
	ListByTest(ctx context.Context, testID uint) ([]*models.Question, error)
	CountByTest(ctx context.Context, testID uint) (int64, error)
	MaxOrderIndex(ctx context.Context, testID uint) (int, error)
	UpdateOrder(ctx context.Context, testID uint, orders []QuestionOrder) error
}

type OptionRepository interface {
	Create(ctx context.Context, option *models.AnswerOption) error
	GetByID(ctx context.Context, id uint) (*models.AnswerOption, error)
	Update(ctx context.Context, option *models.AnswerOption) error
	Delete(ctx context.Context, id uint) error
	ListByQuestion(ctx context.Context, questionID uint) ([]*models.AnswerOption, error)
	CountByQuestion(ctx context.Context, questionID uint) (int64, error)
}

type AttemptRepository interface {
	Create(ctx context.Context, attempt *models.TestAttempt) error
	GetByID(ctx context.Context, id uint) (*models.TestAttempt, error)
	// GetByIDWithAnswers reads the attempt and its answers as one consistent view
	GetByIDWithAnswers(ctx context.Context, id uint) (*models.TestAttempt, error)
	ListByUserAndTest(ctx context.Context, userID, testID uint) ([]*models.TestAttempt, error)
	// List omits snapshots
	List(ctx context.Context, filters AttemptFilters) ([]*models.TestAttempt, int64, error)
	ListOverdue(ctx context.Context, now time.Time, limit int) ([]*models.TestAttempt, error)
	// SaveResult atomically stores the attempt's result fields and the scores of answers.
	// It fails with ErrConflict when attempt.Version is stale and bumps the version on success.
	SaveResult(ctx context.Context, attempt *models.TestAttempt, answers []*models.AttemptAnswer) error
}

type AnswerRepository interface {
	// Upsert keeps one row per (attempt, question); the latest write wins.
	// It fails with ErrConflict once the attempt is finished.
	Upsert(ctx context.Context, answer *models.AttemptAnswer) error
	ListByAttempt(ctx context.Context, attemptID uint) ([]*models.AttemptAnswer, error)
}
