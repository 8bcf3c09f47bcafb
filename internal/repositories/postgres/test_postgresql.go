package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
)

type TestPostgreSQL struct {
	db *gorm.DB
}

func NewTestPostgreSQL(db *gorm.DB) repositories.TestRepository {
	return &TestPostgreSQL{db: db}
}

const questionCountSelect = "tests.*, (SELECT COUNT(*) FROM questions WHERE questions.test_id = tests.id) AS question_count"

func (t *TestPostgreSQL) Create(ctx context.Context, test *models.Test) error {
	return translateError(t.db.WithContext(ctx).Omit("Questions", "Creator").Create(test).Error)
}

func (t *TestPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Test, error) {
	var test models.Test
	if err := t.db.WithContext(ctx).First(&test, id).Error; err != nil {
		return nil, translateError(err)
	}

	var count int64
	if err := t.db.WithContext(ctx).Model(&models.Question{}).Where("test_id = ?", id).Count(&count).Error; err != nil {
		return nil, translateError(err)
	}
	test.QuestionCount = int(count)
	return &test, nil
}

func (t *TestPostgreSQL) GetByIDs(ctx context.Context, ids []uint) ([]*models.Test, error) {
	var tests []*models.Test
	if len(ids) == 0 {
		return tests, nil
	}
	err := t.db.WithContext(ctx).Where("id IN ?", ids).Find(&tests).Error
	return tests, translateError(err)
}

func (t *TestPostgreSQL) Update(ctx context.Context, test *models.Test) error {
	return translateError(t.db.WithContext(ctx).Omit("Questions", "Creator", "created_at").Save(test).Error)
}

func (t *TestPostgreSQL) List(ctx context.Context, filters repositories.TestFilters) ([]*models.Test, int64, error) {
	query := t.db.WithContext(ctx).Model(&models.Test{})
	if filters.IsActive != nil {
		query = query.Where("is_active = ?", *filters.IsActive)
	}
	if filters.CreatorID != nil {
		query = query.Where("creator_id = ?", *filters.CreatorID)
	}
	if filters.Search != "" {
		pattern := likePattern(filters.Search)
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translateError(err)
	}

	var tests []*models.Test
	rows := applyPagination(query.Select(questionCountSelect).Order("created_at DESC, id DESC"), filters.Limit, filters.Offset)
	if err := rows.Find(&tests).Error; err != nil {
		return nil, 0, translateError(err)
	}
	return tests, total, nil
}

func (t *TestPostgreSQL) Count(ctx context.Context) (int64, error) {
	var count int64
	err := t.db.WithContext(ctx).Model(&models.Test{}).Count(&count).Error
	return count, translateError(err)
}
