package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
)

type QuestionPostgreSQL struct {
	db *gorm.DB
}

func NewQuestionPostgreSQL(db *gorm.DB) repositories.QuestionRepository {
	return &QuestionPostgreSQL{db: db}
}

// Create inserts the question and any options attached to it
func (q *QuestionPostgreSQL) Create(ctx context.Context, question *models.Question) error {
	return translateError(q.db.WithContext(ctx).Create(question).Error)
}

func (q *QuestionPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Question, error) {
	var question models.Question
	err := q.db.WithContext(ctx).
		Preload("Options", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&question, id).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &question, nil
}

func (q *QuestionPostgreSQL) Update(ctx context.Context, question *models.Question) error {
	return translateError(q.db.WithContext(ctx).Omit("Options", "created_at").Save(question).Error)
}

func (q *QuestionPostgreSQL) Delete(ctx context.Context, id uint) error {
	return q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("question_id = ?", id).Delete(&models.AnswerOption{}).Error; err != nil {
			return fmt.Errorf("failed to delete options: %w", err)
		}
		result := tx.Delete(&models.Question{}, id)
		if result.Error != nil {
			return translateError(result.Error)
		}
		if result.RowsAffected == 0 {
			return repositories.ErrNotFound
		}
		return nil
	})
}

func (q *QuestionPostgreSQL) ListByTest(ctx context.Context, testID uint) ([]*models.Question, error) {
	var questions []*models.Question
	err := q.db.WithContext(ctx).
		Preload("Options", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Where("test_id = ?", testID).
		Order("order_index ASC, id ASC").
		Find(&questions).Error
	return questions, translateError(err)
}

func (q *QuestionPostgreSQL) CountByTest(ctx context.Context, testID uint) (int64, error) {
	var count int64
	err := q.db.WithContext(ctx).Model(&models.Question{}).Where("test_id = ?", testID).Count(&count).Error
	return count, translateError(err)
}

func (q *QuestionPostgreSQL) MaxOrderIndex(ctx context.Context, testID uint) (int, error) {
	var max *int
	err := q.db.WithContext(ctx).Model(&models.Question{}).
		Where("test_id = ?", testID).
		Select("MAX(order_index)").
		Scan(&max).Error
	if err != nil {
		return 0, translateError(err)
	}
	if max == nil {
		return 0, nil
	}
	return *max, nil
}

// UpdateOrder rewrites order indexes; every question must belong to testID
func (q *QuestionPostgreSQL) UpdateOrder(ctx context.Context, testID uint, orders []repositories.QuestionOrder) error {
	return q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, order := range orders {
			result := tx.Model(&models.Question{}).
				Where("id = ? AND test_id = ?", order.QuestionID, testID).
				Update("order_index", order.OrderIndex)
			if result.Error != nil {
				return translateError(result.Error)
			}
			if result.RowsAffected == 0 {
				return repositories.ErrNotFound
			}
		}
		return nil
	})
}
