package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
)

type OptionPostgreSQL struct {
	db *gorm.DB
}

func NewOptionPostgreSQL(db *gorm.DB) repositories.OptionRepository {
	return &OptionPostgreSQL{db: db}
}

func (o *OptionPostgreSQL) Create(ctx context.Context, option *models.AnswerOption) error {
	return translateError(o.db.WithContext(ctx).Create(option).Error)
}

func (o *OptionPostgreSQL) GetByID(ctx context.Context, id uint) (*models.AnswerOption, error) {
	var option models.AnswerOption
	if err := o.db.WithContext(ctx).First(&option, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &option, nil
}

func (o *OptionPostgreSQL) Update(ctx context.Context, option *models.AnswerOption) error {
	return translateError(o.db.WithContext(ctx).Omit("created_at").Save(option).Error)
}

func (o *OptionPostgreSQL) Delete(ctx context.Context, id uint) error {
	result := o.db.WithContext(ctx).Delete(&models.AnswerOption{}, id)
	if result.Error != nil {
		return translateError(result.Error)
	}
	if result.RowsAffected == 0 {
		return repositories.ErrNotFound
	}
	return nil
}

func (o *OptionPostgreSQL) ListByQuestion(ctx context.Context, questionID uint) ([]*models.AnswerOption, error) {
	var options []*models.AnswerOption
	err := o.db.WithContext(ctx).Where("question_id = ?", questionID).Order("id ASC").Find(&options).Error
	return options, translateError(err)
}

func (o *OptionPostgreSQL) CountByQuestion(ctx context.Context, questionID uint) (int64, error) {
	var count int64
	err := o.db.WithContext(ctx).Model(&models.AnswerOption{}).Where("question_id = ?", questionID).Count(&count).Error
	return count, translateError(err)
}
