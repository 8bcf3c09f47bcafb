package postgres

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
)

type UserPostgreSQL struct {
	db *gorm.DB
}

func NewUserPostgreSQL(db *gorm.DB) repositories.UserRepository {
	return &UserPostgreSQL{db: db}
}

func (u *UserPostgreSQL) Create(ctx context.Context, user *models.User) error {
	return translateError(u.db.WithContext(ctx).Create(user).Error)
}

func (u *UserPostgreSQL) GetByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := u.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &user, nil
}

func (u *UserPostgreSQL) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := u.db.WithContext(ctx).Where("LOWER(email) = ?", strings.ToLower(email)).First(&user).Error; err != nil {
		return nil, translateError(err)
	}
	return &user, nil
}

func (u *UserPostgreSQL) Update(ctx context.Context, user *models.User) error {
	return translateError(u.db.WithContext(ctx).Save(user).Error)
}

func (u *UserPostgreSQL) List(ctx context.Context, filters repositories.UserFilters) ([]*models.User, int64, error) {
	query := u.db.WithContext(ctx).Model(&models.User{})
	if filters.Query != "" {
		pattern := likePattern(filters.Query)
		query = query.Where("LOWER(email) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ?", pattern, pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translateError(err)
	}

	var users []*models.User
	if err := applyPagination(query.Order("id ASC"), filters.Limit, filters.Offset).Find(&users).Error; err != nil {
		return nil, 0, translateError(err)
	}
	return users, total, nil
}

func (u *UserPostgreSQL) Count(ctx context.Context) (int64, error) {
	var count int64
	err := u.db.WithContext(ctx).Model(&models.User{}).Count(&count).Error
	return count, translateError(err)
}

func (u *UserPostgreSQL) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	err := u.db.WithContext(ctx).Model(&models.User{}).Where("LOWER(email) = ?", strings.ToLower(email)).Count(&count).Error
	return count > 0, translateError(err)
}
