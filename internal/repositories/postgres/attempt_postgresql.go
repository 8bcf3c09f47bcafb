package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
)

type AttemptPostgreSQL struct {
	db *gorm.DB
}

func NewAttemptPostgreSQL(db *gorm.DB) repositories.AttemptRepository {
	return &AttemptPostgreSQL{db: db}
}

// Create relies on the partial unique index idx_attempt_open to reject a second open attempt
func (a *AttemptPostgreSQL) Create(ctx context.Context, attempt *models.TestAttempt) error {
	if attempt.Version == 0 {
		attempt.Version = 1
	}
	return translateError(a.db.WithContext(ctx).Omit("Answers").Create(attempt).Error)
}

func (a *AttemptPostgreSQL) GetByID(ctx context.Context, id uint) (*models.TestAttempt, error) {
	var attempt models.TestAttempt
	if err := a.db.WithContext(ctx).First(&attempt, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) GetByIDWithAnswers(ctx context.Context, id uint) (*models.TestAttempt, error) {
	var attempt models.TestAttempt
	err := a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Preload("Answers", func(db *gorm.DB) *gorm.DB { return db.Order("question_id ASC") }).
			First(&attempt, id).Error
	}, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, translateError(err)
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) ListByUserAndTest(ctx context.Context, userID, testID uint) ([]*models.TestAttempt, error) {
	var attempts []*models.TestAttempt
	err := a.db.WithContext(ctx).
		Where("user_id = ? AND test_id = ?", userID, testID).
		Order("id ASC").
		Find(&attempts).Error
	return attempts, translateError(err)
}

func (a *AttemptPostgreSQL) List(ctx context.Context, filters repositories.AttemptFilters) ([]*models.TestAttempt, int64, error) {
	query := a.db.WithContext(ctx).Model(&models.TestAttempt{})
	if filters.UserID != nil {
		query = query.Where("user_id = ?", *filters.UserID)
	}
	if filters.TestID != nil {
		query = query.Where("test_id = ?", *filters.TestID)
	}
	if filters.IsFinished != nil {
		query = query.Where("is_finished = ?", *filters.IsFinished)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, translateError(err)
	}

	var attempts []*models.TestAttempt
	rows := applyPagination(query.Omit("snapshot").Order("start_time DESC, id DESC"), filters.Limit, filters.Offset)
	if err := rows.Find(&attempts).Error; err != nil {
		return nil, 0, translateError(err)
	}
	return attempts, total, nil
}

func (a *AttemptPostgreSQL) ListOverdue(ctx context.Context, now time.Time, limit int) ([]*models.TestAttempt, error) {
	var attempts []*models.TestAttempt
	query := a.db.WithContext(ctx).
		Where("is_finished = ?", false).
		Where("start_time + time_limit * interval '1 second' <= ?", now).
		Order("id ASC")
	err := applyPagination(query, limit, 0).Find(&attempts).Error
	return attempts, translateError(err)
}

func (a *AttemptPostgreSQL) SaveResult(ctx context.Context, attempt *models.TestAttempt, answers []*models.AttemptAnswer) error {
	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var current models.TestAttempt
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "version").
			First(&current, attempt.ID).Error
		if err != nil {
			return translateError(err)
		}
		if current.Version != attempt.Version {
			return repositories.ErrConflict
		}

		now := tx.NowFunc()
		for _, ans := range answers {
			result := tx.Model(&models.AttemptAnswer{}).
				Where("id = ? AND attempt_id = ?", ans.ID, attempt.ID).
				Updates(map[string]interface{}{
					"score_earned": ans.ScoreEarned,
					"graded_by":    ans.GradedBy,
					"graded_at":    ans.GradedAt,
					"updated_at":   now,
				})
			if result.Error != nil {
				return fmt.Errorf("failed to score answer %d: %w", ans.ID, result.Error)
			}
			if result.RowsAffected == 0 {
				return repositories.ErrNotFound
			}
		}

		err = tx.Model(&models.TestAttempt{}).
			Where("id = ?", attempt.ID).
			Updates(map[string]interface{}{
				"end_time":       attempt.EndTime,
				"end_reason":     attempt.EndReason,
				"score":          attempt.Score,
				"max_score":      attempt.MaxScore,
				"percentage":     attempt.Percentage,
				"passed":         attempt.Passed,
				"pending_review": attempt.PendingReview,
				"is_finished":    attempt.IsFinished,
				"version":        current.Version + 1,
				"updated_at":     now,
			}).Error
		if err != nil {
			return fmt.Errorf("failed to save attempt result: %w", err)
		}

		attempt.Version = current.Version + 1
		attempt.UpdatedAt = now
		return nil
	})
}

type AnswerPostgreSQL struct {
	db *gorm.DB
}

func NewAnswerPostgreSQL(db *gorm.DB) repositories.AnswerRepository {
	return &AnswerPostgreSQL{db: db}
}

// Upsert holds a share lock on the attempt row so a concurrent finish cannot slip in between
// the state check and the write
func (a *AnswerPostgreSQL) Upsert(ctx context.Context, answer *models.AttemptAnswer) error {
	return a.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var attempt models.TestAttempt
		err := tx.Clauses(clause.Locking{Strength: "SHARE"}).
			Select("id", "is_finished").
			First(&attempt, answer.AttemptID).Error
		if err != nil {
			return translateError(err)
		}
		if attempt.IsFinished {
			return repositories.ErrConflict
		}

		err = tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "attempt_id"}, {Name: "question_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"option_ids", "answer_text", "answered_at", "updated_at"}),
		}).Create(answer).Error
		if err != nil {
			return translateError(err)
		}

		// On conflict the returned id may be zero; read back the surviving row
		if answer.ID == 0 {
			var stored models.AttemptAnswer
			if err := tx.Where("attempt_id = ? AND question_id = ?", answer.AttemptID, answer.QuestionID).
				First(&stored).Error; err != nil {
				return translateError(err)
			}
			answer.ID = stored.ID
			answer.CreatedAt = stored.CreatedAt
		}
		return nil
	})
}

func (a *AnswerPostgreSQL) ListByAttempt(ctx context.Context, attemptID uint) ([]*models.AttemptAnswer, error) {
	var answers []*models.AttemptAnswer
	err := a.db.WithContext(ctx).Where("attempt_id = ?", attemptID).Order("question_id ASC").Find(&answers).Error
	return answers, translateError(err)
}
