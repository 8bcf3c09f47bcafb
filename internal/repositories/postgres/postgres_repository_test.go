package postgres

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
)

// openTestDB connects to QUIZ_TEST_DATABASE_URL and migrates the schema
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("QUIZ_TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("set QUIZ_TEST_DATABASE_URL to run postgres integration tests")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// seedAttempt stores an open attempt for a user id no other run shares
func seedAttempt(t *testing.T, db *gorm.DB, repo repositories.Repository) *models.TestAttempt {
	t.Helper()
	suffix := uint(time.Now().UnixNano() % 1_000_000_000)
	attempt := &models.TestAttempt{
		UserID:        suffix,
		TestID:        suffix,
		AttemptNumber: 1,
		StartTime:     time.Now().UTC(),
		TimeLimit:     600,
		Snapshot:      datatypes.JSON(`{}`),
	}
	if err := repo.Attempt().Create(context.Background(), attempt); err != nil {
		t.Fatalf("create attempt: %v", err)
	}
	t.Cleanup(func() {
		db.Where("attempt_id = ?", attempt.ID).Delete(&models.AttemptAnswer{})
		db.Delete(&models.TestAttempt{}, attempt.ID)
	})
	return attempt
}

func finishedCopy(a *models.TestAttempt, score float64) *models.TestAttempt {
	out := *a
	end := time.Now().UTC()
	reason := models.EndReasonSubmitted
	maxScore, pct, passed := 10.0, score/10, score >= 6
	out.EndTime = &end
	out.EndReason = &reason
	out.Score = &score
	out.MaxScore = &maxScore
	out.Percentage = &pct
	out.Passed = &passed
	out.IsFinished = true
	return &out
}

func TestAttemptPostgreSQL_SaveResult(t *testing.T) {
	db := openTestDB(t)
	repo := NewPostgreSQLRepository(db)
	ctx := context.Background()
	attempt := seedAttempt(t, db, repo)

	answer := &models.AttemptAnswer{AttemptID: attempt.ID, QuestionID: 1, OptionIDs: models.EncodeIDs([]uint{3}), AnsweredAt: time.Now().UTC()}
	if err := repo.Answer().Upsert(ctx, answer); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	stale := *attempt
	result := finishedCopy(attempt, 10)
	earned := 10.0
	answer.ScoreEarned = &earned
	if err := repo.Attempt().SaveResult(ctx, result, []*models.AttemptAnswer{answer}); err != nil {
		t.Fatalf("SaveResult() error = %v", err)
	}
	if result.Version != 2 {
		t.Errorf("Version = %d, want 2", result.Version)
	}

	if err := repo.Attempt().SaveResult(ctx, finishedCopy(&stale, 0), nil); !errors.Is(err, repositories.ErrConflict) {
		t.Errorf("SaveResult() with stale version error = %v, want ErrConflict", err)
	}

	stored, err := repo.Attempt().GetByIDWithAnswers(ctx, attempt.ID)
	if err != nil {
		t.Fatal(err)
	}
	if !stored.IsFinished || stored.Version != 2 || stored.Score == nil || *stored.Score != 10 {
		t.Errorf("stored attempt = %+v", stored)
	}
	if len(stored.Answers) != 1 || stored.Answers[0].ScoreEarned == nil || *stored.Answers[0].ScoreEarned != 10 {
		t.Errorf("stored answers = %+v", stored.Answers)
	}

	missing := finishedCopy(attempt, 0)
	missing.ID = attempt.ID + 1_000_000_000
	if err := repo.Attempt().SaveResult(ctx, missing, nil); !errors.Is(err, repositories.ErrNotFound) {
		t.Errorf("SaveResult() unknown attempt error = %v, want ErrNotFound", err)
	}
}

func TestAttemptPostgreSQL_SaveResultConcurrent(t *testing.T) {
	db := openTestDB(t)
	repo := NewPostgreSQLRepository(db)
	ctx := context.Background()
	attempt := seedAttempt(t, db, repo)

	const writers = 5
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(score float64) {
			defer wg.Done()
			err := repo.Attempt().SaveResult(ctx, finishedCopy(attempt, score), nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, repositories.ErrConflict):
				conflicts++
			default:
				t.Errorf("SaveResult() error = %v", err)
			}
		}(float64(i))
	}
	wg.Wait()

	if succeeded != 1 || conflicts != writers-1 {
		t.Errorf("succeeded = %d, conflicts = %d; want 1 and %d", succeeded, conflicts, writers-1)
	}
	stored, err := repo.Attempt().GetByID(ctx, attempt.ID)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Version != 2 {
		t.Errorf("Version = %d, want 2", stored.Version)
	}
}

func TestAnswerPostgreSQL_Upsert(t *testing.T) {
	db := openTestDB(t)
	repo := NewPostgreSQLRepository(db)
	ctx := context.Background()
	attempt := seedAttempt(t, db, repo)

	first := &models.AttemptAnswer{AttemptID: attempt.ID, QuestionID: 1, OptionIDs: models.EncodeIDs([]uint{1}), AnsweredAt: time.Now().UTC()}
	if err := repo.Answer().Upsert(ctx, first); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	second := &models.AttemptAnswer{AttemptID: attempt.ID, QuestionID: 1, OptionIDs: models.EncodeIDs([]uint{2}), AnsweredAt: time.Now().UTC()}
	if err := repo.Answer().Upsert(ctx, second); err != nil {
		t.Fatalf("Upsert() overwrite error = %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("overwrite ID = %d, want %d", second.ID, first.ID)
	}

	answers, err := repo.Answer().ListByAttempt(ctx, attempt.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(answers) != 1 {
		t.Fatalf("len(answers) = %d, want 1", len(answers))
	}
	if got := answers[0].SelectedOptions(); len(got) != 1 || got[0] != 2 {
		t.Errorf("SelectedOptions() = %v, want [2]", got)
	}

	if err := repo.Attempt().SaveResult(ctx, finishedCopy(attempt, 0), nil); err != nil {
		t.Fatalf("SaveResult() error = %v", err)
	}
	late := &models.AttemptAnswer{AttemptID: attempt.ID, QuestionID: 2, AnsweredAt: time.Now().UTC()}
	if err := repo.Answer().Upsert(ctx, late); !errors.Is(err, repositories.ErrConflict) {
		t.Errorf("Upsert() after finish error = %v, want ErrConflict", err)
	}

	orphan := &models.AttemptAnswer{AttemptID: attempt.ID + 1_000_000_000, QuestionID: 1, AnsweredAt: time.Now().UTC()}
	if err := repo.Answer().Upsert(ctx, orphan); !errors.Is(err, repositories.ErrNotFound) {
		t.Errorf("Upsert() unknown attempt error = %v, want ErrNotFound", err)
	}
}
