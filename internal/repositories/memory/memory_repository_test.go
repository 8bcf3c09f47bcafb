package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
)

func seedTest(t *testing.T, repo *Repository) *models.Test {
	t.Helper()
	test := &models.Test{Title: "Go basics", TimeLimit: 60, MaxAttempts: 1, IsActive: true,
		StartTime: time.Now().Add(-time.Hour), EndTime: time.Now().Add(time.Hour)}
	if err := repo.Test().Create(context.Background(), test); err != nil {
		t.Fatalf("create test: %v", err)
	}
	return test
}

func TestRepository_WithTransactionRollsBack(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()
	test := seedTest(t, repo)

	boom := errors.New("boom")
	err := repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		q := &models.Question{TestID: test.ID, QuestionText: "q", AnswerType: models.TextAnswer, MaxPoints: 1}
		if err := tx.Question().Create(ctx, q); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTransaction() error = %v, want boom", err)
	}

	n, _ := repo.Question().CountByTest(ctx, test.ID)
	if n != 0 {
		t.Errorf("questions after rollback = %d, want 0", n)
	}
}

func TestRepository_QuestionOrdering(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()
	test := seedTest(t, repo)

	for _, order := range []int{2, 1, 2} {
		q := &models.Question{TestID: test.ID, QuestionText: "q", AnswerType: models.TextAnswer, MaxPoints: 1, OrderIndex: order}
		if err := repo.Question().Create(ctx, q); err != nil {
			t.Fatal(err)
		}
	}

	list, err := repo.Question().ListByTest(ctx, test.ID)
	if err != nil {
		t.Fatal(err)
	}
	got := []uint{list[0].ID, list[1].ID, list[2].ID}
	want := []uint{2, 1, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestRepository_AnswerUpsertLastWriteWins(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()
	test := seedTest(t, repo)
	attempt := &models.TestAttempt{UserID: 1, TestID: test.ID, StartTime: time.Now(), TimeLimit: 60}
	if err := repo.Attempt().Create(ctx, attempt); err != nil {
		t.Fatal(err)
	}

	first, second := "a", "b"
	for _, text := range []*string{&first, &second} {
		if err := repo.Answer().Upsert(ctx, &models.AttemptAnswer{AttemptID: attempt.ID, QuestionID: 7, AnswerText: text, AnsweredAt: time.Now()}); err != nil {
			t.Fatal(err)
		}
	}

	answers, _ := repo.Answer().ListByAttempt(ctx, attempt.ID)
	if len(answers) != 1 {
		t.Fatalf("answers = %d, want 1", len(answers))
	}
	if *answers[0].AnswerText != "b" {
		t.Errorf("answer text = %q, want b", *answers[0].AnswerText)
	}
}

func TestRepository_SingleOpenAttempt(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()
	test := seedTest(t, repo)

	if err := repo.Attempt().Create(ctx, &models.TestAttempt{UserID: 1, TestID: test.ID, StartTime: time.Now(), TimeLimit: 60}); err != nil {
		t.Fatal(err)
	}
	err := repo.Attempt().Create(ctx, &models.TestAttempt{UserID: 1, TestID: test.ID, StartTime: time.Now(), TimeLimit: 60})
	if !repositories.IsDuplicateError(err) {
		t.Errorf("second open attempt error = %v, want duplicate", err)
	}
}

func TestRepository_ReadsAreCopies(t *testing.T) {
	repo := NewRepository()
	ctx := context.Background()
	test := seedTest(t, repo)

	got, _ := repo.Test().GetByID(ctx, test.ID)
	got.Title = "mutated"

	again, _ := repo.Test().GetByID(ctx, test.ID)
	if again.Title != "Go basics" {
		t.Errorf("stored title = %q, want unchanged", again.Title)
	}
}
