package memory

import (
	"context"
	"sort"
	"time"

	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
)

// ===== ATTEMPTS =====

type attemptRepo struct{ r *Repository }

func (a *attemptRepo) Create(ctx context.Context, attempt *models.TestAttempt) error {
	defer a.r.lock()()
	for _, existing := range a.r.s.attempts {
		if existing.UserID == attempt.UserID && existing.TestID == attempt.TestID && !existing.IsFinished {
			return repositories.ErrDuplicate
		}
	}
	now := a.r.now()
	attempt.ID = a.r.s.nextID("test_attempts")
	if attempt.Version == 0 {
		attempt.Version = 1
	}
	attempt.CreatedAt, attempt.UpdatedAt = now, now
	a.r.s.attempts[attempt.ID] = cloneAttempt(attempt)
	return nil
}

func (a *attemptRepo) GetByID(ctx context.Context, id uint) (*models.TestAttempt, error) {
	defer a.r.rlock()()
	attempt, ok := a.r.s.attempts[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return cloneAttempt(attempt), nil
}

func (a *attemptRepo) GetByIDWithAnswers(ctx context.Context, id uint) (*models.TestAttempt, error) {
	defer a.r.rlock()()
	attempt, ok := a.r.s.attempts[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	out := cloneAttempt(attempt)
	for _, ans := range a.r.answersLocked(id) {
		out.Answers = append(out.Answers, *ans)
	}
	return out, nil
}

func (a *attemptRepo) ListByUserAndTest(ctx context.Context, userID, testID uint) ([]*models.TestAttempt, error) {
	defer a.r.rlock()()
	var out []*models.TestAttempt
	for _, attempt := range a.r.s.attempts {
		if attempt.UserID == userID && attempt.TestID == testID {
			out = append(out, cloneAttempt(attempt))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (a *attemptRepo) List(ctx context.Context, filters repositories.AttemptFilters) ([]*models.TestAttempt, int64, error) {
	defer a.r.rlock()()
	var matched []*models.TestAttempt
	for _, attempt := range a.r.s.attempts {
		if filters.UserID != nil && attempt.UserID != *filters.UserID {
			continue
		}
		if filters.TestID != nil && attempt.TestID != *filters.TestID {
			continue
		}
		if filters.IsFinished != nil && attempt.IsFinished != *filters.IsFinished {
			continue
		}
		c := cloneAttempt(attempt)
		c.Snapshot = nil
		matched = append(matched, c)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].StartTime.Equal(matched[j].StartTime) {
			return matched[i].StartTime.After(matched[j].StartTime)
		}
		return matched[i].ID > matched[j].ID
	})
	return paginate(matched, filters.Limit, filters.Offset), int64(len(matched)), nil
}

func (a *attemptRepo) ListOverdue(ctx context.Context, now time.Time, limit int) ([]*models.TestAttempt, error) {
	defer a.r.rlock()()
	var out []*models.TestAttempt
	for _, attempt := range a.r.s.attempts {
		if attempt.IsExpired(now) {
			out = append(out, cloneAttempt(attempt))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return paginate(out, limit, 0), nil
}

func (a *attemptRepo) SaveResult(ctx context.Context, attempt *models.TestAttempt, answers []*models.AttemptAnswer) error {
	defer a.r.lock()()
	existing, ok := a.r.s.attempts[attempt.ID]
	if !ok {
		return repositories.ErrNotFound
	}
	if existing.Version != attempt.Version {
		return repositories.ErrConflict
	}
	for _, ans := range answers {
		if _, ok := a.r.s.answers[ans.ID]; !ok {
			return repositories.ErrNotFound
		}
	}

	now := a.r.now()
	for _, ans := range answers {
		c := cloneAnswer(a.r.s.answers[ans.ID])
		c.ScoreEarned = clonePtr(ans.ScoreEarned)
		c.GradedBy = clonePtr(ans.GradedBy)
		c.GradedAt = clonePtr(ans.GradedAt)
		c.UpdatedAt = now
		a.r.s.answers[ans.ID] = c
	}

	updated := cloneAttempt(existing)
	updated.EndTime = clonePtr(attempt.EndTime)
	updated.EndReason = clonePtr(attempt.EndReason)
	updated.Score = clonePtr(attempt.Score)
	updated.MaxScore = clonePtr(attempt.MaxScore)
	updated.Percentage = clonePtr(attempt.Percentage)
	updated.Passed = clonePtr(attempt.Passed)
	updated.PendingReview = attempt.PendingReview
	updated.IsFinished = attempt.IsFinished
	updated.Version = existing.Version + 1
	updated.UpdatedAt = now
	a.r.s.attempts[attempt.ID] = updated
	attempt.Version = updated.Version
	attempt.UpdatedAt = now
	return nil
}

// ===== ANSWERS =====

type answerRepo struct{ r *Repository }

func (a *answerRepo) Upsert(ctx context.Context, answer *models.AttemptAnswer) error {
	defer a.r.lock()()
	attempt, ok := a.r.s.attempts[answer.AttemptID]
	if !ok {
		return repositories.ErrNotFound
	}
	if attempt.IsFinished {
		return repositories.ErrConflict
	}
	now := a.r.now()
	key := answerKey{attemptID: answer.AttemptID, questionID: answer.QuestionID}
	if id, ok := a.r.s.answerIndex[key]; ok {
		existing := a.r.s.answers[id]
		answer.ID = id
		answer.CreatedAt = existing.CreatedAt
	} else {
		answer.ID = a.r.s.nextID("attempt_answers")
		answer.CreatedAt = now
		a.r.s.answerIndex[key] = answer.ID
	}
	answer.UpdatedAt = now
	a.r.s.answers[answer.ID] = cloneAnswer(answer)
	return nil
}

func (a *answerRepo) ListByAttempt(ctx context.Context, attemptID uint) ([]*models.AttemptAnswer, error) {
	defer a.r.rlock()()
	return a.r.answersLocked(attemptID), nil
}

func (r *Repository) answersLocked(attemptID uint) []*models.AttemptAnswer {
	var out []*models.AttemptAnswer
	for _, ans := range r.s.answers {
		if ans.AttemptID == attemptID {
			out = append(out, cloneAnswer(ans))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].QuestionID < out[j].QuestionID })
	return out
}
