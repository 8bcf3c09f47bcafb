package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/SAP-F-2025/quiz-service/internal/cache"
	"github.com/SAP-F-2025/quiz-service/internal/events"
	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
)

func attemptKey(attemptID uint) string {
	return fmt.Sprintf("attempt:%d", attemptID)
}

func startKey(userID, testID uint) string {
	return fmt.Sprintf("start:%d:%d", userID, testID)
}

// now is truncated to what the database stores so repeated reads compare equal
func (s *attemptService) now() time.Time {
	return s.clock.Now().Truncate(time.Microsecond)
}

// withLock runs fn while holding key; a lock that cannot be taken is a concurrency conflict
func (s *attemptService) withLock(ctx context.Context, key string, fn func() error) error {
	release, err := s.locker.Acquire(ctx, key)
	if err != nil {
		s.metrics.LockConflict()
		s.logger.Warn("Failed to acquire lock", "key", key, "error", err)
		return fmt.Errorf("%w: %w", ErrConcurrencyConflict, err)
	}
	defer release()
	return fn()
}

// ===== START =====

// startLocked must run under the start lock of (userID, testID)
func (s *attemptService) startLocked(ctx context.Context, testID, userID uint) (*models.TestAttempt, error) {
	test, err := s.repo.Test().GetByID(ctx, testID)
	if err != nil {
		return nil, repoError(err, ErrTestNotFound, "get test")
	}

	now := s.now()
	ruleCtx := map[string]interface{}{"testId": testID, "userId": userID}
	if !test.IsActive {
		return nil, NewAttemptNotAllowedError(RuleTestInactive, "test is not active", ruleCtx)
	}
	if !test.IsOpenAt(now) {
		return nil, NewAttemptNotAllowedError(RuleOutsideWindow, "test is not open at this time", ruleCtx)
	}

	previous, err := s.repo.Attempt().ListByUserAndTest(ctx, userID, testID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	for _, a := range previous {
		if a.IsFinished {
			continue
		}
		if !a.IsExpired(now) {
			return nil, NewAttemptNotAllowedError(RuleAttemptInProgress, "an attempt for this test is already in progress",
				map[string]interface{}{"testId": testID, "userId": userID, "attemptId": a.ID})
		}
		// an overdue attempt is finished first and still counts toward the limit
		if _, err := s.expireNow(ctx, a.ID); err != nil {
			return nil, err
		}
	}
	if len(previous) >= test.MaxAttempts {
		ruleCtx["maxAttempts"] = test.MaxAttempts
		return nil, NewAttemptNotAllowedError(RuleMaxAttempts, "maximum number of attempts reached", ruleCtx)
	}

	limit := int(test.EffectiveTimeLimit(now) / time.Second)
	if limit < 1 {
		return nil, NewAttemptNotAllowedError(RuleOutsideWindow, "test window closes before the attempt could start", ruleCtx)
	}

	questions, err := s.repo.Question().ListByTest(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	plain := make([]models.Question, 0, len(questions))
	for _, q := range questions {
		plain = append(plain, *q)
	}
	snapshot, err := models.NewTestSnapshot(test, plain).Encode()
	if err != nil {
		return nil, err
	}

	attempt := &models.TestAttempt{
		UserID:        userID,
		TestID:        testID,
		AttemptNumber: len(previous) + 1,
		StartTime:     now,
		TimeLimit:     limit,
		Snapshot:      snapshot,
	}
	if err := s.repo.Attempt().Create(ctx, attempt); err != nil {
		if repositories.IsDuplicateError(err) {
			return nil, NewAttemptNotAllowedError(RuleAttemptInProgress, "an attempt for this test is already in progress", ruleCtx)
		}
		return nil, fmt.Errorf("failed to create attempt: %w", err)
	}
	return attempt, nil
}

// ===== FINISH =====

// expireNow takes the attempt lock and finishes the attempt if it is still open
func (s *attemptService) expireNow(ctx context.Context, attemptID uint) (*models.TestAttempt, error) {
	var attempt *models.TestAttempt
	err := s.withLock(ctx, attemptKey(attemptID), func() error {
		var err error
		attempt, _, err = s.finishLocked(ctx, attemptID, models.EndReasonTimeExpired)
		return err
	})
	return attempt, err
}

// finishLocked scores and closes the attempt. It must run under the attempt lock and
// reports whether this call performed the transition. An attempt that is already
// finished is returned unchanged. Past the deadline the end time is clamped to the
// deadline and the reason becomes time_expired.
func (s *attemptService) finishLocked(ctx context.Context, attemptID uint, reason string) (*models.TestAttempt, bool, error) {
	for try := 0; try < s.conflictRetries; try++ {
		attempt, err := s.repo.Attempt().GetByIDWithAnswers(ctx, attemptID)
		if err != nil {
			return nil, false, repoError(err, ErrAttemptNotFound, "get attempt")
		}
		if attempt.IsFinished {
			return attempt, false, nil
		}

		snap, err := models.DecodeSnapshot(attempt.Snapshot)
		if err != nil {
			return nil, false, err
		}

		endTime, endReason := s.now(), reason
		if deadline := attempt.Deadline(); !endTime.Before(deadline) {
			endTime, endReason = deadline, models.EndReasonTimeExpired
		}

		answers := make([]*models.AttemptAnswer, len(attempt.Answers))
		for i := range attempt.Answers {
			answers[i] = &attempt.Answers[i]
		}
		if err := scoreAnswers(ctx, s.grader, snap, answers); err != nil {
			return nil, false, err
		}
		summarize(snap, answers).apply(attempt)
		attempt.EndTime = &endTime
		attempt.EndReason = &endReason
		attempt.IsFinished = true

		err = s.repo.Attempt().SaveResult(ctx, attempt, answers)
		if errors.Is(err, repositories.ErrConflict) {
			s.logger.Warn("Attempt result write conflicted, retrying", "attempt_id", attemptID, "try", try+1)
			continue
		}
		if err != nil {
			return nil, false, fmt.Errorf("failed to save attempt result: %w", err)
		}

		s.afterFinish(ctx, attempt)
		return attempt, true, nil
	}

	s.metrics.LockConflict()
	return nil, false, ErrConcurrencyConflict
}

func (s *attemptService) afterFinish(ctx context.Context, attempt *models.TestAttempt) {
	result := resultFromAttempt(attempt)
	s.metrics.AttemptFinished(result.EndReason)
	cache.InvalidateStatistics(ctx, s.cache, attempt.TestID, attempt.UserID)
	s.publish(ctx, events.AttemptFinished, &events.AttemptFinishedEvent{
		AttemptID:     attempt.ID,
		UserID:        attempt.UserID,
		TestID:        attempt.TestID,
		EndReason:     result.EndReason,
		EndTime:       result.EndTime,
		Score:         result.Score,
		MaxScore:      result.MaxScore,
		Percentage:    result.Percentage,
		Passed:        result.Passed,
		PendingReview: result.PendingReview,
	})

	s.logger.Info("Attempt finished",
		"attempt_id", attempt.ID,
		"reason", result.EndReason,
		"score", result.Score,
		"max_score", result.MaxScore,
		"pending_review", result.PendingReview)
}

// ===== READS =====

// loadForRead returns the attempt with its answers, finishing it first when it is overdue
func (s *attemptService) loadForRead(ctx context.Context, attemptID uint, actor Actor) (*models.TestAttempt, error) {
	attempt, err := s.repo.Attempt().GetByIDWithAnswers(ctx, attemptID)
	if err != nil {
		return nil, repoError(err, ErrAttemptNotFound, "get attempt")
	}
	if !actor.canAccessUser(attempt.UserID) {
		return nil, NewPermissionError(actor.UserID, attemptID, "attempt", "view", "not owned by user")
	}
	if !attempt.IsExpired(s.now()) {
		return attempt, nil
	}
	return s.expireNow(ctx, attemptID)
}

func (s *attemptService) progress(attempt *models.TestAttempt) (*AttemptProgress, error) {
	snap, err := models.DecodeSnapshot(attempt.Snapshot)
	if err != nil {
		return nil, err
	}

	answered := make([]uint, 0, len(attempt.Answers))
	for _, ans := range attempt.Answers {
		answered = append(answered, ans.QuestionID)
	}
	sort.Slice(answered, func(i, j int) bool { return answered[i] < answered[j] })

	// rounded up so zero is only reported once submissions are refused
	remaining := int(math.Ceil(attempt.TimeRemaining(s.now()).Seconds()))

	return &AttemptProgress{
		ID:                attempt.ID,
		UserID:            attempt.UserID,
		TestID:            attempt.TestID,
		StartTime:         attempt.StartTime,
		EndTime:           attempt.EndTime,
		Score:             attempt.Score,
		IsFinished:        attempt.IsFinished,
		AnsweredQuestions: answered,
		TotalQuestions:    len(snap.Questions),
		TimeRemaining:     remaining,
	}, nil
}

func resultFromAttempt(attempt *models.TestAttempt) *AttemptResult {
	result := &AttemptResult{
		AttemptID:     attempt.ID,
		PendingReview: attempt.PendingReview,
	}
	if attempt.Score != nil {
		result.Score = *attempt.Score
	}
	if attempt.MaxScore != nil {
		result.MaxScore = *attempt.MaxScore
	}
	if attempt.Percentage != nil {
		result.Percentage = *attempt.Percentage
	}
	if attempt.Passed != nil {
		result.Passed = *attempt.Passed
	}
	if attempt.EndTime != nil {
		result.EndTime = *attempt.EndTime
	}
	if attempt.EndReason != nil {
		result.EndReason = *attempt.EndReason
	}
	return result
}

// ===== ANSWERS =====

// buildAnswer checks a submission against the question it targets
func buildAnswer(q *models.QuestionSnapshot, req *SubmitAnswerRequest) (*models.AttemptAnswer, error) {
	answer := &models.AttemptAnswer{QuestionID: q.ID}

	if !q.AnswerType.IsChoice() {
		if req.AnswerID != nil || len(req.AnswerIDs) > 0 {
			return nil, NewValidationError("answerIds", "not allowed for free-form questions", nil)
		}
		if req.AnswerText == nil {
			return nil, NewValidationError("answerText", "is required", nil)
		}
		text := *req.AnswerText
		answer.AnswerText = &text
		return answer, nil
	}

	if req.AnswerText != nil {
		return nil, NewValidationError("answerText", "not allowed for choice questions", nil)
	}
	if req.AnswerID != nil && len(req.AnswerIDs) > 0 {
		return nil, NewValidationError("answerIds", "use either answerId or answerIds", nil)
	}

	ids := req.AnswerIDs
	if req.AnswerID != nil {
		ids = []uint{*req.AnswerID}
	}

	seen := make(map[uint]bool, len(ids))
	selected := make([]uint, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if _, ok := q.Option(id); !ok {
			return nil, NewValidationError("answerIds", fmt.Sprintf("option %d does not belong to question %d", id, q.ID), id)
		}
		selected = append(selected, id)
	}
	if len(selected) == 0 {
		return nil, NewValidationError("answerIds", "at least one option must be selected", nil)
	}
	if q.AnswerType == models.SingleChoice && len(selected) != 1 {
		return nil, NewValidationError("answerIds", "exactly one option must be selected", len(selected))
	}

	sort.Slice(selected, func(i, j int) bool { return selected[i] < selected[j] })
	answer.OptionIDs = models.EncodeIDs(selected)
	return answer, nil
}

// gradeLocked must run under the attempt lock
func (s *attemptService) gradeLocked(ctx context.Context, attemptID, questionID uint, points float64, graderID uint) (*models.TestAttempt, error) {
	for try := 0; try < s.conflictRetries; try++ {
		attempt, err := s.repo.Attempt().GetByIDWithAnswers(ctx, attemptID)
		if err != nil {
			return nil, repoError(err, ErrAttemptNotFound, "get attempt")
		}
		if !attempt.IsFinished {
			return nil, ErrAttemptInProgress
		}

		snap, err := models.DecodeSnapshot(attempt.Snapshot)
		if err != nil {
			return nil, err
		}
		question, ok := snap.Question(questionID)
		if !ok {
			return nil, ErrInvalidQuestion
		}
		if points > float64(question.MaxPoints) {
			return nil, NewValidationError("points", fmt.Sprintf("must not exceed %d", question.MaxPoints), points)
		}

		answers := make([]*models.AttemptAnswer, len(attempt.Answers))
		var graded *models.AttemptAnswer
		for i := range attempt.Answers {
			answers[i] = &attempt.Answers[i]
			if answers[i].QuestionID == questionID {
				graded = answers[i]
			}
		}
		if graded == nil {
			return nil, ErrAnswerNotFound
		}

		now := s.now()
		graded.ScoreEarned = floatPtr(points)
		graded.GradedBy = &graderID
		graded.GradedAt = &now
		summarize(snap, answers).apply(attempt)

		err = s.repo.Attempt().SaveResult(ctx, attempt, []*models.AttemptAnswer{graded})
		if errors.Is(err, repositories.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to save grade: %w", err)
		}
		return attempt, nil
	}
	return nil, ErrConcurrencyConflict
}

// publish delivers an event; failures are logged and never fail the operation
func (s *attemptService) publish(ctx context.Context, eventType string, data interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, events.NewEvent(eventType, data)); err != nil {
		s.logger.Error("Failed to publish event", "event_type", eventType, "error", err)
	}
}
