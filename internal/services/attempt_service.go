package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/SAP-F-2025/quiz-service/internal/cache"
	"github.com/SAP-F-2025/quiz-service/internal/events"
	"github.com/SAP-F-2025/quiz-service/internal/grading"
	"github.com/SAP-F-2025/quiz-service/internal/lock"
	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/monitoring"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
	"github.com/SAP-F-2025/quiz-service/internal/validator"
)

const (
	defaultConflictRetries = 3
	overdueBatchSize       = 100
)

// AttemptDeps collects the collaborators of the attempt engine
type AttemptDeps struct {
	Repo      repositories.Repository
	Locker    lock.Locker
	Grader    grading.Grader
	Publisher events.EventPublisher
	Cache     *cache.CacheManager
	Metrics   *monitoring.Metrics
	Clock     Clock
	Logger    *slog.Logger
	Validator *validator.Validator

	// ConflictRetries bounds optimistic retries of result writes
	ConflictRetries int
}

type attemptService struct {
	repo            repositories.Repository
	locker          lock.Locker
	grader          grading.Grader
	publisher       events.EventPublisher
	cache           *cache.CacheManager
	metrics         *monitoring.Metrics
	clock           Clock
	logger          *slog.Logger
	validator       *validator.Validator
	conflictRetries int
}

func NewAttemptService(deps AttemptDeps) AttemptService {
	s := &attemptService{
		repo:            deps.Repo,
		locker:          deps.Locker,
		grader:          deps.Grader,
		publisher:       deps.Publisher,
		cache:           deps.Cache,
		metrics:         deps.Metrics,
		clock:           deps.Clock,
		logger:          deps.Logger,
		validator:       deps.Validator,
		conflictRetries: deps.ConflictRetries,
	}
	if s.locker == nil {
		s.locker = lock.NewKeyedMutex()
	}
	if s.grader == nil {
		s.grader = grading.NewDefaultGrader()
	}
	if s.cache == nil {
		s.cache = cache.NewCacheManager(nil)
	}
	if s.clock == nil {
		s.clock = SystemClock
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.conflictRetries < 1 {
		s.conflictRetries = defaultConflictRetries
	}
	return s
}

// ===== CORE ATTEMPT OPERATIONS =====

func (s *attemptService) Start(ctx context.Context, req *StartAttemptRequest, actor Actor) (*StartAttemptResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	var attempt *models.TestAttempt
	err := s.withLock(ctx, startKey(actor.UserID, req.TestID), func() error {
		var err error
		attempt, err = s.startLocked(ctx, req.TestID, actor.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}

	// attempt counts include open attempts
	cache.InvalidateStatistics(ctx, s.cache, attempt.TestID, attempt.UserID)
	s.metrics.AttemptStarted()
	s.publish(ctx, events.AttemptStarted, &events.AttemptStartedEvent{
		AttemptID:     attempt.ID,
		UserID:        attempt.UserID,
		TestID:        attempt.TestID,
		AttemptNumber: attempt.AttemptNumber,
		StartTime:     attempt.StartTime,
		TimeLimit:     attempt.TimeLimit,
	})

	s.logger.Info("Attempt started",
		"attempt_id", attempt.ID,
		"test_id", attempt.TestID,
		"user_id", attempt.UserID,
		"attempt_number", attempt.AttemptNumber)

	return &StartAttemptResponse{
		AttemptID:     attempt.ID,
		AttemptNumber: attempt.AttemptNumber,
		StartTime:     attempt.StartTime,
		TimeLimit:     attempt.TimeLimit,
	}, nil
}

func (s *attemptService) SubmitAnswer(ctx context.Context, attemptID uint, req *SubmitAnswerRequest, actor Actor) error {
	if err := s.validator.Validate(req); err != nil {
		return err
	}

	err := s.withLock(ctx, attemptKey(attemptID), func() error {
		attempt, err := s.repo.Attempt().GetByID(ctx, attemptID)
		if err != nil {
			return repoError(err, ErrAttemptNotFound, "get attempt")
		}
		if attempt.UserID != actor.UserID {
			return NewPermissionError(actor.UserID, attemptID, "attempt", "answer", "not owned by user")
		}
		if attempt.IsFinished {
			if attempt.EndReason != nil && *attempt.EndReason == models.EndReasonTimeExpired {
				return ErrAttemptExpired
			}
			return ErrAttemptFinished
		}

		if attempt.IsExpired(s.now()) {
			if _, _, err := s.finishLocked(ctx, attemptID, models.EndReasonTimeExpired); err != nil {
				s.logger.Error("Failed to finish expired attempt", "attempt_id", attemptID, "error", err)
			}
			return ErrAttemptExpired
		}

		snap, err := models.DecodeSnapshot(attempt.Snapshot)
		if err != nil {
			return err
		}
		question, ok := snap.Question(req.QuestionID)
		if !ok {
			return ErrInvalidQuestion
		}

		answer, err := buildAnswer(question, req)
		if err != nil {
			return err
		}
		answer.AttemptID = attemptID
		answer.AnsweredAt = s.now()

		if err := s.repo.Answer().Upsert(ctx, answer); err != nil {
			switch {
			case errors.Is(err, repositories.ErrConflict):
				return ErrAttemptFinished
			case repositories.IsNotFoundError(err):
				return ErrAttemptNotFound
			}
			return fmt.Errorf("failed to save answer: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.metrics.AnswerSubmitted()
	s.logger.Debug("Answer recorded", "attempt_id", attemptID, "question_id", req.QuestionID)
	return nil
}

// GetProgress finishes an overdue attempt before projecting it
func (s *attemptService) GetProgress(ctx context.Context, attemptID uint, actor Actor) (*AttemptProgress, error) {
	attempt, err := s.loadForRead(ctx, attemptID, actor)
	if err != nil {
		return nil, err
	}
	return s.progress(attempt)
}

func (s *attemptService) Finish(ctx context.Context, attemptID uint, actor Actor) (*AttemptResult, error) {
	var attempt *models.TestAttempt
	err := s.withLock(ctx, attemptKey(attemptID), func() error {
		current, err := s.repo.Attempt().GetByID(ctx, attemptID)
		if err != nil {
			return repoError(err, ErrAttemptNotFound, "get attempt")
		}
		if !actor.canAccessUser(current.UserID) {
			return NewPermissionError(actor.UserID, attemptID, "attempt", "finish", "not owned by user")
		}
		if current.IsFinished {
			attempt = current
			return nil
		}
		attempt, _, err = s.finishLocked(ctx, attemptID, models.EndReasonSubmitted)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resultFromAttempt(attempt), nil
}

func (s *attemptService) Expire(ctx context.Context, attemptID uint, actor Actor) (*AttemptProgress, error) {
	return s.GetProgress(ctx, attemptID, actor)
}

func (s *attemptService) ExpireOverdue(ctx context.Context, actor Actor) (*ExpireOverdueResponse, error) {
	if err := requireAdmin(actor, "attempt", "expire overdue"); err != nil {
		return nil, err
	}

	expired := 0
	for {
		batch, err := s.repo.Attempt().ListOverdue(ctx, s.now(), overdueBatchSize)
		if err != nil {
			return nil, fmt.Errorf("failed to list overdue attempts: %w", err)
		}

		progressed := 0
		for _, a := range batch {
			err := s.withLock(ctx, attemptKey(a.ID), func() error {
				_, finished, err := s.finishLocked(ctx, a.ID, models.EndReasonTimeExpired)
				if finished {
					progressed++
				}
				return err
			})
			if err != nil {
				s.logger.Error("Failed to expire attempt", "attempt_id", a.ID, "error", err)
			}
		}
		expired += progressed

		if len(batch) < overdueBatchSize || progressed == 0 {
			break
		}
	}

	s.logger.Info("Overdue attempts expired", "count", expired)
	return &ExpireOverdueResponse{Expired: expired}, nil
}

// ===== HISTORY =====

func (s *attemptService) ListUserAttempts(ctx context.Context, userID uint, params AttemptListParams, actor Actor) (*models.Page[*models.TestAttempt], error) {
	if !actor.canAccessUser(userID) {
		return nil, NewPermissionError(actor.UserID, userID, "user", "list attempts", "not the account owner")
	}

	page, limit, offset := normalizePage(params.Page, params.Limit)
	attempts, total, err := s.repo.Attempt().List(ctx, repositories.AttemptFilters{
		UserID: &userID,
		TestID: params.TestID,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}

	now := s.now()
	for i, a := range attempts {
		if a.IsExpired(now) {
			finished, err := s.expireNow(ctx, a.ID)
			if err != nil {
				s.logger.Error("Failed to finish expired attempt", "attempt_id", a.ID, "error", err)
			} else {
				attempts[i] = finished
			}
		}
		attempts[i].Snapshot = nil
		attempts[i].Answers = nil
	}

	return models.NewPage(attempts, total, page, limit), nil
}

func (s *attemptService) GetDetails(ctx context.Context, attemptID uint, actor Actor) (*AttemptDetails, error) {
	attempt, err := s.loadForRead(ctx, attemptID, actor)
	if err != nil {
		return nil, err
	}
	if !attempt.IsFinished {
		return nil, ErrAttemptInProgress
	}

	snap, err := models.DecodeSnapshot(attempt.Snapshot)
	if err != nil {
		return nil, err
	}

	byQuestion := make(map[uint]*models.AttemptAnswer, len(attempt.Answers))
	for i := range attempt.Answers {
		byQuestion[attempt.Answers[i].QuestionID] = &attempt.Answers[i]
	}

	details := &AttemptDetails{
		TestAttempt: attempt,
		TestTitle:   snap.Title,
		Questions:   make([]QuestionResult, 0, len(snap.Questions)),
	}
	for i := range snap.Questions {
		q := &snap.Questions[i]
		result := QuestionResult{
			QuestionID:        q.ID,
			QuestionText:      q.Text,
			AnswerType:        q.AnswerType,
			UserAnswerIDs:     []uint{},
			CorrectAnswerText: correctAnswerText(q),
			MaxScore:          float64(q.MaxPoints),
		}
		if ans, ok := byQuestion[q.ID]; ok {
			if ids := ans.SelectedOptions(); ids != nil {
				result.UserAnswerIDs = ids
			}
			result.UserAnswerText = ans.AnswerText
			result.ScoreEarned = ans.ScoreEarned
		} else {
			result.ScoreEarned = floatPtr(0)
		}
		result.IsCorrect = result.ScoreEarned != nil && *result.ScoreEarned == result.MaxScore
		details.Questions = append(details.Questions, result)
	}
	return details, nil
}

// GradeAnswer records a manual grade and recomputes the attempt result
func (s *attemptService) GradeAnswer(ctx context.Context, attemptID, questionID uint, req *GradeAnswerRequest, actor Actor) (*AttemptResult, error) {
	if err := requireAdmin(actor, "attempt", "grade"); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	var attempt *models.TestAttempt
	err := s.withLock(ctx, attemptKey(attemptID), func() error {
		var err error
		attempt, err = s.gradeLocked(ctx, attemptID, questionID, req.Points, actor.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}

	cache.InvalidateStatistics(ctx, s.cache, attempt.TestID, attempt.UserID)
	result := resultFromAttempt(attempt)
	s.publish(ctx, events.AttemptGraded, &events.AttemptGradedEvent{
		AttemptID:  attemptID,
		QuestionID: questionID,
		GradedBy:   actor.UserID,
		Points:     req.Points,
		Score:      result.Score,
		Passed:     result.Passed,
	})

	s.logger.Info("Answer graded",
		"attempt_id", attemptID,
		"question_id", questionID,
		"points", req.Points,
		"graded_by", actor.UserID)
	return result, nil
}
