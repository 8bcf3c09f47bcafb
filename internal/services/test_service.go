package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/SAP-F-2025/quiz-service/internal/cache"
	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
	"github.com/SAP-F-2025/quiz-service/internal/validator"
)

type testService struct {
	repo                repositories.Repository
	cache               *cache.CacheManager
	logger              *slog.Logger
	validator           *validator.Validator
	defaultPassingScore int
}

func NewTestService(repo repositories.Repository, cm *cache.CacheManager, logger *slog.Logger, validator *validator.Validator, defaultPassingScore int) TestService {
	return &testService{
		repo:                repo,
		cache:               cm,
		logger:              logger,
		validator:           validator,
		defaultPassingScore: defaultPassingScore,
	}
}

// ===== TESTS =====

func (s *testService) CreateTest(ctx context.Context, req *CreateTestRequest, actor Actor) (*models.Test, error) {
	if err := requireAdmin(actor, "test", "create"); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	test := &models.Test{
		CreatorID:    actor.UserID,
		Title:        strings.TrimSpace(req.Title),
		Description:  req.Description,
		TimeLimit:    req.TimeLimit,
		MaxAttempts:  req.MaxAttempts,
		PassingScore: s.defaultPassingScore,
		IsActive:     true,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
	}
	if req.PassingScore != nil {
		test.PassingScore = *req.PassingScore
	}
	if req.IsActive != nil {
		test.IsActive = *req.IsActive
	}
	if errs := s.validator.GetBusinessValidator().ValidateTest(test); len(errs) > 0 {
		return nil, errs
	}

	if err := s.repo.Test().Create(ctx, test); err != nil {
		return nil, fmt.Errorf("failed to create test: %w", err)
	}

	cache.InvalidateGlobalStatistics(ctx, s.cache)

	s.logger.Info("Test created", "test_id", test.ID, "creator_id", actor.UserID)
	return test, nil
}

func (s *testService) GetTest(ctx context.Context, id uint, actor Actor) (*models.Test, error) {
	test, err := s.repo.Test().GetByID(ctx, id)
	if err != nil {
		return nil, repoError(err, ErrTestNotFound, "get test")
	}
	return test, nil
}

func (s *testService) ListTests(ctx context.Context, params TestListParams, actor Actor) (*models.Page[*models.Test], error) {
	page, limit, offset := normalizePage(params.Page, params.Limit)
	tests, total, err := s.repo.Test().List(ctx, repositories.TestFilters{
		IsActive:  params.IsActive,
		CreatorID: params.CreatorID,
		Search:    strings.TrimSpace(params.Search),
		Limit:     limit,
		Offset:    offset,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list tests: %w", err)
	}
	return models.NewPage(tests, total, page, limit), nil
}

func (s *testService) UpdateTest(ctx context.Context, id uint, req *UpdateTestRequest, actor Actor) (*models.Test, error) {
	if err := requireAdmin(actor, "test", "update"); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	test, err := s.repo.Test().GetByID(ctx, id)
	if err != nil {
		return nil, repoError(err, ErrTestNotFound, "get test")
	}

	if req.Title != nil {
		test.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		test.Description = *req.Description
	}
	if req.TimeLimit != nil {
		test.TimeLimit = *req.TimeLimit
	}
	if req.MaxAttempts != nil {
		test.MaxAttempts = *req.MaxAttempts
	}
	if req.PassingScore != nil {
		test.PassingScore = *req.PassingScore
	}
	if req.IsActive != nil {
		test.IsActive = *req.IsActive
	}
	if req.StartTime != nil {
		test.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		test.EndTime = *req.EndTime
	}
	if errs := s.validator.GetBusinessValidator().ValidateTest(test); len(errs) > 0 {
		return nil, errs
	}

	if err := s.repo.Test().Update(ctx, test); err != nil {
		return nil, repoError(err, ErrTestNotFound, "update test")
	}

	cache.InvalidateTestStatistics(ctx, s.cache, id)

	s.logger.Info("Test updated", "test_id", id, "updated_by", actor.UserID)
	return test, nil
}

// DeactivateTest is a soft delete; attempts keep resolving through their snapshots
func (s *testService) DeactivateTest(ctx context.Context, id uint, actor Actor) error {
	if err := requireAdmin(actor, "test", "deactivate"); err != nil {
		return err
	}
	test, err := s.repo.Test().GetByID(ctx, id)
	if err != nil {
		return repoError(err, ErrTestNotFound, "get test")
	}
	if !test.IsActive {
		return nil
	}
	test.IsActive = false
	if err := s.repo.Test().Update(ctx, test); err != nil {
		return repoError(err, ErrTestNotFound, "deactivate test")
	}
	cache.InvalidateTestStatistics(ctx, s.cache, id)

	s.logger.Info("Test deactivated", "test_id", id, "deactivated_by", actor.UserID)
	return nil
}

// ===== QUESTIONS =====

func (s *testService) AddQuestion(ctx context.Context, testID uint, req *CreateQuestionRequest, actor Actor) (*models.Question, error) {
	if err := requireAdmin(actor, "question", "create"); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if _, err := s.repo.Test().GetByID(ctx, testID); err != nil {
		return nil, repoError(err, ErrTestNotFound, "get test")
	}

	answerType, _ := models.ParseAnswerType(req.AnswerType)
	question := &models.Question{
		TestID:          testID,
		QuestionText:    strings.TrimSpace(req.QuestionText),
		AnswerType:      answerType,
		MaxPoints:       req.MaxPoints,
		AcceptedAnswers: models.EncodeStrings(trimAll(req.AcceptedAnswers)),
		Tolerance:       req.Tolerance,
	}
	for _, opt := range req.Options {
		question.Options = append(question.Options, models.AnswerOption{
			OptionText: strings.TrimSpace(opt.OptionText),
			Score:      opt.Score,
		})
	}
	if errs := s.validator.GetBusinessValidator().ValidateQuestion(question, len(question.Options)); len(errs) > 0 {
		return nil, errs
	}

	err := s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		if req.OrderIndex != nil {
			question.OrderIndex = *req.OrderIndex
		} else {
			maxIndex, err := tx.Question().MaxOrderIndex(ctx, testID)
			if err != nil {
				return fmt.Errorf("failed to get max order index: %w", err)
			}
			question.OrderIndex = maxIndex + 1
		}

		if err := tx.Question().Create(ctx, question); err != nil {
			return fmt.Errorf("failed to create question: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Question added", "test_id", testID, "question_id", question.ID, "options", len(question.Options))
	return question, nil
}

func (s *testService) GetQuestion(ctx context.Context, id uint, actor Actor) (*models.Question, error) {
	question, err := s.repo.Question().GetByID(ctx, id)
	if err != nil {
		return nil, repoError(err, ErrQuestionNotFound, "get question")
	}
	if !actor.IsAdmin() {
		sanitizeQuestion(question)
	}
	return question, nil
}

func (s *testService) ListQuestions(ctx context.Context, testID uint, actor Actor) ([]*models.Question, error) {
	if _, err := s.repo.Test().GetByID(ctx, testID); err != nil {
		return nil, repoError(err, ErrTestNotFound, "get test")
	}
	questions, err := s.repo.Question().ListByTest(ctx, testID)
	if err != nil {
		return nil, fmt.Errorf("failed to list questions: %w", err)
	}
	if !actor.IsAdmin() {
		for _, q := range questions {
			sanitizeQuestion(q)
		}
	}
	if questions == nil {
		questions = []*models.Question{}
	}
	return questions, nil
}

func (s *testService) UpdateQuestion(ctx context.Context, id uint, req *UpdateQuestionRequest, actor Actor) (*models.Question, error) {
	if err := requireAdmin(actor, "question", "update"); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	question, err := s.repo.Question().GetByID(ctx, id)
	if err != nil {
		return nil, repoError(err, ErrQuestionNotFound, "get question")
	}

	if req.QuestionText != nil {
		question.QuestionText = strings.TrimSpace(*req.QuestionText)
	}
	if req.AnswerType != nil {
		question.AnswerType, _ = models.ParseAnswerType(*req.AnswerType)
	}
	if req.MaxPoints != nil {
		question.MaxPoints = *req.MaxPoints
	}
	if req.OrderIndex != nil {
		question.OrderIndex = *req.OrderIndex
	}
	if req.AcceptedAnswers != nil {
		question.AcceptedAnswers = models.EncodeStrings(trimAll(*req.AcceptedAnswers))
	}
	if req.Tolerance != nil {
		question.Tolerance = req.Tolerance
	}
	if errs := s.validator.GetBusinessValidator().ValidateQuestion(question, len(question.Options)); len(errs) > 0 {
		return nil, errs
	}

	if err := s.repo.Question().Update(ctx, question); err != nil {
		return nil, repoError(err, ErrQuestionNotFound, "update question")
	}

	s.logger.Info("Question updated", "question_id", id, "updated_by", actor.UserID)
	return question, nil
}

func (s *testService) DeleteQuestion(ctx context.Context, id uint, actor Actor) error {
	if err := requireAdmin(actor, "question", "delete"); err != nil {
		return err
	}
	if err := s.repo.Question().Delete(ctx, id); err != nil {
		return repoError(err, ErrQuestionNotFound, "delete question")
	}
	s.logger.Info("Question deleted", "question_id", id, "deleted_by", actor.UserID)
	return nil
}

// ReorderQuestions assigns orderIndex 1..n following the given id order
func (s *testService) ReorderQuestions(ctx context.Context, testID uint, req *ReorderQuestionsRequest, actor Actor) ([]*models.Question, error) {
	if err := requireAdmin(actor, "question", "reorder"); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if _, err := s.repo.Test().GetByID(ctx, testID); err != nil {
		return nil, repoError(err, ErrTestNotFound, "get test")
	}

	seen := make(map[uint]bool, len(req.QuestionIDs))
	orders := make([]repositories.QuestionOrder, 0, len(req.QuestionIDs))
	for i, qid := range req.QuestionIDs {
		if seen[qid] {
			return nil, NewValidationError("questionIds", "must not contain duplicates", qid)
		}
		seen[qid] = true
		orders = append(orders, repositories.QuestionOrder{QuestionID: qid, OrderIndex: i + 1})
	}

	if err := s.repo.Question().UpdateOrder(ctx, testID, orders); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrInvalidQuestion
		}
		return nil, fmt.Errorf("failed to reorder questions: %w", err)
	}

	s.logger.Info("Questions reordered", "test_id", testID, "count", len(orders))
	return s.ListQuestions(ctx, testID, actor)
}

// ===== OPTIONS =====

func (s *testService) AddOption(ctx context.Context, questionID uint, req *CreateOptionRequest, actor Actor) (*models.AnswerOption, error) {
	if err := requireAdmin(actor, "option", "create"); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	question, err := s.repo.Question().GetByID(ctx, questionID)
	if err != nil {
		return nil, repoError(err, ErrQuestionNotFound, "get question")
	}
	if !question.AnswerType.IsChoice() {
		return nil, NewValidationError("questionId", "options are only allowed on choice questions", questionID)
	}
	if errs := s.validator.GetBusinessValidator().ValidateOptionScore("score", req.Score, question.MaxPoints); len(errs) > 0 {
		return nil, errs
	}

	option := &models.AnswerOption{
		QuestionID: questionID,
		OptionText: strings.TrimSpace(req.OptionText),
		Score:      req.Score,
	}
	if err := s.repo.Option().Create(ctx, option); err != nil {
		return nil, fmt.Errorf("failed to create option: %w", err)
	}

	s.logger.Info("Option added", "question_id", questionID, "option_id", option.ID)
	return option, nil
}

func (s *testService) ListOptions(ctx context.Context, questionID uint, actor Actor) ([]*models.AnswerOption, error) {
	if _, err := s.repo.Question().GetByID(ctx, questionID); err != nil {
		return nil, repoError(err, ErrQuestionNotFound, "get question")
	}
	options, err := s.repo.Option().ListByQuestion(ctx, questionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list options: %w", err)
	}
	if !actor.IsAdmin() {
		for _, o := range options {
			o.Score = 0
		}
	}
	if options == nil {
		options = []*models.AnswerOption{}
	}
	return options, nil
}

func (s *testService) UpdateOption(ctx context.Context, id uint, req *UpdateOptionRequest, actor Actor) (*models.AnswerOption, error) {
	if err := requireAdmin(actor, "option", "update"); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	option, err := s.repo.Option().GetByID(ctx, id)
	if err != nil {
		return nil, repoError(err, ErrOptionNotFound, "get option")
	}

	if req.OptionText != nil {
		option.OptionText = strings.TrimSpace(*req.OptionText)
	}
	if req.Score != nil {
		question, err := s.repo.Question().GetByID(ctx, option.QuestionID)
		if err != nil {
			return nil, repoError(err, ErrQuestionNotFound, "get question")
		}
		if errs := s.validator.GetBusinessValidator().ValidateOptionScore("score", *req.Score, question.MaxPoints); len(errs) > 0 {
			return nil, errs
		}
		option.Score = *req.Score
	}

	if err := s.repo.Option().Update(ctx, option); err != nil {
		return nil, repoError(err, ErrOptionNotFound, "update option")
	}
	return option, nil
}

func (s *testService) DeleteOption(ctx context.Context, id uint, actor Actor) error {
	if err := requireAdmin(actor, "option", "delete"); err != nil {
		return err
	}
	if err := s.repo.Option().Delete(ctx, id); err != nil {
		return repoError(err, ErrOptionNotFound, "delete option")
	}
	s.logger.Info("Option deleted", "option_id", id, "deleted_by", actor.UserID)
	return nil
}

// sanitizeQuestion strips grading data before a question reaches a test taker
func sanitizeQuestion(q *models.Question) {
	q.AcceptedAnswers = nil
	q.Tolerance = nil
	for i := range q.Options {
		q.Options[i].Score = 0
	}
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}
