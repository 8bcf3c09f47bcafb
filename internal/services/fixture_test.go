package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/SAP-F-2025/quiz-service/internal/cache"
	"github.com/SAP-F-2025/quiz-service/internal/events"
	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories/memory"
	"github.com/SAP-F-2025/quiz-service/internal/validator"
)

var baseTime = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: baseTime}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type stubIssuer struct{}

func (stubIssuer) Issue(user *models.User) (string, time.Time, error) {
	return "token-" + user.Email, baseTime.Add(time.Hour), nil
}

type fixture struct {
	repo      *memory.Repository
	clock     *fakeClock
	publisher *events.MockEventPublisher
	cache     *cache.CacheManager

	users    UserService
	tests    TestService
	attempts AttemptService
	stats    StatisticsService
	export   ExportService

	admin Actor
	user  Actor
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithCache(t, cache.NewCacheManager(nil))
}

func newFixtureWithCache(t *testing.T, cm *cache.CacheManager) *fixture {
	t.Helper()

	logger := discardLogger()
	f := &fixture{
		repo:      memory.NewRepository(),
		clock:     newFakeClock(),
		publisher: events.NewMockEventPublisher(logger),
		cache:     cm,
	}

	sm := NewServiceManager(Dependencies{
		Repo:      f.repo,
		Cache:     cm,
		Publisher: f.publisher,
		Tokens:    stubIssuer{},
		Clock:     f.clock,
		Logger:    logger,
		Validator: validator.New(),
	}, ServiceManagerConfig{DefaultPassingScore: 60})
	if err := sm.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	f.users = sm.Users()
	f.tests = sm.Tests()
	f.attempts = sm.Attempts()
	f.stats = sm.Statistics()
	f.export = sm.Export()

	admin := f.createUser(t, "admin@example.com", models.RoleAdmin)
	user := f.createUser(t, "user@example.com", models.RoleUser)
	f.admin = Actor{UserID: admin.ID, Role: admin.Role}
	f.user = Actor{UserID: user.ID, Role: user.Role}
	return f
}

func (f *fixture) createUser(t *testing.T, email string, role models.UserRole) *models.User {
	t.Helper()
	u := &models.User{Email: email, PasswordHash: "x", FirstName: "F", LastName: "L", Role: role}
	if err := f.repo.User().Create(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

type testParams struct {
	timeLimit   int
	maxAttempts int
	window      time.Duration
}

// choiceTest is one multiple choice question worth 10 with a correct option (10) and a distractor (0)
type choiceTest struct {
	test       *models.Test
	question   *models.Question
	correct    uint
	distractor uint
}

func (f *fixture) createChoiceTest(t *testing.T, params testParams) *choiceTest {
	t.Helper()
	if params.window == 0 {
		params.window = 24 * time.Hour
	}
	ctx := context.Background()
	test, err := f.tests.CreateTest(ctx, &CreateTestRequest{
		Title:       "Go basics",
		TimeLimit:   params.timeLimit,
		MaxAttempts: params.maxAttempts,
		StartTime:   baseTime.Add(-time.Hour),
		EndTime:     baseTime.Add(params.window),
	}, f.admin)
	if err != nil {
		t.Fatalf("CreateTest() error = %v", err)
	}
	q, err := f.tests.AddQuestion(ctx, test.ID, &CreateQuestionRequest{
		QuestionText: "Pick the right one",
		AnswerType:   "MULTIPLE_CHOICE",
		MaxPoints:    10,
		Options: []CreateOptionRequest{
			{OptionText: "right", Score: 10},
			{OptionText: "wrong", Score: 0},
		},
	}, f.admin)
	if err != nil {
		t.Fatalf("AddQuestion() error = %v", err)
	}
	return &choiceTest{test: test, question: q, correct: q.Options[0].ID, distractor: q.Options[1].ID}
}

func (f *fixture) start(t *testing.T, testID uint, actor Actor) *StartAttemptResponse {
	t.Helper()
	resp, err := f.attempts.Start(context.Background(), &StartAttemptRequest{TestID: testID}, actor)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return resp
}

func (f *fixture) answer(t *testing.T, attemptID, questionID uint, optionIDs ...uint) {
	t.Helper()
	err := f.attempts.SubmitAnswer(context.Background(), attemptID, &SubmitAnswerRequest{QuestionID: questionID, AnswerIDs: optionIDs}, f.user)
	if err != nil {
		t.Fatalf("SubmitAnswer() error = %v", err)
	}
}

func (f *fixture) finish(t *testing.T, attemptID uint) *AttemptResult {
	t.Helper()
	res, err := f.attempts.Finish(context.Background(), attemptID, f.user)
	if err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	return res
}
