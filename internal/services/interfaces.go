package services

import (
	"context"
	"time"

	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/validator"
)

// ===== CALLER =====

// Actor is the authenticated caller of a service operation
type Actor struct {
	UserID uint
	Role   models.UserRole
}

func (a Actor) IsAdmin() bool {
	return a.Role == models.RoleAdmin
}

// canAccessUser reports whether the actor may read data owned by userID
func (a Actor) canAccessUser(userID uint) bool {
	return a.IsAdmin() || a.UserID == userID
}

// ===== REQUEST/RESPONSE DTOs =====

// Use validator DTO types
type RegisterRequest = validator.RegisterRequest
type LoginRequest = validator.LoginRequest
type ChangePasswordRequest = validator.ChangePasswordRequest
type SetRoleRequest = validator.SetRoleRequest

type CreateTestRequest = validator.TestCreateRequest
type UpdateTestRequest = validator.TestUpdateRequest
type CreateQuestionRequest = validator.QuestionCreateRequest
type UpdateQuestionRequest = validator.QuestionUpdateRequest
type CreateOptionRequest = validator.OptionCreateRequest
type UpdateOptionRequest = validator.OptionUpdateRequest

type ReorderQuestionsRequest struct {
	QuestionIDs []uint `json:"questionIds" validate:"required,min=1,dive,required"`
}

type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *models.User `json:"user"`
}

type UserListParams struct {
	Search string
	Page   int
	Limit  int
}

type TestListParams struct {
	IsActive  *bool
	CreatorID *uint
	Search    string
	Page      int
	Limit     int
}

// ===== ATTEMPT DTOs =====

type StartAttemptRequest struct {
	TestID uint `json:"testId" validate:"required"`
}

// SubmitAnswerRequest carries answerId or answerIds for choice questions and answerText otherwise
type SubmitAnswerRequest struct {
	QuestionID uint    `json:"questionId" validate:"required"`
	AnswerID   *uint   `json:"answerId" validate:"omitempty,min=1"`
	AnswerIDs  []uint  `json:"answerIds" validate:"omitempty,max=50,dive,min=1"`
	AnswerText *string `json:"answerText" validate:"omitempty,max=5000"`
}

type GradeAnswerRequest struct {
	Points float64 `json:"points" validate:"min=0"`
}

type AttemptListParams struct {
	TestID *uint
	Page   int
	Limit  int
}

type StartAttemptResponse struct {
	AttemptID     uint      `json:"attemptId"`
	AttemptNumber int       `json:"attemptNumber"`
	StartTime     time.Time `json:"startTime"`
	TimeLimit     int       `json:"timeLimit"`
}

// AttemptProgress is the read projection of an attempt; timeRemaining is in seconds
type AttemptProgress struct {
	ID                uint       `json:"id"`
	UserID            uint       `json:"userId"`
	TestID            uint       `json:"testId"`
	StartTime         time.Time  `json:"startTime"`
	EndTime           *time.Time `json:"endTime"`
	Score             *float64   `json:"score"`
	IsFinished        bool       `json:"isFinished"`
	AnsweredQuestions []uint     `json:"answeredQuestions"`
	TotalQuestions    int        `json:"totalQuestions"`
	TimeRemaining     int        `json:"timeRemaining"`
}

type AttemptResult struct {
	AttemptID     uint      `json:"attemptId"`
	Score         float64   `json:"score"`
	MaxScore      float64   `json:"maxScore"`
	Percentage    float64   `json:"percentage"`
	Passed        bool      `json:"passed"`
	PendingReview bool      `json:"pendingReview"`
	EndTime       time.Time `json:"endTime"`
	EndReason     string    `json:"endReason"`
}

type AttemptDetails struct {
	*models.TestAttempt
	TestTitle string           `json:"testTitle"`
	Questions []QuestionResult `json:"questions"`
}

type QuestionResult struct {
	QuestionID        uint              `json:"questionId"`
	QuestionText      string            `json:"questionText"`
	AnswerType        models.AnswerType `json:"answerType"`
	UserAnswerIDs     []uint            `json:"userAnswerIds"`
	UserAnswerText    *string           `json:"userAnswerText"`
	CorrectAnswerText *string           `json:"correctAnswerText"`
	ScoreEarned       *float64          `json:"scoreEarned"`
	MaxScore          float64           `json:"maxScore"`
	IsCorrect         bool              `json:"isCorrect"`
}

type ExpireOverdueResponse struct {
	Expired int `json:"expired"`
}

// ExportFile is a generated document ready to be streamed
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ===== SERVICE INTERFACES =====

type UserService interface {
	Register(ctx context.Context, req *RegisterRequest) (*models.User, error)
	Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error)
	Logout(ctx context.Context, tokenID string, expiresAt time.Time) error
	Me(ctx context.Context, actor Actor) (*models.User, error)
	GetByID(ctx context.Context, id uint, actor Actor) (*models.User, error)
	List(ctx context.Context, params UserListParams, actor Actor) (*models.Page[*models.User], error)
	ChangePassword(ctx context.Context, req *ChangePasswordRequest, actor Actor) error
	SetRole(ctx context.Context, id uint, req *SetRoleRequest, actor Actor) (*models.User, error)

	// EnsureAdmin creates or promotes the bootstrap administrator
	EnsureAdmin(ctx context.Context, email, password string) (*models.User, error)
}

// TestService is the test catalog: tests, their questions and answer options
type TestService interface {
	CreateTest(ctx context.Context, req *CreateTestRequest, actor Actor) (*models.Test, error)
	GetTest(ctx context.Context, id uint, actor Actor) (*models.Test, error)
	ListTests(ctx context.Context, params TestListParams, actor Actor) (*models.Page[*models.Test], error)
	UpdateTest(ctx context.Context, id uint, req *UpdateTestRequest, actor Actor) (*models.Test, error)
	DeactivateTest(ctx context.Context, id uint, actor Actor) error

	AddQuestion(ctx context.Context, testID uint, req *CreateQuestionRequest, actor Actor) (*models.Question, error)
	GetQuestion(ctx context.Context, id uint, actor Actor) (*models.Question, error)
	ListQuestions(ctx context.Context, testID uint, actor Actor) ([]*models.Question, error)
	UpdateQuestion(ctx context.Context, id uint, req *UpdateQuestionRequest, actor Actor) (*models.Question, error)
	DeleteQuestion(ctx context.Context, id uint, actor Actor) error
	ReorderQuestions(ctx context.Context, testID uint, req *ReorderQuestionsRequest, actor Actor) ([]*models.Question, error)

	AddOption(ctx context.Context, questionID uint, req *CreateOptionRequest, actor Actor) (*models.AnswerOption, error)
	ListOptions(ctx context.Context, questionID uint, actor Actor) ([]*models.AnswerOption, error)
	UpdateOption(ctx context.Context, id uint, req *UpdateOptionRequest, actor Actor) (*models.AnswerOption, error)
	DeleteOption(ctx context.Context, id uint, actor Actor) error
}

// AttemptService is the attempt engine
type AttemptService interface {
	Start(ctx context.Context, req *StartAttemptRequest, actor Actor) (*StartAttemptResponse, error)
	SubmitAnswer(ctx context.Context, attemptID uint, req *SubmitAnswerRequest, actor Actor) error
	GetProgress(ctx context.Context, attemptID uint, actor Actor) (*AttemptProgress, error)
	Finish(ctx context.Context, attemptID uint, actor Actor) (*AttemptResult, error)

	// Expire finishes an overdue attempt; attempts still in time are left untouched
	Expire(ctx context.Context, attemptID uint, actor Actor) (*AttemptProgress, error)
	ExpireOverdue(ctx context.Context, actor Actor) (*ExpireOverdueResponse, error)

	ListUserAttempts(ctx context.Context, userID uint, params AttemptListParams, actor Actor) (*models.Page[*models.TestAttempt], error)
	GetDetails(ctx context.Context, attemptID uint, actor Actor) (*AttemptDetails, error)
	GradeAnswer(ctx context.Context, attemptID, questionID uint, req *GradeAnswerRequest, actor Actor) (*AttemptResult, error)
}

type StatisticsService interface {
	TestStatistics(ctx context.Context, testID uint, actor Actor) (*models.TestStatistics, error)
	UserStatistics(ctx context.Context, userID uint, actor Actor) (*models.UserStatistics, error)
	GlobalStatistics(ctx context.Context, actor Actor) (*models.GlobalStatistics, error)
}

type ExportService interface {
	ExportTestResults(ctx context.Context, testID uint, actor Actor) (*ExportFile, error)
}

// ServiceManager manages all services and their lifecycle
type ServiceManager interface {
	Users() UserService
	Tests() TestService
	Attempts() AttemptService
	Statistics() StatisticsService
	Export() ExportService

	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
