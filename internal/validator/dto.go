package validator

import (
	"time"
)

// ===== USERS =====

type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email,max=255"`
	Password  string `json:"password" validate:"required,min=8,max=72"`
	FirstName string `json:"firstName" validate:"required,not_blank,max=100"`
	LastName  string `json:"lastName" validate:"required,not_blank,max=100"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=8,max=72"`
}

type SetRoleRequest struct {
	Role string `json:"role" validate:"required,user_role"`
}

// ===== TESTS =====

// TestCreateRequest creates a test; timeLimit is in seconds
type TestCreateRequest struct {
	Title        string    `json:"title" validate:"required,not_blank,max=200"`
	Description  string    `json:"description" validate:"max=2000"`
	TimeLimit    int       `json:"timeLimit" validate:"required,min=1,max=86400"`
	MaxAttempts  int       `json:"maxAttempts" validate:"required,min=1,max=100"`
	PassingScore *int      `json:"passingScore" validate:"omitempty,passing_score"`
	IsActive     *bool     `json:"isActive"`
	StartTime    time.Time `json:"startTime" validate:"required"`
	EndTime      time.Time `json:"endTime" validate:"required,gtfield=StartTime"`
}

// TestUpdateRequest is a partial update; the merged test is validated again
type TestUpdateRequest struct {
	Title        *string    `json:"title" validate:"omitempty,not_blank,max=200"`
	Description  *string    `json:"description" validate:"omitempty,max=2000"`
	TimeLimit    *int       `json:"timeLimit" validate:"omitempty,min=1,max=86400"`
	MaxAttempts  *int       `json:"maxAttempts" validate:"omitempty,min=1,max=100"`
	PassingScore *int       `json:"passingScore" validate:"omitempty,passing_score"`
	IsActive     *bool      `json:"isActive"`
	StartTime    *time.Time `json:"startTime"`
	EndTime      *time.Time `json:"endTime"`
}

// ===== QUESTIONS =====

type QuestionCreateRequest struct {
	QuestionText    string                `json:"questionText" validate:"required,not_blank,max=2000"`
	AnswerType      string                `json:"answerType" validate:"required,answer_type"`
	MaxPoints       int                   `json:"maxPoints" validate:"required,min=1,max=1000"`
	OrderIndex      *int                  `json:"orderIndex" validate:"omitempty,min=0"`
	AcceptedAnswers []string              `json:"acceptedAnswers" validate:"omitempty,max=20,dive,not_blank,max=500"`
	Tolerance       *float64              `json:"tolerance" validate:"omitempty,min=0"`
	Options         []OptionCreateRequest `json:"options" validate:"omitempty,max=20,dive"`
}

type QuestionUpdateRequest struct {
	QuestionText    *string   `json:"questionText" validate:"omitempty,not_blank,max=2000"`
	AnswerType      *string   `json:"answerType" validate:"omitempty,answer_type"`
	MaxPoints       *int      `json:"maxPoints" validate:"omitempty,min=1,max=1000"`
	OrderIndex      *int      `json:"orderIndex" validate:"omitempty,min=0"`
	AcceptedAnswers *[]string `json:"acceptedAnswers" validate:"omitempty,max=20,dive,not_blank,max=500"`
	Tolerance       *float64  `json:"tolerance" validate:"omitempty,min=0"`
}

// ===== OPTIONS =====

type OptionCreateRequest struct {
	OptionText string `json:"optionText" validate:"required,not_blank,max=1000"`
	Score      int    `json:"score" validate:"min=0"`
}

type OptionUpdateRequest struct {
	OptionText *string `json:"optionText" validate:"omitempty,not_blank,max=1000"`
	Score      *int    `json:"score" validate:"omitempty,min=0"`
}
