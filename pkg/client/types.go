package client

import "time"

type Page[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"totalPages"`
}

type User struct {
	ID        uint      `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

type RegisterRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      *User     `json:"user"`
}

// Test is a timed quiz; TimeLimit is in seconds and PassingScore a percent
type Test struct {
	ID            uint      `json:"id"`
	CreatorID     uint      `json:"creatorId"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	TimeLimit     int       `json:"timeLimit"`
	MaxAttempts   int       `json:"maxAttempts"`
	PassingScore  int       `json:"passingScore"`
	IsActive      bool      `json:"isActive"`
	StartTime     time.Time `json:"startTime"`
	EndTime       time.Time `json:"endTime"`
	QuestionCount int       `json:"questionCount"`
}

type TestRequest struct {
	Title        string     `json:"title,omitempty"`
	Description  string     `json:"description,omitempty"`
	TimeLimit    int        `json:"timeLimit,omitempty"`
	MaxAttempts  int        `json:"maxAttempts,omitempty"`
	PassingScore *int       `json:"passingScore,omitempty"`
	IsActive     *bool      `json:"isActive,omitempty"`
	StartTime    *time.Time `json:"startTime,omitempty"`
	EndTime      *time.Time `json:"endTime,omitempty"`
}

type TestFilter struct {
	Active    *bool
	CreatorID uint
	Search    string
	Page      int
	Limit     int
}

type Question struct {
	ID              uint           `json:"id"`
	TestID          uint           `json:"testId"`
	QuestionText    string         `json:"questionText"`
	AnswerType      string         `json:"answerType"`
	MaxPoints       int            `json:"maxPoints"`
	OrderIndex      int            `json:"orderIndex"`
	AcceptedAnswers []string       `json:"acceptedAnswers,omitempty"`
	Tolerance       *float64       `json:"tolerance,omitempty"`
	Options         []AnswerOption `json:"options,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
}

type QuestionRequest struct {
	QuestionText    string          `json:"questionText,omitempty"`
	AnswerType      string          `json:"answerType,omitempty"`
	MaxPoints       int             `json:"maxPoints,omitempty"`
	OrderIndex      *int            `json:"orderIndex,omitempty"`
	AcceptedAnswers []string        `json:"acceptedAnswers,omitempty"`
	Tolerance       *float64        `json:"tolerance,omitempty"`
	Options         []OptionRequest `json:"options,omitempty"`
}

type AnswerOption struct {
	ID         uint   `json:"id"`
	QuestionID uint   `json:"questionId"`
	OptionText string `json:"optionText"`
	Score      int    `json:"score,omitempty"`
}

type OptionRequest struct {
	OptionText string `json:"optionText,omitempty"`
	Score      *int   `json:"score,omitempty"`
}

type StartedAttempt struct {
	AttemptID     uint      `json:"attemptId"`
	AttemptNumber int       `json:"attemptNumber"`
	StartTime     time.Time `json:"startTime"`
	TimeLimit     int       `json:"timeLimit"`
}

// Answer selects AnswerID or AnswerIDs for choice questions and AnswerText otherwise
type Answer struct {
	QuestionID uint    `json:"questionId"`
	AnswerID   *uint   `json:"answerId,omitempty"`
	AnswerIDs  []uint  `json:"answerIds,omitempty"`
	AnswerText *string `json:"answerText,omitempty"`
}

type Progress struct {
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

type Result struct {
	AttemptID     uint      `json:"attemptId"`
	Score         float64   `json:"score"`
	MaxScore      float64   `json:"maxScore"`
	Percentage    float64   `json:"percentage"`
	Passed        bool      `json:"passed"`
	PendingReview bool      `json:"pendingReview"`
	EndTime       time.Time `json:"endTime"`
	EndReason     string    `json:"endReason"`
}

type Attempt struct {
	ID            uint       `json:"id"`
	UserID        uint       `json:"userId"`
	TestID        uint       `json:"testId"`
	AttemptNumber int        `json:"attemptNumber"`
	StartTime     time.Time  `json:"startTime"`
	TimeLimit     int        `json:"timeLimit"`
	EndTime       *time.Time `json:"endTime"`
	EndReason     *string    `json:"endReason,omitempty"`
	Score         *float64   `json:"score"`
	MaxScore      *float64   `json:"maxScore"`
	Percentage    *float64   `json:"percentage"`
	Passed        *bool      `json:"passed"`
	PendingReview bool       `json:"pendingReview"`
	IsFinished    bool       `json:"isFinished"`
}

type AttemptDetails struct {
	Attempt
	TestTitle string           `json:"testTitle"`
	Questions []QuestionResult `json:"questions"`
}

type QuestionResult struct {
	QuestionID        uint     `json:"questionId"`
	QuestionText      string   `json:"questionText"`
	AnswerType        string   `json:"answerType"`
	UserAnswerIDs     []uint   `json:"userAnswerIds"`
	UserAnswerText    *string  `json:"userAnswerText"`
	CorrectAnswerText *string  `json:"correctAnswerText"`
	ScoreEarned       *float64 `json:"scoreEarned"`
	MaxScore          float64  `json:"maxScore"`
	IsCorrect         bool     `json:"isCorrect"`
}

type TestStatistics struct {
	TestID            uint    `json:"testId"`
	TotalAttempts     int     `json:"totalAttempts"`
	CompletedAttempts int     `json:"completedAttempts"`
	AverageScore      float64 `json:"averageScore"`
	AveragePercentage float64 `json:"averagePercentage"`
	MaxScore          float64 `json:"maxScore"`
	MinScore          float64 `json:"minScore"`
	PassRate          float64 `json:"passRate"`
}

type UserStatistics struct {
	UserID            uint       `json:"userId"`
	TotalAttempts     int        `json:"totalAttempts"`
	CompletedAttempts int        `json:"completedAttempts"`
	AverageScore      float64    `json:"averageScore"`
	BestScore         float64    `json:"bestScore"`
	TotalTestsTaken   int        `json:"totalTestsTaken"`
	RecentActivity    []Activity `json:"recentActivity"`
}

type Activity struct {
	AttemptID   uint      `json:"attemptId"`
	TestID      uint      `json:"testId"`
	TestTitle   string    `json:"testTitle"`
	Score       float64   `json:"score"`
	Percentage  float64   `json:"percentage"`
	Passed      bool      `json:"passed"`
	CompletedAt time.Time `json:"completedAt"`
}

type GlobalStatistics struct {
	TotalUsers        int64         `json:"totalUsers"`
	TotalTests        int64         `json:"totalTests"`
	TotalAttempts     int           `json:"totalAttempts"`
	CompletedAttempts int           `json:"completedAttempts"`
	AverageScore      float64       `json:"averageScore"`
	MostPopularTests  []PopularTest `json:"mostPopularTests"`
}

type PopularTest struct {
	TestID       uint   `json:"testId"`
	Title        string `json:"title"`
	AttemptCount int    `json:"attemptCount"`
}
