package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	SourceQuizService = "quiz-service"
	EventVersion      = "1.0"
)

// Event types
const (
	AttemptStarted  = "attempt.started"
	AttemptFinished = "attempt.finished"
	AttemptGraded   = "attempt.graded"
)

// Event is the envelope every domain event is published in
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Source    string      `json:"source"`
	Version   string      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// NewEvent stamps a payload with a fresh id and the current time
func NewEvent(eventType string, data interface{}) *Event {
	return &Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		Source:    SourceQuizService,
		Version:   EventVersion,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// EventPublisher delivers domain events; delivery failures must not fail the caller's operation
type EventPublisher interface {
	Publish(ctx context.Context, event *Event) error
	Close() error
}

type AttemptStartedEvent struct {
	AttemptID     uint      `json:"attemptId"`
	UserID        uint      `json:"userId"`
	TestID        uint      `json:"testId"`
	AttemptNumber int       `json:"attemptNumber"`
	StartTime     time.Time `json:"startTime"`
	TimeLimit     int       `json:"timeLimit"`
}

type AttemptFinishedEvent struct {
	AttemptID     uint      `json:"attemptId"`
	UserID        uint      `json:"userId"`
	TestID        uint      `json:"testId"`
	EndReason     string    `json:"endReason"`
	EndTime       time.Time `json:"endTime"`
	Score         float64   `json:"score"`
	MaxScore      float64   `json:"maxScore"`
	Percentage    float64   `json:"percentage"`
	Passed        bool      `json:"passed"`
	PendingReview bool      `json:"pendingReview"`
}

type AttemptGradedEvent struct {
	AttemptID  uint    `json:"attemptId"`
	QuestionID uint    `json:"questionId"`
	GradedBy   uint    `json:"gradedBy"`
	Points     float64 `json:"points"`
	Score      float64 `json:"score"`
	Passed     bool    `json:"passed"`
}
