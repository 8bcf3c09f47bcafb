package models

import (
	"time"

	"gorm.io/datatypes"
)

type AttemptState string

const (
	AttemptInProgress AttemptState = "in_progress"
	AttemptFinished   AttemptState = "finished"
)

const (
	EndReasonSubmitted   = "submitted"
	EndReasonTimeExpired = "time_expired"
)

type TestAttempt struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	UserID        uint      `json:"userId" gorm:"not null;index;uniqueIndex:idx_attempt_open,where:is_finished = false"`
	TestID        uint      `json:"testId" gorm:"not null;index;uniqueIndex:idx_attempt_open,where:is_finished = false"`
	AttemptNumber int       `json:"attemptNumber" gorm:"not null"`
	StartTime     time.Time `json:"startTime" gorm:"not null"`
	TimeLimit     int       `json:"timeLimit" gorm:"not null"` // effective seconds

	EndTime   *time.Time `json:"endTime"`
	EndReason *string    `json:"endReason,omitempty" gorm:"size:32"`

	// Scoring, null until finished
	Score         *float64 `json:"score"`
	MaxScore      *float64 `json:"maxScore"`
	Percentage    *float64 `json:"percentage"`
	Passed        *bool    `json:"passed"`
	PendingReview bool     `json:"pendingReview" gorm:"not null;default:false"`

	IsFinished bool `json:"isFinished" gorm:"not null;default:false;index"`

	// Optimistic concurrency guard for result writes
	Version int `json:"-" gorm:"not null;default:1"`

	// Frozen test definition used for scoring
	Snapshot datatypes.JSON `json:"-" gorm:"type:jsonb;not null"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Answers []AttemptAnswer `json:"-" gorm:"foreignKey:AttemptID;constraint:OnDelete:CASCADE"`
}

func (TestAttempt) TableName() string {
	return "test_attempts"
}

func (a *TestAttempt) State() AttemptState {
	if a.IsFinished {
		return AttemptFinished
	}
	return AttemptInProgress
}

func (a *TestAttempt) Deadline() time.Time {
	return a.StartTime.Add(time.Duration(a.TimeLimit) * time.Second)
}

// TimeRemaining is max(0, deadline - now)
func (a *TestAttempt) TimeRemaining(now time.Time) time.Duration {
	if a.IsFinished {
		return 0
	}
	remaining := a.Deadline().Sub(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IsExpired reports an unfinished attempt whose time has run out
func (a *TestAttempt) IsExpired(now time.Time) bool {
	return !a.IsFinished && !now.Before(a.Deadline())
}

// AttemptAnswer is the latest answer to one question of one attempt
type AttemptAnswer struct {
	ID         uint           `json:"id" gorm:"primaryKey"`
	AttemptID  uint           `json:"attemptId" gorm:"not null;uniqueIndex:idx_attempt_question"`
	QuestionID uint           `json:"questionId" gorm:"not null;uniqueIndex:idx_attempt_question"`
	OptionIDs  datatypes.JSON `json:"-" gorm:"type:jsonb"` // []uint
	AnswerText *string        `json:"answerText" gorm:"type:text"`

	// Null until finish; null after finish means pending manual review
	ScoreEarned *float64   `json:"scoreEarned"`
	GradedBy    *uint      `json:"gradedBy,omitempty"`
	GradedAt    *time.Time `json:"gradedAt,omitempty"`

	AnsweredAt time.Time `json:"answeredAt" gorm:"not null"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (AttemptAnswer) TableName() string {
	return "attempt_answers"
}

func (a *AttemptAnswer) SelectedOptions() []uint {
	return DecodeIDs(a.OptionIDs)
}
