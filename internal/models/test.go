package models

import (
	"time"
)

// Test is a timed questionnaire authored by an administrator
type Test struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	CreatorID    uint      `json:"creatorId" gorm:"not null;index"`
	Title        string    `json:"title" gorm:"not null;size:200;index"`
	Description  string    `json:"description" gorm:"type:text"`
	TimeLimit    int       `json:"timeLimit" gorm:"not null"` // seconds
	MaxAttempts  int       `json:"maxAttempts" gorm:"not null;default:1"`
	PassingScore int       `json:"passingScore" gorm:"not null;default:60"` // percent
	IsActive     bool      `json:"isActive" gorm:"not null;default:true;index"`
	StartTime    time.Time `json:"startTime" gorm:"not null"`
	EndTime      time.Time `json:"endTime" gorm:"not null"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	// Relations
	Creator   *User      `json:"-" gorm:"foreignKey:CreatorID"`
	Questions []Question `json:"questions,omitempty" gorm:"foreignKey:TestID"`

	// Computed fields (not stored)
	QuestionCount int `json:"questionCount" gorm:"->;-:migration"`
}

func (Test) TableName() string {
	return "tests"
}

// IsOpenAt reports whether attempts may be started at now
func (t *Test) IsOpenAt(now time.Time) bool {
	return t.IsActive && !now.Before(t.StartTime) && !now.After(t.EndTime)
}

// EffectiveTimeLimit is the configured limit capped by the remaining window
func (t *Test) EffectiveTimeLimit(now time.Time) time.Duration {
	limit := time.Duration(t.TimeLimit) * time.Second
	if remaining := t.EndTime.Sub(now); remaining < limit {
		limit = remaining
	}
	if limit < 0 {
		return 0
	}
	return limit
}
