package models

import (
	"encoding/json"
	"strings"
	"time"

	"gorm.io/datatypes"
)

type AnswerType string

const (
	SingleChoice   AnswerType = "single_choice"
	MultipleChoice AnswerType = "multiple_choice"
	TextAnswer     AnswerType = "text"
	NumericAnswer  AnswerType = "numeric"
)

// ParseAnswerType normalises the casing variants clients send (MULTIPLE_CHOICE, text, ...)
func ParseAnswerType(s string) (AnswerType, bool) {
	t := AnswerType(strings.ToLower(strings.TrimSpace(s)))
	switch t {
	case SingleChoice, MultipleChoice, TextAnswer, NumericAnswer:
		return t, true
	}
	return "", false
}

// IsChoice reports whether answers reference AnswerOptions
func (t AnswerType) IsChoice() bool {
	return t == SingleChoice || t == MultipleChoice
}

type Question struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	TestID       uint       `json:"testId" gorm:"not null;index"`
	QuestionText string     `json:"questionText" gorm:"type:text;not null"`
	AnswerType   AnswerType `json:"answerType" gorm:"not null;size:32"`
	MaxPoints    int        `json:"maxPoints" gorm:"not null"`
	OrderIndex   int        `json:"orderIndex" gorm:"not null;default:0;index"`

	// Grading key for text/numeric questions, []string
	AcceptedAnswers datatypes.JSON `json:"acceptedAnswers,omitempty" gorm:"type:jsonb"`
	Tolerance       *float64       `json:"tolerance,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Options []AnswerOption `json:"options,omitempty" gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE"`
}

func (Question) TableName() string {
	return "questions"
}

// Accepted decodes AcceptedAnswers; malformed data yields no key
func (q *Question) Accepted() []string {
	return DecodeStrings(q.AcceptedAnswers)
}

type AnswerOption struct {
	ID         uint   `json:"id" gorm:"primaryKey"`
	QuestionID uint   `json:"questionId" gorm:"not null;index"`
	OptionText string `json:"optionText" gorm:"type:text;not null"`
	Score      int    `json:"score,omitempty" gorm:"not null;default:0"` // hidden from non-admin readers

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (AnswerOption) TableName() string {
	return "answer_options"
}

// EncodeStrings stores a string list as JSON, nil for an empty list
func EncodeStrings(values []string) datatypes.JSON {
	if len(values) == 0 {
		return nil
	}
	data, _ := json.Marshal(values)
	return datatypes.JSON(data)
}

func DecodeStrings(data datatypes.JSON) []string {
	if len(data) == 0 {
		return nil
	}
	var out []string
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

// EncodeIDs stores an id list as JSON, nil for an empty list
func EncodeIDs(ids []uint) datatypes.JSON {
	if len(ids) == 0 {
		return nil
	}
	data, _ := json.Marshal(ids)
	return datatypes.JSON(data)
}

func DecodeIDs(data datatypes.JSON) []uint {
	if len(data) == 0 {
		return nil
	}
	var out []uint
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}
