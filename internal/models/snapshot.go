package models

import (
	"encoding/json"
	"fmt"
	"sort"

	"gorm.io/datatypes"
)

// TestSnapshot freezes the scoring-relevant parts of a test at attempt start
type TestSnapshot struct {
	TestID       uint               `json:"testId"`
	Title        string             `json:"title"`
	PassingScore int                `json:"passingScore"`
	Questions    []QuestionSnapshot `json:"questions"`
}

type QuestionSnapshot struct {
	ID              uint             `json:"id"`
	Text            string           `json:"text"`
	AnswerType      AnswerType       `json:"answerType"`
	MaxPoints       int              `json:"maxPoints"`
	OrderIndex      int              `json:"orderIndex"`
	AcceptedAnswers []string         `json:"acceptedAnswers,omitempty"`
	Tolerance       *float64         `json:"tolerance,omitempty"`
	Options         []OptionSnapshot `json:"options,omitempty"`
}

type OptionSnapshot struct {
	ID    uint   `json:"id"`
	Text  string `json:"text"`
	Score int    `json:"score"`
}

// NewTestSnapshot copies test and its questions, ordered by (orderIndex, id)
func NewTestSnapshot(test *Test, questions []Question) *TestSnapshot {
	snap := &TestSnapshot{
		TestID:       test.ID,
		Title:        test.Title,
		PassingScore: test.PassingScore,
		Questions:    make([]QuestionSnapshot, 0, len(questions)),
	}
	for _, q := range questions {
		qs := QuestionSnapshot{
			ID:              q.ID,
			Text:            q.QuestionText,
			AnswerType:      q.AnswerType,
			MaxPoints:       q.MaxPoints,
			OrderIndex:      q.OrderIndex,
			AcceptedAnswers: q.Accepted(),
			Tolerance:       q.Tolerance,
		}
		for _, o := range q.Options {
			qs.Options = append(qs.Options, OptionSnapshot{ID: o.ID, Text: o.OptionText, Score: o.Score})
		}
		sort.Slice(qs.Options, func(i, j int) bool { return qs.Options[i].ID < qs.Options[j].ID })
		snap.Questions = append(snap.Questions, qs)
	}
	SortQuestionSnapshots(snap.Questions)
	return snap
}

func SortQuestionSnapshots(qs []QuestionSnapshot) {
	sort.SliceStable(qs, func(i, j int) bool {
		if qs[i].OrderIndex != qs[j].OrderIndex {
			return qs[i].OrderIndex < qs[j].OrderIndex
		}
		return qs[i].ID < qs[j].ID
	})
}

func (s *TestSnapshot) Question(id uint) (*QuestionSnapshot, bool) {
	for i := range s.Questions {
		if s.Questions[i].ID == id {
			return &s.Questions[i], true
		}
	}
	return nil, false
}

func (s *TestSnapshot) MaxScore() float64 {
	var total float64
	for _, q := range s.Questions {
		total += float64(q.MaxPoints)
	}
	return total
}

func (q *QuestionSnapshot) Option(id uint) (*OptionSnapshot, bool) {
	for i := range q.Options {
		if q.Options[i].ID == id {
			return &q.Options[i], true
		}
	}
	return nil, false
}

// BestOption is the highest scoring option, lowest id on ties
func (q *QuestionSnapshot) BestOption() (*OptionSnapshot, bool) {
	var best *OptionSnapshot
	for i := range q.Options {
		if best == nil || q.Options[i].Score > best.Score {
			best = &q.Options[i]
		}
	}
	return best, best != nil
}

func (s *TestSnapshot) Encode() (datatypes.JSON, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return datatypes.JSON(data), nil
}

func DecodeSnapshot(data datatypes.JSON) (*TestSnapshot, error) {
	var snap TestSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snap, nil
}
