package grading

import (
	"context"
	"fmt"

	"github.com/SAP-F-2025/quiz-service/internal/models"
)

// Q is the view of a free-form question needed for grading
type Q struct {
	Type            models.AnswerType
	MaxPoints       float64
	AcceptedAnswers []string
	Tolerance       *float64
}

// Result of grading one response. Points is nil when a human must grade it.
type Result struct {
	Points      *float64
	NeedsManual bool
}

// Strategy grades one answer type
type Strategy interface {
	Grade(ctx context.Context, q Q, response string) (Result, error)
}

// Grader routes by answer type to the matching Strategy
type Grader interface {
	Grade(ctx context.Context, q Q, response string) (Result, error)
}

type defaultGrader struct {
	strategies map[models.AnswerType]Strategy
}

func (g *defaultGrader) Grade(ctx context.Context, q Q, response string) (Result, error) {
	s, ok := g.strategies[q.Type]
	if !ok {
		return Result{}, fmt.Errorf("no grading strategy for answer type %q", q.Type)
	}
	return s.Grade(ctx, q, response)
}

type Option func(*config)

type config struct {
	MaxEditDistance int
}

// WithMaxEditDistance accepts text answers within n edits of a key
func WithMaxEditDistance(n int) Option { return func(c *config) { c.MaxEditDistance = n } }

// NewDefaultGrader installs the text and numeric strategies
func NewDefaultGrader(opts ...Option) Grader {
	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}
	return &defaultGrader{
		strategies: map[models.AnswerType]Strategy{
			models.TextAnswer:    textStrategy{maxEdit: cfg.MaxEditDistance},
			models.NumericAnswer: numericStrategy{},
		},
	}
}

func manual() Result {
	return Result{NeedsManual: true}
}

func awarded(points float64) Result {
	return Result{Points: &points}
}
