package grading

import (
	"context"
	"testing"

	"github.com/SAP-F-2025/quiz-service/internal/models"
)

func ptr(f float64) *float64 { return &f }

func TestDefaultGrader(t *testing.T) {
	tests := []struct {
		name       string
		opts       []Option
		q          Q
		response   string
		wantManual bool
		wantPoints float64
	}{
		{
			name:       "text without key needs review",
			q:          Q{Type: models.TextAnswer, MaxPoints: 5},
			response:   "anything",
			wantManual: true,
		},
		{
			name:       "text normalised match",
			q:          Q{Type: models.TextAnswer, MaxPoints: 5, AcceptedAnswers: []string{"Go routine"}},
			response:   "  go   ROUTINE! ",
			wantPoints: 5,
		},
		{
			name:       "text mismatch",
			q:          Q{Type: models.TextAnswer, MaxPoints: 5, AcceptedAnswers: []string{"channel"}},
			response:   "mutex",
			wantPoints: 0,
		},
		{
			name:       "text typo rejected by default",
			q:          Q{Type: models.TextAnswer, MaxPoints: 2, AcceptedAnswers: []string{"channel"}},
			response:   "chanel",
			wantPoints: 0,
		},
		{
			name:       "text typo accepted with edit distance",
			opts:       []Option{WithMaxEditDistance(1)},
			q:          Q{Type: models.TextAnswer, MaxPoints: 2, AcceptedAnswers: []string{"channel"}},
			response:   "chanel",
			wantPoints: 2,
		},
		{
			name:       "numeric exact",
			q:          Q{Type: models.NumericAnswer, MaxPoints: 3, AcceptedAnswers: []string{"42"}},
			response:   "42.0",
			wantPoints: 3,
		},
		{
			name:       "numeric within tolerance",
			q:          Q{Type: models.NumericAnswer, MaxPoints: 3, AcceptedAnswers: []string{"3.14159"}, Tolerance: ptr(0.01)},
			response:   "3,14",
			wantPoints: 3,
		},
		{
			name:       "numeric outside tolerance",
			q:          Q{Type: models.NumericAnswer, MaxPoints: 3, AcceptedAnswers: []string{"3.14159"}, Tolerance: ptr(0.001)},
			response:   "3.14",
			wantPoints: 0,
		},
		{
			name:       "numeric unparsable",
			q:          Q{Type: models.NumericAnswer, MaxPoints: 3, AcceptedAnswers: []string{"1"}},
			response:   "one",
			wantPoints: 0,
		},
		{
			name:       "numeric without key needs review",
			q:          Q{Type: models.NumericAnswer, MaxPoints: 3},
			response:   "1",
			wantManual: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewDefaultGrader(tt.opts...)
			got, err := g.Grade(context.Background(), tt.q, tt.response)
			if err != nil {
				t.Fatalf("Grade() error = %v", err)
			}
			if got.NeedsManual != tt.wantManual {
				t.Fatalf("NeedsManual = %v, want %v", got.NeedsManual, tt.wantManual)
			}
			if tt.wantManual {
				if got.Points != nil {
					t.Errorf("Points = %v, want nil", *got.Points)
				}
				return
			}
			if got.Points == nil || *got.Points != tt.wantPoints {
				t.Errorf("Points = %v, want %v", got.Points, tt.wantPoints)
			}
		})
	}
}

func TestDefaultGrader_UnknownType(t *testing.T) {
	g := NewDefaultGrader()
	if _, err := g.Grade(context.Background(), Q{Type: models.SingleChoice}, "1"); err == nil {
		t.Error("Grade() for choice question should fail")
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "abc", 3},
		{"kitten", "sitting", 3},
		{"same", "same", 0},
	}
	for _, tt := range tests {
		if got := levenshtein(tt.a, tt.b); got != tt.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
