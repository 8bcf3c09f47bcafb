package services

import (
	"context"
	"fmt"

	"github.com/SAP-F-2025/quiz-service/internal/grading"
	"github.com/SAP-F-2025/quiz-service/internal/models"
)

// passEpsilon absorbs float error in percentage*100 before comparing with the threshold
const passEpsilon = 1e-9

// attemptTotals is the result part of a finished attempt
type attemptTotals struct {
	Score         float64
	MaxScore      float64
	Percentage    float64
	Passed        bool
	PendingReview bool
}

// scoreAnswers sets ScoreEarned on every answer from the snapshot. Choice answers earn the
// sum of their selected option scores clamped to [0, maxPoints]; free-form answers go
// through grader and stay nil when they need manual review. Answers to questions missing
// from the snapshot are left unscored.
func scoreAnswers(ctx context.Context, grader grading.Grader, snap *models.TestSnapshot, answers []*models.AttemptAnswer) error {
	for _, ans := range answers {
		q, ok := snap.Question(ans.QuestionID)
		if !ok {
			ans.ScoreEarned = nil
			continue
		}

		if q.AnswerType.IsChoice() {
			ans.ScoreEarned = floatPtr(choicePoints(q, ans.SelectedOptions()))
			continue
		}

		response := ""
		if ans.AnswerText != nil {
			response = *ans.AnswerText
		}
		result, err := grader.Grade(ctx, grading.Q{
			Type:            q.AnswerType,
			MaxPoints:       float64(q.MaxPoints),
			AcceptedAnswers: q.AcceptedAnswers,
			Tolerance:       q.Tolerance,
		}, response)
		if err != nil {
			return fmt.Errorf("failed to grade question %d: %w", q.ID, err)
		}
		ans.ScoreEarned = result.Points
		if ans.ScoreEarned != nil {
			ans.ScoreEarned = floatPtr(clamp(*ans.ScoreEarned, 0, float64(q.MaxPoints)))
		}
	}
	return nil
}

func choicePoints(q *models.QuestionSnapshot, selected []uint) float64 {
	var total float64
	for _, id := range selected {
		if opt, ok := q.Option(id); ok {
			total += float64(opt.Score)
		}
	}
	return clamp(total, 0, float64(q.MaxPoints))
}

// summarize totals scored answers. Questions without an answer count as zero; answered
// questions with a nil score are pending review and excluded from the score.
func summarize(snap *models.TestSnapshot, answers []*models.AttemptAnswer) attemptTotals {
	totals := attemptTotals{MaxScore: snap.MaxScore()}
	for _, ans := range answers {
		if _, ok := snap.Question(ans.QuestionID); !ok {
			continue
		}
		if ans.ScoreEarned == nil {
			totals.PendingReview = true
			continue
		}
		totals.Score += *ans.ScoreEarned
	}
	totals.Score = clamp(totals.Score, 0, totals.MaxScore)
	if totals.MaxScore > 0 {
		totals.Percentage = totals.Score / totals.MaxScore
	}
	totals.Passed = totals.Percentage*100+passEpsilon >= float64(snap.PassingScore)
	return totals
}

func (t attemptTotals) apply(attempt *models.TestAttempt) {
	attempt.Score = floatPtr(t.Score)
	attempt.MaxScore = floatPtr(t.MaxScore)
	attempt.Percentage = floatPtr(t.Percentage)
	attempt.Passed = boolPtr(t.Passed)
	attempt.PendingReview = t.PendingReview
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// correctAnswerText is the highest scoring option, or the first accepted answer
func correctAnswerText(q *models.QuestionSnapshot) *string {
	if q.AnswerType.IsChoice() {
		if best, ok := q.BestOption(); ok {
			return stringPtr(best.Text)
		}
		return nil
	}
	if len(q.AcceptedAnswers) > 0 {
		return stringPtr(q.AcceptedAnswers[0])
	}
	return nil
}
