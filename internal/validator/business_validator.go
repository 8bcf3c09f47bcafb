package validator

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/SAP-F-2025/quiz-service/internal/models"
)

// BusinessValidator checks rules that span several fields or need stored state
type BusinessValidator struct {
	validate *validator.Validate
}

func newBusinessValidator(validate *validator.Validate) *BusinessValidator {
	bv := &BusinessValidator{validate: validate}
	bv.registerBusinessRules()
	return bv
}

func (bv *BusinessValidator) registerBusinessRules() {
	bv.validate.RegisterValidation("passing_score", func(fl validator.FieldLevel) bool {
		score := fl.Field().Int()
		return score >= 0 && score <= 100
	})

	bv.validate.RegisterValidation("answer_type", func(fl validator.FieldLevel) bool {
		_, ok := models.ParseAnswerType(fl.Field().String())
		return ok
	})

	bv.validate.RegisterValidation("user_role", func(fl validator.FieldLevel) bool {
		_, ok := models.ParseUserRole(fl.Field().String())
		return ok
	})

	bv.validate.RegisterValidation("not_blank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
}

// ValidateTest re-checks the invariants of a complete (created or merged) test
func (bv *BusinessValidator) ValidateTest(test *models.Test) ValidationErrors {
	var errs ValidationErrors

	if strings.TrimSpace(test.Title) == "" {
		errs = append(errs, ValidationError{Field: "title", Message: "must not be blank", Rule: "not_blank"})
	}
	if test.TimeLimit <= 0 {
		errs = append(errs, ValidationError{Field: "timeLimit", Message: "must be positive", Value: test.TimeLimit, Rule: "min"})
	}
	if test.MaxAttempts < 1 {
		errs = append(errs, ValidationError{Field: "maxAttempts", Message: "must be at least 1", Value: test.MaxAttempts, Rule: "min"})
	}
	if test.PassingScore < 0 || test.PassingScore > 100 {
		errs = append(errs, ValidationError{Field: "passingScore", Message: "must be between 0 and 100", Value: test.PassingScore, Rule: "passing_score"})
	}
	if !test.StartTime.Before(test.EndTime) {
		errs = append(errs, ValidationError{Field: "endTime", Message: "must be after startTime", Value: test.EndTime, Rule: "gtfield"})
	}

	return errs
}

// ValidateOptionScore requires 0 <= score <= maxPoints
func (bv *BusinessValidator) ValidateOptionScore(field string, score, maxPoints int) ValidationErrors {
	if score < 0 || score > maxPoints {
		return ValidationErrors{{
			Field:   field,
			Message: "must be between 0 and the question's maxPoints",
			Value:   score,
			Rule:    "option_score",
		}}
	}
	return nil
}

// ValidateQuestion checks option compatibility and scores for a complete question
func (bv *BusinessValidator) ValidateQuestion(q *models.Question, optionCount int) ValidationErrors {
	var errs ValidationErrors

	if q.MaxPoints <= 0 {
		errs = append(errs, ValidationError{Field: "maxPoints", Message: "must be positive", Value: q.MaxPoints, Rule: "min"})
	}
	if !q.AnswerType.IsChoice() && optionCount > 0 {
		errs = append(errs, ValidationError{
			Field:   "answerType",
			Message: "free-form questions cannot have options",
			Value:   q.AnswerType,
			Rule:    "answer_type_options",
		})
	}
	if q.AnswerType.IsChoice() && (len(q.Accepted()) > 0 || q.Tolerance != nil) {
		errs = append(errs, ValidationError{
			Field:   "acceptedAnswers",
			Message: "choice questions are graded by option scores",
			Rule:    "answer_type_key",
		})
	}
	if q.Tolerance != nil && *q.Tolerance < 0 {
		errs = append(errs, ValidationError{Field: "tolerance", Message: "must not be negative", Value: *q.Tolerance, Rule: "min"})
	}
	for i, opt := range q.Options {
		errs = append(errs, bv.ValidateOptionScore(optionField(i), opt.Score, q.MaxPoints)...)
	}

	return errs
}

func optionField(i int) string {
	return fmt.Sprintf("options[%d].score", i)
}
