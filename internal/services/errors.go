package services

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/SAP-F-2025/quiz-service/internal/validator"
)

// ===== ERROR KINDS =====

// ErrorKind is the stable machine readable code carried in error responses
type ErrorKind string

const (
	KindValidation          ErrorKind = "VALIDATION_ERROR"
	KindAttemptNotAllowed   ErrorKind = "ATTEMPT_NOT_ALLOWED"
	KindAttemptExpired      ErrorKind = "ATTEMPT_EXPIRED"
	KindAttemptFinished     ErrorKind = "ATTEMPT_FINISHED"
	KindAttemptInProgress   ErrorKind = "ATTEMPT_IN_PROGRESS"
	KindInvalidQuestion     ErrorKind = "INVALID_QUESTION"
	KindNotFound            ErrorKind = "NOT_FOUND"
	KindConcurrencyConflict ErrorKind = "CONCURRENCY_CONFLICT"
	KindUnauthorized        ErrorKind = "UNAUTHORIZED"
	KindForbidden           ErrorKind = "FORBIDDEN"
	KindConflict            ErrorKind = "CONFLICT"
	KindInternal            ErrorKind = "INTERNAL_ERROR"
)

// HTTPStatus maps a kind onto its response status
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindValidation:
		return http.StatusBadRequest
	case KindAttemptExpired:
		return http.StatusGone
	case KindInvalidQuestion:
		return http.StatusUnprocessableEntity
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindAttemptNotAllowed, KindAttemptFinished, KindAttemptInProgress, KindConcurrencyConflict, KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// ===== SENTINEL ERRORS =====

var (
	// Generic
	ErrNotFound            = errors.New("resource not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrForbidden           = errors.New("forbidden")
	ErrValidationFailed    = errors.New("validation failed")
	ErrConcurrencyConflict = errors.New("concurrent modification, please retry")

	// Users
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email is already registered")
	ErrInvalidCredentials = errors.New("invalid email or password")

	// Catalog
	ErrTestNotFound     = errors.New("test not found")
	ErrQuestionNotFound = errors.New("question not found")
	ErrOptionNotFound   = errors.New("answer option not found")

	// Attempts
	ErrAttemptNotFound   = errors.New("attempt not found")
	ErrAttemptExpired    = errors.New("attempt time limit has expired")
	ErrAttemptFinished   = errors.New("attempt is already finished")
	ErrAttemptInProgress = errors.New("attempt is still in progress")
	ErrInvalidQuestion   = errors.New("question does not belong to this attempt")
	ErrAnswerNotFound    = errors.New("answer not found")
)

// ValidationErrors is the field level error list produced by the validator
type ValidationErrors = validator.ValidationErrors
type ValidationError = validator.ValidationError

// NewValidationError builds a single field validation failure
func NewValidationError(field, message string, value interface{}) ValidationErrors {
	return ValidationErrors{{Field: field, Message: message, Value: value}}
}

// ===== TYPED ERRORS =====

// BusinessRuleError reports a violated domain rule
type BusinessRuleError struct {
	Rule    string
	Message string
	Context map[string]interface{}
}

func (e *BusinessRuleError) Error() string {
	return fmt.Sprintf("business rule violation [%s]: %s", e.Rule, e.Message)
}

func NewBusinessRuleError(rule, message string, context map[string]interface{}) *BusinessRuleError {
	return &BusinessRuleError{Rule: rule, Message: message, Context: context}
}

// Rules refusing a start
const (
	RuleTestInactive      = "test_inactive"
	RuleOutsideWindow     = "outside_window"
	RuleMaxAttempts       = "max_attempts_reached"
	RuleAttemptInProgress = "attempt_in_progress"
)

// AttemptNotAllowedError reports why an attempt could not be started
type AttemptNotAllowedError struct {
	*BusinessRuleError
}

func (e *AttemptNotAllowedError) Unwrap() error { return e.BusinessRuleError }

func NewAttemptNotAllowedError(rule, message string, context map[string]interface{}) *AttemptNotAllowedError {
	return &AttemptNotAllowedError{BusinessRuleError: NewBusinessRuleError(rule, message, context)}
}

// PermissionError reports a caller acting on a resource they may not touch
type PermissionError struct {
	UserID     uint
	ResourceID uint
	Resource   string
	Action     string
	Reason     string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("user %d cannot %s %s %d: %s", e.UserID, e.Action, e.Resource, e.ResourceID, e.Reason)
}

func NewPermissionError(userID, resourceID uint, resourceType, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resourceType,
		Action:     action,
		Reason:     reason,
	}
}

// ===== CLASSIFICATION =====

// KindOf classifies any error returned by a service
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var verrs ValidationErrors
	var notAllowed *AttemptNotAllowedError
	var permErr *PermissionError
	var ruleErr *BusinessRuleError

	switch {
	case errors.As(err, &verrs), errors.Is(err, ErrValidationFailed):
		return KindValidation
	case errors.As(err, &notAllowed):
		return KindAttemptNotAllowed
	case errors.As(err, &permErr), errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidCredentials):
		return KindUnauthorized
	case errors.Is(err, ErrAttemptExpired):
		return KindAttemptExpired
	case errors.Is(err, ErrAttemptFinished):
		return KindAttemptFinished
	case errors.Is(err, ErrAttemptInProgress):
		return KindAttemptInProgress
	case errors.Is(err, ErrInvalidQuestion):
		return KindInvalidQuestion
	case errors.Is(err, ErrConcurrencyConflict):
		return KindConcurrencyConflict
	case errors.Is(err, ErrEmailTaken):
		return KindConflict
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrUserNotFound), errors.Is(err, ErrTestNotFound),
		errors.Is(err, ErrQuestionNotFound), errors.Is(err, ErrOptionNotFound),
		errors.Is(err, ErrAttemptNotFound), errors.Is(err, ErrAnswerNotFound):
		return KindNotFound
	case errors.As(err, &ruleErr):
		return KindValidation
	default:
		return KindInternal
	}
}
