package services

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		kind   ErrorKind
		status int
	}{
		{"validation", NewValidationError("title", "is required", nil), KindValidation, http.StatusBadRequest},
		{"business rule", NewBusinessRuleError("self_demotion", "no", nil), KindValidation, http.StatusBadRequest},
		{"not allowed", NewAttemptNotAllowedError(RuleMaxAttempts, "limit", nil), KindAttemptNotAllowed, http.StatusConflict},
		{"wrapped not allowed", fmt.Errorf("start: %w", NewAttemptNotAllowedError(RuleOutsideWindow, "closed", nil)), KindAttemptNotAllowed, http.StatusConflict},
		{"expired", ErrAttemptExpired, KindAttemptExpired, http.StatusGone},
		{"finished", ErrAttemptFinished, KindAttemptFinished, http.StatusConflict},
		{"in progress", ErrAttemptInProgress, KindAttemptInProgress, http.StatusConflict},
		{"invalid question", ErrInvalidQuestion, KindInvalidQuestion, http.StatusUnprocessableEntity},
		{"attempt not found", ErrAttemptNotFound, KindNotFound, http.StatusNotFound},
		{"test not found", fmt.Errorf("get: %w", ErrTestNotFound), KindNotFound, http.StatusNotFound},
		{"lock conflict", fmt.Errorf("%w: %w", ErrConcurrencyConflict, errors.New("lock busy")), KindConcurrencyConflict, http.StatusConflict},
		{"credentials", ErrInvalidCredentials, KindUnauthorized, http.StatusUnauthorized},
		{"permission", NewPermissionError(1, 2, "attempt", "view", "not owner"), KindForbidden, http.StatusForbidden},
		{"email taken", ErrEmailTaken, KindConflict, http.StatusConflict},
		{"unknown", errors.New("disk on fire"), KindInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind := KindOf(tt.err)
			if kind != tt.kind {
				t.Errorf("KindOf() = %s, want %s", kind, tt.kind)
			}
			if got := kind.HTTPStatus(); got != tt.status {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.status)
			}
		})
	}

	if KindOf(nil) != "" {
		t.Error("KindOf(nil) should be empty")
	}
}
