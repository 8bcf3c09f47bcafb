package services

import (
	"fmt"
	"time"

	"github.com/SAP-F-2025/quiz-service/internal/repositories"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Clock supplies the current time to services
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// SystemClock reads the wall clock
var SystemClock Clock = systemClock{}

// normalizePage clamps page and limit and returns the matching offset
func normalizePage(page, limit int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return page, limit, (page - 1) * limit
}

// repoError maps a repository not-found onto sentinel and wraps everything else
func repoError(err error, sentinel error, action string) error {
	if repositories.IsNotFoundError(err) {
		return sentinel
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}

func requireAdmin(actor Actor, resource, action string) error {
	if !actor.IsAdmin() {
		return NewPermissionError(actor.UserID, 0, resource, action, "administrator role required")
	}
	return nil
}

func timePtr(t time.Time) *time.Time {
	return &t
}

func stringPtr(s string) *string {
	return &s
}

func floatPtr(f float64) *float64 {
	return &f
}

func boolPtr(b bool) *bool {
	return &b
}
