package models

import (
	"time"
)

// Response is the envelope every API response is wrapped in
type Response struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	Code      string      `json:"code,omitempty"`
	Details   interface{} `json:"details,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Page is a paginated slice of items
type Page[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"totalPages"`
}

func NewPage[T any](items []T, total int64, page, limit int) *Page[T] {
	if items == nil {
		items = []T{}
	}
	totalPages := 0
	if limit > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return &Page[T]{
		Items:      items,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}
}

// ===== STATISTICS =====

type TestStatistics struct {
	TestID            uint    `json:"testId"`
	TotalAttempts     int     `json:"totalAttempts"`
	CompletedAttempts int     `json:"completedAttempts"`
	AverageScore      float64 `json:"averageScore"`
	AveragePercentage float64 `json:"averagePercentage"`
	MaxScore          float64 `json:"maxScore"`
	MinScore          float64 `json:"minScore"`
	PassRate          float64 `json:"passRate"`
}

type UserStatistics struct {
	UserID            uint             `json:"userId"`
	TotalAttempts     int              `json:"totalAttempts"`
	CompletedAttempts int              `json:"completedAttempts"`
	AverageScore      float64          `json:"averageScore"`
	BestScore         float64          `json:"bestScore"`
	TotalTestsTaken   int              `json:"totalTestsTaken"`
	RecentActivity    []RecentActivity `json:"recentActivity"`
}

type RecentActivity struct {
	AttemptID   uint      `json:"attemptId"`
	TestID      uint      `json:"testId"`
	TestTitle   string    `json:"testTitle"`
	Score       float64   `json:"score"`
	Percentage  float64   `json:"percentage"`
	Passed      bool      `json:"passed"`
	CompletedAt time.Time `json:"completedAt"`
}

type GlobalStatistics struct {
	TotalUsers        int64         `json:"totalUsers"`
	TotalTests        int64         `json:"totalTests"`
	TotalAttempts     int           `json:"totalAttempts"`
	CompletedAttempts int           `json:"completedAttempts"`
	AverageScore      float64       `json:"averageScore"`
	MostPopularTests  []PopularTest `json:"mostPopularTests"`
}

type PopularTest struct {
	TestID       uint   `json:"testId"`
	Title        string `json:"title"`
	AttemptCount int    `json:"attemptCount"`
}
