package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
)

const (
	attemptsSheet = "Attempts"
	summarySheet  = "Summary"
	xlsxMIME      = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

type exportService struct {
	repo       repositories.Repository
	statistics StatisticsService
	logger     *slog.Logger
}

func NewExportService(repo repositories.Repository, statistics StatisticsService, logger *slog.Logger) ExportService {
	return &exportService{
		repo:       repo,
		statistics: statistics,
		logger:     logger,
	}
}

// ExportTestResults renders every attempt of a test and its statistics as an XLSX workbook
func (s *exportService) ExportTestResults(ctx context.Context, testID uint, actor Actor) (*ExportFile, error) {
	if err := requireAdmin(actor, "test", "export results"); err != nil {
		return nil, err
	}
	test, err := s.repo.Test().GetByID(ctx, testID)
	if err != nil {
		return nil, repoError(err, ErrTestNotFound, "get test")
	}

	attempts, _, err := s.repo.Attempt().List(ctx, repositories.AttemptFilters{TestID: &testID})
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	stats, err := s.statistics.TestStatistics(ctx, testID, actor)
	if err != nil {
		return nil, err
	}
	emails, err := s.userEmails(ctx, attempts)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("Failed to close workbook", "error", err)
		}
	}()

	if err := writeAttemptsSheet(f, attempts, emails); err != nil {
		return nil, err
	}
	if err := writeSummarySheet(f, test, stats); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to render workbook: %w", err)
	}

	s.logger.Info("Test results exported", "test_id", testID, "attempts", len(attempts), "exported_by", actor.UserID)
	return &ExportFile{
		Filename:    fmt.Sprintf("test-%d-results.xlsx", testID),
		ContentType: xlsxMIME,
		Data:        buf.Bytes(),
	}, nil
}

func (s *exportService) userEmails(ctx context.Context, attempts []*models.TestAttempt) (map[uint]string, error) {
	emails := make(map[uint]string)
	for _, a := range attempts {
		if _, ok := emails[a.UserID]; ok {
			continue
		}
		user, err := s.repo.User().GetByID(ctx, a.UserID)
		switch {
		case err == nil:
			emails[a.UserID] = user.Email
		case repositories.IsNotFoundError(err):
			emails[a.UserID] = ""
		default:
			return nil, fmt.Errorf("failed to get user: %w", err)
		}
	}
	return emails, nil
}

func writeAttemptsSheet(f *excelize.File, attempts []*models.TestAttempt, emails map[uint]string) error {
	if err := f.SetSheetName("Sheet1", attemptsSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header := []interface{}{"Attempt ID", "User", "Attempt #", "Start", "End", "Score", "Max Score", "Percentage", "Passed", "End Reason"}
	if err := f.SetSheetRow(attemptsSheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetCellStyle(attemptsSheet, "A1", "J1", style)
	}

	for i, a := range attempts {
		row := []interface{}{
			a.ID,
			emails[a.UserID],
			a.AttemptNumber,
			a.StartTime.UTC().Format(time.RFC3339),
			formatTime(a.EndTime),
			valueOrBlank(a.Score),
			valueOrBlank(a.MaxScore),
			valueOrBlank(a.Percentage),
			passedLabel(a),
			stringOrBlank(a.EndReason),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(attemptsSheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write attempt %d: %w", a.ID, err)
		}
	}
	return nil
}

func writeSummarySheet(f *excelize.File, test *models.Test, stats *models.TestStatistics) error {
	if _, err := f.NewSheet(summarySheet); err != nil {
		return fmt.Errorf("failed to create summary sheet: %w", err)
	}
	rows := [][]interface{}{
		{"Test", test.Title},
		{"Test ID", test.ID},
		{"Passing Score (%)", test.PassingScore},
		{"Total Attempts", stats.TotalAttempts},
		{"Completed Attempts", stats.CompletedAttempts},
		{"Average Score", stats.AverageScore},
		{"Average Percentage", stats.AveragePercentage},
		{"Max Score", stats.MaxScore},
		{"Min Score", stats.MinScore},
		{"Pass Rate", stats.PassRate},
	}
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(summarySheet, cell, &rows[i]); err != nil {
			return fmt.Errorf("failed to write summary: %w", err)
		}
	}
	return nil
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func valueOrBlank(v *float64) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

func stringOrBlank(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func passedLabel(a *models.TestAttempt) string {
	switch {
	case !a.IsFinished:
		return "in progress"
	case a.PendingReview:
		return "pending review"
	case a.Passed != nil && *a.Passed:
		return "yes"
	default:
		return "no"
	}
}
