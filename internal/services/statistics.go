package services

import (
	"sort"
	"time"

	"github.com/SAP-F-2025/quiz-service/internal/models"
)

// The functions below are the reference aggregation: the service may cache their
// output but never derives statistics any other way.

func completed(a *models.TestAttempt) bool {
	return a.IsFinished && a.Score != nil
}

// ComputeTestStatistics aggregates every attempt of one test
func ComputeTestStatistics(testID uint, attempts []*models.TestAttempt) *models.TestStatistics {
	stats := &models.TestStatistics{TestID: testID, TotalAttempts: len(attempts)}

	var scoreSum, pctSum float64
	passed := 0
	for _, a := range attempts {
		if !completed(a) {
			continue
		}
		score := *a.Score
		if stats.CompletedAttempts == 0 || score > stats.MaxScore {
			stats.MaxScore = score
		}
		if stats.CompletedAttempts == 0 || score < stats.MinScore {
			stats.MinScore = score
		}
		stats.CompletedAttempts++
		scoreSum += score
		if a.Percentage != nil {
			pctSum += *a.Percentage
		}
		if a.Passed != nil && *a.Passed {
			passed++
		}
	}

	if stats.CompletedAttempts > 0 {
		n := float64(stats.CompletedAttempts)
		stats.AverageScore = scoreSum / n
		stats.AveragePercentage = pctSum / n
		stats.PassRate = float64(passed) / n
	}
	return stats
}

// ComputeUserStatistics aggregates one user's attempts; titles resolves test ids for recent activity
func ComputeUserStatistics(userID uint, attempts []*models.TestAttempt, titles map[uint]string, recentN int) *models.UserStatistics {
	stats := &models.UserStatistics{
		UserID:         userID,
		TotalAttempts:  len(attempts),
		RecentActivity: []models.RecentActivity{},
	}

	tests := make(map[uint]struct{})
	var finished []*models.TestAttempt
	var scoreSum float64
	for _, a := range attempts {
		tests[a.TestID] = struct{}{}
		if !completed(a) {
			continue
		}
		if len(finished) == 0 || *a.Score > stats.BestScore {
			stats.BestScore = *a.Score
		}
		scoreSum += *a.Score
		finished = append(finished, a)
	}
	stats.TotalTestsTaken = len(tests)
	stats.CompletedAttempts = len(finished)
	if len(finished) > 0 {
		stats.AverageScore = scoreSum / float64(len(finished))
	}

	sort.Slice(finished, func(i, j int) bool {
		ei, ej := endTimeOf(finished[i]), endTimeOf(finished[j])
		if !ei.Equal(ej) {
			return ei.After(ej)
		}
		return finished[i].ID > finished[j].ID
	})
	if recentN > 0 && len(finished) > recentN {
		finished = finished[:recentN]
	}
	for _, a := range finished {
		activity := models.RecentActivity{
			AttemptID:   a.ID,
			TestID:      a.TestID,
			TestTitle:   titles[a.TestID],
			Score:       *a.Score,
			CompletedAt: endTimeOf(a),
		}
		if a.Percentage != nil {
			activity.Percentage = *a.Percentage
		}
		if a.Passed != nil {
			activity.Passed = *a.Passed
		}
		stats.RecentActivity = append(stats.RecentActivity, activity)
	}
	return stats
}

// ComputeGlobalStatistics aggregates every attempt in the system
func ComputeGlobalStatistics(totalUsers, totalTests int64, attempts []*models.TestAttempt, titles map[uint]string, popularN int) *models.GlobalStatistics {
	stats := &models.GlobalStatistics{
		TotalUsers:       totalUsers,
		TotalTests:       totalTests,
		TotalAttempts:    len(attempts),
		MostPopularTests: []models.PopularTest{},
	}

	counts := make(map[uint]int)
	var scoreSum float64
	for _, a := range attempts {
		counts[a.TestID]++
		if completed(a) {
			stats.CompletedAttempts++
			scoreSum += *a.Score
		}
	}
	if stats.CompletedAttempts > 0 {
		stats.AverageScore = scoreSum / float64(stats.CompletedAttempts)
	}

	for testID, n := range counts {
		stats.MostPopularTests = append(stats.MostPopularTests, models.PopularTest{
			TestID:       testID,
			Title:        titles[testID],
			AttemptCount: n,
		})
	}
	sort.Slice(stats.MostPopularTests, func(i, j int) bool {
		pi, pj := stats.MostPopularTests[i], stats.MostPopularTests[j]
		if pi.AttemptCount != pj.AttemptCount {
			return pi.AttemptCount > pj.AttemptCount
		}
		return pi.TestID < pj.TestID
	})
	if popularN > 0 && len(stats.MostPopularTests) > popularN {
		stats.MostPopularTests = stats.MostPopularTests[:popularN]
	}
	return stats
}

func endTimeOf(a *models.TestAttempt) time.Time {
	if a.EndTime != nil {
		return *a.EndTime
	}
	return a.StartTime
}
