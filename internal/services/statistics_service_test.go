package services

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/SAP-F-2025/quiz-service/internal/cache"
	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
)

func newRedisFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return newFixtureWithCache(t, cache.NewCacheManager(client))
}

func TestStatisticsService_MatchesFreshComputation(t *testing.T) {
	f := newRedisFixture(t)
	ctx := context.Background()
	ct := f.createChoiceTest(t, testParams{timeLimit: 60, maxAttempts: 3})

	fresh := func() *models.TestStatistics {
		attempts, _, err := f.repo.Attempt().List(ctx, repositories.AttemptFilters{TestID: &ct.test.ID})
		if err != nil {
			t.Fatal(err)
		}
		return ComputeTestStatistics(ct.test.ID, attempts)
	}
	check := func(label string) {
		t.Helper()
		got, err := f.stats.TestStatistics(ctx, ct.test.ID, f.user)
		if err != nil {
			t.Fatalf("%s: TestStatistics() error = %v", label, err)
		}
		if want := fresh(); !reflect.DeepEqual(got, want) {
			t.Errorf("%s: TestStatistics() = %+v, want %+v", label, got, want)
		}
	}

	check("empty")

	first := f.start(t, ct.test.ID, f.user)
	f.answer(t, first.AttemptID, ct.question.ID, ct.correct)
	f.finish(t, first.AttemptID)
	check("after first finish")

	second := f.start(t, ct.test.ID, f.user)
	check("with an attempt in progress")

	f.clock.Advance(2 * time.Minute)
	if _, err := f.attempts.GetProgress(ctx, second.AttemptID, f.user); err != nil {
		t.Fatal(err)
	}
	check("after lazy expiry")

	got, _ := f.stats.TestStatistics(ctx, ct.test.ID, f.user)
	if got.TotalAttempts != 2 || got.CompletedAttempts != 2 || got.MaxScore != 10 || got.MinScore != 0 || got.PassRate != 0.5 {
		t.Errorf("final stats = %+v", got)
	}
}

func TestStatisticsService_UserStatistics(t *testing.T) {
	f := newRedisFixture(t)
	ctx := context.Background()
	ct := f.createChoiceTest(t, testParams{timeLimit: 60, maxAttempts: 2})

	a := f.start(t, ct.test.ID, f.user)
	f.answer(t, a.AttemptID, ct.question.ID, ct.correct)
	f.finish(t, a.AttemptID)
	f.clock.Advance(time.Minute)
	b := f.start(t, ct.test.ID, f.user)
	f.finish(t, b.AttemptID)

	stats, err := f.stats.UserStatistics(ctx, f.user.UserID, f.user)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalAttempts != 2 || stats.CompletedAttempts != 2 || stats.BestScore != 10 || stats.AverageScore != 5 || stats.TotalTestsTaken != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if len(stats.RecentActivity) != 2 || stats.RecentActivity[0].AttemptID != b.AttemptID {
		t.Fatalf("recent activity = %+v, want newest first", stats.RecentActivity)
	}
	if stats.RecentActivity[0].TestTitle != "Go basics" {
		t.Errorf("TestTitle = %q, want Go basics", stats.RecentActivity[0].TestTitle)
	}

	stranger := f.createUser(t, "stranger@example.com", models.RoleUser)
	if _, err := f.stats.UserStatistics(ctx, f.user.UserID, Actor{UserID: stranger.ID, Role: stranger.Role}); KindOf(err) != KindForbidden {
		t.Errorf("UserStatistics() by stranger error = %v, want forbidden", err)
	}
	if _, err := f.stats.UserStatistics(ctx, f.user.UserID, f.admin); err != nil {
		t.Errorf("UserStatistics() by admin error = %v", err)
	}
}

func TestStatisticsService_GlobalStatistics(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	popular := f.createChoiceTest(t, testParams{timeLimit: 60, maxAttempts: 5})
	quiet := f.createChoiceTest(t, testParams{timeLimit: 60, maxAttempts: 5})

	for i := 0; i < 2; i++ {
		f.finish(t, f.start(t, popular.test.ID, f.user).AttemptID)
	}
	f.finish(t, f.start(t, quiet.test.ID, f.user).AttemptID)

	stats, err := f.stats.GlobalStatistics(ctx, f.user)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalUsers != 2 || stats.TotalTests != 2 || stats.TotalAttempts != 3 || stats.CompletedAttempts != 3 {
		t.Errorf("stats = %+v", stats)
	}
	if len(stats.MostPopularTests) != 2 || stats.MostPopularTests[0].TestID != popular.test.ID || stats.MostPopularTests[0].AttemptCount != 2 {
		t.Errorf("MostPopularTests = %+v", stats.MostPopularTests)
	}
}

func TestStatisticsService_GlobalCountsFollowCreates(t *testing.T) {
	f := newRedisFixture(t)
	ctx := context.Background()

	check := func(label string) {
		t.Helper()
		got, err := f.stats.GlobalStatistics(ctx, f.user)
		if err != nil {
			t.Fatalf("%s: GlobalStatistics() error = %v", label, err)
		}
		users, _ := f.repo.User().Count(ctx)
		tests, _ := f.repo.Test().Count(ctx)
		attempts, _, _ := f.repo.Attempt().List(ctx, repositories.AttemptFilters{})
		want := ComputeGlobalStatistics(users, tests, attempts, map[uint]string{}, 5)
		if got.TotalUsers != want.TotalUsers || got.TotalTests != want.TotalTests || got.TotalAttempts != want.TotalAttempts {
			t.Errorf("%s: cached users=%d tests=%d attempts=%d; fresh users=%d tests=%d attempts=%d",
				label, got.TotalUsers, got.TotalTests, got.TotalAttempts, want.TotalUsers, want.TotalTests, want.TotalAttempts)
		}
	}
	check("warm")

	if _, err := f.users.Register(ctx, &RegisterRequest{Email: "new@example.com", Password: "correct-horse", FirstName: "Ada", LastName: "Lovelace"}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	check("after register")

	f.createChoiceTest(t, testParams{timeLimit: 60, maxAttempts: 1})
	check("after test create")

	if _, err := f.users.EnsureAdmin(ctx, "root@example.com", "correct-horse"); err != nil {
		t.Fatalf("EnsureAdmin() error = %v", err)
	}
	check("after admin bootstrap")

	got, _ := f.stats.GlobalStatistics(ctx, f.user)
	if got.TotalUsers != 4 || got.TotalTests != 1 {
		t.Errorf("final stats = %+v, want 4 users and 1 test", got)
	}
}

func TestStatisticsService_RenamedTestTitle(t *testing.T) {
	f := newRedisFixture(t)
	ctx := context.Background()
	ct := f.createChoiceTest(t, testParams{timeLimit: 60, maxAttempts: 1})

	a := f.start(t, ct.test.ID, f.user)
	f.answer(t, a.AttemptID, ct.question.ID, ct.correct)
	f.finish(t, a.AttemptID)

	before, err := f.stats.UserStatistics(ctx, f.user.UserID, f.user)
	if err != nil {
		t.Fatal(err)
	}
	if len(before.RecentActivity) != 1 || before.RecentActivity[0].TestTitle != "Go basics" {
		t.Fatalf("recent activity = %+v", before.RecentActivity)
	}
	if _, err := f.stats.GlobalStatistics(ctx, f.user); err != nil {
		t.Fatal(err)
	}

	title := "Renamed"
	if _, err := f.tests.UpdateTest(ctx, ct.test.ID, &UpdateTestRequest{Title: &title}, f.admin); err != nil {
		t.Fatalf("UpdateTest() error = %v", err)
	}

	after, err := f.stats.UserStatistics(ctx, f.user.UserID, f.user)
	if err != nil {
		t.Fatal(err)
	}
	if len(after.RecentActivity) != 1 || after.RecentActivity[0].TestTitle != "Renamed" {
		t.Errorf("recent activity after rename = %+v, want title Renamed", after.RecentActivity)
	}

	global, err := f.stats.GlobalStatistics(ctx, f.user)
	if err != nil {
		t.Fatal(err)
	}
	if len(global.MostPopularTests) != 1 || global.MostPopularTests[0].Title != "Renamed" {
		t.Errorf("MostPopularTests after rename = %+v, want title Renamed", global.MostPopularTests)
	}
}

func TestComputeTestStatistics_IgnoresUnfinished(t *testing.T) {
	score, pct, passed := 8.0, 0.8, true
	attempts := []*models.TestAttempt{
		{ID: 1, IsFinished: true, Score: &score, Percentage: &pct, Passed: &passed},
		{ID: 2},
	}
	stats := ComputeTestStatistics(7, attempts)
	want := &models.TestStatistics{TestID: 7, TotalAttempts: 2, CompletedAttempts: 1, AverageScore: 8, AveragePercentage: 0.8, MaxScore: 8, MinScore: 8, PassRate: 1}
	if !reflect.DeepEqual(stats, want) {
		t.Errorf("ComputeTestStatistics() = %+v, want %+v", stats, want)
	}
}
