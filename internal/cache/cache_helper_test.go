package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestManager(t *testing.T) (*CacheManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCacheManager(client), mr
}

type payload struct {
	Value int `json:"value"`
}

func TestCacheHelper_NilClientDegrades(t *testing.T) {
	ctx := context.Background()
	cm := NewCacheManager(nil)

	if err := cm.Stats.Set(ctx, "k", payload{1}, time.Minute); err != nil {
		t.Errorf("Set() error = %v, want nil", err)
	}
	var got payload
	if err := cm.Stats.Get(ctx, "k", &got); !errors.Is(err, ErrCacheNotAvailable) {
		t.Errorf("Get() error = %v, want ErrCacheNotAvailable", err)
	}
	if err := cm.Stats.BumpVersion(ctx, "v"); err != nil {
		t.Errorf("BumpVersion() error = %v, want nil", err)
	}
	if err := cm.HealthCheck(ctx); !errors.Is(err, ErrCacheNotAvailable) {
		t.Errorf("HealthCheck() error = %v, want ErrCacheNotAvailable", err)
	}
}

func TestCacheHelper_GetSet(t *testing.T) {
	ctx := context.Background()
	cm, mr := newTestManager(t)

	var got payload
	if err := cm.Stats.Get(ctx, "missing", &got); !errors.Is(err, ErrCacheNotFound) {
		t.Fatalf("Get() error = %v, want ErrCacheNotFound", err)
	}

	if err := cm.Stats.Set(ctx, "k", payload{42}, time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if !mr.Exists(StatsCacheConfig.Prefix + "k") {
		t.Fatalf("key not stored under prefix")
	}
	if err := cm.Stats.Get(ctx, "k", &got); err != nil || got.Value != 42 {
		t.Errorf("Get() = %+v, %v; want 42", got, err)
	}

	mr.FastForward(2 * time.Minute)
	if err := cm.Stats.Get(ctx, "k", &got); !errors.Is(err, ErrCacheNotFound) {
		t.Errorf("Get() after ttl error = %v, want ErrCacheNotFound", err)
	}
}

func TestCacheHelper_CacheOrExecute(t *testing.T) {
	ctx := context.Background()
	cm, _ := newTestManager(t)

	calls := 0
	fetch := func() (interface{}, error) {
		calls++
		return payload{calls}, nil
	}

	for i := 0; i < 3; i++ {
		var got payload
		if err := cm.Stats.CacheOrExecute(ctx, "k", &got, time.Minute, fetch); err != nil {
			t.Fatalf("CacheOrExecute() error = %v", err)
		}
		if got.Value != 1 {
			t.Errorf("CacheOrExecute() value = %d, want 1", got.Value)
		}
	}
	if calls != 1 {
		t.Errorf("fetch calls = %d, want 1", calls)
	}

	boom := errors.New("boom")
	var got payload
	err := cm.Stats.CacheOrExecute(ctx, "other", &got, time.Minute, func() (interface{}, error) { return nil, boom })
	if !errors.Is(err, boom) {
		t.Errorf("CacheOrExecute() error = %v, want boom", err)
	}
}

func TestInvalidateStatistics(t *testing.T) {
	ctx := context.Background()
	cm, _ := newTestManager(t)

	tests := []struct {
		name  string
		scope string
		want  int64
	}{
		{name: "test scope", scope: TestStatsScope(7), want: 2},
		{name: "user scope", scope: UserStatsScope(3), want: 1},
		{name: "global scope", scope: GlobalStatsScope(), want: 3},
		{name: "catalog scope", scope: CatalogScope(), want: 1},
		{name: "untouched scope", scope: UserStatsScope(99), want: 0},
	}

	InvalidateStatistics(ctx, cm, 7, 3)
	InvalidateTestStatistics(ctx, cm, 7)
	InvalidateGlobalStatistics(ctx, cm)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StatsVersion(ctx, cm, tt.scope); got != tt.want {
				t.Errorf("StatsVersion(%s) = %d, want %d", tt.scope, got, tt.want)
			}
		})
	}

	if StatsKey(TestStatsScope(7), 2) != "test:7:v2" {
		t.Errorf("StatsKey() = %q", StatsKey(TestStatsScope(7), 2))
	}
}

func TestCacheHelper_Exists(t *testing.T) {
	ctx := context.Background()
	cm, _ := newTestManager(t)

	if err := cm.Tokens.SetString(ctx, "jti-1", "1", time.Minute); err != nil {
		t.Fatal(err)
	}
	ok, err := cm.Tokens.Exists(ctx, "jti-1")
	if err != nil || !ok {
		t.Errorf("Exists(jti-1) = %v, %v; want true", ok, err)
	}
	ok, _ = cm.Tokens.Exists(ctx, "jti-2")
	if ok {
		t.Errorf("Exists(jti-2) = true, want false")
	}
}
