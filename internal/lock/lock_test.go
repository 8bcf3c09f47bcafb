package lock

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestKeyedMutex_SerialisesSameKey(t *testing.T) {
	km := NewKeyedMutex()
	ctx := context.Background()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := km.Acquire(ctx, "attempt:1")
			if err != nil {
				t.Error(err)
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Errorf("max concurrent holders = %d, want 1", maxInside)
	}
	if km.Len() != 0 {
		t.Errorf("Len() after release = %d, want 0", km.Len())
	}
}

func TestKeyedMutex_DifferentKeysIndependent(t *testing.T) {
	km := NewKeyedMutex()
	ctx := context.Background()

	releaseA, err := km.Acquire(ctx, "a")
	if err != nil {
		t.Fatal(err)
	}
	defer releaseA()

	ctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	releaseB, err := km.Acquire(ctx, "b")
	if err != nil {
		t.Fatalf("Acquire(b) error = %v", err)
	}
	releaseB()
}

func TestKeyedMutex_ContextCancel(t *testing.T) {
	km := NewKeyedMutex()
	release, _ := km.Acquire(context.Background(), "k")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := km.Acquire(ctx, "k")
	if !errors.Is(err, ErrLockNotAcquired) {
		t.Errorf("Acquire() error = %v, want ErrLockNotAcquired", err)
	}

	release()
	release() // idempotent
	if km.Len() != 0 {
		t.Errorf("Len() = %d, want 0", km.Len())
	}
}

func newRedisLocker(t *testing.T, retries int) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLocker(client, RedisLockerConfig{TTL: time.Second, Retries: retries, RetryDelay: time.Millisecond}, slog.Default()), mr
}

func TestRedisLocker(t *testing.T) {
	tests := []struct {
		name    string
		held    bool
		wantErr error
	}{
		{name: "free key is acquired", held: false},
		{name: "held key exhausts retries", held: true, wantErr: ErrLockNotAcquired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			locker, mr := newRedisLocker(t, 3)
			if tt.held {
				if err := mr.Set("quiz:lock:attempt:1", "someone-else"); err != nil {
					t.Fatal(err)
				}
			}

			release, err := locker.Acquire(context.Background(), "attempt:1")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Acquire() error = %v, want %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if !mr.Exists("quiz:lock:attempt:1") {
				t.Fatal("lock key not set")
			}
			release()
			if mr.Exists("quiz:lock:attempt:1") {
				t.Error("lock key still present after release")
			}
		})
	}
}

func TestRedisLocker_ReleaseKeepsForeignLock(t *testing.T) {
	locker, mr := newRedisLocker(t, 1)

	release, err := locker.Acquire(context.Background(), "k")
	if err != nil {
		t.Fatal(err)
	}
	// TTL lapsed and another instance took over
	if err := mr.Set("quiz:lock:k", "other-owner"); err != nil {
		t.Fatal(err)
	}
	release()

	got, _ := mr.Get("quiz:lock:k")
	if got != "other-owner" {
		t.Errorf("lock value = %q, want other-owner", got)
	}
}

func TestChain_ReleasesOnFailure(t *testing.T) {
	km := NewKeyedMutex()
	locker, mr := newRedisLocker(t, 1)
	if err := mr.Set("quiz:lock:k", "busy"); err != nil {
		t.Fatal(err)
	}

	chain := Chain{km, locker}
	if _, err := chain.Acquire(context.Background(), "k"); !errors.Is(err, ErrLockNotAcquired) {
		t.Fatalf("Acquire() error = %v, want ErrLockNotAcquired", err)
	}
	if km.Len() != 0 {
		t.Errorf("in-process lock leaked after chain failure")
	}
}
