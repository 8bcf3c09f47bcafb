package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrLockNotAcquired is returned when a lock could not be obtained in time
var ErrLockNotAcquired = errors.New("lock not acquired")

// Locker serialises work per key
type Locker interface {
	// Acquire blocks until key is held or ctx is done; the returned func releases it
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// KeyedMutex is an in-process Locker. Entries exist only while someone holds
// or waits for the key.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyEntry
}

type keyEntry struct {
	ch   chan struct{}
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyEntry)}
}

func (k *KeyedMutex) Acquire(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	entry, ok := k.locks[key]
	if !ok {
		entry = &keyEntry{ch: make(chan struct{}, 1)}
		k.locks[key] = entry
	}
	entry.refs++
	k.mu.Unlock()

	select {
	case entry.ch <- struct{}{}:
	case <-ctx.Done():
		k.unref(key, entry)
		return nil, errors.Join(ErrLockNotAcquired, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-entry.ch
			k.unref(key, entry)
		})
	}, nil
}

func (k *KeyedMutex) unref(key string, entry *keyEntry) {
	k.mu.Lock()
	defer k.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(k.locks, key)
	}
}

// Len reports the number of keys currently held or awaited
func (k *KeyedMutex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

// Chain acquires every locker in order and releases in reverse
type Chain []Locker

func (c Chain) Acquire(ctx context.Context, key string) (func(), error) {
	releases := make([]func(), 0, len(c))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
	for _, l := range c {
		release, err := l.Acquire(ctx, key)
		if err != nil {
			releaseAll()
			return nil, err
		}
		releases = append(releases, release)
	}
	return releaseAll, nil
}

// WithTimeout bounds how long Acquire may wait
func WithTimeout(l Locker, d time.Duration) Locker {
	return timeoutLocker{inner: l, d: d}
}

type timeoutLocker struct {
	inner Locker
	d     time.Duration
}

func (t timeoutLocker) Acquire(ctx context.Context, key string) (func(), error) {
	if t.d <= 0 {
		return t.inner.Acquire(ctx, key)
	}
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.inner.Acquire(ctx, key)
}
