package auth

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/SAP-F-2025/quiz-service/internal/cache"
)

// RevocationStore remembers logged-out token ids until they would have expired anyway
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// CacheRevocationStore keeps revoked ids in redis
type CacheRevocationStore struct {
	helper *cache.CacheHelper
}

func NewCacheRevocationStore(cm *cache.CacheManager) *CacheRevocationStore {
	return &CacheRevocationStore{helper: cm.Tokens}
}

func (s *CacheRevocationStore) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	return s.helper.SetString(ctx, tokenID, "1", ttl)
}

func (s *CacheRevocationStore) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	revoked, err := s.helper.Exists(ctx, tokenID)
	if errors.Is(err, cache.ErrCacheNotAvailable) {
		return false, nil
	}
	return revoked, err
}

// MemoryRevocationStore is the single-instance fallback when redis is not configured
type MemoryRevocationStore struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

func NewMemoryRevocationStore() *MemoryRevocationStore {
	return &MemoryRevocationStore{revoked: make(map[string]time.Time), now: time.Now}
}

func (s *MemoryRevocationStore) Revoke(_ context.Context, tokenID string, until time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for id, exp := range s.revoked {
		if !exp.After(now) {
			delete(s.revoked, id)
		}
	}
	if until.After(now) {
		s.revoked[tokenID] = until
	}
	return nil
}

func (s *MemoryRevocationStore) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	exp, ok := s.revoked[tokenID]
	return ok && exp.After(s.now()), nil
}
