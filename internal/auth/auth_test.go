package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/SAP-F-2025/quiz-service/internal/cache"
	"github.com/SAP-F-2025/quiz-service/internal/models"
)

func newManager(revoked RevocationStore) *JWTManager {
	return NewJWTManager("test-secret", time.Hour, "quiz-service", revoked)
}

func TestJWTManager_IssueAndVerify(t *testing.T) {
	m := newManager(NewMemoryRevocationStore())
	user := &models.User{ID: 5, Email: "a@b.c", Role: models.RoleAdmin}

	token, expiresAt, err := m.Issue(user)
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	identity, err := m.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if identity.UserID != 5 || !identity.IsAdmin() || identity.Email != "a@b.c" {
		t.Errorf("identity = %+v", identity)
	}
	if identity.TokenID == "" {
		t.Error("token id should be set")
	}
	if !identity.ExpiresAt.Equal(expiresAt.Truncate(time.Second)) {
		t.Errorf("ExpiresAt = %v, want %v", identity.ExpiresAt, expiresAt)
	}
}

func TestJWTManager_Rejects(t *testing.T) {
	user := &models.User{ID: 1, Role: models.RoleUser}

	tests := []struct {
		name    string
		token   func(t *testing.T) string
		verify  *JWTManager
		wantErr error
	}{
		{
			name:    "garbage",
			token:   func(t *testing.T) string { return "not-a-token" },
			verify:  newManager(nil),
			wantErr: ErrInvalidToken,
		},
		{
			name: "wrong secret",
			token: func(t *testing.T) string {
				tok, _, err := NewJWTManager("other", time.Hour, "quiz-service", nil).Issue(user)
				if err != nil {
					t.Fatal(err)
				}
				return tok
			},
			verify:  newManager(nil),
			wantErr: ErrInvalidToken,
		},
		{
			name: "expired",
			token: func(t *testing.T) string {
				m := newManager(nil)
				m.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
				tok, _, err := m.Issue(user)
				if err != nil {
					t.Fatal(err)
				}
				return tok
			},
			verify:  newManager(nil),
			wantErr: ErrInvalidToken,
		},
		{
			name: "wrong issuer",
			token: func(t *testing.T) string {
				tok, _, err := NewJWTManager("test-secret", time.Hour, "someone-else", nil).Issue(user)
				if err != nil {
					t.Fatal(err)
				}
				return tok
			},
			verify:  newManager(nil),
			wantErr: ErrInvalidToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.verify.Verify(context.Background(), tt.token(t))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Verify() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestJWTManager_Revocation(t *testing.T) {
	store := NewMemoryRevocationStore()
	m := newManager(store)
	ctx := context.Background()

	token, expiresAt, _ := m.Issue(&models.User{ID: 2, Role: models.RoleUser})
	identity, err := m.Verify(ctx, token)
	if err != nil {
		t.Fatal(err)
	}

	if err := store.Revoke(ctx, identity.TokenID, expiresAt); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Verify(ctx, token); !errors.Is(err, ErrTokenRevoked) {
		t.Errorf("Verify() after revoke error = %v, want ErrTokenRevoked", err)
	}

	// a revoked token must not be retried by later verifiers
	chain := ChainVerifier{m, stubVerifier{identity: &Identity{UserID: 99}}}
	if _, err := chain.Verify(ctx, token); !errors.Is(err, ErrTokenRevoked) {
		t.Errorf("chain Verify() error = %v, want ErrTokenRevoked", err)
	}
}

type stubVerifier struct {
	identity *Identity
	err      error
}

func (s stubVerifier) Verify(context.Context, string) (*Identity, error) {
	return s.identity, s.err
}

func TestChainVerifier_FallsThrough(t *testing.T) {
	chain := ChainVerifier{
		stubVerifier{err: ErrInvalidToken},
		stubVerifier{identity: &Identity{UserID: 7}},
	}
	identity, err := chain.Verify(context.Background(), "x")
	if err != nil || identity.UserID != 7 {
		t.Errorf("Verify() = %+v, %v; want user 7", identity, err)
	}

	if _, err := (ChainVerifier{}).Verify(context.Background(), "x"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("empty chain error = %v, want ErrInvalidToken", err)
	}
}

func TestPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatal(err)
	}
	if err := CheckPassword(hash, "correct horse"); err != nil {
		t.Errorf("CheckPassword(correct) error = %v", err)
	}
	if err := CheckPassword(hash, "wrong"); !errors.Is(err, ErrPasswordMismatch) {
		t.Errorf("CheckPassword(wrong) error = %v, want ErrPasswordMismatch", err)
	}
}

func TestMemoryRevocationStore_Expiry(t *testing.T) {
	store := NewMemoryRevocationStore()
	now := time.Now()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	_ = store.Revoke(ctx, "a", now.Add(time.Minute))
	if ok, _ := store.IsRevoked(ctx, "a"); !ok {
		t.Fatal("token should be revoked")
	}

	now = now.Add(2 * time.Minute)
	if ok, _ := store.IsRevoked(ctx, "a"); ok {
		t.Error("revocation should lapse with the token")
	}
}

func TestCacheRevocationStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	store := NewCacheRevocationStore(cache.NewCacheManager(client))
	ctx := context.Background()

	if err := store.Revoke(ctx, "jti-1", time.Now().Add(time.Minute)); err != nil {
		t.Fatal(err)
	}
	if ok, err := store.IsRevoked(ctx, "jti-1"); err != nil || !ok {
		t.Errorf("IsRevoked(jti-1) = %v, %v; want true", ok, err)
	}
	if ttl := mr.TTL(cache.TokenCacheConfig.Prefix + "jti-1"); ttl <= 0 || ttl > time.Minute {
		t.Errorf("revocation ttl = %v", ttl)
	}

	// without redis nothing is ever reported revoked
	degraded := NewCacheRevocationStore(cache.NewCacheManager(nil))
	if ok, err := degraded.IsRevoked(ctx, "jti-1"); err != nil || ok {
		t.Errorf("degraded IsRevoked = %v, %v; want false, nil", ok, err)
	}
}
