package auth

import (
	"context"
	"errors"
	"time"

	"github.com/SAP-F-2025/quiz-service/internal/models"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenRevoked = errors.New("token revoked")
)

// Identity is the authenticated caller resolved from a bearer token
type Identity struct {
	UserID    uint
	Email     string
	Role      models.UserRole
	TokenID   string
	ExpiresAt time.Time
}

func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == models.RoleAdmin
}

// Verifier resolves a bearer token to an identity
type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// ChainVerifier tries each verifier in order and returns the first success
type ChainVerifier []Verifier

func (c ChainVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	var lastErr error = ErrInvalidToken
	for _, v := range c {
		identity, err := v.Verify(ctx, token)
		if err == nil {
			return identity, nil
		}
		// a revoked local token must not fall through to another provider
		if errors.Is(err, ErrTokenRevoked) {
			return nil, err
		}
		lastErr = err
	}
	return nil, lastErr
}
