package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/casdoor/casdoor-go-sdk/casdoorsdk"

	"github.com/SAP-F-2025/quiz-service/internal/config"
	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
)

// CasdoorVerifier accepts casdoor-issued tokens and maps them onto local users by email
type CasdoorVerifier struct {
	client *casdoorsdk.Client
	users  repositories.UserRepository
	logger *slog.Logger
}

func NewCasdoorVerifier(cfg config.CasdoorConfig, users repositories.UserRepository, logger *slog.Logger) *CasdoorVerifier {
	client := casdoorsdk.NewClient(
		cfg.Endpoint,
		cfg.ClientID,
		cfg.ClientSecret,
		cfg.Cert,
		cfg.Organization,
		cfg.Application,
	)
	return &CasdoorVerifier{client: client, users: users, logger: logger}
}

func (v *CasdoorVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	claims, err := v.client.ParseJwtToken(token)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}

	email := strings.ToLower(strings.TrimSpace(claims.User.Email))
	if email == "" {
		return nil, fmt.Errorf("%w: casdoor token carries no email", ErrInvalidToken)
	}

	user, err := v.users.GetByEmail(ctx, email)
	if repositories.IsNotFoundError(err) {
		user, err = v.provision(ctx, email, claims)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to resolve casdoor user: %w", err)
	}

	identity := &Identity{
		UserID:  user.ID,
		Email:   user.Email,
		Role:    user.Role,
		TokenID: claims.ID,
	}
	if claims.ExpiresAt != nil {
		identity.ExpiresAt = claims.ExpiresAt.Time
	}
	return identity, nil
}

// provision creates the local account a casdoor user maps to. Role is USER
// unless casdoor marks the account as admin.
func (v *CasdoorVerifier) provision(ctx context.Context, email string, claims *casdoorsdk.Claims) (*models.User, error) {
	first, last := splitDisplayName(claims.User.DisplayName)
	role := models.RoleUser
	if claims.User.IsAdmin || strings.EqualFold(claims.User.Type, "admin") {
		role = models.RoleAdmin
	}

	user := &models.User{
		Email:        email,
		PasswordHash: "!casdoor", // never matches a bcrypt hash, so local login is impossible
		FirstName:    first,
		LastName:     last,
		Role:         role,
	}
	if err := v.users.Create(ctx, user); err != nil {
		if repositories.IsDuplicateError(err) {
			return v.users.GetByEmail(ctx, email)
		}
		return nil, err
	}

	v.logger.Info("Provisioned user from casdoor", "user_id", user.ID, "email", email, "role", role)
	return user, nil
}

func splitDisplayName(name string) (string, string) {
	parts := strings.Fields(name)
	switch len(parts) {
	case 0:
		return "Casdoor", "User"
	case 1:
		return parts[0], ""
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}
