package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/SAP-F-2025/quiz-service/internal/auth"
	"github.com/SAP-F-2025/quiz-service/internal/cache"
	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/repositories"
	"github.com/SAP-F-2025/quiz-service/internal/validator"
)

// TokenIssuer issues bearer tokens for authenticated users
type TokenIssuer interface {
	Issue(user *models.User) (string, time.Time, error)
}

type userService struct {
	repo      repositories.Repository
	cache     *cache.CacheManager
	tokens    TokenIssuer
	revoked   auth.RevocationStore
	logger    *slog.Logger
	validator *validator.Validator
}

func NewUserService(repo repositories.Repository, cm *cache.CacheManager, tokens TokenIssuer, revoked auth.RevocationStore, logger *slog.Logger, validator *validator.Validator) UserService {
	if cm == nil {
		cm = cache.NewCacheManager(nil)
	}
	return &userService{
		repo:      repo,
		cache:     cm,
		tokens:    tokens,
		revoked:   revoked,
		logger:    logger,
		validator: validator,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *userService) Register(ctx context.Context, req *RegisterRequest) (*models.User, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	email := normalizeEmail(req.Email)
	exists, err := s.repo.User().ExistsByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}
	if exists {
		return nil, ErrEmailTaken
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Role:         models.RoleUser,
	}
	if err := s.repo.User().Create(ctx, user); err != nil {
		if repositories.IsDuplicateError(err) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	cache.InvalidateGlobalStatistics(ctx, s.cache)

	s.logger.Info("User registered", "user_id", user.ID)
	return user, nil
}

func (s *userService) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.repo.User().GetByEmail(ctx, normalizeEmail(req.Email))
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		// externally provisioned accounts carry no usable hash
		if !errors.Is(err, auth.ErrPasswordMismatch) {
			s.logger.Warn("Password check failed", "user_id", user.ID, "error", err)
		}
		return nil, ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	s.logger.Info("User logged in", "user_id", user.ID)
	return &LoginResponse{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

func (s *userService) Logout(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if tokenID == "" {
		return nil
	}
	if err := s.revoked.Revoke(ctx, tokenID, expiresAt); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

func (s *userService) Me(ctx context.Context, actor Actor) (*models.User, error) {
	user, err := s.repo.User().GetByID(ctx, actor.UserID)
	if err != nil {
		return nil, repoError(err, ErrUserNotFound, "get user")
	}
	return user, nil
}

func (s *userService) GetByID(ctx context.Context, id uint, actor Actor) (*models.User, error) {
	if !actor.canAccessUser(id) {
		return nil, NewPermissionError(actor.UserID, id, "user", "view", "not the account owner")
	}
	user, err := s.repo.User().GetByID(ctx, id)
	if err != nil {
		return nil, repoError(err, ErrUserNotFound, "get user")
	}
	return user, nil
}

func (s *userService) List(ctx context.Context, params UserListParams, actor Actor) (*models.Page[*models.User], error) {
	if err := requireAdmin(actor, "user", "list"); err != nil {
		return nil, err
	}
	page, limit, offset := normalizePage(params.Page, params.Limit)
	users, total, err := s.repo.User().List(ctx, repositories.UserFilters{
		Query:  strings.TrimSpace(params.Search),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return models.NewPage(users, total, page, limit), nil
}

func (s *userService) ChangePassword(ctx context.Context, req *ChangePasswordRequest, actor Actor) error {
	if err := s.validator.Validate(req); err != nil {
		return err
	}
	user, err := s.repo.User().GetByID(ctx, actor.UserID)
	if err != nil {
		return repoError(err, ErrUserNotFound, "get user")
	}
	if err := auth.CheckPassword(user.PasswordHash, req.OldPassword); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return NewValidationError("oldPassword", "is incorrect", nil)
		}
		return err
	}

	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		return err
	}
	user.PasswordHash = hash
	if err := s.repo.User().Update(ctx, user); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	s.logger.Info("Password changed", "user_id", user.ID)
	return nil
}

func (s *userService) SetRole(ctx context.Context, id uint, req *SetRoleRequest, actor Actor) (*models.User, error) {
	if err := requireAdmin(actor, "user", "change role"); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	role, _ := models.ParseUserRole(req.Role)
	if id == actor.UserID && role != models.RoleAdmin {
		return nil, NewBusinessRuleError("self_demotion", "administrators cannot remove their own role", nil)
	}

	user, err := s.repo.User().GetByID(ctx, id)
	if err != nil {
		return nil, repoError(err, ErrUserNotFound, "get user")
	}
	if user.Role == role {
		return user, nil
	}
	user.Role = role
	if err := s.repo.User().Update(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to update role: %w", err)
	}

	s.logger.Info("User role changed", "user_id", id, "role", role, "changed_by", actor.UserID)
	return user, nil
}

func (s *userService) EnsureAdmin(ctx context.Context, email, password string) (*models.User, error) {
	email = normalizeEmail(email)
	user, err := s.repo.User().GetByEmail(ctx, email)
	switch {
	case err == nil:
		if user.IsAdmin() {
			return user, nil
		}
		user.Role = models.RoleAdmin
		if err := s.repo.User().Update(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to promote admin: %w", err)
		}
		s.logger.Info("Existing user promoted to admin", "user_id", user.ID)
		return user, nil
	case !repositories.IsNotFoundError(err):
		return nil, fmt.Errorf("failed to get admin: %w", err)
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user = &models.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    "Admin",
		LastName:     "User",
		Role:         models.RoleAdmin,
	}
	if err := s.repo.User().Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to create admin: %w", err)
	}
	cache.InvalidateGlobalStatistics(ctx, s.cache)
	s.logger.Info("Admin user created", "user_id", user.ID)
	return user, nil
}
