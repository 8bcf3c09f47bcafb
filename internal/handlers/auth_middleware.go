package handlers

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/quiz-service/internal/auth"
	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/services"
	"github.com/SAP-F-2025/quiz-service/internal/utils"
)

const identityKey = "identity"

// AuthMiddleware resolves bearer tokens through a Verifier
type AuthMiddleware struct {
	BaseHandler
	verifier auth.Verifier
}

func NewAuthMiddleware(verifier auth.Verifier, logger utils.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		BaseHandler: NewBaseHandler(logger),
		verifier:    verifier,
	}
}

// Require rejects requests without a valid bearer token
func (m *AuthMiddleware) Require() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			m.respondUnauthorized(c, "authorization header missing or malformed")
			return
		}

		identity, err := m.verifier.Verify(c.Request.Context(), token)
		if err != nil {
			message := "invalid token"
			if errors.Is(err, auth.ErrTokenRevoked) {
				message = "token revoked"
			}
			m.requestLogger(c).Debug("Token rejected", "error", err)
			m.respondUnauthorized(c, message)
			return
		}

		setIdentity(c, identity)
		c.Next()
	}
}

// Optional attaches the caller when a valid token is present and continues anonymously otherwise
func (m *AuthMiddleware) Optional() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, ok := bearerToken(c); ok {
			if identity, err := m.verifier.Verify(c.Request.Context(), token); err == nil {
				setIdentity(c, identity)
			}
		}
		c.Next()
	}
}

// RequireRole must run after Require
func (m *AuthMiddleware) RequireRole(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := IdentityFromContext(c)
		if identity == nil {
			m.respondUnauthorized(c, "user not authenticated")
			return
		}
		for _, role := range roles {
			if identity.Role == role {
				c.Next()
				return
			}
		}
		m.respondError(c, services.KindForbidden, "insufficient permissions", gin.H{"required": roles})
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

func setIdentity(c *gin.Context, identity *auth.Identity) {
	c.Set(identityKey, identity)
	c.Set("user_id", identity.UserID)
	c.Set("user_role", identity.Role)
}

// IdentityFromContext returns the authenticated caller, or nil
func IdentityFromContext(c *gin.Context) *auth.Identity {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil
	}
	identity, _ := v.(*auth.Identity)
	return identity
}
