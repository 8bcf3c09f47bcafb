package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/quiz-service/internal/services"
	"github.com/SAP-F-2025/quiz-service/internal/utils"
)

type UserHandler struct {
	BaseHandler
	service services.UserService
}

func NewUserHandler(service services.UserService, logger utils.Logger) *UserHandler {
	return &UserHandler{
		BaseHandler: NewBaseHandler(logger),
		service:     service,
	}
}

// Register creates a user account
// @Summary Register
// @Tags users
// @Accept json
// @Produce json
// @Param user body services.RegisterRequest true "Account data"
// @Success 201 {object} models.Response{data=models.User}
// @Failure 400 {object} models.Response
// @Failure 409 {object} models.Response
// @Router /users/register [post]
func (h *UserHandler) Register(c *gin.Context) {
	var req services.RegisterRequest
	if !h.bindJSON(c, &req) {
		return
	}

	user, err := h.service.Register(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respond(c, http.StatusCreated, user)
}

// Login exchanges credentials for a bearer token
// @Summary Login
// @Tags users
// @Accept json
// @Produce json
// @Param credentials body services.LoginRequest true "Credentials"
// @Success 200 {object} models.Response{data=services.LoginResponse}
// @Failure 401 {object} models.Response
// @Router /users/login [post]
func (h *UserHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if !h.bindJSON(c, &req) {
		return
	}

	resp, err := h.service.Login(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respond(c, http.StatusOK, resp)
}

// Logout revokes the presented token
// @Summary Logout
// @Tags users
// @Produce json
// @Success 200 {object} models.Response
// @Router /users/logout [post]
func (h *UserHandler) Logout(c *gin.Context) {
	identity := IdentityFromContext(c)
	if identity == nil {
		h.respondUnauthorized(c, "user not authenticated")
		return
	}
	h.LogRequest(c, "Logging out")

	if err := h.service.Logout(c.Request.Context(), identity.TokenID, identity.ExpiresAt); err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respond(c, http.StatusOK, gin.H{"message": "logged out"})
}

// Me returns the caller's profile
// @Summary Current user
// @Tags users
// @Produce json
// @Success 200 {object} models.Response{data=models.User}
// @Failure 401 {object} models.Response
// @Router /users/me [get]
func (h *UserHandler) Me(c *gin.Context) {
	user, err := h.service.Me(c.Request.Context(), h.actor(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respond(c, http.StatusOK, user)
}

// ChangePassword
// @Summary Change password
// @Tags users
// @Accept json
// @Produce json
// @Param body body services.ChangePasswordRequest true "Old and new password"
// @Success 200 {object} models.Response
// @Failure 400 {object} models.Response
// @Router /users/password [put]
func (h *UserHandler) ChangePassword(c *gin.Context) {
	var req services.ChangePasswordRequest
	if !h.bindJSON(c, &req) {
		return
	}

	if err := h.service.ChangePassword(c.Request.Context(), &req, h.actor(c)); err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respond(c, http.StatusOK, gin.H{"message": "password changed"})
}

// GetUser
// @Summary Get user
// @Tags users
// @Produce json
// @Param id path uint true "User ID"
// @Success 200 {object} models.Response{data=models.User}
// @Failure 403 {object} models.Response
// @Failure 404 {object} models.Response
// @Router /users/{id} [get]
func (h *UserHandler) GetUser(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}

	user, err := h.service.GetByID(c.Request.Context(), id, h.actor(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respond(c, http.StatusOK, user)
}

// ListUsers lists users with optional search
// @Summary List users
// @Tags users
// @Produce json
// @Param page query int false "Page number (default: 1)"
// @Param limit query int false "Page size (default: 20, max: 100)"
// @Param q query string false "Search by name or email"
// @Success 200 {object} models.Response{data=models.Page[models.User]}
// @Router /users [get]
func (h *UserHandler) ListUsers(c *gin.Context) {
	h.LogRequest(c, "Listing users")

	page, err := h.service.List(c.Request.Context(), services.UserListParams{
		Search: c.Query("q"),
		Page:   h.parseIntQuery(c, "page", 1),
		Limit:  h.parseIntQuery(c, "limit", 0),
	}, h.actor(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respond(c, http.StatusOK, page)
}

// SetRole changes a user's role
// @Summary Set user role
// @Tags users
// @Accept json
// @Produce json
// @Param id path uint true "User ID"
// @Param body body services.SetRoleRequest true "Role"
// @Success 200 {object} models.Response{data=models.User}
// @Router /users/{id}/role [put]
func (h *UserHandler) SetRole(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	var req services.SetRoleRequest
	if !h.bindJSON(c, &req) {
		return
	}

	h.LogRequest(c, "Setting user role", "target_user_id", id, "role", req.Role)
	user, err := h.service.SetRole(c.Request.Context(), id, &req, h.actor(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}
	h.respond(c, http.StatusOK, user)
}
