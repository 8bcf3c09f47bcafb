package handlers

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/quiz-service/internal/models"
	"github.com/SAP-F-2025/quiz-service/internal/services"
	"github.com/SAP-F-2025/quiz-service/internal/utils"
)

// BaseHandler carries the helpers shared by every handler
type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

// ===== RESPONSES =====

func (h *BaseHandler) respond(c *gin.Context, status int, data interface{}) {
	c.JSON(status, models.Response{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
}

func (h *BaseHandler) respondError(c *gin.Context, kind services.ErrorKind, message string, details interface{}) {
	c.AbortWithStatusJSON(kind.HTTPStatus(), models.Response{
		Success:   false,
		Error:     message,
		Code:      string(kind),
		Details:   details,
		Timestamp: time.Now().UTC(),
	})
}

// handleServiceError maps a service error onto its status and envelope
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	kind := services.KindOf(err)

	var (
		verrs      services.ValidationErrors
		notAllowed *services.AttemptNotAllowedError
		ruleErr    *services.BusinessRuleError
	)
	switch {
	case kind == services.KindInternal:
		h.LogError(c, err, "Request failed")
		h.respondError(c, kind, "internal server error", nil)
	case errors.As(err, &verrs):
		h.respondError(c, kind, "validation failed", verrs)
	case errors.As(err, &notAllowed):
		h.respondError(c, kind, notAllowed.Message, gin.H{"rule": notAllowed.Rule, "context": notAllowed.Context})
	case errors.As(err, &ruleErr):
		h.respondError(c, kind, ruleErr.Message, gin.H{"rule": ruleErr.Rule})
	default:
		h.respondError(c, kind, err.Error(), nil)
	}
}

// ===== REQUEST HELPERS =====

// bindJSON decodes the body into req and writes a 400 on failure
func (h *BaseHandler) bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		h.respondError(c, services.KindValidation, "invalid request payload", err.Error())
		return false
	}
	return true
}

// parseIDParam returns 0 after writing a 400 when the parameter is not a positive id
func (h *BaseHandler) parseIDParam(c *gin.Context, name string) uint {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		h.respondError(c, services.KindValidation, "invalid "+name, c.Param(name))
		return 0
	}
	return uint(id)
}

func (h *BaseHandler) parseIntQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func (h *BaseHandler) parseOptionalUintQuery(c *gin.Context, name string) *uint {
	v, err := strconv.ParseUint(c.Query(name), 10, 64)
	if err != nil || v == 0 {
		return nil
	}
	id := uint(v)
	return &id
}

func (h *BaseHandler) parseOptionalBoolQuery(c *gin.Context, name string) *bool {
	v, err := strconv.ParseBool(c.Query(name))
	if err != nil {
		return nil
	}
	return &v
}

// actor is the caller; anonymous requests get the zero Actor
func (h *BaseHandler) actor(c *gin.Context) services.Actor {
	identity := IdentityFromContext(c)
	if identity == nil {
		return services.Actor{}
	}
	return services.Actor{UserID: identity.UserID, Role: identity.Role}
}

// ===== LOGGING =====

func (h *BaseHandler) requestLogger(c *gin.Context) utils.Logger {
	return utils.GetLogger(c.Request.Context(), h.logger)
}

func (h *BaseHandler) LogRequest(c *gin.Context, msg string, args ...any) {
	args = append(args, "method", c.Request.Method, "path", c.FullPath())
	if identity := IdentityFromContext(c); identity != nil {
		args = append(args, "user_id", identity.UserID)
	}
	h.requestLogger(c).Debug(msg, args...)
}

func (h *BaseHandler) LogError(c *gin.Context, err error, msg string, args ...any) {
	args = append(args, "error", err, "method", c.Request.Method, "path", c.FullPath())
	h.requestLogger(c).Error(msg, args...)
}

func (h *BaseHandler) respondUnauthorized(c *gin.Context, message string) {
	h.respondError(c, services.KindUnauthorized, message, nil)
}
