package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/cbt-service/internal/models"
	"github.com/SAP-F-2025/cbt-service/internal/services"
	"github.com/SAP-F-2025/cbt-service/internal/utils"
	"github.com/SAP-F-2025/cbt-service/internal/validator"
)

// BaseHandler carries what every handler needs: a logger and the shared
// error rendering.
type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

func (h *BaseHandler) LogRequest(c *gin.Context, msg string, args ...any) {
	args = append(args, "method", c.Request.Method, "path", c.FullPath())
	utils.GetLogger(c, h.logger).Info(msg, args...)
}

func (h *BaseHandler) LogError(c *gin.Context, err error, msg string, args ...any) {
	args = append(args, "error", err, "path", c.Request.URL.Path)
	utils.GetLogger(c, h.logger).Error(msg, args...)
}

// respondError writes the standard error body.
func (h *BaseHandler) respondError(c *gin.Context, status int, code, message string, details interface{}) {
	c.AbortWithStatusJSON(status, models.ErrorResponse{
		Error:     code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		Path:      c.Request.URL.Path,
		RequestID: c.GetString("request_id"),
	})
}

func (h *BaseHandler) badRequest(c *gin.Context, message string, err error) {
	var details interface{}
	if err != nil {
		details = err.Error()
	}
	h.respondError(c, http.StatusBadRequest, "BAD_REQUEST", message, details)
}

// handleServiceError maps a service error to its HTTP status by kind.
// Internal errors are logged in full and answered with an opaque message.
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		resp := models.ErrorResponse{
			Error:     "VALIDATION_FAILED",
			Message:   "Validation failed",
			Timestamp: time.Now().UTC(),
			Path:      c.Request.URL.Path,
			RequestID: c.GetString("request_id"),
		}
		for _, v := range validationErrs {
			resp.ValidationErrors = append(resp.ValidationErrors, models.ValidationErrorResponse{
				Field:   v.Field,
				Message: v.Message,
				Value:   valueString(v.Value),
				Code:    v.Rule,
			})
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, resp)
		return
	}

	var ruleErr *services.BusinessRuleError
	if errors.As(err, &ruleErr) {
		h.respondError(c, http.StatusUnprocessableEntity, ruleErr.Rule, ruleErr.Message, ruleErr.Details)
		return
	}

	var permErr *services.PermissionError
	if errors.As(err, &permErr) {
		h.respondError(c, http.StatusForbidden, services.CodeOf(err), "Access denied", map[string]interface{}{
			"resource": permErr.Resource,
			"action":   permErr.Action,
			"reason":   permErr.Reason,
		})
		return
	}

	code := services.CodeOf(err)
	switch services.KindOf(err) {
	case services.KindNotFound:
		h.respondError(c, http.StatusNotFound, code, messageOf(err), nil)
	case services.KindPreconditionFailed:
		h.respondError(c, http.StatusPreconditionFailed, code, messageOf(err), nil)
	case services.KindUnauthorized:
		h.respondError(c, http.StatusForbidden, code, messageOf(err), nil)
	case services.KindConflict:
		h.respondError(c, http.StatusConflict, code, messageOf(err), nil)
	default:
		h.LogError(c, err, "Unexpected service error")
		h.respondError(c, http.StatusInternalServerError, code, "An unexpected error occurred", nil)
	}
}

// messageOf prefers the sentinel's own message over the wrapped chain.
func messageOf(err error) string {
	var svcErr *services.ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.Message
	}
	return err.Error()
}

func valueString(v interface{}) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

// parseIDParam reads a numeric path parameter. On failure it has already
// written a 400 and returns 0.
func (h *BaseHandler) parseIDParam(c *gin.Context, param string) uint {
	id, err := strconv.ParseUint(c.Param(param), 10, 32)
	if err != nil || id == 0 {
		h.badRequest(c, "Invalid "+param, err)
		return 0
	}
	return uint(id)
}

func (h *BaseHandler) parseIntQuery(c *gin.Context, param string, defaultValue int) int {
	valueStr := c.Query(param)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// currentUser returns the authenticated user. On failure it has already
// written a 401.
func (h *BaseHandler) currentUser(c *gin.Context) *models.User {
	user, err := GetUserFromContext(c)
	if err != nil {
		h.respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "User not authenticated", nil)
		return nil
	}
	return user
}
