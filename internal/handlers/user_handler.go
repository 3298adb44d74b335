package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/cbt-service/internal/repositories"
	"github.com/SAP-F-2025/cbt-service/internal/utils"
)

type UserHandler struct {
	BaseHandler
	userRepo repositories.UserRepository
}

func NewUserHandler(userRepo repositories.UserRepository, logger utils.Logger) *UserHandler {
	return &UserHandler{
		BaseHandler: NewBaseHandler(logger),
		userRepo:    userRepo,
	}
}

// GetCurrentUser returns the authenticated user
// @Summary Get current user
// @Tags users
// @Produce json
// @Success 200 {object} models.User
// @Failure 401 {object} models.ErrorResponse "Unauthorized"
// @Router /users/me [get]
func (h *UserHandler) GetCurrentUser(c *gin.Context) {
	user := h.currentUser(c)
	if user == nil {
		return
	}

	c.JSON(http.StatusOK, user)
}

// GetUser gets a user by ID
// @Summary Get user by ID
// @Description Resolve a Casdoor user, used by staff when reviewing results
// @Tags users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} models.User
// @Failure 404 {object} models.ErrorResponse "Not found"
// @Failure 500 {object} models.ErrorResponse "Internal server error"
// @Router /users/{id} [get]
func (h *UserHandler) GetUser(c *gin.Context) {
	userID := c.Param("id")
	if userID == "" {
		h.respondError(c, http.StatusBadRequest, "INVALID_ID", "User ID is required", nil)
		return
	}

	h.LogRequest(c, "Getting user", "user_id", userID)

	user, err := h.userRepo.GetByID(c.Request.Context(), userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			h.respondError(c, http.StatusNotFound, "USER_NOT_FOUND", "User not found", nil)
			return
		}
		h.LogError(c, err, "Failed to get user")
		h.respondError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to get user", nil)
		return
	}

	c.JSON(http.StatusOK, user)
}
