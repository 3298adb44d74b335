package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/cbt-service/internal/models"
	"github.com/SAP-F-2025/cbt-service/internal/services"
	"github.com/SAP-F-2025/cbt-service/internal/utils"
)

type StudentHandler struct {
	BaseHandler
	service services.StudentService
}

func NewStudentHandler(service services.StudentService, logger utils.Logger) *StudentHandler {
	return &StudentHandler{
		BaseHandler: NewBaseHandler(logger),
		service:     service,
	}
}

// ===== STUDENT ENDPOINTS =====

// GetMyProfile returns the caller's student profile
// @Summary Get my student profile
// @Tags students
// @Produce json
// @Success 200 {object} models.Student
// @Failure 404 {object} models.ErrorResponse
// @Router /students/me [get]
func (h *StudentHandler) GetMyProfile(c *gin.Context) {
	user := h.currentUser(c)
	if user == nil {
		return
	}

	profile, err := h.service.GetProfile(c.Request.Context(), user.ID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

// GetStudentStats returns statistics for the current student
// @Summary Get student statistics
// @Description Aggregates over released results only
// @Tags students
// @Produce json
// @Success 200 {object} services.StudentStatsResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /students/me/stats [get]
func (h *StudentHandler) GetStudentStats(c *gin.Context) {
	h.LogRequest(c, "Getting student stats")

	user := h.currentUser(c)
	if user == nil {
		return
	}

	stats, err := h.service.GetStats(c.Request.Context(), user.ID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// ===== STAFF ENDPOINTS =====

// CreateStudent creates a student profile for a Casdoor user
// @Summary Create student profile
// @Tags students
// @Accept json
// @Produce json
// @Param student body models.StudentCreateRequest true "Profile"
// @Success 201 {object} models.Student
// @Failure 409 {object} models.ErrorResponse
// @Router /students [post]
func (h *StudentHandler) CreateStudent(c *gin.Context) {
	user := h.currentUser(c)
	if user == nil {
		return
	}

	var req models.StudentCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request payload", err)
		return
	}

	student, err := h.service.CreateProfile(c.Request.Context(), &req, user)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, student)
}

// ImportStudents creates profiles from an uploaded xlsx sheet
// @Summary Import students
// @Tags students
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "xlsx workbook"
// @Success 200 {object} models.ImportResult
// @Router /students/import [post]
func (h *StudentHandler) ImportStudents(c *gin.Context) {
	user := h.currentUser(c)
	if user == nil {
		return
	}

	file, ok := openUpload(c, &h.BaseHandler)
	if !ok {
		return
	}
	defer file.Close()

	h.LogRequest(c, "Importing students")

	result, err := h.service.ImportStudents(c.Request.Context(), file, user)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
