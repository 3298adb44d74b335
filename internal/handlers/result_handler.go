package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/cbt-service/internal/models"
	"github.com/SAP-F-2025/cbt-service/internal/services"
	"github.com/SAP-F-2025/cbt-service/internal/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ResultHandler struct {
	BaseHandler
	resultService services.ResultService
}

func NewResultHandler(resultService services.ResultService, logger utils.Logger) *ResultHandler {
	return &ResultHandler{
		BaseHandler:   NewBaseHandler(logger),
		resultService: resultService,
	}
}

// GetAttemptResult returns the result of an attempt
// @Summary Get attempt result
// @Description Students only see released results; the position is included once released
// @Tags results
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} models.Result
// @Failure 404 {object} models.ErrorResponse
// @Failure 412 {object} models.ErrorResponse "Result not released yet"
// @Router /attempts/{id}/result [get]
func (h *ResultHandler) GetAttemptResult(c *gin.Context) {
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}
	user := h.currentUser(c)
	if user == nil {
		return
	}

	result, err := h.resultService.GetAttemptResult(c.Request.Context(), attemptID, user)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ListExamResults lists the results of an exam
// @Summary List exam results
// @Tags results
// @Produce json
// @Param id path uint true "Exam ID"
// @Param page query int false "Page number, zero based" default(0)
// @Param size query int false "Page size" default(50)
// @Param status query string false "PENDING or RELEASED"
// @Param sort_by query string false "percentage, total_score or created_at"
// @Param sort_dir query string false "asc or desc"
// @Success 200 {object} models.PaginatedResponse
// @Router /exams/{id}/results [get]
func (h *ResultHandler) ListExamResults(c *gin.Context) {
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}
	user := h.currentUser(c)
	if user == nil {
		return
	}

	params := &models.ListResultsParams{
		Page:    h.parseIntQuery(c, "page", 0),
		Size:    h.parseIntQuery(c, "size", 50),
		Status:  models.ResultStatus(strings.ToUpper(c.Query("status"))),
		SortBy:  c.Query("sort_by"),
		SortDir: strings.ToLower(c.Query("sort_dir")),
	}

	page, err := h.resultService.ListExamResults(c.Request.Context(), examID, params, user)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

// ExportExamResults downloads the results as a workbook
// @Summary Export exam results
// @Tags results
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path uint true "Exam ID"
// @Success 200 {file} file
// @Router /exams/{id}/results/export [get]
func (h *ResultHandler) ExportExamResults(c *gin.Context) {
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}
	user := h.currentUser(c)
	if user == nil {
		return
	}

	data, err := h.resultService.ExportExamResults(c.Request.Context(), examID, user)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="exam-%d-results.xlsx"`, examID))
	c.Data(http.StatusOK, xlsxContentType, data)
}

// ReleaseExamResults releases every pending result of an exam
// @Summary Release exam results
// @Tags results
// @Produce json
// @Param id path uint true "Exam ID"
// @Success 200 {object} models.SuccessResponse
// @Router /exams/{id}/results/release [post]
func (h *ResultHandler) ReleaseExamResults(c *gin.Context) {
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}
	user := h.currentUser(c)
	if user == nil {
		return
	}

	h.LogRequest(c, "Releasing exam results", "exam_id", examID)

	released, err := h.resultService.ReleaseExamResults(c.Request.Context(), examID, user)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.SuccessResponse{
		Message:   "Results released",
		Data:      gin.H{"released": released},
		Timestamp: time.Now().UTC(),
	})
}
