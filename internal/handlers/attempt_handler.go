package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/cbt-service/internal/models"
	"github.com/SAP-F-2025/cbt-service/internal/services"
	"github.com/SAP-F-2025/cbt-service/internal/utils"
)

type AttemptHandler struct {
	BaseHandler
	attemptService services.AttemptService
}

func NewAttemptHandler(attemptService services.AttemptService, logger utils.Logger) *AttemptHandler {
	return &AttemptHandler{
		BaseHandler:    NewBaseHandler(logger),
		attemptService: attemptService,
	}
}

type startAttemptBody struct {
	Password string `json:"password"`
}

// StartAttempt starts or resumes the caller's attempt on an exam
// @Summary Start or resume exam attempt
// @Description Checks the exam window, password and attempt limit, then returns the open attempt with freshly ordered questions
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path uint true "Exam ID"
// @Param body body startAttemptBody false "Exam password"
// @Success 201 {object} services.StartAttemptResponse "New attempt"
// @Success 200 {object} services.StartAttemptResponse "Resumed attempt"
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 412 {object} models.ErrorResponse
// @Router /exams/{id}/attempts [post]
func (h *AttemptHandler) StartAttempt(c *gin.Context) {
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}
	user := h.currentUser(c)
	if user == nil {
		return
	}

	// The body is optional; an empty one, chunked or not, means no password.
	var body startAttemptBody
	if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
		h.badRequest(c, "Invalid request payload", err)
		return
	}

	h.LogRequest(c, "Starting exam attempt", "exam_id", examID)

	resp, err := h.attemptService.StartOrResumeAttempt(c.Request.Context(), &models.StartAttemptRequest{
		ExamID:   examID,
		Password: body.Password,
	}, user.ID, c.ClientIP())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	status := http.StatusCreated
	if resp.Resumed {
		status = http.StatusOK
	}
	c.JSON(status, resp)
}

// SubmitAttempt submits and grades an attempt
// @Summary Submit exam attempt
// @Description Scores the answers, completes the attempt and stores the result in one transaction
// @Tags attempts
// @Accept json
// @Produce json
// @Param id path uint true "Attempt ID"
// @Param body body models.SubmitAttemptRequest true "Answers"
// @Success 200 {object} services.SubmitAttemptResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /attempts/{id}/submit [post]
func (h *AttemptHandler) SubmitAttempt(c *gin.Context) {
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}
	user := h.currentUser(c)
	if user == nil {
		return
	}

	var req models.SubmitAttemptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request payload", err)
		return
	}

	h.LogRequest(c, "Submitting exam attempt", "attempt_id", attemptID, "answers", len(req.Answers))

	resp, err := h.attemptService.SubmitAttempt(c.Request.Context(), attemptID, user.ID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetAttempt retrieves an attempt by ID
// @Summary Get attempt
// @Description Students see their own attempts; graded answers appear once the result is released
// @Tags attempts
// @Produce json
// @Param id path uint true "Attempt ID"
// @Success 200 {object} services.AttemptResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /attempts/{id} [get]
func (h *AttemptHandler) GetAttempt(c *gin.Context) {
	attemptID := h.parseIDParam(c, "id")
	if attemptID == 0 {
		return
	}
	user := h.currentUser(c)
	if user == nil {
		return
	}

	attempt, err := h.attemptService.GetAttempt(c.Request.Context(), attemptID, user)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempt)
}

// ListMyAttempts lists the caller's attempts on an exam
// @Summary List my attempts
// @Tags attempts
// @Produce json
// @Param id path uint true "Exam ID"
// @Success 200 {array} models.ExamAttempt
// @Failure 404 {object} models.ErrorResponse
// @Router /exams/{id}/attempts/me [get]
func (h *AttemptHandler) ListMyAttempts(c *gin.Context) {
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}
	user := h.currentUser(c)
	if user == nil {
		return
	}

	attempts, err := h.attemptService.ListStudentAttempts(c.Request.Context(), examID, user.ID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, attempts)
}
