package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SAP-F-2025/cbt-service/internal/models"
	"github.com/SAP-F-2025/cbt-service/internal/services"
	"github.com/SAP-F-2025/cbt-service/internal/utils"
)

// maxUploadSize bounds spreadsheet uploads.
const maxUploadSize = 10 << 20

type ExamHandler struct {
	BaseHandler
	examService services.ExamService
}

func NewExamHandler(examService services.ExamService, logger utils.Logger) *ExamHandler {
	return &ExamHandler{
		BaseHandler: NewBaseHandler(logger),
		examService: examService,
	}
}

// CreateExam creates a new exam
// @Summary Create exam
// @Tags exams
// @Accept json
// @Produce json
// @Param exam body models.ExamCreateRequest true "Exam data"
// @Success 201 {object} models.Exam
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /exams [post]
func (h *ExamHandler) CreateExam(c *gin.Context) {
	user := h.currentUser(c)
	if user == nil {
		return
	}

	var req models.ExamCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request payload", err)
		return
	}

	h.LogRequest(c, "Creating exam", "title", req.Title)

	exam, err := h.examService.CreateExam(c.Request.Context(), &req, user)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, exam)
}

// GetExam retrieves an exam by ID
// @Summary Get exam
// @Tags exams
// @Produce json
// @Param id path uint true "Exam ID"
// @Success 200 {object} models.Exam
// @Failure 404 {object} models.ErrorResponse
// @Router /exams/{id} [get]
func (h *ExamHandler) GetExam(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	user := h.currentUser(c)
	if user == nil {
		return
	}

	exam, err := h.examService.GetExam(c.Request.Context(), id, user)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, exam)
}

// UpdateExam updates an exam
// @Summary Update exam
// @Tags exams
// @Accept json
// @Produce json
// @Param id path uint true "Exam ID"
// @Param exam body models.ExamUpdateRequest true "Fields to change"
// @Success 200 {object} models.Exam
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /exams/{id} [put]
func (h *ExamHandler) UpdateExam(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	user := h.currentUser(c)
	if user == nil {
		return
	}

	var req models.ExamUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request payload", err)
		return
	}

	exam, err := h.examService.UpdateExam(c.Request.Context(), id, &req, user)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, exam)
}

// DeleteExam deletes an exam that has no attempts
// @Summary Delete exam
// @Tags exams
// @Param id path uint true "Exam ID"
// @Success 204
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Router /exams/{id} [delete]
func (h *ExamHandler) DeleteExam(c *gin.Context) {
	id := h.parseIDParam(c, "id")
	if id == 0 {
		return
	}
	user := h.currentUser(c)
	if user == nil {
		return
	}

	if err := h.examService.DeleteExam(c.Request.Context(), id, user); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ListExams lists exams with filters
// @Summary List exams
// @Tags exams
// @Produce json
// @Param page query int false "Page number, zero based" default(0)
// @Param size query int false "Page size" default(20)
// @Param subject query string false "Subject"
// @Param q query string false "Title search"
// @Param created_by query string false "Creator user ID"
// @Param active query bool false "Only exams open right now"
// @Param sort_by query string false "title, subject, start_date, end_date or created_at"
// @Param sort_dir query string false "asc or desc"
// @Success 200 {object} models.PaginatedResponse
// @Router /exams [get]
func (h *ExamHandler) ListExams(c *gin.Context) {
	user := h.currentUser(c)
	if user == nil {
		return
	}

	params := &models.ListExamsParams{
		Page:    h.parseIntQuery(c, "page", 0),
		Size:    h.parseIntQuery(c, "size", 20),
		Subject: strings.TrimSpace(c.Query("subject")),
		Search:  strings.TrimSpace(c.Query("q")),
		SortBy:  c.Query("sort_by"),
		SortDir: strings.ToLower(c.Query("sort_dir")),
	}
	if createdBy := strings.TrimSpace(c.Query("created_by")); createdBy != "" {
		params.CreatedBy = &createdBy
	}
	if c.Query("active") == "true" {
		now := time.Now()
		params.ActiveAt = &now
	}

	page, err := h.examService.ListExams(c.Request.Context(), params, user)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

// ===== QUESTIONS =====

// ListQuestions lists an exam's questions with their answer keys
// @Summary List exam questions
// @Tags questions
// @Produce json
// @Param id path uint true "Exam ID"
// @Success 200 {array} models.Question
// @Failure 403 {object} models.ErrorResponse
// @Router /exams/{id}/questions [get]
func (h *ExamHandler) ListQuestions(c *gin.Context) {
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}
	user := h.currentUser(c)
	if user == nil {
		return
	}

	questions, err := h.examService.ListQuestions(c.Request.Context(), examID, user)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, questions)
}

// AddQuestion adds a question to an exam
// @Summary Add question
// @Tags questions
// @Accept json
// @Produce json
// @Param id path uint true "Exam ID"
// @Param question body models.QuestionCreateRequest true "Question"
// @Success 201 {object} models.Question
// @Failure 400 {object} models.ErrorResponse
// @Router /exams/{id}/questions [post]
func (h *ExamHandler) AddQuestion(c *gin.Context) {
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}
	user := h.currentUser(c)
	if user == nil {
		return
	}

	var req models.QuestionCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request payload", err)
		return
	}

	question, err := h.examService.AddQuestion(c.Request.Context(), examID, &req, user)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, question)
}

// UpdateQuestion updates a question
// @Summary Update question
// @Tags questions
// @Accept json
// @Produce json
// @Param id path uint true "Exam ID"
// @Param question_id path uint true "Question ID"
// @Param question body models.QuestionUpdateRequest true "Fields to change"
// @Success 200 {object} models.Question
// @Router /exams/{id}/questions/{question_id} [put]
func (h *ExamHandler) UpdateQuestion(c *gin.Context) {
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}
	questionID := h.parseIDParam(c, "question_id")
	if questionID == 0 {
		return
	}
	user := h.currentUser(c)
	if user == nil {
		return
	}

	var req models.QuestionUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request payload", err)
		return
	}

	question, err := h.examService.UpdateQuestion(c.Request.Context(), examID, questionID, &req, user)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, question)
}

// DeleteQuestion removes a question
// @Summary Delete question
// @Tags questions
// @Param id path uint true "Exam ID"
// @Param question_id path uint true "Question ID"
// @Success 204
// @Router /exams/{id}/questions/{question_id} [delete]
func (h *ExamHandler) DeleteQuestion(c *gin.Context) {
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}
	questionID := h.parseIDParam(c, "question_id")
	if questionID == 0 {
		return
	}
	user := h.currentUser(c)
	if user == nil {
		return
	}

	if err := h.examService.DeleteQuestion(c.Request.Context(), examID, questionID, user); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ImportQuestions appends questions from an uploaded xlsx sheet
// @Summary Import questions
// @Tags questions
// @Accept multipart/form-data
// @Produce json
// @Param id path uint true "Exam ID"
// @Param file formData file true "xlsx workbook"
// @Success 200 {object} models.ImportResult
// @Failure 412 {object} models.ErrorResponse
// @Router /exams/{id}/questions/import [post]
func (h *ExamHandler) ImportQuestions(c *gin.Context) {
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}
	user := h.currentUser(c)
	if user == nil {
		return
	}

	file, ok := openUpload(c, &h.BaseHandler)
	if !ok {
		return
	}
	defer file.Close()

	h.LogRequest(c, "Importing questions", "exam_id", examID)

	result, err := h.examService.ImportQuestions(c.Request.Context(), examID, file, user)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
