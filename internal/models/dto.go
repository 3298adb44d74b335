package models

import (
	"time"
)

type ExamCreateRequest struct {
	Title                  string    `json:"title" validate:"required,exam_title"`
	Subject                string    `json:"subject" validate:"required,min=1,max=100"`
	Description            *string   `json:"description" validate:"omitempty,max=1000"`
	Duration               int       `json:"duration" validate:"required,exam_duration"`
	StartDate              time.Time `json:"start_date" validate:"required"`
	EndDate                time.Time `json:"end_date" validate:"required,gtfield=StartDate"`
	Password               *string   `json:"password" validate:"omitempty,min=1,max=100"`
	MaxAttempts            int       `json:"max_attempts" validate:"required,max_attempts"`
	RandomizeQuestions     bool      `json:"randomize_questions"`
	RandomizeOptions       bool      `json:"randomize_options"`
	ShowResultsImmediately bool      `json:"show_results_immediately"`
}

type ExamUpdateRequest struct {
	Title                  *string    `json:"title" validate:"omitempty,exam_title"`
	Subject                *string    `json:"subject" validate:"omitempty,min=1,max=100"`
	Description            *string    `json:"description" validate:"omitempty,max=1000"`
	Duration               *int       `json:"duration" validate:"omitempty,exam_duration"`
	StartDate              *time.Time `json:"start_date"`
	EndDate                *time.Time `json:"end_date"`
	Password               *string    `json:"password" validate:"omitempty,max=100"` // empty string clears it
	MaxAttempts            *int       `json:"max_attempts" validate:"omitempty,max_attempts"`
	RandomizeQuestions     *bool      `json:"randomize_questions"`
	RandomizeOptions       *bool      `json:"randomize_options"`
	ShowResultsImmediately *bool      `json:"show_results_immediately"`
}

type QuestionCreateRequest struct {
	Type              QuestionType `json:"type" validate:"required,question_type"`
	Text              string       `json:"text" validate:"required"`
	ImageURL          *string      `json:"image" validate:"omitempty,url,max=500"`
	MaxMarks          float64      `json:"max_marks" validate:"required,gt=0,max=1000"`
	Order             *int         `json:"order" validate:"omitempty,min=0"`
	Options           []string     `json:"options" validate:"omitempty,dive,required,max=500"`
	CorrectAnswer     *string      `json:"correct_answer" validate:"omitempty,max=500"`
	ExpectedAnswer    *string      `json:"expected_answer"`
	AccuracyTolerance *int         `json:"accuracy_tolerance" validate:"omitempty,accuracy_tolerance"`
}

type QuestionUpdateRequest struct {
	Text              *string  `json:"text" validate:"omitempty,min=1"`
	ImageURL          *string  `json:"image" validate:"omitempty,max=500"`
	MaxMarks          *float64 `json:"max_marks" validate:"omitempty,gt=0,max=1000"`
	Order             *int     `json:"order" validate:"omitempty,min=0"`
	Options           []string `json:"options" validate:"omitempty,dive,required,max=500"`
	CorrectAnswer     *string  `json:"correct_answer" validate:"omitempty,max=500"`
	ExpectedAnswer    *string  `json:"expected_answer"`
	AccuracyTolerance *int     `json:"accuracy_tolerance" validate:"omitempty,accuracy_tolerance"`
}

type StartAttemptRequest struct {
	ExamID   uint   `json:"exam_id" validate:"required"`
	Password string `json:"password"`
}

type SubmittedAnswer struct {
	QuestionID     uint    `json:"question_id" validate:"required"`
	SelectedOption *string `json:"selected_option"`
	AnswerText     *string `json:"answer_text"`
}

type SubmitAttemptRequest struct {
	Answers []SubmittedAnswer `json:"answers" validate:"dive"`
}

type StudentCreateRequest struct {
	UserID          string `json:"user_id" validate:"required,max=255"`
	AdmissionNumber string `json:"admission_number" validate:"required,max=50"`
	FullName        string `json:"full_name" validate:"required,max=100"`
	ClassName       string `json:"class_name" validate:"omitempty,max=50"`
}

// ===== PAGINATION & FILTERING =====

type ListExamsParams struct {
	Page      int        `json:"page" validate:"min=0"`
	Size      int        `json:"size" validate:"min=1,max=100"`
	Subject   string     `json:"subject"`
	Search    string     `json:"search"`
	CreatedBy *string    `json:"created_by"`
	ActiveAt  *time.Time `json:"active_at"`
	SortBy    string     `json:"sort_by"`
	SortDir   string     `json:"sort_dir" validate:"omitempty,oneof=asc desc"`
}

type ListResultsParams struct {
	Page    int          `json:"page" validate:"min=0"`
	Size    int          `json:"size" validate:"min=1,max=100"`
	Status  ResultStatus `json:"status" validate:"omitempty,oneof=PENDING RELEASED"`
	SortBy  string       `json:"sort_by"`
	SortDir string       `json:"sort_dir" validate:"omitempty,oneof=asc desc"`
}

type PaginatedResponse struct {
	Content          interface{} `json:"content"`
	TotalElements    int64       `json:"total_elements"`
	TotalPages       int         `json:"total_pages"`
	Size             int         `json:"size"`
	Page             int         `json:"page"`
	First            bool        `json:"first"`
	Last             bool        `json:"last"`
	NumberOfElements int         `json:"number_of_elements"`
	Empty            bool        `json:"empty"`
}

func NewPaginatedResponse(content interface{}, count int, total int64, page, size int) *PaginatedResponse {
	totalPages := 0
	if size > 0 {
		totalPages = int((total + int64(size) - 1) / int64(size))
	}
	return &PaginatedResponse{
		Content:          content,
		TotalElements:    total,
		TotalPages:       totalPages,
		Size:             size,
		Page:             page,
		First:            page == 0,
		Last:             totalPages == 0 || page >= totalPages-1,
		NumberOfElements: count,
		Empty:            count == 0,
	}
}

// ===== IMPORT/EXPORT DTOs =====

type ImportRowError struct {
	Row     int    `json:"row"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

type ImportResult struct {
	TotalRows int              `json:"total_rows"`
	Created   int              `json:"created"`
	Skipped   int              `json:"skipped"`
	Errors    []ImportRowError `json:"errors,omitempty"`
}

// ===== VALIDATION RESPONSES =====

type ValidationErrorResponse struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Value   string `json:"value"`
	Code    string `json:"code"`
}

// ===== ERROR RESPONSES =====

type ErrorResponse struct {
	Error            string                    `json:"error"`
	Message          string                    `json:"message"`
	Details          interface{}               `json:"details,omitempty"`
	Timestamp        time.Time                 `json:"timestamp"`
	Path             string                    `json:"path"`
	RequestID        string                    `json:"request_id,omitempty"`
	ValidationErrors []ValidationErrorResponse `json:"validation_errors,omitempty"`
}

type SuccessResponse struct {
	Message   string      `json:"message"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}
