package services

import (
	"context"
	"io"
	"time"

	"github.com/SAP-F-2025/cbt-service/internal/models"
)

// ===== ATTEMPT RELATED DTOs =====

// StartAttemptResponse is what a student receives when an attempt is served.
// The question and option order is drawn fresh on every serve.
type StartAttemptResponse struct {
	AttemptID uint       `json:"attempt_id"`
	Resumed   bool       `json:"resumed"`
	StartedAt time.Time  `json:"started_at"`
	Exam      ServedExam `json:"exam"`
}

type ServedExam struct {
	ID        uint             `json:"id"`
	Title     string           `json:"title"`
	Subject   string           `json:"subject"`
	Duration  int              `json:"duration"`
	Questions []ServedQuestion `json:"questions"`
}

// ServedQuestion never carries the correct or expected answer.
type ServedQuestion struct {
	ID       uint                `json:"id"`
	Type     models.QuestionType `json:"type"`
	Text     string              `json:"text"`
	Image    *string             `json:"image,omitempty"`
	Options  []string            `json:"options,omitempty"`
	MaxMarks float64             `json:"max_marks"`
	Order    int                 `json:"order"`
}

type SubmitAttemptResponse struct {
	AttemptID         uint    `json:"attempt_id"`
	TotalScore        float64 `json:"total_score"`
	MaxScore          float64 `json:"max_score"`
	Percentage        float64 `json:"percentage"`
	Grade             string  `json:"grade"`
	Position          *int    `json:"position,omitempty"`
	ShowResults       bool    `json:"show_results"`
	QuestionsAnswered int     `json:"questions_answered"`
	CorrectAnswers    int     `json:"correct_answers"`
}

type AttemptResponse struct {
	*models.ExamAttempt
	Result *models.Result `json:"result,omitempty"`
}

// ===== STUDENT DTOs =====

type StudentStatsResponse struct {
	CompletedAttempts int     `json:"completed_attempts"`
	ReleasedResults   int     `json:"released_results"`
	AverageScore      float64 `json:"average_score"`
	HighestScore      float64 `json:"highest_score"`
	LowestScore       float64 `json:"lowest_score"`

	RecentResults []*models.Result `json:"recent_results"`
}

// ===== SERVICE INTERFACES =====

type AttemptService interface {
	StartOrResumeAttempt(ctx context.Context, req *models.StartAttemptRequest, userID, ipAddress string) (*StartAttemptResponse, error)
	SubmitAttempt(ctx context.Context, attemptID uint, userID string, req *models.SubmitAttemptRequest) (*SubmitAttemptResponse, error)
	GetAttempt(ctx context.Context, attemptID uint, requester *models.User) (*AttemptResponse, error)
	ListStudentAttempts(ctx context.Context, examID uint, userID string) ([]*models.ExamAttempt, error)
}

type ExamService interface {
	CreateExam(ctx context.Context, req *models.ExamCreateRequest, requester *models.User) (*models.Exam, error)
	UpdateExam(ctx context.Context, id uint, req *models.ExamUpdateRequest, requester *models.User) (*models.Exam, error)
	DeleteExam(ctx context.Context, id uint, requester *models.User) error
	GetExam(ctx context.Context, id uint, requester *models.User) (*models.Exam, error)
	ListExams(ctx context.Context, params *models.ListExamsParams, requester *models.User) (*models.PaginatedResponse, error)

	AddQuestion(ctx context.Context, examID uint, req *models.QuestionCreateRequest, requester *models.User) (*models.Question, error)
	UpdateQuestion(ctx context.Context, examID, questionID uint, req *models.QuestionUpdateRequest, requester *models.User) (*models.Question, error)
	DeleteQuestion(ctx context.Context, examID, questionID uint, requester *models.User) error
	ListQuestions(ctx context.Context, examID uint, requester *models.User) ([]models.Question, error)
	ImportQuestions(ctx context.Context, examID uint, file io.Reader, requester *models.User) (*models.ImportResult, error)
}

type ResultService interface {
	GetAttemptResult(ctx context.Context, attemptID uint, requester *models.User) (*models.Result, error)
	ListExamResults(ctx context.Context, examID uint, params *models.ListResultsParams, requester *models.User) (*models.PaginatedResponse, error)
	ExportExamResults(ctx context.Context, examID uint, requester *models.User) ([]byte, error)
	ReleaseExamResults(ctx context.Context, examID uint, requester *models.User) (int, error)
	GetPosition(ctx context.Context, result *models.Result) (int, error)
}

type StudentService interface {
	CreateProfile(ctx context.Context, req *models.StudentCreateRequest, requester *models.User) (*models.Student, error)
	GetProfile(ctx context.Context, userID string) (*models.Student, error)
	GetStats(ctx context.Context, userID string) (*StudentStatsResponse, error)
	ImportStudents(ctx context.Context, file io.Reader, requester *models.User) (*models.ImportResult, error)
}

// ServiceManager owns the service instances and their lifecycle
type ServiceManager interface {
	Exam() ExamService
	Attempt() AttemptService
	Result() ResultService
	Student() StudentService

	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
