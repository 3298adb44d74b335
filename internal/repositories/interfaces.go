package repositories

import (
	"context"
	"time"

	"github.com/SAP-F-2025/cbt-service/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

type ExamFilters struct {
	Subject   string     `json:"subject"`
	Search    string     `json:"search"`
	CreatedBy *string    `json:"created_by"`
	ActiveAt  *time.Time `json:"active_at"`
	Limit     int        `json:"limit"`
	Offset    int        `json:"offset"`
	SortBy    string     `json:"sort_by"`    // "created_at", "title", "start_date"
	SortOrder string     `json:"sort_order"` // "asc", "desc"
}

type ResultFilters struct {
	Status    *models.ResultStatus `json:"status"`
	Limit     int                  `json:"limit"`
	Offset    int                  `json:"offset"`
	SortBy    string               `json:"sort_by"` // "percentage", "created_at"
	SortOrder string               `json:"sort_order"`
}

// ===== REPOSITORIES =====

type ExamRepository interface {
	Create(ctx context.Context, exam *models.Exam) error
	GetByID(ctx context.Context, id uint) (*models.Exam, error)
	Update(ctx context.Context, exam *models.Exam) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, filters ExamFilters) ([]*models.Exam, int64, error)
}

type QuestionRepository interface {
	Create(ctx context.Context, question *models.Question) error
	CreateBatch(ctx context.Context, questions []*models.Question) error
	GetByID(ctx context.Context, id uint) (*models.Question, error)
	Update(ctx context.Context, question *models.Question) error
	Delete(ctx context.Context, id uint) error

	// GetByExam returns the exam's questions ordered by Order then ID.
	GetByExam(ctx context.Context, examID uint) ([]models.Question, error)
	NextOrder(ctx context.Context, examID uint) (int, error)
}

type AttemptRepository interface {
	// Create returns ErrDuplicate when the student already holds an open
	// attempt for the exam.
	Create(ctx context.Context, attempt *models.ExamAttempt) error
	GetByID(ctx context.Context, id uint) (*models.ExamAttempt, error)
	GetOpenAttempt(ctx context.Context, examID, studentID uint) (*models.ExamAttempt, error)
	CountCompleted(ctx context.Context, examID, studentID uint) (int64, error)
	CountByExam(ctx context.Context, examID uint) (int64, error)
	ListByStudent(ctx context.Context, examID, studentID uint) ([]*models.ExamAttempt, error)

	// MarkCompleted flips is_completed only if it is still false and reports
	// whether this call performed the transition.
	MarkCompleted(ctx context.Context, id uint, submittedAt time.Time, timeSpent int) (bool, error)
}

type AnswerRepository interface {
	CreateBatch(ctx context.Context, answers []*models.Answer) error
	GetByAttempt(ctx context.Context, attemptID uint) ([]*models.Answer, error)
}

type ResultRepository interface {
	Create(ctx context.Context, result *models.Result) error
	GetByID(ctx context.Context, id uint) (*models.Result, error)
	GetByAttempt(ctx context.Context, attemptID uint) (*models.Result, error)
	ListByExam(ctx context.Context, examID uint, filters ResultFilters) ([]*models.Result, int64, error)

	// CountReleasedAbove counts RELEASED results of the exam, other than
	// excludeID, whose percentage is strictly greater than percentage.
	CountReleasedAbove(ctx context.Context, examID uint, percentage float64, excludeID uint) (int64, error)

	ListByStudent(ctx context.Context, studentID uint) ([]*models.Result, error)

	// ReleasePending flips every PENDING result of the exam to RELEASED and
	// returns the released rows.
	ReleasePending(ctx context.Context, examID uint, releasedAt time.Time) ([]*models.Result, error)
}

type StudentRepository interface {
	Create(ctx context.Context, student *models.Student) error
	GetByID(ctx context.Context, id uint) (*models.Student, error)
	GetByUserID(ctx context.Context, userID string) (*models.Student, error)
	GetByIDs(ctx context.Context, ids []uint) ([]*models.Student, error)
	ExistsByAdmissionNumber(ctx context.Context, admissionNumber string) (bool, error)
}
