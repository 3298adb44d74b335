package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/cbt-service/internal/events"
	"github.com/SAP-F-2025/cbt-service/internal/models"
	"github.com/SAP-F-2025/cbt-service/internal/repositories"
	"github.com/SAP-F-2025/cbt-service/internal/validator"
)

type resultService struct {
	repo           repositories.Repository
	logger         *slog.Logger
	validator      *validator.Validator
	eventPublisher events.EventPublisher
	now            func() time.Time
}

func NewResultService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator, eventPublisher events.EventPublisher) ResultService {
	return &resultService{
		repo:           repo,
		logger:         logger,
		validator:      validator,
		eventPublisher: eventPublisher,
		now:            time.Now,
	}
}

// GetAttemptResult shows a student their own result once released. Staff
// see every result.
func (s *resultService) GetAttemptResult(ctx context.Context, attemptID uint, requester *models.User) (*models.Result, error) {
	result, err := s.repo.Result().GetByAttempt(ctx, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrResultNotFound
		}
		return nil, fmt.Errorf("failed to get result: %w", err)
	}

	if !requester.IsStaff() {
		student, err := resolveStudent(ctx, s.repo, requester.ID)
		if err != nil && !errors.Is(err, ErrStudentProfileNotFound) {
			return nil, err
		}
		if student == nil || student.ID != result.StudentID {
			return nil, NewPermissionError(requester.ID, attemptID, "result", "read", "not owned by student")
		}
		if !result.IsReleased() {
			return nil, ErrResultNotReleased
		}
	}

	if result.IsReleased() {
		position, err := s.GetPosition(ctx, result)
		if err != nil {
			return nil, fmt.Errorf("failed to compute position: %w", err)
		}
		result.Position = &position
	}
	return result, nil
}

func (s *resultService) ListExamResults(ctx context.Context, examID uint, params *models.ListResultsParams, requester *models.User) (*models.PaginatedResponse, error) {
	if err := requireStaff(requester, examID, "exam", "list_results"); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(params); err != nil {
		return nil, err
	}
	if _, err := s.getExam(ctx, examID); err != nil {
		return nil, err
	}

	filters := repositories.ResultFilters{
		Limit:     params.Size,
		Offset:    pageOffset(params.Page, params.Size),
		SortBy:    params.SortBy,
		SortOrder: params.SortDir,
	}
	if params.Status != "" {
		status := params.Status
		filters.Status = &status
	}

	results, total, err := s.repo.Result().ListByExam(ctx, examID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}

	if err := s.assignPositions(ctx, results); err != nil {
		return nil, err
	}

	return models.NewPaginatedResponse(results, len(results), total, params.Page, params.Size), nil
}

// ExportExamResults renders every result of the exam as an xlsx workbook,
// best percentage first.
func (s *resultService) ExportExamResults(ctx context.Context, examID uint, requester *models.User) ([]byte, error) {
	s.logger.Info("Exporting exam results", "exam_id", examID, "user_id", requester.ID)

	if err := requireStaff(requester, examID, "exam", "export_results"); err != nil {
		return nil, err
	}
	exam, err := s.getExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	results, _, err := s.repo.Result().ListByExam(ctx, examID, repositories.ResultFilters{SortBy: "percentage", SortOrder: "desc"})
	if err != nil {
		return nil, fmt.Errorf("failed to list results: %w", err)
	}
	if err := s.assignPositions(ctx, results); err != nil {
		return nil, err
	}

	header := []interface{}{"Student", "Admission No", "Class", "Score", "Max", "Percentage", "Grade", "Position", "Status"}
	rows := make([][]interface{}, 0, len(results))
	for _, r := range results {
		var name, admission, class string
		if r.Student != nil {
			name, admission, class = r.Student.FullName, r.Student.AdmissionNumber, r.Student.ClassName
		}
		var position interface{} = ""
		if r.Position != nil {
			position = *r.Position
		}
		rows = append(rows, []interface{}{
			name, admission, class,
			r.TotalScore, r.MaxScore, r.Percentage, r.Grade,
			position, string(r.Status),
		})
	}

	data, err := writeSheet("Results", header, rows)
	if err != nil {
		return nil, fmt.Errorf("failed to build results workbook: %w", err)
	}

	s.logger.Info("Exam results exported", "exam_id", exam.ID, "rows", len(rows))
	return data, nil
}

// ReleaseExamResults publishes every pending result of the exam.
func (s *resultService) ReleaseExamResults(ctx context.Context, examID uint, requester *models.User) (int, error) {
	s.logger.Info("Releasing exam results", "exam_id", examID, "user_id", requester.ID)

	if err := requireStaff(requester, examID, "exam", "release_results"); err != nil {
		return 0, err
	}
	exam, err := s.getExam(ctx, examID)
	if err != nil {
		return 0, err
	}
	if requester.Role != models.RoleAdmin && exam.CreatedBy != requester.ID {
		return 0, NewPermissionError(requester.ID, examID, "exam", "release_results", "not owner")
	}

	released, err := s.repo.Result().ReleasePending(ctx, examID, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to release results: %w", err)
	}

	for _, r := range released {
		if position, err := s.GetPosition(ctx, r); err == nil {
			r.Position = &position
		}
		publishEvent(ctx, s.logger, s.eventPublisher, resultReleasedEvent(r))
	}

	s.logger.Info("Exam results released", "exam_id", examID, "released", len(released))
	return len(released), nil
}

// GetPosition is one plus the number of other released results of the exam
// with a strictly higher percentage.
func (s *resultService) GetPosition(ctx context.Context, result *models.Result) (int, error) {
	return positionOf(ctx, s.repo, result)
}

func (s *resultService) assignPositions(ctx context.Context, results []*models.Result) error {
	for _, r := range results {
		if !r.IsReleased() {
			continue
		}
		position, err := s.GetPosition(ctx, r)
		if err != nil {
			return fmt.Errorf("failed to compute position: %w", err)
		}
		r.Position = &position
	}
	return nil
}

func (s *resultService) getExam(ctx context.Context, examID uint) (*models.Exam, error) {
	exam, err := s.repo.Exam().GetByID(ctx, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}
	return exam, nil
}
