package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/SAP-F-2025/cbt-service/internal/grading"
	"github.com/SAP-F-2025/cbt-service/internal/models"
	"github.com/SAP-F-2025/cbt-service/internal/repositories"
	"github.com/SAP-F-2025/cbt-service/internal/validator"
)

const recentResultsLimit = 5

type studentService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
}

func NewStudentService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator) StudentService {
	return &studentService{
		repo:      repo,
		logger:    logger,
		validator: validator,
	}
}

func (s *studentService) CreateProfile(ctx context.Context, req *models.StudentCreateRequest, requester *models.User) (*models.Student, error) {
	s.logger.Info("Creating student profile", "user_id", req.UserID, "admission_number", req.AdmissionNumber)

	if err := requireStaff(requester, 0, "student", "create"); err != nil {
		return nil, err
	}
	if errs := s.validator.GetBusinessValidator().ValidateStudent(req); len(errs) > 0 {
		return nil, errs
	}

	student, err := s.createStudent(ctx, req)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Student profile created", "student_id", student.ID)
	return student, nil
}

func (s *studentService) GetProfile(ctx context.Context, userID string) (*models.Student, error) {
	return resolveStudent(ctx, s.repo, userID)
}

func (s *studentService) GetStats(ctx context.Context, userID string) (*StudentStatsResponse, error) {
	s.logger.Info("Getting student stats", "user_id", userID)

	student, err := resolveStudent(ctx, s.repo, userID)
	if err != nil {
		return nil, err
	}

	results, err := s.repo.Result().ListByStudent(ctx, student.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get student results: %w", err)
	}

	stats := &StudentStatsResponse{CompletedAttempts: len(results)}
	var sum float64
	for _, r := range results {
		// Pending results stay hidden from the student, including in aggregates.
		if !r.IsReleased() {
			continue
		}
		if stats.ReleasedResults == 0 || r.Percentage > stats.HighestScore {
			stats.HighestScore = r.Percentage
		}
		if stats.ReleasedResults == 0 || r.Percentage < stats.LowestScore {
			stats.LowestScore = r.Percentage
		}
		sum += r.Percentage
		stats.ReleasedResults++
		if len(stats.RecentResults) < recentResultsLimit {
			stats.RecentResults = append(stats.RecentResults, r)
		}
	}
	if stats.ReleasedResults > 0 {
		stats.AverageScore = grading.Round2(sum / float64(stats.ReleasedResults))
	}

	return stats, nil
}

// ImportStudents creates profiles from an xlsx sheet with the columns
// user_id, admission_number, full_name and class_name. Each row stands alone:
// a bad or duplicate row is reported and the rest still import.
func (s *studentService) ImportStudents(ctx context.Context, file io.Reader, requester *models.User) (*models.ImportResult, error) {
	s.logger.Info("Importing students", "user_id", requester.ID)

	if err := requireStaff(requester, 0, "student", "import"); err != nil {
		return nil, err
	}

	table, err := readSheetTable(file, "user_id", "admission_number", "full_name")
	if err != nil {
		return nil, err
	}

	result := &models.ImportResult{}
	seen := make(map[string]bool)
	for i, row := range table.rows {
		if isBlankRow(row) {
			continue
		}
		result.TotalRows++
		rowNum := sheetRowNumber(i)

		req := &models.StudentCreateRequest{
			UserID:          table.cell(row, "user_id"),
			AdmissionNumber: table.cell(row, "admission_number"),
			FullName:        table.cell(row, "full_name"),
			ClassName:       table.cell(row, "class_name"),
		}

		if errs := s.validator.GetBusinessValidator().ValidateStudent(req); len(errs) > 0 {
			for _, e := range errs {
				result.Errors = append(result.Errors, models.ImportRowError{Row: rowNum, Field: e.Field, Message: e.Message})
			}
			result.Skipped++
			continue
		}

		key := strings.ToLower(req.AdmissionNumber)
		if seen[key] {
			result.Errors = append(result.Errors, models.ImportRowError{Row: rowNum, Field: "admission_number", Message: "appears more than once in the sheet"})
			result.Skipped++
			continue
		}
		seen[key] = true

		if _, err := s.createStudent(ctx, req); err != nil {
			if KindOf(err) == KindInternal {
				return nil, err
			}
			result.Errors = append(result.Errors, models.ImportRowError{Row: rowNum, Message: err.Error()})
			result.Skipped++
			continue
		}
		result.Created++
	}

	s.logger.Info("Students imported",
		"total", result.TotalRows,
		"created", result.Created,
		"skipped", result.Skipped)
	return result, nil
}

// createStudent checks the user is known to the identity provider and the
// admission number is free, then stores the profile.
func (s *studentService) createStudent(ctx context.Context, req *models.StudentCreateRequest) (*models.Student, error) {
	exists, err := s.repo.User().ExistsByID(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if !exists {
		return nil, NewBusinessRuleError("UNKNOWN_USER", fmt.Sprintf("user %s does not exist", req.UserID), nil)
	}

	taken, err := s.repo.Student().ExistsByAdmissionNumber(ctx, req.AdmissionNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to check admission number: %w", err)
	}
	if taken {
		return nil, ErrStudentAlreadyExists
	}

	student := &models.Student{
		UserID:          req.UserID,
		AdmissionNumber: req.AdmissionNumber,
		FullName:        strings.TrimSpace(req.FullName),
		ClassName:       req.ClassName,
	}
	if err := s.repo.Student().Create(ctx, student); err != nil {
		if repositories.IsDuplicateError(err) {
			return nil, ErrStudentAlreadyExists
		}
		return nil, fmt.Errorf("failed to create student: %w", err)
	}
	return student, nil
}
