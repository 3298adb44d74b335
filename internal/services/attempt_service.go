package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/SAP-F-2025/cbt-service/internal/events"
	"github.com/SAP-F-2025/cbt-service/internal/grading"
	"github.com/SAP-F-2025/cbt-service/internal/metrics"
	"github.com/SAP-F-2025/cbt-service/internal/models"
	"github.com/SAP-F-2025/cbt-service/internal/repositories"
	"github.com/SAP-F-2025/cbt-service/internal/validator"
)

type attemptService struct {
	repo           repositories.Repository
	logger         *slog.Logger
	validator      *validator.Validator
	eventPublisher events.EventPublisher
	metrics        *metrics.Metrics

	scorer   *grading.Scorer
	shuffler *grading.Shuffler
	now      func() time.Time
}

type AttemptOption func(*attemptService)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) AttemptOption {
	return func(s *attemptService) { s.now = now }
}

// WithShuffler fixes the random source used to order questions and options.
func WithShuffler(shuffler *grading.Shuffler) AttemptOption {
	return func(s *attemptService) { s.shuffler = shuffler }
}

func WithScorer(scorer *grading.Scorer) AttemptOption {
	return func(s *attemptService) { s.scorer = scorer }
}

func WithMetrics(m *metrics.Metrics) AttemptOption {
	return func(s *attemptService) { s.metrics = m }
}

func NewAttemptService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator, eventPublisher events.EventPublisher, opts ...AttemptOption) AttemptService {
	s := &attemptService{
		repo:           repo,
		logger:         logger,
		validator:      validator,
		eventPublisher: eventPublisher,
		scorer:         grading.NewScorer(nil),
		shuffler:       grading.NewShuffler(nil),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ===== CORE ATTEMPT OPERATIONS =====

func (s *attemptService) StartOrResumeAttempt(ctx context.Context, req *models.StartAttemptRequest, userID, ipAddress string) (*StartAttemptResponse, error) {
	s.logger.Info("Starting exam attempt",
		"exam_id", req.ExamID,
		"user_id", userID)

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	exam, err := s.repo.Exam().GetByID(ctx, req.ExamID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	student, err := resolveStudent(ctx, s.repo, userID)
	if err != nil {
		return nil, err
	}

	if err := s.checkStartPreconditions(ctx, exam, student, req.Password); err != nil {
		s.metrics.AttemptRejected(CodeOf(err))
		s.logger.Info("Attempt start refused",
			"exam_id", exam.ID,
			"student_id", student.ID,
			"reason", CodeOf(err))
		return nil, err
	}

	attempt, resumed, err := s.openOrCreateAttempt(ctx, exam, student, ipAddress)
	if err != nil {
		return nil, err
	}

	questions, err := s.repo.Question().GetByExam(ctx, exam.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load questions: %w", err)
	}

	response := &StartAttemptResponse{
		AttemptID: attempt.ID,
		Resumed:   resumed,
		StartedAt: attempt.StartedAt,
		Exam:      s.serveExam(exam, questions),
	}

	s.metrics.AttemptStarted(resumed)
	publishEvent(ctx, s.logger, s.eventPublisher, events.NewEvent(events.AttemptStarted, examEventKey(exam.ID), events.AttemptStartedEvent{
		AttemptID: attempt.ID,
		ExamID:    exam.ID,
		StudentID: student.ID,
		Resumed:   resumed,
		StartedAt: attempt.StartedAt,
	}))

	s.logger.Info("Exam attempt served",
		"attempt_id", attempt.ID,
		"exam_id", exam.ID,
		"student_id", student.ID,
		"resumed", resumed)

	return response, nil
}

func (s *attemptService) SubmitAttempt(ctx context.Context, attemptID uint, userID string, req *models.SubmitAttemptRequest) (*SubmitAttemptResponse, error) {
	s.logger.Info("Submitting exam attempt",
		"attempt_id", attemptID,
		"user_id", userID,
		"answers", len(req.Answers))

	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	attempt, err := s.repo.Attempt().GetByID(ctx, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	student, err := resolveStudent(ctx, s.repo, userID)
	if err != nil && !errors.Is(err, ErrStudentProfileNotFound) {
		return nil, err
	}
	if student == nil || attempt.StudentID != student.ID {
		return nil, NewPermissionError(userID, attemptID, "attempt", "submit", "not owned by student")
	}

	if attempt.IsCompleted {
		return nil, ErrAttemptAlreadySubmitted
	}

	exam, err := s.repo.Exam().GetByID(ctx, attempt.ExamID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	questions, err := s.repo.Question().GetByExam(ctx, exam.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load questions: %w", err)
	}

	summary := s.scorer.ScoreSubmission(questions, toAnswerInputs(req.Answers))

	submittedAt := s.now()
	timeSpent := int(submittedAt.Sub(attempt.StartedAt) / time.Second)
	if timeSpent < 0 {
		timeSpent = 0
	}

	result := buildResult(attempt, exam, summary, submittedAt)

	err = s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		completed, err := tx.Attempt().MarkCompleted(ctx, attempt.ID, submittedAt, timeSpent)
		if err != nil {
			return err
		}
		if !completed {
			return ErrAttemptAlreadySubmitted
		}

		if err := tx.Answer().CreateBatch(ctx, buildAnswers(attempt.ID, summary, submittedAt)); err != nil {
			return fmt.Errorf("failed to save answers: %w", err)
		}

		if err := tx.Result().Create(ctx, result); err != nil {
			return fmt.Errorf("failed to save result: %w", err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrAttemptAlreadySubmitted) {
			return nil, ErrAttemptAlreadySubmitted
		}
		return nil, fmt.Errorf("failed to submit attempt: %w", err)
	}

	response := &SubmitAttemptResponse{
		AttemptID:         attempt.ID,
		TotalScore:        result.TotalScore,
		MaxScore:          result.MaxScore,
		Percentage:        result.Percentage,
		Grade:             result.Grade,
		ShowResults:       exam.ShowResultsImmediately,
		QuestionsAnswered: result.QuestionsAnswered,
		CorrectAnswers:    result.CorrectAnswers,
	}

	if result.IsReleased() {
		position, err := positionOf(ctx, s.repo, result)
		if err != nil {
			// The submission is committed; a failed rank lookup only drops the position.
			s.logger.Error("Failed to compute position", "result_id", result.ID, "error", err)
		} else {
			response.Position = &position
			result.Position = &position
		}
	}

	s.metrics.AttemptSubmitted(string(result.Status), result.Percentage)
	publishEvent(ctx, s.logger, s.eventPublisher, events.NewEvent(events.AttemptSubmitted, examEventKey(exam.ID), events.AttemptSubmittedEvent{
		AttemptID:  attempt.ID,
		ExamID:     exam.ID,
		StudentID:  attempt.StudentID,
		TotalScore: result.TotalScore,
		MaxScore:   result.MaxScore,
		Percentage: result.Percentage,
		Grade:      result.Grade,
		Status:     string(result.Status),
		TimeSpent:  timeSpent,
	}))
	if result.IsReleased() {
		publishEvent(ctx, s.logger, s.eventPublisher, resultReleasedEvent(result))
	}

	s.logger.Info("Exam attempt submitted",
		"attempt_id", attempt.ID,
		"exam_id", exam.ID,
		"percentage", result.Percentage,
		"grade", result.Grade,
		"status", result.Status)

	return response, nil
}

// ===== ATTEMPT QUERIES =====

func (s *attemptService) GetAttempt(ctx context.Context, attemptID uint, requester *models.User) (*AttemptResponse, error) {
	attempt, err := s.repo.Attempt().GetByID(ctx, attemptID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}

	if !requester.IsStaff() {
		student, err := resolveStudent(ctx, s.repo, requester.ID)
		if err != nil && !errors.Is(err, ErrStudentProfileNotFound) {
			return nil, err
		}
		if student == nil || student.ID != attempt.StudentID {
			return nil, NewPermissionError(requester.ID, attemptID, "attempt", "read", "not owned by student")
		}
	}

	response := &AttemptResponse{ExamAttempt: attempt}
	if !attempt.IsCompleted {
		return response, nil
	}

	result, err := s.repo.Result().GetByAttempt(ctx, attempt.ID)
	if err != nil && !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to get result: %w", err)
	}

	// Graded answers are only visible once the result is.
	if result != nil && (requester.IsStaff() || result.IsReleased()) {
		response.Result = result
		answers, err := s.repo.Answer().GetByAttempt(ctx, attempt.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to get answers: %w", err)
		}
		response.Answers = derefAnswers(answers)
	}

	return response, nil
}

func (s *attemptService) ListStudentAttempts(ctx context.Context, examID uint, userID string) ([]*models.ExamAttempt, error) {
	student, err := resolveStudent(ctx, s.repo, userID)
	if err != nil {
		return nil, err
	}

	attempts, err := s.repo.Attempt().ListByStudent(ctx, examID, student.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	return attempts, nil
}
