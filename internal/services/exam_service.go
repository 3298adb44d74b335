package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/SAP-F-2025/cbt-service/internal/models"
	"github.com/SAP-F-2025/cbt-service/internal/repositories"
	"github.com/SAP-F-2025/cbt-service/internal/validator"
)

type examService struct {
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
}

func NewExamService(repo repositories.Repository, logger *slog.Logger, validator *validator.Validator) ExamService {
	return &examService{
		repo:      repo,
		logger:    logger,
		validator: validator,
	}
}

// ===== EXAM CRUD =====

func (s *examService) CreateExam(ctx context.Context, req *models.ExamCreateRequest, requester *models.User) (*models.Exam, error) {
	s.logger.Info("Creating exam", "creator_id", requester.ID, "title", req.Title)

	if err := requireStaff(requester, 0, "exam", "create"); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	exam := &models.Exam{
		Title:                  strings.TrimSpace(req.Title),
		Subject:                strings.TrimSpace(req.Subject),
		Description:            req.Description,
		Duration:               req.Duration,
		StartDate:              req.StartDate,
		EndDate:                req.EndDate,
		Password:               normalizePassword(req.Password),
		MaxAttempts:            req.MaxAttempts,
		RandomizeQuestions:     req.RandomizeQuestions,
		RandomizeOptions:       req.RandomizeOptions,
		ShowResultsImmediately: req.ShowResultsImmediately,
		CreatedBy:              requester.ID,
	}

	if err := s.repo.Exam().Create(ctx, exam); err != nil {
		return nil, fmt.Errorf("failed to create exam: %w", err)
	}
	exam.HasPassword = exam.RequiresPassword()

	s.logger.Info("Exam created successfully", "exam_id", exam.ID)
	return exam, nil
}

func (s *examService) UpdateExam(ctx context.Context, id uint, req *models.ExamUpdateRequest, requester *models.User) (*models.Exam, error) {
	s.logger.Info("Updating exam", "exam_id", id, "user_id", requester.ID)

	exam, err := s.getEditableExam(ctx, id, requester, "update")
	if err != nil {
		return nil, err
	}

	if errs := s.validator.GetBusinessValidator().ValidateExamUpdate(req, exam); len(errs) > 0 {
		return nil, errs
	}

	applyExamUpdates(exam, req)

	if err := s.repo.Exam().Update(ctx, exam); err != nil {
		return nil, fmt.Errorf("failed to update exam: %w", err)
	}

	s.logger.Info("Exam updated successfully", "exam_id", id)
	return exam, nil
}

func (s *examService) DeleteExam(ctx context.Context, id uint, requester *models.User) error {
	s.logger.Info("Deleting exam", "exam_id", id, "user_id", requester.ID)

	if _, err := s.getEditableExam(ctx, id, requester, "delete"); err != nil {
		return err
	}

	attempts, err := s.repo.Attempt().CountByExam(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to count attempts: %w", err)
	}
	if attempts > 0 {
		return NewBusinessRuleError("EXAM_HAS_ATTEMPTS", "an exam that has been attempted cannot be deleted", map[string]interface{}{
			"exam_id":  id,
			"attempts": attempts,
		})
	}

	if err := s.repo.Exam().Delete(ctx, id); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrExamNotFound
		}
		return fmt.Errorf("failed to delete exam: %w", err)
	}

	s.logger.Info("Exam deleted successfully", "exam_id", id)
	return nil
}

func (s *examService) GetExam(ctx context.Context, id uint, requester *models.User) (*models.Exam, error) {
	exam, err := s.repo.Exam().GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	questions, err := s.repo.Question().GetByExam(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load questions: %w", err)
	}
	exam.QuestionsCount = len(questions)
	for _, q := range questions {
		exam.TotalMarks += q.MaxMarks
	}

	return exam, nil
}

func (s *examService) ListExams(ctx context.Context, params *models.ListExamsParams, requester *models.User) (*models.PaginatedResponse, error) {
	if err := s.validator.Validate(params); err != nil {
		return nil, err
	}

	filters := repositories.ExamFilters{
		Subject:   params.Subject,
		Search:    params.Search,
		CreatedBy: params.CreatedBy,
		ActiveAt:  params.ActiveAt,
		Limit:     params.Size,
		Offset:    pageOffset(params.Page, params.Size),
		SortBy:    params.SortBy,
		SortOrder: params.SortDir,
	}

	exams, total, err := s.repo.Exam().List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list exams: %w", err)
	}

	return models.NewPaginatedResponse(exams, len(exams), total, params.Page, params.Size), nil
}

// ===== QUESTIONS =====

func (s *examService) AddQuestion(ctx context.Context, examID uint, req *models.QuestionCreateRequest, requester *models.User) (*models.Question, error) {
	s.logger.Info("Adding question", "exam_id", examID, "type", req.Type)

	if _, err := s.getEditableExam(ctx, examID, requester, "add_question"); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	question, err := questionFromRequest(examID, req)
	if err != nil {
		return nil, err
	}
	if errs := s.validator.GetBusinessValidator().ValidateQuestion(question); len(errs) > 0 {
		return nil, errs
	}

	if req.Order == nil {
		next, err := s.repo.Question().NextOrder(ctx, examID)
		if err != nil {
			return nil, fmt.Errorf("failed to get next question order: %w", err)
		}
		question.Order = next
	}

	if err := s.repo.Question().Create(ctx, question); err != nil {
		return nil, fmt.Errorf("failed to create question: %w", err)
	}

	s.logger.Info("Question added successfully", "exam_id", examID, "question_id", question.ID)
	return question, nil
}

func (s *examService) UpdateQuestion(ctx context.Context, examID, questionID uint, req *models.QuestionUpdateRequest, requester *models.User) (*models.Question, error) {
	s.logger.Info("Updating question", "exam_id", examID, "question_id", questionID)

	if _, err := s.getEditableExam(ctx, examID, requester, "update_question"); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	question, err := s.getExamQuestion(ctx, examID, questionID)
	if err != nil {
		return nil, err
	}

	if err := applyQuestionUpdates(question, req); err != nil {
		return nil, err
	}
	if errs := s.validator.GetBusinessValidator().ValidateQuestion(question); len(errs) > 0 {
		return nil, errs
	}

	if err := s.repo.Question().Update(ctx, question); err != nil {
		return nil, fmt.Errorf("failed to update question: %w", err)
	}
	return question, nil
}

func (s *examService) DeleteQuestion(ctx context.Context, examID, questionID uint, requester *models.User) error {
	s.logger.Info("Deleting question", "exam_id", examID, "question_id", questionID)

	if _, err := s.getEditableExam(ctx, examID, requester, "delete_question"); err != nil {
		return err
	}
	if _, err := s.getExamQuestion(ctx, examID, questionID); err != nil {
		return err
	}

	if err := s.repo.Question().Delete(ctx, questionID); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrQuestionNotFound
		}
		return fmt.Errorf("failed to delete question: %w", err)
	}
	return nil
}

// ListQuestions returns the full questions, answer keys included.
func (s *examService) ListQuestions(ctx context.Context, examID uint, requester *models.User) ([]models.Question, error) {
	if _, err := s.getEditableExam(ctx, examID, requester, "list_questions"); err != nil {
		return nil, err
	}

	questions, err := s.repo.Question().GetByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to load questions: %w", err)
	}
	return questions, nil
}

// ImportQuestions appends the questions of an xlsx sheet to the exam. Valid
// rows are stored together; invalid rows are reported and skipped.
func (s *examService) ImportQuestions(ctx context.Context, examID uint, file io.Reader, requester *models.User) (*models.ImportResult, error) {
	s.logger.Info("Importing questions", "exam_id", examID, "user_id", requester.ID)

	if _, err := s.getEditableExam(ctx, examID, requester, "import_questions"); err != nil {
		return nil, err
	}

	table, err := readSheetTable(file, "type", "text", "max_marks")
	if err != nil {
		return nil, err
	}

	result := &models.ImportResult{}
	var questions []*models.Question
	for i, row := range table.rows {
		if isBlankRow(row) {
			continue
		}
		result.TotalRows++
		rowNum := sheetRowNumber(i)

		question, rowErrs := s.questionFromRow(examID, table, row)
		if len(rowErrs) > 0 {
			for _, e := range rowErrs {
				result.Errors = append(result.Errors, models.ImportRowError{Row: rowNum, Field: e.Field, Message: e.Message})
			}
			result.Skipped++
			continue
		}
		questions = append(questions, question)
	}

	if len(questions) == 0 {
		return result, nil
	}

	err = s.repo.WithTransaction(ctx, func(tx repositories.Repository) error {
		next, err := tx.Question().NextOrder(ctx, examID)
		if err != nil {
			return err
		}
		for i, q := range questions {
			q.Order = next + i
		}
		return tx.Question().CreateBatch(ctx, questions)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to import questions: %w", err)
	}
	result.Created = len(questions)

	s.logger.Info("Questions imported",
		"exam_id", examID,
		"created", result.Created,
		"skipped", result.Skipped)
	return result, nil
}

// ===== HELPERS =====

// getEditableExam loads the exam and checks that requester is its author or an admin.
func (s *examService) getEditableExam(ctx context.Context, id uint, requester *models.User, action string) (*models.Exam, error) {
	if err := requireStaff(requester, id, "exam", action); err != nil {
		return nil, err
	}

	exam, err := s.repo.Exam().GetByID(ctx, id)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	if requester.Role != models.RoleAdmin && exam.CreatedBy != requester.ID {
		return nil, NewPermissionError(requester.ID, id, "exam", action, "not owner")
	}
	return exam, nil
}

func (s *examService) getExamQuestion(ctx context.Context, examID, questionID uint) (*models.Question, error) {
	question, err := s.repo.Question().GetByID(ctx, questionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrQuestionNotFound
		}
		return nil, fmt.Errorf("failed to get question: %w", err)
	}
	if question.ExamID != examID {
		return nil, ErrQuestionNotFound
	}
	return question, nil
}

func (s *examService) questionFromRow(examID uint, table *sheetTable, row []string) (*models.Question, validator.ValidationErrors) {
	var errs validator.ValidationErrors

	maxMarks, err := strconv.ParseFloat(table.cell(row, "max_marks"), 64)
	if err != nil {
		errs = append(errs, validator.ValidationError{Field: "max_marks", Message: "must be a number", Value: table.cell(row, "max_marks"), Rule: "numeric"})
	}
	tolerance, err := parseOptionalInt(table.cell(row, "tolerance"))
	if err != nil {
		errs = append(errs, validator.ValidationError{Field: "tolerance", Message: "must be a whole number", Value: table.cell(row, "tolerance"), Rule: "numeric"})
	}
	if len(errs) > 0 {
		return nil, errs
	}

	question := &models.Question{
		ExamID:   examID,
		Type:     models.QuestionType(strings.ToUpper(table.cell(row, "type"))),
		Text:     table.cell(row, "text"),
		MaxMarks: maxMarks,
	}
	if question.Text == "" {
		errs = append(errs, validator.ValidationError{Field: "text", Message: "is required", Rule: "required"})
	}

	switch question.Type {
	case models.MultipleChoice:
		var options []string
		for _, col := range []string{"option_a", "option_b", "option_c", "option_d"} {
			if v := table.cell(row, col); v != "" {
				options = append(options, v)
			}
		}
		if err := question.SetOptions(options); err != nil {
			errs = append(errs, validator.ValidationError{Field: "options", Message: err.Error(), Rule: "invalid"})
		}
		question.CorrectAnswer = resolveOptionLetter(table.optionalCell(row, "correct_answer"), options)
	case models.Theory:
		question.ExpectedAnswer = table.optionalCell(row, "expected_answer")
		question.AccuracyTolerance = tolerance
		if tolerance == nil {
			defaultTolerance := models.DefaultAccuracyTolerance
			question.AccuracyTolerance = &defaultTolerance
		}
	}

	errs = append(errs, s.validator.GetBusinessValidator().ValidateQuestion(question)...)
	return question, errs
}

// resolveOptionLetter lets a sheet name the correct option by its column
// letter (A-D) instead of repeating the option text. Option text wins when
// the answer matches an option exactly.
func resolveOptionLetter(answer *string, options []string) *string {
	if answer == nil || len(*answer) != 1 {
		return answer
	}
	for _, opt := range options {
		if opt == *answer {
			return answer
		}
	}
	idx := int(strings.ToUpper(*answer)[0] - 'A')
	if idx < 0 || idx >= len(options) {
		return answer
	}
	return &options[idx]
}

func questionFromRequest(examID uint, req *models.QuestionCreateRequest) (*models.Question, error) {
	question := &models.Question{
		ExamID:            examID,
		Type:              req.Type,
		Text:              strings.TrimSpace(req.Text),
		ImageURL:          req.ImageURL,
		MaxMarks:          req.MaxMarks,
		CorrectAnswer:     req.CorrectAnswer,
		ExpectedAnswer:    req.ExpectedAnswer,
		AccuracyTolerance: req.AccuracyTolerance,
	}
	if req.Order != nil {
		question.Order = *req.Order
	}
	if len(req.Options) > 0 {
		if err := question.SetOptions(req.Options); err != nil {
			return nil, fmt.Errorf("failed to encode options: %w", err)
		}
	}
	if question.Type == models.Theory && question.AccuracyTolerance == nil {
		tolerance := models.DefaultAccuracyTolerance
		question.AccuracyTolerance = &tolerance
	}
	return question, nil
}

func applyQuestionUpdates(question *models.Question, req *models.QuestionUpdateRequest) error {
	if req.Text != nil {
		question.Text = strings.TrimSpace(*req.Text)
	}
	if req.ImageURL != nil {
		question.ImageURL = req.ImageURL
	}
	if req.MaxMarks != nil {
		question.MaxMarks = *req.MaxMarks
	}
	if req.Order != nil {
		question.Order = *req.Order
	}
	if req.Options != nil {
		if err := question.SetOptions(req.Options); err != nil {
			return fmt.Errorf("failed to encode options: %w", err)
		}
	}
	if req.CorrectAnswer != nil {
		question.CorrectAnswer = req.CorrectAnswer
	}
	if req.ExpectedAnswer != nil {
		question.ExpectedAnswer = req.ExpectedAnswer
	}
	if req.AccuracyTolerance != nil {
		question.AccuracyTolerance = req.AccuracyTolerance
	}
	return nil
}

func applyExamUpdates(exam *models.Exam, req *models.ExamUpdateRequest) {
	if req.Title != nil {
		exam.Title = strings.TrimSpace(*req.Title)
	}
	if req.Subject != nil {
		exam.Subject = strings.TrimSpace(*req.Subject)
	}
	if req.Description != nil {
		exam.Description = req.Description
	}
	if req.Duration != nil {
		exam.Duration = *req.Duration
	}
	if req.StartDate != nil {
		exam.StartDate = *req.StartDate
	}
	if req.EndDate != nil {
		exam.EndDate = *req.EndDate
	}
	if req.Password != nil {
		exam.Password = normalizePassword(req.Password)
	}
	if req.MaxAttempts != nil {
		exam.MaxAttempts = *req.MaxAttempts
	}
	if req.RandomizeQuestions != nil {
		exam.RandomizeQuestions = *req.RandomizeQuestions
	}
	if req.RandomizeOptions != nil {
		exam.RandomizeOptions = *req.RandomizeOptions
	}
	if req.ShowResultsImmediately != nil {
		exam.ShowResultsImmediately = *req.ShowResultsImmediately
	}
	exam.HasPassword = exam.RequiresPassword()
}

// normalizePassword stores an empty password as no password.
func normalizePassword(p *string) *string {
	if p == nil || *p == "" {
		return nil
	}
	v := *p
	return &v
}
