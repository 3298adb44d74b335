package services

import (
	"context"
	"fmt"
	"time"

	"github.com/SAP-F-2025/cbt-service/internal/grading"
	"github.com/SAP-F-2025/cbt-service/internal/models"
	"github.com/SAP-F-2025/cbt-service/internal/repositories"
)

// checkStartPreconditions runs the window, password and attempt-count checks
// in that order.
func (s *attemptService) checkStartPreconditions(ctx context.Context, exam *models.Exam, student *models.Student, password string) error {
	if !exam.IsAvailableAt(s.now()) {
		return ErrExamNotActive
	}

	if !exam.CheckPassword(password) {
		return ErrInvalidExamPassword
	}

	completed, err := s.repo.Attempt().CountCompleted(ctx, exam.ID, student.ID)
	if err != nil {
		return fmt.Errorf("failed to count attempts: %w", err)
	}
	if completed >= int64(exam.MaxAttempts) {
		return ErrMaxAttemptsReached
	}

	return nil
}

// openOrCreateAttempt returns the open attempt when there is one. Two
// concurrent starts both reach Create; the loser gets ErrDuplicate from the
// open-attempt index and resumes the winner's row.
func (s *attemptService) openOrCreateAttempt(ctx context.Context, exam *models.Exam, student *models.Student, ipAddress string) (*models.ExamAttempt, bool, error) {
	open, err := s.repo.Attempt().GetOpenAttempt(ctx, exam.ID, student.ID)
	if err == nil {
		s.logger.Info("Resuming existing attempt", "attempt_id", open.ID)
		return open, true, nil
	}
	if !repositories.IsNotFoundError(err) {
		return nil, false, fmt.Errorf("failed to get open attempt: %w", err)
	}

	attempt := &models.ExamAttempt{
		ExamID:      exam.ID,
		StudentID:   student.ID,
		IsCompleted: false,
		StartedAt:   s.now(),
	}
	if ipAddress != "" {
		attempt.IPAddress = &ipAddress
	}

	if err := s.repo.Attempt().Create(ctx, attempt); err != nil {
		if !repositories.IsDuplicateError(err) {
			return nil, false, fmt.Errorf("failed to create attempt: %w", err)
		}

		open, err := s.repo.Attempt().GetOpenAttempt(ctx, exam.ID, student.ID)
		if err != nil {
			return nil, false, fmt.Errorf("failed to get open attempt after conflict: %w", err)
		}
		s.logger.Info("Concurrent start resolved to existing attempt", "attempt_id", open.ID)
		return open, true, nil
	}

	return attempt, false, nil
}

// serveExam strips answer keys and applies the exam's randomization flags.
// The resulting order is not stored.
func (s *attemptService) serveExam(exam *models.Exam, questions []models.Question) ServedExam {
	served := make([]ServedQuestion, 0, len(questions))
	for i := range questions {
		q := &questions[i]
		sq := ServedQuestion{
			ID:       q.ID,
			Type:     q.Type,
			Text:     q.Text,
			Image:    q.ImageURL,
			MaxMarks: q.MaxMarks,
			Order:    q.Order,
		}
		if q.Type == models.MultipleChoice {
			opts, err := q.OptionList()
			if err != nil {
				s.logger.Warn("Question has unreadable options", "question_id", q.ID, "error", err)
			}
			if exam.RandomizeOptions {
				grading.ShuffleSlice(s.shuffler, opts)
			}
			sq.Options = opts
		}
		served = append(served, sq)
	}

	if exam.RandomizeQuestions {
		grading.ShuffleSlice(s.shuffler, served)
	}

	return ServedExam{
		ID:        exam.ID,
		Title:     exam.Title,
		Subject:   exam.Subject,
		Duration:  exam.Duration,
		Questions: served,
	}
}

func toAnswerInputs(answers []models.SubmittedAnswer) []grading.AnswerInput {
	inputs := make([]grading.AnswerInput, len(answers))
	for i, a := range answers {
		inputs[i] = grading.AnswerInput{
			QuestionID:     a.QuestionID,
			SelectedOption: a.SelectedOption,
			AnswerText:     a.AnswerText,
		}
	}
	return inputs
}

func buildResult(attempt *models.ExamAttempt, exam *models.Exam, summary grading.Summary, at time.Time) *models.Result {
	result := &models.Result{
		AttemptID:         attempt.ID,
		ExamID:            exam.ID,
		StudentID:         attempt.StudentID,
		TotalScore:        grading.Round2(summary.TotalScore),
		MaxScore:          summary.MaxScore,
		Percentage:        grading.Round2(summary.Percentage),
		Grade:             summary.Grade,
		QuestionsAnswered: summary.QuestionsAnswered,
		CorrectAnswers:    summary.CorrectAnswers,
		Status:            models.ResultPending,
	}
	if exam.ShowResultsImmediately {
		releasedAt := at
		result.Status = models.ResultReleased
		result.ReleasedAt = &releasedAt
	}
	return result
}

func buildAnswers(attemptID uint, summary grading.Summary, at time.Time) []*models.Answer {
	answers := make([]*models.Answer, 0, len(summary.Answers))
	for _, a := range summary.Answers {
		answers = append(answers, &models.Answer{
			AttemptID:      attemptID,
			QuestionID:     a.QuestionID,
			SelectedOption: a.SelectedOption,
			AnswerText:     a.AnswerText,
			IsCorrect:      a.IsCorrect,
			Score:          a.Score,
			CreatedAt:      at,
		})
	}
	return answers
}

func derefAnswers(answers []*models.Answer) []models.Answer {
	out := make([]models.Answer, 0, len(answers))
	for _, a := range answers {
		out = append(out, *a)
	}
	return out
}
