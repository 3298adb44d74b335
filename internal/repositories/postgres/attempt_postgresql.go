package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/cbt-service/internal/models"
	"github.com/SAP-F-2025/cbt-service/internal/repositories"
)

// Attempts are not cached: their completion flag is the concurrency guard
// and must always be read from the database.
type AttemptPostgreSQL struct {
	db *gorm.DB
}

func NewAttemptPostgreSQL(db *gorm.DB) repositories.AttemptRepository {
	return &AttemptPostgreSQL{db: db}
}

// Create inserts a new open attempt. The partial unique index
// ux_exam_attempts_open turns a concurrent second insert into ErrDuplicate.
func (a *AttemptPostgreSQL) Create(ctx context.Context, attempt *models.ExamAttempt) error {
	return translateError(a.db.WithContext(ctx).Create(attempt).Error)
}

func (a *AttemptPostgreSQL) GetByID(ctx context.Context, id uint) (*models.ExamAttempt, error) {
	var attempt models.ExamAttempt
	if err := a.db.WithContext(ctx).First(&attempt, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) GetOpenAttempt(ctx context.Context, examID, studentID uint) (*models.ExamAttempt, error) {
	var attempt models.ExamAttempt
	err := a.db.WithContext(ctx).
		Where("exam_id = ? AND student_id = ? AND is_completed = ?", examID, studentID, false).
		First(&attempt).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) CountCompleted(ctx context.Context, examID, studentID uint) (int64, error) {
	var count int64
	err := a.db.WithContext(ctx).
		Model(&models.ExamAttempt{}).
		Where("exam_id = ? AND student_id = ? AND is_completed = ?", examID, studentID, true).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count completed attempts: %w", err)
	}
	return count, nil
}

func (a *AttemptPostgreSQL) CountByExam(ctx context.Context, examID uint) (int64, error) {
	var count int64
	err := a.db.WithContext(ctx).
		Model(&models.ExamAttempt{}).
		Where("exam_id = ?", examID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count exam attempts: %w", err)
	}
	return count, nil
}

func (a *AttemptPostgreSQL) ListByStudent(ctx context.Context, examID, studentID uint) ([]*models.ExamAttempt, error) {
	var attempts []*models.ExamAttempt
	err := a.db.WithContext(ctx).
		Where("exam_id = ? AND student_id = ?", examID, studentID).
		Order("started_at DESC").
		Find(&attempts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	return attempts, nil
}

// MarkCompleted is a compare-and-swap on is_completed.
func (a *AttemptPostgreSQL) MarkCompleted(ctx context.Context, id uint, submittedAt time.Time, timeSpent int) (bool, error) {
	res := a.db.WithContext(ctx).
		Model(&models.ExamAttempt{}).
		Where("id = ? AND is_completed = ?", id, false).
		Updates(map[string]interface{}{
			"is_completed": true,
			"submitted_at": submittedAt,
			"time_spent":   timeSpent,
			"updated_at":   submittedAt,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to complete attempt: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}
