package postgres

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/SAP-F-2025/cbt-service/internal/models"
	"github.com/SAP-F-2025/cbt-service/internal/repositories"
)

type ResultPostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewResultPostgreSQL(db *gorm.DB) repositories.ResultRepository {
	return &ResultPostgreSQL{db: db, helpers: NewSharedHelpers(db)}
}

var resultSortColumns = map[string]bool{
	"percentage":  true,
	"total_score": true,
	"created_at":  true,
}

func (r *ResultPostgreSQL) Create(ctx context.Context, result *models.Result) error {
	return translateError(r.db.WithContext(ctx).Create(result).Error)
}

func (r *ResultPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Result, error) {
	var result models.Result
	if err := r.db.WithContext(ctx).Preload("Student").First(&result, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &result, nil
}

func (r *ResultPostgreSQL) GetByAttempt(ctx context.Context, attemptID uint) (*models.Result, error) {
	var result models.Result
	err := r.db.WithContext(ctx).
		Preload("Student").
		Where("attempt_id = ?", attemptID).
		First(&result).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &result, nil
}

func (r *ResultPostgreSQL) ListByExam(ctx context.Context, examID uint, filters repositories.ResultFilters) ([]*models.Result, int64, error) {
	var (
		results []*models.Result
		total   int64
	)

	query := r.db.WithContext(ctx).Model(&models.Result{}).Where("exam_id = ?", examID)
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count results: %w", err)
	}

	query = r.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset, resultSortColumns, "percentage")
	if err := query.Preload("Student").Find(&results).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list results: %w", err)
	}
	return results, total, nil
}

func (r *ResultPostgreSQL) CountReleasedAbove(ctx context.Context, examID uint, percentage float64, excludeID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Result{}).
		Where("exam_id = ? AND status = ? AND percentage > ? AND id <> ?", examID, models.ResultReleased, percentage, excludeID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count higher results: %w", err)
	}
	return count, nil
}

func (r *ResultPostgreSQL) ListByStudent(ctx context.Context, studentID uint) ([]*models.Result, error) {
	var results []*models.Result
	err := r.db.WithContext(ctx).
		Where("student_id = ?", studentID).
		Order("created_at DESC").
		Find(&results).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list student results: %w", err)
	}
	return results, nil
}

func (r *ResultPostgreSQL) ReleasePending(ctx context.Context, examID uint, releasedAt time.Time) ([]*models.Result, error) {
	var results []*models.Result
	err := r.db.WithContext(ctx).
		Model(&results).
		Clauses(clause.Returning{}).
		Where("exam_id = ? AND status = ?", examID, models.ResultPending).
		Updates(map[string]interface{}{
			"status":      models.ResultReleased,
			"released_at": releasedAt,
			"updated_at":  releasedAt,
		}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to release results: %w", err)
	}
	return results, nil
}
