package postgres

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/cbt-service/internal/cache"
	"github.com/SAP-F-2025/cbt-service/internal/models"
	"github.com/SAP-F-2025/cbt-service/internal/repositories"
)

type ExamPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewExamPostgreSQL(db *gorm.DB, cacheManager *cache.CacheManager) repositories.ExamRepository {
	return &ExamPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cacheManager,
	}
}

// examCacheEntry keeps the password, which the model hides from JSON.
type examCacheEntry struct {
	Exam     models.Exam `json:"exam"`
	Password *string     `json:"password"`
}

var examSortColumns = map[string]bool{
	"created_at": true,
	"title":      true,
	"start_date": true,
	"end_date":   true,
	"subject":    true,
}

func (e *ExamPostgreSQL) Create(ctx context.Context, exam *models.Exam) error {
	return translateError(e.db.WithContext(ctx).Create(exam).Error)
}

func (e *ExamPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Exam, error) {
	var entry examCacheEntry
	err := e.cacheManager.Exam.CacheOrExecute(ctx, cache.ExamKey(id), &entry, func() (interface{}, error) {
		var exam models.Exam
		if err := e.db.WithContext(ctx).First(&exam, id).Error; err != nil {
			return nil, translateError(err)
		}
		return &examCacheEntry{Exam: exam, Password: exam.Password}, nil
	})
	if err != nil {
		return nil, err
	}

	exam := entry.Exam
	exam.Password = entry.Password
	exam.HasPassword = exam.RequiresPassword()
	return &exam, nil
}

func (e *ExamPostgreSQL) Update(ctx context.Context, exam *models.Exam) error {
	if err := e.db.WithContext(ctx).Omit("Questions").Save(exam).Error; err != nil {
		return translateError(err)
	}
	cache.InvalidateExamCache(ctx, e.cacheManager, exam.ID)
	return nil
}

func (e *ExamPostgreSQL) Delete(ctx context.Context, id uint) error {
	res := e.db.WithContext(ctx).Delete(&models.Exam{}, id)
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return repositories.ErrNotFound
	}
	cache.InvalidateExamCache(ctx, e.cacheManager, id)
	return nil
}

func (e *ExamPostgreSQL) List(ctx context.Context, filters repositories.ExamFilters) ([]*models.Exam, int64, error) {
	var (
		exams []*models.Exam
		total int64
	)

	query := e.db.WithContext(ctx).Model(&models.Exam{})
	if filters.Subject != "" {
		query = query.Where("subject = ?", filters.Subject)
	}
	if filters.Search != "" {
		query = query.Where("title ILIKE ?", "%"+filters.Search+"%")
	}
	if filters.CreatedBy != nil {
		query = query.Where("created_by = ?", *filters.CreatedBy)
	}
	if filters.ActiveAt != nil {
		query = query.Where("start_date <= ? AND end_date >= ?", *filters.ActiveAt, *filters.ActiveAt)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count exams: %w", err)
	}

	query = e.helpers.ApplyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset, examSortColumns, "created_at")
	if err := query.Find(&exams).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list exams: %w", err)
	}
	return exams, total, nil
}
