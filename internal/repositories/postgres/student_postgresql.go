package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/cbt-service/internal/cache"
	"github.com/SAP-F-2025/cbt-service/internal/models"
	"github.com/SAP-F-2025/cbt-service/internal/repositories"
)

type StudentPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewStudentPostgreSQL(db *gorm.DB, cacheManager *cache.CacheManager) repositories.StudentRepository {
	return &StudentPostgreSQL{db: db, cacheManager: cacheManager}
}

func (s *StudentPostgreSQL) Create(ctx context.Context, student *models.Student) error {
	if err := s.db.WithContext(ctx).Create(student).Error; err != nil {
		return translateError(err)
	}
	cache.SafeDelete(ctx, s.cacheManager.Student, cache.StudentUserKey(student.UserID))
	return nil
}

func (s *StudentPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Student, error) {
	var student models.Student
	if err := s.db.WithContext(ctx).First(&student, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &student, nil
}

func (s *StudentPostgreSQL) GetByUserID(ctx context.Context, userID string) (*models.Student, error) {
	var student models.Student
	err := s.cacheManager.Student.CacheOrExecute(ctx, cache.StudentUserKey(userID), &student, func() (interface{}, error) {
		var row models.Student
		if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&row).Error; err != nil {
			return nil, translateError(err)
		}
		return &row, nil
	})
	if err != nil {
		return nil, err
	}
	return &student, nil
}

func (s *StudentPostgreSQL) GetByIDs(ctx context.Context, ids []uint) ([]*models.Student, error) {
	var students []*models.Student
	if len(ids) == 0 {
		return students, nil
	}
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&students).Error; err != nil {
		return nil, translateError(err)
	}
	return students, nil
}

func (s *StudentPostgreSQL) ExistsByAdmissionNumber(ctx context.Context, admissionNumber string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Student{}).
		Where("admission_number = ?", admissionNumber).
		Count(&count).Error
	return count > 0, err
}
