package postgres

import (
	"context"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/cbt-service/internal/cache"
	"github.com/SAP-F-2025/cbt-service/internal/models"
	"github.com/SAP-F-2025/cbt-service/internal/repositories"
)

type QuestionPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewQuestionPostgreSQL(db *gorm.DB, cacheManager *cache.CacheManager) repositories.QuestionRepository {
	return &QuestionPostgreSQL{db: db, cacheManager: cacheManager}
}

func (q *QuestionPostgreSQL) Create(ctx context.Context, question *models.Question) error {
	if err := q.db.WithContext(ctx).Create(question).Error; err != nil {
		return translateError(err)
	}
	cache.SafeDelete(ctx, q.cacheManager.Exam, cache.ExamQuestionsKey(question.ExamID))
	return nil
}

func (q *QuestionPostgreSQL) CreateBatch(ctx context.Context, questions []*models.Question) error {
	if len(questions) == 0 {
		return nil
	}
	if err := q.db.WithContext(ctx).CreateInBatches(questions, 100).Error; err != nil {
		return translateError(err)
	}

	seen := make(map[uint]bool)
	for _, question := range questions {
		if !seen[question.ExamID] {
			seen[question.ExamID] = true
			cache.SafeDelete(ctx, q.cacheManager.Exam, cache.ExamQuestionsKey(question.ExamID))
		}
	}
	return nil
}

func (q *QuestionPostgreSQL) GetByID(ctx context.Context, id uint) (*models.Question, error) {
	var question models.Question
	if err := q.db.WithContext(ctx).First(&question, id).Error; err != nil {
		return nil, translateError(err)
	}
	return &question, nil
}

func (q *QuestionPostgreSQL) Update(ctx context.Context, question *models.Question) error {
	if err := q.db.WithContext(ctx).Save(question).Error; err != nil {
		return translateError(err)
	}
	cache.SafeDelete(ctx, q.cacheManager.Exam, cache.ExamQuestionsKey(question.ExamID))
	return nil
}

func (q *QuestionPostgreSQL) Delete(ctx context.Context, id uint) error {
	question, err := q.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := q.db.WithContext(ctx).Delete(&models.Question{}, id).Error; err != nil {
		return translateError(err)
	}
	cache.SafeDelete(ctx, q.cacheManager.Exam, cache.ExamQuestionsKey(question.ExamID))
	return nil
}

// GetByExam is read on every attempt start, so the question set is cached.
func (q *QuestionPostgreSQL) GetByExam(ctx context.Context, examID uint) ([]models.Question, error) {
	var questions []models.Question
	err := q.cacheManager.Exam.CacheOrExecute(ctx, cache.ExamQuestionsKey(examID), &questions, func() (interface{}, error) {
		var rows []models.Question
		if err := q.db.WithContext(ctx).
			Where("exam_id = ?", examID).
			Order("order_index ASC").Order("id ASC").
			Find(&rows).Error; err != nil {
			return nil, translateError(err)
		}
		return rows, nil
	})
	return questions, err
}

func (q *QuestionPostgreSQL) NextOrder(ctx context.Context, examID uint) (int, error) {
	var maxOrder *int
	err := q.db.WithContext(ctx).
		Model(&models.Question{}).
		Where("exam_id = ?", examID).
		Select("MAX(order_index)").
		Scan(&maxOrder).Error
	if err != nil {
		return 0, err
	}
	if maxOrder == nil {
		return 1, nil
	}
	return *maxOrder + 1, nil
}
