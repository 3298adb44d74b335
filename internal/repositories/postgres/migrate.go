package postgres

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/cbt-service/internal/models"
)

// openAttemptIndex allows at most one incomplete attempt per (exam, student).
const openAttemptIndex = `CREATE UNIQUE INDEX IF NOT EXISTS ux_exam_attempts_open
	ON exam_attempts (exam_id, student_id)
	WHERE is_completed = false`

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.Student{},
		&models.Exam{},
		&models.Question{},
		&models.ExamAttempt{},
		&models.Answer{},
		&models.Result{},
	); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}

	if err := db.Exec(openAttemptIndex).Error; err != nil {
		return fmt.Errorf("failed to create open attempt index: %w", err)
	}
	return nil
}
