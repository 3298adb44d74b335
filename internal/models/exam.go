package models

import (
	"time"

	"gorm.io/gorm"
)

type Exam struct {
	ID          uint    `json:"id" gorm:"primaryKey"`
	Title       string  `json:"title" gorm:"not null;size:200;index"`
	Subject     string  `json:"subject" gorm:"not null;size:100;index"`
	Description *string `json:"description" gorm:"type:text"`
	Duration    int     `json:"duration" gorm:"not null"` // minutes

	// Availability window, both ends inclusive
	StartDate time.Time `json:"start_date" gorm:"not null;index"`
	EndDate   time.Time `json:"end_date" gorm:"not null;index"`

	Password    *string `json:"-" gorm:"size:100"`
	MaxAttempts int     `json:"max_attempts" gorm:"not null;default:1"`

	// Delivery flags
	RandomizeQuestions     bool `json:"randomize_questions" gorm:"not null;default:false"`
	RandomizeOptions       bool `json:"randomize_options" gorm:"not null;default:false"`
	ShowResultsImmediately bool `json:"show_results_immediately" gorm:"not null;default:false"`

	// Metadata
	CreatedBy string         `json:"created_by" gorm:"not null;index;size:255"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	// Relations
	Questions []Question `json:"questions,omitempty" gorm:"foreignKey:ExamID"`

	// Computed fields (not stored)
	QuestionsCount int     `json:"questions_count" gorm:"-"`
	TotalMarks     float64 `json:"total_marks" gorm:"-"`
	HasPassword    bool    `json:"has_password" gorm:"-"`
}

func (Exam) TableName() string {
	return "exams"
}

// IsAvailableAt reports whether t falls inside [StartDate, EndDate].
func (e *Exam) IsAvailableAt(t time.Time) bool {
	return !t.Before(e.StartDate) && !t.After(e.EndDate)
}

// RequiresPassword is true when a non-empty password is configured.
func (e *Exam) RequiresPassword() bool {
	return e.Password != nil && *e.Password != ""
}

// CheckPassword compares the supplied password with plain, case-sensitive equality.
func (e *Exam) CheckPassword(supplied string) bool {
	if !e.RequiresPassword() {
		return true
	}
	return *e.Password == supplied
}

func (e *Exam) AfterFind(tx *gorm.DB) error {
	e.HasPassword = e.RequiresPassword()
	return nil
}
